package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"menunotice/internal/config"
	"menunotice/internal/delivery"
	"menunotice/internal/eventbus"
	"menunotice/internal/host/sim"
	"menunotice/internal/lifecycle"
	"menunotice/internal/observability/debughttp"
	"menunotice/internal/runtime/supervisor"
	"menunotice/internal/storage"
	"menunotice/pkg/mainmenu"
	logx "menunotice/pkg/logx"
)

const defaultTail = 5 * time.Second

// Options control how the app drives the simulated host.
type Options struct {
	ConfigPath string
	// Realtime paces frames with a wall-clock ticker. Otherwise frames run
	// back to back and the simulated clock alone decides timing.
	Realtime bool
	// Tail keeps the host running after the last script step so restores
	// can finish. Zero means 5s.
	Tail time.Duration
	// Start is the simulated clock origin. Zero means time.Now().
	Start time.Time
}

// App wires the config, logging, simulated host, coordinator and journal
// together and runs the host frame loop.
type App struct {
	opts Options

	cfgm *config.ConfigManager
	sup  *supervisor.Supervisor

	log  logx.Logger
	logs *logx.Service
	bus  eventbus.Bus

	host   *sim.Host
	coord  *lifecycle.Coordinator
	menu   *mainmenu.Messenger
	store  storage.Store
	script *Script

	debug    debughttp.Config
	start    time.Time
	tick     time.Duration
	finished chan struct{}
}

func NewApp(opts Options) (*App, error) {
	cfgm := config.NewConfigManager(opts.ConfigPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}

	logSvc, log := logx.New(mapLogConfig(cfg))
	appLog := log.With(logx.String("comp", "app"))

	simCfg, tick, err := mapSimConfig(cfg)
	if err != nil {
		return nil, err
	}
	lcfg, err := mapLifecycleConfig(cfg)
	if err != nil {
		return nil, err
	}
	def, err := mapMenuDefaults(cfg)
	if err != nil {
		return nil, err
	}
	script, err := parseScript(cfg.Sim.Script)
	if err != nil {
		return nil, err
	}

	start := opts.Start
	if start.IsZero() {
		start = time.Now()
	}
	if opts.Tail <= 0 {
		opts.Tail = defaultTail
	}

	bus := eventbus.New()
	h := sim.New(simCfg, bus, start)
	h.LoadScene(cfg.Sim.MenuScene)

	coord := lifecycle.New(lcfg, lifecycle.Deps{Host: h, Subsystem: h, Patcher: h, Bus: bus}, log)
	menu := mainmenu.New(coord, def, log)
	logSvc.SetPoster(menu)

	var store storage.Store
	if sc, enabled, err := mapStorageConfig(cfg); err != nil {
		return nil, err
	} else if enabled {
		st, err := storage.Open(sc, log.With(logx.String("comp", "storage")))
		if err != nil {
			return nil, err
		}
		store = st
		appLog.Info("journal enabled", logx.String("driver", sc.Driver))
	}

	return &App{
		opts:     opts,
		cfgm:     cfgm,
		log:      appLog,
		logs:     logSvc,
		bus:      bus,
		host:     h,
		coord:    coord,
		menu:     menu,
		store:    store,
		script:   script,
		debug:    debughttp.Config{Addr: cfg.Debug.Addr, Token: cfg.Debug.Token, AllowInsecure: cfg.Debug.AllowInsecure},
		start:    start,
		tick:     tick,
		finished: make(chan struct{}),
	}, nil
}

func (a *App) Host() *sim.Host                     { return a.host }
func (a *App) Coordinator() *lifecycle.Coordinator { return a.coord }
func (a *App) Messenger() *mainmenu.Messenger      { return a.menu }
func (a *App) Bus() eventbus.Bus                   { return a.bus }

// Finished is closed once the script ran and the tail elapsed.
func (a *App) Finished() <-chan struct{} { return a.finished }

// Done is closed when the supervisor context is canceled (fatal error or Stop).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor.
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	if a.sup != nil {
		return errors.New("app already started")
	}
	a.sup = supervisor.New(ctx, supervisor.WithLogger(a.log), supervisor.WithCancelOnError(true))

	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	a.cfgm.SetValidator(func(_ context.Context, cfg *config.Config) error {
		if err := config.Validate(cfg); err != nil {
			return err
		}
		if _, err := mapLifecycleConfig(cfg); err != nil {
			return err
		}
		_, err := mapMenuDefaults(cfg)
		return err
	})

	// Subscribe before the host loop starts so no session event is missed.
	if a.store != nil {
		events, unsub := a.bus.SubscribeFunc(1024, journalEvents)
		store := a.store
		jlog := a.log.With(logx.String("comp", "journal"))
		a.sup.Go0("journal", func(c context.Context) {
			defer unsub()
			runJournal(c, events, store, jlog)
		})
	}

	events, unsub := a.bus.Subscribe(256)
	a.sup.Go0("eventbus.log", func(c context.Context) {
		defer unsub()
		for {
			select {
			case <-c.Done():
				return
			case e, ok := <-events:
				if !ok {
					return
				}
				a.log.Debug("event", logx.String("type", e.Type), logx.Time("time", e.Time))
			}
		}
	})

	if a.cfgm.Path() != "" {
		sub := a.cfgm.Subscribe(8)
		a.sup.Go0("config.reload", func(c context.Context) {
			defer a.cfgm.Unsubscribe(sub)
			last := a.cfgm.Get()
			for {
				select {
				case <-c.Done():
					return
				case next, ok := <-sub:
					if !ok {
						return
					}
					// Keep only the latest of a burst.
					for drained := false; !drained; {
						select {
						case newer := <-sub:
							if newer != nil {
								next = newer
							}
						default:
							drained = true
						}
					}
					a.applyConfig(last, next)
					last = next
				}
			}
		})
		a.sup.GoRestart("config.watch", supervisor.RestartPolicy{MinBackoff: time.Second}, a.cfgm.Watch)
	}

	if strings.TrimSpace(a.debug.Addr) != "" {
		srv := debughttp.New(a.debug, func() any { return a.Snapshot() }, a.log)
		a.sup.GoRestart("debug.http", supervisor.RestartPolicy{MinBackoff: 500 * time.Millisecond, MaxBackoff: 10 * time.Second},
			func(c context.Context) error {
				err := srv.Run(c)
				if errors.Is(err, debughttp.ErrInsecureBind) {
					// Logged by the server; retrying cannot help.
					return nil
				}
				return err
			})
	}

	a.sup.Go("host.loop", a.hostLoop)

	a.log.Info("app started",
		logx.Duration("tick", a.tick),
		logx.Int("script_steps", a.script.Len()),
		logx.Bool("realtime", a.opts.Realtime),
	)
	return nil
}

// applyConfig pushes a reloaded config into the running components.
func (a *App) applyConfig(prev, next *config.Config) {
	changed, attrs := config.SummarizeConfigChange(prev, next)
	if len(changed) == 0 {
		a.log.Info("config reloaded (no changes)")
		return
	}
	fields := append([]logx.Field{logx.String("changed", strings.Join(changed, ","))}, attrs...)

	a.logs.Apply(mapLogConfig(next))
	if lcfg, err := mapLifecycleConfig(next); err != nil {
		a.log.Warn("invalid lifecycle config; keeping previous", logx.Err(err))
	} else {
		a.coord.Apply(lcfg)
	}
	if def, err := mapMenuDefaults(next); err != nil {
		a.log.Warn("invalid queue config; keeping previous", logx.Err(err))
	} else {
		a.menu.SetDefaults(def)
	}
	if restart := config.RestartRequired(changed); len(restart) > 0 {
		a.log.Warn("restart required for changes to take effect", logx.String("sections", strings.Join(restart, ",")))
	}
	a.log.Info("config reloaded", fields...)
}

// step runs one frame: the simulated subsystem updates, due script steps
// run, then the coordinator updates.
func (a *App) step(d time.Duration) error {
	now := a.host.Advance(d)
	for _, st := range a.script.Due(now.Sub(a.start)) {
		a.runStep(st)
	}
	return a.coord.Update(now)
}

func (a *App) runStep(st Step) {
	a.log.Debug("script step", logx.String("action", st.Action), logx.Duration("at", st.At))
	switch st.Action {
	case "message":
		var opts []mainmenu.Option
		if st.Caller != "" {
			opts = append(opts, mainmenu.WithCaller(st.Caller))
		}
		a.menu.AddMainMenuMessage(st.Text, opts...)
	case "boot":
		a.host.Boot()
	case "scene":
		a.host.LoadScene(st.Scene)
	case "save_load":
		a.host.SetSaveLoad(st.On)
	case "log":
		a.log.Error(st.Text, logx.String("source", "script"))
	default:
		a.log.Warn("unknown script action", logx.String("action", st.Action))
	}
}

func (a *App) hostLoop(ctx context.Context) error {
	end := a.script.End() + a.opts.Tail

	var ticks <-chan time.Time
	if a.opts.Realtime {
		t := time.NewTicker(a.tick)
		defer t.Stop()
		ticks = t.C
	}

	for {
		if err := a.step(a.tick); err != nil {
			return fmt.Errorf("frame: %w", err)
		}
		if a.script.Done() && a.host.Now().Sub(a.start) >= end {
			close(a.finished)
			return nil
		}
		if ticks == nil {
			if err := ctx.Err(); err != nil {
				return err
			}
			continue
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticks:
		}
	}
}

// Snapshot is a point-in-time view for the CLI.
type Snapshot struct {
	Start       time.Time
	Elapsed     time.Duration
	Visible     []string
	Coordinator lifecycle.Snapshot
	History     []delivery.HistoryItem
	Loops       []supervisor.LoopStats
}

func (a *App) Snapshot() Snapshot {
	s := Snapshot{
		Start:       a.start,
		Elapsed:     a.host.Now().Sub(a.start),
		Visible:     a.host.Visible(),
		Coordinator: a.coord.Snapshot(),
		History:     a.coord.Queue().History(),
	}
	if a.sup != nil {
		s.Loops = a.sup.Stats()
	}
	return s
}

// Stop cancels every loop and closes the journal and log sinks. Each step
// is bounded by its own timeout and by ctx.
func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		return nil
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))
	a.sup.Cancel()

	step := func(name string, limit time.Duration, fn func(context.Context) error) {
		start := time.Now()
		c, cancel := context.WithTimeout(ctx, limit)
		defer cancel()
		done := make(chan error, 1)
		go func() { done <- fn(c) }()
		select {
		case err := <-done:
			if err != nil && !errors.Is(err, context.Canceled) {
				a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
			}
			a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", time.Since(start)))
		case <-c.Done():
			a.log.Warn("stop step deadline reached (continuing)", logx.String("name", name), logx.Duration("elapsed", time.Since(start)))
		}
	}

	step("supervisor", 3*time.Second, func(c context.Context) error { return a.sup.Wait(c) })
	step("storage", time.Second, func(context.Context) error {
		if a.store != nil {
			return a.store.Close()
		}
		return nil
	})

	a.log.Info("stopped")
	return a.logs.Close()
}

// OpenJournal opens the journal configured at cfgPath for reading.
// It returns storage.ErrDisabled when no journal is configured.
func OpenJournal(cfgPath string, log logx.Logger) (storage.Store, error) {
	cfg, err := config.NewConfigManager(cfgPath).Load()
	if err != nil {
		return nil, err
	}
	sc, enabled, err := mapStorageConfig(cfg)
	if err != nil {
		return nil, err
	}
	if !enabled {
		return nil, storage.ErrDisabled
	}
	return storage.Open(sc, log)
}
