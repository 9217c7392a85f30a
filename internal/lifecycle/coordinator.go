// Package lifecycle ties the delivery queue and the visibility patch to the
// host's signals. A session starts with the first queued message, goes live
// when the notification subsystem reports ready, and ends when the boundary
// scene loads: a restore sequence then expires the session's messages, waits
// for the subsystem to dismiss them, removes the patch and puts the layout
// back. Messages enqueued during the restore stay pending and are dropped.
//
// Everything is driven by Update, which the host calls once per frame.
package lifecycle

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"menunotice/internal/delivery"
	"menunotice/internal/eventbus"
	"menunotice/internal/host"
	"menunotice/internal/patch"
	"menunotice/internal/runtime/sequence"
	logx "menunotice/pkg/logx"

	"github.com/google/uuid"
)

// State is the coordinator's position in a session.
type State int

const (
	StateIdle State = iota
	StateSubscribed
	StateLive
	StateRestoring
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSubscribed:
		return "subscribed"
	case StateLive:
		return "live"
	case StateRestoring:
		return "restoring"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Bus event types. Data is SessionEvent.
const (
	EventSessionStarted  = "session.started"
	EventSessionLive     = "session.live"
	EventSessionRestore  = "session.restore"
	EventSessionRestored = "session.restored"
)

// SessionEvent is published on every session transition.
type SessionEvent struct {
	Session   string    `json:"session"`
	Delivered int       `json:"delivered,omitempty"`
	Dropped   int       `json:"dropped,omitempty"`
	At        time.Time `json:"at"`
}

const (
	DefaultSettleDelay  = time.Second
	DefaultExpireAfter  = time.Second
	DefaultDismissDelay = 1100 * time.Millisecond
	DefaultLayoutDelay  = 500 * time.Millisecond
)

// Config holds the queue settings and the restore delays. Zero delays take
// the defaults.
type Config struct {
	Queue delivery.Config

	SettleDelay  time.Duration
	ExpireAfter  time.Duration
	DismissDelay time.Duration
	LayoutDelay  time.Duration
}

func (c Config) withDefaults() Config {
	if c.SettleDelay <= 0 {
		c.SettleDelay = DefaultSettleDelay
	}
	if c.ExpireAfter <= 0 {
		c.ExpireAfter = DefaultExpireAfter
	}
	if c.DismissDelay <= 0 {
		c.DismissDelay = DefaultDismissDelay
	}
	if c.LayoutDelay <= 0 {
		c.LayoutDelay = DefaultLayoutDelay
	}
	return c
}

// Deps are the host-side collaborators.
type Deps struct {
	Host      host.Host
	Subsystem host.Subsystem
	Patcher   host.Patcher
	Bus       eventbus.Bus
}

// Coordinator owns the queue and the patch for the whole process.
// It is safe for concurrent use, but Update must be called from one loop.
type Coordinator struct {
	mu sync.Mutex

	cfg  Config
	deps Deps
	log  logx.Logger

	queue *delivery.Queue
	patch *patch.Patch

	state    State
	ready    *eventbus.OneShot
	boundary *eventbus.OneShot
	restore  *sequence.Sequence

	session string
	started time.Time
	fatal   error
}

// New builds a coordinator with its own queue and patch. A nil bus gets a
// private one.
func New(cfg Config, deps Deps, log logx.Logger) *Coordinator {
	if log.IsZero() {
		log = logx.Nop()
	}
	if deps.Bus == nil {
		deps.Bus = eventbus.New()
	}
	c := &Coordinator{
		cfg:  cfg.withDefaults(),
		deps: deps,
		log:  log.With(logx.String("comp", "lifecycle")),
	}
	c.queue = delivery.New(c.cfg.Queue, delivery.Deps{
		Host:      deps.Host,
		Subsystem: deps.Subsystem,
	}, log, deps.Bus)
	c.patch = patch.New(deps.Patcher, c.queue, log)
	c.queue.SetHooks(c.patch.Available, c.Init)
	return c
}

// Apply swaps the configuration. Restore timings take effect from the next
// boundary scene; a restore already running keeps its delays.
func (c *Coordinator) Apply(cfg Config) {
	cfg = cfg.withDefaults()
	c.mu.Lock()
	c.cfg = cfg
	c.mu.Unlock()
	c.queue.Apply(cfg.Queue)
}

// Queue exposes the session queue for snapshots and tests.
func (c *Coordinator) Queue() *delivery.Queue { return c.queue }

// Enqueue is shorthand for Queue().Enqueue.
func (c *Coordinator) Enqueue(m delivery.Message) error { return c.queue.Enqueue(m) }

// Init starts a session if none is active: it installs the visibility patch
// and subscribes once to the ready signal. When the subsystem is already live
// there is no signal to wait for and the session goes live immediately.
// Calling Init during a session does nothing.
func (c *Coordinator) Init() error {
	c.mu.Lock()
	if c.fatal != nil {
		err := c.fatal
		c.mu.Unlock()
		return err
	}
	if c.state != StateIdle {
		c.mu.Unlock()
		return nil
	}
	if err := c.patch.Install(); err != nil {
		if errors.Is(err, patch.ErrRewriteTargetNotFound) {
			c.fatal = err
		}
		c.mu.Unlock()
		c.log.Error("visibility patch install failed", logx.Err(err))
		return err
	}
	c.ready = eventbus.SubscribeOnce(c.deps.Bus, eventbus.OfType(host.EventTargetReady))
	c.session = uuid.NewString()
	c.started = c.deps.Subsystem.Now()
	c.state = StateSubscribed
	session, started := c.session, c.started
	c.mu.Unlock()

	c.log.Info("session started", logx.String("session", session))
	c.publish(EventSessionStarted, SessionEvent{Session: session, At: started})

	if c.deps.Subsystem.Live() {
		return c.goLive()
	}
	return nil
}

// Update advances the coordinator by one frame. It returns a non-nil error
// only for failures that must stop the process.
func (c *Coordinator) Update(now time.Time) error {
	c.mu.Lock()
	state, ready, boundary, fatal := c.state, c.ready, c.boundary, c.fatal
	c.mu.Unlock()
	if fatal != nil {
		return fatal
	}

	switch state {
	case StateSubscribed:
		if _, ok := ready.Poll(); ok {
			if err := c.goLive(); err != nil {
				return err
			}
		}
	case StateLive:
		if e, ok := boundary.Poll(); ok {
			c.beginRestore(e, now)
		}
	}

	c.mu.Lock()
	seq := c.restore
	c.mu.Unlock()
	if seq == nil {
		return nil
	}
	done, err := seq.Advance(now)
	if err != nil {
		c.mu.Lock()
		c.fatal = fmt.Errorf("restore: %w", err)
		err = c.fatal
		c.mu.Unlock()
		c.log.Error("restore failed", logx.Err(err))
		return err
	}
	if done {
		c.finishRestore(now)
	}
	return nil
}

func (c *Coordinator) goLive() error {
	c.mu.Lock()
	if c.state != StateSubscribed {
		c.mu.Unlock()
		return nil
	}
	c.ready.Cancel()
	c.ready = nil
	c.boundary = eventbus.SubscribeOnce(c.deps.Bus, sceneNamed(c.cfg.Queue.BoundaryScene))
	c.state = StateLive
	session := c.session
	c.mu.Unlock()

	if err := c.patch.Install(); err != nil {
		c.log.Error("visibility patch install failed", logx.Err(err))
		if errors.Is(err, patch.ErrRewriteTargetNotFound) {
			c.mu.Lock()
			c.fatal = err
			c.mu.Unlock()
			return err
		}
		// Messages still go out, they just fade on the subsystem's own schedule.
	}
	c.queue.Flush()

	c.log.Info("session live", logx.String("session", session), logx.Int("delivered", c.queue.DeliveredCount()))
	c.publish(EventSessionLive, SessionEvent{Session: session, Delivered: c.queue.DeliveredCount(), At: c.deps.Subsystem.Now()})
	return nil
}

func (c *Coordinator) beginRestore(e eventbus.Event, now time.Time) {
	c.mu.Lock()
	if c.state != StateLive {
		c.mu.Unlock()
		return
	}
	c.boundary = nil
	c.state = StateRestoring
	c.queue.Drain()
	cfg := c.cfg
	session := c.session
	c.restore = sequence.New(
		sequence.Wait("settle", cfg.SettleDelay),
		sequence.WaitWhile("save-load", c.deps.Host.IsSaveLoadInProgress),
		sequence.Do("expire", func(now time.Time) error {
			c.queue.ExpireAll(now.Add(cfg.ExpireAfter))
			return nil
		}),
		sequence.Wait("dismiss", cfg.DismissDelay),
		sequence.Do("reset-regions", func(time.Time) error {
			c.queue.ResetRegions()
			return nil
		}),
		sequence.Do("clear-delivered", func(time.Time) error {
			c.queue.ClearDelivered()
			return nil
		}),
		sequence.Do("uninstall", func(time.Time) error {
			c.patch.Uninstall()
			return nil
		}),
		sequence.Wait("layout", cfg.LayoutDelay),
		sequence.Do("restore-offset", func(time.Time) error {
			c.queue.RestoreOffset()
			return nil
		}),
	)
	c.mu.Unlock()

	scene := ""
	if ev, ok := e.Data.(host.SceneEvent); ok {
		scene = ev.Name
	}
	c.log.Info("boundary scene loaded, restoring", logx.String("session", session), logx.String("scene", scene))
	c.publish(EventSessionRestore, SessionEvent{Session: session, Delivered: c.queue.DeliveredCount(), At: now})
}

func (c *Coordinator) finishRestore(now time.Time) {
	dropped := c.queue.PendingCount()
	c.queue.Reset()

	c.mu.Lock()
	session := c.session
	c.restore = nil
	c.session = ""
	c.started = time.Time{}
	c.state = StateIdle
	c.mu.Unlock()

	if dropped > 0 {
		c.log.Warn("pending messages discarded at session end", logx.String("session", session), logx.Int("count", dropped))
	}
	c.log.Info("session restored", logx.String("session", session))
	c.publish(EventSessionRestored, SessionEvent{Session: session, Dropped: dropped, At: now})
}

func (c *Coordinator) publish(typ string, ev SessionEvent) {
	c.deps.Bus.Publish(eventbus.Event{Type: typ, Time: ev.At, Data: ev})
}

func sceneNamed(name string) eventbus.Match {
	return func(e eventbus.Event) bool {
		if e.Type != host.EventSceneLoaded {
			return false
		}
		ev, ok := e.Data.(host.SceneEvent)
		return ok && ev.Name == name
	}
}

// Snapshot is a point-in-time view of the coordinator.
type Snapshot struct {
	State          State
	Session        string
	Started        time.Time
	PatchInstalled bool
	RestoreStep    string
	Queue          delivery.Snapshot
	Err            error
}

func (c *Coordinator) Snapshot() Snapshot {
	c.mu.Lock()
	s := Snapshot{
		State:   c.state,
		Session: c.session,
		Started: c.started,
		Err:     c.fatal,
	}
	if c.restore != nil {
		s.RestoreStep = c.restore.Current()
	}
	c.mu.Unlock()
	s.PatchInstalled = c.patch.IsInstalled()
	s.Queue = c.queue.Snapshot()
	return s
}
