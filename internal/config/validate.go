package config

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	logx "menunotice/pkg/logx"
)

const (
	DefaultBoundaryScene = "Main"
	DefaultMenuScene     = "XMenu"
	DefaultLogLevel      = "info"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid config")

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{
		Logging: LoggingConfig{Level: DefaultLogLevel, Console: true},
	}
	cfg.Normalize()
	return cfg
}

// Normalize fills values that are required downstream and trims strings.
// Timing and style defaults stay empty here; the runtime owns those.
func (c *Config) Normalize() {
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = DefaultLogLevel
	}
	c.Lifecycle.BoundaryScene = strings.TrimSpace(c.Lifecycle.BoundaryScene)
	if c.Lifecycle.BoundaryScene == "" {
		c.Lifecycle.BoundaryScene = DefaultBoundaryScene
	}
	c.Sim.MenuScene = strings.TrimSpace(c.Sim.MenuScene)
	if c.Sim.MenuScene == "" {
		c.Sim.MenuScene = DefaultMenuScene
	}
	if c.Storage != nil {
		c.Storage.Driver = strings.ToLower(strings.TrimSpace(c.Storage.Driver))
		c.Storage.Path = strings.TrimSpace(c.Storage.Path)
	}
	for i := range c.Sim.Script {
		c.Sim.Script[i].Action = strings.ToLower(strings.TrimSpace(c.Sim.Script[i].Action))
	}
}

// Validate checks c without side effects. All problems are reported together.
func Validate(c *Config) error {
	if c == nil {
		return fmt.Errorf("%w: config is nil", ErrInvalid)
	}
	var errs []error
	add := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}
	check := func(path, raw string) {
		_, err := ParseDurationField(path, raw)
		add(err)
	}

	if lv := strings.TrimSpace(c.Logging.Level); lv != "" {
		if _, ok := logx.LookupLevel(lv); !ok {
			add(fmt.Errorf("logging.level: unknown level %q", lv))
		}
	}
	if lv := strings.TrimSpace(c.Logging.Menu.MinLevel); lv != "" {
		if _, ok := logx.LookupLevel(lv); !ok {
			add(fmt.Errorf("logging.menu.min_level: unknown level %q", lv))
		}
	}
	if c.Logging.File.Enabled && strings.TrimSpace(c.Logging.File.Path) == "" {
		add(errors.New("logging.file.path: required when file logging is enabled"))
	}
	if c.Logging.Menu.RatePerSec < 0 {
		add(errors.New("logging.menu.rate_per_sec: must be >= 0"))
	}

	if c.Queue.Size < 0 {
		add(errors.New("queue.size: must be >= 0"))
	}
	if c.Queue.HistorySize < 0 {
		add(errors.New("queue.history_size: must be >= 0"))
	}
	if strings.ContainsAny(c.Queue.Caller, "<>") || strings.ContainsAny(c.Queue.Color, "<>") {
		add(errors.New("queue: caller and color must not contain markup"))
	}
	check("queue.extra_visible", c.Queue.ExtraVisible)

	check("lifecycle.settle_delay", c.Lifecycle.SettleDelay)
	check("lifecycle.expire_after", c.Lifecycle.ExpireAfter)
	check("lifecycle.dismiss_delay", c.Lifecycle.DismissDelay)
	check("lifecycle.layout_delay", c.Lifecycle.LayoutDelay)

	if s := c.Storage; s != nil {
		switch strings.ToLower(strings.TrimSpace(s.Driver)) {
		case "", "none", "off", "disabled", "file", "sqlite", "sqlite3":
		default:
			add(fmt.Errorf("storage.driver: unknown driver %q", s.Driver))
		}
		check("storage.busy_timeout", s.BusyTimeout)
		if s.Retain < 0 {
			add(errors.New("storage.retain: must be >= 0"))
		}
	}

	check("sim.tick", c.Sim.Tick)
	check("sim.lifetime", c.Sim.Lifetime)
	check("sim.fade", c.Sim.Fade)
	for i, st := range c.Sim.Script {
		path := fmt.Sprintf("sim.script[%d]", i)
		check(path+".at", st.At)
		switch strings.ToLower(strings.TrimSpace(st.Action)) {
		case "message", "log":
			if strings.TrimSpace(st.Text) == "" {
				add(fmt.Errorf("%s.text: required for %s", path, st.Action))
			}
		case "scene":
			if strings.TrimSpace(st.Scene) == "" {
				add(fmt.Errorf("%s.scene: required", path))
			}
		case "boot", "save_load":
		default:
			add(fmt.Errorf("%s.action: unknown action %q", path, st.Action))
		}
	}

	if addr := strings.TrimSpace(c.Debug.Addr); addr != "" {
		if _, _, err := net.SplitHostPort(addr); err != nil {
			add(fmt.Errorf("debug.addr: %w", err))
		}
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
}

// ParseDurationField parses a non-negative Go duration string. A blank value
// is zero. Errors are prefixed with the field path.
func ParseDurationField(path, raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	switch {
	case err != nil:
		return 0, fmt.Errorf("%s: invalid duration %q: %w", path, raw, err)
	case d < 0:
		return 0, fmt.Errorf("%s: negative duration %q", path, raw)
	}
	return d, nil
}

// ParseDurationOrDefault is ParseDurationField with def standing in for a
// blank or zero value.
func ParseDurationOrDefault(path, raw string, def time.Duration) (time.Duration, error) {
	d, err := ParseDurationField(path, raw)
	if err != nil || d > 0 {
		return d, err
	}
	return def, nil
}
