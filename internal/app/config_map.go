package app

import (
	"fmt"
	"strings"
	"time"

	"menunotice/internal/config"
	"menunotice/internal/delivery"
	"menunotice/internal/host"
	"menunotice/internal/host/sim"
	"menunotice/internal/lifecycle"
	"menunotice/internal/storage"
	"menunotice/pkg/mainmenu"
	logx "menunotice/pkg/logx"
)

const defaultTick = 16 * time.Millisecond

func mapLogConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
		Menu: logx.MenuConfig{
			Enabled:    cfg.Logging.Menu.Enabled,
			MinLevel:   cfg.Logging.Menu.MinLevel,
			RatePerSec: cfg.Logging.Menu.RatePerSec,
		},
	}
}

func vec(v *config.Vector, def host.Vector2) host.Vector2 {
	if v == nil {
		return def
	}
	return host.Vector2{X: v.X, Y: v.Y}
}

func mapLifecycleConfig(cfg *config.Config) (lifecycle.Config, error) {
	lc := cfg.Lifecycle
	out := lifecycle.Config{
		Queue: delivery.Config{
			BoundaryScene: strings.TrimSpace(lc.BoundaryScene),
			WidenedOffset: vec(cfg.Queue.WidenedOffset, delivery.DefaultWidenedOffset),
			HistorySize:   cfg.Queue.HistorySize,
		},
	}
	var err error
	if out.SettleDelay, err = config.ParseDurationOrDefault("lifecycle.settle_delay", lc.SettleDelay, lifecycle.DefaultSettleDelay); err != nil {
		return lifecycle.Config{}, err
	}
	if out.ExpireAfter, err = config.ParseDurationOrDefault("lifecycle.expire_after", lc.ExpireAfter, lifecycle.DefaultExpireAfter); err != nil {
		return lifecycle.Config{}, err
	}
	if out.DismissDelay, err = config.ParseDurationOrDefault("lifecycle.dismiss_delay", lc.DismissDelay, lifecycle.DefaultDismissDelay); err != nil {
		return lifecycle.Config{}, err
	}
	if out.LayoutDelay, err = config.ParseDurationOrDefault("lifecycle.layout_delay", lc.LayoutDelay, lifecycle.DefaultLayoutDelay); err != nil {
		return lifecycle.Config{}, err
	}
	return out, nil
}

func mapMenuDefaults(cfg *config.Config) (mainmenu.Defaults, error) {
	extra, err := config.ParseDurationOrDefault("queue.extra_visible", cfg.Queue.ExtraVisible, delivery.DefaultExtraVisible)
	if err != nil {
		return mainmenu.Defaults{}, err
	}
	return mainmenu.Defaults{
		Caller:       cfg.Queue.Caller,
		Size:         cfg.Queue.Size,
		Color:        cfg.Queue.Color,
		ExtraVisible: extra,
	}, nil
}

// mapStorageConfig returns enabled=false when the journal is off.
func mapStorageConfig(cfg *config.Config) (storage.Config, bool, error) {
	if cfg == nil || cfg.Storage == nil {
		return storage.Config{}, false, nil
	}
	sc := cfg.Storage
	driver := strings.ToLower(strings.TrimSpace(sc.Driver))
	switch driver {
	case "", "none", "off", "disabled":
		return storage.Config{}, false, nil
	case "file":
		return storage.Config{Driver: driver, Path: sc.Path, Retain: sc.Retain}, true, nil
	case "sqlite", "sqlite3":
		if strings.TrimSpace(sc.Path) == "" {
			return storage.Config{}, false, fmt.Errorf("storage.path is required when storage.driver=%s", driver)
		}
		busy, err := config.ParseDurationOrDefault("storage.busy_timeout", sc.BusyTimeout, time.Second)
		if err != nil {
			return storage.Config{}, false, err
		}
		return storage.Config{Driver: driver, Path: sc.Path, BusyTimeout: busy, Retain: sc.Retain}, true, nil
	default:
		return storage.Config{}, false, fmt.Errorf("unknown storage.driver: %s", sc.Driver)
	}
}

// mapSimConfig returns the simulated host config and the frame length.
func mapSimConfig(cfg *config.Config) (sim.Config, time.Duration, error) {
	sc := cfg.Sim
	tick, err := config.ParseDurationOrDefault("sim.tick", sc.Tick, defaultTick)
	if err != nil {
		return sim.Config{}, 0, err
	}
	if tick <= 0 {
		tick = defaultTick
	}
	lifetime, err := config.ParseDurationField("sim.lifetime", sc.Lifetime)
	if err != nil {
		return sim.Config{}, 0, err
	}
	fade, err := config.ParseDurationField("sim.fade", sc.Fade)
	if err != nil {
		return sim.Config{}, 0, err
	}
	return sim.Config{
		Canvas:        vec(sc.Canvas, host.Vector2{}),
		DefaultRegion: vec(sc.Region, host.Vector2{}),
		Offset:        vec(sc.Offset, host.Vector2{}),
		Lifetime:      lifetime,
		Fade:          fade,
	}, tick, nil
}
