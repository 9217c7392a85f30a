package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/caarlos0/env/v11"
)

// envOverrides are applied on top of the parsed file. Empty means unset.
type envOverrides struct {
	LogLevel      string `env:"MENUNOTICE_LOG_LEVEL"`
	LogMenu       string `env:"MENUNOTICE_LOG_MENU"`
	BoundaryScene string `env:"MENUNOTICE_BOUNDARY_SCENE"`
	StorageDriver string `env:"MENUNOTICE_STORAGE_DRIVER"`
	StoragePath   string `env:"MENUNOTICE_STORAGE_PATH"`
}

// ApplyEnv overlays MENUNOTICE_* environment variables onto c.
func ApplyEnv(c *Config) error {
	var o envOverrides
	if err := env.Parse(&o); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return applyOverrides(c, o)
}

func applyOverrides(c *Config, o envOverrides) error {
	if v := strings.TrimSpace(o.LogLevel); v != "" {
		c.Logging.Level = v
	}
	if v := strings.TrimSpace(o.LogMenu); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("MENUNOTICE_LOG_MENU: %w", err)
		}
		c.Logging.Menu.Enabled = b
	}
	if v := strings.TrimSpace(o.BoundaryScene); v != "" {
		c.Lifecycle.BoundaryScene = v
	}
	driver := strings.TrimSpace(o.StorageDriver)
	path := strings.TrimSpace(o.StoragePath)
	if driver != "" || path != "" {
		if c.Storage == nil {
			c.Storage = &StorageConfig{}
		}
		if driver != "" {
			c.Storage.Driver = driver
		}
		if path != "" {
			c.Storage.Path = path
		}
	}
	return nil
}
