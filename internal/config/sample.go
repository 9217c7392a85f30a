package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

//go:embed sample.yaml
var sample []byte

// Sample returns the annotated sample configuration (YAML).
func Sample() []byte { return append([]byte(nil), sample...) }

// WriteSample writes the sample configuration to path. An existing file is
// only replaced when overwrite is set.
func WriteSample(path string, overwrite bool) error {
	if path == "" {
		return ErrNoPath
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config file already exists at %s", path)
		} else if !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("check config path: %w", err)
		}
	}
	return os.WriteFile(path, sample, 0o644)
}
