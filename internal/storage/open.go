package storage

import (
	"context"
	"fmt"
	"strings"

	logx "menunotice/pkg/logx"
)

// Store is the journal API used by the app and the CLI.
type Store interface {
	// Append persists e. The store assigns the ID; e.ID is ignored.
	Append(ctx context.Context, e Entry) error
	// List returns matching entries, oldest first.
	List(ctx context.Context, q Query) ([]Entry, error)
	Close() error
}

// Open initializes the configured store.
// It returns (nil, nil) if storage is disabled.
func Open(cfg Config, log logx.Logger) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	switch driver {
	case "", "none", "off", "disabled":
		return nil, nil
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	log = log.With(logx.String("comp", "storage"), logx.String("driver", driver))

	switch driver {
	case "file":
		return openFile(cfg, log)
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, fmt.Errorf("unknown storage driver: %s", driver)
	}
}
