package storage

import (
	"context"
	"fmt"
	"strings"

	logx "seattlehumus/pkg/logx"
)

// Store is the audit log.
type Store interface {
	Append(ctx context.Context, r Record) error
	// Recent returns up to limit records, newest first.
	Recent(ctx context.Context, limit int) ([]Record, error)
	Close() error
}

type opener func(path string, cfg Config, log logx.Logger) (Store, error)

var drivers = map[string]opener{
	"file":    openFile,
	"jsonl":   openFile,
	"sqlite":  openSQLite,
	"sqlite3": openSQLite,
}

// Open returns the store named by cfg.Driver, or nil when the audit log is
// off ("" or "none").
func Open(cfg Config, log logx.Logger) (Store, error) {
	name := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if name == "" || name == "none" {
		return nil, nil
	}
	open, ok := drivers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, cfg.Driver)
	}
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, fmt.Errorf("storage %s: %w", name, ErrNoPath)
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return open(path, cfg, log.With(logx.String("driver", name)))
}
