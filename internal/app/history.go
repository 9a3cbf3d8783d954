package app

import (
	"context"
	"fmt"

	"seattlehumus/internal/config"
	"seattlehumus/internal/storage"
	logx "seattlehumus/pkg/logx"
)

// History returns the most recent audit records, newest first. It reads the
// audit log only: no credentials are needed and nothing touches the network.
func History(ctx context.Context, cfgPath string, lookup config.LookupFunc, limit int) ([]storage.Record, error) {
	cfg, err := config.LoadOffline(cfgPath, lookup)
	if err != nil {
		return nil, err
	}
	log := logx.NewConsole(cfg.Logging.Level).With(logx.String("comp", "storage"))
	store, err := storage.Open(storage.Config{
		Driver:      cfg.Storage.Driver,
		Path:        cfg.Storage.Path,
		BusyTimeout: config.DurationOr(cfg.Storage.BusyTimeout, 0),
	}, log)
	if err != nil {
		return nil, fmt.Errorf("storage: %w", err)
	}
	if store == nil {
		return nil, storage.ErrDisabled
	}
	defer store.Close()
	return store.Recent(ctx, limit)
}
