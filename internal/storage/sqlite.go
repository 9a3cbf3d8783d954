package storage

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	logx "seattlehumus/pkg/logx"
)

//go:embed migrations.sql
var schemaV1 string

// migrations are applied in order; PRAGMA user_version records how many ran.
var migrations = []string{schemaV1}

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

func openSQLite(path string, cfg Config, log logx.Logger) (Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	busy := cfg.BusyTimeout
	if busy <= 0 {
		busy = 5 * time.Second
	}
	q := url.Values{}
	q.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", busy.Milliseconds()))
	q.Add("_pragma", "journal_mode(WAL)")
	q.Add("_pragma", "synchronous(NORMAL)")

	db, err := sql.Open("sqlite", path+"?"+q.Encode())
	if err != nil {
		return nil, err
	}
	// One writer; every connection would otherwise need its own pragmas.
	db.SetMaxOpenConns(1)

	st := &sqliteStore{db: db, log: log}
	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite %s: %w", path, err)
	}
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	var version int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version > len(migrations) {
		return fmt.Errorf("schema version %d is newer than this binary (%d)", version, len(migrations))
	}
	for i := version; i < len(migrations); i++ {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, migrations[i]); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d: %w", i+1, err)
		}
		// PRAGMA does not take bind parameters.
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", i+1)); err != nil {
			_ = tx.Rollback()
			return err
		}
		if err := tx.Commit(); err != nil {
			return err
		}
		s.log.Info("audit schema migrated", logx.Int("version", i+1))
	}
	return nil
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqliteStore) Append(ctx context.Context, r Record) error {
	if s == nil || s.db == nil {
		return ErrDisabled
	}
	if r.At.IsZero() {
		r.At = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO notifications(at, kind, run_id, device_id, device, event_time, cat, weight, sticker, text, fallback, stage, err)
		 VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		r.At.UTC().Format(time.RFC3339Nano), r.Kind, nullStr(r.RunID), nullStr(r.DeviceID), nullStr(r.Device),
		r.EventTime.UTC().Format(time.RFC3339Nano), r.Cat, r.Weight, nullStr(r.Sticker), nullStr(r.Text),
		boolInt(r.Fallback), nullStr(r.Stage), nullStr(r.Error),
	)
	return err
}

func (s *sqliteStore) Recent(ctx context.Context, limit int) ([]Record, error) {
	if s == nil || s.db == nil {
		return nil, ErrDisabled
	}
	if limit <= 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT at, kind, run_id, device_id, device, event_time, cat, weight, sticker, text, fallback, stage, err
		 FROM notifications ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var (
			r                                   Record
			at, eventTime                       string
			runID, devID, dev, stk, txt, st, er sql.NullString
			fallback                            int
		)
		if err := rows.Scan(&at, &r.Kind, &runID, &devID, &dev, &eventTime, &r.Cat, &r.Weight, &stk, &txt, &fallback, &st, &er); err != nil {
			return nil, err
		}
		r.At, _ = time.Parse(time.RFC3339Nano, at)
		r.EventTime, _ = time.Parse(time.RFC3339Nano, eventTime)
		r.RunID, r.DeviceID, r.Device = runID.String, devID.String, dev.String
		r.Sticker, r.Text, r.Stage, r.Error = stk.String, txt.String, st.String, er.String
		r.Fallback = fallback != 0
		out = append(out, r)
	}
	return out, rows.Err()
}

func nullStr(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
