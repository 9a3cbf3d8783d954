package config

import (
	"context"
	"errors"
	"math/rand/v2"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	logx "seattlehumus/pkg/logx"
)

const (
	reloadDebounce = 250 * time.Millisecond
	rewatchMin     = 250 * time.Millisecond
	rewatchMax     = 5 * time.Second
)

var errWatcherClosed = errors.New("fsnotify watcher closed")

// Watch reloads the config file whenever it changes, until ctx is done.
// The directory is watched rather than the file so that editors replacing
// the file by rename are seen. A failed watcher is recreated with backoff.
func (m *Manager) Watch(ctx context.Context) error {
	if m.path == "" {
		return nil
	}
	dir := filepath.Dir(m.path)
	wait := rewatchMin
	for {
		err := m.watchDir(ctx, dir)
		if ctx.Err() != nil {
			return nil
		}
		pause := wait + rand.N(wait/2+1)
		m.log.Warn("config watcher failed; retrying", logx.String("dir", dir), logx.Duration("backoff", pause), logx.Err(err))
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(pause):
		}
		wait = min(wait*2, rewatchMax)
	}
}

// watchDir runs one fsnotify watcher until it breaks or ctx ends. Events for
// the config file are debounced: editors write in several steps.
func (m *Manager) watchDir(ctx context.Context, dir string) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()
	if err := w.Add(dir); err != nil {
		return err
	}
	m.log.Debug("watching config", logx.String("path", m.path))

	settle := time.NewTimer(time.Hour)
	settle.Stop()
	defer settle.Stop()

	target := filepath.Clean(m.path)
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return errWatcherClosed
			}
			if filepath.Clean(ev.Name) == target && ev.Op != fsnotify.Chmod {
				settle.Reset(reloadDebounce)
			}
		case err, ok := <-w.Errors:
			if !ok {
				return errWatcherClosed
			}
			if errors.Is(err, fsnotify.ErrEventOverflow) {
				m.log.Warn("config watch overflowed; reloading", logx.Err(err))
				settle.Reset(reloadDebounce)
				continue
			}
			m.log.Warn("config watch error", logx.Err(err))
		case <-settle.C:
			m.reload()
		}
	}
}
