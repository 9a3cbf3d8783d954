package config

import (
	"strings"
	"sync"

	logx "seattlehumus/pkg/logx"
)

// Manager holds the current configuration. With a config file in use, Watch
// reloads it on change and hands each accepted version to subscribers.
type Manager struct {
	path   string
	lookup LookupFunc
	log    logx.Logger

	mu   sync.RWMutex
	cfg  *Config
	subs map[chan *Config]struct{}
}

func NewManager(path string, lookup LookupFunc) *Manager {
	return &Manager{
		path:   strings.TrimSpace(path),
		lookup: lookup,
		log:    logx.Nop(),
		subs:   make(map[chan *Config]struct{}),
	}
}

func (m *Manager) SetLogger(log logx.Logger) {
	if !log.IsZero() {
		m.log = log
	}
}

func (m *Manager) Path() string { return m.path }

// Load reads and validates the configuration and makes it current.
func (m *Manager) Load() (*Config, error) {
	cfg, err := Load(m.path, m.lookup)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	m.cfg = cfg
	m.mu.Unlock()
	return cfg, nil
}

func (m *Manager) Get() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cfg
}

// Subscribe returns a channel holding the newest reloaded config. A slow
// reader only ever sees the latest version. The returned func unsubscribes
// and closes the channel.
func (m *Manager) Subscribe() (<-chan *Config, func()) {
	ch := make(chan *Config, 1)
	m.mu.Lock()
	m.subs[ch] = struct{}{}
	m.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.subs, ch)
			m.mu.Unlock()
			close(ch)
		})
	}
}

// reload re-reads the file and reports whether a changed config was
// accepted. Invalid files leave the current config in place.
func (m *Manager) reload() bool {
	cfg, err := Load(m.path, m.lookup)
	if err != nil {
		m.log.Warn("config reload rejected; keeping previous config", logx.String("path", m.path), logx.Err(err))
		return false
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	changed, attrs := SummarizeChange(m.cfg, cfg)
	if len(changed) == 0 {
		m.log.Debug("config file touched without changes", logx.String("path", m.path))
		return false
	}
	m.cfg = cfg
	for ch := range m.subs {
		// Replace whatever the subscriber has not read yet.
		select {
		case <-ch:
		default:
		}
		ch <- cfg
	}
	m.log.Info("config reloaded", append(attrs, logx.String("changed", strings.Join(changed, ",")))...)
	return true
}
