package logx

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

type Config struct {
	Level    string
	Console  bool
	File     FileConfig
	Telegram TelegramConfig
}

type FileConfig struct {
	Enabled bool
	Path    string
}

type TelegramConfig struct {
	Enabled    bool
	MinLevel   string
	RatePerSec int
}

const defaultLogFile = "./seattlehumus.log"

// Service owns the log sinks and lets them change at runtime.
type Service struct {
	mu       sync.Mutex
	file     *os.File
	filePath string
	chat     *chatForwarder

	root atomic.Pointer[zerolog.Logger]
}

// New builds the sinks described by cfg and returns the service with a live
// root logger. A nil sink disables chat forwarding regardless of cfg.
func New(cfg Config, sink ChatSink) (*Service, Logger) {
	s := &Service{}
	if sink != nil {
		s.chat = newChatForwarder(sink)
	}
	s.Apply(cfg)
	return s, s.Logger()
}

func (s *Service) Logger() Logger { return Logger{svc: s} }

// Dropped counts chat log lines lost to rate limiting or a full queue.
func (s *Service) Dropped() uint64 {
	if s.chat == nil {
		return 0
	}
	return s.chat.dropped.Load()
}

// Apply rebuilds the writer set and swaps it in. Loggers already handed out
// pick up the change on their next call.
func (s *Service) Apply(cfg Config) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var writers []io.Writer
	if cfg.Console {
		writers = append(writers, newConsoleWriter(consoleOut))
	}
	if f := s.switchFile(cfg.File); f != nil {
		writers = append(writers, zerolog.SyncWriter(f))
	}
	if cfg.Telegram.Enabled && s.chat != nil {
		s.chat.configure(parseLevel(cfg.Telegram.MinLevel, zerolog.WarnLevel), cfg.Telegram.RatePerSec)
		s.chat.start()
		writers = append(writers, s.chat)
	}
	if len(writers) == 0 {
		writers = append(writers, newConsoleWriter(consoleOut))
	}

	zl := zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(parseLevel(cfg.Level, zerolog.InfoLevel)).
		With().Timestamp().Logger()
	s.root.Store(&zl)
}

// switchFile keeps the open file when the path is unchanged. Callers hold mu.
func (s *Service) switchFile(fc FileConfig) *os.File {
	path := strings.TrimSpace(fc.Path)
	if path == "" {
		path = defaultLogFile
	}
	if fc.Enabled && s.file != nil && s.filePath == path {
		return s.file
	}
	if s.file != nil {
		_ = s.file.Close()
		s.file, s.filePath = nil, ""
	}
	if !fc.Enabled {
		return nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logx: open %s: %v\n", path, err)
		return nil
	}
	s.file, s.filePath = f, path
	return f
}

// Close flushes queued chat lines for up to five seconds and closes the log
// file. Later log calls go to the console only.
func (s *Service) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	zl := zerolog.New(newConsoleWriter(consoleOut)).Level(s.root.Load().GetLevel()).
		With().Timestamp().Logger()
	s.root.Store(&zl)

	if s.chat != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		s.chat.stop(ctx)
		cancel()
	}
	var err error
	if s.file != nil {
		err = s.file.Close()
		s.file, s.filePath = nil, ""
	}
	return err
}
