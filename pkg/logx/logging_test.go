package logx

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	t.Parallel()
	tests := []struct {
		raw  string
		want zerolog.Level
	}{
		{raw: "debug", want: zerolog.DebugLevel},
		{raw: " WARNING ", want: zerolog.WarnLevel},
		{raw: "error", want: zerolog.ErrorLevel},
		{raw: "", want: zerolog.InfoLevel},
		{raw: "loud", want: zerolog.InfoLevel},
	}
	for _, tt := range tests {
		if got := parseLevel(tt.raw, zerolog.InfoLevel); got != tt.want {
			t.Fatalf("parseLevel(%q) = %v, want %v", tt.raw, got, tt.want)
		}
	}
}

func TestLoggerWithFields(t *testing.T) {
	var buf bytes.Buffer
	log := NewWriter(&buf, "debug").With(String("comp", "watch"))
	log.Info("tick done", Int("devices", 2), Err(errors.New("boom")))

	var m map[string]any
	if err := json.Unmarshal(buf.Bytes(), &m); err != nil {
		t.Fatalf("unmarshal log line: %v (%s)", err, buf.String())
	}
	if m["comp"] != "watch" || m["message"] != "tick done" {
		t.Fatalf("unexpected fields: %v", m)
	}
	if m["devices"].(float64) != 2 {
		t.Fatalf("devices = %v, want 2", m["devices"])
	}
	if _, ok := m["caller"]; !ok {
		t.Fatalf("expected caller field, got %v", m)
	}
}

func TestZeroLoggerIsNoop(t *testing.T) {
	var log Logger
	if !log.IsZero() {
		t.Fatal("zero logger should report IsZero")
	}
	log.Info("dropped")
	if Nop().IsZero() {
		t.Fatal("Nop logger is not the zero value")
	}
}

func TestFormatChatLine(t *testing.T) {
	t.Parallel()
	got := formatChatLine([]byte(`{"level":"error","time":"x","caller":"a.go:1","message":"send failed","attempt":2,"device":"LR4-1","comp":"watch"}`))
	want := "ERROR send failed\ncomp: watch\ndevice: LR4-1\nattempt: 2"
	if got != want {
		t.Fatalf("formatChatLine = %q, want %q", got, want)
	}

	if raw := formatChatLine([]byte("  not json \n")); raw != "not json" {
		t.Fatalf("raw fallback = %q", raw)
	}

	long := clip(strings.Repeat("a", 50), 20)
	if len(long) != 20 || !strings.HasSuffix(long, "...") {
		t.Fatalf("clip = %q", long)
	}
}

type recordingSink struct {
	mu    sync.Mutex
	lines []string
}

func (r *recordingSink) SendLog(_ context.Context, text string) error {
	r.mu.Lock()
	r.lines = append(r.lines, text)
	r.mu.Unlock()
	return nil
}

func TestServiceForwardsWarningsToChat(t *testing.T) {
	sink := &recordingSink{}
	svc, log := New(Config{
		Level:    "debug",
		File:     FileConfig{Enabled: true, Path: filepath.Join(t.TempDir(), "out.log")},
		Telegram: TelegramConfig{Enabled: true, MinLevel: "warn", RatePerSec: 50},
	}, sink)

	log.Info("tick done")
	log.With(String("comp", "notifier")).Warn("sticker rejected", String("cat", "Paloma"))
	if err := svc.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	sink.mu.Lock()
	defer sink.mu.Unlock()
	if len(sink.lines) != 1 {
		t.Fatalf("chat lines = %q, want exactly the warning", sink.lines)
	}
	if want := "WARN sticker rejected\ncomp: notifier\ncat: Paloma"; sink.lines[0] != want {
		t.Fatalf("chat line = %q, want %q", sink.lines[0], want)
	}
	if svc.Dropped() != 0 {
		t.Fatalf("dropped = %d", svc.Dropped())
	}
}

func TestServiceApplyKeepsLoggersLive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "live.log")
	svc, log := New(Config{Level: "error", File: FileConfig{Enabled: true, Path: path}}, nil)
	defer svc.Close()

	log.Info("hidden")
	if log.Enabled(LevelInfo) {
		t.Fatal("info should be disabled at error level")
	}
	svc.Apply(Config{Level: "info", File: FileConfig{Enabled: true, Path: path}})
	log.Info("shown")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(data), "hidden") || !strings.Contains(string(data), "shown") {
		t.Fatalf("log file = %s", data)
	}
}
