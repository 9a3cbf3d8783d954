package app

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"seattlehumus/internal/config"
	"seattlehumus/internal/eventbus"
	"seattlehumus/internal/litter"
	"seattlehumus/internal/notifier"
	"seattlehumus/internal/runtime/supervisor"
	"seattlehumus/internal/storage"
	logx "seattlehumus/pkg/logx"
)

type recordingSender struct {
	mu       sync.Mutex
	stickers []string
	texts    []string
}

func (s *recordingSender) SendSticker(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stickers = append(s.stickers, id)
	return nil
}

func (s *recordingSender) SendText(_ context.Context, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.texts = append(s.texts, text)
	return nil
}

func TestStickerTableOverlaysDefaults(t *testing.T) {
	t.Parallel()

	got := stickerTable(map[string][]string{"Paloma": {"p1", "p2"}})
	if len(got[litter.Paloma]) != 2 || got[litter.Paloma][0] != "p1" {
		t.Fatalf("paloma=%v", got[litter.Paloma])
	}
	if len(got[litter.Margarita]) != len(litter.DefaultStickers()[litter.Margarita]) {
		t.Fatalf("margarita pool should keep the defaults")
	}
}

func TestRecorderWritesOutcomes(t *testing.T) {
	t.Parallel()

	store, err := storage.Open(storage.Config{Driver: "file", Path: filepath.Join(t.TempDir(), "audit.jsonl")}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer store.Close()

	bus := eventbus.New()
	sup := supervisor.New(context.Background())
	rec := newRecorder(bus, store, "run-1", logx.Nop())
	sup.Go0("audit.recorder", rec.run)

	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	bus.Publish(eventbus.Event{Type: eventbus.TypeNotificationSent, Data: notifier.NotificationEvent{
		DeviceID: "lr4-1", Cat: "Paloma", Weight: 15, Text: "hi", At: at,
	}})
	bus.Publish(eventbus.Event{Type: eventbus.TypeNotificationFailed, Data: notifier.NotificationEvent{
		Cat: "Margarita", Weight: 11, Stage: "sticker", Error: "timeout", At: at.Add(time.Minute),
	}})
	bus.Publish(eventbus.Event{Type: eventbus.TypeWeightRecorded, Data: "ignored"})

	if err := sup.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	recs, err := store.Recent(context.Background(), 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("records=%+v", recs)
	}
	if recs[0].Kind != storage.KindFailed || recs[0].Stage != "sticker" || recs[0].RunID != "run-1" {
		t.Fatalf("newest=%+v", recs[0])
	}
	if recs[1].Kind != storage.KindSent || recs[1].DeviceID != "lr4-1" || recs[1].Text != "hi" {
		t.Fatalf("oldest=%+v", recs[1])
	}
}

func TestApplyConfigSwapsStickers(t *testing.T) {
	t.Parallel()

	logs, log := logx.New(logx.Config{Level: "error"}, nil)
	defer logs.Close()
	sender := &recordingSender{}
	a := &App{
		log:  log,
		logs: logs,
		disp: notifier.New(notifier.Config{}, sender, nil, log),
	}

	old := &config.Config{}
	next := &config.Config{Stickers: map[string][]string{"Margarita": {"fresh-sticker"}}}
	a.applyConfig(old, next)

	if err := a.disp.Dispatch(context.Background(), notifier.Request{Cat: litter.Margarita, Weight: 11}); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if len(sender.stickers) != 1 || sender.stickers[0] != "fresh-sticker" {
		t.Fatalf("stickers=%v", sender.stickers)
	}
}

func TestHistoryWithoutStore(t *testing.T) {
	t.Parallel()

	lookup := envLookup(map[string]string{"STORAGE_DRIVER": "none"})
	if _, err := History(context.Background(), "", lookup, 5); !errors.Is(err, storage.ErrDisabled) {
		t.Fatalf("err=%v", err)
	}
}

func TestHistoryNeedsNoCredentials(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "audit.jsonl")
	store, err := storage.Open(storage.Config{Driver: "file", Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	at := time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC)
	if err := store.Append(context.Background(), storage.Record{At: at, Kind: storage.KindSent, Cat: "Paloma", Weight: 14.2, EventTime: at}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	_ = store.Close()

	// No LITTERROBOT_* or TELEGRAM_* keys at all.
	lookup := envLookup(map[string]string{"STORAGE_DRIVER": "file", "STORAGE_PATH": path})
	recs, err := History(context.Background(), "", lookup, 5)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(recs) != 1 || recs[0].Cat != "Paloma" || recs[0].Weight != 14.2 {
		t.Fatalf("records=%+v", recs)
	}
}

func envLookup(env map[string]string) config.LookupFunc {
	return func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
}
