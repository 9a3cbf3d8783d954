package app

import (
	"context"
	"time"

	"seattlehumus/internal/eventbus"
	"seattlehumus/internal/notifier"
	"seattlehumus/internal/runtime/supervisor"
	"seattlehumus/internal/storage"
	logx "seattlehumus/pkg/logx"
)

const recordTimeout = 5 * time.Second

// recorder appends every notification outcome to the audit store.
type recorder struct {
	store storage.Store
	runID string
	log   logx.Logger

	events <-chan eventbus.Event
	unsub  func()
}

// newRecorder subscribes immediately so nothing published before run
// starts is missed.
func newRecorder(bus eventbus.Bus, store storage.Store, runID string, log logx.Logger) *recorder {
	events, unsub := bus.Subscribe(64, eventbus.TypeNotificationSent, eventbus.TypeNotificationFailed)
	return &recorder{store: store, runID: runID, log: log, events: events, unsub: unsub}
}

// run records events until ctx is done, then drains what is queued.
func (r *recorder) run(ctx context.Context) {
	stop := context.AfterFunc(ctx, r.unsub)
	defer stop()
	for e := range r.events {
		r.record(e)
	}
}

func (r *recorder) record(e eventbus.Event) {
	ev, ok := e.Data.(notifier.NotificationEvent)
	if !ok {
		return
	}
	rec := storage.Record{
		At:        ev.At,
		Kind:      storage.KindSent,
		RunID:     r.runID,
		DeviceID:  ev.DeviceID,
		Device:    ev.Device,
		EventTime: ev.EventTime,
		Cat:       ev.Cat,
		Weight:    ev.Weight,
		Sticker:   ev.Sticker,
		Text:      ev.Text,
		Fallback:  ev.Fallback,
		Stage:     ev.Stage,
		Error:     ev.Error,
	}
	if e.Type == eventbus.TypeNotificationFailed {
		rec.Kind = storage.KindFailed
	}
	if rec.At.IsZero() {
		rec.At = e.Time
	}

	ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
	defer cancel()
	if err := r.store.Append(ctx, rec); err != nil {
		r.log.Warn("audit append failed", logx.String("kind", rec.Kind), logx.Err(err))
	}
}

func (a *App) startRecorder(sup *supervisor.Supervisor) {
	if a.store == nil {
		return
	}
	rec := newRecorder(a.bus, a.store, a.runID, a.log.With(logx.String("comp", "audit")))
	sup.Go0("audit.recorder", rec.run)
}
