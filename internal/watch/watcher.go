package watch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"seattlehumus/internal/eventbus"
	"seattlehumus/internal/litter"
	"seattlehumus/internal/metrics"
	"seattlehumus/internal/notifier"
	"seattlehumus/internal/whisker"
	logx "seattlehumus/pkg/logx"
	"seattlehumus/pkg/systemd"
)

// Dispatcher announces one weighed visit.
type Dispatcher interface {
	Dispatch(ctx context.Context, req notifier.Request) error
}

type Config struct {
	Interval time.Duration
	// CloseTimeout bounds closing the session on shutdown.
	CloseTimeout time.Duration
}

// WeightRecorded is the payload of weight.recorded bus events.
type WeightRecorded struct {
	Tick      string    `json:"tick"`
	DeviceID  string    `json:"device_id"`
	Device    string    `json:"device"`
	EventTime time.Time `json:"event_time"`
	Cat       string    `json:"cat"`
	Weight    float64   `json:"weight"`
	Notify    bool      `json:"notify"`
}

// Watcher is the poll loop. Start must succeed before Run is called.
// Watermarks survive Run returning, so a restarted Run resumes where the
// previous one stopped.
type Watcher struct {
	cfg     Config
	conn    litter.Connector
	disp    Dispatcher
	log     logx.Logger
	bus     eventbus.Bus
	metrics *metrics.Manager
	sd      systemd.Notifier
	now     func() time.Time

	marks   *litter.Watermarks
	session litter.Session
	started bool
}

type Option func(*Watcher)

func WithBus(bus eventbus.Bus) Option { return func(w *Watcher) { w.bus = bus } }

func WithMetrics(m *metrics.Manager) Option { return func(w *Watcher) { w.metrics = m } }

// WithNotifier sets the systemd notifier. The default discards messages.
func WithNotifier(n systemd.Notifier) Option { return func(w *Watcher) { w.sd = n } }

func WithClock(now func() time.Time) Option { return func(w *Watcher) { w.now = now } }

func New(cfg Config, conn litter.Connector, disp Dispatcher, log logx.Logger, opts ...Option) *Watcher {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.CloseTimeout <= 0 {
		cfg.CloseTimeout = 5 * time.Second
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	w := &Watcher{
		cfg:   cfg,
		conn:  conn,
		disp:  disp,
		log:   log.With(logx.String("comp", "watch"), logx.String("run", uuid.NewString())),
		sd:    systemd.Nop{},
		now:   time.Now,
		marks: litter.NewWatermarks(),
	}
	for _, o := range opts {
		o(w)
	}
	return w
}

// Start connects and seeds every device's watermark from its current
// history. Any error is fatal: nothing has been announced yet and the
// caller should exit.
func (w *Watcher) Start(ctx context.Context) error {
	if w.started {
		return errors.New("watcher already started")
	}
	s, err := w.conn.Connect(ctx)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	devices := s.Devices()
	for _, d := range devices {
		history, err := d.History(ctx)
		if err != nil {
			w.closeSession(s)
			return fmt.Errorf("seed %s: %w", d.Name(), err)
		}
		w.seed(d, history)
	}
	w.session = s
	w.started = true
	w.metrics.SetDevices(len(devices))
	w.log.Info("watcher initialized", logx.Int("devices", len(devices)), logx.Duration("interval", w.cfg.Interval))
	_ = w.sd.Ready()
	return nil
}

// Run polls until ctx is cancelled. It returns nil on cancellation and an
// error when the session is lost and cannot be re-established.
func (w *Watcher) Run(ctx context.Context) error {
	if !w.started {
		return errors.New("watcher not started")
	}
	defer func() {
		if ctx.Err() != nil {
			_ = w.sd.Stopping()
			w.dropSession()
		}
	}()

	t := time.NewTimer(0)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			w.log.Info("watcher stopping")
			return nil
		case <-t.C:
		}

		if err := w.ensureSession(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		w.Tick(ctx)
		_ = w.sd.Watchdog()
		t.Reset(w.cfg.Interval)
	}
}

// Tick runs one collect and dispatch pass over every device.
func (w *Watcher) Tick(ctx context.Context) {
	if w.session == nil {
		return
	}
	start := w.now()
	tick := uuid.NewString()
	log := w.log.With(logx.String("tick", tick))

	devices := w.session.Devices()
	w.metrics.SetDevices(len(devices))

	var tickErr error
	for _, d := range devices {
		if ctx.Err() != nil {
			break
		}
		history, err := d.History(ctx)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			tickErr = err
			if isSessionLost(err) {
				log.Warn("session lost; reconnecting next tick", logx.String("device", d.Name()), logx.Err(err))
				w.dropSession()
				break
			}
			w.metrics.FetchFailed(d.Name())
			log.Warn("history fetch failed; skipping device", logx.String("device", d.Name()), logx.Err(err))
			continue
		}
		if !w.marks.Seeded(d.ID()) {
			w.seed(d, history)
			log.Info("new device seeded", logx.String("device", d.Name()))
			continue
		}

		events := litter.ExtractWeightEvents(history)
		mark, ok := w.marks.Get(d.ID())
		fresh := litter.SelectNew(events, mark, ok)
		if len(fresh) == 0 {
			continue
		}
		// The batch finishes even if shutdown starts mid-way.
		w.dispatchBatch(context.WithoutCancel(ctx), log, tick, d, fresh)
	}

	took := w.now().Sub(start)
	w.metrics.ObserveTick(took, tickErr)
	log.Debug("tick done", logx.Duration("took", took))
}

// dispatchBatch announces events in order and advances the device's
// watermark past every event it processed.
//
// A sticker failure stops the batch so the event is retried next tick.
// A message failure still counts as processed: the sticker is already out.
func (w *Watcher) dispatchBatch(ctx context.Context, log logx.Logger, tick string, d litter.Device, events []litter.WeightEvent) {
	log = log.With(logx.String("device", d.Name()))
	var last time.Time
	processed := 0
	for _, ev := range events {
		weight, err := litter.ParseWeight(ev.Text)
		if err != nil {
			w.metrics.ParseFailed()
			log.Warn("unparseable weight event; skipping", logx.Time("at", ev.Timestamp), logx.Err(err))
			last, processed = ev.Timestamp, processed+1
			continue
		}
		cat := litter.Classify(weight)
		notify := litter.ShouldNotify(weight)
		w.metrics.WeightEvent(cat.String())
		w.publish(WeightRecorded{
			Tick:      tick,
			DeviceID:  d.ID(),
			Device:    d.Name(),
			EventTime: ev.Timestamp,
			Cat:       cat.String(),
			Weight:    weight,
			Notify:    notify,
		})
		if !notify {
			log.Debug("below notify threshold", logx.String("cat", cat.String()), logx.Float64("weight", weight))
			last, processed = ev.Timestamp, processed+1
			continue
		}

		err = w.disp.Dispatch(ctx, notifier.Request{
			DeviceID:  d.ID(),
			Device:    d.Name(),
			EventTime: ev.Timestamp,
			Cat:       cat,
			Weight:    weight,
		})
		if err != nil {
			var de *notifier.DispatchError
			if errors.As(err, &de) && de.Stage == notifier.StageMessage {
				log.Error("message not delivered", logx.Time("at", ev.Timestamp), logx.Err(err))
				last, processed = ev.Timestamp, processed+1
				continue
			}
			log.Error("dispatch failed; retrying next tick", logx.Time("at", ev.Timestamp), logx.Err(err))
			break
		}
		last, processed = ev.Timestamp, processed+1
	}
	if processed > 0 && w.marks.Advance(d.ID(), last) {
		log.Debug("watermark advanced", logx.Time("mark", last), logx.Int("events", processed))
	}
}

// Watermark exposes a device's watermark.
func (w *Watcher) Watermark(deviceID string) (time.Time, bool) {
	return w.marks.Get(deviceID)
}

func (w *Watcher) seed(d litter.Device, history []litter.RawHistoryEvent) {
	events := litter.ExtractWeightEvents(history)
	w.marks.Seed(d.ID(), events)
	mark, _ := w.marks.Get(d.ID())
	w.log.Debug("watermark seeded", logx.String("device", d.Name()), logx.Int("events", len(events)), logx.Time("mark", mark))
}

// ensureSession reconnects after a lost session. Devices that show up on
// the new session are seeded on their first tick.
func (w *Watcher) ensureSession(ctx context.Context) error {
	if w.session != nil {
		return nil
	}
	s, err := w.conn.Connect(ctx)
	if err != nil {
		return fmt.Errorf("reconnect: %w", err)
	}
	w.session = s
	w.metrics.Reconnected()
	w.log.Info("reconnected", logx.Int("devices", len(s.Devices())))
	return nil
}

func (w *Watcher) dropSession() {
	if w.session == nil {
		return
	}
	w.closeSession(w.session)
	w.session = nil
}

func (w *Watcher) closeSession(s litter.Session) {
	ctx, cancel := context.WithTimeout(context.Background(), w.cfg.CloseTimeout)
	defer cancel()
	if err := s.Close(ctx); err != nil {
		w.log.Warn("session close failed", logx.Err(err))
	}
}

func (w *Watcher) publish(ev WeightRecorded) {
	if w.bus == nil {
		return
	}
	w.bus.Publish(eventbus.Event{Type: eventbus.TypeWeightRecorded, Time: w.now(), Data: ev})
}

func isSessionLost(err error) bool {
	return errors.Is(err, whisker.ErrUnauthorized) || errors.Is(err, whisker.ErrClosed)
}
