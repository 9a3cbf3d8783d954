package notifier

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"seattlehumus/internal/eventbus"
	"seattlehumus/internal/generator"
	"seattlehumus/internal/litter"
	"seattlehumus/internal/metrics"
	kit "seattlehumus/internal/transport"
	logx "seattlehumus/pkg/logx"
)

// Dispatcher posts a sticker and a message for each request.
//
// It is safe for concurrent use.
type Dispatcher struct {
	cfg      Config
	sender   kit.Sender
	gen      generator.Generator
	stickers litter.StickerTable // guarded by rngMu after New
	log      logx.Logger
	bus      eventbus.Bus
	metrics  *metrics.Manager
	now      func() time.Time

	// chatMu keeps one notification's sticker and text together in the chat.
	chatMu sync.Mutex

	// rngMu guards rng and stickers.
	rngMu sync.Mutex
	rng   *rand.Rand

	hmu     sync.Mutex
	history []HistoryItem
}

type Option func(*Dispatcher)

func WithBus(bus eventbus.Bus) Option { return func(d *Dispatcher) { d.bus = bus } }

func WithMetrics(m *metrics.Manager) Option { return func(d *Dispatcher) { d.metrics = m } }

// WithRand sets the sticker draw source.
func WithRand(rng *rand.Rand) Option { return func(d *Dispatcher) { d.rng = rng } }

func WithClock(now func() time.Time) Option { return func(d *Dispatcher) { d.now = now } }

func WithStickers(t litter.StickerTable) Option { return func(d *Dispatcher) { d.stickers = t } }

// New builds a dispatcher. gen may be nil, in which case every message uses
// generator.Fallback.
func New(cfg Config, sender kit.Sender, gen generator.Generator, log logx.Logger, opts ...Option) *Dispatcher {
	if cfg.RetryMax < 0 {
		cfg.RetryMax = 0
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = 500 * time.Millisecond
	}
	if cfg.RetryMaxDelay <= 0 {
		cfg.RetryMaxDelay = 10 * time.Second
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = DefaultSendTimeout
	}
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = 100
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	d := &Dispatcher{
		cfg:      cfg,
		sender:   sender,
		gen:      gen,
		stickers: litter.DefaultStickers(),
		log:      log,
		now:      time.Now,
	}
	for _, o := range opts {
		o(d)
	}
	if d.rng == nil {
		d.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return d
}

// Dispatch announces one weighed visit: sticker, then generated text.
// Concurrent calls are serialized so their messages never interleave.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) error {
	d.chatMu.Lock()
	defer d.chatMu.Unlock()

	log := d.log.With(logx.String("cat", req.Cat.String()), logx.Float64("weight", req.Weight))
	ev := NotificationEvent{
		DeviceID:  req.DeviceID,
		Device:    req.Device,
		EventTime: req.EventTime,
		Cat:       req.Cat.String(),
		Weight:    req.Weight,
	}

	sticker, ok := d.chooseSticker(req.Cat)
	if !ok {
		log.Warn("no stickers for cat; sending text only")
	} else {
		ev.Sticker = sticker
		err := d.send(ctx, func(c context.Context) error { return d.sender.SendSticker(c, sticker) })
		switch {
		case err == nil:
		case errors.Is(err, kit.ErrInvalidSticker):
			log.Warn("sticker rejected; skipping it", logx.String("sticker", sticker), logx.Err(err))
			d.metrics.StickerSkipped()
			ev.Sticker = ""
		default:
			return d.fail(ev, &DispatchError{Stage: StageSticker, Cat: req.Cat, Err: err})
		}
	}

	text, fallback := d.message(ctx, log, req)
	ev.Text, ev.Fallback = text, fallback
	if err := d.send(ctx, func(c context.Context) error { return d.sender.SendText(c, text) }); err != nil {
		return d.fail(ev, &DispatchError{Stage: StageMessage, Cat: req.Cat, Err: err})
	}

	now := d.now()
	ev.At = now
	d.appendHistory(HistoryItem{At: now, Cat: req.Cat, Weight: req.Weight, Sticker: ev.Sticker, Text: text, Fallback: fallback})
	d.metrics.NotificationSent(req.Cat.String())
	d.publish(eventbus.TypeNotificationSent, ev)
	log.Info("notification sent", logx.Bool("fallback", fallback))
	return nil
}

// SetStickers swaps the sticker table. Cats missing from t keep no stickers.
func (d *Dispatcher) SetStickers(t litter.StickerTable) {
	d.rngMu.Lock()
	d.stickers = t
	d.rngMu.Unlock()
}

// Snapshot returns the most recent notifications, oldest first.
func (d *Dispatcher) Snapshot() []HistoryItem {
	d.hmu.Lock()
	defer d.hmu.Unlock()
	return append([]HistoryItem(nil), d.history...)
}

func (d *Dispatcher) chooseSticker(cat litter.Cat) (string, bool) {
	d.rngMu.Lock()
	defer d.rngMu.Unlock()
	return d.stickers.Choose(cat, d.rng)
}

// message returns the generated text, or the fallback text when generation
// is unavailable, fails or comes back empty.
func (d *Dispatcher) message(ctx context.Context, log logx.Logger, req Request) (string, bool) {
	if d.gen == nil {
		d.metrics.MessageGenerated(true)
		return generator.Fallback(req.Cat, req.Weight), true
	}
	text, err := d.gen.Generate(ctx, req.Cat, req.Weight)
	if err == nil && text == "" {
		err = generator.ErrEmpty
	}
	if err != nil {
		log.Warn("message generation failed; using fallback", logx.Err(err))
		d.metrics.MessageGenerated(true)
		return generator.Fallback(req.Cat, req.Weight), true
	}
	d.metrics.MessageGenerated(false)
	return text, false
}

func (d *Dispatcher) fail(ev NotificationEvent, err *DispatchError) error {
	ev.Stage = string(err.Stage)
	ev.Error = err.Err.Error()
	ev.At = d.now()
	d.metrics.DispatchFailed(string(err.Stage))
	d.publish(eventbus.TypeNotificationFailed, ev)
	return err
}

func (d *Dispatcher) publish(typ string, ev NotificationEvent) {
	if d.bus == nil {
		return
	}
	d.bus.Publish(eventbus.Event{Type: typ, Time: ev.At, Data: ev})
}

func (d *Dispatcher) appendHistory(item HistoryItem) {
	d.hmu.Lock()
	d.history = append(d.history, item)
	if len(d.history) > d.cfg.HistorySize {
		d.history = d.history[len(d.history)-d.cfg.HistorySize:]
	}
	d.hmu.Unlock()
}

// send runs fn with a per-attempt timeout, retrying transient failures
// up to cfg.RetryMax times.
func (d *Dispatcher) send(ctx context.Context, fn func(context.Context) error) error {
	attempts := 1 + d.cfg.RetryMax
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, d.cfg.SendTimeout)
		err = fn(callCtx)
		cancel()
		if err == nil || errors.Is(err, kit.ErrInvalidSticker) || attempt == attempts {
			return err
		}
		d.log.Debug("send failed; retrying", logx.Err(err), logx.Int("attempt", attempt), logx.Int("max", attempts))

		t := time.NewTimer(retryDelay(d.cfg, attempt))
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			return err
		}
	}
	return err
}

// retryDelay is the jittered exponential delay before attempt+1.
func retryDelay(cfg Config, attempt int) time.Duration {
	delay := cfg.RetryBase
	for i := 1; i < attempt && delay < cfg.RetryMaxDelay; i++ {
		delay *= 2
	}
	delay = min(delay, cfg.RetryMaxDelay)
	// Jitter 0.7..1.3
	j := 0.7 + rand.Float64()*0.6
	return min(time.Duration(float64(delay)*j), cfg.RetryMaxDelay)
}
