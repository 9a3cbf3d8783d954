package notifier

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"seattlehumus/internal/eventbus"
	"seattlehumus/internal/litter"
	kit "seattlehumus/internal/transport"
	logx "seattlehumus/pkg/logx"
)

type call struct {
	kind  string // "sticker" or "text"
	value string
}

type fakeSender struct {
	mu         sync.Mutex
	calls      []call
	stickerErr []error // consumed one per call
	textErr    error
}

func (f *fakeSender) SendSticker(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call{"sticker", id})
	if len(f.stickerErr) > 0 {
		err := f.stickerErr[0]
		f.stickerErr = f.stickerErr[1:]
		return err
	}
	return nil
}

func (f *fakeSender) SendText(_ context.Context, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call{"text", text})
	return f.textErr
}

type fakeGen struct {
	text string
	err  error
}

func (g fakeGen) Generate(context.Context, litter.Cat, float64) (string, error) {
	return g.text, g.err
}

func newTestDispatcher(sender kit.Sender, gen fakeGen, opts ...Option) *Dispatcher {
	opts = append([]Option{WithRand(rand.New(rand.NewSource(1)))}, opts...)
	return New(Config{}, sender, gen, logx.Nop(), opts...)
}

func TestDispatchSendsStickerThenText(t *testing.T) {
	t.Parallel()

	s := &fakeSender{}
	bus := eventbus.New()
	events, unsub := bus.Subscribe(4, eventbus.TypeNotificationSent)
	defer unsub()

	d := newTestDispatcher(s, fakeGen{text: "dovey did a 15"}, WithBus(bus))
	err := d.Dispatch(context.Background(), Request{DeviceID: "lr4-1", Cat: litter.Paloma, Weight: 15})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}

	if len(s.calls) != 2 || s.calls[0].kind != "sticker" || s.calls[1].kind != "text" {
		t.Fatalf("calls=%+v", s.calls)
	}
	if !slices.Contains(litter.DefaultStickers()[litter.Paloma], s.calls[0].value) {
		t.Fatalf("sticker %q is not a Paloma sticker", s.calls[0].value)
	}
	if s.calls[1].value != "dovey did a 15" {
		t.Fatalf("text=%q", s.calls[1].value)
	}

	select {
	case e := <-events:
		ev := e.Data.(NotificationEvent)
		if ev.Cat != "Paloma" || ev.DeviceID != "lr4-1" || ev.Fallback {
			t.Fatalf("event=%+v", ev)
		}
	default:
		t.Fatalf("no notification.sent event")
	}
	if h := d.Snapshot(); len(h) != 1 || h[0].Cat != litter.Paloma {
		t.Fatalf("history=%+v", h)
	}
}

func TestDispatchFallbackText(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		gen  fakeGen
	}{
		{"generator error", fakeGen{err: errors.New("rate limited")}},
		{"empty output", fakeGen{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			s := &fakeSender{}
			d := newTestDispatcher(s, tt.gen)
			if err := d.Dispatch(context.Background(), Request{Cat: litter.Paloma, Weight: 15}); err != nil {
				t.Fatalf("Dispatch: %v", err)
			}
			want := "Paloma just used the bathroom and weighs 15.00 lbs."
			if got := s.calls[len(s.calls)-1].value; got != want {
				t.Fatalf("text=%q want %q", got, want)
			}
			if h := d.Snapshot(); !h[0].Fallback {
				t.Fatalf("history not marked fallback")
			}
		})
	}
}

func TestDispatchWithoutGenerator(t *testing.T) {
	t.Parallel()

	s := &fakeSender{}
	d := New(Config{}, s, nil, logx.Nop())
	if err := d.Dispatch(context.Background(), Request{Cat: litter.Margarita, Weight: 11.5}); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if got := s.calls[1].value; got != "Margarita just used the bathroom and weighs 11.50 lbs." {
		t.Fatalf("text=%q", got)
	}
}

func TestDispatchSkipsInvalidSticker(t *testing.T) {
	t.Parallel()

	s := &fakeSender{stickerErr: []error{fmt.Errorf("%w: gone", kit.ErrInvalidSticker)}}
	d := newTestDispatcher(s, fakeGen{text: "margie!"})
	if err := d.Dispatch(context.Background(), Request{Cat: litter.Margarita, Weight: 11}); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if len(s.calls) != 2 || s.calls[1].value != "margie!" {
		t.Fatalf("calls=%+v", s.calls)
	}
	if h := d.Snapshot(); h[0].Sticker != "" {
		t.Fatalf("skipped sticker recorded as sent: %q", h[0].Sticker)
	}
}

func TestDispatchStageErrors(t *testing.T) {
	t.Parallel()

	boom := errors.New("telegram down")
	tests := []struct {
		name      string
		sender    *fakeSender
		wantStage Stage
		wantCalls int
	}{
		{"sticker fails", &fakeSender{stickerErr: []error{boom}}, StageSticker, 1},
		{"text fails", &fakeSender{textErr: boom}, StageMessage, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			bus := eventbus.New()
			failed, unsub := bus.Subscribe(4, eventbus.TypeNotificationFailed)
			defer unsub()

			d := newTestDispatcher(tt.sender, fakeGen{text: "hi"}, WithBus(bus))
			err := d.Dispatch(context.Background(), Request{Cat: litter.Paloma, Weight: 14})

			var de *DispatchError
			if !errors.As(err, &de) {
				t.Fatalf("err=%v is not a DispatchError", err)
			}
			if de.Stage != tt.wantStage || !errors.Is(err, boom) {
				t.Fatalf("stage=%s err=%v", de.Stage, err)
			}
			if len(tt.sender.calls) != tt.wantCalls {
				t.Fatalf("calls=%+v", tt.sender.calls)
			}
			if len(failed) != 1 {
				t.Fatalf("want one notification.failed event, got %d", len(failed))
			}
			if len(d.Snapshot()) != 0 {
				t.Fatalf("failed dispatch recorded in history")
			}
		})
	}
}

func TestDispatchRetriesTransientSticker(t *testing.T) {
	t.Parallel()

	s := &fakeSender{stickerErr: []error{errors.New("timeout")}}
	d := New(Config{RetryMax: 1, RetryBase: time.Millisecond, RetryMaxDelay: time.Millisecond},
		s, fakeGen{text: "ok"}, logx.Nop(), WithRand(rand.New(rand.NewSource(1))))
	if err := d.Dispatch(context.Background(), Request{Cat: litter.Paloma, Weight: 14}); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if len(s.calls) != 3 || s.calls[0].kind != "sticker" || s.calls[1].kind != "sticker" {
		t.Fatalf("calls=%+v", s.calls)
	}
}

func TestRetryDelayIsCapped(t *testing.T) {
	t.Parallel()

	cfg := Config{RetryBase: 100 * time.Millisecond, RetryMaxDelay: time.Second}
	for attempt := 1; attempt <= 10; attempt++ {
		if d := retryDelay(cfg, attempt); d <= 0 || d > time.Second {
			t.Fatalf("attempt %d: delay %v out of range", attempt, d)
		}
	}
}

func TestSetStickers(t *testing.T) {
	t.Parallel()

	s := &fakeSender{}
	d := newTestDispatcher(s, fakeGen{text: "ok"})
	d.SetStickers(litter.StickerTable{litter.Margarita: {"only-one"}})

	if err := d.Dispatch(context.Background(), Request{Cat: litter.Margarita, Weight: 11}); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if s.calls[0].value != "only-one" {
		t.Fatalf("sticker=%q", s.calls[0].value)
	}

	s.calls = nil
	if err := d.Dispatch(context.Background(), Request{Cat: litter.Paloma, Weight: 15}); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if len(s.calls) != 1 || s.calls[0].kind != "text" {
		t.Fatalf("cat without stickers should get text only, calls=%+v", s.calls)
	}
}

type slowGen struct{ delay time.Duration }

func (g slowGen) Generate(ctx context.Context, cat litter.Cat, _ float64) (string, error) {
	select {
	case <-time.After(g.delay):
	case <-ctx.Done():
		return "", ctx.Err()
	}
	return "msg " + cat.String(), nil
}

func TestConcurrentDispatchesDoNotInterleave(t *testing.T) {
	t.Parallel()

	s := &fakeSender{}
	d := New(Config{}, s, slowGen{delay: 50 * time.Millisecond}, logx.Nop(),
		WithRand(rand.New(rand.NewSource(1))),
		WithStickers(litter.StickerTable{litter.Margarita: {"stk-Margarita"}, litter.Paloma: {"stk-Paloma"}}))

	var wg sync.WaitGroup
	for _, req := range []Request{{Cat: litter.Paloma, Weight: 15}, {Cat: litter.Margarita, Weight: 11}} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := d.Dispatch(context.Background(), req); err != nil {
				t.Errorf("Dispatch(%s): %v", req.Cat, err)
			}
		}()
	}
	wg.Wait()

	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.calls) != 4 {
		t.Fatalf("calls=%+v", s.calls)
	}
	for i := 0; i < len(s.calls); i += 2 {
		sticker, text := s.calls[i], s.calls[i+1]
		if sticker.kind != "sticker" || text.kind != "text" {
			t.Fatalf("chat interleaved: %+v", s.calls)
		}
		if "stk-"+strings.TrimPrefix(text.value, "msg ") != sticker.value {
			t.Fatalf("text %q follows sticker %q", text.value, sticker.value)
		}
	}
}

func TestDefaultSendTimeoutMatchesTransport(t *testing.T) {
	t.Parallel()

	d := New(Config{}, &fakeSender{}, nil, logx.Nop())
	if d.cfg.SendTimeout != DefaultSendTimeout || DefaultSendTimeout != 10*time.Second {
		t.Fatalf("SendTimeout=%v", d.cfg.SendTimeout)
	}
}
