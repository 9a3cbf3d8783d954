package watch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"seattlehumus/internal/litter"
	"seattlehumus/internal/notifier"
)

var t0 = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func weighed(min int, lbs float64) litter.RawHistoryEvent {
	return litter.RawHistoryEvent{
		Action:    fmt.Sprintf("Pet Weight Recorded: %.1f lbs", lbs),
		Timestamp: t0.Add(time.Duration(min) * time.Minute),
	}
}

type fakeDevice struct {
	id, name string

	mu      sync.Mutex
	history []litter.RawHistoryEvent
	err     error
}

func (d *fakeDevice) ID() string   { return d.id }
func (d *fakeDevice) Name() string { return d.name }

func (d *fakeDevice) History(context.Context) ([]litter.RawHistoryEvent, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return nil, d.err
	}
	return append([]litter.RawHistoryEvent(nil), d.history...), nil
}

func (d *fakeDevice) add(evs ...litter.RawHistoryEvent) {
	d.mu.Lock()
	d.history = append(d.history, evs...)
	d.mu.Unlock()
}

func (d *fakeDevice) fail(err error) {
	d.mu.Lock()
	d.err = err
	d.mu.Unlock()
}

type fakeSession struct {
	devices []litter.Device
	closed  bool
}

func (s *fakeSession) Devices() []litter.Device { return s.devices }

func (s *fakeSession) Close(context.Context) error {
	s.closed = true
	return nil
}

// fakeConnector hands out sessions in order; the last one repeats.
type fakeConnector struct {
	sessions []*fakeSession
	err      error
	calls    int
}

func (c *fakeConnector) Connect(context.Context) (litter.Session, error) {
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	if len(c.sessions) == 0 {
		return nil, errors.New("no sessions")
	}
	s := c.sessions[0]
	if len(c.sessions) > 1 {
		c.sessions = c.sessions[1:]
	}
	return s, nil
}

type fakeDispatcher struct {
	mu   sync.Mutex
	reqs []notifier.Request
	errs []error // consumed one per call
}

func (f *fakeDispatcher) Dispatch(_ context.Context, req notifier.Request) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		if err != nil {
			return err
		}
	}
	f.reqs = append(f.reqs, req)
	return nil
}

func (f *fakeDispatcher) sent() []notifier.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]notifier.Request(nil), f.reqs...)
}

type fakeNotifier struct {
	mu       sync.Mutex
	states   []string
	watchdog chan struct{}
}

func (n *fakeNotifier) record(s string) error {
	n.mu.Lock()
	n.states = append(n.states, s)
	n.mu.Unlock()
	return nil
}

func (n *fakeNotifier) Ready() error { return n.record("READY") }

func (n *fakeNotifier) Watchdog() error {
	if n.watchdog != nil {
		select {
		case n.watchdog <- struct{}{}:
		default:
		}
	}
	return n.record("WATCHDOG")
}

func (n *fakeNotifier) Stopping() error       { return n.record("STOPPING") }
func (n *fakeNotifier) Status(s string) error { return n.record("STATUS=" + s) }

func (n *fakeNotifier) seen() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.states...)
}
