package supervisor

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	logx "seattlehumus/pkg/logx"
)

type RestartOption func(*restartPolicy)

type restartPolicy struct {
	min, max    time.Duration
	healthy     time.Duration
	maxRestarts int // 0 = unlimited
}

// WithRestartBackoff bounds the delay between restarts. The delay doubles per
// consecutive failure.
func WithRestartBackoff(min, max time.Duration) RestartOption {
	return func(p *restartPolicy) {
		if min > 0 {
			p.min = min
		}
		if max > 0 {
			p.max = max
		}
	}
}

// WithMaxRestarts gives up after n restarts; the first run is not one.
func WithMaxRestarts(n int) RestartOption {
	return func(p *restartPolicy) { p.maxRestarts = max(0, n) }
}

// WithHealthyAfter resets the backoff when a run lasted at least d.
func WithHealthyAfter(d time.Duration) RestartOption {
	return func(p *restartPolicy) {
		if d > 0 {
			p.healthy = d
		}
	}
}

// delay is the jittered wait before restart number n (1-based).
func (p restartPolicy) delay(n int) time.Duration {
	d := p.min
	for i := 1; i < n && d < p.max; i++ {
		d *= 2
	}
	d = min(d, p.max)
	if spread := int64(d) / 5; spread > 0 {
		d += time.Duration(rand.Int64N(spread + 1))
	}
	return d
}

// GoRestart runs fn until it returns nil or the context ends, restarting it
// after errors and panics.
func (s *Supervisor) GoRestart(name string, fn func(ctx context.Context) error, opts ...RestartOption) {
	if fn == nil {
		return
	}
	p := restartPolicy{min: 250 * time.Millisecond, max: 30 * time.Second, healthy: 30 * time.Second}
	for _, o := range opts {
		o(&p)
	}
	p.max = max(p.max, p.min)

	s.spawn(func() {
		failures := 0
		for {
			began := time.Now()
			err := s.call(name, fn)
			if err == nil || s.ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return
			}
			if time.Since(began) >= p.healthy {
				failures = 0
			}
			failures++
			if p.maxRestarts > 0 && failures > p.maxRestarts {
				s.log.Error("giving up on goroutine",
					logx.String("name", name), logx.Int("restarts", failures-1), logx.Err(err))
				s.fail(fmt.Errorf("%s: %w", name, err))
				return
			}

			wait := p.delay(failures)
			s.log.Warn("restarting goroutine",
				logx.String("name", name), logx.Duration("backoff", wait), logx.Err(err))
			if s.onRestart != nil {
				s.onRestart(name, err)
			}
			t := time.NewTimer(wait)
			select {
			case <-s.ctx.Done():
				t.Stop()
				return
			case <-t.C:
			}
		}
	})
}
