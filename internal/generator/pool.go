package generator

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"seattlehumus/internal/litter"
	rtsup "seattlehumus/internal/runtime/supervisor"
	logx "seattlehumus/pkg/logx"
)

var (
	ErrQueueFull = errors.New("generator: queue full")
	ErrStopped   = errors.New("generator: pool stopped")
)

type PoolConfig struct {
	Workers   int
	QueueSize int
}

type result struct {
	text string
	err  error
}

type job struct {
	ctx    context.Context
	cat    litter.Cat
	weight float64
	out    chan result
}

// Pool runs a Generator on a fixed number of workers so slow completions
// never run on the poll loop goroutine.
type Pool struct {
	gen Generator
	cfg PoolConfig
	log logx.Logger

	mu     sync.Mutex
	queue  chan job
	sup    *rtsup.Supervisor
	closed bool
}

var _ Generator = (*Pool)(nil)

func NewPool(gen Generator, cfg PoolConfig, log logx.Logger) *Pool {
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 16
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Pool{gen: gen, cfg: cfg, log: log}
}

// Start launches the workers. It is idempotent.
func (p *Pool) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.queue != nil || p.closed {
		return
	}
	p.queue = make(chan job, p.cfg.QueueSize)
	p.sup = rtsup.New(ctx, rtsup.WithLogger(p.log))
	q := p.queue
	for i := 0; i < p.cfg.Workers; i++ {
		p.sup.GoRestart(fmt.Sprintf("generator.worker.%d", i), func(c context.Context) error {
			p.work(c, q)
			return c.Err()
		})
	}
}

// Stop closes the queue and waits for in-flight jobs until ctx is done.
func (p *Pool) Stop(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	q, sup := p.queue, p.sup
	p.queue = nil
	p.mu.Unlock()

	if q == nil {
		return nil
	}
	close(q)
	if err := sup.Wait(ctx); err != nil {
		sup.Cancel()
		return err
	}
	return nil
}

// Generate queues a job and waits for its result or for ctx.
func (p *Pool) Generate(ctx context.Context, cat litter.Cat, weight float64) (string, error) {
	j := job{ctx: ctx, cat: cat, weight: weight, out: make(chan result, 1)}

	p.mu.Lock()
	q := p.queue
	if q == nil {
		p.mu.Unlock()
		return "", ErrStopped
	}
	select {
	case q <- j:
	default:
		p.mu.Unlock()
		return "", ErrQueueFull
	}
	p.mu.Unlock()

	select {
	case r := <-j.out:
		return r.text, r.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (p *Pool) work(ctx context.Context, q <-chan job) {
	for {
		select {
		case <-ctx.Done():
			return
		case j, ok := <-q:
			if !ok {
				return
			}
			if err := j.ctx.Err(); err != nil {
				j.out <- result{err: err}
				continue
			}
			text, err := p.gen.Generate(j.ctx, j.cat, j.weight)
			j.out <- result{text: text, err: err}
		}
	}
}
