package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	logx "seattlehumus/pkg/logx"
)

type Config struct {
	// Timezone is an IANA name; empty means local time.
	Timezone string
}

// Job is a scheduled unit of work.
type Job func(ctx context.Context) error

// Service triggers jobs on their schedules.
type Service struct {
	log    logx.Logger
	loc    *time.Location
	parser cron.Parser

	mu      sync.Mutex
	c       *cron.Cron
	ctx     context.Context
	cancel  context.CancelFunc
	entries map[string]cron.EntryID
}

func New(cfg Config, log logx.Logger) (*Service, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	loc := time.Local
	if tz := strings.TrimSpace(cfg.Timezone); tz != "" {
		l, err := time.LoadLocation(tz)
		if err != nil {
			return nil, fmt.Errorf("scheduler timezone %q: %w", tz, err)
		}
		loc = l
	}
	// SecondOptional allows both 5-field and 6-field (with seconds) specs.
	parser := cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	s := &Service{
		log:     log,
		loc:     loc,
		parser:  parser,
		entries: map[string]cron.EntryID{},
	}
	s.c = cron.New(
		cron.WithParser(parser),
		cron.WithLocation(loc),
		cron.WithChain(cron.Recover(cronLogger{log}), cron.SkipIfStillRunning(cronLogger{log})),
	)
	return s, nil
}

// Add registers job under name, replacing any job with the same name. It
// returns the first time the job will run.
func (s *Service) Add(name, schedule string, timeout time.Duration, job Job) (time.Time, error) {
	if strings.TrimSpace(name) == "" {
		return time.Time{}, errors.New("name required")
	}
	if job == nil {
		return time.Time{}, errors.New("job required")
	}
	sch, err := ParseSchedule(schedule)
	if err != nil {
		return time.Time{}, err
	}
	cs, err := s.parser.Parse(sch.Expr)
	if err != nil {
		return time.Time{}, fmt.Errorf("schedule %q: %w", schedule, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.entries[name]; ok {
		s.c.Remove(id)
	}
	id := s.c.Schedule(cs, cron.FuncJob(func() { s.run(name, timeout, job) }))
	s.entries[name] = id

	next := cs.Next(time.Now().In(s.loc))
	s.log.Info("schedule registered",
		logx.String("name", name), logx.String("spec", sch.Expr), logx.String("source", sch.Source), logx.Time("next", next))
	return next, nil
}

// Next returns the next run time of the named job.
func (s *Service) Next(name string) (time.Time, bool) {
	s.mu.Lock()
	id, ok := s.entries[name]
	s.mu.Unlock()
	if !ok {
		return time.Time{}, false
	}
	e := s.c.Entry(id)
	if !e.Valid() {
		return time.Time{}, false
	}
	return e.Next, true
}

// Start begins triggering. Jobs run with a context derived from ctx.
func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.c.Start()
	s.log.Info("scheduler started", logx.String("tz", s.loc.String()), logx.Int("schedules", len(s.entries)))
}

// Stop stops triggering and waits for running jobs until ctx is done.
func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	select {
	case <-s.c.Stop().Done():
	case <-ctx.Done():
	}
	cancel()
	s.log.Info("scheduler stopped")
}

func (s *Service) run(name string, timeout time.Duration, job Job) {
	s.mu.Lock()
	parent := s.ctx
	s.mu.Unlock()
	if parent == nil || parent.Err() != nil {
		return
	}
	ctx, cancel := parent, context.CancelFunc(func() {})
	if timeout > 0 {
		ctx, cancel = context.WithTimeout(parent, timeout)
	}
	defer cancel()

	start := time.Now()
	if err := job(ctx); err != nil {
		s.log.Warn("scheduled job failed", logx.String("name", name), logx.Duration("took", time.Since(start)), logx.Err(err))
		return
	}
	s.log.Debug("scheduled job done", logx.String("name", name), logx.Duration("took", time.Since(start)))
}

// cronLogger adapts logx to cron.Logger.
type cronLogger struct{ log logx.Logger }

func (l cronLogger) Info(msg string, kv ...any) {
	l.log.Debug("cron: "+msg, kvFields(kv)...)
}

func (l cronLogger) Error(err error, msg string, kv ...any) {
	l.log.Error("cron: "+msg, append(kvFields(kv), logx.Err(err))...)
}

func kvFields(kv []any) []logx.Field {
	out := make([]logx.Field, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		out = append(out, logx.Any(fmt.Sprint(kv[i]), kv[i+1]))
	}
	return out
}
