package logx

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// ChatSink delivers formatted log lines to a chat (the Telegram log chat).
type ChatSink interface {
	SendLog(ctx context.Context, text string) error
}

const (
	chatQueueSize   = 256
	chatMaxLen      = 3500
	chatMaxValue    = 600
	chatSendTimeout = 10 * time.Second
)

// chatLeadKeys are printed first, in this order, when present.
var chatLeadKeys = []string{"comp", "device", "cat", "weight"}

// chatForwarder is a zerolog.LevelWriter that queues lines for a ChatSink.
// Writes never block the caller; overflow is counted and dropped.
type chatForwarder struct {
	sink  ChatSink
	queue chan string

	mu      sync.Mutex
	limiter *rate.Limiter
	min     zerolog.Level

	dropped atomic.Uint64

	startOnce sync.Once
	stopOnce  sync.Once
	started   atomic.Bool
	quit      chan struct{}
	done      chan struct{}
}

func newChatForwarder(sink ChatSink) *chatForwarder {
	return &chatForwarder{
		sink:  sink,
		queue: make(chan string, chatQueueSize),
		min:   zerolog.WarnLevel,
		quit:  make(chan struct{}),
		done:  make(chan struct{}),
	}
}

func (c *chatForwarder) configure(floor zerolog.Level, perSec int) {
	perSec = max(1, perSec)
	c.mu.Lock()
	c.min = floor
	if c.limiter == nil {
		c.limiter = rate.NewLimiter(rate.Limit(perSec), perSec)
	} else {
		c.limiter.SetLimit(rate.Limit(perSec))
		c.limiter.SetBurst(perSec)
	}
	c.mu.Unlock()
}

func (c *chatForwarder) start() {
	c.startOnce.Do(func() {
		c.started.Store(true)
		go c.run()
	})
}

// stop ends the worker after it has sent what is queued or ctx expires.
func (c *chatForwarder) stop(ctx context.Context) {
	if !c.started.Load() {
		return
	}
	c.stopOnce.Do(func() { close(c.quit) })
	select {
	case <-c.done:
	case <-ctx.Done():
	}
}

func (c *chatForwarder) run() {
	defer close(c.done)
	for {
		select {
		case line := <-c.queue:
			c.send(line)
		case <-c.quit:
			for {
				select {
				case line := <-c.queue:
					c.send(line)
				default:
					return
				}
			}
		}
	}
}

func (c *chatForwarder) send(line string) {
	ctx, cancel := context.WithTimeout(context.Background(), chatSendTimeout)
	defer cancel()
	if err := c.sink.SendLog(ctx, line); err != nil {
		c.dropped.Add(1)
	}
}

func (c *chatForwarder) Write(p []byte) (int, error) {
	return c.WriteLevel(zerolog.InfoLevel, p)
}

func (c *chatForwarder) WriteLevel(level zerolog.Level, p []byte) (int, error) {
	c.mu.Lock()
	floor, lim := c.min, c.limiter
	c.mu.Unlock()

	if level < floor {
		return len(p), nil
	}
	if lim != nil && !lim.Allow() {
		c.dropped.Add(1)
		return len(p), nil
	}
	line := formatChatLine(p)
	if line == "" {
		return len(p), nil
	}
	select {
	case c.queue <- line:
	default:
		c.dropped.Add(1)
	}
	return len(p), nil
}

// formatChatLine renders one JSON log line as a short chat message: the level
// and message on the first line, then one "key: value" line per field.
// Anything that is not JSON is sent trimmed as is.
func formatChatLine(p []byte) string {
	raw := strings.TrimSpace(string(p))
	var m map[string]any
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return clip(raw, chatMaxLen)
	}

	var b strings.Builder
	if lvl, _ := m["level"].(string); lvl != "" {
		b.WriteString(strings.ToUpper(lvl))
		b.WriteByte(' ')
	}
	msg, _ := m["message"].(string)
	b.WriteString(msg)

	line := func(k string) {
		fmt.Fprintf(&b, "\n%s: %s", k, clip(fmt.Sprint(m[k]), chatMaxValue))
	}
	for _, k := range chatLeadKeys {
		if _, ok := m[k]; ok {
			line(k)
		}
	}
	rest := make([]string, 0, len(m))
	for k := range m {
		switch k {
		case "time", "level", "message", zerolog.CallerFieldName:
			continue
		}
		if slices.Contains(chatLeadKeys, k) {
			continue
		}
		rest = append(rest, k)
	}
	slices.Sort(rest)
	for _, k := range rest {
		line(k)
	}
	return clip(b.String(), chatMaxLen)
}

func clip(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	if n < 10 {
		return s[:n]
	}
	return s[:n-3] + "..."
}
