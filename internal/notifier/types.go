package notifier

import (
	"time"

	"seattlehumus/internal/litter"
)

// Stage names the dispatch step that failed.
type Stage string

const (
	StageSticker Stage = "sticker"
	StageMessage Stage = "message"
)

// DispatchError wraps the transport error of a failed dispatch.
type DispatchError struct {
	Stage Stage
	Cat   litter.Cat
	Err   error
}

func (e *DispatchError) Error() string {
	return "dispatch " + string(e.Stage) + " for " + string(e.Cat) + ": " + e.Err.Error()
}

func (e *DispatchError) Unwrap() error { return e.Err }

// DefaultSendTimeout matches the chat transport's per-request HTTP timeout.
// The Telegram client takes no context, so SendTimeout only bounds the wait
// for its rate limiter; the HTTP timeout bounds the request itself.
const DefaultSendTimeout = 10 * time.Second

// Config controls retries of individual sends. Retries are off by default:
// a retried send whose first attempt timed out may post twice.
type Config struct {
	RetryMax      int
	RetryBase     time.Duration
	RetryMaxDelay time.Duration
	SendTimeout   time.Duration
	HistorySize   int
}

// Request describes one weighed visit to announce.
type Request struct {
	DeviceID  string
	Device    string
	EventTime time.Time
	Cat       litter.Cat
	Weight    float64
}

type HistoryItem struct {
	At       time.Time
	Cat      litter.Cat
	Weight   float64
	Sticker  string
	Text     string
	Fallback bool
}

// NotificationEvent is the payload of notification.* bus events.
type NotificationEvent struct {
	DeviceID  string    `json:"device_id,omitempty"`
	Device    string    `json:"device,omitempty"`
	EventTime time.Time `json:"event_time"`
	Cat       string    `json:"cat"`
	Weight    float64   `json:"weight"`
	Sticker   string    `json:"sticker,omitempty"`
	Text      string    `json:"text,omitempty"`
	Fallback  bool      `json:"fallback,omitempty"`
	Stage     string    `json:"stage,omitempty"`
	Error     string    `json:"error,omitempty"`
	At        time.Time `json:"at"`
}
