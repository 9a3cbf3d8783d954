package storage

import (
	"errors"
	"time"
)

var (
	ErrDisabled      = errors.New("storage disabled")
	ErrUnknownDriver = errors.New("unknown storage driver")
	ErrNoPath        = errors.New("storage path is required")
)

// Config selects the audit log backend. Driver is "file" (JSON Lines) or
// "sqlite"; empty or "none" turns the audit log off.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// Record kinds.
const (
	KindSent   = "sent"
	KindFailed = "failed"
)

// Record is one notification outcome.
type Record struct {
	At        time.Time `json:"at"`
	Kind      string    `json:"kind"`
	RunID     string    `json:"run_id,omitempty"`
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
}
