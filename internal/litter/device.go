package litter

import "context"

// Device is one litter box in the account.
type Device interface {
	// ID is stable across sessions and keys the device's watermark.
	ID() string
	Name() string
	History(ctx context.Context) ([]RawHistoryEvent, error)
}

// Session is a logged-in device account.
type Session interface {
	Devices() []Device
	Close(ctx context.Context) error
}

// Connector opens device account sessions.
type Connector interface {
	Connect(ctx context.Context) (Session, error)
}
