package transport

import (
	"context"
	"errors"
)

// ErrInvalidSticker is returned when the chat platform does not recognise a
// sticker file id. The dispatcher treats it as a skipped sticker.
var ErrInvalidSticker = errors.New("invalid sticker file id")

// Sender delivers notifications to a single configured chat.
type Sender interface {
	SendText(ctx context.Context, text string) error
	SendSticker(ctx context.Context, stickerID string) error
}

// ChatTarget addresses a chat by numeric id or by public @username.
type ChatTarget struct {
	ChatID   int64
	Username string
}

func (t ChatTarget) IsZero() bool { return t.ChatID == 0 && t.Username == "" }
