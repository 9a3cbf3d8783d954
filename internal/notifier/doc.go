// Package notifier announces a weighed cat in the chat.
//
// A notification is a sticker drawn from the cat's pool followed by a short
// generated message. The sticker always goes first. The two sends are not
// atomic: a failed message leaves the sticker in the chat.
//
// # Failures
//
// Dispatch reports failures as *DispatchError so callers can tell a failed
// sticker (nothing was posted) from a failed message (the sticker is already
// out). A sticker Telegram does not recognise is skipped, not failed.
//
// # History
//
// The dispatcher keeps a small in-memory history of recent notifications and
// publishes every outcome on the event bus.
package notifier
