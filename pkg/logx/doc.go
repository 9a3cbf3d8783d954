// Package logx is the structured logger used across seattlehumus.
//
// Logger wraps zerolog with field helpers and a zero value that discards
// everything. Loggers handed out by a Service follow its configuration, so
// a config reload changes level and sinks without re-plumbing components.
// Warnings and errors can also be forwarded to a Telegram chat.
package logx
