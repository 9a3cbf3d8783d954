// Package storage keeps an append-only audit log of notifications.
//
// The log is for people reading it later. The watcher never reads it back,
// so it has no effect on which events are announced.
package storage
