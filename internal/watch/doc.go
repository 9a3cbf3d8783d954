// Package watch polls the device account for new weight readings and hands
// them to the notifier.
//
// A Watcher owns the per-device watermarks and runs on a single goroutine.
// LatestReport is the stateless one-shot variant: it announces the latest
// reading per cat and keeps nothing between runs.
package watch
