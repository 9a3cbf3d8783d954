// Package litter holds the pure half of the weight notification pipeline:
// pulling weight readings out of Litter-Robot activity history, deciding
// which readings are new for a device, and attributing a reading to a cat.
//
// Nothing here does I/O. The watcher (internal/watch) owns the state and the
// collaborators; this package only transforms values.
package litter
