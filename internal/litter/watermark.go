package litter

import "time"

// Watermarks tracks the last processed weight event per device.
//
// It is owned by a single goroutine (the watcher) and is not safe for
// concurrent use. Watermarks only ever move forward.
type Watermarks struct {
	marks map[string]time.Time
}

func NewWatermarks() *Watermarks {
	return &Watermarks{marks: map[string]time.Time{}}
}

// Get returns the device's watermark; ok is false if none is set.
func (w *Watermarks) Get(deviceID string) (time.Time, bool) {
	ts, ok := w.marks[deviceID]
	return ts, ok
}

// Seeded reports whether the device has been observed at least once,
// even if it had no weight events at that time.
func (w *Watermarks) Seeded(deviceID string) bool {
	_, ok := w.marks[deviceID]
	return ok
}

// Seed records the baseline for a device from its full history.
// An empty history seeds the zero time, so every later reading is new.
// Seeding an already-seeded device is a no-op.
func (w *Watermarks) Seed(deviceID string, events []WeightEvent) {
	if _, ok := w.marks[deviceID]; ok {
		return
	}
	ts, _ := LatestTimestamp(events)
	w.marks[deviceID] = ts
}

// Advance moves the device's watermark to ts. Moving backwards is ignored.
// It reports whether the watermark changed.
func (w *Watermarks) Advance(deviceID string, ts time.Time) bool {
	cur, ok := w.marks[deviceID]
	if ok && !ts.After(cur) {
		return false
	}
	w.marks[deviceID] = ts
	return true
}

// Len returns the number of tracked devices.
func (w *Watermarks) Len() int { return len(w.marks) }
