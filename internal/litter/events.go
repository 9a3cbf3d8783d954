package litter

import (
	"sort"
	"strings"
	"time"
)

// WeightActionPrefix marks activity entries that carry a weight reading.
const WeightActionPrefix = "pet weight recorded"

// RawHistoryEvent is one activity entry as reported by the device account.
// A zero Timestamp means the entry has no usable time.
type RawHistoryEvent struct {
	Action    string
	Timestamp time.Time
}

// WeightEvent is a weight-bearing activity entry.
type WeightEvent struct {
	Timestamp time.Time
	Text      string
}

// IsWeightAction reports whether an action text records a pet weight.
func IsWeightAction(action string) bool {
	return strings.HasPrefix(strings.ToLower(action), WeightActionPrefix)
}

// ExtractWeightEvents filters history down to weight readings, oldest first.
//
// Entries that are not weight readings, or have no timestamp, are dropped
// silently: most of a device's history is cycles and status changes.
func ExtractWeightEvents(history []RawHistoryEvent) []WeightEvent {
	out := make([]WeightEvent, 0, len(history))
	for _, ev := range history {
		if ev.Timestamp.IsZero() || !IsWeightAction(ev.Action) {
			continue
		}
		out = append(out, WeightEvent{Timestamp: ev.Timestamp, Text: ev.Action})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out
}

// LatestTimestamp returns the timestamp of the last event of an ascending
// slice. ok is false for an empty slice.
func LatestTimestamp(events []WeightEvent) (ts time.Time, ok bool) {
	if len(events) == 0 {
		return time.Time{}, false
	}
	return events[len(events)-1].Timestamp, true
}

// SelectNew returns the events strictly after the watermark.
//
// Without a watermark (hasMark false) nothing is new: a device seen for the
// first time has its whole history treated as already announced.
func SelectNew(events []WeightEvent, mark time.Time, hasMark bool) []WeightEvent {
	if !hasMark {
		return nil
	}
	// events is ascending; find the first entry past the mark.
	i := sort.Search(len(events), func(i int) bool {
		return events[i].Timestamp.After(mark)
	})
	if i >= len(events) {
		return nil
	}
	return events[i:]
}
