package availability

import (
	"time"

	"github.com/salonpulse/salonpulse/libs/schedule"
)

// DefaultStep is the slot grid used when the caller does not specify one.
const DefaultStep = 15 * time.Minute

// AvailableSlots returns slot start times within [win.Start, win.End) where a
// booking of length duration would not overlap any of the busy intervals.
//
// All times are expected to be in the same location (timezone). Candidates
// starting before now are skipped; pass the zero time to disable that filter.
func AvailableSlots(win schedule.Interval, duration, step time.Duration, busy []schedule.Interval, now time.Time) []time.Time {
	if duration <= 0 {
		return nil
	}
	if step <= 0 {
		step = DefaultStep
	}
	if !win.End.After(win.Start) {
		return nil
	}

	var slots []time.Time
	for t := win.Start; !t.Add(duration).After(win.End); t = t.Add(step) {
		if t.Before(now) {
			continue
		}
		if !overlapsAny(t, t.Add(duration), busy) {
			slots = append(slots, t)
		}
	}
	return slots
}

// SlotsForDay runs the finder over every window the weekly schedule defines
// on the given date. A weekday without windows yields no slots. Output stays
// chronological as long as the schedule's windows are ordered and disjoint.
func SlotsForDay(w schedule.Weekly, date time.Time, duration, step time.Duration, busy []schedule.Interval, now time.Time) []time.Time {
	var slots []time.Time
	for _, win := range schedule.WindowsOn(w, date) {
		slots = append(slots, AvailableSlots(win, duration, step, busy, now)...)
	}
	return slots
}

func overlapsAny(start, end time.Time, busy []schedule.Interval) bool {
	for _, b := range busy {
		// Half-open intervals: [start,end) overlaps [b.Start,b.End) iff start < b.End && b.Start < end.
		if start.Before(b.End) && b.Start.Before(end) {
			return true
		}
	}
	return false
}
