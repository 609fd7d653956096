// Package schedule models a staff member's weekly working hours and turns
// them into availability figures. It is pure date arithmetic: no storage,
// no timezone conversion (windows are wall-clock times on whatever day the
// caller passes in).
package schedule

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Window is a single working window on some weekday, in wall-clock "HH:mm".
type Window struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// Weekly maps lowercase weekday names ("sunday".."saturday") to the windows
// worked on that day. Days may carry zero or more windows. Overlapping
// windows are legal and are NOT deduplicated when summing minutes.
type Weekly map[string][]Window

// Interval is a concrete [Start, End) span on a real date.
type Interval struct {
	Start time.Time
	End   time.Time
}

var dayNames = [7]string{"sunday", "monday", "tuesday", "wednesday", "thursday", "friday", "saturday"}

// DayName returns the lowercase weekday key used by Weekly.
func DayName(wd time.Weekday) string {
	return dayNames[int(wd)%7]
}

// MinutesForDay sums the lengths of all windows defined for the date's
// weekday. A nil schedule or a day without windows yields 0. Inverted or
// malformed windows contribute 0. Overlapping windows are summed twice;
// callers that care must normalize their schedules upstream.
func MinutesForDay(w Weekly, date time.Time) int {
	if w == nil {
		return 0
	}
	total := 0
	for _, win := range w[DayName(date.Weekday())] {
		start, okStart := parseClock(win.Start)
		end, okEnd := parseClock(win.End)
		if !okStart || !okEnd || end <= start {
			continue
		}
		total += end - start
	}
	return total
}

// MinutesForRange sums MinutesForDay over every calendar day in [from, to]
// inclusive. Each day is computed independently; there is no shortcut for
// whole weeks, so schedule edits mid-range stay correct.
func MinutesForRange(w Weekly, from, to time.Time) int {
	if w == nil {
		return 0
	}
	day := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, from.Location())
	last := time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, to.Location())
	total := 0
	for !day.After(last) {
		total += MinutesForDay(w, day)
		day = day.AddDate(0, 0, 1)
	}
	return total
}

// WindowsOn resolves the weekday's windows into concrete intervals on the
// given date, preserving definition order and skipping malformed entries.
func WindowsOn(w Weekly, date time.Time) []Interval {
	if w == nil {
		return nil
	}
	midnight := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())
	var out []Interval
	for _, win := range w[DayName(date.Weekday())] {
		start, okStart := parseClock(win.Start)
		end, okEnd := parseClock(win.End)
		if !okStart || !okEnd || end <= start {
			continue
		}
		out = append(out, Interval{
			Start: midnight.Add(time.Duration(start) * time.Minute),
			End:   midnight.Add(time.Duration(end) * time.Minute),
		})
	}
	return out
}

// FormatClock renders minutes-since-midnight as "HH:mm", the wire format
// used by Window.
func FormatClock(minutes int) string {
	if minutes < 0 {
		minutes = 0
	}
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// parseClock parses "HH:mm" into minutes since midnight.
func parseClock(s string) (int, bool) {
	h, m, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return 0, false
	}
	hours, err := strconv.Atoi(h)
	if err != nil || hours < 0 || hours > 23 {
		return 0, false
	}
	mins, err := strconv.Atoi(m)
	if err != nil || mins < 0 || mins > 59 {
		return 0, false
	}
	return hours*60 + mins, true
}
