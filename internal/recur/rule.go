// Package recur implements the pure temporal logic of the engine: clock and
// date parsing, next-occurrence calculation, cadence matching, and target
// inference from step text. It performs no I/O and never samples the clock;
// reference dates are always supplied by callers.
package recur

import (
	"time"
)

// DateLayout is the wire format for calendar dates.
const DateLayout = "2006-01-02"

// TimeSentinel sorts items without a scheduled time after all timed items.
const TimeSentinel = "23:59"

// ParseClock parses a 24-hour "HH:MM" string.
// Returns ok=false for anything that does not match exactly.
func ParseClock(s string) (hour, minute int, ok bool) {
	if len(s) != 5 || s[2] != ':' {
		return 0, 0, false
	}
	for _, i := range []int{0, 1, 3, 4} {
		if s[i] < '0' || s[i] > '9' {
			return 0, 0, false
		}
	}
	hour = int(s[0]-'0')*10 + int(s[1]-'0')
	minute = int(s[3]-'0')*10 + int(s[4]-'0')
	if hour > 23 || minute > 59 {
		return 0, 0, false
	}
	return hour, minute, true
}

// ParseDate parses a "2006-01-02" date in UTC.
func ParseDate(s string) (time.Time, bool) {
	t, err := time.ParseInLocation(DateLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// DayOf truncates t to midnight UTC of its calendar day.
func DayOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// SameDay reports whether a and b fall on the same UTC calendar day.
func SameDay(a, b time.Time) bool {
	return DayOf(a).Equal(DayOf(b))
}

// DaysBetween returns the number of whole calendar days from a to b.
// Negative when b precedes a.
func DaysBetween(a, b time.Time) int {
	return int(DayOf(b).Sub(DayOf(a)) / (24 * time.Hour))
}

// SortKey returns the time used to order an item within a day's itinerary.
// Items without a parseable scheduled time sort last via the sentinel.
func SortKey(clock string) string {
	if _, _, ok := ParseClock(clock); ok {
		return clock
	}
	return TimeSentinel
}
