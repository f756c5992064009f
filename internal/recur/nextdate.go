package recur

import (
	"time"

	"github.com/hyperengineering/cadence/internal/types"
)

// NextOccurrence computes the next due date for a cadence given a reference
// date (normally the previous occurrence). Daily cadences are due on the
// reference date itself; the other cadences advance one period:
//
//	weekly    -> same weekday, seven days on
//	monthly   -> same day-of-month next month, clamped to month length
//	quarterly -> first day of the next quarter
//	yearly    -> same month/day next year, clamped (Feb 29 -> Feb 28)
//
// Clamping instead of normalizing avoids skipped months: day 31 from January
// lands on the last day of February, never on March 3rd.
func NextOccurrence(ref time.Time, ts types.Timescale) time.Time {
	ref = DayOf(ref)
	switch ts {
	case types.TimescaleDaily:
		return ref
	case types.TimescaleWeekly:
		return ref.AddDate(0, 0, 7)
	case types.TimescaleMonthly:
		return addMonthsClamped(ref, 1)
	case types.TimescaleQuarterly:
		return nextQuarterStart(ref)
	case types.TimescaleYearly:
		return addMonthsClamped(ref, 12)
	}
	return ref
}

// addMonthsClamped advances n months keeping the day-of-month, clamping to
// the last valid day of the target month.
func addMonthsClamped(t time.Time, n int) time.Time {
	y, m, d := t.Date()
	first := time.Date(y, m+time.Month(n), 1, 0, 0, 0, 0, time.UTC)
	if last := daysInMonth(first.Year(), first.Month()); d > last {
		d = last
	}
	return time.Date(first.Year(), first.Month(), d, 0, 0, 0, 0, time.UTC)
}

// daysInMonth returns the number of days in the given month.
func daysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// nextQuarterStart returns the first day of the quarter after t.
func nextQuarterStart(t time.Time) time.Time {
	q := (int(t.Month()) - 1) / 3 // 0..3
	m := time.Month(q*3 + 4)      // first month of next quarter, may roll year
	return time.Date(t.Year(), m, 1, 0, 0, 0, 0, time.UTC)
}

// QuarterStart reports whether date is the first day of a quarter-start
// month (Jan/Apr/Jul/Oct 1st).
func QuarterStart(date time.Time) bool {
	return date.Day() == 1 && (int(date.Month())-1)%3 == 0
}

// CadenceMatches reports whether date is a due day for a bare-timescale item
// created on the given date. This is the legacy resolution path: daily items
// are always due, weekly items on the creation weekday, monthly on the
// creation day-of-month, quarterly on quarter-start days, yearly on Jan 1.
func CadenceMatches(ts types.Timescale, created, date time.Time) bool {
	created, date = DayOf(created), DayOf(date)
	switch ts {
	case types.TimescaleDaily:
		return true
	case types.TimescaleWeekly:
		return date.Weekday() == created.Weekday()
	case types.TimescaleMonthly:
		return date.Day() == created.Day()
	case types.TimescaleQuarterly:
		return QuarterStart(date)
	case types.TimescaleYearly:
		return date.Month() == time.January && date.Day() == 1
	}
	return false
}

// ScheduleMatches reports whether date is a due day for an explicit weekday
// schedule. Malformed day indices never match; a malformed Until date makes
// the schedule never due rather than erroring.
func ScheduleMatches(s types.Schedule, date time.Time) bool {
	date = DayOf(date)
	if s.Until != "" {
		until, ok := ParseDate(s.Until)
		if !ok || date.After(until) {
			return false
		}
	}
	wd := int(date.Weekday())
	for _, d := range s.Days {
		if d == wd {
			return true
		}
	}
	return false
}
