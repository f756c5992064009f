package recur

import (
	"regexp"
	"strconv"

	"github.com/hyperengineering/cadence/internal/types"
)

// freqPattern matches "<N> times per <unit>" in free-text step descriptions,
// e.g. "Run 3 times per week". The unit is matched but not interpreted: the
// count applies to the step's own timescale.
var freqPattern = regexp.MustCompile(`(?i)(\d+)\s+times?\s+per\s+(day|week|month|quarter|year)`)

// defaultTargets are the fallback per-period targets when a step declares no
// frequency. They represent occurrences expected before the next progress
// review, not literal calendar-day counts, and are kept exactly for
// compatibility with previously seeded progress records.
var defaultTargets = map[types.Timescale]int{
	types.TimescaleDaily:     1,
	types.TimescaleWeekly:    7,
	types.TimescaleMonthly:   30,
	types.TimescaleQuarterly: 90,
	types.TimescaleYearly:    365,
}

// ParseFrequency extracts the target count from a step's free-text
// description. Returns ok=false when no pattern is present.
func ParseFrequency(text string) (int, bool) {
	m := freqPattern.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

// DefaultTarget returns the fallback target for a timescale.
// Unknown timescales fall back to 1.
func DefaultTarget(ts types.Timescale) int {
	if t, ok := defaultTargets[ts]; ok {
		return t
	}
	return 1
}

// Target resolves a step's per-period target: a "<N> times per <unit>"
// pattern in the text wins, then an explicit declared frequency, then the
// timescale default.
func Target(text string, declared int, ts types.Timescale) int {
	if n, ok := ParseFrequency(text); ok {
		return n
	}
	if declared > 0 {
		return declared
	}
	return DefaultTarget(ts)
}
