// Package reminder computes which task records are due inside the canonical
// reminder windows and turns the result into a per-user dispatch grouping.
package reminder

import "time"

// Window is the half-open time range [Start, End) evaluated for one
// interval key.
type Window struct {
	Interval string
	Start    time.Time
	End      time.Time
}

type intervalOffset struct {
	key   string
	hours int
}

// The canonical reminder intervals. The table is fixed; day-based keys are
// expressed in hours.
var intervalTable = []intervalOffset{
	{"h1", 1},
	{"h2", 2},
	{"h4", 4},
	{"h8", 8},
	{"h12", 12},
	{"d1", 24},
	{"d2", 48},
	{"d5", 120},
}

// Windows returns one window per canonical interval key, in table order.
// Each window starts at now plus the interval offset and spans one hour.
func Windows(now time.Time) []Window {
	out := make([]Window, 0, len(intervalTable))
	for _, iv := range intervalTable {
		start := now.Add(time.Duration(iv.hours) * time.Hour)
		out = append(out, Window{
			Interval: iv.key,
			Start:    start,
			End:      start.Add(time.Hour),
		})
	}
	return out
}
