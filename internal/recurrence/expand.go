package recurrence

import (
	"time"

	"github.com/dukerupert/chora/internal/dateutil"
)

// Occurrences lists the due dates of a chore within [from, to).
func Occurrences(r Rule, start, from, to time.Time) []time.Time {
	from, to, start = dateutil.Day(from), dateutil.Day(to), dateutil.Day(start)
	if from.Before(start) {
		from = start
	}

	var results []time.Time
	for d := from; d.Before(to); d = d.AddDate(0, 0, 1) {
		if IsDue(r, start, d) {
			results = append(results, d)
		}
		if r.Kind == Once && len(results) > 0 {
			break
		}
	}
	return results
}

// Next returns the first due date on or after `after`. ok is false when the
// rule has no further occurrence.
func Next(r Rule, start, after time.Time) (due time.Time, ok bool) {
	start, after = dateutil.Day(start), dateutil.Day(after)
	if after.Before(start) {
		after = start
	}

	switch r.Kind {
	case Once:
		if after.Equal(start) {
			return start, true
		}
		return time.Time{}, false

	case EveryNDays:
		if r.Interval < 1 {
			return time.Time{}, false
		}
		diff := dateutil.DaysBetween(start, after)
		steps := (diff + r.Interval - 1) / r.Interval
		return start.AddDate(0, 0, steps*r.Interval), true

	case Weekly:
		for i := 0; i < 7; i++ {
			d := after.AddDate(0, 0, i)
			if IsDue(r, start, d) {
				return d, true
			}
		}
	}
	return time.Time{}, false
}
