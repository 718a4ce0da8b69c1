// Package schedule projects chores and completions onto a grid of days.
package schedule

import (
	"time"

	"github.com/dukerupert/chora/internal/dateutil"
)

// Window is a run of consecutive calendar days.
type Window struct {
	Dates []time.Time
}

// Day is the one-day window containing date.
func Day(date time.Time) Window {
	return Window{Dates: []time.Time{dateutil.Day(date)}}
}

// Week is the seven days of the week containing ref, shifted by offset
// weeks. Weeks begin on weekStart.
func Week(ref time.Time, offset int, weekStart time.Weekday) Window {
	start := dateutil.AddDays(dateutil.StartOfWeek(ref, weekStart), 7*offset)
	dates := make([]time.Time, 7)
	for i := range dates {
		dates[i] = dateutil.AddDays(start, i)
	}
	return Window{Dates: dates}
}

func (w Window) Start() time.Time {
	if len(w.Dates) == 0 {
		return time.Time{}
	}
	return w.Dates[0]
}

func (w Window) End() time.Time {
	if len(w.Dates) == 0 {
		return time.Time{}
	}
	return w.Dates[len(w.Dates)-1]
}

// PreviousWeek is the seven days immediately before the window.
func (w Window) PreviousWeek() Window {
	start := dateutil.AddDays(w.Start(), -7)
	dates := make([]time.Time, 7)
	for i := range dates {
		dates[i] = dateutil.AddDays(start, i)
	}
	return Window{Dates: dates}
}

func (w Window) Labels() []string {
	out := make([]string, len(w.Dates))
	for i, d := range w.Dates {
		out[i] = dateutil.Format(d)
	}
	return out
}
