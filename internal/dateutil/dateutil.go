// Package dateutil holds the calendar-day arithmetic shared by chores and
// completion records. Dates are civil days: a time.Time at midnight UTC whose
// year, month and day are taken from the caller's value as-is.
package dateutil

import (
	"fmt"
	"strings"
	"time"
)

// Layout is the canonical date format. It doubles as the join key between
// chores and completion records, so it must never change.
const Layout = "2006-01-02"

// Day truncates t to its calendar day. Time of day and location are dropped.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Format renders the calendar day of t as YYYY-MM-DD.
func Format(t time.Time) string {
	return Day(t).Format(Layout)
}

// Parse reads a YYYY-MM-DD date.
func Parse(s string) (time.Time, error) {
	t, err := time.Parse(Layout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: want YYYY-MM-DD", s)
	}
	return t, nil
}

// DaysBetween returns the number of calendar days from `from` to `to`.
// Negative when to is before from.
func DaysBetween(from, to time.Time) int {
	return int(Day(to).Sub(Day(from)) / (24 * time.Hour))
}

// AddDays shifts the calendar day of t by n days.
func AddDays(t time.Time, n int) time.Time {
	return Day(t).AddDate(0, 0, n)
}

// StartOfWeek returns the first day of the week containing t.
func StartOfWeek(t time.Time, weekStart time.Weekday) time.Time {
	d := Day(t)
	offset := (int(d.Weekday()) - int(weekStart) + 7) % 7
	return d.AddDate(0, 0, -offset)
}

// ParseWeekday accepts an English weekday name or its three-letter prefix.
func ParseWeekday(s string) (time.Weekday, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	if len(name) >= 3 {
		for wd := time.Sunday; wd <= time.Saturday; wd++ {
			full := strings.ToLower(wd.String())
			if name == full || name == full[:3] {
				return wd, nil
			}
		}
	}
	return time.Sunday, fmt.Errorf("unknown weekday %q", s)
}
