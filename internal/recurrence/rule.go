// Package recurrence decides on which calendar days a chore is due.
package recurrence

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/dukerupert/chora/internal/apperr"
	"github.com/dukerupert/chora/internal/dateutil"
)

type Kind string

const (
	Once       Kind = "none"
	EveryNDays Kind = "daily"
	Weekly     Kind = "weekly"
)

// Rule is the single recurrence type every stored encoding normalizes to.
// The zero Rule is invalid and never due.
type Rule struct {
	Kind     Kind
	Interval int            // EveryNDays only; >= 1
	Weekdays []time.Weekday // Weekly only; sorted, no duplicates
}

// OnceOnly is due on its start date and never again.
func OnceOnly() Rule {
	return Rule{Kind: Once}
}

// Every is due every n days counting from the start date.
func Every(n int) (Rule, error) {
	r := Rule{Kind: EveryNDays, Interval: n}
	if err := r.Validate(); err != nil {
		return Rule{}, err
	}
	return r, nil
}

// OnWeekdays is due on each of the given weekdays once the start date is reached.
func OnWeekdays(days ...time.Weekday) (Rule, error) {
	ws := slices.Clone(days)
	slices.Sort(ws)
	r := Rule{Kind: Weekly, Weekdays: slices.Compact(ws)}
	if err := r.Validate(); err != nil {
		return Rule{}, err
	}
	return r, nil
}

// Validate reports construction-time problems as apperr validation errors.
func (r Rule) Validate() error {
	const op = "validate recurrence"
	switch r.Kind {
	case Once:
		return nil
	case EveryNDays:
		if r.Interval < 1 {
			return apperr.Validation(op, fmt.Sprintf("repeat interval must be at least 1 day, got %d", r.Interval))
		}
		return nil
	case Weekly:
		if len(r.Weekdays) == 0 {
			return apperr.Validation(op, "weekly repeat needs at least one weekday")
		}
		for _, d := range r.Weekdays {
			if d < time.Sunday || d > time.Saturday {
				return apperr.Validation(op, fmt.Sprintf("weekday %d out of range 0-6", int(d)))
			}
		}
		return nil
	case "":
		return apperr.Validation(op, "repeat type is required")
	}
	return apperr.Validation(op, fmt.Sprintf("unknown repeat type %q", r.Kind))
}

// IsDue reports whether a chore starting on start is due on date.
// Only calendar days are compared.
func IsDue(r Rule, start, date time.Time) bool {
	diff := dateutil.DaysBetween(start, date)
	if diff < 0 {
		return false
	}
	switch r.Kind {
	case Once:
		return diff == 0
	case EveryNDays:
		if r.Interval < 1 {
			return false
		}
		return diff%r.Interval == 0
	case Weekly:
		return slices.Contains(r.Weekdays, dateutil.Day(date).Weekday())
	}
	return false
}

// DueToday is IsDue evaluated against a caller-supplied "today".
func DueToday(r Rule, start time.Time, now func() time.Time) bool {
	return IsDue(r, start, now())
}

// Describe returns a human-readable description of the rule.
func (r Rule) Describe() string {
	switch r.Kind {
	case Once:
		return "Does not repeat"
	case EveryNDays:
		if r.Interval == 1 {
			return "Repeats daily"
		}
		if r.Interval > 1 {
			return fmt.Sprintf("Repeats every %d days", r.Interval)
		}
	case Weekly:
		if len(r.Weekdays) == 7 {
			return "Repeats every day of the week"
		}
		var names []string
		for _, d := range r.Weekdays {
			names = append(names, d.String()[:3])
		}
		if len(names) > 0 {
			return "Repeats weekly on " + strings.Join(names, ", ")
		}
	}
	return ""
}
