package recurrence

import (
	"fmt"
	"time"

	"github.com/dukerupert/chora/internal/apperr"
)

// RepeatFrequency is the structured encoding stored on chore documents.
type RepeatFrequency struct {
	Type     string `json:"type"`
	Days     int    `json:"days,omitempty"`
	Weekdays []int  `json:"weekdays,omitempty"`
}

// Encoded holds both recurrence encodings that chore documents have carried:
// the flat "every N days" integer and the structured repeatFrequency.
type Encoded struct {
	Frequency       *int             `json:"frequency,omitempty"`
	RepeatFrequency *RepeatFrequency `json:"repeatFrequency,omitempty"`
}

// Normalize converts either encoding into a validated Rule. The structured
// form wins when a document carries both.
func Normalize(e Encoded) (Rule, error) {
	const op = "normalize recurrence"

	if rf := e.RepeatFrequency; rf != nil {
		switch Kind(rf.Type) {
		case Once:
			return OnceOnly(), nil
		case EveryNDays:
			return Every(rf.Days)
		case Weekly:
			wds := make([]time.Weekday, 0, len(rf.Weekdays))
			for _, d := range rf.Weekdays {
				if d < 0 || d > 6 {
					return Rule{}, apperr.Validation(op, fmt.Sprintf("weekday %d out of range 0-6", d))
				}
				wds = append(wds, time.Weekday(d))
			}
			return OnWeekdays(wds...)
		}
		return Rule{}, apperr.Validation(op, fmt.Sprintf("unknown repeat type %q", rf.Type))
	}

	if e.Frequency != nil {
		return Every(*e.Frequency)
	}

	return Rule{}, apperr.Validation(op, "chore has no recurrence")
}

// Encode returns the structured form written on every save. Legacy
// frequency fields are never written back.
func (r Rule) Encode() Encoded {
	rf := &RepeatFrequency{Type: string(r.Kind)}
	switch r.Kind {
	case EveryNDays:
		rf.Days = r.Interval
	case Weekly:
		for _, d := range r.Weekdays {
			rf.Weekdays = append(rf.Weekdays, int(d))
		}
	}
	return Encoded{RepeatFrequency: rf}
}
