package model

import (
	"time"

	"github.com/dukerupert/chora/internal/recurrence"
)

type Chore struct {
	ID         string          `json:"id"`
	Title      string          `json:"title"`
	AssignedTo string          `json:"assignedTo"`
	StartDate  time.Time       `json:"-"`
	Rule       recurrence.Rule `json:"-"`
	AddedTime  time.Time       `json:"addedTime"`
}

// IsDue reports whether the chore is due on the calendar day of date.
func (c Chore) IsDue(date time.Time) bool {
	return recurrence.IsDue(c.Rule, c.StartDate, date)
}

// CompletionRecord marks one chore as done (or not) on one day. ID is
// always ChoreID + "_" + Date.
type CompletionRecord struct {
	ID        string `json:"id"`
	ChoreID   string `json:"choreId"`
	Date      string `json:"date"`
	Completed bool   `json:"completed"`
	UserID    string `json:"userId,omitempty"`
}
