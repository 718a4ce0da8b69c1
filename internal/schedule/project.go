package schedule

import (
	"slices"
	"time"

	"github.com/dukerupert/chora/internal/ledger"
	"github.com/dukerupert/chora/internal/model"
)

const unknownAssignee = "Unknown"

// Cell is one chore on one day. Cells for days the chore is not due are
// empty apart from Due = false.
type Cell struct {
	Due       bool   `json:"due"`
	Assignee  string `json:"assignee,omitempty"`
	Color     string `json:"color,omitempty"`
	Completed bool   `json:"completed"`
	RecordID  string `json:"recordId,omitempty"`
}

type Row struct {
	ChoreID    string `json:"choreId"`
	Title      string `json:"title"`
	AssignedTo string `json:"assignedTo"`
	Repeats    string `json:"repeats"`
	Cells      []Cell `json:"cells"`
}

type Matrix struct {
	Dates       []string `json:"dates"`
	Rows        []Row    `json:"rows"`
	HasPrevious bool     `json:"hasPrevious"`
	Selected    string   `json:"selectedMember,omitempty"`
}

// Project lays out the chores visible through filter over the window,
// newest chore first.
func Project(chores []model.Chore, members []model.Member, view ledger.View, w Window, filter MemberFilter) Matrix {
	byUID := make(map[string]model.Member, len(members))
	for _, m := range members {
		byUID[m.UID] = m
	}

	visible := Visible(chores, filter)
	m := Matrix{
		Dates:       w.Labels(),
		Rows:        make([]Row, 0, len(visible)),
		HasPrevious: PreviousWeekAvailable(chores, filter, w),
	}
	if uid, ok := filter.Selected(); ok {
		m.Selected = uid
	}

	for _, c := range visible {
		row := Row{
			ChoreID:    c.ID,
			Title:      c.Title,
			AssignedTo: c.AssignedTo,
			Repeats:    c.Rule.Describe(),
			Cells:      make([]Cell, len(w.Dates)),
		}
		for i, date := range w.Dates {
			if !c.IsDue(date) {
				continue
			}
			row.Cells[i] = dueCell(c, byUID, view, date)
		}
		m.Rows = append(m.Rows, row)
	}
	return m
}

// ProjectDay is Project over a single day, keeping only chores due that day.
func ProjectDay(chores []model.Chore, members []model.Member, view ledger.View, date time.Time, filter MemberFilter) Matrix {
	m := Project(chores, members, view, Day(date), filter)
	due := m.Rows[:0]
	for _, r := range m.Rows {
		if r.Cells[0].Due {
			due = append(due, r)
		}
	}
	m.Rows = due
	return m
}

func dueCell(c model.Chore, members map[string]model.Member, view ledger.View, date time.Time) Cell {
	cell := Cell{
		Due:       true,
		Assignee:  unknownAssignee,
		Completed: view.IsCompleted(c.ID, date),
		RecordID:  ledger.RecordID(c.ID, date),
	}
	if m, ok := members[c.AssignedTo]; ok {
		if name := m.DisplayName(); name != "" {
			cell.Assignee = name
		}
		cell.Color = m.Color
	}
	return cell
}

// Visible returns the chores filter lets through, ordered by addedTime
// descending. Ties keep their input order.
func Visible(chores []model.Chore, filter MemberFilter) []model.Chore {
	out := make([]model.Chore, 0, len(chores))
	for _, c := range chores {
		if filter.Matches(c.AssignedTo) {
			out = append(out, c)
		}
	}
	slices.SortStableFunc(out, func(a, b model.Chore) int {
		return b.AddedTime.Compare(a.AddedTime)
	})
	return out
}

// PreviousWeekAvailable reports whether any chore visible through filter
// is due during the seven days before w.
func PreviousWeekAvailable(chores []model.Chore, filter MemberFilter, w Window) bool {
	if len(w.Dates) == 0 {
		return false
	}
	prev := w.PreviousWeek()
	for _, c := range chores {
		if !filter.Matches(c.AssignedTo) {
			continue
		}
		for _, d := range prev.Dates {
			if c.IsDue(d) {
				return true
			}
		}
	}
	return false
}
