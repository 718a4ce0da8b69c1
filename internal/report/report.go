// Package report summarizes completion records for a group.
package report

import (
	"log/slog"
	"math"
	"time"

	"github.com/dukerupert/chora/internal/dateutil"
	"github.com/dukerupert/chora/internal/model"
)

// daysPerPeriod is the denominator of every rate: reports describe one week.
const daysPerPeriod = 7

type MemberStat struct {
	UID       string `json:"uid"`
	Name      string `json:"name"`
	Completed int    `json:"completed"`
}

type ChoreStat struct {
	ChoreID   string  `json:"choreId"`
	Title     string  `json:"title"`
	Completed int     `json:"completed"`
	Rate      float64 `json:"rate"`
}

type Report struct {
	TotalChores    int          `json:"totalChores"`
	CompletedCount int          `json:"completedCount"`
	CompletionRate float64      `json:"completionRate"`
	Members        []MemberStat `json:"members"`
	Chores         []ChoreStat  `json:"chores"`
}

// Aggregate counts completed records against the chores and members
// passed in. Records are not checked against the chore list.
func Aggregate(chores []model.Chore, completions []model.CompletionRecord, members []model.Member) Report {
	completed := 0
	byUser := make(map[string]int)
	byChore := make(map[string]int)
	for _, c := range completions {
		if !c.Completed {
			continue
		}
		completed++
		byUser[c.UserID]++
		byChore[c.ChoreID]++
	}

	r := Report{
		TotalChores:    len(chores),
		CompletedCount: completed,
		Members:        make([]MemberStat, 0, len(members)),
		Chores:         make([]ChoreStat, 0, len(chores)),
	}
	if len(chores) > 0 {
		r.CompletionRate = round2(float64(completed) / float64(len(chores)*daysPerPeriod) * 100)
	}

	for _, m := range members {
		r.Members = append(r.Members, MemberStat{
			UID:       m.UID,
			Name:      m.DisplayName(),
			Completed: byUser[m.UID],
		})
	}
	for _, c := range chores {
		n := byChore[c.ID]
		r.Chores = append(r.Chores, ChoreStat{
			ChoreID:   c.ID,
			Title:     c.Title,
			Completed: n,
			Rate:      round2(float64(n) / daysPerPeriod * 100),
		})
	}
	return r
}

// FilterRange keeps records dated within [from, to]. A zero bound is open.
func FilterRange(records []model.CompletionRecord, from, to time.Time) []model.CompletionRecord {
	out := make([]model.CompletionRecord, 0, len(records))
	for _, rec := range records {
		d, err := dateutil.Parse(rec.Date)
		if err != nil {
			slog.Warn("skipping completion with invalid date", "record_id", rec.ID, "date", rec.Date)
			continue
		}
		if !from.IsZero() && d.Before(dateutil.Day(from)) {
			continue
		}
		if !to.IsZero() && d.After(dateutil.Day(to)) {
			continue
		}
		out = append(out, rec)
	}
	return out
}

func round2(x float64) float64 {
	return math.Round(x*100) / 100
}
