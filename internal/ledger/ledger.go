// Package ledger records which chores were completed on which days.
//
// Every write is followed by a re-fetch of the group's completion
// collection; readers only ever see what the store returned.
package ledger

import (
	"context"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/dukerupert/chora/internal/apperr"
	"github.com/dukerupert/chora/internal/dateutil"
	"github.com/dukerupert/chora/internal/model"
	"github.com/dukerupert/chora/internal/store"
	"github.com/dukerupert/chora/internal/websocket"
)

// RecordID is the composite key of the completion record for a chore on a day.
func RecordID(choreID string, date time.Time) string {
	return choreID + "_" + dateutil.Format(date)
}

// View is a read-only snapshot of a group's completion records.
type View struct {
	records map[string]model.CompletionRecord
}

func NewView(records []model.CompletionRecord) View {
	m := make(map[string]model.CompletionRecord, len(records))
	for _, r := range records {
		m[r.ID] = r
	}
	return View{records: m}
}

// IsCompleted reports whether the chore is marked done on date. A missing
// record means not completed.
func (v View) IsCompleted(choreID string, date time.Time) bool {
	r, ok := v.records[RecordID(choreID, date)]
	return ok && r.Completed
}

func (v View) Record(choreID string, date time.Time) (model.CompletionRecord, bool) {
	r, ok := v.records[RecordID(choreID, date)]
	return r, ok
}

// Records returns all records ordered by date, then chore id.
func (v View) Records() []model.CompletionRecord {
	out := make([]model.CompletionRecord, 0, len(v.records))
	for _, r := range v.records {
		out = append(out, r)
	}
	slices.SortFunc(out, func(a, b model.CompletionRecord) int {
		if c := strings.Compare(a.Date, b.Date); c != 0 {
			return c
		}
		return strings.Compare(a.ChoreID, b.ChoreID)
	})
	return out
}

func (v View) Len() int { return len(v.records) }

type choreGetter interface {
	GetByID(ctx context.Context, groupID, id string) (*model.Chore, error)
}

// Notifier receives a message after each successful toggle.
type Notifier interface {
	BroadcastGroup(groupID string, msg websocket.Message)
}

type Ledger struct {
	completions *store.CompletionStore
	chores      choreGetter
	notifier    Notifier
	logger      *slog.Logger

	mu    sync.Mutex
	cache map[string]View
	// issued and stored order refreshes per group. A fetch only reaches
	// the cache when it began after the one already stored.
	issued map[string]uint64
	stored map[string]uint64
}

// New builds a Ledger. notifier may be nil.
func New(completions *store.CompletionStore, chores choreGetter, notifier Notifier, logger *slog.Logger) *Ledger {
	return &Ledger{
		completions: completions,
		chores:      chores,
		notifier:    notifier,
		logger:      logger.With("component", "ledger"),
		cache:       make(map[string]View),
		issued:      make(map[string]uint64),
		stored:      make(map[string]uint64),
	}
}

// Toggle sets the completion flag for a chore on a day. Only the chore's
// assignee may toggle it.
func (l *Ledger) Toggle(ctx context.Context, groupID, actorUID, choreID string, date time.Time, completed bool) (*model.CompletionRecord, error) {
	const op = "toggle completion"

	if groupID == "" {
		return nil, apperr.Validation(op, "join a group first")
	}
	if choreID == "" {
		return nil, apperr.Validation(op, "chore id is required")
	}
	if date.IsZero() {
		return nil, apperr.Validation(op, "date is required")
	}

	chore, err := l.chores.GetByID(ctx, groupID, choreID)
	if err != nil {
		l.logger.Error("failed to load chore", "group_id", groupID, "chore_id", choreID, "error", err)
		return nil, apperr.Remote(op, err)
	}
	if chore == nil {
		return nil, apperr.NotFound(op, "chore not found")
	}
	if chore.AssignedTo != actorUID {
		return nil, apperr.PermissionDenied(op, "only the assignee can update this chore")
	}

	rec := model.CompletionRecord{
		ID:        RecordID(choreID, date),
		ChoreID:   choreID,
		Date:      dateutil.Format(date),
		Completed: completed,
		UserID:    actorUID,
	}
	if err := l.completions.Upsert(ctx, groupID, rec); err != nil {
		l.logger.Error("failed to write completion", "group_id", groupID, "record_id", rec.ID, "error", err)
		return nil, apperr.Remote(op, err)
	}

	if _, err := l.Refresh(ctx, groupID); err != nil {
		return nil, err
	}

	if l.notifier != nil {
		l.notifier.BroadcastGroup(groupID, websocket.NewMessage("completion", "toggled", rec.ID, map[string]any{
			"choreId":   rec.ChoreID,
			"date":      rec.Date,
			"completed": rec.Completed,
		}))
	}
	return &rec, nil
}

// View returns the cached view for a group, loading it on first use.
func (l *Ledger) View(ctx context.Context, groupID string) (View, error) {
	l.mu.Lock()
	v, ok := l.cache[groupID]
	l.mu.Unlock()
	if ok {
		return v, nil
	}
	return l.Refresh(ctx, groupID)
}

// Refresh re-fetches the group's completion collection into the cache.
// When a later refresh has already been stored, its view is returned
// instead of the older fetch.
func (l *Ledger) Refresh(ctx context.Context, groupID string) (View, error) {
	l.mu.Lock()
	l.issued[groupID]++
	seq := l.issued[groupID]
	l.mu.Unlock()

	records, err := l.completions.List(ctx, groupID)
	if err != nil {
		l.logger.Error("failed to fetch completions", "group_id", groupID, "error", err)
		return View{}, apperr.Remote("fetch completions", err)
	}
	v := NewView(records)

	l.mu.Lock()
	defer l.mu.Unlock()
	if seq < l.stored[groupID] {
		if newer, ok := l.cache[groupID]; ok {
			return newer, nil
		}
		return v, nil
	}
	l.stored[groupID] = seq
	l.cache[groupID] = v
	return v, nil
}

// Invalidate drops the cached view. Fetches already in flight are not stored.
func (l *Ledger) Invalidate(groupID string) {
	l.mu.Lock()
	delete(l.cache, groupID)
	l.stored[groupID] = l.issued[groupID] + 1
	l.issued[groupID]++
	l.mu.Unlock()
}
