package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukerupert/chora/internal/dateutil"
	"github.com/dukerupert/chora/internal/docstore"
	"github.com/dukerupert/chora/internal/model"
	"github.com/dukerupert/chora/internal/recurrence"
)

type ChoreStore struct {
	docs   docstore.Store
	logger *slog.Logger
}

func NewChoreStore(docs docstore.Store, logger *slog.Logger) *ChoreStore {
	return &ChoreStore{docs: docs, logger: logger.With("component", "chore_store")}
}

func choresPath(groupID string) string {
	return docstore.Path("groups", groupID, "chores")
}

type choreDoc struct {
	Title      string `json:"title"`
	AssignedTo string `json:"assignedTo"`
	StartDate  string `json:"startDate"`
	AddedTime  string `json:"addedTime,omitempty"`
	recurrence.Encoded
}

func encodeChore(c model.Chore) (docstore.Doc, error) {
	return docstore.Encode(choreDoc{
		Title:      c.Title,
		AssignedTo: c.AssignedTo,
		StartDate:  dateutil.Format(c.StartDate),
		AddedTime:  c.AddedTime.UTC().Format(time.RFC3339Nano),
		Encoded:    c.Rule.Encode(),
	})
}

// scanChore decodes a chore document. A chore whose start date or
// recurrence cannot be read keeps a zero Rule, which is never due.
func (s *ChoreStore) scanChore(snap docstore.Snapshot) (*model.Chore, error) {
	var d choreDoc
	if err := docstore.Decode(snap.Data, &d); err != nil {
		return nil, fmt.Errorf("decode chore %s: %w", snap.ID, err)
	}

	c := model.Chore{ID: snap.ID, Title: d.Title, AssignedTo: d.AssignedTo}
	if d.AddedTime != "" {
		if t, err := time.Parse(time.RFC3339Nano, d.AddedTime); err == nil {
			c.AddedTime = t
		}
	}

	start, err := dateutil.Parse(d.StartDate)
	if err != nil {
		s.logger.Warn("invalid start date on stored chore", "chore_id", snap.ID, "start_date", d.StartDate, "error", err)
		return &c, nil
	}
	c.StartDate = start

	rule, err := recurrence.Normalize(d.Encoded)
	if err != nil {
		s.logger.Warn("invalid recurrence on stored chore", "chore_id", snap.ID, "error", err)
		return &c, nil
	}
	c.Rule = rule
	return &c, nil
}

func (s *ChoreStore) Create(ctx context.Context, groupID string, c model.Chore) (*model.Chore, error) {
	doc, err := encodeChore(c)
	if err != nil {
		return nil, err
	}
	id, err := s.docs.Add(ctx, choresPath(groupID), doc)
	if err != nil {
		return nil, fmt.Errorf("insert chore: %w", err)
	}
	return s.GetByID(ctx, groupID, id)
}

func (s *ChoreStore) GetByID(ctx context.Context, groupID, id string) (*model.Chore, error) {
	snap, err := s.docs.Get(ctx, choresPath(groupID), id)
	if err != nil {
		return nil, fmt.Errorf("get chore: %w", err)
	}
	if snap == nil {
		return nil, nil
	}
	return s.scanChore(*snap)
}

func (s *ChoreStore) List(ctx context.Context, groupID string) ([]model.Chore, error) {
	snaps, err := s.docs.Query(ctx, choresPath(groupID))
	if err != nil {
		return nil, fmt.Errorf("list chores: %w", err)
	}

	chores := make([]model.Chore, 0, len(snaps))
	for _, snap := range snaps {
		c, err := s.scanChore(snap)
		if err != nil {
			return nil, fmt.Errorf("scan chore: %w", err)
		}
		chores = append(chores, *c)
	}
	return chores, nil
}

// Update rewrites the whole chore document, dropping any legacy frequency
// field in favour of the structured rule.
func (s *ChoreStore) Update(ctx context.Context, groupID string, c model.Chore) (*model.Chore, error) {
	doc, err := encodeChore(c)
	if err != nil {
		return nil, err
	}
	if err := s.docs.Set(ctx, choresPath(groupID), c.ID, doc, false); err != nil {
		return nil, fmt.Errorf("update chore: %w", err)
	}
	return s.GetByID(ctx, groupID, c.ID)
}

func (s *ChoreStore) Delete(ctx context.Context, groupID, id string) error {
	if err := s.docs.Delete(ctx, choresPath(groupID), id); err != nil {
		return fmt.Errorf("delete chore: %w", err)
	}
	return nil
}

// Import writes a chore under its existing id, replacing any stored copy.
func (s *ChoreStore) Import(ctx context.Context, groupID string, c model.Chore) error {
	doc, err := encodeChore(c)
	if err != nil {
		return err
	}
	if err := s.docs.Set(ctx, choresPath(groupID), c.ID, doc, false); err != nil {
		return fmt.Errorf("import chore: %w", err)
	}
	return nil
}
