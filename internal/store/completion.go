package store

import (
	"context"
	"fmt"

	"github.com/dukerupert/chora/internal/docstore"
	"github.com/dukerupert/chora/internal/model"
)

type CompletionStore struct {
	docs docstore.Store
}

func NewCompletionStore(docs docstore.Store) *CompletionStore {
	return &CompletionStore{docs: docs}
}

func completionsPath(groupID string) string {
	return docstore.Path("groups", groupID, "dailyCompletions")
}

type completionDoc struct {
	ChoreID   string `json:"choreId"`
	Date      string `json:"date"`
	Completed bool   `json:"completed"`
	UserID    string `json:"userId,omitempty"`
}

func scanCompletion(snap docstore.Snapshot) (*model.CompletionRecord, error) {
	var d completionDoc
	if err := docstore.Decode(snap.Data, &d); err != nil {
		return nil, fmt.Errorf("decode completion %s: %w", snap.ID, err)
	}
	return &model.CompletionRecord{
		ID:        snap.ID,
		ChoreID:   d.ChoreID,
		Date:      d.Date,
		Completed: d.Completed,
		UserID:    d.UserID,
	}, nil
}

// Upsert merge-writes the record at rec.ID. Fields it does not carry are
// left as they were.
func (s *CompletionStore) Upsert(ctx context.Context, groupID string, rec model.CompletionRecord) error {
	doc, err := docstore.Encode(completionDoc{
		ChoreID:   rec.ChoreID,
		Date:      rec.Date,
		Completed: rec.Completed,
		UserID:    rec.UserID,
	})
	if err != nil {
		return err
	}
	if err := s.docs.Set(ctx, completionsPath(groupID), rec.ID, doc, true); err != nil {
		return fmt.Errorf("upsert completion: %w", err)
	}
	return nil
}

func (s *CompletionStore) Get(ctx context.Context, groupID, id string) (*model.CompletionRecord, error) {
	snap, err := s.docs.Get(ctx, completionsPath(groupID), id)
	if err != nil {
		return nil, fmt.Errorf("get completion: %w", err)
	}
	if snap == nil {
		return nil, nil
	}
	return scanCompletion(*snap)
}

func (s *CompletionStore) List(ctx context.Context, groupID string) ([]model.CompletionRecord, error) {
	return s.list(ctx, groupID)
}

func (s *CompletionStore) ListByDate(ctx context.Context, groupID, date string) ([]model.CompletionRecord, error) {
	return s.list(ctx, groupID, docstore.Where("date", date))
}

func (s *CompletionStore) list(ctx context.Context, groupID string, filters ...docstore.Filter) ([]model.CompletionRecord, error) {
	snaps, err := s.docs.Query(ctx, completionsPath(groupID), filters...)
	if err != nil {
		return nil, fmt.Errorf("list completions: %w", err)
	}
	records := make([]model.CompletionRecord, 0, len(snaps))
	for _, snap := range snaps {
		r, err := scanCompletion(snap)
		if err != nil {
			return nil, fmt.Errorf("scan completion: %w", err)
		}
		records = append(records, *r)
	}
	return records, nil
}

// Import writes a record verbatim, replacing whatever is stored at its id.
func (s *CompletionStore) Import(ctx context.Context, groupID string, rec model.CompletionRecord) error {
	doc, err := docstore.Encode(completionDoc{
		ChoreID:   rec.ChoreID,
		Date:      rec.Date,
		Completed: rec.Completed,
		UserID:    rec.UserID,
	})
	if err != nil {
		return err
	}
	if err := s.docs.Set(ctx, completionsPath(groupID), rec.ID, doc, false); err != nil {
		return fmt.Errorf("import completion: %w", err)
	}
	return nil
}
