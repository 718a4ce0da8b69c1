package store

import (
	"context"
	"fmt"
	"time"

	"github.com/dukerupert/chora/internal/docstore"
	"github.com/dukerupert/chora/internal/model"
)

const groupsPath = "groups"

type GroupStore struct {
	docs docstore.Store
}

func NewGroupStore(docs docstore.Store) *GroupStore {
	return &GroupStore{docs: docs}
}

type groupDoc struct {
	Name      string    `json:"name"`
	Owner     string    `json:"owner"`
	CreatedAt time.Time `json:"createdAt"`
}

// Create inserts a new group. It fails with docstore.ErrExists when the id
// is already taken.
func (s *GroupStore) Create(ctx context.Context, g model.Group) (*model.Group, error) {
	doc, err := docstore.Encode(groupDoc{Name: g.Name, Owner: g.Owner, CreatedAt: g.CreatedAt.UTC()})
	if err != nil {
		return nil, err
	}
	if err := s.docs.Create(ctx, groupsPath, g.ID, doc); err != nil {
		return nil, fmt.Errorf("insert group: %w", err)
	}
	return s.GetByID(ctx, g.ID)
}

func (s *GroupStore) GetByID(ctx context.Context, id string) (*model.Group, error) {
	snap, err := s.docs.Get(ctx, groupsPath, id)
	if err != nil {
		return nil, fmt.Errorf("get group: %w", err)
	}
	if snap == nil {
		return nil, nil
	}
	var d groupDoc
	if err := docstore.Decode(snap.Data, &d); err != nil {
		return nil, fmt.Errorf("decode group %s: %w", id, err)
	}
	return &model.Group{ID: snap.ID, Name: d.Name, Owner: d.Owner, CreatedAt: d.CreatedAt}, nil
}
