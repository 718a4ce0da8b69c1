package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dukerupert/chora/internal/docstore"
	"github.com/dukerupert/chora/internal/model"
)

const usersPath = "users"

type UserStore struct {
	docs docstore.Store
}

func NewUserStore(docs docstore.Store) *UserStore {
	return &UserStore{docs: docs}
}

type userDoc struct {
	Email        string    `json:"email"`
	Username     string    `json:"username"`
	Color        string    `json:"color,omitempty"`
	GroupID      string    `json:"groupId,omitempty"`
	PasswordHash string    `json:"passwordHash,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

func scanUser(snap docstore.Snapshot) (*model.User, error) {
	var d userDoc
	if err := docstore.Decode(snap.Data, &d); err != nil {
		return nil, fmt.Errorf("decode user %s: %w", snap.ID, err)
	}
	return &model.User{
		UID:          snap.ID,
		Email:        d.Email,
		Username:     d.Username,
		Color:        d.Color,
		GroupID:      d.GroupID,
		PasswordHash: d.PasswordHash,
		CreatedAt:    d.CreatedAt,
	}, nil
}

func (s *UserStore) Create(ctx context.Context, email, username, color, passwordHash string) (*model.User, error) {
	doc, err := docstore.Encode(userDoc{
		Email:        strings.ToLower(strings.TrimSpace(email)),
		Username:     username,
		Color:        color,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now().UTC(),
	})
	if err != nil {
		return nil, err
	}
	id, err := s.docs.Add(ctx, usersPath, doc)
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *UserStore) GetByID(ctx context.Context, uid string) (*model.User, error) {
	snap, err := s.docs.Get(ctx, usersPath, uid)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if snap == nil {
		return nil, nil
	}
	return scanUser(*snap)
}

func (s *UserStore) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	snaps, err := s.docs.Query(ctx, usersPath, docstore.Where("email", strings.ToLower(strings.TrimSpace(email))))
	if err != nil {
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	if len(snaps) == 0 {
		return nil, nil
	}
	return scanUser(snaps[0])
}

// SetGroup points the user at a group. Only groupId is written.
func (s *UserStore) SetGroup(ctx context.Context, uid, groupID string) error {
	if err := s.docs.Set(ctx, usersPath, uid, docstore.Doc{"groupId": groupID}, true); err != nil {
		return fmt.Errorf("set user group: %w", err)
	}
	return nil
}

// ListByGroup returns the members of a group in sign-up order.
func (s *UserStore) ListByGroup(ctx context.Context, groupID string) ([]model.User, error) {
	snaps, err := s.docs.Query(ctx, usersPath, docstore.Where("groupId", groupID))
	if err != nil {
		return nil, fmt.Errorf("list group members: %w", err)
	}
	users := make([]model.User, 0, len(snaps))
	for _, snap := range snaps {
		u, err := scanUser(snap)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, *u)
	}
	return users, nil
}
