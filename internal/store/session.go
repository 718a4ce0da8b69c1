package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dukerupert/chora/internal/docstore"
	"github.com/dukerupert/chora/internal/model"
)

const sessionsPath = "sessions"

type SessionStore struct {
	docs docstore.Store
	now  func() time.Time
}

func NewSessionStore(docs docstore.Store) *SessionStore {
	return &SessionStore{docs: docs, now: time.Now}
}

type sessionDoc struct {
	UserID    string    `json:"userId"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func (s *SessionStore) Create(ctx context.Context, userID string, ttl time.Duration) (*model.Session, error) {
	now := s.now().UTC()
	sess := &model.Session{
		Token:     uuid.NewString(),
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	doc, err := docstore.Encode(sessionDoc{UserID: sess.UserID, CreatedAt: sess.CreatedAt, ExpiresAt: sess.ExpiresAt})
	if err != nil {
		return nil, err
	}
	if err := s.docs.Set(ctx, sessionsPath, sess.Token, doc, false); err != nil {
		return nil, fmt.Errorf("insert session: %w", err)
	}
	return sess, nil
}

// GetByToken returns nil for unknown or expired sessions.
func (s *SessionStore) GetByToken(ctx context.Context, token string) (*model.Session, error) {
	if token == "" {
		return nil, nil
	}
	if _, err := uuid.Parse(token); err != nil {
		return nil, nil
	}
	snap, err := s.docs.Get(ctx, sessionsPath, token)
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	if snap == nil {
		return nil, nil
	}
	var d sessionDoc
	if err := docstore.Decode(snap.Data, &d); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	if !s.now().Before(d.ExpiresAt) {
		return nil, nil
	}
	return &model.Session{Token: token, UserID: d.UserID, CreatedAt: d.CreatedAt, ExpiresAt: d.ExpiresAt}, nil
}

func (s *SessionStore) Delete(ctx context.Context, token string) error {
	if err := s.docs.Delete(ctx, sessionsPath, token); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// DeleteExpired removes every session past its expiry and returns how many
// were removed.
func (s *SessionStore) DeleteExpired(ctx context.Context) (int, error) {
	snaps, err := s.docs.Query(ctx, sessionsPath)
	if err != nil {
		return 0, fmt.Errorf("list sessions: %w", err)
	}
	now := s.now()
	n := 0
	for _, snap := range snaps {
		var d sessionDoc
		if err := docstore.Decode(snap.Data, &d); err != nil {
			return n, fmt.Errorf("decode session: %w", err)
		}
		if now.Before(d.ExpiresAt) {
			continue
		}
		if err := s.docs.Delete(ctx, sessionsPath, snap.ID); err != nil {
			return n, fmt.Errorf("delete session: %w", err)
		}
		n++
	}
	return n, nil
}
