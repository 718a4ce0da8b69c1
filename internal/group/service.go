// Package group owns group membership and the chores a group tracks.
//
// Reads are served from a per-group cache. Every mutation is followed by a
// full re-fetch of the affected collection before it returns.
package group

import (
	"context"
	"errors"
	"hash/fnv"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dukerupert/chora/internal/apperr"
	"github.com/dukerupert/chora/internal/dateutil"
	"github.com/dukerupert/chora/internal/docstore"
	"github.com/dukerupert/chora/internal/model"
	"github.com/dukerupert/chora/internal/recurrence"
	"github.com/dukerupert/chora/internal/store"
	"github.com/dukerupert/chora/internal/websocket"
)

// Palette holds the member colors handed out at sign-up.
var Palette = []string{
	"#e53935", "#8e24aa", "#3949ab", "#039be5",
	"#00897b", "#7cb342", "#fdd835", "#fb8c00",
}

// ColorFor picks a stable palette color for seed.
func ColorFor(seed string) string {
	h := fnv.New32a()
	h.Write([]byte(strings.ToLower(seed)))
	return Palette[h.Sum32()%uint32(len(Palette))]
}

// maxIDAttempts bounds the search for a free group id.
const maxIDAttempts = 1000

type Notifier interface {
	BroadcastGroup(groupID string, msg websocket.Message)
}

// ChoreInput is a chore as submitted by a member. An empty AssignedTo
// means the acting member.
type ChoreInput struct {
	Title      string
	AssignedTo string
	StartDate  string
	Repeat     recurrence.RepeatFrequency
}

type cached struct {
	chores        []model.Chore
	members       []model.Member
	choresLoaded  bool
	membersLoaded bool
	choresSeq     refreshSeq
	membersSeq    refreshSeq
}

// refreshSeq orders fetches of one collection. A fetch is only stored
// when it began after the one already stored.
type refreshSeq struct {
	issued, stored uint64
}

func (q *refreshSeq) next() uint64 {
	q.issued++
	return q.issued
}

func (q *refreshSeq) accept(seq uint64) bool {
	if seq < q.stored {
		return false
	}
	q.stored = seq
	return true
}

// drop makes every fetch issued so far stale.
func (q *refreshSeq) drop() {
	q.issued++
	q.stored = q.issued
}

type Service struct {
	groups   *store.GroupStore
	users    *store.UserStore
	chores   *store.ChoreStore
	notifier Notifier
	logger   *slog.Logger
	now      func() time.Time

	mu    sync.Mutex
	cache map[string]*cached
}

// NewService builds a Service. notifier may be nil.
func NewService(groups *store.GroupStore, users *store.UserStore, chores *store.ChoreStore, notifier Notifier, logger *slog.Logger) *Service {
	return &Service{
		groups:   groups,
		users:    users,
		chores:   chores,
		notifier: notifier,
		logger:   logger.With("component", "group"),
		now:      time.Now,
		cache:    make(map[string]*cached),
	}
}

// SetClock replaces the service clock. Used by tests.
func (s *Service) SetClock(now func() time.Time) { s.now = now }

func (s *Service) broadcast(groupID string, msg websocket.Message) {
	if s.notifier != nil {
		s.notifier.BroadcastGroup(groupID, msg)
	}
}

func (s *Service) remote(op string, err error, args ...any) error {
	s.logger.Error("failed to "+op, append(args, "error", err)...)
	return apperr.Remote(op, err)
}

// CreateGroup creates a group owned by the actor and moves the actor into it.
func (s *Service) CreateGroup(ctx context.Context, actorUID, name string) (*model.Group, error) {
	const op = "create group"

	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperr.Validation(op, "group name is required")
	}

	// Ids are creation times in ms. A taken id moves on by one millisecond.
	created := s.now().UTC()
	var g *model.Group
	var id string
	for attempt := 0; ; attempt++ {
		id = strconv.FormatInt(created.UnixMilli(), 10)
		var err error
		g, err = s.groups.Create(ctx, model.Group{ID: id, Name: name, Owner: actorUID, CreatedAt: created})
		if err == nil {
			break
		}
		if !errors.Is(err, docstore.ErrExists) || attempt >= maxIDAttempts {
			return nil, s.remote(op, err, "group_id", id)
		}
		created = created.Add(time.Millisecond)
	}
	if err := s.users.SetGroup(ctx, actorUID, id); err != nil {
		return nil, s.remote(op, err, "group_id", id, "user_id", actorUID)
	}

	s.logger.Info("group created", "group_id", id, "owner", actorUID)
	if _, err := s.RefreshMembers(ctx, id); err != nil {
		return nil, err
	}
	return g, nil
}

// JoinGroup moves the actor into an existing group.
func (s *Service) JoinGroup(ctx context.Context, actorUID, groupID string) (*model.Group, error) {
	const op = "join group"

	groupID = strings.TrimSpace(groupID)
	if groupID == "" {
		return nil, apperr.Validation(op, "group id is required")
	}
	// No stored group id contains a path separator.
	if strings.Contains(groupID, "/") {
		return nil, apperr.NotFound(op, "Group not found")
	}

	g, err := s.groups.GetByID(ctx, groupID)
	if err != nil {
		return nil, s.remote(op, err, "group_id", groupID)
	}
	if g == nil {
		return nil, apperr.NotFound(op, "Group not found")
	}

	user, err := s.users.GetByID(ctx, actorUID)
	if err != nil {
		return nil, s.remote(op, err, "user_id", actorUID)
	}
	if err := s.users.SetGroup(ctx, actorUID, groupID); err != nil {
		return nil, s.remote(op, err, "group_id", groupID, "user_id", actorUID)
	}
	if user != nil && user.GroupID != "" && user.GroupID != groupID {
		s.invalidateMembers(user.GroupID)
	}

	if _, err := s.RefreshMembers(ctx, groupID); err != nil {
		return nil, err
	}
	s.logger.Info("member joined group", "group_id", groupID, "user_id", actorUID)
	s.broadcast(groupID, websocket.NewMessage("member", "joined", actorUID, nil))
	return g, nil
}

func (s *Service) Group(ctx context.Context, groupID string) (*model.Group, error) {
	const op = "load group"
	g, err := s.groups.GetByID(ctx, groupID)
	if err != nil {
		return nil, s.remote(op, err, "group_id", groupID)
	}
	if g == nil {
		return nil, apperr.NotFound(op, "Group not found")
	}
	return g, nil
}

// Members returns the group's members, fetching them on first use.
func (s *Service) Members(ctx context.Context, groupID string) ([]model.Member, error) {
	s.mu.Lock()
	c := s.entry(groupID)
	if c.membersLoaded {
		out := c.members
		s.mu.Unlock()
		return out, nil
	}
	s.mu.Unlock()
	return s.RefreshMembers(ctx, groupID)
}

func (s *Service) RefreshMembers(ctx context.Context, groupID string) ([]model.Member, error) {
	s.mu.Lock()
	seq := s.entry(groupID).membersSeq.next()
	s.mu.Unlock()

	users, err := s.users.ListByGroup(ctx, groupID)
	if err != nil {
		return nil, s.remote("fetch members", err, "group_id", groupID)
	}
	members := make([]model.Member, len(users))
	for i, u := range users {
		members[i] = u.Member()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.entry(groupID)
	if !c.membersSeq.accept(seq) {
		if c.membersLoaded {
			return c.members, nil
		}
		return members, nil
	}
	c.members = members
	c.membersLoaded = true
	return members, nil
}

// Chores returns the group's chores, fetching them on first use.
func (s *Service) Chores(ctx context.Context, groupID string) ([]model.Chore, error) {
	s.mu.Lock()
	c := s.entry(groupID)
	if c.choresLoaded {
		out := c.chores
		s.mu.Unlock()
		return out, nil
	}
	s.mu.Unlock()
	return s.RefreshChores(ctx, groupID)
}

func (s *Service) RefreshChores(ctx context.Context, groupID string) ([]model.Chore, error) {
	s.mu.Lock()
	seq := s.entry(groupID).choresSeq.next()
	s.mu.Unlock()

	chores, err := s.chores.List(ctx, groupID)
	if err != nil {
		return nil, s.remote("fetch chores", err, "group_id", groupID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.entry(groupID)
	if !c.choresSeq.accept(seq) {
		if c.choresLoaded {
			return c.chores, nil
		}
		return chores, nil
	}
	c.chores = chores
	c.choresLoaded = true
	return chores, nil
}

// Invalidate drops everything cached for the group, including fetches
// still in flight.
func (s *Service) Invalidate(groupID string) {
	s.mu.Lock()
	c := s.entry(groupID)
	c.chores, c.choresLoaded = nil, false
	c.members, c.membersLoaded = nil, false
	c.choresSeq.drop()
	c.membersSeq.drop()
	s.mu.Unlock()
}

func (s *Service) invalidateMembers(groupID string) {
	s.mu.Lock()
	if c, ok := s.cache[groupID]; ok {
		c.membersLoaded = false
		c.members = nil
		c.membersSeq.drop()
	}
	s.mu.Unlock()
}

// entry must be called with s.mu held.
func (s *Service) entry(groupID string) *cached {
	c, ok := s.cache[groupID]
	if !ok {
		c = &cached{}
		s.cache[groupID] = c
	}
	return c
}

type validChore struct {
	title      string
	assignedTo string
	start      time.Time
	rule       recurrence.Rule
}

// validate checks everything that can be checked without a store call.
func validate(op, actorUID string, in ChoreInput) (validChore, error) {
	v := validChore{title: strings.TrimSpace(in.Title), assignedTo: strings.TrimSpace(in.AssignedTo)}
	if v.title == "" {
		return v, apperr.Validation(op, "title is required")
	}
	if v.assignedTo == "" {
		v.assignedTo = actorUID
	}

	start, err := dateutil.Parse(in.StartDate)
	if err != nil {
		return v, apperr.Validation(op, err.Error())
	}
	v.start = start

	repeat := in.Repeat
	if repeat.Type == "" {
		repeat.Type = string(recurrence.Once)
	}
	rule, err := recurrence.Normalize(recurrence.Encoded{RepeatFrequency: &repeat})
	if err != nil {
		return v, err
	}
	v.rule = rule
	return v, nil
}

// checkAssignee confirms uid belongs to the group, re-fetching members
// once in case someone joined since the cache was filled.
func (s *Service) checkAssignee(ctx context.Context, op, groupID, uid string) error {
	members, err := s.Members(ctx, groupID)
	if err != nil {
		return err
	}
	if isMember(members, uid) {
		return nil
	}
	members, err = s.RefreshMembers(ctx, groupID)
	if err != nil {
		return err
	}
	if isMember(members, uid) {
		return nil
	}
	return apperr.Validation(op, "assignee is not a member of this group")
}

func isMember(members []model.Member, uid string) bool {
	for _, m := range members {
		if m.UID == uid {
			return true
		}
	}
	return false
}

func (s *Service) AddChore(ctx context.Context, groupID, actorUID string, in ChoreInput) (*model.Chore, error) {
	const op = "add chore"

	if groupID == "" {
		return nil, apperr.Validation(op, "join a group first")
	}
	v, err := validate(op, actorUID, in)
	if err != nil {
		return nil, err
	}
	if err := s.checkAssignee(ctx, op, groupID, v.assignedTo); err != nil {
		return nil, err
	}

	chore, err := s.chores.Create(ctx, groupID, model.Chore{
		Title:      v.title,
		AssignedTo: v.assignedTo,
		StartDate:  v.start,
		Rule:       v.rule,
		AddedTime:  s.now().UTC(),
	})
	if err != nil {
		return nil, s.remote(op, err, "group_id", groupID)
	}

	if _, err := s.RefreshChores(ctx, groupID); err != nil {
		return nil, err
	}
	s.broadcast(groupID, websocket.NewMessage("chore", "created", chore.ID, nil))
	return chore, nil
}

// EditChore replaces a chore's fields. The id and addedTime are kept and
// an empty assignee keeps the current one.
func (s *Service) EditChore(ctx context.Context, groupID, actorUID, choreID string, in ChoreInput) (*model.Chore, error) {
	const op = "edit chore"

	if groupID == "" {
		return nil, apperr.Validation(op, "join a group first")
	}
	if choreID == "" {
		return nil, apperr.Validation(op, "chore id is required")
	}
	v, err := validate(op, actorUID, in)
	if err != nil {
		return nil, err
	}

	existing, err := s.chores.GetByID(ctx, groupID, choreID)
	if err != nil {
		return nil, s.remote(op, err, "group_id", groupID, "chore_id", choreID)
	}
	if existing == nil {
		return nil, apperr.NotFound(op, "chore not found")
	}
	if strings.TrimSpace(in.AssignedTo) == "" {
		v.assignedTo = existing.AssignedTo
	}
	if err := s.checkAssignee(ctx, op, groupID, v.assignedTo); err != nil {
		return nil, err
	}

	chore, err := s.chores.Update(ctx, groupID, model.Chore{
		ID:         choreID,
		Title:      v.title,
		AssignedTo: v.assignedTo,
		StartDate:  v.start,
		Rule:       v.rule,
		AddedTime:  existing.AddedTime,
	})
	if err != nil {
		return nil, s.remote(op, err, "group_id", groupID, "chore_id", choreID)
	}

	if _, err := s.RefreshChores(ctx, groupID); err != nil {
		return nil, err
	}
	s.broadcast(groupID, websocket.NewMessage("chore", "updated", choreID, nil))
	return chore, nil
}

// DeleteChore removes a chore. Its completion records are kept.
func (s *Service) DeleteChore(ctx context.Context, groupID, choreID string) error {
	const op = "delete chore"

	if groupID == "" {
		return apperr.Validation(op, "join a group first")
	}
	existing, err := s.chores.GetByID(ctx, groupID, choreID)
	if err != nil {
		return s.remote(op, err, "group_id", groupID, "chore_id", choreID)
	}
	if existing == nil {
		return apperr.NotFound(op, "chore not found")
	}
	if err := s.chores.Delete(ctx, groupID, choreID); err != nil {
		return s.remote(op, err, "group_id", groupID, "chore_id", choreID)
	}

	if _, err := s.RefreshChores(ctx, groupID); err != nil {
		return err
	}
	s.broadcast(groupID, websocket.NewMessage("chore", "deleted", choreID, nil))
	return nil
}
