package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/dukerupert/chora/internal/auth"
	"github.com/dukerupert/chora/internal/dateutil"
	"github.com/dukerupert/chora/internal/group"
	"github.com/dukerupert/chora/internal/ledger"
	"github.com/dukerupert/chora/internal/model"
	"github.com/dukerupert/chora/internal/schedule"
	"github.com/dukerupert/chora/internal/store"
)

// ScheduleHandler serves day and week matrices. The member filter is kept
// per session, so two tabs of the same session share it.
type ScheduleHandler struct {
	groups    *group.Service
	ledger    *ledger.Ledger
	weekStart time.Weekday
	logger    *slog.Logger
	now       func() time.Time

	mu      sync.Mutex
	filters map[string]schedule.MemberFilter
}

func NewScheduleHandler(groups *group.Service, l *ledger.Ledger, weekStart time.Weekday, logger *slog.Logger) *ScheduleHandler {
	return &ScheduleHandler{
		groups:    groups,
		ledger:    l,
		weekStart: weekStart,
		logger:    logger.With("component", "schedule_handler"),
		now:       time.Now,
		filters:   make(map[string]schedule.MemberFilter),
	}
}

func (h *ScheduleHandler) filter(sessionID string) schedule.MemberFilter {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.filters[sessionID]
}

// Forget drops the filter kept for a session.
func (h *ScheduleHandler) Forget(sessionID string) {
	h.mu.Lock()
	delete(h.filters, sessionID)
	h.mu.Unlock()
}

// PruneFilters drops the filters of sessions that are gone or expired and
// returns how many were dropped. A session that cannot be looked up keeps
// its filter.
func (h *ScheduleHandler) PruneFilters(ctx context.Context, sessions *store.SessionStore) int {
	h.mu.Lock()
	ids := make([]string, 0, len(h.filters))
	for id := range h.filters {
		ids = append(ids, id)
	}
	h.mu.Unlock()

	n := 0
	for _, id := range ids {
		sess, err := sessions.GetByToken(ctx, id)
		if err != nil {
			h.logger.Warn("session lookup during filter pruning", "error", err)
			continue
		}
		if sess != nil {
			continue
		}
		h.Forget(id)
		n++
	}
	return n
}

type scheduleInputs struct {
	chores  []model.Chore
	members []model.Member
	view    ledger.View
}

func (h *ScheduleHandler) load(ctx context.Context, w http.ResponseWriter) (scheduleInputs, bool) {
	gid := auth.GroupID(ctx)
	var in scheduleInputs
	var err error
	if in.chores, err = h.groups.Chores(ctx, gid); err != nil {
		writeAppError(w, err, "load chores")
		return in, false
	}
	if in.members, err = h.groups.Members(ctx, gid); err != nil {
		writeAppError(w, err, "load members")
		return in, false
	}
	if in.view, err = h.ledger.View(ctx, gid); err != nil {
		writeAppError(w, err, "load completions")
		return in, false
	}
	return in, true
}

// Day handles GET /api/schedule/day?date=YYYY-MM-DD. The date defaults to today.
func (h *ScheduleHandler) Day(w http.ResponseWriter, r *http.Request) {
	date := dateutil.Day(h.now())
	if s := r.URL.Query().Get("date"); s != "" {
		d, err := dateutil.Parse(s)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		date = d
	}

	in, ok := h.load(r.Context(), w)
	if !ok {
		return
	}
	f := h.filter(auth.SessionID(r.Context()))
	writeJSON(w, http.StatusOK, schedule.ProjectDay(in.chores, in.members, in.view, date, f))
}

// Week handles GET /api/schedule/week?offset=N, where offset counts weeks
// from the current one.
func (h *ScheduleHandler) Week(w http.ResponseWriter, r *http.Request) {
	offset := 0
	if s := r.URL.Query().Get("offset"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			writeError(w, http.StatusBadRequest, "offset must be an integer")
			return
		}
		offset = n
	}

	in, ok := h.load(r.Context(), w)
	if !ok {
		return
	}
	win := schedule.Week(h.now(), offset, h.weekStart)
	f := h.filter(auth.SessionID(r.Context()))
	writeJSON(w, http.StatusOK, schedule.Project(in.chores, in.members, in.view, win, f))
}

// ToggleFilter handles POST /api/schedule/filter/{uid}. Selecting the
// member already selected clears the filter.
func (h *ScheduleHandler) ToggleFilter(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	uid := r.PathValue("uid")

	members, err := h.groups.Members(ctx, auth.GroupID(ctx))
	if err != nil {
		writeAppError(w, err, "load members")
		return
	}
	found := false
	for _, m := range members {
		if m.UID == uid {
			found = true
			break
		}
	}
	if !found {
		writeError(w, http.StatusBadRequest, "not a member of this group")
		return
	}

	sid := auth.SessionID(ctx)
	h.mu.Lock()
	f := h.filters[sid].Toggle(uid)
	h.filters[sid] = f
	h.mu.Unlock()

	selected, _ := f.Selected()
	writeJSON(w, http.StatusOK, map[string]string{"selectedMember": selected})
}
