package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/chora/internal/auth"
	"github.com/dukerupert/chora/internal/dateutil"
	"github.com/dukerupert/chora/internal/group"
	"github.com/dukerupert/chora/internal/model"
	"github.com/dukerupert/chora/internal/recurrence"
)

type ChoreHandler struct {
	groups *group.Service
	logger *slog.Logger
	now    func() time.Time
}

func NewChoreHandler(groups *group.Service, logger *slog.Logger) *ChoreHandler {
	return &ChoreHandler{
		groups: groups,
		logger: logger.With("component", "chore_handler"),
		now:    time.Now,
	}
}

type choreRequest struct {
	Title           string                     `json:"title"`
	AssignedTo      string                     `json:"assignedTo"`
	StartDate       string                     `json:"startDate"`
	RepeatFrequency recurrence.RepeatFrequency `json:"repeatFrequency"`
}

func (req choreRequest) input() group.ChoreInput {
	return group.ChoreInput{
		Title:      req.Title,
		AssignedTo: req.AssignedTo,
		StartDate:  req.StartDate,
		Repeat:     req.RepeatFrequency,
	}
}

// choreResponse is a chore as listed to clients: the stored fields plus a
// description of its rule and its next due date.
type choreResponse struct {
	ID              string                      `json:"id"`
	Title           string                      `json:"title"`
	AssignedTo      string                      `json:"assignedTo"`
	StartDate       string                      `json:"startDate"`
	RepeatFrequency *recurrence.RepeatFrequency `json:"repeatFrequency"`
	Repeats         string                      `json:"repeats"`
	NextDue         string                      `json:"nextDue,omitempty"`
	AddedTime       time.Time                   `json:"addedTime"`
}

func (h *ChoreHandler) present(c model.Chore) choreResponse {
	resp := choreResponse{
		ID:              c.ID,
		Title:           c.Title,
		AssignedTo:      c.AssignedTo,
		StartDate:       dateutil.Format(c.StartDate),
		RepeatFrequency: c.Rule.Encode().RepeatFrequency,
		Repeats:         c.Rule.Describe(),
		AddedTime:       c.AddedTime,
	}
	if next, ok := recurrence.Next(c.Rule, c.StartDate, h.now()); ok {
		resp.NextDue = dateutil.Format(next)
	}
	return resp
}

func (h *ChoreHandler) List(w http.ResponseWriter, r *http.Request) {
	chores, err := h.groups.Chores(r.Context(), auth.GroupID(r.Context()))
	if err != nil {
		writeAppError(w, err, "load chores")
		return
	}
	out := make([]choreResponse, len(chores))
	for i, c := range chores {
		out[i] = h.present(c)
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *ChoreHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req choreRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	ctx := r.Context()
	chore, err := h.groups.AddChore(ctx, auth.GroupID(ctx), auth.UserID(ctx), req.input())
	if err != nil {
		logUnexpected(h.logger, "add chore", err)
		writeAppError(w, err, "add chore")
		return
	}
	writeJSON(w, http.StatusCreated, h.present(*chore))
}

func (h *ChoreHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req choreRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	ctx := r.Context()
	chore, err := h.groups.EditChore(ctx, auth.GroupID(ctx), auth.UserID(ctx), r.PathValue("id"), req.input())
	if err != nil {
		logUnexpected(h.logger, "edit chore", err)
		writeAppError(w, err, "update chore")
		return
	}
	writeJSON(w, http.StatusOK, h.present(*chore))
}

func (h *ChoreHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.groups.DeleteChore(r.Context(), auth.GroupID(r.Context()), r.PathValue("id")); err != nil {
		writeAppError(w, err, "delete chore")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
