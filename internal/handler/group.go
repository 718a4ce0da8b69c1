package handler

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/chora/internal/auth"
	"github.com/dukerupert/chora/internal/group"
	"github.com/dukerupert/chora/internal/model"
)

type GroupHandler struct {
	groups *group.Service
	logger *slog.Logger
}

func NewGroupHandler(groups *group.Service, logger *slog.Logger) *GroupHandler {
	return &GroupHandler{groups: groups, logger: logger.With("component", "group_handler")}
}

type groupResponse struct {
	Group   *model.Group   `json:"group"`
	Members []model.Member `json:"members"`
}

func (h *GroupHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	g, err := h.groups.CreateGroup(r.Context(), auth.UserID(r.Context()), req.Name)
	if err != nil {
		logUnexpected(h.logger, "create group", err)
		writeAppError(w, err, "create group")
		return
	}
	h.respond(w, r, http.StatusCreated, g)
}

func (h *GroupHandler) Join(w http.ResponseWriter, r *http.Request) {
	var req struct {
		GroupID string `json:"groupId"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	g, err := h.groups.JoinGroup(r.Context(), auth.UserID(r.Context()), req.GroupID)
	if err != nil {
		logUnexpected(h.logger, "join group", err)
		writeAppError(w, err, "join group")
		return
	}
	h.respond(w, r, http.StatusOK, g)
}

func (h *GroupHandler) Get(w http.ResponseWriter, r *http.Request) {
	g, err := h.groups.Group(r.Context(), auth.GroupID(r.Context()))
	if err != nil {
		writeAppError(w, err, "load group")
		return
	}
	h.respond(w, r, http.StatusOK, g)
}

func (h *GroupHandler) respond(w http.ResponseWriter, r *http.Request, status int, g *model.Group) {
	members, err := h.groups.Members(r.Context(), g.ID)
	if err != nil {
		writeAppError(w, err, "load members")
		return
	}
	if members == nil {
		members = []model.Member{}
	}
	writeJSON(w, status, groupResponse{Group: g, Members: members})
}
