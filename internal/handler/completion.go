package handler

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/chora/internal/auth"
	"github.com/dukerupert/chora/internal/dateutil"
	"github.com/dukerupert/chora/internal/ledger"
	"github.com/dukerupert/chora/internal/model"
	"github.com/dukerupert/chora/internal/report"
)

type CompletionHandler struct {
	ledger *ledger.Ledger
	logger *slog.Logger
}

func NewCompletionHandler(l *ledger.Ledger, logger *slog.Logger) *CompletionHandler {
	return &CompletionHandler{ledger: l, logger: logger.With("component", "completion_handler")}
}

// Toggle handles PUT /api/chores/{id}/completions/{date}.
func (h *CompletionHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	date, err := dateutil.Parse(r.PathValue("date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req struct {
		Completed *bool `json:"completed"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Completed == nil {
		writeError(w, http.StatusBadRequest, "completed is required")
		return
	}

	ctx := r.Context()
	rec, err := h.ledger.Toggle(ctx, auth.GroupID(ctx), auth.UserID(ctx), r.PathValue("id"), date, *req.Completed)
	if err != nil {
		logUnexpected(h.logger, "toggle completion", err)
		writeAppError(w, err, "update completion")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// List returns the group's completion records, optionally limited to
// from/to (inclusive).
func (h *CompletionHandler) List(w http.ResponseWriter, r *http.Request) {
	from, to, err := dateRange(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	view, err := h.ledger.View(r.Context(), auth.GroupID(r.Context()))
	if err != nil {
		writeAppError(w, err, "load completions")
		return
	}
	records := report.FilterRange(view.Records(), from, to)
	if records == nil {
		records = []model.CompletionRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}
