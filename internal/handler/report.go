package handler

import (
	"net/http"

	"github.com/dukerupert/chora/internal/auth"
	"github.com/dukerupert/chora/internal/group"
	"github.com/dukerupert/chora/internal/ledger"
	"github.com/dukerupert/chora/internal/report"
)

type ReportHandler struct {
	groups *group.Service
	ledger *ledger.Ledger
}

func NewReportHandler(groups *group.Service, l *ledger.Ledger) *ReportHandler {
	return &ReportHandler{groups: groups, ledger: l}
}

// Get handles GET /api/reports?from=&to=. Without bounds every record the
// group has is counted.
func (h *ReportHandler) Get(w http.ResponseWriter, r *http.Request) {
	from, to, err := dateRange(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx := r.Context()
	gid := auth.GroupID(ctx)
	chores, err := h.groups.Chores(ctx, gid)
	if err != nil {
		writeAppError(w, err, "load chores")
		return
	}
	members, err := h.groups.Members(ctx, gid)
	if err != nil {
		writeAppError(w, err, "load members")
		return
	}
	view, err := h.ledger.View(ctx, gid)
	if err != nil {
		writeAppError(w, err, "load completions")
		return
	}

	records := report.FilterRange(view.Records(), from, to)
	writeJSON(w, http.StatusOK, report.Aggregate(chores, records, members))
}
