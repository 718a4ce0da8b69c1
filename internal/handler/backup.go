package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/dukerupert/chora/internal/auth"
	"github.com/dukerupert/chora/internal/backup"
	"github.com/dukerupert/chora/internal/websocket"
)

// CacheInvalidator is implemented by the services that cache a group's
// collections.
type CacheInvalidator interface {
	Invalidate(groupID string)
}

type BackupHandler struct {
	manager *backup.Manager
	caches  []CacheInvalidator
	hub     *websocket.Hub
	logger  *slog.Logger
}

// NewBackupHandler builds a BackupHandler. caches are dropped for the group
// after a restore so the next read sees the imported documents.
func NewBackupHandler(m *backup.Manager, hub *websocket.Hub, logger *slog.Logger, caches ...CacheInvalidator) *BackupHandler {
	return &BackupHandler{
		manager: m,
		caches:  caches,
		hub:     hub,
		logger:  logger.With("component", "backup_handler"),
	}
}

type backupRequest struct {
	Passphrase string `json:"passphrase"`
}

// Create handles POST /api/backups.
func (h *BackupHandler) Create(w http.ResponseWriter, r *http.Request) {
	if !h.manager.Enabled() {
		writeError(w, http.StatusServiceUnavailable, backup.ErrDisabled.Error())
		return
	}
	var req backupRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Passphrase == "" {
		writeError(w, http.StatusBadRequest, "passphrase is required")
		return
	}

	gid := auth.GroupID(r.Context())
	key, err := h.manager.RunNow(r.Context(), gid, req.Passphrase)
	if err != nil {
		h.logger.Error("backup failed", "group_id", gid, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create backup, please retry")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"key": key})
}

// List handles GET /api/backups.
func (h *BackupHandler) List(w http.ResponseWriter, r *http.Request) {
	gid := auth.GroupID(r.Context())
	if !h.manager.Enabled() {
		writeJSON(w, http.StatusOK, map[string]any{
			"status":  h.manager.Status(gid),
			"backups": []backup.Object{},
		})
		return
	}

	objects, err := h.manager.List(r.Context(), gid)
	if err != nil {
		h.logger.Error("list backups", "group_id", gid, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list backups, please retry")
		return
	}
	if objects == nil {
		objects = []backup.Object{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  h.manager.Status(gid),
		"backups": objects,
	})
}

type restoreRequest struct {
	Key        string `json:"key"`
	Passphrase string `json:"passphrase"`
}

// Restore handles POST /api/backups/restore.
func (h *BackupHandler) Restore(w http.ResponseWriter, r *http.Request) {
	if !h.manager.Enabled() {
		writeError(w, http.StatusServiceUnavailable, backup.ErrDisabled.Error())
		return
	}
	var req restoreRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Key == "" || req.Passphrase == "" {
		writeError(w, http.StatusBadRequest, "key and passphrase are required")
		return
	}

	gid := auth.GroupID(r.Context())
	archive, err := h.manager.Restore(r.Context(), gid, req.Key, req.Passphrase)
	switch {
	case errors.Is(err, backup.ErrWrongGroup):
		writeError(w, http.StatusForbidden, err.Error())
		return
	case errors.Is(err, backup.ErrDecrypt), errors.Is(err, backup.ErrCiphertextTooShort), errors.Is(err, backup.ErrArchiveFormat):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		h.logger.Error("restore failed", "group_id", gid, "key", req.Key, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to restore backup, please retry")
		return
	}

	for _, c := range h.caches {
		c.Invalidate(gid)
	}
	if h.hub != nil {
		h.hub.BroadcastGroup(gid, websocket.NewMessage("backup", "restored", req.Key, nil))
	}
	writeJSON(w, http.StatusOK, map[string]int{
		"chores":      len(archive.Chores),
		"completions": len(archive.Completions),
	})
}
