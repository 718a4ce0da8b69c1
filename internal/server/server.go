package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/chora/internal/backup"
	"github.com/dukerupert/chora/internal/config"
	"github.com/dukerupert/chora/internal/docstore"
	"github.com/dukerupert/chora/internal/group"
	"github.com/dukerupert/chora/internal/handler"
	"github.com/dukerupert/chora/internal/ledger"
	"github.com/dukerupert/chora/internal/middleware"
	"github.com/dukerupert/chora/internal/store"
	ws "github.com/dukerupert/chora/internal/websocket"
)

type Server struct {
	hub           *ws.Hub
	authH         *handler.AuthHandler
	groupH        *handler.GroupHandler
	choreH        *handler.ChoreHandler
	completionH   *handler.CompletionHandler
	scheduleH     *handler.ScheduleHandler
	reportH       *handler.ReportHandler
	backupH       *handler.BackupHandler
	sessionStore  *store.SessionStore
	userStore     *store.UserStore
	rateLimiter   *middleware.RateLimiter
	backupManager *backup.Manager
	logger        *slog.Logger

	allowedOrigins []string
}

func New(docs docstore.Store, cfg config.Config, logger *slog.Logger) *Server {
	hub := ws.NewHub(logger.With("component", "websocket"))

	userStore := store.NewUserStore(docs)
	sessionStore := store.NewSessionStore(docs)
	groupStore := store.NewGroupStore(docs)
	choreStore := store.NewChoreStore(docs, logger)
	completionStore := store.NewCompletionStore(docs)

	groups := group.NewService(groupStore, userStore, choreStore, hub, logger)
	led := ledger.New(completionStore, choreStore, hub, logger)

	backupMgr := backup.NewManager(cfg.Backup, groupStore, choreStore, completionStore, func(groupID string, s backup.Status) {
		hub.BroadcastGroup(groupID, ws.Message{
			Type:   "backup_status",
			Entity: "backup",
			Action: string(s.State),
			Extra: map[string]any{
				"in_progress": s.InProgress,
				"error":       s.Error,
			},
		})
	}, logger.With("component", "backup"))

	authH := handler.NewAuthHandler(userStore, sessionStore, cfg.SessionTTL, logger)
	scheduleH := handler.NewScheduleHandler(groups, led, cfg.WeekStart, logger)
	authH.OnLogout(scheduleH.Forget)

	return &Server{
		hub:           hub,
		authH:         authH,
		groupH:        handler.NewGroupHandler(groups, logger),
		choreH:        handler.NewChoreHandler(groups, logger),
		completionH:   handler.NewCompletionHandler(led, logger),
		scheduleH:     scheduleH,
		reportH:       handler.NewReportHandler(groups, led),
		backupH:       handler.NewBackupHandler(backupMgr, hub, logger, groups, led),
		sessionStore:  sessionStore,
		userStore:     userStore,
		rateLimiter:   middleware.NewRateLimiter(),
		backupManager: backupMgr,
		logger:        logger,

		allowedOrigins: cfg.AllowedOrigins,
	}
}

// SessionStore returns the session store for cleanup tasks.
func (s *Server) SessionStore() *store.SessionStore {
	return s.sessionStore
}

// RateLimiter returns the rate limiter for cleanup tasks.
// CleanupSessions deletes expired sessions and the schedule filters of
// sessions that no longer exist. It returns the number of sessions deleted.
func (s *Server) CleanupSessions(ctx context.Context) (int, error) {
	n, err := s.sessionStore.DeleteExpired(ctx)
	if err != nil {
		return n, err
	}
	if pruned := s.scheduleH.PruneFilters(ctx, s.sessionStore); pruned > 0 {
		s.logger.Debug("pruned schedule filters", "count", pruned)
	}
	return n, nil
}

func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

// Hub returns the WebSocket hub.
func (s *Server) Hub() *ws.Hub {
	return s.hub
}

func (s *Server) Router() http.Handler {
	outerMux := http.NewServeMux()

	// Public routes (no auth required)
	outerMux.HandleFunc("GET /health", s.healthHandler)
	outerMux.HandleFunc("POST /api/register", s.rateLimitedHandler(s.authH.Register))
	outerMux.HandleFunc("POST /api/login", s.rateLimitedHandler(s.authH.Login))

	// Protected routes, wrapped with RequireAuth
	protectedMux := http.NewServeMux()
	s.registerProtectedRoutes(protectedMux)

	authMiddleware := middleware.RequireAuth(s.sessionStore, s.userStore, s.logger.With("component", "auth"))
	outerMux.Handle("/", authMiddleware(protectedMux))

	return middleware.RequestLogger(s.logger.With("component", "http"))(outerMux)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) rateLimitedHandler(h http.HandlerFunc) http.HandlerFunc {
	keyFunc := func(r *http.Request) string {
		return middleware.RealIP(r)
	}
	rl := middleware.RateLimit(s.rateLimiter, keyFunc, 10, time.Minute)
	return func(w http.ResponseWriter, r *http.Request) {
		rl(http.HandlerFunc(h)).ServeHTTP(w, r)
	}
}

func (s *Server) registerProtectedRoutes(mux *http.ServeMux) {
	// Account and group membership; these work before a group is joined.
	mux.HandleFunc("POST /api/logout", s.authH.Logout)
	mux.HandleFunc("GET /api/me", s.authH.Me)
	mux.HandleFunc("POST /api/groups", s.groupH.Create)
	mux.HandleFunc("POST /api/groups/join", s.groupH.Join)

	// Everything below needs a group.
	g := func(h http.HandlerFunc) http.Handler {
		return middleware.RequireGroup(h)
	}

	mux.Handle("GET /api/group", g(s.groupH.Get))

	mux.Handle("GET /api/chores", g(s.choreH.List))
	mux.Handle("POST /api/chores", g(s.choreH.Create))
	mux.Handle("PUT /api/chores/{id}", g(s.choreH.Update))
	mux.Handle("DELETE /api/chores/{id}", g(s.choreH.Delete))
	mux.Handle("PUT /api/chores/{id}/completions/{date}", g(s.completionH.Toggle))
	mux.Handle("GET /api/completions", g(s.completionH.List))

	mux.Handle("GET /api/schedule/day", g(s.scheduleH.Day))
	mux.Handle("GET /api/schedule/week", g(s.scheduleH.Week))
	mux.Handle("POST /api/schedule/filter/{uid}", g(s.scheduleH.ToggleFilter))

	mux.Handle("GET /api/reports", g(s.reportH.Get))

	mux.Handle("POST /api/backups", g(s.backupH.Create))
	mux.Handle("GET /api/backups", g(s.backupH.List))
	mux.Handle("POST /api/backups/restore", g(s.backupH.Restore))

	mux.Handle("GET /ws", g(ws.HandleWebSocket(s.hub, s.allowedOrigins, s.logger.With("component", "websocket"))))
}
