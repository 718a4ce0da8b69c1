package middleware

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/dukerupert/chora/internal/auth"
	"github.com/dukerupert/chora/internal/store"
)

// RequireAuth validates the session cookie and populates AuthContext with
// the user's current group.
func RequireAuth(sessionStore *store.SessionStore, userStore *store.UserStore, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(auth.SessionCookieName)
			if err != nil || cookie.Value == "" {
				unauthorized(w)
				return
			}

			sess, err := sessionStore.GetByToken(r.Context(), cookie.Value)
			if err != nil {
				logger.Error("session lookup failed", "error", err)
				unauthorized(w)
				return
			}
			if sess == nil {
				unauthorized(w)
				return
			}

			user, err := userStore.GetByID(r.Context(), sess.UserID)
			if err != nil {
				logger.Error("session user lookup failed", "user_id", sess.UserID, "error", err)
				unauthorized(w)
				return
			}
			if user == nil {
				unauthorized(w)
				return
			}

			ac := auth.AuthContext{
				UserID:    user.UID,
				GroupID:   user.GroupID,
				SessionID: sess.Token,
			}
			recordAuth(r.Context(), ac)
			next.ServeHTTP(w, r.WithContext(auth.WithAuth(r.Context(), ac)))
		})
	}
}

// RequireGroup rejects requests from users who have not joined a group.
func RequireGroup(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if auth.GroupID(r.Context()) == "" {
			writeError(w, http.StatusConflict, "join or create a group first")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func unauthorized(w http.ResponseWriter) {
	writeError(w, http.StatusUnauthorized, "sign in required")
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
