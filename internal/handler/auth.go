package handler

import (
	"log/slog"
	"net/http"
	"net/mail"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/dukerupert/chora/internal/auth"
	"github.com/dukerupert/chora/internal/group"
	"github.com/dukerupert/chora/internal/store"
)

const (
	minPasswordLength = 8
	// bcrypt only reads the first 72 bytes of a password.
	maxPasswordLength = 72
)

type AuthHandler struct {
	userStore    *store.UserStore
	sessionStore *store.SessionStore
	sessionTTL   time.Duration
	cost         int
	logger       *slog.Logger
	onLogout     []func(sessionID string)

	dummyOnce sync.Once
	dummyHash []byte
}

func NewAuthHandler(us *store.UserStore, ss *store.SessionStore, sessionTTL time.Duration, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		userStore:    us,
		sessionStore: ss,
		sessionTTL:   sessionTTL,
		cost:         bcrypt.DefaultCost,
		logger:       logger.With("component", "auth"),
	}
}

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Username string `json:"username"`
	Color    string `json:"color"`
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	if _, err := mail.ParseAddress(email); err != nil {
		writeError(w, http.StatusBadRequest, "a valid email is required")
		return
	}
	if len(req.Password) < minPasswordLength {
		writeError(w, http.StatusBadRequest, "password must be at least 8 characters")
		return
	}
	if len(req.Password) > maxPasswordLength {
		writeError(w, http.StatusBadRequest, "password must be at most 72 bytes")
		return
	}

	existing, err := h.userStore.GetByEmail(r.Context(), email)
	if err != nil {
		h.logger.Error("register lookup", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to sign up, please retry")
		return
	}
	if existing != nil {
		writeError(w, http.StatusConflict, "an account with this email already exists")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), h.cost)
	if err != nil {
		h.logger.Error("hash password", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to sign up, please retry")
		return
	}

	color := strings.TrimSpace(req.Color)
	if color == "" {
		color = group.ColorFor(email)
	}
	user, err := h.userStore.Create(r.Context(), email, strings.TrimSpace(req.Username), color, string(hash))
	if err != nil {
		h.logger.Error("create user", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to sign up, please retry")
		return
	}
	h.logger.Info("user registered", "user_id", user.UID)

	if !h.startSession(w, r, user.UID) {
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// placeholderHash is compared against for unknown emails so they take as
// long as a wrong password. It uses the same cost as real hashes.
func (h *AuthHandler) placeholderHash() []byte {
	h.dummyOnce.Do(func() {
		h.dummyHash, _ = bcrypt.GenerateFromPassword([]byte("chora-placeholder"), h.cost)
	})
	return h.dummyHash
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	user, err := h.userStore.GetByEmail(r.Context(), req.Email)
	if err != nil {
		h.logger.Error("login lookup", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to sign in, please retry")
		return
	}
	if user == nil {
		bcrypt.CompareHashAndPassword(h.placeholderHash(), []byte(req.Password))
		writeError(w, http.StatusUnauthorized, "invalid email or password")
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		writeError(w, http.StatusUnauthorized, "invalid email or password")
		return
	}

	if !h.startSession(w, r, user.UID) {
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *AuthHandler) startSession(w http.ResponseWriter, r *http.Request, userID string) bool {
	sess, err := h.sessionStore.Create(r.Context(), userID, h.sessionTTL)
	if err != nil {
		h.logger.Error("create session", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to sign in, please retry")
		return false
	}
	http.SetCookie(w, &http.Cookie{
		Name:     auth.SessionCookieName,
		Value:    sess.Token,
		Path:     "/",
		Expires:  sess.ExpiresAt,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
	return true
}

// OnLogout registers fn to run with the session id after a sign-out.
func (h *AuthHandler) OnLogout(fn func(sessionID string)) {
	h.onLogout = append(h.onLogout, fn)
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if token := auth.SessionID(r.Context()); token != "" {
		if err := h.sessionStore.Delete(r.Context(), token); err != nil {
			h.logger.Error("delete session", "error", err)
		}
		for _, fn := range h.onLogout {
			fn(token)
		}
	}
	http.SetCookie(w, &http.Cookie{
		Name:     auth.SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
	w.WriteHeader(http.StatusNoContent)
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, err := h.userStore.GetByID(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		h.logger.Error("load current user", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load user, please retry")
		return
	}
	if user == nil {
		writeError(w, http.StatusUnauthorized, "sign in required")
		return
	}
	writeJSON(w, http.StatusOK, user)
}
