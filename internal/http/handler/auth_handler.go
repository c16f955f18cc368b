package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/parlorhq/session-service/internal/domain"
	"github.com/parlorhq/session-service/internal/http/middleware"
	"github.com/parlorhq/session-service/internal/http/response"
	"github.com/parlorhq/session-service/internal/observability"
	"github.com/parlorhq/session-service/internal/security"
	"github.com/parlorhq/session-service/internal/service"
)

const oauthStateCookie = "oauth_state"

// AuthHandler owns the login and logout endpoints. Credential checks
// live in AuthService; this layer only translates HTTP in and out and
// establishes the session once a user has been verified.
type AuthHandler struct {
	auth     service.AuthServiceInterface
	sessions service.SessionLifecycle
	tokens   *middleware.SessionMiddleware
	cookie   middleware.CookieSettings
}

func NewAuthHandler(auth service.AuthServiceInterface, sessions service.SessionLifecycle, tokens *middleware.SessionMiddleware, cookie middleware.CookieSettings) *AuthHandler {
	return &AuthHandler{auth: auth, sessions: sessions, tokens: tokens, cookie: cookie}
}

type localLoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *AuthHandler) LocalLogin(w http.ResponseWriter, r *http.Request) {
	var req localLoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" || req.Password == "" {
		response.Error(w, r, http.StatusBadRequest, "INVALID_REQUEST", "email and password are required", nil)
		return
	}

	user, err := h.auth.LoginWithPassword(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrBadLogin) {
			observability.RecordSessionCreate(r.Context(), "local", "bad_credentials")
			observability.Audit(r, "login.rejected", "flow", "local")
			response.Error(w, r, http.StatusUnauthorized, "INVALID_CREDENTIALS", "invalid email or password", nil)
			return
		}
		observability.RecordSessionCreate(r.Context(), "local", "error")
		response.Error(w, r, http.StatusInternalServerError, "LOGIN_FAILED", "could not process login", nil)
		return
	}

	h.establishSession(w, r, user, "local")
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	raw, _ := h.tokens.ExtractToken(r)
	if err := h.sessions.Delete(r.Context(), raw); err != nil {
		response.Error(w, r, http.StatusInternalServerError, "SESSION_DELETE_FAILED", "could not revoke session", nil)
		return
	}
	middleware.ClearSessionCookie(w, h.cookie)
	observability.RecordSessionDelete(r.Context(), "logout")
	observability.Audit(r, "session.deleted", "reason", "logout")
	response.JSON(w, r, http.StatusOK, map[string]bool{"logged_out": true})
}

func (h *AuthHandler) GoogleLogin(w http.ResponseWriter, r *http.Request) {
	if !h.auth.GoogleEnabled() {
		response.Error(w, r, http.StatusNotFound, "NOT_FOUND", "google login is not enabled", nil)
		return
	}
	state := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   int((10 * time.Minute).Seconds()),
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, h.auth.GoogleLoginURL(state), http.StatusFound)
}

func (h *AuthHandler) GoogleCallback(w http.ResponseWriter, r *http.Request) {
	if !h.auth.GoogleEnabled() {
		response.Error(w, r, http.StatusNotFound, "NOT_FOUND", "google login is not enabled", nil)
		return
	}
	state := r.URL.Query().Get("state")
	expected := security.GetCookie(r, oauthStateCookie)
	http.SetCookie(w, &http.Cookie{Name: oauthStateCookie, Value: "", Path: "/", MaxAge: -1, HttpOnly: true})
	if state == "" || expected == "" || state != expected {
		response.Error(w, r, http.StatusBadRequest, "INVALID_STATE", "oauth state mismatch", nil)
		return
	}
	code := r.URL.Query().Get("code")
	if code == "" {
		response.Error(w, r, http.StatusBadRequest, "INVALID_REQUEST", "missing authorization code", nil)
		return
	}

	user, err := h.auth.LoginWithGoogleCode(r.Context(), code)
	if err != nil {
		observability.RecordSessionCreate(r.Context(), "google", "error")
		observability.Audit(r, "login.rejected", "flow", "google")
		response.Error(w, r, http.StatusUnauthorized, "GOOGLE_AUTH_FAILED", "google sign-in failed", nil)
		return
	}

	h.establishSession(w, r, user, "google")
}

// establishSession mints the session, defers its store write to the
// commit pipeline, and reports it to the client. Locked accounts are
// refused before any session exists.
func (h *AuthHandler) establishSession(w http.ResponseWriter, r *http.Request, user *domain.User, flow string) {
	if user.Locked() {
		observability.RecordSessionCreate(r.Context(), flow, "account_locked")
		observability.RecordLockGateRejection(r.Context())
		observability.Audit(r, "login.rejected", "flow", flow, "user_id", user.ID, "reason", "locked")
		response.Error(w, r, http.StatusUnauthorized, "ACCOUNT_LOCKED", "account is locked", nil)
		return
	}

	issued, err := h.sessions.Issue(user.ID)
	if err != nil {
		observability.RecordSessionCreate(r.Context(), flow, "error")
		response.Error(w, r, http.StatusInternalServerError, "SESSION_CREATE_FAILED", "could not create session", nil)
		return
	}
	if !middleware.DeferCommit(r.Context(), issued.Commit) {
		// No pipeline installed (direct handler tests); persist now.
		if err := issued.Commit(r.Context()); err != nil {
			observability.RecordSessionCreate(r.Context(), flow, "store_error")
			response.Error(w, r, http.StatusInternalServerError, "SESSION_COMMIT_FAILED", "session could not be persisted", nil)
			return
		}
	}

	middleware.SetSessionCookie(w, h.cookie, issued.SignedToken, h.sessions.Lifetime())
	observability.RecordSessionCreate(r.Context(), flow, "issued")
	observability.Audit(r, "session.created", "flow", flow, "user_id", user.ID)
	response.JSON(w, r, http.StatusCreated, newSessionResource(user, issued.SignedToken, issued.ExpiresIn))
}
