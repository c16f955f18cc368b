package handler

import (
	"net/http"
	"time"

	"github.com/parlorhq/session-service/internal/domain"
	"github.com/parlorhq/session-service/internal/http/middleware"
	"github.com/parlorhq/session-service/internal/http/response"
)

// sessionResource is the wire shape of a live session. expires_in is
// milliseconds remaining, observed at response time.
type sessionResource struct {
	User        *domain.User `json:"user"`
	AccessToken string       `json:"access_token"`
	TokenType   string       `json:"token_type"`
	ExpiresIn   int64        `json:"expires_in"`
}

func newSessionResource(user *domain.User, token string, expiresIn time.Duration) sessionResource {
	return sessionResource{
		User:        user,
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   expiresIn.Milliseconds(),
	}
}

// SessionHandler serves the introspection endpoints for an already
// authenticated request.
type SessionHandler struct{}

func NewSessionHandler() *SessionHandler { return &SessionHandler{} }

func (h *SessionHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	user := middleware.CurrentUser(r.Context())
	sess := middleware.CurrentSession(r.Context())
	if user == nil || sess == nil {
		response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return
	}
	response.JSON(w, r, http.StatusOK, newSessionResource(user, sess.SignedToken, sess.ExpiresIn))
}

func (h *SessionHandler) Me(w http.ResponseWriter, r *http.Request) {
	user := middleware.CurrentUser(r.Context())
	if user == nil {
		response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return
	}
	response.JSON(w, r, http.StatusOK, user)
}
