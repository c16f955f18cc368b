package middleware

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/parlorhq/session-service/internal/http/response"
	"github.com/parlorhq/session-service/internal/observability"
	"github.com/parlorhq/session-service/internal/security"
	"github.com/parlorhq/session-service/internal/service"
)

// SessionMiddleware resolves request credentials into an identity.
// Authenticate is the optional-auth pass: every credential problem
// silently downgrades to anonymous. RequireAuth and RequireUnlocked
// are the route guards layered on top.
type SessionMiddleware struct {
	sessions service.SessionLifecycle
	identity service.IdentityResolver
	cookie   CookieSettings
}

func NewSessionMiddleware(sessions service.SessionLifecycle, identity service.IdentityResolver, cookie CookieSettings) *SessionMiddleware {
	return &SessionMiddleware{sessions: sessions, identity: identity, cookie: cookie}
}

// ExtractToken returns the signed token and its transport. Bearer takes
// precedence over the session cookie.
func (m *SessionMiddleware) ExtractToken(r *http.Request) (string, string) {
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(strings.ToLower(auth), "bearer ") {
		if raw := strings.TrimSpace(auth[7:]); raw != "" {
			return raw, "bearer"
		}
	}
	if raw := security.GetCookie(r, m.cookie.Name); raw != "" {
		return raw, "cookie"
	}
	return "", "none"
}

// Authenticate attaches the principal for valid sessions and rotates
// tokens nearing expiry. It never rejects: downstream guards decide
// whether anonymous is acceptable.
func (m *SessionMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		raw, source := m.ExtractToken(r)

		res, err := m.sessions.Resolve(ctx, raw)
		if err != nil {
			observability.RecordSessionFetch(ctx, fetchOutcome(err), source)
			next.ServeHTTP(w, r)
			return
		}

		user, err := m.identity.Resolve(ctx, res.UserID)
		if err != nil {
			observability.RecordSessionFetch(ctx, "unknown_user", source)
			next.ServeHTTP(w, r)
			return
		}

		view := &service.View{User: user, SignedToken: res.SignedToken, ExpiresIn: res.ExpiresIn}
		outcome := "authenticated"

		rotated, err := m.sessions.MaybeRotate(res)
		if err != nil {
			// Token generation failed; the current session still works.
			slog.WarnContext(ctx, "session rotation skipped", "error", err.Error())
		} else if rotated != nil {
			if !DeferCommit(ctx, rotated.Commit) {
				// No commit pipeline installed (direct handler tests);
				// persist immediately rather than lose the session.
				if err := rotated.Commit(ctx); err != nil {
					response.Error(w, r, http.StatusInternalServerError, "SESSION_COMMIT_FAILED", "session could not be persisted", nil)
					return
				}
			}
			SetSessionCookie(w, m.cookie, rotated.SignedToken, m.sessions.Lifetime())
			view.SignedToken = rotated.SignedToken
			view.ExpiresIn = rotated.ExpiresIn
			outcome = "renewed"
			observability.RecordSessionRenewal(ctx, "rotated")
			observability.Audit(r, "session.renewed", "user_id", user.ID)
		}

		observability.RecordSessionFetch(ctx, outcome, source)
		next.ServeHTTP(w, r.WithContext(withPrincipal(ctx, &Principal{User: user, Session: view})))
	})
}

// RequireAuth rejects anonymous requests. It expects Authenticate to
// have run earlier in the chain.
func (m *SessionMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if CurrentUser(r.Context()) == nil {
			response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireUnlocked is the lock gate: a locked account gets its current
// session revoked and an explicit rejection, distinct from the silent
// anonymous downgrade.
func (m *SessionMiddleware) RequireUnlocked(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		p, ok := principalFrom(ctx)
		if !ok {
			response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
			return
		}
		if p.User.Locked() {
			if err := m.sessions.Delete(ctx, p.Session.SignedToken); err != nil {
				slog.WarnContext(ctx, "forced session revocation failed", "error", err.Error(), "user_id", p.User.ID)
			}
			ClearSessionCookie(w, m.cookie)
			observability.RecordLockGateRejection(ctx)
			observability.RecordSessionDelete(ctx, "account_locked")
			observability.Audit(r, "session.lock_gate_rejected", "user_id", p.User.ID)
			response.Error(w, r, http.StatusUnauthorized, "ACCOUNT_LOCKED", "account is locked", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func fetchOutcome(err error) string {
	switch {
	case err == nil:
		return "authenticated"
	case errors.Is(err, service.ErrNoCredential):
		return "no_credential"
	case errors.Is(err, service.ErrInvalidCredential):
		return "invalid_credential"
	case errors.Is(err, service.ErrSessionNotFound):
		return "expired_or_evicted"
	default:
		return "error"
	}
}
