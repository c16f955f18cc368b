package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/parlorhq/session-service/internal/domain"
	"github.com/parlorhq/session-service/internal/security"
	"github.com/parlorhq/session-service/internal/service"
	"github.com/parlorhq/session-service/internal/store"
)

type fakeIdentity struct {
	users map[uint]*domain.User
}

func (f *fakeIdentity) Resolve(_ context.Context, userID uint) (*domain.User, error) {
	if u, ok := f.users[userID]; ok {
		return u, nil
	}
	return nil, service.ErrUnknownUser
}

type middlewareFixture struct {
	mw       *SessionMiddleware
	svc      *service.SessionService
	codec    *security.TokenCodec
	sessions *store.MemorySessionStore
	identity *fakeIdentity
}

func newMiddlewareFixture(t *testing.T) *middlewareFixture {
	t.Helper()
	codec, err := security.NewTokenCodec("0123456789abcdef0123456789abcdef", "middleware-test")
	if err != nil {
		t.Fatalf("NewTokenCodec: %v", err)
	}
	sessions := store.NewMemorySessionStore()
	svc := service.NewSessionService(codec, sessions, 168*time.Hour, time.Hour)
	identity := &fakeIdentity{users: map[uint]*domain.User{
		1: {Email: "ada@example.com", DisplayName: "Ada"},
	}}
	identity.users[1].ID = 1
	return &middlewareFixture{
		mw:       NewSessionMiddleware(svc, identity, CookieSettings{Name: "session"}),
		svc:      svc,
		codec:    codec,
		sessions: sessions,
		identity: identity,
	}
}

func (f *middlewareFixture) issueSession(t *testing.T, userID uint) string {
	t.Helper()
	issued, err := f.svc.Issue(userID)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if err := issued.Commit(context.Background()); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	return issued.SignedToken
}

// issueExpiringSession plants a record whose remaining lifetime is
// already under the renewal threshold.
func (f *middlewareFixture) issueExpiringSession(t *testing.T, userID uint, remaining time.Duration) string {
	t.Helper()
	opaque, err := security.NewOpaqueToken()
	if err != nil {
		t.Fatalf("NewOpaqueToken: %v", err)
	}
	rec := domain.Record{UserID: userID, ExpiresAt: time.Now().Add(remaining)}
	if err := f.sessions.Put(context.Background(), opaque, rec, remaining); err != nil {
		t.Fatalf("Put: %v", err)
	}
	return f.codec.Sign(opaque)
}

func echoUserHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if u := CurrentUser(r.Context()); u != nil {
			_ = json.NewEncoder(w).Encode(map[string]any{"user_id": u.ID})
			return
		}
		_, _ = w.Write([]byte(`{"anonymous":true}`))
	})
}

func TestAuthenticateBearerToken(t *testing.T) {
	f := newMiddlewareFixture(t)
	token := f.issueSession(t, 1)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	f.mw.Authenticate(echoUserHandler()).ServeHTTP(rr, req)

	if !strings.Contains(rr.Body.String(), `"user_id":1`) {
		t.Fatalf("expected authenticated user 1, got body %s", rr.Body.String())
	}
}

func TestAuthenticateCookieFallback(t *testing.T) {
	f := newMiddlewareFixture(t)
	token := f.issueSession(t, 1)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/me", nil)
	req.AddCookie(&http.Cookie{Name: "session", Value: token})
	rr := httptest.NewRecorder()
	f.mw.Authenticate(echoUserHandler()).ServeHTTP(rr, req)

	if !strings.Contains(rr.Body.String(), `"user_id":1`) {
		t.Fatalf("expected cookie session to authenticate, got body %s", rr.Body.String())
	}
}

func TestAuthenticateBearerOutranksCookie(t *testing.T) {
	f := newMiddlewareFixture(t)
	f.identity.users[2] = &domain.User{Email: "bob@example.com"}
	f.identity.users[2].ID = 2
	bearerToken := f.issueSession(t, 2)
	cookieToken := f.issueSession(t, 1)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/me", nil)
	req.Header.Set("Authorization", "Bearer "+bearerToken)
	req.AddCookie(&http.Cookie{Name: "session", Value: cookieToken})
	rr := httptest.NewRecorder()
	f.mw.Authenticate(echoUserHandler()).ServeHTTP(rr, req)

	if !strings.Contains(rr.Body.String(), `"user_id":2`) {
		t.Fatalf("expected bearer identity to win, got body %s", rr.Body.String())
	}
}

func TestAuthenticateTamperedTokenIsAnonymous(t *testing.T) {
	f := newMiddlewareFixture(t)
	token := f.issueSession(t, 1)
	tampered := token[:len(token)-2] + "zz"

	req := httptest.NewRequest(http.MethodGet, "/api/v1/me", nil)
	req.Header.Set("Authorization", "Bearer "+tampered)
	rr := httptest.NewRecorder()
	f.mw.Authenticate(echoUserHandler()).ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("tampered token must not surface an error, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "anonymous") {
		t.Fatalf("expected anonymous downgrade, got body %s", rr.Body.String())
	}
}

func TestAuthenticateUnknownUserIsAnonymous(t *testing.T) {
	f := newMiddlewareFixture(t)
	token := f.issueSession(t, 42)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	f.mw.Authenticate(echoUserHandler()).ServeHTTP(rr, req)

	if !strings.Contains(rr.Body.String(), "anonymous") {
		t.Fatalf("expected anonymous for vanished user, got body %s", rr.Body.String())
	}
}

func TestAuthenticateNoCredentialIsAnonymous(t *testing.T) {
	f := newMiddlewareFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/me", nil)
	rr := httptest.NewRecorder()
	f.mw.Authenticate(echoUserHandler()).ServeHTTP(rr, req)

	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "anonymous") {
		t.Fatalf("expected silent anonymous pass, got %d %s", rr.Code, rr.Body.String())
	}
}

func TestAuthenticateRotatesExpiringSession(t *testing.T) {
	f := newMiddlewareFixture(t)
	oldToken := f.issueExpiringSession(t, 1, 30*time.Minute)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/me", nil)
	req.Header.Set("Authorization", "Bearer "+oldToken)
	rr := httptest.NewRecorder()
	CommitPipeline(f.mw.Authenticate(echoUserHandler())).ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	cookies := rr.Result().Cookies()
	var refreshed *http.Cookie
	for _, c := range cookies {
		if c.Name == "session" {
			refreshed = c
		}
	}
	if refreshed == nil || refreshed.Value == "" {
		t.Fatal("expected a refreshed session cookie on rotation")
	}
	if refreshed.Value == oldToken {
		t.Fatal("rotation must mint a new token")
	}
	if got := int(168 * time.Hour / time.Second); refreshed.MaxAge != got {
		t.Fatalf("cookie Max-Age = %d, want %d", refreshed.MaxAge, got)
	}

	// The replacement was committed and the prior session still works.
	if f.sessions.Len() != 2 {
		t.Fatalf("expected old and new records, store has %d", f.sessions.Len())
	}
	if _, err := f.svc.Resolve(context.Background(), oldToken); err != nil {
		t.Fatalf("old token should stay valid until natural expiry: %v", err)
	}
	if _, err := f.svc.Resolve(context.Background(), refreshed.Value); err != nil {
		t.Fatalf("rotated token should resolve: %v", err)
	}
}

func TestAuthenticateFreshSessionNotRotated(t *testing.T) {
	f := newMiddlewareFixture(t)
	token := f.issueSession(t, 1)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	CommitPipeline(f.mw.Authenticate(echoUserHandler())).ServeHTTP(rr, req)

	for _, c := range rr.Result().Cookies() {
		if c.Name == "session" {
			t.Fatalf("fresh session must not be rotated, got cookie %q", c.Value)
		}
	}
	if f.sessions.Len() != 1 {
		t.Fatalf("expected single record, store has %d", f.sessions.Len())
	}
}

func TestRequireAuthRejectsAnonymous(t *testing.T) {
	f := newMiddlewareFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/me", nil)
	rr := httptest.NewRecorder()
	f.mw.Authenticate(f.mw.RequireAuth(echoUserHandler())).ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for anonymous, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "UNAUTHORIZED") {
		t.Fatalf("expected UNAUTHORIZED code, got body %s", rr.Body.String())
	}
}

func TestRequireUnlockedRevokesLockedAccount(t *testing.T) {
	f := newMiddlewareFixture(t)
	lockedAt := time.Now().Add(-time.Minute)
	f.identity.users[1].LockedAt = &lockedAt
	token := f.issueSession(t, 1)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	f.mw.Authenticate(f.mw.RequireUnlocked(echoUserHandler())).ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for locked account, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "ACCOUNT_LOCKED") {
		t.Fatalf("expected ACCOUNT_LOCKED code, got body %s", rr.Body.String())
	}
	if f.sessions.Len() != 0 {
		t.Fatalf("lock gate must revoke the session, store has %d", f.sessions.Len())
	}
	var cleared bool
	for _, c := range rr.Result().Cookies() {
		if c.Name == "session" && c.MaxAge < 0 {
			cleared = true
		}
	}
	if !cleared {
		t.Fatal("expected session cookie to be cleared")
	}

	// The revoked token no longer authenticates.
	req2 := httptest.NewRequest(http.MethodGet, "/api/v1/me", nil)
	req2.Header.Set("Authorization", "Bearer "+token)
	rr2 := httptest.NewRecorder()
	f.mw.Authenticate(echoUserHandler()).ServeHTTP(rr2, req2)
	if !strings.Contains(rr2.Body.String(), "anonymous") {
		t.Fatalf("revoked token should downgrade to anonymous, got %s", rr2.Body.String())
	}
}

func TestRequireUnlockedPassesActiveAccount(t *testing.T) {
	f := newMiddlewareFixture(t)
	token := f.issueSession(t, 1)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	f.mw.Authenticate(f.mw.RequireUnlocked(echoUserHandler())).ServeHTTP(rr, req)

	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `"user_id":1`) {
		t.Fatalf("expected unlocked user to pass, got %d %s", rr.Code, rr.Body.String())
	}
}

func TestExtractToken(t *testing.T) {
	f := newMiddlewareFixture(t)
	cases := []struct {
		name       string
		header     string
		cookie     string
		wantToken  string
		wantSource string
	}{
		{"bearer only", "Bearer abc", "", "abc", "bearer"},
		{"cookie only", "", "xyz", "xyz", "cookie"},
		{"bearer wins", "Bearer abc", "xyz", "abc", "bearer"},
		{"case insensitive scheme", "bearer abc", "", "abc", "bearer"},
		{"empty bearer falls back", "Bearer ", "xyz", "xyz", "cookie"},
		{"nothing", "", "", "", "none"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			if tc.cookie != "" {
				req.AddCookie(&http.Cookie{Name: "session", Value: tc.cookie})
			}
			token, source := f.mw.ExtractToken(req)
			if token != tc.wantToken || source != tc.wantSource {
				t.Fatalf("ExtractToken = (%q, %q), want (%q, %q)", token, source, tc.wantToken, tc.wantSource)
			}
		})
	}
}
