package integration

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/parlorhq/session-service/internal/config"
	"github.com/parlorhq/session-service/internal/domain"
	"github.com/parlorhq/session-service/internal/health"
	"github.com/parlorhq/session-service/internal/http/handler"
	"github.com/parlorhq/session-service/internal/http/middleware"
	"github.com/parlorhq/session-service/internal/http/router"
	"github.com/parlorhq/session-service/internal/repository"
	"github.com/parlorhq/session-service/internal/security"
	"github.com/parlorhq/session-service/internal/service"
	"github.com/parlorhq/session-service/internal/store"
)

const (
	testEmail    = "ada@example.com"
	testPassword = "Valid#Pass1234"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type fixture struct {
	baseURL  string
	client   *http.Client
	mini     *miniredis.Miniredis
	store    *store.RedisSessionStore
	codec    *security.TokenCodec
	sessions *service.SessionService
	users    repository.UserRepository
	user     *domain.User
}

func newSessionTestServer(t *testing.T) (*fixture, func()) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	sessionStore := store.NewRedisSessionStore(client, "session")

	codec, err := security.NewTokenCodec("0123456789abcdef0123456789abcdef", "integration")
	if err != nil {
		t.Fatalf("NewTokenCodec: %v", err)
	}
	svc := service.NewSessionService(codec, sessionStore, 168*time.Hour, time.Hour)

	db, err := repository.OpenDB("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("OpenDB: %v", err)
	}
	if err := repository.Migrate(db); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	users := repository.NewUserRepository(db)

	hash, err := security.HashPassword(testPassword)
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	user := &domain.User{Email: testEmail, DisplayName: "Ada", PasswordHash: hash}
	if err := users.Create(user); err != nil {
		t.Fatalf("seed user: %v", err)
	}

	cookie := middleware.CookieSettings{Name: "session"}
	mw := middleware.NewSessionMiddleware(svc, service.NewIdentityResolver(users), cookie)
	auth := service.NewAuthService(&config.Config{}, users)
	h := router.NewRouter(router.Dependencies{
		AuthHandler:      handler.NewAuthHandler(auth, svc, mw, cookie),
		SessionHandler:   handler.NewSessionHandler(),
		Sessions:         mw,
		AuthRateLimitRPM: 1000,
		Readiness: health.NewProbeRunner(time.Second,
			health.Check{Name: "redis", Probe: sessionStore.Ping},
		),
	})

	srv := httptest.NewServer(h)
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookiejar: %v", err)
	}

	f := &fixture{
		baseURL:  srv.URL,
		client:   &http.Client{Jar: jar, Timeout: 10 * time.Second},
		mini:     mr,
		store:    sessionStore,
		codec:    codec,
		sessions: svc,
		users:    users,
		user:     user,
	}
	closeFn := func() {
		srv.Close()
		_ = client.Close()
	}
	return f, closeFn
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any, headers map[string]string) (*http.Response, envelope) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	return resp, env
}

func login(t *testing.T, f *fixture) string {
	t.Helper()
	resp, env := doJSON(t, f.client, http.MethodPost, f.baseURL+"/api/v1/auth/local/login",
		map[string]string{"email": testEmail, "password": testPassword}, nil)
	if resp.StatusCode != http.StatusCreated || !env.Success {
		t.Fatalf("login failed: status=%d success=%v", resp.StatusCode, env.Success)
	}
	var data struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		t.Fatalf("decode session resource: %v", err)
	}
	if data.TokenType != "Bearer" || data.AccessToken == "" {
		t.Fatalf("unexpected session resource %+v", data)
	}
	return data.AccessToken
}
