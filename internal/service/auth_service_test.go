package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/parlorhq/session-service/internal/config"
	"github.com/parlorhq/session-service/internal/domain"
	"github.com/parlorhq/session-service/internal/repository"
	"github.com/parlorhq/session-service/internal/security"
)

type fakeUserRepo struct {
	byID      map[uint]*domain.User
	byEmail   map[string]*domain.User
	bySubject map[string]*domain.User
	nextID    uint
	updates   int
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{
		byID:      map[uint]*domain.User{},
		byEmail:   map[string]*domain.User{},
		bySubject: map[string]*domain.User{},
		nextID:    1,
	}
}

func (r *fakeUserRepo) FindByID(id uint) (*domain.User, error) {
	if u, ok := r.byID[id]; ok {
		return u, nil
	}
	return nil, repository.ErrUserNotFound
}

func (r *fakeUserRepo) FindByEmail(email string) (*domain.User, error) {
	if u, ok := r.byEmail[email]; ok {
		return u, nil
	}
	return nil, repository.ErrUserNotFound
}

func (r *fakeUserRepo) FindByProviderSubject(provider, subject string) (*domain.User, error) {
	if u, ok := r.bySubject[provider+"/"+subject]; ok {
		return u, nil
	}
	return nil, repository.ErrUserNotFound
}

func (r *fakeUserRepo) Create(u *domain.User) error {
	u.ID = r.nextID
	r.nextID++
	r.byID[u.ID] = u
	r.byEmail[u.Email] = u
	if u.Provider != "" {
		r.bySubject[u.Provider+"/"+u.Subject] = u
	}
	return nil
}

func (r *fakeUserRepo) Update(u *domain.User) error {
	r.updates++
	r.byID[u.ID] = u
	return nil
}

func authConfigForTest() *config.Config {
	return &config.Config{SessionSecret: strings.Repeat("s", 32)}
}

func TestLoginWithPasswordSuccess(t *testing.T) {
	repo := newFakeUserRepo()
	hash, err := security.HashPassword("hunter2hunter2")
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	_ = repo.Create(&domain.User{Email: "ada@example.com", PasswordHash: hash})
	svc := NewAuthService(authConfigForTest(), repo)

	user, err := svc.LoginWithPassword(context.Background(), "ada@example.com", "hunter2hunter2")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if user.Email != "ada@example.com" {
		t.Fatalf("unexpected user %+v", user)
	}
}

func TestLoginWithPasswordWrongPasswordAndUnknownEmailLookAlike(t *testing.T) {
	repo := newFakeUserRepo()
	hash, err := security.HashPassword("correct-password")
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	_ = repo.Create(&domain.User{Email: "ada@example.com", PasswordHash: hash})
	svc := NewAuthService(authConfigForTest(), repo)

	_, err1 := svc.LoginWithPassword(context.Background(), "ada@example.com", "wrong")
	_, err2 := svc.LoginWithPassword(context.Background(), "nobody@example.com", "wrong")
	if !errors.Is(err1, ErrBadLogin) || !errors.Is(err2, ErrBadLogin) {
		t.Fatalf("expected identical ErrBadLogin, got %v and %v", err1, err2)
	}
}

func TestLoginWithPasswordRejectsPasswordlessAccount(t *testing.T) {
	// OAuth-only accounts have no hash; they must not be loggable with
	// an empty password.
	repo := newFakeUserRepo()
	_ = repo.Create(&domain.User{Email: "oauth@example.com", Provider: "google", Subject: "s"})
	svc := NewAuthService(authConfigForTest(), repo)

	if _, err := svc.LoginWithPassword(context.Background(), "oauth@example.com", ""); !errors.Is(err, ErrBadLogin) {
		t.Fatalf("expected ErrBadLogin, got %v", err)
	}
}

func TestGoogleDisabledWithoutConfig(t *testing.T) {
	svc := NewAuthService(authConfigForTest(), newFakeUserRepo())
	if svc.GoogleEnabled() {
		t.Fatal("google must be disabled without client credentials")
	}
	if url := svc.GoogleLoginURL("state"); url != "" {
		t.Fatalf("expected empty login url, got %q", url)
	}
	if _, err := svc.LoginWithGoogleCode(context.Background(), "code"); err == nil {
		t.Fatal("expected error when google oauth is not configured")
	}
}

func TestGoogleLoginURLCarriesState(t *testing.T) {
	cfg := authConfigForTest()
	cfg.GoogleClientID = "client-id"
	cfg.GoogleClientSecret = "client-secret"
	cfg.GoogleRedirectURL = "https://app.example.com/auth/google/callback"
	svc := NewAuthService(cfg, newFakeUserRepo())

	url := svc.GoogleLoginURL("nonce-123")
	if !strings.Contains(url, "state=nonce-123") {
		t.Fatalf("expected state in url, got %q", url)
	}
	if !strings.Contains(url, "client_id=client-id") {
		t.Fatalf("expected client id in url, got %q", url)
	}
}

func TestUpsertGoogleUserCreatesThenUpdates(t *testing.T) {
	cfg := authConfigForTest()
	cfg.GoogleClientID = "id"
	cfg.GoogleClientSecret = "secret"
	cfg.GoogleRedirectURL = "https://app.example.com/cb"
	repo := newFakeUserRepo()
	svc := NewAuthService(cfg, repo)

	claims := &googleIDClaims{Email: "g@example.com", Name: "G"}
	claims.Subject = "sub-1"

	created, err := svc.upsertGoogleUser(claims)
	if err != nil {
		t.Fatalf("upsert create: %v", err)
	}
	if created.ID == 0 || created.Provider != "google" || created.Subject != "sub-1" {
		t.Fatalf("unexpected created user %+v", created)
	}

	claims.Email = "renamed@example.com"
	claims.Name = "G Renamed"
	updated, err := svc.upsertGoogleUser(claims)
	if err != nil {
		t.Fatalf("upsert update: %v", err)
	}
	if updated.ID != created.ID {
		t.Fatalf("expected same user id, got %d and %d", created.ID, updated.ID)
	}
	if updated.Email != "renamed@example.com" || updated.DisplayName != "G Renamed" {
		t.Fatalf("expected refreshed profile, got %+v", updated)
	}
}
