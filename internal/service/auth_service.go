package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/parlorhq/session-service/internal/config"
	"github.com/parlorhq/session-service/internal/domain"
	"github.com/parlorhq/session-service/internal/repository"
	"github.com/parlorhq/session-service/internal/security"
)

// AuthService is the external credential-validation step: on success it
// hands a verified user to the session subsystem, which is the only
// component allowed to mint sessions.
type AuthService struct {
	users  repository.UserRepository
	google *oauth2.Config
}

func NewAuthService(cfg *config.Config, users repository.UserRepository) *AuthService {
	s := &AuthService{users: users}
	if cfg.GoogleEnabled() {
		s.google = &oauth2.Config{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			RedirectURL:  cfg.GoogleRedirectURL,
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint:     google.Endpoint,
		}
	}
	return s
}

// LoginWithPassword validates local credentials. The same ErrBadLogin
// comes back for unknown email and wrong password.
func (s *AuthService) LoginWithPassword(_ context.Context, email, password string) (*domain.User, error) {
	user, err := s.users.FindByEmail(email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrBadLogin
		}
		return nil, err
	}
	if user.PasswordHash == "" || !security.VerifyPassword(user.PasswordHash, password) {
		return nil, ErrBadLogin
	}
	return user, nil
}

func (s *AuthService) GoogleEnabled() bool { return s.google != nil }

func (s *AuthService) GoogleLoginURL(state string) string {
	if s.google == nil {
		return ""
	}
	return s.google.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

type googleIDClaims struct {
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	jwt.RegisteredClaims
}

// LoginWithGoogleCode exchanges the callback code and upserts a local
// user keyed by (provider, subject). The ID token arrives directly from
// Google over TLS during the code exchange, so its claims are read
// without a second signature check.
func (s *AuthService) LoginWithGoogleCode(ctx context.Context, code string) (*domain.User, error) {
	if s.google == nil {
		return nil, errors.New("google oauth is not configured")
	}
	token, err := s.google.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("exchange google code: %w", err)
	}
	rawID, _ := token.Extra("id_token").(string)
	if rawID == "" {
		return nil, errors.New("google token response missing id_token")
	}

	claims := &googleIDClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(rawID, claims); err != nil {
		return nil, fmt.Errorf("parse google id token: %w", err)
	}
	if claims.Subject == "" || claims.Email == "" {
		return nil, errors.New("google id token missing subject or email")
	}
	if !claims.EmailVerified {
		return nil, errors.New("google account email not verified")
	}

	return s.upsertGoogleUser(claims)
}

func (s *AuthService) upsertGoogleUser(claims *googleIDClaims) (*domain.User, error) {
	user, err := s.users.FindByProviderSubject("google", claims.Subject)
	if err == nil {
		changed := false
		if user.Email != claims.Email {
			user.Email = claims.Email
			changed = true
		}
		if claims.Name != "" && user.DisplayName != claims.Name {
			user.DisplayName = claims.Name
			changed = true
		}
		if changed {
			if err := s.users.Update(user); err != nil {
				return nil, err
			}
		}
		return user, nil
	}
	if !errors.Is(err, repository.ErrUserNotFound) {
		return nil, err
	}

	user = &domain.User{
		Email:       claims.Email,
		DisplayName: claims.Name,
		Provider:    "google",
		Subject:     claims.Subject,
	}
	if err := s.users.Create(user); err != nil {
		return nil, err
	}
	return user, nil
}
