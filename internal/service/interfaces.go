package service

import (
	"context"
	"time"

	"github.com/parlorhq/session-service/internal/domain"
)

type AuthServiceInterface interface {
	LoginWithPassword(ctx context.Context, email, password string) (*domain.User, error)
	GoogleEnabled() bool
	GoogleLoginURL(state string) string
	LoginWithGoogleCode(ctx context.Context, code string) (*domain.User, error)
}

type SessionLifecycle interface {
	Issue(userID uint) (*IssuedSession, error)
	Resolve(ctx context.Context, signed string) (*Resolved, error)
	MaybeRotate(res *Resolved) (*IssuedSession, error)
	Delete(ctx context.Context, signed string) error
	Lifetime() time.Duration
}
