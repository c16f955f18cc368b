package service

import (
	"context"
	"errors"

	"github.com/parlorhq/session-service/internal/domain"
	"github.com/parlorhq/session-service/internal/repository"
)

// IdentityResolver turns a session's user reference into a full user
// with privilege flags and lock status. A user deleted after session
// issuance yields ErrUnknownUser, which callers treat as anonymous.
type IdentityResolver interface {
	Resolve(ctx context.Context, userID uint) (*domain.User, error)
}

type RepoIdentityResolver struct {
	users repository.UserRepository
}

func NewIdentityResolver(users repository.UserRepository) *RepoIdentityResolver {
	return &RepoIdentityResolver{users: users}
}

func (r *RepoIdentityResolver) Resolve(_ context.Context, userID uint) (*domain.User, error) {
	user, err := r.users.FindByID(userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUnknownUser
		}
		return nil, err
	}
	return user, nil
}
