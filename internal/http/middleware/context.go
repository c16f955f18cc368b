package middleware

import (
	"context"

	"github.com/parlorhq/session-service/internal/domain"
	"github.com/parlorhq/session-service/internal/service"
)

type contextKey string

const principalContextKey contextKey = "principal"

// Principal is the per-request authenticated identity. Requests that
// fail credential resolution simply carry no principal.
type Principal struct {
	User    *domain.User
	Session *service.View
}

func withPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalContextKey, p)
}

func principalFrom(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalContextKey).(*Principal)
	return p, ok && p != nil
}

// CurrentUser returns the authenticated user, or nil for anonymous
// requests.
func CurrentUser(ctx context.Context) *domain.User {
	if p, ok := principalFrom(ctx); ok {
		return p.User
	}
	return nil
}

// CurrentSession returns the live session view, or nil for anonymous
// requests.
func CurrentSession(ctx context.Context) *service.View {
	if p, ok := principalFrom(ctx); ok {
		return p.Session
	}
	return nil
}
