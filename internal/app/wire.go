//go:build wireinject
// +build wireinject

package app

import (
	"context"

	"github.com/google/wire"

	"github.com/parlorhq/session-service/internal/config"
	"github.com/parlorhq/session-service/internal/http/handler"
	"github.com/parlorhq/session-service/internal/http/middleware"
	"github.com/parlorhq/session-service/internal/repository"
	"github.com/parlorhq/session-service/internal/service"
)

func Initialize(ctx context.Context) (*App, error) {
	wire.Build(
		config.Load,
		provideLogging,
		wire.FieldsOf(new(*Logging), "Logger"),
		provideRedisClient,
		provideSessionStore,
		provideTokenCodec,
		provideSessionService,
		wire.Bind(new(service.SessionLifecycle), new(*service.SessionService)),
		provideDB,
		repository.NewUserRepository,
		service.NewIdentityResolver,
		wire.Bind(new(service.IdentityResolver), new(*service.RepoIdentityResolver)),
		service.NewAuthService,
		wire.Bind(new(service.AuthServiceInterface), new(*service.AuthService)),
		provideCookieSettings,
		middleware.NewSessionMiddleware,
		handler.NewAuthHandler,
		handler.NewSessionHandler,
		provideReadiness,
		provideRouter,
		provideServer,
		provideRuntime,
		provideStop,
		New,
	)
	return nil, nil
}
