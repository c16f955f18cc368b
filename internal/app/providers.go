package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"gorm.io/gorm"

	"github.com/parlorhq/session-service/internal/config"
	"github.com/parlorhq/session-service/internal/health"
	"github.com/parlorhq/session-service/internal/http/handler"
	"github.com/parlorhq/session-service/internal/http/middleware"
	"github.com/parlorhq/session-service/internal/http/router"
	"github.com/parlorhq/session-service/internal/observability"
	"github.com/parlorhq/session-service/internal/repository"
	"github.com/parlorhq/session-service/internal/security"
	"github.com/parlorhq/session-service/internal/service"
	"github.com/parlorhq/session-service/internal/store"
)

// Logging bundles the application logger with the OTel provider that
// backs it, so both can flow through injection separately.
type Logging struct {
	Logger   *slog.Logger
	Provider *sdklog.LoggerProvider
}

func provideLogging(ctx context.Context, cfg *config.Config) (*Logging, error) {
	logger, lp, err := observability.InitLogging(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &Logging{Logger: logger, Provider: lp}, nil
}

// provideRedisClient returns nil when the memory store is configured;
// downstream providers treat a nil client as "redis not in play".
func provideRedisClient(cfg *config.Config) redis.UniversalClient {
	if cfg.SessionStore != config.StoreRedis {
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
}

func provideSessionStore(cfg *config.Config, client redis.UniversalClient) (store.SessionStore, error) {
	switch cfg.SessionStore {
	case config.StoreRedis:
		return store.NewRedisSessionStore(client, cfg.SessionRedisPrefix), nil
	case config.StoreMemory:
		return store.NewMemorySessionStore(), nil
	default:
		return nil, fmt.Errorf("unknown session store %q", cfg.SessionStore)
	}
}

func provideTokenCodec(cfg *config.Config) (*security.TokenCodec, error) {
	return security.NewTokenCodec(cfg.SessionSecret, cfg.SessionSalt)
}

func provideSessionService(cfg *config.Config, codec *security.TokenCodec, sessions store.SessionStore) *service.SessionService {
	return service.NewSessionService(codec, sessions, cfg.SessionLifetime, cfg.SessionRenewWithin)
}

func provideDB(cfg *config.Config) (*gorm.DB, error) {
	db, err := repository.OpenDB(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		return nil, err
	}
	if err := repository.Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

func provideCookieSettings(cfg *config.Config) middleware.CookieSettings {
	return middleware.CookieSettings{Name: cfg.SessionCookieName, Secure: cfg.SessionCookieSecure}
}

func provideReadiness(cfg *config.Config, client redis.UniversalClient, db *gorm.DB) *health.ProbeRunner {
	var checks []health.Check
	if client != nil {
		checks = append(checks, health.Check{Name: "redis", Probe: func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		}})
	}
	checks = append(checks, health.Check{Name: "database", Probe: func(ctx context.Context) error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.PingContext(ctx)
	}})
	return health.NewProbeRunner(2*time.Second, checks...)
}

func provideRouter(
	cfg *config.Config,
	logger *slog.Logger,
	authHandler *handler.AuthHandler,
	sessionHandler *handler.SessionHandler,
	sessions *middleware.SessionMiddleware,
	readiness *health.ProbeRunner,
) http.Handler {
	return router.NewRouter(router.Dependencies{
		AuthHandler:      authHandler,
		SessionHandler:   sessionHandler,
		Sessions:         sessions,
		Logger:           logger,
		AuthRateLimitRPM: cfg.AuthRateLimitRPM,
		Readiness:        readiness,
		EnableOTelHTTP:   cfg.OTELTracesEnabled,
	})
}

func provideServer(cfg *config.Config, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

func provideRuntime(ctx context.Context, cfg *config.Config, logging *Logging) (*observability.Runtime, error) {
	return observability.InitRuntime(ctx, cfg, logging.Logger, logging.Provider)
}

func provideStop(logger *slog.Logger, client redis.UniversalClient, db *gorm.DB) StopFunc {
	return func() {
		if client != nil {
			if err := client.Close(); err != nil {
				logger.Warn("closing redis client", "error", err.Error())
			}
		}
		if db != nil {
			if sqlDB, err := db.DB(); err == nil {
				if err := sqlDB.Close(); err != nil {
					logger.Warn("closing database", "error", err.Error())
				}
			}
		}
	}
}
