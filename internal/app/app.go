package app

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/parlorhq/session-service/internal/config"
	"github.com/parlorhq/session-service/internal/health"
	"github.com/parlorhq/session-service/internal/observability"
)

// StopFunc releases background resources (store clients, database
// handles) once the HTTP server has drained.
type StopFunc func()

type App struct {
	Config        *config.Config
	Logger        *slog.Logger
	Server        *http.Server
	Observability *observability.Runtime
	Readiness     *health.ProbeRunner

	ShutdownTimeout              time.Duration
	ShutdownHTTPDrainTimeout     time.Duration
	ShutdownObservabilityTimeout time.Duration

	stop StopFunc
}

func New(cfg *config.Config, logger *slog.Logger, server *http.Server, runtime *observability.Runtime, readiness *health.ProbeRunner, stop StopFunc) *App {
	return &App{
		Config:                       cfg,
		Logger:                       logger,
		Server:                       server,
		Observability:                runtime,
		Readiness:                    readiness,
		ShutdownTimeout:              cfg.ShutdownTimeout,
		ShutdownHTTPDrainTimeout:     cfg.ShutdownHTTPDrainTimeout,
		ShutdownObservabilityTimeout: cfg.ShutdownObservabilityTimeout,
		stop:                         stop,
	}
}

func (a *App) StopBackgroundTasks() {
	if a.stop != nil {
		a.stop()
	}
}

// Run serves until ctx is cancelled, then drains in-flight requests and
// tears down clients and telemetry within the configured timeouts.
func (a *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.Logger.Info("http server listening", "addr", a.Server.Addr)
		if err := a.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		drainCtx, cancel := context.WithTimeout(context.Background(), a.ShutdownHTTPDrainTimeout)
		defer cancel()
		a.Logger.Info("draining http server")
		return a.Server.Shutdown(drainCtx)
	})

	err := g.Wait()

	a.StopBackgroundTasks()

	obsCtx, cancel := context.WithTimeout(context.Background(), a.ShutdownObservabilityTimeout)
	defer cancel()
	if shutdownErr := a.Observability.Shutdown(obsCtx); shutdownErr != nil {
		a.Logger.Warn("observability shutdown incomplete", "error", shutdownErr.Error())
	}

	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
