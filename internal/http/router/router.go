package router

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/parlorhq/session-service/internal/health"
	"github.com/parlorhq/session-service/internal/http/handler"
	"github.com/parlorhq/session-service/internal/http/middleware"
	"github.com/parlorhq/session-service/internal/http/response"
)

type Dependencies struct {
	AuthHandler      *handler.AuthHandler
	SessionHandler   *handler.SessionHandler
	Sessions         *middleware.SessionMiddleware
	Logger           *slog.Logger
	AuthRateLimitRPM int
	AuthRateLimiter  func(http.Handler) http.Handler
	Readiness        *health.ProbeRunner
	EnableOTelHTTP   bool
}

// NewRouter assembles the HTTP surface. Recovery sits outside the
// commit pipeline so a panicking handler discards both its buffered
// response and any pending session writes.
func NewRouter(dep Dependencies) http.Handler {
	logger := dep.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.RequestID)
	r.Use(middleware.StructuredRequestLogger(logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.SecurityHeaders)

	authLimiter := dep.AuthRateLimiter
	if authLimiter == nil {
		authLimiter = middleware.NewRateLimiter(dep.AuthRateLimitRPM, time.Minute).Middleware()
	}

	r.Get("/health/live", func(w http.ResponseWriter, r *http.Request) {
		response.JSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		if dep.Readiness == nil {
			response.JSON(w, r, http.StatusOK, map[string]any{"status": "ready", "checks": []any{}})
			return
		}
		ready, results := dep.Readiness.Ready(r.Context())
		if ready {
			response.JSON(w, r, http.StatusOK, map[string]any{"status": "ready", "checks": results})
			return
		}
		response.Error(w, r, http.StatusServiceUnavailable, "DEPENDENCY_UNREADY", "dependencies are not ready", map[string]any{"checks": results})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.CommitPipeline)
		r.Use(dep.Sessions.Authenticate)

		r.Route("/auth", func(r chi.Router) {
			r.With(authLimiter).Post("/local/login", dep.AuthHandler.LocalLogin)
			r.With(authLimiter).Get("/google/login", dep.AuthHandler.GoogleLogin)
			r.With(authLimiter).Get("/google/callback", dep.AuthHandler.GoogleCallback)
		})

		r.Post("/logout", dep.AuthHandler.Logout)

		r.Group(func(r chi.Router) {
			r.Use(dep.Sessions.RequireAuth)
			r.Use(dep.Sessions.RequireUnlocked)
			r.Get("/session", dep.SessionHandler.GetSession)
			r.Get("/me", dep.SessionHandler.Me)
		})
	})

	var h http.Handler = r
	if dep.EnableOTelHTTP {
		h = otelhttp.NewHandler(r, "http.server")
	}
	return h
}
