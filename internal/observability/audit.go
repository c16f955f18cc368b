package observability

import (
	"log/slog"
	"net/http"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
)

// Audit emits a structured audit line for security-relevant events
// (login, logout, session rotation, lock-gate rejection). The event_id
// is unique per line so downstream pipelines can deduplicate replays.
func Audit(r *http.Request, event string, attrs ...any) {
	requestID := chimiddleware.GetReqID(r.Context())
	if requestID == "" {
		requestID = r.Header.Get("X-Request-Id")
	}
	base := []any{
		"event", event,
		"event_id", uuid.NewString(),
		"method", r.Method,
		"path", r.URL.Path,
		"request_id", requestID,
	}
	if sc := trace.SpanContextFromContext(r.Context()); sc.IsValid() {
		base = append(base, "trace_id", sc.TraceID().String())
	}
	base = append(base, attrs...)
	slog.InfoContext(r.Context(), "audit", base...)
}
