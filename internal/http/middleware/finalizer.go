package middleware

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"sync"

	"github.com/parlorhq/session-service/internal/http/response"
)

const commitListContextKey contextKey = "deferred_commits"

type commitList struct {
	mu  sync.Mutex
	fns []func(context.Context) error
}

func (l *commitList) add(fn func(context.Context) error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.fns = append(l.fns, fn)
}

func (l *commitList) run(ctx context.Context) error {
	l.mu.Lock()
	fns := l.fns
	l.fns = nil
	l.mu.Unlock()
	for _, fn := range fns {
		if err := fn(ctx); err != nil {
			return err
		}
	}
	return nil
}

// DeferCommit registers fn to run exactly once, after the handler has
// produced its response but before that response reaches the client.
// Session writes go through here so a request that dies mid-handler
// never persists anything. Returns false when no pipeline is installed.
func DeferCommit(ctx context.Context, fn func(context.Context) error) bool {
	list, ok := ctx.Value(commitListContextKey).(*commitList)
	if !ok {
		return false
	}
	list.add(fn)
	return true
}

// CommitPipeline buffers the downstream response and executes deferred
// commits once the handler returns. A panic discards the buffer without
// committing; a failed commit replaces the buffered response with a 500
// so a session is never reported as created without being persisted.
func CommitPipeline(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		buf := newBufferedResponseWriter()
		list := &commitList{}
		ctx := context.WithValue(r.Context(), commitListContextKey, list)

		next.ServeHTTP(buf, r.WithContext(ctx))

		if err := list.run(r.Context()); err != nil {
			slog.ErrorContext(r.Context(), "deferred session commit failed", "error", err.Error())
			response.Error(w, r, http.StatusInternalServerError, "SESSION_COMMIT_FAILED", "session could not be persisted", nil)
			return
		}
		buf.flush(w)
	})
}

type bufferedResponseWriter struct {
	header http.Header
	status int
	body   bytes.Buffer
}

func newBufferedResponseWriter() *bufferedResponseWriter {
	return &bufferedResponseWriter{header: make(http.Header)}
}

func (b *bufferedResponseWriter) Header() http.Header { return b.header }

func (b *bufferedResponseWriter) WriteHeader(code int) {
	if b.status == 0 {
		b.status = code
	}
}

func (b *bufferedResponseWriter) Write(p []byte) (int, error) {
	if b.status == 0 {
		b.status = http.StatusOK
	}
	return b.body.Write(p)
}

func (b *bufferedResponseWriter) flush(w http.ResponseWriter) {
	dst := w.Header()
	for k, vs := range b.header {
		dst[k] = vs
	}
	status := b.status
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	_, _ = w.Write(b.body.Bytes())
}
