package store

import (
	"context"
	"errors"
	"time"

	"github.com/parlorhq/session-service/internal/domain"
)

// ErrNotFound is returned by Get for missing, expired, or evicted
// records. Callers cannot distinguish early backend eviction from
// natural expiry.
var ErrNotFound = errors.New("session record not found")

// ErrUnavailable wraps backend transport failures. Fetch paths treat it
// as a miss (fail-open to anonymous); create paths propagate it.
var ErrUnavailable = errors.New("session store unavailable")

// SessionStore is a TTL key-value view over a shared cache, holding
// opaque-token -> record. Implementations provide no in-process locking;
// concurrent Put is last-write-wins.
type SessionStore interface {
	Get(ctx context.Context, opaque string) (*domain.Record, error)
	Put(ctx context.Context, opaque string, rec domain.Record, ttl time.Duration) error
	// Delete is idempotent: deleting an absent key succeeds.
	Delete(ctx context.Context, opaque string) error
}
