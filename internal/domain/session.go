package domain

import "time"

// Record is the state persisted in the session store under the opaque
// token key. The store TTL is the source of truth for expiry; ExpiresAt
// is carried so the remaining lifetime can be computed without a second
// round trip.
type Record struct {
	UserID    uint      `json:"user_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (r Record) ExpiresIn(now time.Time) time.Duration {
	return r.ExpiresAt.Sub(now)
}

func (r Record) Expired(now time.Time) bool {
	return !r.ExpiresAt.After(now)
}
