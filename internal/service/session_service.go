package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/parlorhq/session-service/internal/domain"
	"github.com/parlorhq/session-service/internal/security"
	"github.com/parlorhq/session-service/internal/store"
)

// Resolved is the outcome of verifying a signed token against the
// store: a pure read, no side effects. ExpiresIn is the remaining
// lifetime at observation time.
type Resolved struct {
	UserID      uint
	Opaque      string
	SignedToken string
	ExpiresIn   time.Duration
}

// View is the per-request projection handed to the rest of the
// application once the identity has been attached. Derived, never
// persisted.
type View struct {
	User        *domain.User  `json:"user"`
	SignedToken string        `json:"access_token"`
	ExpiresIn   time.Duration `json:"-"`
}

// IssuedSession is a session that has been minted but not yet
// persisted. Commit performs the store write; the HTTP pipeline runs it
// only once the response is about to be sent, so an aborted request
// never leaves an orphaned record.
type IssuedSession struct {
	SignedToken string
	ExpiresIn   time.Duration

	opaque string
	userID uint
	svc    *SessionService
}

// Commit computes the final expiry and persists the record. A failure
// here must be treated as a failed create by the caller.
func (i *IssuedSession) Commit(ctx context.Context) error {
	now := i.svc.now()
	rec := domain.Record{UserID: i.userID, ExpiresAt: now.Add(i.svc.lifetime)}
	if err := i.svc.sessions.Put(ctx, i.opaque, rec, i.svc.lifetime); err != nil {
		return fmt.Errorf("commit session: %w", err)
	}
	return nil
}

type SessionService struct {
	codec       *security.TokenCodec
	sessions    store.SessionStore
	lifetime    time.Duration
	renewWithin time.Duration
	now         func() time.Time
}

func NewSessionService(codec *security.TokenCodec, sessions store.SessionStore, lifetime, renewWithin time.Duration) *SessionService {
	return &SessionService{
		codec:       codec,
		sessions:    sessions,
		lifetime:    lifetime,
		renewWithin: renewWithin,
		now:         time.Now,
	}
}

func (s *SessionService) Lifetime() time.Duration { return s.lifetime }

// Issue mints a fresh opaque token and signs it. No store write happens
// until the returned session's Commit runs.
func (s *SessionService) Issue(userID uint) (*IssuedSession, error) {
	opaque, err := security.NewOpaqueToken()
	if err != nil {
		return nil, err
	}
	return &IssuedSession{
		SignedToken: s.codec.Sign(opaque),
		ExpiresIn:   s.lifetime,
		opaque:      opaque,
		userID:      userID,
		svc:         s,
	}, nil
}

// Resolve verifies a signed token and loads its record. Store
// unavailability is deliberately folded into ErrSessionNotFound: fetch
// paths fail open to anonymous.
func (s *SessionService) Resolve(ctx context.Context, signed string) (*Resolved, error) {
	if signed == "" {
		return nil, ErrNoCredential
	}
	opaque, err := s.codec.Verify(signed)
	if err != nil {
		return nil, ErrInvalidCredential
	}
	rec, err := s.sessions.Get(ctx, opaque)
	if err != nil {
		if errors.Is(err, store.ErrUnavailable) {
			slog.WarnContext(ctx, "session store unavailable, treating as miss", "error", err.Error())
		}
		return nil, ErrSessionNotFound
	}
	expiresIn := rec.ExpiresIn(s.now())
	if expiresIn <= 0 {
		return nil, ErrSessionNotFound
	}
	return &Resolved{
		UserID:      rec.UserID,
		Opaque:      opaque,
		SignedToken: signed,
		ExpiresIn:   expiresIn,
	}, nil
}

// MaybeRotate returns a replacement session when the remaining lifetime
// is below the renewal threshold, nil otherwise. The prior record is
// intentionally left in place; it stays valid until its own natural
// expiry.
func (s *SessionService) MaybeRotate(res *Resolved) (*IssuedSession, error) {
	if res.ExpiresIn >= s.renewWithin {
		return nil, nil
	}
	return s.Issue(res.UserID)
}

// Delete revokes the session behind a signed token. Absent or invalid
// tokens are a no-op success, and deleting an already-deleted session
// succeeds too.
func (s *SessionService) Delete(ctx context.Context, signed string) error {
	if signed == "" {
		return nil
	}
	opaque, err := s.codec.Verify(signed)
	if err != nil {
		return nil
	}
	return s.sessions.Delete(ctx, opaque)
}

// SetClock overrides the service clock for tests.
func (s *SessionService) SetClock(now func() time.Time) { s.now = now }
