// Package guard implements the per-client abuse guard: a fixed rate window,
// a strike counter for policy violations and a temporary lockout.
package guard

import (
	"context"
	"encoding/hex"
	"fmt"
	"time"

	"golang.org/x/crypto/blake2b"
)

// State is the persisted guard state for one client.
type State struct {
	WindowStart time.Time `json:"window_start"`
	Count       int       `json:"count"`
	Strikes     int       `json:"strikes"`
	LockedUntil time.Time `json:"locked_until"`
}

// Locked reports whether the client is locked at now.
func (s State) Locked(now time.Time) bool {
	return !s.LockedUntil.IsZero() && now.Before(s.LockedUntil)
}

// Store persists guard state. Update must apply fn atomically with respect
// to other updates of the same key.
type Store interface {
	Update(ctx context.Context, key string, ttl time.Duration, fn func(*State)) (State, error)
	Get(ctx context.Context, key string) (State, bool, error)
	Close() error
}

// Policy holds the guard thresholds.
type Policy struct {
	Window       time.Duration
	Limit        int
	StrikeLimit  int
	LockDuration time.Duration
}

// DefaultPolicy allows 20 requests per 10 minutes and locks for 15 minutes
// after 3 strikes.
func DefaultPolicy() Policy {
	return Policy{
		Window:       10 * time.Minute,
		Limit:        20,
		StrikeLimit:  3,
		LockDuration: 15 * time.Minute,
	}
}

// Outcome of an admission check.
type Outcome string

const (
	Allowed     Outcome = "allowed"
	RateLimited Outcome = "rate_limited"
	Locked      Outcome = "locked"
)

// Decision is the result of Admit or Strike.
type Decision struct {
	Outcome     Outcome
	RetryAfter  time.Duration
	LockedUntil time.Time
	Strikes     int
	Remaining   int
}

// Guard applies Policy over a Store.
type Guard struct {
	store  Store
	policy Policy
	now    func() time.Time
}

// Option configures a Guard.
type Option func(*Guard)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(g *Guard) {
		g.now = now
	}
}

// New creates a guard over store.
func New(store Store, policy Policy, opts ...Option) *Guard {
	g := &Guard{store: store, policy: policy, now: time.Now}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Policy returns the configured thresholds.
func (g *Guard) Policy() Policy {
	return g.policy
}

func (g *Guard) ttl() time.Duration {
	if g.policy.LockDuration > g.policy.Window {
		return g.policy.LockDuration
	}
	return g.policy.Window
}

// expireLock clears an elapsed lockout and its strikes. Expiry is checked
// lazily on access.
func expireLock(s *State, now time.Time) {
	if !s.LockedUntil.IsZero() && !now.Before(s.LockedUntil) {
		s.LockedUntil = time.Time{}
		s.Strikes = 0
	}
}

// Admit counts a request against the client's window. Locked clients are
// rejected without consuming the window.
func (g *Guard) Admit(ctx context.Context, key string) (Decision, error) {
	now := g.now()
	var d Decision

	_, err := g.store.Update(ctx, key, g.ttl(), func(s *State) {
		expireLock(s, now)
		if s.Locked(now) {
			d = Decision{Outcome: Locked, LockedUntil: s.LockedUntil, Strikes: s.Strikes, RetryAfter: s.LockedUntil.Sub(now)}
			return
		}

		if s.WindowStart.IsZero() || now.Sub(s.WindowStart) >= g.policy.Window {
			s.WindowStart = now
			s.Count = 0
		}
		if s.Count >= g.policy.Limit {
			d = Decision{
				Outcome:    RateLimited,
				RetryAfter: s.WindowStart.Add(g.policy.Window).Sub(now),
				Strikes:    s.Strikes,
			}
			return
		}
		s.Count++
		d = Decision{Outcome: Allowed, Strikes: s.Strikes, Remaining: g.policy.Limit - s.Count}
	})
	if err != nil {
		return Decision{}, fmt.Errorf("guard admit: %w", err)
	}
	return d, nil
}

// Strike records a policy violation. Reaching the strike limit locks the
// client for the lock duration. Strikes are not added while locked.
func (g *Guard) Strike(ctx context.Context, key string) (Decision, error) {
	now := g.now()
	var d Decision

	_, err := g.store.Update(ctx, key, g.ttl(), func(s *State) {
		expireLock(s, now)
		if s.Locked(now) {
			d = Decision{Outcome: Locked, LockedUntil: s.LockedUntil, Strikes: s.Strikes, RetryAfter: s.LockedUntil.Sub(now)}
			return
		}
		s.Strikes++
		if s.Strikes >= g.policy.StrikeLimit {
			s.LockedUntil = now.Add(g.policy.LockDuration)
			d = Decision{Outcome: Locked, LockedUntil: s.LockedUntil, Strikes: s.Strikes, RetryAfter: g.policy.LockDuration}
			return
		}
		d = Decision{Outcome: Allowed, Strikes: s.Strikes}
	})
	if err != nil {
		return Decision{}, fmt.Errorf("guard strike: %w", err)
	}
	return d, nil
}

// Status returns the current state for key after lazy lock expiry,
// without counting a request.
func (g *Guard) Status(ctx context.Context, key string) (State, error) {
	s, ok, err := g.store.Get(ctx, key)
	if err != nil {
		return State{}, fmt.Errorf("guard status: %w", err)
	}
	if !ok {
		return State{}, nil
	}
	expireLock(&s, g.now())
	return s, nil
}

// ClientKey derives the store key for a raw client identifier. Raw
// addresses never reach the store.
func ClientKey(raw string) string {
	sum := blake2b.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:16])
}
