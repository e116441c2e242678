// Package auth implements the session and lockout guard in front of the
// teller engine: per-account failed-attempt tracking with a cooldown window,
// and a single process-wide session handed to the caller as an explicit value.
package auth

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/teller-id/teller/internal/account"
)

var (
	// ErrWrongCredential indicates a PIN that does not match the stored hash.
	ErrWrongCredential = errors.New("wrong credential")

	// ErrAccountLocked indicates authentication is suspended for the account.
	// The concrete error is a LockedError carrying the remaining cooldown.
	ErrAccountLocked = errors.New("account locked")

	// ErrNoActiveSession indicates an engine call without a valid session.
	ErrNoActiveSession = errors.New("no active session")
)

// LockedError reports a lockout together with the time left until a fresh
// attempt is permitted. errors.Is(err, ErrAccountLocked) matches it.
type LockedError struct {
	RetryAfter time.Duration
}

func (e *LockedError) Error() string {
	return fmt.Sprintf("account locked, retry in %s", e.RetryAfter.Round(time.Second))
}

func (e *LockedError) Is(target error) bool {
	return target == ErrAccountLocked
}

// Policy holds the lockout tuning knobs.
type Policy struct {
	// MaxAttempts is the consecutive-failure threshold that locks an account.
	MaxAttempts int
	// Cooldown is how long a locked account stays locked.
	Cooldown time.Duration
}

// DefaultPolicy matches the documented defaults: 3 attempts, 5 minutes.
func DefaultPolicy() Policy {
	return Policy{MaxAttempts: 3, Cooldown: 5 * time.Minute}
}

// Session is the explicit value returned from Authenticate and threaded by
// the caller into every engine call.
type Session struct {
	Token     string
	AccountID string
	IssuedAt  time.Time
}

type attemptState struct {
	count int
	last  time.Time
}

// Guard owns authentication state: per-account failure counters and the
// single active session.
type Guard struct {
	mu       sync.Mutex
	accounts *account.Store
	policy   Policy
	now      func() time.Time
	attempts map[string]*attemptState
	current  *Session
}

// NewGuard builds a guard over the account store. Zero policy fields fall
// back to DefaultPolicy; a nil clock defaults to time.Now.
func NewGuard(accounts *account.Store, policy Policy, now func() time.Time) *Guard {
	defaults := DefaultPolicy()
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = defaults.MaxAttempts
	}
	if policy.Cooldown <= 0 {
		policy.Cooldown = defaults.Cooldown
	}
	if now == nil {
		now = time.Now
	}
	return &Guard{
		accounts: accounts,
		policy:   policy,
		now:      now,
		attempts: make(map[string]*attemptState),
	}
}

// Authenticate verifies the credential for the identifier and, on success,
// opens the process-wide session. The failure counter is reset on success and
// lazily when the cooldown has elapsed; an unknown identifier never touches
// counters.
func (g *Guard) Authenticate(id, pin string) (Session, error) {
	key := account.NormalizeID(id)

	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	if state, ok := g.attempts[key]; ok && state.count >= g.policy.MaxAttempts {
		elapsed := now.Sub(state.last)
		if elapsed < g.policy.Cooldown {
			return Session{}, &LockedError{RetryAfter: g.policy.Cooldown - elapsed}
		}
		// Cooldown elapsed: the account re-enters the logged-out state with a
		// clean counter and this attempt proceeds normally.
		g.attempts[key] = &attemptState{count: 0, last: now}
	}

	hash, err := g.accounts.Credential(key)
	if err != nil {
		return Session{}, err
	}

	if !VerifyPIN(hash, pin) {
		state, ok := g.attempts[key]
		if !ok {
			state = &attemptState{}
			g.attempts[key] = state
		}
		state.count++
		state.last = now
		return Session{}, ErrWrongCredential
	}

	g.attempts[key] = &attemptState{count: 0, last: now}
	session := Session{Token: uuid.NewString(), AccountID: key, IssuedAt: now}
	g.current = &session
	return session, nil
}

// Logout destroys the active session. Logging out while already logged out
// is a no-op.
func (g *Guard) Logout() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.current = nil
}

// Resolve maps a session token back to the active session.
func (g *Guard) Resolve(token string) (Session, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.current == nil || token == "" || g.current.Token != token {
		return Session{}, ErrNoActiveSession
	}
	return *g.current, nil
}

// Require asserts the session is the active one and bound to an existing
// account, returning the account identifier engine operations act on.
func (g *Guard) Require(session Session) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.current == nil || session.Token == "" || g.current.Token != session.Token {
		return "", ErrNoActiveSession
	}
	if !g.accounts.Exists(g.current.AccountID) {
		return "", ErrNoActiveSession
	}
	return g.current.AccountID, nil
}

// FailedAttempts reports the current consecutive-failure count for an
// identifier.
func (g *Guard) FailedAttempts(id string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	if state, ok := g.attempts[account.NormalizeID(id)]; ok {
		return state.count
	}
	return 0
}
