// Package account owns account state: credential hashes, balances and the
// per-kind daily usage totals behind the withdrawal ceiling. The store holds
// no business rules; limits and signs are the engine's job.
package account

import (
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/teller-id/teller/internal/ledger"
	"github.com/teller-id/teller/internal/money"
)

var (
	// ErrNotFound indicates the account identifier is unknown.
	ErrNotFound = errors.New("account not found")

	// ErrDuplicate indicates an identifier collision on Create.
	ErrDuplicate = errors.New("account already exists")
)

// NormalizeID canonicalizes an account identifier: trimmed, upper-cased.
// Identifiers are case-insensitive throughout the system.
func NormalizeID(raw string) string {
	return strings.ToUpper(strings.TrimSpace(raw))
}

// dailyUsage tracks one (account, kind) accumulator. Instead of a date-keyed
// map that grows forever, it holds the last reset date and resets lazily when
// the observed local date changes.
type dailyUsage struct {
	lastReset time.Time
	total     money.Money
}

type account struct {
	id      string
	pinHash []byte
	balance money.Money
	usage   map[ledger.Kind]*dailyUsage
}

// Store is the in-memory account registry. The store-wide mutex guards map
// access; WithAccounts provides the per-account exclusion engine operations
// run under.
type Store struct {
	mu       sync.RWMutex
	accounts map[string]*account
	locks    map[string]*sync.Mutex
	now      func() time.Time
}

// NewStore builds an empty store. A nil clock defaults to time.Now.
func NewStore(now func() time.Time) *Store {
	if now == nil {
		now = time.Now
	}
	return &Store{
		accounts: make(map[string]*account),
		locks:    make(map[string]*sync.Mutex),
		now:      now,
	}
}

// Create inserts a new account with an empty usage map.
func (s *Store) Create(id string, pinHash []byte, initial money.Money) error {
	key := NormalizeID(id)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.accounts[key]; exists {
		return ErrDuplicate
	}
	s.accounts[key] = &account{
		id:      key,
		pinHash: pinHash,
		balance: initial,
		usage:   make(map[ledger.Kind]*dailyUsage),
	}
	s.locks[key] = &sync.Mutex{}
	return nil
}

// Exists reports whether the identifier names a known account.
func (s *Store) Exists(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.accounts[NormalizeID(id)]
	return ok
}

// Balance returns the current balance.
func (s *Store) Balance(id string) (money.Money, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	acct, ok := s.accounts[NormalizeID(id)]
	if !ok {
		return money.Zero(), ErrNotFound
	}
	return acct.balance, nil
}

// Credential returns the stored credential hash.
func (s *Store) Credential(id string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	acct, ok := s.accounts[NormalizeID(id)]
	if !ok {
		return nil, ErrNotFound
	}
	return acct.pinHash, nil
}

// SetCredential replaces the stored credential hash.
func (s *Store) SetCredential(id string, pinHash []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	acct, ok := s.accounts[NormalizeID(id)]
	if !ok {
		return ErrNotFound
	}
	acct.pinHash = pinHash
	return nil
}

// AdjustBalance applies delta (positive or negative) and returns the new
// balance. This is the sole mutation path for balances; callers enforce the
// non-negative invariant before invoking it.
func (s *Store) AdjustBalance(id string, delta money.Money) (money.Money, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acct, ok := s.accounts[NormalizeID(id)]
	if !ok {
		return money.Zero(), ErrNotFound
	}
	acct.balance = acct.balance.Add(delta)
	return acct.balance, nil
}

// RecordUsage adds amount to today's accumulated usage for the kind.
func (s *Store) RecordUsage(id string, kind ledger.Kind, amount money.Money) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	acct, ok := s.accounts[NormalizeID(id)]
	if !ok {
		return ErrNotFound
	}
	today := s.now()
	usage, ok := acct.usage[kind]
	if !ok {
		usage = &dailyUsage{}
		acct.usage[kind] = usage
	}
	if !sameDay(usage.lastReset, today) {
		usage.total = money.Zero()
		usage.lastReset = today
	}
	usage.total = usage.total.Add(amount)
	return nil
}

// UsageToday returns today's accumulated usage for the kind, zero when absent
// or when the accumulator belongs to a previous date.
func (s *Store) UsageToday(id string, kind ledger.Kind) (money.Money, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	acct, ok := s.accounts[NormalizeID(id)]
	if !ok {
		return money.Zero(), ErrNotFound
	}
	usage, ok := acct.usage[kind]
	if !ok || !sameDay(usage.lastReset, s.now()) {
		return money.Zero(), nil
	}
	return usage.total, nil
}

// IDs returns all known identifiers, sorted.
func (s *Store) IDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.accounts))
	for id := range s.accounts {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// WithAccounts runs fn while holding the named accounts' mutexes, acquired in
// sorted identifier order so two transfers referencing each other cannot
// deadlock. Unknown identifiers are skipped; fn re-checks existence itself.
func (s *Store) WithAccounts(ids []string, fn func() error) error {
	keys := make([]string, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		key := NormalizeID(id)
		if !seen[key] {
			seen[key] = true
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	s.mu.RLock()
	locks := make([]*sync.Mutex, 0, len(keys))
	for _, key := range keys {
		if lock, ok := s.locks[key]; ok {
			locks = append(locks, lock)
		}
	}
	s.mu.RUnlock()

	for _, lock := range locks {
		lock.Lock()
	}
	defer func() {
		for i := len(locks) - 1; i >= 0; i-- {
			locks[i].Unlock()
		}
	}()
	return fn()
}

// sameDay compares calendar dates in the system's local clock, matching how
// the daily ceiling is specified.
func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
