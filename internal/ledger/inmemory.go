package ledger

import (
	"context"
	"sync"
)

type inMemoryLedger struct {
	mu      sync.RWMutex
	records map[string][]Record
}

// NewInMemory creates a concurrency-safe in-memory history ledger. This is
// the default backend when no database is configured.
func NewInMemory() Ledger {
	return &inMemoryLedger{records: make(map[string][]Record)}
}

func (l *inMemoryLedger) Append(_ context.Context, record Record) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records[record.AccountID] = append(l.records[record.AccountID], record)
	return nil
}

func (l *inMemoryLedger) All(_ context.Context, accountID string) ([]Record, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	stored := l.records[accountID]
	out := make([]Record, len(stored))
	copy(out, stored)
	return out, nil
}
