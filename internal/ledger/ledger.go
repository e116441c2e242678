package ledger

import (
	"context"
	"time"

	"github.com/teller-id/teller/internal/money"
)

// Kind classifies a transaction record.
type Kind string

const (
	KindWithdrawal Kind = "withdrawal"
	KindDeposit    Kind = "deposit"
	KindTransfer   Kind = "transfer"
	KindInterest   Kind = "interest"
)

// Record is an immutable audit entry produced by a successful mutating
// operation. It is never updated or deleted after Append.
type Record struct {
	ID           string      `json:"id"`
	AccountID    string      `json:"account_id"`
	Timestamp    time.Time   `json:"timestamp"`
	Kind         Kind        `json:"kind"`
	Amount       money.Money `json:"amount"`
	BalanceAfter money.Money `json:"balance_after"`
	// Counterparty is set only for transfer records.
	Counterparty string `json:"counterparty,omitempty"`
}

// Ledger is the append-only per-account transaction history. Backends must
// preserve append order per account.
type Ledger interface {
	Append(ctx context.Context, record Record) error
	All(ctx context.Context, accountID string) ([]Record, error)
}
