package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/teller-id/teller/internal/money"
)

// PostgresLedger persists transaction history in PostgreSQL. Amounts are
// stored as NUMERIC and travel as decimal strings so they stay exact.
type PostgresLedger struct {
	db *pgxpool.Pool
}

// NewPostgresLedger constructs a Postgres-backed history ledger.
func NewPostgresLedger(db *pgxpool.Pool) *PostgresLedger {
	return &PostgresLedger{db: db}
}

// Append inserts one immutable record. Rows are never updated or deleted.
func (l *PostgresLedger) Append(ctx context.Context, record Record) error {
	id := record.ID
	if id == "" {
		id = uuid.NewString()
	}
	_, err := l.db.Exec(ctx, `INSERT INTO transaction_records
        (id, account_id, recorded_at, kind, amount, balance_after, counterparty)
        VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		id, record.AccountID, record.Timestamp.UTC(), string(record.Kind),
		record.Amount.String(), record.BalanceAfter.String(), record.Counterparty)
	return err
}

// All returns the account's records in append order, oldest first. Ordering
// follows the table's seq BIGSERIAL: records born in one operation can share
// a timestamp, so recorded_at alone cannot separate them.
func (l *PostgresLedger) All(ctx context.Context, accountID string) ([]Record, error) {
	rows, err := l.db.Query(ctx, `SELECT id, account_id, recorded_at, kind, amount, balance_after, counterparty
        FROM transaction_records WHERE account_id = $1 ORDER BY seq`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var (
			record       Record
			recordedAt   time.Time
			kind         string
			amount       string
			balanceAfter string
		)
		if err := rows.Scan(&record.ID, &record.AccountID, &recordedAt, &kind, &amount, &balanceAfter, &record.Counterparty); err != nil {
			return nil, err
		}
		record.Timestamp = recordedAt.UTC()
		record.Kind = Kind(kind)
		if record.Amount, err = money.Parse(amount); err != nil {
			return nil, err
		}
		if record.BalanceAfter, err = money.Parse(balanceAfter); err != nil {
			return nil, err
		}
		out = append(out, record)
	}
	return out, rows.Err()
}
