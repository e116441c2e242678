// Package engine validates and applies teller operations against the account
// store, producing immutable history records. Every operation asserts an
// active session first and leaves no partial state behind on failure.
package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/teller-id/teller/internal/account"
	"github.com/teller-id/teller/internal/auth"
	"github.com/teller-id/teller/internal/events"
	"github.com/teller-id/teller/internal/ledger"
	"github.com/teller-id/teller/internal/money"
)

// Policy holds the transaction business-rule constants. They are policy, not
// protocol: configuration supplies them with documented defaults.
type Policy struct {
	// WithdrawUnit is the note size withdrawals must be a multiple of.
	WithdrawUnit money.Money
	// DailyWithdrawLimit caps accumulated withdrawals per calendar date.
	DailyWithdrawLimit money.Money
	// DefaultInterestRate applies when the caller supplies no rate.
	DefaultInterestRate money.Money
}

// DefaultPolicy returns the documented defaults: unit 50,000, daily cap
// 5,000,000, interest rate 0.01.
func DefaultPolicy() Policy {
	rate, _ := money.Parse("0.01")
	return Policy{
		WithdrawUnit:        money.FromInt(50_000),
		DailyWithdrawLimit:  money.FromInt(5_000_000),
		DefaultInterestRate: rate,
	}
}

// Engine is the transaction engine. It owns no state of its own: accounts and
// usage live in the store, history in the ledger, the session in the guard.
type Engine struct {
	accounts *account.Store
	guard    *auth.Guard
	history  ledger.Ledger
	sink     events.Sink
	logger   *slog.Logger
	policy   Policy
	now      func() time.Time
}

// New wires an engine. Zero policy fields fall back to DefaultPolicy; a nil
// clock defaults to time.Now.
func New(accounts *account.Store, guard *auth.Guard, history ledger.Ledger, sink events.Sink, logger *slog.Logger, policy Policy, now func() time.Time) *Engine {
	defaults := DefaultPolicy()
	if policy.WithdrawUnit.IsZero() {
		policy.WithdrawUnit = defaults.WithdrawUnit
	}
	if policy.DailyWithdrawLimit.IsZero() {
		policy.DailyWithdrawLimit = defaults.DailyWithdrawLimit
	}
	if policy.DefaultInterestRate.IsZero() {
		policy.DefaultInterestRate = defaults.DefaultInterestRate
	}
	if now == nil {
		now = time.Now
	}
	return &Engine{
		accounts: accounts,
		guard:    guard,
		history:  history,
		sink:     sink,
		logger:   logger,
		policy:   policy,
		now:      now,
	}
}

// Policy exposes the effective business-rule constants.
func (e *Engine) Policy() Policy {
	return e.policy
}

// Balance returns the authenticated account's balance. Pure read, no record.
func (e *Engine) Balance(_ context.Context, session auth.Session) (money.Money, error) {
	id, err := e.guard.Require(session)
	if err != nil {
		return money.Zero(), err
	}
	return e.accounts.Balance(id)
}

// History returns the authenticated account's records, oldest first. An
// account with no transactions yields an empty slice, not an error.
func (e *Engine) History(ctx context.Context, session auth.Session) ([]ledger.Record, error) {
	id, err := e.guard.Require(session)
	if err != nil {
		return nil, err
	}
	return e.history.All(ctx, id)
}

// Withdraw debits the authenticated account. The amount must be a positive
// decimal, a multiple of the withdrawal unit, covered by the balance, and
// within today's remaining withdrawal allowance.
func (e *Engine) Withdraw(ctx context.Context, session auth.Session, amount string) (ledger.Record, error) {
	id, err := e.guard.Require(session)
	if err != nil {
		return ledger.Record{}, err
	}
	value, err := parsePositive(amount)
	if err != nil {
		return ledger.Record{}, err
	}

	var record ledger.Record
	err = e.accounts.WithAccounts([]string{id}, func() error {
		record, err = e.withdrawLocked(id, value)
		return err
	})
	if err != nil {
		return ledger.Record{}, err
	}

	if err := e.history.Append(ctx, record); err != nil {
		return ledger.Record{}, err
	}
	e.emit(ctx, record)
	return record, nil
}

// Deposit credits the authenticated account. Positive amounts only; deposits
// carry no unit-multiple or daily-limit constraint.
func (e *Engine) Deposit(ctx context.Context, session auth.Session, amount string) (ledger.Record, error) {
	id, err := e.guard.Require(session)
	if err != nil {
		return ledger.Record{}, err
	}
	value, err := parsePositive(amount)
	if err != nil {
		return ledger.Record{}, err
	}

	var record ledger.Record
	err = e.accounts.WithAccounts([]string{id}, func() error {
		balance, err := e.accounts.AdjustBalance(id, value)
		if err != nil {
			return err
		}
		if err := e.accounts.RecordUsage(id, ledger.KindDeposit, value); err != nil {
			return err
		}
		record = e.newRecord(id, ledger.KindDeposit, value, balance, "")
		return nil
	})
	if err != nil {
		return ledger.Record{}, err
	}

	if err := e.history.Append(ctx, record); err != nil {
		return ledger.Record{}, err
	}
	e.emit(ctx, record)
	return record, nil
}

// Transfer moves funds to another account. It performs a full internal
// withdraw against the sender (inheriting its validations, its withdrawal
// record and its withdrawal usage), then credits the recipient. Only the
// sender's history receives records; the debit and credit happen under both
// accounts' locks, so either both apply or neither does.
func (e *Engine) Transfer(ctx context.Context, session auth.Session, recipientID, amount string) (ledger.Record, error) {
	id, err := e.guard.Require(session)
	if err != nil {
		return ledger.Record{}, err
	}

	recipient := account.NormalizeID(recipientID)
	if !e.accounts.Exists(recipient) {
		return ledger.Record{}, ErrRecipientNotFound
	}
	if recipient == id {
		return ledger.Record{}, ErrSelfTransfer
	}
	value, err := parsePositive(amount)
	if err != nil {
		return ledger.Record{}, err
	}

	var withdrawal, transfer ledger.Record
	err = e.accounts.WithAccounts([]string{id, recipient}, func() error {
		withdrawal, err = e.withdrawLocked(id, value)
		if err != nil {
			return err
		}
		if _, err := e.accounts.AdjustBalance(recipient, value); err != nil {
			return err
		}
		if err := e.accounts.RecordUsage(id, ledger.KindTransfer, value); err != nil {
			return err
		}
		transfer = e.newRecord(id, ledger.KindTransfer, value, withdrawal.BalanceAfter, recipient)
		return nil
	})
	if err != nil {
		return ledger.Record{}, err
	}

	if err := e.history.Append(ctx, withdrawal); err != nil {
		return ledger.Record{}, err
	}
	if err := e.history.Append(ctx, transfer); err != nil {
		return ledger.Record{}, err
	}
	e.emit(ctx, withdrawal)
	e.emit(ctx, transfer)
	return transfer, nil
}

// ChangePIN replaces the authenticated account's credential hash after
// verifying the old PIN. No history record is appended.
func (e *Engine) ChangePIN(_ context.Context, session auth.Session, oldPIN, newPIN string) error {
	id, err := e.guard.Require(session)
	if err != nil {
		return err
	}
	current, err := e.accounts.Credential(id)
	if err != nil {
		return err
	}
	if !auth.VerifyPIN(current, oldPIN) {
		return auth.ErrWrongCredential
	}
	replacement, err := auth.HashPIN(newPIN)
	if err != nil {
		return err
	}
	if err := e.accounts.SetCredential(id, replacement); err != nil {
		return err
	}
	if e.logger != nil {
		e.logger.Info("pin changed", "account_id", id)
	}
	return nil
}

// AccrueInterest credits balance × rate to the authenticated account. The
// engine enforces no bounds on the rate; an empty rate uses the configured
// default.
func (e *Engine) AccrueInterest(ctx context.Context, session auth.Session, rate string) (ledger.Record, error) {
	id, err := e.guard.Require(session)
	if err != nil {
		return ledger.Record{}, err
	}

	appliedRate := e.policy.DefaultInterestRate
	if rate != "" {
		if appliedRate, err = money.Parse(rate); err != nil {
			return ledger.Record{}, err
		}
	}

	var record ledger.Record
	err = e.accounts.WithAccounts([]string{id}, func() error {
		balance, err := e.accounts.Balance(id)
		if err != nil {
			return err
		}
		interest := balance.MulRate(appliedRate)
		after, err := e.accounts.AdjustBalance(id, interest)
		if err != nil {
			return err
		}
		record = e.newRecord(id, ledger.KindInterest, interest, after, "")
		return nil
	})
	if err != nil {
		return ledger.Record{}, err
	}

	if err := e.history.Append(ctx, record); err != nil {
		return ledger.Record{}, err
	}
	e.emit(ctx, record)
	return record, nil
}

// withdrawLocked validates and applies a debit. Callers hold the account's
// lock via WithAccounts; the returned record still needs appending.
func (e *Engine) withdrawLocked(id string, value money.Money) (ledger.Record, error) {
	if !value.IsMultipleOf(e.policy.WithdrawUnit) {
		return ledger.Record{}, ErrNotAMultiple
	}
	balance, err := e.accounts.Balance(id)
	if err != nil {
		return ledger.Record{}, err
	}
	if value.Cmp(balance) > 0 {
		return ledger.Record{}, ErrInsufficientFunds
	}
	used, err := e.accounts.UsageToday(id, ledger.KindWithdrawal)
	if err != nil {
		return ledger.Record{}, err
	}
	if used.Add(value).Cmp(e.policy.DailyWithdrawLimit) > 0 {
		return ledger.Record{}, ErrDailyLimitExceeded
	}

	after, err := e.accounts.AdjustBalance(id, value.Neg())
	if err != nil {
		return ledger.Record{}, err
	}
	if err := e.accounts.RecordUsage(id, ledger.KindWithdrawal, value); err != nil {
		return ledger.Record{}, err
	}
	return e.newRecord(id, ledger.KindWithdrawal, value, after, ""), nil
}

func (e *Engine) newRecord(id string, kind ledger.Kind, amount, balanceAfter money.Money, counterparty string) ledger.Record {
	return ledger.Record{
		ID:           uuid.NewString(),
		AccountID:    id,
		Timestamp:    e.now(),
		Kind:         kind,
		Amount:       amount,
		BalanceAfter: balanceAfter,
		Counterparty: counterparty,
	}
}

// emit publishes the record to the event sink. Fire-and-forget: failures are
// logged, never returned to the operation's caller.
func (e *Engine) emit(ctx context.Context, record ledger.Record) {
	if e.sink == nil {
		return
	}
	event := events.Event{Record: record, RequestID: events.RequestIDFrom(ctx)}
	if err := e.sink.Publish(ctx, event); err != nil && e.logger != nil {
		e.logger.Warn("transaction event publish failed", "record_id", record.ID, "error", err)
	}
}

// parsePositive parses external amount input, rejecting non-positive values
// with the same invalid-amount error as malformed input.
func parsePositive(raw string) (money.Money, error) {
	value, err := money.Parse(raw)
	if err != nil {
		return money.Zero(), err
	}
	if !value.IsPositive() {
		return money.Zero(), money.ErrInvalid
	}
	return value, nil
}
