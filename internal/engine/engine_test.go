package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/teller-id/teller/internal/account"
	"github.com/teller-id/teller/internal/auth"
	"github.com/teller-id/teller/internal/events"
	"github.com/teller-id/teller/internal/ledger"
	"github.com/teller-id/teller/internal/logging"
	"github.com/teller-id/teller/internal/money"
)

type fixture struct {
	engine   *Engine
	guard    *auth.Guard
	accounts *account.Store
	history  ledger.Ledger
	now      *time.Time
}

// newFixture seeds the three accounts the original deployment shipped with
// and logs ATA in.
func newFixture(t *testing.T) (*fixture, auth.Session) {
	t.Helper()
	now := time.Date(2025, time.March, 10, 9, 0, 0, 0, time.Local)
	clock := func() time.Time { return now }

	store := account.NewStore(clock)
	seedAccounts := []struct {
		id      string
		pin     string
		balance int64
	}{
		{"ATA", "8830", 100_000},
		{"AISYAH", "8790", 50_000},
		{"EZRA DEBY", "9086", 200_000},
	}
	for _, acct := range seedAccounts {
		hash, err := auth.HashPIN(acct.pin)
		if err != nil {
			t.Fatalf("hash pin: %v", err)
		}
		if err := store.Create(acct.id, hash, money.FromInt(acct.balance)); err != nil {
			t.Fatalf("seed %s: %v", acct.id, err)
		}
	}

	guard := auth.NewGuard(store, auth.DefaultPolicy(), clock)
	history := ledger.NewInMemory()
	eng := New(store, guard, history, nil, logging.Discard(), Policy{}, clock)

	session, err := guard.Authenticate("ATA", "8830")
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}

	f := &fixture{engine: eng, guard: guard, accounts: store, history: history, now: &now}
	return f, session
}

func (f *fixture) advanceTo(t *testing.T, next time.Time) {
	t.Helper()
	*f.now = next
}

func (f *fixture) balance(t *testing.T, id string) money.Money {
	t.Helper()
	balance, err := f.accounts.Balance(id)
	if err != nil {
		t.Fatalf("balance %s: %v", id, err)
	}
	return balance
}

func (f *fixture) totalBalance(t *testing.T) money.Money {
	t.Helper()
	total := money.Zero()
	for _, id := range f.accounts.IDs() {
		total = total.Add(f.balance(t, id))
	}
	return total
}

func TestOperationsRequireSession(t *testing.T) {
	f, _ := newFixture(t)
	f.guard.Logout()
	ctx := context.Background()
	stale := auth.Session{Token: "stale", AccountID: "ATA"}

	if _, err := f.engine.Balance(ctx, stale); !errors.Is(err, auth.ErrNoActiveSession) {
		t.Fatalf("balance: expected ErrNoActiveSession, got %v", err)
	}
	if _, err := f.engine.Withdraw(ctx, stale, "50000"); !errors.Is(err, auth.ErrNoActiveSession) {
		t.Fatalf("withdraw: expected ErrNoActiveSession, got %v", err)
	}
	if _, err := f.engine.Deposit(ctx, stale, "50000"); !errors.Is(err, auth.ErrNoActiveSession) {
		t.Fatalf("deposit: expected ErrNoActiveSession, got %v", err)
	}
	if _, err := f.engine.Transfer(ctx, stale, "AISYAH", "50000"); !errors.Is(err, auth.ErrNoActiveSession) {
		t.Fatalf("transfer: expected ErrNoActiveSession, got %v", err)
	}
	if err := f.engine.ChangePIN(ctx, stale, "8830", "1234"); !errors.Is(err, auth.ErrNoActiveSession) {
		t.Fatalf("change pin: expected ErrNoActiveSession, got %v", err)
	}
	if _, err := f.engine.AccrueInterest(ctx, stale, ""); !errors.Is(err, auth.ErrNoActiveSession) {
		t.Fatalf("interest: expected ErrNoActiveSession, got %v", err)
	}
	if _, err := f.engine.History(ctx, stale); !errors.Is(err, auth.ErrNoActiveSession) {
		t.Fatalf("history: expected ErrNoActiveSession, got %v", err)
	}
}

func TestWithdrawScenario(t *testing.T) {
	// The canonical walkthrough: ATA starts at 100000, withdraws 50000 twice,
	// and the third attempt fails with nothing left.
	f, session := newFixture(t)
	ctx := context.Background()

	record, err := f.engine.Withdraw(ctx, session, "50000")
	if err != nil {
		t.Fatalf("first withdraw: %v", err)
	}
	if record.Kind != ledger.KindWithdrawal {
		t.Fatalf("expected withdrawal record, got %s", record.Kind)
	}
	if !record.Amount.Equal(money.FromInt(50_000)) || !record.BalanceAfter.Equal(money.FromInt(50_000)) {
		t.Fatalf("unexpected record: amount=%s balance_after=%s", record.Amount, record.BalanceAfter)
	}

	if _, err := f.engine.Withdraw(ctx, session, "50000"); err != nil {
		t.Fatalf("second withdraw: %v", err)
	}
	if !f.balance(t, "ATA").IsZero() {
		t.Fatalf("expected zero balance, got %s", f.balance(t, "ATA"))
	}

	if _, err := f.engine.Withdraw(ctx, session, "50000"); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("third withdraw: expected ErrInsufficientFunds, got %v", err)
	}
	if !f.balance(t, "ATA").IsZero() {
		t.Fatal("failed withdraw must not change the balance")
	}

	records, err := f.engine.History(ctx, session)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
}

func TestWithdrawRejectsNonMultiples(t *testing.T) {
	f, session := newFixture(t)
	ctx := context.Background()

	if _, err := f.engine.Withdraw(ctx, session, "75000"); !errors.Is(err, ErrNotAMultiple) {
		t.Fatalf("expected ErrNotAMultiple, got %v", err)
	}
	if !f.balance(t, "ATA").Equal(money.FromInt(100_000)) {
		t.Fatal("failed withdraw must not change the balance")
	}
	if records, _ := f.engine.History(ctx, session); len(records) != 0 {
		t.Fatal("failed withdraw must not append history")
	}
}

func TestWithdrawRejectsInvalidAmounts(t *testing.T) {
	f, session := newFixture(t)
	ctx := context.Background()

	for _, raw := range []string{"", "abc", "-50000", "0"} {
		if _, err := f.engine.Withdraw(ctx, session, raw); !errors.Is(err, money.ErrInvalid) {
			t.Fatalf("withdraw(%q): expected money.ErrInvalid, got %v", raw, err)
		}
	}
}

func TestDailyWithdrawalLimit(t *testing.T) {
	f, session := newFixture(t)
	ctx := context.Background()

	// Give ATA headroom above the cap first.
	if _, err := f.engine.Deposit(ctx, session, "10000000"); err != nil {
		t.Fatalf("deposit: %v", err)
	}

	if _, err := f.engine.Withdraw(ctx, session, "5000000"); err != nil {
		t.Fatalf("withdraw at the cap: %v", err)
	}
	if _, err := f.engine.Withdraw(ctx, session, "50000"); !errors.Is(err, ErrDailyLimitExceeded) {
		t.Fatalf("expected ErrDailyLimitExceeded, got %v", err)
	}

	balanceBefore := f.balance(t, "ATA")

	// On the next calendar date the allowance is fresh.
	f.advanceTo(t, time.Date(2025, time.March, 11, 0, 30, 0, 0, time.Local))
	if _, err := f.engine.Withdraw(ctx, session, "50000"); err != nil {
		t.Fatalf("withdraw on a new date: %v", err)
	}
	if !f.balance(t, "ATA").Equal(balanceBefore.Sub(money.FromInt(50_000))) {
		t.Fatal("new-date withdrawal applied incorrectly")
	}
}

func TestDepositHasNoUnitOrLimitConstraint(t *testing.T) {
	f, session := newFixture(t)
	ctx := context.Background()

	record, err := f.engine.Deposit(ctx, session, "12345.67")
	if err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if record.Kind != ledger.KindDeposit {
		t.Fatalf("expected deposit record, got %s", record.Kind)
	}
	want, _ := money.Parse("112345.67")
	if !record.BalanceAfter.Equal(want) {
		t.Fatalf("expected balance %s, got %s", want, record.BalanceAfter)
	}

	if _, err := f.engine.Deposit(ctx, session, "-5"); !errors.Is(err, money.ErrInvalid) {
		t.Fatalf("expected money.ErrInvalid for negative deposit, got %v", err)
	}
}

func TestTransferMovesMoneyAtomically(t *testing.T) {
	f, session := newFixture(t)
	ctx := context.Background()

	totalBefore := f.totalBalance(t)

	record, err := f.engine.Transfer(ctx, session, "aisyah", "50000")
	if err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if record.Kind != ledger.KindTransfer {
		t.Fatalf("expected transfer record, got %s", record.Kind)
	}
	if record.Counterparty != "AISYAH" {
		t.Fatalf("expected counterparty AISYAH, got %q", record.Counterparty)
	}

	if !f.balance(t, "ATA").Equal(money.FromInt(50_000)) {
		t.Fatalf("sender balance: %s", f.balance(t, "ATA"))
	}
	if !f.balance(t, "AISYAH").Equal(money.FromInt(100_000)) {
		t.Fatalf("recipient balance: %s", f.balance(t, "AISYAH"))
	}
	if !f.totalBalance(t).Equal(totalBefore) {
		t.Fatal("transfer must not create or destroy money")
	}

	// The internal withdraw leaves its own record, so the sender sees
	// withdrawal then transfer; the recipient sees nothing.
	records, err := f.engine.History(ctx, session)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(records) != 2 || records[0].Kind != ledger.KindWithdrawal || records[1].Kind != ledger.KindTransfer {
		t.Fatalf("unexpected sender history: %+v", records)
	}
	// Both records are stamped by the same clock reading, so backends must
	// preserve append order rather than sort by timestamp.
	if !records[0].Timestamp.Equal(records[1].Timestamp) {
		t.Fatalf("expected equal timestamps, got %s and %s", records[0].Timestamp, records[1].Timestamp)
	}
	recipientRecords, err := f.history.All(ctx, "AISYAH")
	if err != nil {
		t.Fatalf("recipient history: %v", err)
	}
	if len(recipientRecords) != 0 {
		t.Fatalf("recipient must receive no records, got %d", len(recipientRecords))
	}

	// The internal withdraw also consumes the withdrawal allowance.
	used, err := f.accounts.UsageToday("ATA", ledger.KindWithdrawal)
	if err != nil {
		t.Fatalf("usage: %v", err)
	}
	if !used.Equal(money.FromInt(50_000)) {
		t.Fatalf("expected 50000 withdrawal usage, got %s", used)
	}
}

func TestTransferFailuresLeaveNoTrace(t *testing.T) {
	f, session := newFixture(t)
	ctx := context.Background()

	cases := []struct {
		name      string
		recipient string
		amount    string
		want      error
	}{
		{"unknown recipient", "NOBODY", "50000", ErrRecipientNotFound},
		{"self transfer", "ata", "50000", ErrSelfTransfer},
		{"self transfer with bad amount", "ATA", "garbage", ErrSelfTransfer},
		{"insufficient funds", "AISYAH", "150000", ErrInsufficientFunds},
		{"not a multiple", "AISYAH", "60000", ErrNotAMultiple},
		{"invalid amount", "AISYAH", "x", money.ErrInvalid},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := f.engine.Transfer(ctx, session, tc.recipient, tc.amount); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
			if !f.balance(t, "ATA").Equal(money.FromInt(100_000)) {
				t.Fatal("sender balance changed on failed transfer")
			}
			if !f.balance(t, "AISYAH").Equal(money.FromInt(50_000)) {
				t.Fatal("recipient balance changed on failed transfer")
			}
			if records, _ := f.engine.History(ctx, session); len(records) != 0 {
				t.Fatal("failed transfer appended history")
			}
		})
	}
}

func TestConservationAcrossOperations(t *testing.T) {
	f, session := newFixture(t)
	ctx := context.Background()

	initial := f.balance(t, "ATA")
	if _, err := f.engine.Deposit(ctx, session, "200000"); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if _, err := f.engine.Withdraw(ctx, session, "100000"); err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if _, err := f.engine.Transfer(ctx, session, "EZRA DEBY", "50000"); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	interest, err := f.engine.AccrueInterest(ctx, session, "0.01")
	if err != nil {
		t.Fatalf("interest: %v", err)
	}

	// initial + deposits + interest - withdrawals - outgoing transfers
	want := initial.
		Add(money.FromInt(200_000)).
		Sub(money.FromInt(100_000)).
		Sub(money.FromInt(50_000)).
		Add(interest.Amount)
	if got := f.balance(t, "ATA"); !got.Equal(want) {
		t.Fatalf("conservation violated: got %s, want %s", got, want)
	}
}

func TestAccrueInterest(t *testing.T) {
	f, session := newFixture(t)
	ctx := context.Background()

	record, err := f.engine.AccrueInterest(ctx, session, "")
	if err != nil {
		t.Fatalf("interest: %v", err)
	}
	if record.Kind != ledger.KindInterest {
		t.Fatalf("expected interest record, got %s", record.Kind)
	}
	// Default rate 0.01 on 100000.
	if !record.Amount.Equal(money.FromInt(1_000)) {
		t.Fatalf("expected 1000 interest, got %s", record.Amount)
	}
	if !record.BalanceAfter.Equal(money.FromInt(101_000)) {
		t.Fatalf("expected balance 101000, got %s", record.BalanceAfter)
	}

	if _, err := f.engine.AccrueInterest(ctx, session, "bogus"); !errors.Is(err, money.ErrInvalid) {
		t.Fatalf("expected money.ErrInvalid for a bad rate, got %v", err)
	}
}

func TestChangePIN(t *testing.T) {
	f, session := newFixture(t)
	ctx := context.Background()

	if err := f.engine.ChangePIN(ctx, session, "0000", "1234"); !errors.Is(err, auth.ErrWrongCredential) {
		t.Fatalf("expected ErrWrongCredential, got %v", err)
	}
	if err := f.engine.ChangePIN(ctx, session, "8830", "1234"); err != nil {
		t.Fatalf("change pin: %v", err)
	}

	// Changing the PIN appends no history.
	if records, _ := f.engine.History(ctx, session); len(records) != 0 {
		t.Fatal("pin change must not append history")
	}

	f.guard.Logout()
	if _, err := f.guard.Authenticate("ATA", "8830"); !errors.Is(err, auth.ErrWrongCredential) {
		t.Fatalf("old pin must stop working, got %v", err)
	}
	if _, err := f.guard.Authenticate("ATA", "1234"); err != nil {
		t.Fatalf("new pin must work: %v", err)
	}
}

type captureSink struct {
	published []events.Event
}

func (s *captureSink) Publish(_ context.Context, event events.Event) error {
	s.published = append(s.published, event)
	return nil
}

func TestPublishedEventsCarryRequestID(t *testing.T) {
	f, session := newFixture(t)
	sink := &captureSink{}
	f.engine.sink = sink

	ctx := events.WithRequestID(context.Background(), "req-123")
	if _, err := f.engine.Withdraw(ctx, session, "50000"); err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if len(sink.published) != 1 {
		t.Fatalf("expected 1 event, got %d", len(sink.published))
	}
	if sink.published[0].RequestID != "req-123" {
		t.Fatalf("expected request id req-123, got %q", sink.published[0].RequestID)
	}

	// A context without a request id leaves the field empty.
	if _, err := f.engine.Deposit(context.Background(), session, "100"); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if sink.published[1].RequestID != "" {
		t.Fatalf("expected empty request id, got %q", sink.published[1].RequestID)
	}
}

func TestHistoryEmptyForFreshAccount(t *testing.T) {
	f, session := newFixture(t)

	records, err := f.engine.History(context.Background(), session)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("expected no records, got %d", len(records))
	}
}
