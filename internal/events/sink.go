// Package events delivers structured transaction-record events to downstream
// consumers. Delivery is fire-and-forget: a failing sink never fails the
// operation that produced the event.
package events

import (
	"context"
	"log/slog"

	"github.com/teller-id/teller/internal/ledger"
)

// Event is the payload published after a successful mutating operation.
type Event struct {
	Record    ledger.Record `json:"record"`
	RequestID string        `json:"request_id,omitempty"`
}

// Sink delivers transaction events to downstream systems.
type Sink interface {
	Publish(ctx context.Context, event Event) error
}

type requestIDKey struct{}

// WithRequestID returns a context carrying the request id stamped onto
// events published under it.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestIDFrom extracts the request id, empty when absent.
func RequestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// LogSink writes transaction events to the structured logger.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink constructs a logging sink.
func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

// Publish writes the event to the logger.
func (s *LogSink) Publish(_ context.Context, event Event) error {
	if s == nil || s.logger == nil {
		return nil
	}
	attrs := []any{
		"account_id", event.Record.AccountID,
		"kind", string(event.Record.Kind),
		"amount", event.Record.Amount.String(),
		"balance_after", event.Record.BalanceAfter.String(),
		"counterparty", event.Record.Counterparty,
	}
	if event.RequestID != "" {
		attrs = append(attrs, "request_id", event.RequestID)
	}
	s.logger.Info("transaction", attrs...)
	return nil
}
