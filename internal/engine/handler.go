package engine

import (
	"errors"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/teller-id/teller/internal/auth"
	"github.com/teller-id/teller/internal/ledger"
	"github.com/teller-id/teller/internal/money"
)

// Handler exposes the teller operations over HTTP. It resolves the session
// token, invokes the engine, and maps the error taxonomy onto statuses:
// validation 400, session 401, recipient 404, policy 409, lockout 423.
type Handler struct {
	engine *Engine
	guard  *auth.Guard
}

// NewHandler builds the teller HTTP handler.
func NewHandler(engine *Engine, guard *auth.Guard) *Handler {
	return &Handler{engine: engine, guard: guard}
}

func (h *Handler) session(c *fiber.Ctx) (auth.Session, error) {
	session, err := h.guard.Resolve(c.Get(auth.SessionTokenHeader))
	if err != nil {
		return auth.Session{}, fiber.NewError(http.StatusUnauthorized, err.Error())
	}
	return session, nil
}

type recordResponse struct {
	ID           string `json:"id"`
	Timestamp    string `json:"timestamp"`
	Kind         string `json:"kind"`
	Amount       string `json:"amount"`
	BalanceAfter string `json:"balance_after"`
	Counterparty string `json:"counterparty,omitempty"`
}

func toRecordResponse(record ledger.Record) recordResponse {
	return recordResponse{
		ID:           record.ID,
		Timestamp:    record.Timestamp.UTC().Format(time.RFC3339Nano),
		Kind:         string(record.Kind),
		Amount:       record.Amount.String(),
		BalanceAfter: record.BalanceAfter.String(),
		Counterparty: record.Counterparty,
	}
}

// Balance returns the authenticated account's balance.
func (h *Handler) Balance(c *fiber.Ctx) error {
	session, err := h.session(c)
	if err != nil {
		return err
	}
	balance, err := h.engine.Balance(c.UserContext(), session)
	if err != nil {
		return statusError(err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"account_id":      session.AccountID,
		"balance":         balance.String(),
		"balance_display": balance.GroupedString(),
	})
}

type amountRequest struct {
	Amount string `json:"amount"`
}

// Withdraw debits the authenticated account.
func (h *Handler) Withdraw(c *fiber.Ctx) error {
	session, err := h.session(c)
	if err != nil {
		return err
	}
	var req amountRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "malformed request body")
	}
	record, err := h.engine.Withdraw(c.UserContext(), session, req.Amount)
	if err != nil {
		return statusError(err)
	}
	return c.Status(http.StatusCreated).JSON(toRecordResponse(record))
}

// Deposit credits the authenticated account.
func (h *Handler) Deposit(c *fiber.Ctx) error {
	session, err := h.session(c)
	if err != nil {
		return err
	}
	var req amountRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "malformed request body")
	}
	record, err := h.engine.Deposit(c.UserContext(), session, req.Amount)
	if err != nil {
		return statusError(err)
	}
	return c.Status(http.StatusCreated).JSON(toRecordResponse(record))
}

type transferRequest struct {
	RecipientID string `json:"recipient_id"`
	Amount      string `json:"amount"`
}

// Transfer moves funds to another account.
func (h *Handler) Transfer(c *fiber.Ctx) error {
	session, err := h.session(c)
	if err != nil {
		return err
	}
	var req transferRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "malformed request body")
	}
	record, err := h.engine.Transfer(c.UserContext(), session, req.RecipientID, req.Amount)
	if err != nil {
		return statusError(err)
	}
	return c.Status(http.StatusCreated).JSON(toRecordResponse(record))
}

type changePINRequest struct {
	OldPIN string `json:"old_pin"`
	NewPIN string `json:"new_pin"`
}

// ChangePIN replaces the authenticated account's credential.
func (h *Handler) ChangePIN(c *fiber.Ctx) error {
	session, err := h.session(c)
	if err != nil {
		return err
	}
	var req changePINRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "malformed request body")
	}
	if err := h.engine.ChangePIN(c.UserContext(), session, req.OldPIN, req.NewPIN); err != nil {
		return statusError(err)
	}
	return c.SendStatus(http.StatusNoContent)
}

type interestRequest struct {
	Rate string `json:"rate"`
}

// AccrueInterest credits balance × rate; an omitted rate uses the default.
func (h *Handler) AccrueInterest(c *fiber.Ctx) error {
	session, err := h.session(c)
	if err != nil {
		return err
	}
	var req interestRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(http.StatusBadRequest, "malformed request body")
		}
	}
	record, err := h.engine.AccrueInterest(c.UserContext(), session, req.Rate)
	if err != nil {
		return statusError(err)
	}
	return c.Status(http.StatusCreated).JSON(toRecordResponse(record))
}

// Policy reports the effective business-rule constants the engine runs with,
// so a client can show the withdrawal unit and the day's ceiling.
func (h *Handler) Policy(c *fiber.Ctx) error {
	if _, err := h.session(c); err != nil {
		return err
	}
	policy := h.engine.Policy()
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"withdraw_unit":         policy.WithdrawUnit.String(),
		"daily_withdraw_limit":  policy.DailyWithdrawLimit.String(),
		"default_interest_rate": policy.DefaultInterestRate.String(),
	})
}

// History returns the authenticated account's records, oldest first.
func (h *Handler) History(c *fiber.Ctx) error {
	session, err := h.session(c)
	if err != nil {
		return err
	}
	records, err := h.engine.History(c.UserContext(), session)
	if err != nil {
		return statusError(err)
	}
	out := make([]recordResponse, 0, len(records))
	for _, record := range records {
		out = append(out, toRecordResponse(record))
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"account_id": session.AccountID,
		"records":    out,
	})
}

func statusError(err error) error {
	switch {
	case errors.Is(err, auth.ErrNoActiveSession):
		return fiber.NewError(http.StatusUnauthorized, err.Error())
	case errors.Is(err, auth.ErrWrongCredential):
		return fiber.NewError(http.StatusUnauthorized, err.Error())
	case errors.Is(err, money.ErrInvalid),
		errors.Is(err, ErrNotAMultiple),
		errors.Is(err, ErrSelfTransfer):
		return fiber.NewError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrRecipientNotFound):
		return fiber.NewError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrInsufficientFunds),
		errors.Is(err, ErrDailyLimitExceeded):
		return fiber.NewError(http.StatusConflict, err.Error())
	default:
		return err
	}
}
