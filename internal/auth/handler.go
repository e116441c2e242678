package auth

import (
	"errors"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/teller-id/teller/internal/account"
)

// SessionTokenHeader carries the session token on authenticated requests.
const SessionTokenHeader = "X-Session-Token"

// Handler exposes the login/logout endpoints.
type Handler struct {
	guard *Guard
}

// NewHandler builds the auth HTTP handler.
func NewHandler(guard *Guard) *Handler {
	return &Handler{guard: guard}
}

type loginRequest struct {
	AccountID string `json:"account_id"`
	PIN       string `json:"pin"`
}

type loginResponse struct {
	Token     string `json:"token"`
	AccountID string `json:"account_id"`
	IssuedAt  string `json:"issued_at"`
}

// Login authenticates an account and returns the session token the caller
// threads into subsequent teller requests.
func (h *Handler) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "malformed request body")
	}

	session, err := h.guard.Authenticate(req.AccountID, req.PIN)
	if err != nil {
		var locked *LockedError
		switch {
		case errors.As(err, &locked):
			c.Set(fiber.HeaderRetryAfter, locked.RetryAfter.Round(time.Second).String())
			return fiber.NewError(http.StatusLocked, locked.Error())
		case errors.Is(err, account.ErrNotFound):
			return fiber.NewError(http.StatusNotFound, err.Error())
		case errors.Is(err, ErrWrongCredential):
			return fiber.NewError(http.StatusUnauthorized, err.Error())
		default:
			return err
		}
	}

	return c.Status(http.StatusOK).JSON(loginResponse{
		Token:     session.Token,
		AccountID: session.AccountID,
		IssuedAt:  session.IssuedAt.UTC().Format(time.RFC3339Nano),
	})
}

// Logout destroys the active session. Safe to call repeatedly.
func (h *Handler) Logout(c *fiber.Ctx) error {
	h.guard.Logout()
	return c.SendStatus(http.StatusNoContent)
}
