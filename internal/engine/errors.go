package engine

import "errors"

// Policy and validation errors returned by engine operations. Authentication
// and session errors live in the auth package, amount parse failures in
// money, unknown accounts in account. All of them are expected and
// recoverable: the caller renders a message and carries on.
var (
	ErrNotAMultiple       = errors.New("amount must be a multiple of the withdrawal unit")
	ErrInsufficientFunds  = errors.New("insufficient funds")
	ErrDailyLimitExceeded = errors.New("daily withdrawal limit exceeded")
	ErrSelfTransfer       = errors.New("cannot transfer to own account")
	ErrRecipientNotFound  = errors.New("recipient account not found")
)
