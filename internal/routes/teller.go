package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/teller-id/teller/internal/engine"
	"github.com/teller-id/teller/internal/middleware"
)

// RegisterTellerRoutes wires the teller operations. Money-moving posts run
// behind the idempotency middleware when Redis is available, so a retried
// request cannot withdraw or transfer twice.
func RegisterTellerRoutes(r fiber.Router, h *engine.Handler, d Deps) {
	group := r.Group("/teller")

	group.Get("/balance", h.Balance)
	group.Get("/history", h.History)
	group.Get("/policy", h.Policy)
	group.Post("/pin", h.ChangePIN)

	if d.Cache != nil {
		idem := middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger)
		group.Post("/withdrawals", idem, h.Withdraw)
		group.Post("/deposits", idem, h.Deposit)
		group.Post("/transfers", idem, h.Transfer)
		group.Post("/interest", idem, h.AccrueInterest)
		return
	}
	group.Post("/withdrawals", h.Withdraw)
	group.Post("/deposits", h.Deposit)
	group.Post("/transfers", h.Transfer)
	group.Post("/interest", h.AccrueInterest)
}
