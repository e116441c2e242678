package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/teller-id/teller/internal/auth"
)

// RegisterAuthRoutes wires the login/logout endpoints. The rate limiter sits
// only in front of login; logout is always allowed through.
func RegisterAuthRoutes(r fiber.Router, h *auth.Handler, rateLimiter fiber.Handler) {
	group := r.Group("/auth")
	if rateLimiter != nil {
		group.Post("/login", rateLimiter, h.Login)
	} else {
		group.Post("/login", h.Login)
	}
	group.Post("/logout", h.Logout)
}
