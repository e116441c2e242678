package routes

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/teller-id/teller/internal/account"
	"github.com/teller-id/teller/internal/auth"
	"github.com/teller-id/teller/internal/config"
	"github.com/teller-id/teller/internal/engine"
	"github.com/teller-id/teller/internal/events"
	"github.com/teller-id/teller/internal/ledger"
	"github.com/teller-id/teller/internal/middleware"
	"github.com/teller-id/teller/internal/seed"
)

// Deps aggregates the shared dependencies required to wire routes. DB, Cache
// and Sink are optional: absent, the service runs on in-memory backends and
// logs transaction events.
type Deps struct {
	Cfg    config.Config
	DB     *pgxpool.Pool
	Cache  *redis.Client
	Sink   events.Sink
	Logger *slog.Logger
}

// Setup builds the domain services from the seed and wires middlewares and
// all application routes.
func Setup(app *fiber.App, d Deps) error {
	if d.Cfg.IsProduction() {
		if d.DB == nil {
			return fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
		if d.Cache == nil {
			return fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
	}

	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(logger.New(logger.Config{
		Format:     "[${time}] ${status} -  ${latency} ${method} ${path}\n",
		TimeFormat: "15:04:05",
		TimeZone:   "Local",
	}))
	app.Use(middleware.Audit(d.Logger))

	// Domain wiring: store, guard, history, engine.
	accounts := account.NewStore(nil)
	entries, err := seed.Load(d.Cfg.SeedFile)
	if err != nil {
		return err
	}
	if err := seed.Apply(accounts, entries); err != nil {
		return err
	}

	guard := auth.NewGuard(accounts, auth.Policy{
		MaxAttempts: d.Cfg.MaxLoginAttempts,
		Cooldown:    d.Cfg.LockoutCooldown,
	}, nil)

	var history ledger.Ledger
	if d.DB != nil {
		history = ledger.NewPostgresLedger(d.DB)
	} else {
		history = ledger.NewInMemory()
	}

	sink := d.Sink
	if sink == nil {
		sink = events.NewLogSink(d.Logger)
	}

	eng := engine.New(accounts, guard, history, sink, d.Logger, engine.Policy{
		WithdrawUnit:        d.Cfg.WithdrawUnit,
		DailyWithdrawLimit:  d.Cfg.DailyWithdrawLimit,
		DefaultInterestRate: d.Cfg.InterestRate,
	}, nil)

	RegisterHealthRoutes(app, d)

	api := app.Group("/api/v1")
	api.Get("/ping", func(c *fiber.Ctx) error {
		reqID, _ := c.Locals("X-Request-ID").(string)
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"request_id": reqID,
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	authHandler := auth.NewHandler(guard)
	rateLimiter := middleware.LoginRateLimit(d.Cache, d.Cfg.LoginPerMinute)
	RegisterAuthRoutes(api, authHandler, rateLimiter)

	tellerHandler := engine.NewHandler(eng, guard)
	RegisterTellerRoutes(api, tellerHandler, d)

	return nil
}
