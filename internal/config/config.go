package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/teller-id/teller/internal/money"
)

const (
	defaultAppName       = "Teller"
	defaultAppEnv        = "development"
	defaultPort          = "8080"
	defaultLogLevel      = "info"
	defaultShutdownDelay = 10 * time.Second
	defaultIdemTTL       = 24 * time.Hour

	defaultWithdrawUnit  = "50000"
	defaultDailyLimit    = "5000000"
	defaultMaxAttempts   = 3
	defaultCooldown      = 5 * time.Minute
	defaultInterestRate  = "0.01"
	defaultLoginPerMin   = 5
	defaultKafkaTopic    = "teller.transactions"
)

// Config captures runtime configuration loaded from environment variables.
// DatabaseURL, RedisURL and KafkaBrokers are optional outside production:
// absent, the service falls back to in-memory backends and a logging sink.
type Config struct {
	AppName        string
	AppEnv         string
	Port           string
	LogLevel       string
	DatabaseURL    string
	RedisURL       string
	KafkaBrokers   []string
	KafkaTopic     string
	SeedFile       string
	ShutdownPeriod time.Duration
	IdempotencyTTL time.Duration
	LoginPerMinute int

	// Business-rule policy constants with documented defaults. They are
	// configuration, not protocol: deployments may tune them freely.
	WithdrawUnit       money.Money   // WITHDRAW_UNIT, default 50000
	DailyWithdrawLimit money.Money   // DAILY_WITHDRAW_LIMIT, default 5000000
	InterestRate       money.Money   // INTEREST_RATE, default 0.01
	MaxLoginAttempts   int           // MAX_LOGIN_ATTEMPTS, default 3
	LockoutCooldown    time.Duration // LOCKOUT_COOLDOWN, default 5m
}

// Load reads configuration from the environment and populates a Config.
func Load() (Config, error) {
	cfg := Config{
		AppName:          getEnv("APP_NAME", defaultAppName),
		AppEnv:           getEnv("APP_ENV", defaultAppEnv),
		Port:             getEnv("PORT", defaultPort),
		LogLevel:         strings.ToLower(getEnv("LOG_LEVEL", defaultLogLevel)),
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		RedisURL:         os.Getenv("REDIS_URL"),
		KafkaTopic:       getEnv("KAFKA_TOPIC", defaultKafkaTopic),
		SeedFile:         os.Getenv("SEED_FILE"),
		ShutdownPeriod:   defaultShutdownDelay,
		IdempotencyTTL:   defaultIdemTTL,
		LoginPerMinute:   defaultLoginPerMin,
		MaxLoginAttempts: defaultMaxAttempts,
		LockoutCooldown:  defaultCooldown,
	}

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		for _, broker := range strings.Split(brokers, ",") {
			if trimmed := strings.TrimSpace(broker); trimmed != "" {
				cfg.KafkaBrokers = append(cfg.KafkaBrokers, trimmed)
			}
		}
	}

	var err error
	if cfg.WithdrawUnit, err = amountEnv("WITHDRAW_UNIT", defaultWithdrawUnit); err != nil {
		return Config{}, err
	}
	if cfg.DailyWithdrawLimit, err = amountEnv("DAILY_WITHDRAW_LIMIT", defaultDailyLimit); err != nil {
		return Config{}, err
	}
	if cfg.InterestRate, err = amountEnv("INTEREST_RATE", defaultInterestRate); err != nil {
		return Config{}, err
	}

	if v := os.Getenv("MAX_LOGIN_ATTEMPTS"); v != "" {
		attempts, err := strconv.Atoi(v)
		if err != nil || attempts <= 0 {
			return Config{}, fmt.Errorf("invalid MAX_LOGIN_ATTEMPTS: %q", v)
		}
		cfg.MaxLoginAttempts = attempts
	}
	if v := os.Getenv("LOCKOUT_COOLDOWN"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid LOCKOUT_COOLDOWN: %w", err)
		}
		cfg.LockoutCooldown = d
	}
	if v := os.Getenv("LOGIN_PER_MINUTE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return Config{}, fmt.Errorf("invalid LOGIN_PER_MINUTE: %q", v)
		}
		cfg.LoginPerMinute = n
	}
	if v := os.Getenv("SHUTDOWN_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid SHUTDOWN_TIMEOUT: %w", err)
		}
		cfg.ShutdownPeriod = d
	}
	if v := os.Getenv("IDEMPOTENCY_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid IDEMPOTENCY_TTL: %w", err)
		}
		cfg.IdempotencyTTL = d
	}

	if cfg.IsProduction() {
		if cfg.DatabaseURL == "" {
			return Config{}, fmt.Errorf("DATABASE_URL must be set when APP_ENV=%s", cfg.AppEnv)
		}
		if cfg.RedisURL == "" {
			return Config{}, fmt.Errorf("REDIS_URL must be set when APP_ENV=%s", cfg.AppEnv)
		}
	}

	return cfg, nil
}

// IsProduction reports whether the app runs with production requirements.
func (c Config) IsProduction() bool {
	switch strings.ToLower(c.AppEnv) {
	case "dev", "development", "local", "test":
		return false
	default:
		return true
	}
}

// Address returns the listen address in the format Fiber expects.
func (c Config) Address() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return fmt.Sprintf(":%s", c.Port)
}

func amountEnv(key, fallback string) (money.Money, error) {
	raw := getEnv(key, fallback)
	value, err := money.Parse(raw)
	if err != nil {
		return money.Zero(), fmt.Errorf("invalid %s: %q", key, raw)
	}
	return value, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
