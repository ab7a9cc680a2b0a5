// Package config provides application configuration loaded from environment
// variables (optionally seeded from a .env file in development). Use the
// package-level Get() function to obtain the singleton Config instance.
package config

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// ──────────────────────────────────────────────────────────────────────────────
// Sub-config structs
// ──────────────────────────────────────────────────────────────────────────────

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port                 string        `env:"SERVER_PORT"            env-default:"8080"`
	BackofficePort       string        `env:"BACKOFFICE_PORT"        env-default:"8081"`
	Env                  string        `env:"ENVIRONMENT"            env-default:"development"` // "development" | "production"
	ReadTimeout          time.Duration `env:"SERVER_READ_TIMEOUT"    env-default:"10s"`
	WriteTimeout         time.Duration `env:"SERVER_WRITE_TIMEOUT"   env-default:"10s"`
	BackofficeAllowedIPs string        `env:"BACKOFFICE_ALLOWED_IPS" env-default:""` // comma-separated; "" = allow all
}

// DBConfig holds PostgreSQL connection settings.
type DBConfig struct {
	DSN             string        `env:"DATABASE_DSN"         env-default:"host=localhost port=5432 user=postgres dbname=vitrino sslmode=disable"`
	MigrationsPath  string        `env:"MIGRATIONS_PATH"      env-default:"migrations"`
	MaxOpenConns    int           `env:"DB_MAX_OPEN_CONNS"    env-default:"25"`
	MaxIdleConns    int           `env:"DB_MAX_IDLE_CONNS"    env-default:"10"`
	ConnMaxLifetime time.Duration `env:"DB_CONN_MAX_LIFETIME" env-default:"5m"`
}

// JWTConfig holds JWT signing settings.
type JWTConfig struct {
	AccessSecret  string        `env:"JWT_ACCESS_SECRET"  env-default:""`
	RefreshSecret string        `env:"JWT_REFRESH_SECRET" env-default:""`
	AccessTTL     time.Duration `env:"JWT_ACCESS_TTL"     env-default:"15m"`
	RefreshTTL    time.Duration `env:"JWT_REFRESH_TTL"    env-default:"720h"`
}

// GatewayConfig holds settings for the platform payment gateway.
type GatewayConfig struct {
	BaseURL        string        `env:"GATEWAY_BASE_URL"        env-default:"https://api.zarinpal.com/pg/v4"`
	MerchantID     string        `env:"GATEWAY_MERCHANT_ID"     env-default:""`
	CallbackURL    string        `env:"GATEWAY_CALLBACK_URL"    env-default:"http://localhost:8080/api/payments/callback"`
	PaymentBaseURL string        `env:"GATEWAY_PAYMENT_URL"     env-default:"https://www.zarinpal.com/pg/StartPay"`
	Timeout        time.Duration `env:"GATEWAY_TIMEOUT"         env-default:"10s"`
	PendingTTL     time.Duration `env:"GATEWAY_PENDING_TTL"     env-default:"1h"` // pending payments older than this expire
}

// MarketConfig holds storefront and subscription settings.
type MarketConfig struct {
	BaseDomain         string        `env:"MARKET_BASE_DOMAIN"        env-default:"vitrino.local"` // published markets resolve on <slug>.<base>
	SubscriptionFee    string        `env:"MARKET_SUBSCRIPTION_FEE"   env-default:"500000"`        // decimal string
	SubscriptionPeriod time.Duration `env:"MARKET_SUBSCRIPTION_TERM"  env-default:"8760h"`         // one year
	ExpirySweepEvery   time.Duration `env:"MARKET_EXPIRY_SWEEP_EVERY" env-default:"1h"`
}

// ──────────────────────────────────────────────────────────────────────────────
// Top-level Config
// ──────────────────────────────────────────────────────────────────────────────

// Config is the root configuration object for the entire application.
type Config struct {
	Server  ServerConfig
	DB      DBConfig
	JWT     JWTConfig
	Gateway GatewayConfig
	Market  MarketConfig
}

// IsProd returns true when running in the production environment.
func (c *Config) IsProd() bool {
	return c.Server.Env == "production"
}

// Validate checks that all required configuration values are present and
// valid. Returns every validation error encountered, joined.
func (c *Config) Validate() error {
	var errs []error

	if c.JWT.AccessSecret == "" {
		errs = append(errs, errors.New("JWT_ACCESS_SECRET must be set"))
	}
	if c.JWT.RefreshSecret == "" {
		errs = append(errs, errors.New("JWT_REFRESH_SECRET must be set"))
	}
	if c.IsProd() && c.Gateway.MerchantID == "" {
		errs = append(errs, errors.New("GATEWAY_MERCHANT_ID must be set in production"))
	}
	if c.Gateway.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("GATEWAY_TIMEOUT must be positive, got %s", c.Gateway.Timeout))
	}
	if c.Market.BaseDomain == "" {
		errs = append(errs, errors.New("MARKET_BASE_DOMAIN must be set"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Singleton
// ──────────────────────────────────────────────────────────────────────────────

var (
	instance *Config
	once     sync.Once
	loadErr  error
)

// Get returns the singleton Config, loading it once from the environment.
// Panics if loading fails — call this early in main() to catch
// misconfigurations at startup.
func Get() *Config {
	once.Do(func() {
		instance, loadErr = load()
	})
	if loadErr != nil {
		panic(fmt.Sprintf("config: failed to load: %v", loadErr))
	}
	return instance
}

// MustLoad loads and validates configuration. Intended for use in main().
// Panics on any error so misconfiguration is caught immediately at boot.
func MustLoad() *Config {
	cfg := Get()
	if err := cfg.Validate(); err != nil {
		panic(fmt.Sprintf("config: validation failed: %v", err))
	}
	return cfg
}

func load() (*Config, error) {
	// .env is optional; real environments set variables directly.
	_ = godotenv.Load()

	cfg := &Config{}
	if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, fmt.Errorf("read env: %w", err)
	}
	return cfg, nil
}
