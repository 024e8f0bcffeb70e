// apps/go-server/internal/config/config.go
//
// Process configuration, read from the environment (after main loads .env).
// Every field has a workable local default so `go run .` needs no setup.

package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog"
)

const devSecret = "dev_secret_change_me"

// Config holds server settings.
type Config struct {
	Port     string `envconfig:"PORT" default:"5175"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
	DBPath   string `envconfig:"DB_PATH" default:"./data/yahtzee.db"`

	// Empty ScoringOracleURL scores fills locally; empty OutcomeOracleURL disables advice.
	ScoringOracleURL string        `envconfig:"SCORING_ORACLE_URL"`
	OutcomeOracleURL string        `envconfig:"OUTCOME_ORACLE_URL"`
	OracleTimeout    time.Duration `envconfig:"ORACLE_TIMEOUT" default:"10s"`
	// AdviceWait bounds how long GET /game/{id}/advice waits for a pending distribution.
	AdviceWait time.Duration `envconfig:"ADVICE_WAIT" default:"15s"`

	ClientOrigin   string `envconfig:"CLIENT_ORIGIN" default:"http://localhost:5173"`
	JWTSecret      string `envconfig:"JWT_SECRET" default:"dev_secret_change_me"`
	JWTExpiresDays int    `envconfig:"JWT_EXPIRES_DAYS" default:"14"`
	CookieName     string `envconfig:"COOKIE_NAME" default:"yahtzee_token"`
	SecureCookies  bool   `envconfig:"SECURE_COOKIES" default:"false"`
	DailySalt      string `envconfig:"DAILY_SALT" default:"local_dev_salt"`
}

// LoadConfig reads the environment into a Config.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if _, err := zerolog.ParseLevel(cfg.LogLevel); err != nil {
		return nil, fmt.Errorf("load config: LOG_LEVEL: %w", err)
	}
	if cfg.JWTExpiresDays <= 0 {
		return nil, fmt.Errorf("load config: JWT_EXPIRES_DAYS must be positive, got %d", cfg.JWTExpiresDays)
	}
	if cfg.OracleTimeout <= 0 || cfg.AdviceWait <= 0 {
		return nil, fmt.Errorf("load config: ORACLE_TIMEOUT and ADVICE_WAIT must be positive")
	}
	return &cfg, nil
}

// DevSecret reports whether the JWT secret is still the built-in default.
func (c *Config) DevSecret() bool { return c.JWTSecret == devSecret }

// Addr is the listen address.
func (c *Config) Addr() string { return ":" + c.Port }
