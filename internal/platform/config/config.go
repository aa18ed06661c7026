// Copyright (c) 2026 Midora. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package config handles application-wide settings and environment parsing.

It leverages 'caarlos0/env' to map OS environment variables into a strongly-typed
Go struct, providing early validation and default values.

Usage:

	cfg, err := config.Load()
	if err != nil {
	    log.Fatal(err)
	}

Architecture:

  - Immutability: Once loaded, configuration is read-only.
  - DI-Friendly: Passed to core components (DB, Redis, SMTP) via constructors.
  - Fail-Fast: Every `required` key that is missing at boot is a fatal
    configuration error; the process refuses to start.

This ensures the application is Twelve-Factor compliant by storing config in the env.
*/
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// # Configuration Schema

// Config holds all runtime configuration for the Midora services.
//
// cmd/api and cmd/notifier share this schema; each binary only reads the
// sections it needs, but missing required keys fail either process at boot.
type Config struct {

	// Server settings
	ServerPort  string `env:"SERVER_PORT"  envDefault:"8080"`
	Environment string `env:"ENVIRONMENT"  envDefault:"development"`
	Debug       bool   `env:"DEBUG"        envDefault:"false"`

	// Relational Database (PostgreSQL)
	DatabaseURL string `env:"DATABASE_URL,required"`

	// MigrationPath is the filesystem path to the SQL migrations directory.
	MigrationPath string `env:"MIGRATION_PATH" envDefault:"./data/migrations"`

	// Message Broker (Redis Streams)
	RedisURL string `env:"REDIS_URL,required"`

	// SendEmailQueue is the queue/stream name account-event notifications
	// are published to and consumed from.
	SendEmailQueue string `env:"SEND_EMAIL_QUEUE" envDefault:"send-email"`

	// Session token signing
	JWTSigningKey string `env:"JWT_SIGNING_KEY,required"`
	JWTIssuer     string `env:"JWT_ISSUER,required"`
	JWTAudience   string `env:"JWT_AUDIENCE,required"`

	// Password policy (relaxed defaults: length only)
	PasswordMinLength        int  `env:"PASSWORD_MIN_LENGTH"        envDefault:"6"`
	PasswordRequireDigit     bool `env:"PASSWORD_REQUIRE_DIGIT"     envDefault:"false"`
	PasswordRequireUppercase bool `env:"PASSWORD_REQUIRE_UPPERCASE" envDefault:"false"`
	PasswordRequireSymbol    bool `env:"PASSWORD_REQUIRE_SYMBOL"    envDefault:"false"`

	// Initial administrator account, ensured at API startup so the
	// "admin set never empty" invariant holds from first boot.
	AdminEmail    string `env:"ADMIN_EMAIL,required"`
	AdminPassword string `env:"ADMIN_PASSWORD,required"`

	// Federated sign-in (OpenID Connect)
	OIDCIssuerURL    string `env:"OIDC_ISSUER_URL"`
	OIDCClientID     string `env:"OIDC_CLIENT_ID"`
	OIDCClientSecret string `env:"OIDC_CLIENT_SECRET"`
	OIDCRedirectURL  string `env:"OIDC_REDIRECT_URL"`

	// Outbound email (SMTP) — required by cmd/notifier.
	SMTPHost     string `env:"SMTP_HOST"`
	SMTPPort     int    `env:"SMTP_PORT" envDefault:"587"`
	SMTPUsername string `env:"SMTP_USERNAME"`
	SMTPPassword string `env:"SMTP_PASSWORD"`
	SMTPSender   string `env:"SMTP_SENDER"`

	// Cross-Origin Resource Sharing
	ExtraOrigins string `env:"EXTRA_ORIGINS"`
}

// # Configuration Loading

// Load parses environment variables into a [Config] struct.
func Load() (*Config, error) {

	// Initialize an empty config struct
	cfg := &Config{}

	// Use the 'env' package to map environment variables to struct fields.
	// This will fail if any field marked with 'required' is missing.
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse environment variables: %w", err)
	}

	return cfg, nil
}

// RequireNotifier validates the keys only the notifier process depends on.
//
// SMTP settings stay optional for cmd/api, but the consumer cannot run
// without a delivery channel, so it verifies them explicitly at boot.
func (c *Config) RequireNotifier() error {
	switch {
	case c.SMTPHost == "":
		return fmt.Errorf("config: SMTP_HOST is required for the notifier")
	case c.SMTPSender == "":
		return fmt.Errorf("config: SMTP_SENDER is required for the notifier")
	}
	return nil
}

// IsDevelopment reports whether the server is running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction reports whether the server is running in production mode.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
