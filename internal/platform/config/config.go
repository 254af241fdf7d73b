// Copyright (c) 2026 Vendora Commerce. All rights reserved.
// Author: platform@vendora.dev

/*
Package config handles application-wide settings and environment parsing.

It leverages 'caarlos0/env' to map OS environment variables into a strongly-typed
Go struct, providing early validation and default values. A local .env file is
loaded first (if present) for developer convenience.

Usage:

	cfg, err := config.Load()
	if err != nil {
	    log.Fatal(err)
	}

Architecture:

  - Immutability: Once loaded, configuration is read-only.
  - DI-Friendly: Passed to core components (DB, Redis) via constructors.
  - Zero Hidden State: No global variables are used to store config.

This ensures the application is Twelve-Factor compliant by storing config in the env.
*/
package config

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// # Configuration Schema

// Config holds all runtime configuration for the Vendora API server.
type Config struct {

	// Server settings
	ServerPort  string `env:"SERVER_PORT"  envDefault:"8080"`
	Environment string `env:"ENVIRONMENT"  envDefault:"development"`
	Debug       bool   `env:"DEBUG"        envDefault:"false"`

	// Relational Database (PostgreSQL)
	DatabaseURL string `env:"DATABASE_URL,required"`

	// MigrationPath is the filesystem path to the SQL migrations directory.
	MigrationPath string `env:"MIGRATION_PATH" envDefault:"./data/migrations"`

	// Key-Value Store (Redis) — backs the session store
	RedisURL string `env:"REDIS_URL,required"`

	// SessionSecret signs CSRF and trusted-device tokens (shared across instances).
	SessionSecret string `env:"SESSION_SECRET,required"`

	// MFAEncryptionKey is the base64-encoded AES-256 key protecting TOTP seeds at rest.
	MFAEncryptionKey string `env:"MFA_ENCRYPTION_KEY,required"`

	// Audit pipeline (Kafka). Empty brokers = slog sink only.
	AuditKafkaBrokers string `env:"AUDIT_KAFKA_BROKERS"`
	AuditKafkaTopic   string `env:"AUDIT_KAFKA_TOPIC" envDefault:"identity.security-events"`

	// Cross-Origin Resource Sharing
	ExtraOrigins string `env:"EXTRA_ORIGINS"`
}

// # Configuration Loading

// Load parses environment variables into a [Config] struct.
//
// A .env file in the working directory is merged first when present;
// real environment variables always win.
func Load() (*Config, error) {

	// Best-effort: absence of a .env file is the normal production case.
	_ = godotenv.Load()

	// Initialize an empty config struct
	cfg := &Config{}

	// Use the 'env' package to map environment variables to struct fields.
	// This will fail if any field marked with 'required' is missing.
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse environment variables: %w", err)
	}

	return cfg, nil
}

// IsDevelopment reports whether the server is running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction reports whether the server is running in production mode.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// MFAKey decodes and validates the AES-256 key protecting TOTP seeds.
func (c *Config) MFAKey() ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(c.MFAEncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("config: MFA_ENCRYPTION_KEY is not valid base64: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("config: MFA_ENCRYPTION_KEY must decode to 32 bytes, got %d", len(key))
	}
	return key, nil
}

// KafkaBrokers splits the comma-separated broker list. Empty = audit to logs only.
func (c *Config) KafkaBrokers() []string {
	if strings.TrimSpace(c.AuditKafkaBrokers) == "" {
		return nil
	}
	parts := strings.Split(c.AuditKafkaBrokers, ",")
	brokers := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			brokers = append(brokers, trimmed)
		}
	}
	return brokers
}
