// Copyright (c) 2026 Yomira. All rights reserved.
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
  - DI-Friendly: Passed to core components (pool, catalog, verifier) via constructors.
  - Zero Hidden State: No global variables are used to store config.

This ensures the application is Twelve-Factor compliant by storing config in the env.
All variables are prefixed PGRST_ except ENVIRONMENT, DEBUG and EXTRA_ORIGINS.
*/
package config

import (
	"fmt"
	"strings"

	"github.com/caarlos0/env/v11"

	"github.com/relaybase/pgrestcore/internal/platform/validate"
)

// Config holds all runtime configuration for the engine.
type Config struct {
	// Server settings
	ServerHost  string `env:"PGRST_SERVER_HOST" envDefault:"0.0.0.0"`
	ServerPort  string `env:"PGRST_SERVER_PORT" envDefault:"3000"`
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	Debug       bool   `env:"DEBUG" envDefault:"false"`

	// Relational database connection
	DBURI  string `env:"PGRST_DB_URI,required"`
	DBPool int    `env:"PGRST_DB_POOL" envDefault:"10"`

	// Exposed schemas: the first is the default when no Accept-Profile/
	// Content-Profile header is present.
	DBSchemas  []string `env:"PGRST_DB_SCHEMAS" envSeparator:"," envDefault:"public"`
	DBAnonRole string   `env:"PGRST_DB_ANON_ROLE,required"`

	// DBPreRequest is a schema-qualified routine invoked at the start of
	// every transaction, before the main query (§4.6 step 7).
	DBPreRequest string `env:"PGRST_DB_PRE_REQUEST"`

	// DBMaxRows is the LIMIT applied to a read that names no limit (no
	// Range header and no limit=); a limit the client gives is not capped.
	DBMaxRows int `env:"PGRST_DB_MAX_ROWS" envDefault:"0"`

	// Listen/Notify channel for schema cache reload notifications.
	DBChannel        string `env:"PGRST_DB_CHANNEL" envDefault:"pgrst"`
	DBChannelEnabled bool   `env:"PGRST_DB_CHANNEL_ENABLED" envDefault:"false"`

	// JWT verification
	JWTSecret      string `env:"PGRST_JWT_SECRET,required"`
	JWTAud         string `env:"PGRST_JWT_AUD"`
	JWTRoleClaimKey string `env:"PGRST_JWT_ROLE_CLAIM_KEY" envDefault:"role"`

	// Cross-Origin Resource Sharing
	ExtraOrigins string `env:"EXTRA_ORIGINS"`
}

// Load parses environment variables into a [Config] struct and applies
// cross-field validation.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse environment variables: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validate applies structural checks the env tags alone can't express
// (non-empty lists, sane ranges).
func (c *Config) validate() error {
	v := &validate.Validator{}
	v.Required("PGRST_DB_ANON_ROLE", c.DBAnonRole)
	v.Required("PGRST_JWT_SECRET", c.JWTSecret)
	v.Custom("PGRST_DB_SCHEMAS", len(c.DBSchemas) == 0, "at least one schema must be exposed")
	v.Range("PGRST_DB_POOL", c.DBPool, 1, 1000)
	return v.Err()
}

// IsDevelopment reports whether the server is running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction reports whether the server is running in production mode.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// DefaultSchema is the schema used when no Accept-Profile/Content-Profile
// header is present.
func (c *Config) DefaultSchema() string {
	if len(c.DBSchemas) == 0 {
		return "public"
	}
	return c.DBSchemas[0]
}

// SchemaExposed reports whether schema is in the configured exposed list.
func (c *Config) SchemaExposed(schema string) bool {
	for _, s := range c.DBSchemas {
		if s == schema {
			return true
		}
	}
	return false
}

// AllowedOriginSuffix returns the hostname suffix CORS matches incoming
// Origin headers against in production mode.
func (c *Config) AllowedOriginSuffix() string {
	return strings.TrimSpace(c.ExtraOrigins)
}
