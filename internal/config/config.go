// Package config loads the server configuration from an optional TOML file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"
	_ "time/tzdata" // lending timezones on hosts without a zoneinfo database

	"github.com/BurntSushi/toml"

	"github.com/erazemk/knjiznica/internal/lending"
)

// Config is the complete server configuration.
type Config struct {
	Server   ServerConfig   `toml:"server"`
	Database DatabaseConfig `toml:"database"`
	Lending  LendingConfig  `toml:"lending"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Addr string `toml:"addr"`
	// JWTSecret signs access tokens. Empty means a secret generated on first
	// start and kept in the database is used.
	JWTSecret string `toml:"jwt_secret"`
	// Metrics exposes Prometheus metrics on /metrics.
	Metrics bool `toml:"metrics"`
}

// DatabaseConfig locates the SQLite database.
type DatabaseConfig struct {
	Path string `toml:"path"`
}

// LendingConfig holds the lending rules.
type LendingConfig struct {
	LoanPeriodDays   int    `toml:"loan_period_days"`
	FinePerDay       int64  `toml:"fine_per_day"`
	MaxExtensionDays int    `toml:"max_extension_days"`
	NearDueDays      int    `toml:"near_due_days"`
	Timezone         string `toml:"timezone"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() Config {
	p := lending.DefaultPolicy()
	return Config{
		Server: ServerConfig{
			Addr:    ":8080",
			Metrics: true,
		},
		Database: DatabaseConfig{
			Path: "knjiznica.db",
		},
		Lending: LendingConfig{
			LoanPeriodDays:   p.LoanPeriodDays,
			FinePerDay:       p.FinePerDay,
			MaxExtensionDays: p.MaxExtensionDays,
			NearDueDays:      p.NearDueDays,
			Timezone:         "UTC",
		},
	}
}

// Load reads path over the defaults. A missing file is not an error when
// path is empty; a named file must exist.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	md, err := toml.DecodeFile(path, &cfg)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, fmt.Errorf("config file %s not found", path)
	}
	if err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return cfg, fmt.Errorf("unknown config key %q in %s", undecoded[0].String(), path)
	}

	if _, err := cfg.Policy(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Policy converts the lending section into engine rules.
func (c Config) Policy() (lending.Policy, error) {
	loc, err := time.LoadLocation(c.Lending.Timezone)
	if err != nil {
		return lending.Policy{}, fmt.Errorf("lending timezone: %w", err)
	}

	p := lending.Policy{
		LoanPeriodDays:   c.Lending.LoanPeriodDays,
		FinePerDay:       c.Lending.FinePerDay,
		MaxExtensionDays: c.Lending.MaxExtensionDays,
		NearDueDays:      c.Lending.NearDueDays,
		Location:         loc,
	}
	if err := p.Validate(); err != nil {
		return lending.Policy{}, fmt.Errorf("lending config: %w", err)
	}
	return p, nil
}
