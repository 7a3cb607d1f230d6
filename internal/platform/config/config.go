// Package config loads process configuration from the environment.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
)

// Storage drivers.
const (
	StorageSQLite = "sqlite"
	StorageMemory = "memory"
)

// Config holds every tunable of the cookie processes.
type Config struct {
	ListenAddr string `env:"COOKIE_LISTEN_ADDR" envDefault:":8080"`

	StorageDriver string `env:"COOKIE_STORAGE" envDefault:"sqlite"`
	DBPath        string `env:"COOKIE_DB_PATH" envDefault:"data/cookie.db"`
	SaveKey       string `env:"COOKIE_SAVE_KEY" envDefault:"cookieClickerSave"`
	CatalogPath   string `env:"COOKIE_CATALOG_PATH"`

	TickInterval time.Duration `env:"COOKIE_TICK_INTERVAL" envDefault:"1s"`
	SaveInterval time.Duration `env:"COOKIE_SAVE_INTERVAL" envDefault:"10s"`

	// Ledger
	EventWindow   int  `env:"COOKIE_EVENT_WINDOW" envDefault:"4096"`
	PersistEvents bool `env:"COOKIE_PERSIST_EVENTS" envDefault:"true"`

	// WebSocket
	ClientSendBuffer int   `env:"COOKIE_CLIENT_SEND_BUFFER" envDefault:"256"`
	MaxMessageSize   int64 `env:"COOKIE_MAX_MESSAGE_SIZE" envDefault:"512"`
	AllowAnyOrigin   bool  `env:"COOKIE_ALLOW_ANY_ORIGIN" envDefault:"true"`

	LogFile string `env:"COOKIE_LOG_FILE"`
	Mute    bool   `env:"COOKIE_MUTE"`
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Load parses and validates the configuration.
func Load() (Config, error) {
	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects settings the processes cannot run with.
func (c Config) Validate() error {
	switch c.StorageDriver {
	case StorageSQLite:
		if c.DBPath == "" {
			return fmt.Errorf("config: COOKIE_DB_PATH is required for sqlite storage")
		}
	case StorageMemory:
	default:
		return fmt.Errorf("config: unknown storage driver %q", c.StorageDriver)
	}
	if c.SaveKey == "" {
		return fmt.Errorf("config: COOKIE_SAVE_KEY must not be empty")
	}
	if c.TickInterval <= 0 || c.SaveInterval <= 0 {
		return fmt.Errorf("config: tick and save intervals must be positive")
	}
	if c.ClientSendBuffer <= 0 || c.MaxMessageSize <= 0 {
		return fmt.Errorf("config: websocket buffers must be positive")
	}
	return nil
}

// Exitf writes a formatted error message to stderr and exits with code 1.
func Exitf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
