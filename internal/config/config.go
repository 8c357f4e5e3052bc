// Package config defines service configuration and how it is loaded.
package config

import (
	"fmt"
	"runtime"
)

// Store drivers.
const (
	StoreMemory = "memory"
	StoreSQLite = "sqlite"
)

// Log formats.
const (
	LogFormatText     = "text"
	LogFormatJSON     = "json"
	LogFormatTerminal = "terminal"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the handler: text, json or terminal (colored).
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// QueueSize bounds the in-memory run submission queue.
	QueueSize int `koanf:"queue_size"`

	// WorkerCount sets the number of grading workers.
	WorkerCount int `koanf:"worker_count"`

	// DedupeSize bounds the idempotency cache for runs and session events.
	DedupeSize int `koanf:"dedupe_size"`

	// StoreDriver selects run persistence: memory or sqlite.
	StoreDriver string `koanf:"store_driver"`

	// SQLitePath is the database file used by the sqlite driver.
	SQLitePath string `koanf:"sqlite_path"`

	// CasesDir is scanned for scenario documents at startup.
	CasesDir string `koanf:"cases_dir"`

	// CasesGlob selects scenario files inside CasesDir.
	CasesGlob string `koanf:"cases_glob"`

	// MaxListLimit caps limit query parameters.
	MaxListLimit int `koanf:"max_list_limit"`

	// EventActionMap overrides device event to action id translations.
	// An empty value removes a default entry.
	EventActionMap map[string]string `koanf:"event_action_map"`
}

// New returns a Config holding the defaults.
func New() *Config {
	return &Config{
		LogLevel:     "info",
		LogFormat:    LogFormatText,
		Addr:         ":9080",
		QueueSize:    10_000,
		WorkerCount:  runtime.NumCPU() * 2,
		DedupeSize:   100_000,
		StoreDriver:  StoreMemory,
		SQLitePath:   "akut.db",
		CasesDir:     "cases",
		CasesGlob:    "**/*.{json,yaml,yml}",
		MaxListLimit: 100,
	}
}

// Validate reports configuration that cannot be started with.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	}
	switch c.StoreDriver {
	case StoreMemory:
	case StoreSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("%w: sqlite_path must be set for the sqlite driver", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown store_driver %q", ErrInvalidConfig, c.StoreDriver)
	}
	switch c.LogFormat {
	case LogFormatText, LogFormatJSON, LogFormatTerminal:
	default:
		return fmt.Errorf("%w: unknown log_format %q", ErrInvalidConfig, c.LogFormat)
	}
	if c.MaxListLimit < 1 {
		return fmt.Errorf("%w: max_list_limit must be positive", ErrInvalidConfig)
	}
	return nil
}
