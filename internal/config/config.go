// Package config defines the runtime configuration for the disclosure
// pipeline. It is intentionally small and dependency-free: values come from
// command-line flags with environment fallbacks, and decoding is performed by
// the standard library.
package config

import (
	"fmt"
	"os"
	"strconv"
)

// Defaults mirror the upstream extract conventions.
const (
	DefaultBatchSize  = 50_000
	DefaultDataDir    = "data"
	DefaultLedgerPath = "sunshine_runs.db"
)

// Config carries everything a load/merge run needs.
type Config struct {
	// DSN is the pgx connection string for the warehouse.
	DSN string

	// DataDir is the directory holding the tab-separated extract files.
	DataDir string

	// BatchSize is the number of staged rows per COPY batch.
	BatchSize int

	// LedgerPath is the SQLite file recording run history.
	LedgerPath string

	// SkipUnchanged skips datasets whose extract hash matches the last
	// merged run.
	SkipUnchanged bool

	// MetricsBackend selects "pushgateway", "datadog", or "" for none.
	MetricsBackend string
	PushgatewayURL string
	DatadogAddr    string
}

// FromEnv returns a Config seeded from SUNSHINE_* environment variables with
// package defaults filled in. Flags layer on top of this in main.
func FromEnv() Config {
	return Config{
		DSN:            os.Getenv("SUNSHINE_DB_DSN"),
		DataDir:        getenv("SUNSHINE_DATA_DIR", DefaultDataDir),
		BatchSize:      getenvInt("SUNSHINE_BATCH_SIZE", DefaultBatchSize),
		LedgerPath:     getenv("SUNSHINE_LEDGER", DefaultLedgerPath),
		SkipUnchanged:  getenvBool("SUNSHINE_SKIP_UNCHANGED", false),
		MetricsBackend: os.Getenv("SUNSHINE_METRICS_BACKEND"),
		PushgatewayURL: os.Getenv("SUNSHINE_PUSHGATEWAY_URL"),
		DatadogAddr:    os.Getenv("SUNSHINE_DATADOG_ADDR"),
	}
}

// Validate reports the first configuration error.
func (c Config) Validate() error {
	if c.DSN == "" {
		return fmt.Errorf("config: database DSN is required (--dsn or SUNSHINE_DB_DSN)")
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("config: batch size must be > 0, got %d", c.BatchSize)
	}
	switch c.MetricsBackend {
	case "", "none", "pushgateway", "datadog":
	default:
		return fmt.Errorf("config: unknown metrics backend %q", c.MetricsBackend)
	}
	if c.MetricsBackend == "pushgateway" && c.PushgatewayURL == "" {
		return fmt.Errorf("config: pushgateway backend requires a gateway URL")
	}
	if c.MetricsBackend == "datadog" && c.DatadogAddr == "" {
		return fmt.Errorf("config: datadog backend requires a statsd address")
	}
	return nil
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getenvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}
