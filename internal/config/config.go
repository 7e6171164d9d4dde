// Package config builds the immutable gateway configuration from the
// environment. There is no ambient state: Load is called once at startup
// and the resulting struct is passed by reference to whoever needs it.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Defaults for the safety limits, matching the gateway's conservative
// posture: bounded enough to protect the backend, roomy enough for
// exploratory queries.
const (
	DefaultMaxQueryTime = 30 * time.Second
	DefaultMaxRows      = 10000
	DefaultPoolSize     = 5
	DefaultAcquireWait  = 5 * time.Second
)

// Config is the process-wide backend handle plus resource limits. Read-only
// after Load.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string

	// SQLitePath is the database file path for the sqlite family, which has
	// no host or credentials.
	SQLitePath string

	// SSLMode applies to the postgres family only.
	SSLMode string

	// MetricsAddr, when set, exposes the Prometheus collectors over HTTP on
	// this address. Empty disables the listener.
	MetricsAddr string

	MaxQueryTime       time.Duration
	MaxRows            int
	PoolSize           int
	AcquireWait        time.Duration
	EnableQueryLogging bool
}

// Load reads configuration from the environment, honoring a .env file in
// the working directory when present.
func Load() (*Config, error) {
	// Missing .env is the normal case in production.
	_ = godotenv.Load()

	cfg := &Config{
		Host:        os.Getenv("DB_HOST"),
		User:        os.Getenv("DB_USER"),
		Password:    os.Getenv("DB_PASSWORD"),
		Database:    os.Getenv("DB_NAME"),
		SQLitePath:  os.Getenv("SQLITE_PATH"),
		SSLMode:     os.Getenv("DB_SSLMODE"),
		MetricsAddr: os.Getenv("METRICS_ADDR"),
	}
	if cfg.SSLMode == "" {
		cfg.SSLMode = "prefer"
	}

	var err error
	if cfg.Port, err = intVar("DB_PORT", 0); err != nil {
		return nil, err
	}

	maxQuerySecs, err := intVar("MAX_QUERY_TIME", int(DefaultMaxQueryTime/time.Second))
	if err != nil {
		return nil, err
	}
	cfg.MaxQueryTime = time.Duration(maxQuerySecs) * time.Second

	if cfg.MaxRows, err = intVar("MAX_ROWS", DefaultMaxRows); err != nil {
		return nil, err
	}
	if cfg.PoolSize, err = intVar("DB_POOL_SIZE", DefaultPoolSize); err != nil {
		return nil, err
	}

	waitSecs, err := intVar("POOL_ACQUIRE_WAIT", int(DefaultAcquireWait/time.Second))
	if err != nil {
		return nil, err
	}
	cfg.AcquireWait = time.Duration(waitSecs) * time.Second

	cfg.EnableQueryLogging = boolVar("ENABLE_QUERY_LOGGING", true)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.MaxQueryTime <= 0 {
		return fmt.Errorf("MAX_QUERY_TIME must be positive")
	}
	if c.MaxRows <= 0 {
		return fmt.Errorf("MAX_ROWS must be positive")
	}
	if c.PoolSize <= 0 {
		return fmt.Errorf("DB_POOL_SIZE must be positive")
	}
	if c.AcquireWait <= 0 {
		return fmt.Errorf("POOL_ACQUIRE_WAIT must be positive")
	}
	return nil
}

// RequireServer checks the fields every networked backend needs, naming
// each missing variable so a misconfigured deployment fails with an
// actionable message.
func (c *Config) RequireServer() error {
	var missing []string
	if c.Host == "" {
		missing = append(missing, "DB_HOST")
	}
	if c.Port == 0 {
		missing = append(missing, "DB_PORT")
	}
	if c.Database == "" {
		missing = append(missing, "DB_NAME")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required environment variables: %v", missing)
	}
	return nil
}

func intVar(name string, fallback int) (int, error) {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback, nil
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %q", name, raw)
	}
	return val, nil
}

func boolVar(name string, fallback bool) bool {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	val, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}
	return val
}
