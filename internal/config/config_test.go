package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{
		"DB_HOST", "DB_PORT", "DB_USER", "DB_PASSWORD", "DB_NAME",
		"SQLITE_PATH", "DB_SSLMODE", "MAX_QUERY_TIME", "MAX_ROWS",
		"DB_POOL_SIZE", "POOL_ACQUIRE_WAIT", "ENABLE_QUERY_LOGGING",
		"METRICS_ADDR",
	} {
		t.Setenv(name, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 30*time.Second, cfg.MaxQueryTime)
	assert.Equal(t, 10000, cfg.MaxRows)
	assert.Equal(t, 5, cfg.PoolSize)
	assert.Equal(t, 5*time.Second, cfg.AcquireWait)
	assert.True(t, cfg.EnableQueryLogging)
	assert.Equal(t, "prefer", cfg.SSLMode)
	assert.Empty(t, cfg.MetricsAddr, "metrics listener is opt-in")
}

func TestLoadOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("DB_PORT", "5432")
	t.Setenv("DB_NAME", "reports")
	t.Setenv("MAX_QUERY_TIME", "10")
	t.Setenv("MAX_ROWS", "500")
	t.Setenv("DB_POOL_SIZE", "2")
	t.Setenv("POOL_ACQUIRE_WAIT", "1")
	t.Setenv("ENABLE_QUERY_LOGGING", "false")
	t.Setenv("DB_SSLMODE", "require")
	t.Setenv("METRICS_ADDR", "127.0.0.1:9182")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "db.internal", cfg.Host)
	assert.Equal(t, 5432, cfg.Port)
	assert.Equal(t, 10*time.Second, cfg.MaxQueryTime)
	assert.Equal(t, 500, cfg.MaxRows)
	assert.Equal(t, 2, cfg.PoolSize)
	assert.Equal(t, time.Second, cfg.AcquireWait)
	assert.False(t, cfg.EnableQueryLogging)
	assert.Equal(t, "require", cfg.SSLMode)
	assert.Equal(t, "127.0.0.1:9182", cfg.MetricsAddr)
	assert.NoError(t, cfg.RequireServer())
}

func TestLoadRejectsBadValues(t *testing.T) {
	cases := map[string]string{
		"DB_PORT":        "not-a-port",
		"MAX_QUERY_TIME": "0",
		"MAX_ROWS":       "-1",
		"DB_POOL_SIZE":   "0",
	}
	for name, value := range cases {
		t.Run(name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(name, value)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestRequireServerNamesMissingVars(t *testing.T) {
	clearEnv(t)
	cfg, err := Load()
	require.NoError(t, err)

	err = cfg.RequireServer()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DB_HOST")
	assert.Contains(t, err.Error(), "DB_PORT")
	assert.Contains(t, err.Error(), "DB_NAME")
}
