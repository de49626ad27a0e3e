package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.ServerPort)
	assert.Equal(t, "memory", cfg.CacheBackend)
	assert.Equal(t, 15*time.Minute, cfg.CacheTTL)
	assert.Equal(t, 8*time.Second, cfg.SourceTimeout)
	assert.Equal(t, 3, cfg.RetryMaxAttempts)
	assert.Equal(t, time.Second, cfg.RetryBaseDelay)
	assert.Equal(t, 2.0, cfg.RetryBackoffFactor)
	assert.Equal(t, 20, cfg.DedupePrefixLength)
	assert.Equal(t, 100.0, cfg.DedupePriceTolerance)
	assert.Equal(t, 0.5, cfg.MinRelevance)
	assert.True(t, cfg.ExcludeAccessories)
	assert.Equal(t, 1500*time.Millisecond, cfg.BrowserSettleDelay)
	assert.Empty(t, cfg.EnabledStores)
	assert.Equal(t, []string{"*"}, cfg.CORSAllowedOrigins)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("CACHE_TTL", "5m")
	t.Setenv("SOURCE_TIMEOUT", "3s")
	t.Setenv("ENABLED_STORES", "jumia, melcom,,")
	t.Setenv("MIN_RELEVANCE", "0.7")
	t.Setenv("EXCLUDE_ACCESSORIES", "false")

	cfg, err := load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, 5*time.Minute, cfg.CacheTTL)
	assert.Equal(t, 3*time.Second, cfg.SourceTimeout)
	assert.Equal(t, []string{"jumia", "melcom"}, cfg.EnabledStores)
	assert.Equal(t, 0.7, cfg.MinRelevance)
	assert.False(t, cfg.ExcludeAccessories)
}

func TestLoad_EnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("SERVER_PORT=8088\nCACHE_BACKEND=sqlite\n"), 0o644))

	cfg, err := load(path)
	require.NoError(t, err)
	assert.Equal(t, "8088", cfg.ServerPort)
	assert.Equal(t, "sqlite", cfg.CacheBackend)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{"unknown cache backend", func(c *Config) { c.CacheBackend = "memcached" }, "CACHE_BACKEND"},
		{"scraperapi without key", func(c *Config) { c.ProxyService = "scraperapi" }, "PROXY_API_KEY"},
		{"custom proxy without urls", func(c *Config) { c.ProxyService = "custom" }, "PROXY_URLS"},
		{"relevance out of range", func(c *Config) { c.MinRelevance = 1.5 }, "MIN_RELEVANCE"},
		{"zero attempts", func(c *Config) { c.RetryMaxAttempts = 0 }, "RETRY_MAX_ATTEMPTS"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := load(filepath.Join(t.TempDir(), "missing.env"))
			require.NoError(t, err)

			tt.mutate(cfg)
			err = cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}
