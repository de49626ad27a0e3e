package main

import (
	"canibuy/pkg/config"
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCacheStore(t *testing.T) {
	tests := []struct {
		name        string
		cfg         config.Config
		expectedErr string
		expected    string
	}{
		{
			name:     "Default memory",
			cfg:      config.Config{},
			expected: "memory",
		},
		{
			name:     "SQLite file",
			cfg:      config.Config{CacheBackend: "sqlite", CacheDBPath: filepath.Join(t.TempDir(), "cache.db")},
			expected: "sqlite",
		},
		{
			name:        "Unknown backend",
			cfg:         config.Config{CacheBackend: "memcached"},
			expectedErr: `unknown cache backend "memcached"`,
		},
		{
			name:        "Redis unreachable",
			cfg:         config.Config{CacheBackend: "redis", RedisAddr: "127.0.0.1:1"},
			expectedErr: "connect to redis at 127.0.0.1:1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, err := newCacheStore(context.Background(), &tt.cfg)
			if tt.expectedErr != "" {
				assert.ErrorContains(t, err, tt.expectedErr)
				return
			}
			require.NoError(t, err)
			defer store.Close()
			assert.Equal(t, tt.expected, store.Name())
		})
	}
}
