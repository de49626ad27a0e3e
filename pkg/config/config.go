package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config stores all configuration for the service.
type Config struct {
	ServerPort         string   `mapstructure:"SERVER_PORT"`
	LogLevel           string   `mapstructure:"LOG_LEVEL"`
	LogFormat          string   `mapstructure:"LOG_FORMAT"`
	CORSAllowedOrigins []string `mapstructure:"CORS_ALLOWED_ORIGINS"`

	CacheBackend         string        `mapstructure:"CACHE_BACKEND"`
	CacheTTL             time.Duration `mapstructure:"CACHE_TTL"`
	CacheCleanupInterval time.Duration `mapstructure:"CACHE_CLEANUP_INTERVAL"`
	CacheDBPath          string        `mapstructure:"CACHE_DB_PATH"`
	RedisAddr            string        `mapstructure:"REDIS_ADDR"`
	RedisPassword        string        `mapstructure:"REDIS_PASSWORD"`
	RedisDB              int           `mapstructure:"REDIS_DB"`

	SourceTimeout        time.Duration `mapstructure:"SOURCE_TIMEOUT"`
	BrowserSourceTimeout time.Duration `mapstructure:"BROWSER_SOURCE_TIMEOUT"`
	HTTPTimeout          time.Duration `mapstructure:"HTTP_TIMEOUT"`
	EnabledStores        []string      `mapstructure:"ENABLED_STORES"`
	DefaultCurrency      string        `mapstructure:"DEFAULT_CURRENCY"`

	RetryMaxAttempts   int           `mapstructure:"RETRY_MAX_ATTEMPTS"`
	RetryBaseDelay     time.Duration `mapstructure:"RETRY_BASE_DELAY"`
	RetryBackoffFactor float64       `mapstructure:"RETRY_BACKOFF_FACTOR"`

	MinRelevance         float64 `mapstructure:"MIN_RELEVANCE"`
	ExcludeAccessories   bool    `mapstructure:"EXCLUDE_ACCESSORIES"`
	DedupePrefixLength   int     `mapstructure:"DEDUPE_PREFIX_LENGTH"`
	DedupePriceTolerance float64 `mapstructure:"DEDUPE_PRICE_TOLERANCE"`
	SortRelevanceGap     float64 `mapstructure:"SORT_RELEVANCE_GAP"`
	DefaultRelevance     float64 `mapstructure:"DEFAULT_RELEVANCE"`

	BrowserHeadless       bool          `mapstructure:"BROWSER_HEADLESS"`
	BrowserNoSandbox      bool          `mapstructure:"BROWSER_NO_SANDBOX"`
	BrowserMaxSessions    int           `mapstructure:"BROWSER_MAX_SESSIONS"`
	BrowserBlockResources bool          `mapstructure:"BROWSER_BLOCK_RESOURCES"`
	BrowserNavTimeout     time.Duration `mapstructure:"BROWSER_NAV_TIMEOUT"`
	BrowserSettleDelay    time.Duration `mapstructure:"BROWSER_SETTLE_DELAY"`
	BrowserExecPath       string        `mapstructure:"BROWSER_EXEC_PATH"`
	DebugDumpDir          string        `mapstructure:"DEBUG_DUMP_DIR"`

	ProxyService string   `mapstructure:"PROXY_SERVICE"`
	ProxyAPIKey  string   `mapstructure:"PROXY_API_KEY"`
	ProxyURLs    []string `mapstructure:"PROXY_URLS"`
}

var defaults = map[string]any{
	"SERVER_PORT":          "9090",
	"LOG_LEVEL":            "info",
	"LOG_FORMAT":           "json",
	"CORS_ALLOWED_ORIGINS": "*",

	"CACHE_BACKEND":          "memory",
	"CACHE_TTL":              "15m",
	"CACHE_CLEANUP_INTERVAL": "5m",
	"CACHE_DB_PATH":          "./cache.db",
	"REDIS_ADDR":             "localhost:6379",
	"REDIS_PASSWORD":         "",
	"REDIS_DB":               0,

	"SOURCE_TIMEOUT":         "8s",
	"BROWSER_SOURCE_TIMEOUT": "30s",
	"HTTP_TIMEOUT":           "15s",
	"ENABLED_STORES":         "",
	"DEFAULT_CURRENCY":       "GHS",

	"RETRY_MAX_ATTEMPTS":   3,
	"RETRY_BASE_DELAY":     "1s",
	"RETRY_BACKOFF_FACTOR": 2.0,

	"MIN_RELEVANCE":          0.5,
	"EXCLUDE_ACCESSORIES":    true,
	"DEDUPE_PREFIX_LENGTH":   20,
	"DEDUPE_PRICE_TOLERANCE": 100.0,
	"SORT_RELEVANCE_GAP":     0.1,
	"DEFAULT_RELEVANCE":      0.5,

	"BROWSER_HEADLESS":        true,
	"BROWSER_NO_SANDBOX":      true,
	"BROWSER_MAX_SESSIONS":    3,
	"BROWSER_BLOCK_RESOURCES": true,
	"BROWSER_NAV_TIMEOUT":     "20s",
	"BROWSER_SETTLE_DELAY":    "1500ms",
	"BROWSER_EXEC_PATH":       "",
	"DEBUG_DUMP_DIR":          "",

	"PROXY_SERVICE": "none",
	"PROXY_API_KEY": "",
	"PROXY_URLS":    "",
}

// Load reads configuration from an optional .env file and the environment.
func Load() (*Config, error) {
	return load(".env")
}

func load(envFile string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(envFile)
	v.SetConfigType("env")
	v.AutomaticEnv()

	// A missing .env is fine, the environment alone is enough in production.
	_ = v.ReadInConfig()

	for key, val := range defaults {
		v.SetDefault(key, val)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.EnabledStores = normalizeList(cfg.EnabledStores)
	cfg.ProxyURLs = normalizeList(cfg.ProxyURLs)
	cfg.CORSAllowedOrigins = normalizeList(cfg.CORSAllowedOrigins)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []error

	switch c.CacheBackend {
	case "memory", "sqlite", "redis":
	default:
		errs = append(errs, fmt.Errorf("CACHE_BACKEND must be memory, sqlite or redis, got %q", c.CacheBackend))
	}
	switch c.ProxyService {
	case "none", "":
	case "scraperapi":
		if c.ProxyAPIKey == "" {
			errs = append(errs, errors.New("PROXY_API_KEY is required when PROXY_SERVICE=scraperapi"))
		}
	case "custom":
		if len(c.ProxyURLs) == 0 {
			errs = append(errs, errors.New("PROXY_URLS is required when PROXY_SERVICE=custom"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown PROXY_SERVICE %q", c.ProxyService))
	}

	if c.CacheTTL <= 0 {
		errs = append(errs, errors.New("CACHE_TTL must be positive"))
	}
	if c.SourceTimeout <= 0 || c.BrowserSourceTimeout <= 0 {
		errs = append(errs, errors.New("source timeouts must be positive"))
	}
	if c.RetryMaxAttempts < 1 {
		errs = append(errs, errors.New("RETRY_MAX_ATTEMPTS must be at least 1"))
	}
	if c.RetryBackoffFactor < 1 {
		errs = append(errs, errors.New("RETRY_BACKOFF_FACTOR must be at least 1"))
	}
	if c.MinRelevance < 0 || c.MinRelevance > 1 {
		errs = append(errs, errors.New("MIN_RELEVANCE must be within [0,1]"))
	}
	if c.DefaultRelevance < 0 || c.DefaultRelevance > 1 {
		errs = append(errs, errors.New("DEFAULT_RELEVANCE must be within [0,1]"))
	}
	if c.DedupePrefixLength < 1 {
		errs = append(errs, errors.New("DEDUPE_PREFIX_LENGTH must be at least 1"))
	}
	if c.DedupePriceTolerance < 0 {
		errs = append(errs, errors.New("DEDUPE_PRICE_TOLERANCE must not be negative"))
	}
	if c.BrowserMaxSessions < 1 {
		errs = append(errs, errors.New("BROWSER_MAX_SESSIONS must be at least 1"))
	}

	return errors.Join(errs...)
}

func normalizeList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
