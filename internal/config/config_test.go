package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadForTests(map[string]string{
		"APP_ENV":              "",
		"PORT":                 "",
		"REDIS_URL":            "",
		"CACHE_MAX_ENTRIES":    "",
		"CACHE_TTL_TERMINAL":   "",
		"CACHE_TTL_TRANSIT":    "",
		"CACHE_TTL_DEFAULT":    "",
		"RETRY_BASE_DELAY":     "",
		"RETRY_CAP_DELAY":      "",
		"PROVIDER_TIMEOUT":     "",
		"FAILURE_QUIET_PERIOD": "",
		"RATE_LIMIT_MAX":       "",
	})
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.AppEnv)
	assert.Equal(t, ":8080", cfg.HTTPAddr())
	assert.Empty(t, cfg.RedisURL)
	assert.Equal(t, 1000, cfg.CacheMaxEntries)
	assert.Equal(t, 6*time.Hour, cfg.CacheTTLTerminal)
	assert.Equal(t, 10*time.Minute, cfg.CacheTTLTransit)
	assert.Equal(t, 3*time.Minute, cfg.CacheTTLDefault)
	assert.Equal(t, 72*time.Hour, cfg.CacheStaleFor)
	assert.Equal(t, 500*time.Millisecond, cfg.RetryBaseDelay)
	assert.Equal(t, 8*time.Second, cfg.RetryCapDelay)
	assert.Equal(t, 10*time.Second, cfg.ProviderTimeout)
	assert.Equal(t, time.Hour, cfg.FailureQuiet)
	assert.Equal(t, 120, cfg.RateLimitMax)
}

func TestLoadOverrides(t *testing.T) {
	cfg, err := LoadForTests(map[string]string{
		"APP_ENV":              "production",
		"PORT":                 "9090",
		"REDIS_URL":            "redis://localhost:6379/0",
		"CORS_ALLOWED_ORIGINS": "https://a.example.com, https://b.example.com",
		"CACHE_MAX_ENTRIES":    "500",
		"CACHE_TTL_TERMINAL":   "12h",
		"CACHE_TTL_TRANSIT":    "5m",
		"CACHE_TTL_DEFAULT":    "1m",
		"RATE_LIMIT_MAX":       "60",
	})
	require.NoError(t, err)

	assert.Equal(t, "production", cfg.AppEnv)
	assert.Equal(t, ":9090", cfg.HTTPAddr())
	assert.Equal(t, "redis://localhost:6379/0", cfg.RedisURL)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.CORSAllowedOrigins)
	assert.Equal(t, 500, cfg.CacheMaxEntries)
	assert.Equal(t, 12*time.Hour, cfg.CacheTTLTerminal)
	assert.Equal(t, 60, cfg.RateLimitMax)
}

func TestLoadRejectsInvertedTTLs(t *testing.T) {
	_, err := LoadForTests(map[string]string{
		"CACHE_TTL_TERMINAL": "1m",
		"CACHE_TTL_TRANSIT":  "10m",
		"CACHE_TTL_DEFAULT":  "3m",
	})
	assert.Error(t, err)

	_, err = LoadForTests(map[string]string{
		"CACHE_TTL_TERMINAL": "6h",
		"CACHE_TTL_TRANSIT":  "1m",
		"CACHE_TTL_DEFAULT":  "3m",
	})
	assert.Error(t, err)
}

func TestLoadInvalidValuesFallBack(t *testing.T) {
	cfg, err := LoadForTests(map[string]string{
		"CACHE_MAX_ENTRIES":  "not-a-number",
		"CACHE_TTL_TERMINAL": "banana",
		"CACHE_TTL_TRANSIT":  "",
		"CACHE_TTL_DEFAULT":  "",
	})
	require.NoError(t, err)
	assert.Equal(t, 1000, cfg.CacheMaxEntries)
	assert.Equal(t, 6*time.Hour, cfg.CacheTTLTerminal)
}

func TestHTTPAddrNormalization(t *testing.T) {
	cfg := &Config{Port: ":7000"}
	assert.Equal(t, ":7000", cfg.HTTPAddr())
	cfg.Port = "7000"
	assert.Equal(t, ":7000", cfg.HTTPAddr())
	cfg.Port = ""
	assert.Equal(t, ":8080", cfg.HTTPAddr())
}
