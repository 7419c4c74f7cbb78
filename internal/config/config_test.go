package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"marketfeed/internal/config"
	"marketfeed/internal/market"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "marketfeed.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	t.Parallel()

	cfg, err := config.Load("")

	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.Server.Addr)
	require.Equal(t, 30*time.Second, cfg.HTTP.Timeout)
	require.Equal(t, 300*time.Second, cfg.Cache.TTL)
	require.Equal(t, 3, cfg.Fetch.MaxAttempts)
	require.Equal(t, time.Second, cfg.Fetch.BaseDelay)
	require.Equal(t, 30*time.Second, cfg.Fetch.MaxDelay)
	require.True(t, cfg.Providers.Yahoo.Enabled)

	prio, err := cfg.Priority()
	require.NoError(t, err)
	require.Equal(t, market.Sources(), prio)
}

func TestLoad_MissingFileKeepsDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := config.Load(filepath.Join(t.TempDir(), "absent.yaml"))

	require.NoError(t, err)
	require.Equal(t, "info", cfg.Log.Level)
}

func TestLoad_File(t *testing.T) {
	t.Parallel()

	// Arrange
	path := writeFile(t, `
log:
  level: debug
server:
  addr: ":9090"
cache:
  ttl: 45s
fetch:
  max_attempts: 5
  priority: [yahoo, binance]
providers:
  polygon:
    enabled: false
  yahoo:
    min_interval: 750ms
warmer:
  enabled: true
  symbols: [AAPL, MSFT]
  intervals: [1d, 1h]
  limit: 20
`)

	// Act
	cfg, err := config.Load(path)

	// Assert
	require.NoError(t, err)
	require.Equal(t, "debug", cfg.Log.Level)
	require.Equal(t, ":9090", cfg.Server.Addr)
	require.Equal(t, 45*time.Second, cfg.Cache.TTL)
	require.Equal(t, 5, cfg.Fetch.MaxAttempts)
	require.False(t, cfg.Providers.Polygon.Enabled)
	require.Equal(t, 750*time.Millisecond, cfg.Providers.Yahoo.MinInterval)

	prio, err := cfg.Priority()
	require.NoError(t, err)
	require.Equal(t, []market.Source{market.SourceYahoo, market.SourceBinance}, prio)

	reqs, err := cfg.WarmupRequests()
	require.NoError(t, err)
	require.Len(t, reqs, 4)
	require.Equal(t, market.Request{Symbol: "AAPL", Interval: market.Interval1d, Limit: 20, Source: market.SourceAuto}, reqs[0])
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("MARKETFEED_SERVER_ADDR", ":7070")
	t.Setenv("MARKETFEED_FETCH_MAX_ATTEMPTS", "2")

	cfg, err := config.Load("")

	require.NoError(t, err)
	require.Equal(t, ":7070", cfg.Server.Addr)
	require.Equal(t, 2, cfg.Fetch.MaxAttempts)
}

func TestLoad_Invalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body string
	}{
		{"unknown source", "fetch:\n  priority: [bloomberg]\n"},
		{"zero attempts", "fetch:\n  max_attempts: 0\n"},
		{"bad log level", "log:\n  level: loud\n"},
		{"max below base", "fetch:\n  base_delay: 10s\n  max_delay: 1s\n"},
		{"warmer bad interval", "warmer:\n  enabled: true\n  symbols: [AAPL]\n  intervals: [7m]\n"},
		{"malformed yaml", "server: [\n"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := config.Load(writeFile(t, tt.body))
			require.Error(t, err)
		})
	}
}

func TestWatch_RequiresExistingFile(t *testing.T) {
	t.Parallel()

	require.Error(t, config.Watch("", func(*config.Config) {}, nil))
	require.Error(t, config.Watch(filepath.Join(t.TempDir(), "nope.yaml"), func(*config.Config) {}, nil))
}

func TestProvidersGet(t *testing.T) {
	t.Parallel()

	p := config.Providers{Binance: config.Provider{Enabled: true, BaseURL: "http://x"}}

	require.Equal(t, "http://x", p.Get(market.SourceBinance).BaseURL)
	require.Equal(t, config.Provider{}, p.Get(market.SourceAuto))
}
