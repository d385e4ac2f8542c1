package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, "data", cfg.DataDir)
	assert.Equal(t, DefaultMarketBaseURL, cfg.MarketBaseURL)
	assert.Equal(t, DefaultChains, cfg.Chains)
	assert.Equal(t, DefaultWatchInterval, cfg.WatchInterval)
	assert.Equal(t, DefaultDetailInterval, cfg.DetailInterval)
	assert.Equal(t, DefaultSearchDebounce, cfg.SearchDebounceMs)
	assert.True(t, cfg.NotificationsEnabled)
	assert.True(t, cfg.LocalNotifications)
	assert.Empty(t, cfg.BridgeURL)
}

func TestLoadConfigFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	content := `data_dir: /tmp/tracker
market_base_url: https://example.com
chains:
  - base
  - ethereum
watch_interval: 120
notifications_enabled: false
bridge_url: http://localhost:8080
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/tracker", cfg.DataDir)
	assert.Equal(t, "https://example.com", cfg.MarketBaseURL)
	assert.Equal(t, []string{"base", "ethereum"}, cfg.Chains)
	assert.Equal(t, 120, cfg.WatchInterval)
	assert.False(t, cfg.NotificationsEnabled)
	assert.Equal(t, "http://localhost:8080", cfg.BridgeURL)

	// Unset fields keep their defaults
	assert.Equal(t, DefaultDetailInterval, cfg.DetailInterval)
	assert.Equal(t, DefaultRetries, cfg.Retries)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadConfigValidation(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"empty data dir", "data_dir: \"\""},
		{"bad market url", "market_base_url: \"ftp://example.com\""},
		{"bad bridge url", "bridge_url: \"localhost-no-scheme\""},
		{"zero watch interval", "watch_interval: 0"},
		{"negative rate limit", "rate_limit: -1"},
		{"zero debounce", "search_debounce_ms: 0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0644))

			_, err := LoadConfig(path)
			assert.Error(t, err)
		})
	}
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("TOKEN_TRACKER_DATA_DIR", "/env/data")
	t.Setenv("TOKEN_TRACKER_BRIDGE_URL", "http://env-bridge:9999")
	t.Setenv("TOKEN_TRACKER_CHAINS", "base, optimism ,")

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, "/env/data", cfg.DataDir)
	assert.Equal(t, "http://env-bridge:9999", cfg.BridgeURL)
	assert.Equal(t, []string{"base", "optimism"}, cfg.Chains)
}
