// Package config loads and validates the tracker configuration.
package config

import (
	"errors"
	"net/url"
	"strings"
	"sync"

	"github.com/spf13/viper"
)

type Config struct {
	DataDir   string `mapstructure:"data_dir"`
	ExportDir string `mapstructure:"export_dir"`
	SeedFile  string `mapstructure:"seed_file"`

	LogFile      string `mapstructure:"log_file"`
	DebugLogging bool   `mapstructure:"debug_logging"`

	MarketBaseURL  string   `mapstructure:"market_base_url"`
	Chains         []string `mapstructure:"chains"`
	RequestTimeout int      `mapstructure:"request_timeout"` // seconds
	RateLimit      int      `mapstructure:"rate_limit"`      // requests per minute
	Retries        int      `mapstructure:"retries"`

	WatchInterval    int `mapstructure:"watch_interval"`     // seconds, per watchlist item
	DetailInterval   int `mapstructure:"detail_interval"`    // seconds, focused token
	SearchDebounceMs int `mapstructure:"search_debounce_ms"` // milliseconds

	BridgeURL            string `mapstructure:"bridge_url"`
	NotificationsEnabled bool   `mapstructure:"notifications_enabled"`
	LocalNotifications   bool   `mapstructure:"local_notifications"`
}

const (
	DefaultMarketBaseURL  = "https://api.dexscreener.com"
	DefaultRequestTimeout = 10
	DefaultRateLimit      = 300
	DefaultRetries        = 3
	DefaultWatchInterval  = 60
	DefaultDetailInterval = 30
	DefaultSearchDebounce = 500
)

// DefaultChains is the ordered chain list tried for address-shaped queries.
var DefaultChains = []string{"ethereum", "base", "polygon", "arbitrum", "optimism"}

// LoadConfig reads the configuration file at path, applies defaults and
// environment overrides, and validates the result. An empty path loads
// defaults only.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()

	defaults := map[string]interface{}{
		"data_dir":              "data",
		"export_dir":            "exports",
		"log_file":              "tracker.log",
		"market_base_url":       DefaultMarketBaseURL,
		"chains":                DefaultChains,
		"request_timeout":       DefaultRequestTimeout,
		"rate_limit":            DefaultRateLimit,
		"retries":               DefaultRetries,
		"watch_interval":        DefaultWatchInterval,
		"detail_interval":       DefaultDetailInterval,
		"search_debounce_ms":    DefaultSearchDebounce,
		"notifications_enabled": true,
		"local_notifications":   true,
	}
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	loadEnvironmentVariables(v, &cfg)

	return &cfg, validateConfig(&cfg)
}

func validateConfig(cfg *Config) error {
	if cfg.DataDir == "" {
		return errors.New("data_dir must not be empty")
	}
	if len(cfg.Chains) == 0 {
		return errors.New("chains list is empty")
	}
	if err := validateURLWithCache(cfg.MarketBaseURL, "http"); err != nil {
		return errors.New("invalid market base URL")
	}
	if cfg.BridgeURL != "" {
		if err := validateURLWithCache(cfg.BridgeURL, "http"); err != nil {
			return errors.New("invalid bridge URL")
		}
	}
	return validateNumericParams(cfg)
}

func validateNumericParams(cfg *Config) error {
	if cfg.RequestTimeout <= 0 {
		return errors.New("invalid request_timeout")
	}
	if cfg.RateLimit <= 0 {
		return errors.New("invalid rate_limit")
	}
	if cfg.Retries < 0 {
		return errors.New("invalid retries count")
	}
	if cfg.WatchInterval <= 0 {
		return errors.New("invalid watch_interval")
	}
	if cfg.DetailInterval <= 0 {
		return errors.New("invalid detail_interval")
	}
	if cfg.SearchDebounceMs <= 0 {
		return errors.New("invalid search_debounce_ms")
	}
	return nil
}

var urlCache sync.Map

func validateURLWithCache(rawURL string, protocol string) error {
	if _, ok := urlCache.Load(rawURL); ok {
		return nil
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return errors.New("invalid URL format")
	}
	if !strings.HasPrefix(parsed.Scheme, protocol) {
		return errors.New("invalid URL protocol")
	}
	urlCache.Store(rawURL, parsed)
	return nil
}

func loadEnvironmentVariables(v *viper.Viper, cfg *Config) {
	v.AutomaticEnv()
	v.SetEnvPrefix("TOKEN_TRACKER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if dataDir := v.GetString("DATA_DIR"); dataDir != "" {
		cfg.DataDir = dataDir
	}
	if bridgeURL := v.GetString("BRIDGE_URL"); bridgeURL != "" {
		cfg.BridgeURL = bridgeURL
	}
	if chains := v.GetString("CHAINS"); chains != "" {
		var clean []string
		for _, c := range strings.Split(chains, ",") {
			if c = strings.TrimSpace(c); c != "" {
				clean = append(clean, c)
			}
		}
		if len(clean) > 0 {
			cfg.Chains = clean
		}
	}
}
