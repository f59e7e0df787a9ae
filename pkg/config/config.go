package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Load loads configuration from YAML file and environment variables.
func Load(path string) (*Config, error) {
	// Validate and sanitize path
	cleanPath := filepath.Clean(path)
	absPath, err := filepath.Abs(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("invalid config path: %w", err)
	}

	// Read config file
	data, err := os.ReadFile(absPath) // #nosec G304 -- Path sanitized with filepath.Clean and filepath.Abs
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Expand environment variables in YAML
	expanded := os.ExpandEnv(string(data))

	// Parse YAML
	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	// Apply defaults
	applyDefaults(&cfg)

	return &cfg, nil
}

// Default returns the configuration used when no config file is given:
// all known sources enabled with their built-in endpoints.
func Default() *Config {
	cfg := &Config{
		Cache: CacheConfig{Enabled: true},
		Sources: []SourceConfig{
			{Name: "binance", Enabled: true},
			{Name: "kraken", Enabled: true},
			{Name: "gateio", Enabled: true},
			{Name: "cryptocompare", Enabled: true},
			{Name: "huobi", Enabled: true},
			{Name: "okx", Enabled: true},
			{Name: "kucoin", Enabled: true},
			{Name: "bybit", Enabled: true},
			{Name: "coingecko", Enabled: true},
		},
	}
	applyDefaults(cfg)
	return cfg
}

// applyDefaults sets default values for optional fields.
func applyDefaults(cfg *Config) {
	// Fetch defaults
	if cfg.Fetch.Timeout.ToDuration() == 0 {
		cfg.Fetch.Timeout = Duration(10 * time.Second)
	}
	if cfg.Fetch.MaxRetries == 0 {
		cfg.Fetch.MaxRetries = 2
	}
	if cfg.Fetch.RetryDelay.ToDuration() == 0 {
		cfg.Fetch.RetryDelay = Duration(1 * time.Second)
	}

	// Cache defaults
	if cfg.Cache.Path == "" {
		cfg.Cache.Path = "data/price_cache.json"
	}
	if cfg.Cache.Duration.ToDuration() == 0 {
		cfg.Cache.Duration = Duration(60 * time.Second)
	}

	// Registry defaults
	if cfg.Registry.Path == "" {
		cfg.Registry.Path = "data/blacklist.json"
	}

	// Proxy defaults
	if cfg.Proxy.MaxAttempts == 0 {
		cfg.Proxy.MaxAttempts = 3
	}

	// Server defaults
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}

	// Metrics defaults
	if cfg.Metrics.Enabled && cfg.Metrics.Addr == "" {
		cfg.Metrics.Addr = ":9091"
	}

	// Logging defaults
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "console"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}
}
