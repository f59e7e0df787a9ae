package config

import "time"

// Config is the root configuration structure
type Config struct {
	Fetch    FetchConfig    `yaml:"fetch"`
	Cache    CacheConfig    `yaml:"cache"`
	Registry RegistryConfig `yaml:"registry"`
	Proxy    ProxyConfig    `yaml:"proxy"`
	Sources  []SourceConfig `yaml:"sources"`
	Server   ServerConfig   `yaml:"server"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// FetchConfig configures outbound requests to the price venues
type FetchConfig struct {
	Timeout    Duration `yaml:"timeout"`     // per-request timeout
	MaxRetries int      `yaml:"max_retries"` // direct-connection retries before proxies
	RetryDelay Duration `yaml:"retry_delay"` // linear backoff step between retries
}

// CacheConfig configures the persistent price cache
type CacheConfig struct {
	Enabled  bool     `yaml:"enabled"`
	Path     string   `yaml:"path"`
	Duration Duration `yaml:"duration"` // validity window for cached results
}

// RegistryConfig configures the unsupported-pair registry
type RegistryConfig struct {
	Path      string              `yaml:"path"`
	Overrides map[string][]string `yaml:"overrides"` // source -> tickers always blacklisted
}

// ProxyConfig configures the outbound proxy pool
type ProxyConfig struct {
	Proxies        []string `yaml:"proxies"`
	MaxAttempts    int      `yaml:"max_attempts"` // proxy attempts after direct retries fail
	HealthCheckURL string   `yaml:"health_check_url"`
}

// SourceConfig configures a price source
type SourceConfig struct {
	Name    string                 `yaml:"name"`
	Enabled bool                   `yaml:"enabled"`
	Config  map[string]interface{} `yaml:"config"`
}

// ServerConfig configures the HTTP API server
type ServerConfig struct {
	Addr            string   `yaml:"addr"`
	RefreshInterval Duration `yaml:"refresh_interval"` // 0 disables the background refresh loop
	RefreshTickers  []string `yaml:"refresh_tickers"`
}

// MetricsConfig configures Prometheus metrics
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// LoggingConfig configures logging
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Duration is a wrapper around time.Duration for YAML parsing
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler
func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	td, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(td)
	return nil
}

// ToDuration converts Duration to time.Duration
func (d Duration) ToDuration() time.Duration {
	return time.Duration(d)
}

// EnabledSources returns the enabled sources in configuration order.
func (c *Config) EnabledSources() []SourceConfig {
	var out []SourceConfig
	for _, s := range c.Sources {
		if s.Enabled {
			out = append(out, s)
		}
	}
	return out
}
