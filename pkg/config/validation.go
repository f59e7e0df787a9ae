package config

import (
	"fmt"
	"strings"
)

// knownSourceNames is set by the main package from the source factory
// registry so validation can reject names with no factory. Left nil,
// source name checks are skipped.
var knownSourceNames map[string]bool

// SetKnownSources installs the set of registered source names. A nil
// slice disables the check.
func SetKnownSources(names []string) {
	if names == nil {
		knownSourceNames = nil
		return
	}
	knownSourceNames = make(map[string]bool, len(names))
	for _, n := range names {
		knownSourceNames[n] = true
	}
}

// Validate checks configuration for errors
func Validate(cfg *Config) error {
	if err := validateFetchConfig(&cfg.Fetch); err != nil {
		return fmt.Errorf("fetch config: %w", err)
	}

	if cfg.Cache.Enabled && cfg.Cache.Duration.ToDuration() <= 0 {
		return fmt.Errorf("cache config: %w", ErrInvalidCacheDuration)
	}

	if len(cfg.Proxy.Proxies) > 0 && cfg.Proxy.MaxAttempts < 1 {
		return fmt.Errorf("proxy config: %w", ErrInvalidProxyAttempts)
	}

	if err := validateSources(cfg.Sources); err != nil {
		return err
	}

	if err := validateLoggingConfig(&cfg.Logging); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	return nil
}

func validateFetchConfig(cfg *FetchConfig) error {
	if cfg.Timeout.ToDuration() <= 0 {
		return ErrInvalidTimeout
	}
	if cfg.MaxRetries < 0 {
		return ErrNegativeRetries
	}
	return nil
}

func validateSources(srcs []SourceConfig) error {
	if len(srcs) == 0 {
		return ErrNoSourcesConfigured
	}

	seen := make(map[string]bool, len(srcs))
	enabled := 0
	for i, src := range srcs {
		if src.Name == "" {
			return fmt.Errorf("source %d: %w", i, ErrSourceNameRequired)
		}
		if seen[src.Name] {
			return fmt.Errorf("source %d: %w: %s", i, ErrDuplicateSourceName, src.Name)
		}
		seen[src.Name] = true

		if knownSourceNames != nil && !knownSourceNames[src.Name] {
			return fmt.Errorf("source %d: %w: %s", i, ErrUnknownSourceName, src.Name)
		}
		if src.Enabled {
			enabled++
		}
	}
	if enabled == 0 {
		return ErrNoSourcesEnabled
	}
	return nil
}

func validateLoggingConfig(cfg *LoggingConfig) error {
	switch strings.ToLower(cfg.Level) {
	case "trace", "debug", "info", "warn", "error", "fatal":
	default:
		return fmt.Errorf("%w: %s", ErrInvalidLogLevel, cfg.Level)
	}

	switch strings.ToLower(cfg.Format) {
	case "json", "console":
	default:
		return fmt.Errorf("%w: %s", ErrInvalidLogFormat, cfg.Format)
	}

	return nil
}
