// Package config provides configuration loading and validation for the
// price aggregation service.
package config

import "errors"

var (
	// ErrNoSourcesConfigured indicates that no price sources are configured.
	ErrNoSourcesConfigured = errors.New("at least one price source must be configured")
	// ErrNoSourcesEnabled indicates that no sources are enabled.
	ErrNoSourcesEnabled = errors.New("no sources enabled")
	// ErrSourceNameRequired indicates that source name is required.
	ErrSourceNameRequired = errors.New("source name is required")
	// ErrUnknownSourceName indicates that the source name matches no registered factory.
	ErrUnknownSourceName = errors.New("unknown source name")
	// ErrDuplicateSourceName indicates that a source name appears more than once.
	ErrDuplicateSourceName = errors.New("duplicate source name")
	// ErrNegativeRetries indicates that max_retries must be >= 0.
	ErrNegativeRetries = errors.New("max_retries must be >= 0")
	// ErrInvalidTimeout indicates that the fetch timeout must be positive.
	ErrInvalidTimeout = errors.New("fetch timeout must be positive")
	// ErrInvalidCacheDuration indicates that the cache duration must be positive.
	ErrInvalidCacheDuration = errors.New("cache duration must be positive")
	// ErrInvalidProxyAttempts indicates that proxy max_attempts must be >= 1.
	ErrInvalidProxyAttempts = errors.New("proxy max_attempts must be >= 1")
	// ErrInvalidLogLevel indicates that the log level is invalid.
	ErrInvalidLogLevel = errors.New("invalid log level")
	// ErrInvalidLogFormat indicates that the log format is invalid.
	ErrInvalidLogFormat = errors.New("invalid log format")
)
