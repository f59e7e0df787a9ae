package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
fetch:
  timeout: 5s
  max_retries: 3
cache:
  enabled: true
  duration: 2m
registry:
  overrides:
    binance: [XMR]
sources:
  - name: binance
    enabled: true
  - name: kraken
    enabled: false
logging:
  level: debug
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 5*time.Second, cfg.Fetch.Timeout.ToDuration())
	assert.Equal(t, 3, cfg.Fetch.MaxRetries)
	assert.True(t, cfg.Cache.Enabled)
	assert.Equal(t, 2*time.Minute, cfg.Cache.Duration.ToDuration())
	assert.Equal(t, []string{"XMR"}, cfg.Registry.Overrides["binance"])
	assert.Equal(t, "debug", cfg.Logging.Level)

	enabled := cfg.EnabledSources()
	require.Len(t, enabled, 1)
	assert.Equal(t, "binance", enabled[0].Name)

	// Defaults fill the gaps.
	assert.Equal(t, 1*time.Second, cfg.Fetch.RetryDelay.ToDuration())
	assert.Equal(t, "data/blacklist.json", cfg.Registry.Path)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "console", cfg.Logging.Format)
}

func TestLoad_ExpandsEnvironment(t *testing.T) {
	t.Setenv("TEST_PROXY_URL", "http://proxy.example:3128")
	path := writeConfig(t, `
proxy:
  proxies:
    - ${TEST_PROXY_URL}
sources:
  - name: binance
    enabled: true
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Len(t, cfg.Proxy.Proxies, 1)
	assert.Equal(t, "http://proxy.example:3128", cfg.Proxy.Proxies[0])
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.True(t, cfg.Cache.Enabled)
	assert.Equal(t, 60*time.Second, cfg.Cache.Duration.ToDuration())
	assert.Equal(t, 10*time.Second, cfg.Fetch.Timeout.ToDuration())
	assert.NotEmpty(t, cfg.EnabledSources())
	assert.NoError(t, Validate(cfg))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{
			name:    "valid default",
			mutate:  func(*Config) {},
			wantErr: nil,
		},
		{
			name: "no sources",
			mutate: func(c *Config) {
				c.Sources = nil
			},
			wantErr: ErrNoSourcesConfigured,
		},
		{
			name: "all sources disabled",
			mutate: func(c *Config) {
				for i := range c.Sources {
					c.Sources[i].Enabled = false
				}
			},
			wantErr: ErrNoSourcesEnabled,
		},
		{
			name: "duplicate source",
			mutate: func(c *Config) {
				c.Sources = append(c.Sources, c.Sources[0])
			},
			wantErr: ErrDuplicateSourceName,
		},
		{
			name: "unnamed source",
			mutate: func(c *Config) {
				c.Sources[0].Name = ""
			},
			wantErr: ErrSourceNameRequired,
		},
		{
			name: "negative retries",
			mutate: func(c *Config) {
				c.Fetch.MaxRetries = -1
			},
			wantErr: ErrNegativeRetries,
		},
		{
			name: "zero cache duration with cache enabled",
			mutate: func(c *Config) {
				c.Cache.Duration = 0
			},
			wantErr: ErrInvalidCacheDuration,
		},
		{
			name: "bad log level",
			mutate: func(c *Config) {
				c.Logging.Level = "verbose"
			},
			wantErr: ErrInvalidLogLevel,
		},
		{
			name: "bad log format",
			mutate: func(c *Config) {
				c.Logging.Format = "xml"
			},
			wantErr: ErrInvalidLogFormat,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := Validate(cfg)
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestValidate_UnknownSourceName(t *testing.T) {
	SetKnownSources([]string{"binance"})
	t.Cleanup(func() { SetKnownSources(nil) })

	cfg := Default()
	cfg.Sources = []SourceConfig{{Name: "binance", Enabled: true}}
	assert.NoError(t, Validate(cfg))

	cfg.Sources = []SourceConfig{{Name: "mystery", Enabled: true}}
	assert.ErrorIs(t, Validate(cfg), ErrUnknownSourceName)
}
