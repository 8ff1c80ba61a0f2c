/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Seednode/scavenger/hunt"
)

func validConfig() *Config {
	return &Config{
		bind:           "127.0.0.1",
		port:           8080,
		duration:       hunt.DefaultDuration,
		sessionTimeout: time.Hour,
		shuffle:        false,
		catalog:        hunt.DefaultCatalog(),
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{name: "defaults", mutate: func(c *Config) {}},
		{name: "tls pair", mutate: func(c *Config) { c.tlsCert, c.tlsKey = "cert.pem", "key.pem" }},
		{name: "cert without key", mutate: func(c *Config) { c.tlsCert = "cert.pem" }, wantErr: true},
		{name: "key without cert", mutate: func(c *Config) { c.tlsKey = "key.pem" }, wantErr: true},
		{name: "port zero", mutate: func(c *Config) { c.port = 0 }, wantErr: true},
		{name: "port too high", mutate: func(c *Config) { c.port = 65536 }, wantErr: true},
		{name: "short duration", mutate: func(c *Config) { c.duration = 500 * time.Millisecond }, wantErr: true},
		{name: "fractional duration", mutate: func(c *Config) { c.duration = 1500 * time.Millisecond }, wantErr: true},
		{name: "one second", mutate: func(c *Config) { c.duration = time.Second }},
		{name: "negative session timeout", mutate: func(c *Config) { c.sessionTimeout = -time.Second }, wantErr: true},
		{name: "no session timeout", mutate: func(c *Config) { c.sessionTimeout = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConfig_LoadCatalog(t *testing.T) {
	t.Run("built-in", func(t *testing.T) {
		cfg := &Config{}
		require.NoError(t, cfg.loadCatalog())
		assert.Equal(t, hunt.DefaultCatalog(), cfg.catalog)
	})

	t.Run("from file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "catalog.yaml")
		require.NoError(t, os.WriteFile(path, []byte(`items:
  - id: bench
    name: Park bench
    points: 10
  - id: fountain
    name: Drinking fountain
    reference_image: /images/fountain.jpg
    points: 40
`), 0o600))

		cfg := &Config{catalogPath: path}
		require.NoError(t, cfg.loadCatalog())
		require.Len(t, cfg.catalog.Items, 2)
		assert.Equal(t, "fountain", cfg.catalog.Items[1].ID)
		assert.Equal(t, 40, cfg.catalog.Items[1].Points)
	})

	t.Run("shipped example", func(t *testing.T) {
		cfg := &Config{catalogPath: "catalog.example.yaml"}
		require.NoError(t, cfg.loadCatalog())
		assert.Len(t, cfg.catalog.Items, 3)
	})

	t.Run("missing file", func(t *testing.T) {
		cfg := &Config{catalogPath: filepath.Join(t.TempDir(), "nope.yaml")}
		assert.Error(t, cfg.loadCatalog())
	})
}

func TestConfig_SchemeAndLogLevel(t *testing.T) {
	cfg := validConfig()
	assert.Equal(t, "http", cfg.scheme())
	assert.Equal(t, zerolog.InfoLevel, cfg.logLevel())

	cfg.tlsCert, cfg.tlsKey = "cert.pem", "key.pem"
	cfg.verbose = true
	assert.Equal(t, "https", cfg.scheme())
	assert.Equal(t, zerolog.DebugLevel, cfg.logLevel())
}

func TestNewCmd_Defaults(t *testing.T) {
	cfg := &Config{}
	_ = newCmd(cfg)

	assert.Equal(t, "0.0.0.0", cfg.bind)
	assert.Equal(t, 8080, cfg.port)
	assert.Equal(t, hunt.DefaultDuration, cfg.duration)
	assert.Equal(t, 2*time.Hour, cfg.sessionTimeout)
	assert.True(t, cfg.shuffle)
	assert.False(t, cfg.metrics)
}

func TestNewCmd_Environment(t *testing.T) {
	t.Setenv("SCAVENGER_PORT", "9090")
	t.Setenv("SCAVENGER_DURATION", "10m")
	t.Setenv("SCAVENGER_SHUFFLE", "false")

	cfg := &Config{}
	_ = newCmd(cfg)

	assert.Equal(t, 9090, cfg.port)
	assert.Equal(t, 10*time.Minute, cfg.duration)
	assert.False(t, cfg.shuffle)
}

func TestNewCmd_Flags(t *testing.T) {
	cfg := &Config{}
	cmd := newCmd(cfg)

	require.NoError(t, cmd.ParseFlags([]string{"--port", "7000", "--session_timeout", "5m", "--metrics"}))

	assert.Equal(t, 7000, cfg.port)
	assert.Equal(t, 5*time.Minute, cfg.sessionTimeout)
	assert.True(t, cfg.metrics)
}
