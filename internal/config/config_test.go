package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

// unsetEnv clears key for the duration of the test
func unsetEnv(t *testing.T, key string) {
	t.Helper()
	t.Setenv(key, "")
	require.NoError(t, os.Unsetenv(key))
}

func TestDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "HOST", "ENV", "LOG_LEVEL", "LOG_FORMAT", "KEEP_ALIVE_SECONDS", EnvConfigPath} {
		unsetEnv(t, key)
	}
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	require.Equal(t, "0.0.0.0:8080", cfg.GetAddr())
	require.True(t, cfg.IsDevelopment())
	require.Equal(t, 16, cfg.Election.IDLength)
	require.Equal(t, 10*time.Minute, cfg.Election.KeepAlive)
	require.Zero(t, cfg.Election.IdleTimeout)
	require.Equal(t, "text", cfg.Logging.Format)
}

func TestEnvOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	unsetEnv(t, EnvConfigPath)
	t.Setenv("PORT", "9000")
	t.Setenv("ENV", "production")
	t.Setenv("MAX_ELECTIONS", "5")
	t.Setenv("KEEP_ALIVE_SECONDS", "30")
	t.Setenv("SUBSCRIBER_BUFFER", "not-a-number")

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "9000", cfg.Server.Port)
	require.False(t, cfg.IsDevelopment())
	require.Equal(t, 5, cfg.Election.MaxElections)
	require.Equal(t, 30*time.Second, cfg.Election.KeepAlive)
	require.Equal(t, 16, cfg.Election.SubscriberBuffer, "malformed value falls back to default")
}

func TestDotEnv(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, ".env", "MAX_ELECTIONS=7\n")
	t.Chdir(dir)
	unsetEnv(t, "MAX_ELECTIONS")
	unsetEnv(t, EnvConfigPath)

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, 7, cfg.Election.MaxElections)
}

func TestFileOverridesOnlyDefinedKeys(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("HOST", "127.0.0.1")
	t.Setenv("PORT", "9000")

	path := writeFile(t, t.TempDir(), "consent.toml", `
port = "7000"
log_format = "json"
keep_alive = "45s"
idle_timeout = "2h"
max_elections = 100
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "127.0.0.1:7000", cfg.GetAddr())
	require.Equal(t, "json", cfg.Logging.Format)
	require.Equal(t, 45*time.Second, cfg.Election.KeepAlive)
	require.Equal(t, 2*time.Hour, cfg.Election.IdleTimeout)
	require.Equal(t, 100, cfg.Election.MaxElections)
}

func TestFileFromEnvVar(t *testing.T) {
	t.Chdir(t.TempDir())
	path := writeFile(t, t.TempDir(), "consent.toml", `subscriber_buffer = 64`)
	t.Setenv(EnvConfigPath, path)

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, 64, cfg.Election.SubscriberBuffer)
}

func TestFileErrors(t *testing.T) {
	t.Chdir(t.TempDir())
	dir := t.TempDir()

	_, err := Load(filepath.Join(dir, "missing.toml"))
	require.Error(t, err)

	_, err = Load(writeFile(t, dir, "bad.toml", `keep_alive = "soon"`))
	require.ErrorContains(t, err, "keep_alive")

	_, err = Load(writeFile(t, dir, "broken.toml", `port = `))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"defaults", func(*Config) {}, true},
		{"json logs", func(c *Config) { c.Logging.Format = "json" }, true},
		{"unknown log format", func(c *Config) { c.Logging.Format = "xml" }, false},
		{"empty port", func(c *Config) { c.Server.Port = "" }, false},
		{"short ids", func(c *Config) { c.Election.IDLength = 4 }, false},
		{"negative limit", func(c *Config) { c.Election.MaxElections = -1 }, false},
		{"zero buffer", func(c *Config) { c.Election.SubscriberBuffer = 0 }, false},
		{"zero keep-alive", func(c *Config) { c.Election.KeepAlive = 0 }, false},
		{"negative idle timeout", func(c *Config) { c.Election.IdleTimeout = -time.Second }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{
				Server:   ServerConfig{Port: "8080", Host: "0.0.0.0", Env: "development"},
				Election: ElectionConfig{IDLength: 16, SubscriberBuffer: 16, KeepAlive: time.Minute},
				Logging:  LoggingConfig{Level: "info", Format: "text"},
			}
			tt.mutate(cfg)
			if tt.ok {
				require.NoError(t, cfg.Validate())
			} else {
				require.Error(t, cfg.Validate())
			}
		})
	}
}
