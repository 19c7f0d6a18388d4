package main

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"consent/internal/config"
)

func TestParseLogLevel(t *testing.T) {
	require.Equal(t, slog.LevelDebug, parseLogLevel("debug"))
	require.Equal(t, slog.LevelWarn, parseLogLevel("warn"))
	require.Equal(t, slog.LevelError, parseLogLevel("error"))
	require.Equal(t, slog.LevelInfo, parseLogLevel("loud"))
}

func TestVersionCommand(t *testing.T) {
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"version"})

	require.NoError(t, cmd.Execute())
	require.Equal(t, version+"\n", out.String())
}

func TestFlagsOverrideOnlyWhenSet(t *testing.T) {
	cmd := newRootCmd()
	require.NoError(t, cmd.ParseFlags([]string{"--port", "9999", "--log-format", "json"}))

	var flags serveFlags
	flags.port = "9999"
	flags.logFormat = "json"

	cfg := &config.Config{
		Server:  config.ServerConfig{Port: "8080", Host: "0.0.0.0"},
		Logging: config.LoggingConfig{Level: "info", Format: "text"},
	}
	flags.apply(cmd, cfg)

	require.Equal(t, "9999", cfg.Server.Port)
	require.Equal(t, "0.0.0.0", cfg.Server.Host)
	require.Equal(t, "info", cfg.Logging.Level)
	require.Equal(t, "json", cfg.Logging.Format)
}

func TestRejectsInvalidConfig(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("LOG_FORMAT", "xml")

	cmd := newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"serve"})

	require.ErrorContains(t, cmd.Execute(), "invalid configuration")
}
