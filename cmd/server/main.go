package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"consent/internal/app"
	"consent/internal/config"
	"consent/internal/metrics"
	httpTransport "consent/internal/transport/http"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

const shutdownTimeout = 30 * time.Second

// serveFlags are command line overrides, applied over env and file config
type serveFlags struct {
	configPath string
	port       string
	host       string
	logLevel   string
	logFormat  string
}

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var flags serveFlags

	serve := func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(flags.configPath)
		if err != nil {
			return err
		}
		flags.apply(cmd, cfg)
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
		return run(cmd.Context(), cfg)
	}

	rootCmd := &cobra.Command{
		Use:          "consent",
		Short:        "Sociocratic election server",
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE:         serve,
	}

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the election server (default)",
		Args:  cobra.NoArgs,
		RunE:  serve,
	}

	for _, cmd := range []*cobra.Command{rootCmd, serveCmd} {
		cmd.Flags().StringVar(&flags.configPath, "config", "", "path to a TOML config file (default $"+config.EnvConfigPath+")")
		cmd.Flags().StringVar(&flags.port, "port", "", "listen port (default $PORT or 8080)")
		cmd.Flags().StringVar(&flags.host, "host", "", "listen host (default $HOST or 0.0.0.0)")
		cmd.Flags().StringVar(&flags.logLevel, "log-level", "", "debug, info, warn or error")
		cmd.Flags().StringVar(&flags.logFormat, "log-format", "", "text or json")
	}

	rootCmd.AddCommand(serveCmd, &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	})

	return rootCmd
}

// apply copies the flags the user actually set onto cfg
func (f *serveFlags) apply(cmd *cobra.Command, cfg *config.Config) {
	if cmd.Flags().Changed("port") {
		cfg.Server.Port = f.port
	}
	if cmd.Flags().Changed("host") {
		cfg.Server.Host = f.host
	}
	if cmd.Flags().Changed("log-level") {
		cfg.Logging.Level = f.logLevel
	}
	if cmd.Flags().Changed("log-format") {
		cfg.Logging.Format = f.logFormat
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	logger := newLogger(cfg.Logging)
	slog.SetDefault(logger)

	logger.Info("starting consent election server",
		"version", version,
		"env", cfg.Server.Env,
		"port", cfg.Server.Port,
	)

	metrics.Register()

	// Create election hub
	hub := app.NewElectionHub(app.HubOptions{
		IDLength:         cfg.Election.IDLength,
		MaxElections:     cfg.Election.MaxElections,
		SubscriberBuffer: cfg.Election.SubscriberBuffer,
		IdleTimeout:      cfg.Election.IdleTimeout,
	}, logger)
	defer hub.Close()

	server := httpTransport.NewServer(cfg, hub, logger)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server...")

		// Graceful shutdown with timeout
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		// Ends event streams so Shutdown does not wait on them
		hub.Close()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("server forced to shutdown", "error", err)
			return err
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}

	logger.Info("server stopped")
	return nil
}

func newLogger(cfg config.LoggingConfig) *slog.Logger {
	logOpts := &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Level),
	}

	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, logOpts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, logOpts))
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
