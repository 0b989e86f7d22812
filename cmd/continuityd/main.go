// Continuityd is the memory and context continuity daemon.
//
// It serves the sync, retrieval, and context-bridge HTTP API backed by a
// local SQLite store. All authenticated routes require an API key issued
// with the continuity admin CLI.
//
// Usage:
//
//	# Start with defaults (config at ~/.config/continuityd/config.yaml)
//	continuityd
//
//	# Explicit config file
//	continuityd -config /etc/continuityd/config.yaml
//
//	# Configure via environment
//	CONTINUITYD_SERVER_PORT=9191 continuityd
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/continuityd/internal/apikey"
	"github.com/fyrsmithlabs/continuityd/internal/bridge"
	"github.com/fyrsmithlabs/continuityd/internal/config"
	"github.com/fyrsmithlabs/continuityd/internal/logging"
	"github.com/fyrsmithlabs/continuityd/internal/quota"
	"github.com/fyrsmithlabs/continuityd/internal/server"
	"github.com/fyrsmithlabs/continuityd/internal/store"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()
	args := flag.Args()

	if len(args) > 0 {
		switch args[0] {
		case "version":
			printVersion()
			os.Exit(0)
		default:
			fmt.Fprintf(os.Stderr, "Unknown command: %s\n", args[0])
			fmt.Fprintf(os.Stderr, "\nUsage:\n")
			fmt.Fprintf(os.Stderr, "  continuityd           Start the continuity daemon\n")
			fmt.Fprintf(os.Stderr, "  continuityd version   Show version information\n")
			os.Exit(1)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		log.Printf("Received signal %v, shutting down gracefully...", sig)
		cancel()
	}()

	if err := run(ctx, *configPath); err != nil {
		log.Fatalf("Server error: %v", err)
	}

	log.Println("Server shutdown complete")
}

func printVersion() {
	fmt.Printf("continuityd by Fyrsmith Labs\n")
	fmt.Printf("Version:    %s\n", version)
	fmt.Printf("Commit:     %s\n", gitCommit)
	fmt.Printf("Build Date: %s\n", buildDate)
}

// run starts the continuityd server and blocks until the context is
// cancelled.
//
// This function initializes all dependencies and services:
//  1. Loads and validates configuration
//  2. Initializes the structured logger
//  3. Opens the SQLite store and runs migrations
//  4. Creates the credential, quota, and context-bridge services
//  5. Wires the HTTP gateway and metrics endpoint
//  6. Performs graceful shutdown on context cancellation
func run(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err := logging.NewLogger(&logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Fields: map[string]string{"service": "continuityd"},
	})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() {
		_ = logging.Sync(logger)
	}()

	logger.Info("Starting continuityd",
		zap.String("version", version),
		zap.Int("port", cfg.Server.Port),
		zap.String("storage_path", cfg.Storage.Path),
		zap.Duration("shutdown_timeout", cfg.Server.ShutdownTimeout))

	st, err := store.Open(store.Options{Path: cfg.Storage.Path}, logger)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer func() {
		_ = st.Close()
	}()

	keys, err := apikey.NewService(st, logger)
	if err != nil {
		return fmt.Errorf("failed to create credential service: %w", err)
	}

	enforcer, err := quota.NewEnforcer(&quota.Config{
		BaseTierMemoryLimit: cfg.Quota.BaseTierMemoryLimit,
	}, st, logger)
	if err != nil {
		return fmt.Errorf("failed to create quota enforcer: %w", err)
	}

	br, err := bridge.NewService(st, logger)
	if err != nil {
		return fmt.Errorf("failed to create bridge service: %w", err)
	}

	srv, err := server.NewServer(st, keys, enforcer, br, logger, &server.Config{
		Host:             cfg.Server.Host,
		Port:             cfg.Server.Port,
		RateLimitEnabled: cfg.RateLimit.Enabled,
		RateLimitRPS:     cfg.RateLimit.RPS,
		RateLimitBurst:   cfg.RateLimit.Burst,
	})
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	srv.Echo().GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	logger.Info("Server configured",
		zap.String("health_endpoint", fmt.Sprintf("http://%s:%d/api/health", cfg.Server.Host, cfg.Server.Port)),
		zap.String("metrics_endpoint", "/metrics"))

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}
	return nil
}
