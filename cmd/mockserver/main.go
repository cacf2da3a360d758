package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/regolo-ai/regoloai-doc/internal/config"
	"github.com/regolo-ai/regoloai-doc/internal/logging"
	"github.com/regolo-ai/regoloai-doc/internal/metrics"
	"github.com/regolo-ai/regoloai-doc/internal/server"
)

const (
	serviceName    = "regolo-mock"
	serviceVersion = "1.0.0"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "", "Path to configuration file (optional)")
	envFile := flag.String("env-file", ".env", "Path to a .env file")
	address := flag.String("address", "", "Listen address (overrides mock.address)")
	port := flag.Int("port", 0, "Listen port (overrides mock.port)")
	token := flag.String("token", "", "Required bearer token (overrides mock.token; empty accepts any request)")
	flag.Parse()

	if err := config.LoadDotEnv(*envFile); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load env file: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if *address != "" {
		cfg.Mock.Address = *address
	}
	if *port != 0 {
		cfg.Mock.Port = *port
	}
	if *token != "" {
		cfg.Mock.Token = *token
	}
	if err := cfg.Mock.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid mock server configuration: %v\n", err)
		os.Exit(1)
	}

	logger, closeLog := logging.New(cfg.Logging, os.Stdout, os.Stderr)
	defer closeLog()

	logger.Info("Service starting",
		slog.String("service", serviceName),
		slog.String("version", serviceVersion),
		slog.String("config_path", *configPath),
		slog.Bool("token_required", cfg.Mock.Token != ""),
	)

	// Initialize Prometheus metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	appMetrics := metrics.NewMetrics(registry)

	httpServer := server.NewHTTPServer(cfg.Mock, logger, appMetrics)
	if err := httpServer.Start(); err != nil {
		logger.Error("Failed to start HTTP server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Setup signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	logger.Info("Service started successfully, waiting for signals...",
		slog.String("base_url", fmt.Sprintf("http://%s/v1", cfg.Mock.GetAddr())),
	)

	sig := <-sigChan
	logger.Info("Received shutdown signal", slog.String("signal", sig.String()))

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := httpServer.Stop(shutdownCtx); err != nil {
		logger.Error("Error stopping HTTP server", slog.String("error", err.Error()))
	}

	counts := httpServer.RequestCounts()
	logger.Info("Final server statistics",
		slog.Uint64("chat_requests", counts["chat"]),
		slog.Uint64("transcription_requests", counts["transcription"]),
		slog.Uint64("image_requests", counts["image"]),
	)

	logger.Info("Service stopped")
}
