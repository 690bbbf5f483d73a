// Package main is the entry point for the firehose ingest daemon.
//
// It consumes playback signals from the gateway firehose, tracks listening
// sessions per (user, context) and records finalized plays into the shared
// history database. Derived views live in the API process and catch up via
// its periodic recompute.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/onnwee/replay/internal/config"
	"github.com/onnwee/replay/internal/db"
	"github.com/onnwee/replay/internal/history"
	"github.com/onnwee/replay/internal/ingest"
	"github.com/onnwee/replay/internal/middleware"
	"github.com/onnwee/replay/internal/play"
	"github.com/onnwee/replay/internal/session"
	"github.com/onnwee/replay/internal/validate"
)

func main() {
	configPath := flag.String("config", "", "path to optional YAML config file")
	help := flag.Bool("help", false, "display help message")
	flag.Parse()

	if *help {
		fmt.Println("Replay Firehose Ingest Daemon")
		fmt.Println()
		fmt.Println("Usage: ingest [options]")
		fmt.Println()
		fmt.Println("Options:")
		flag.PrintDefaults()
		os.Exit(0)
	}

	cfg, errs := config.Load(*configPath)
	env := config.DefaultEnv
	if cfg != nil && cfg.Env != "" {
		env = cfg.Env
	}
	logger := middleware.NewLogger(env)
	slog.SetDefault(logger)

	if cfg == nil {
		for _, err := range errs {
			logger.Error("configuration error", "error", err)
		}
		os.Exit(1)
	}

	// The ingest daemon does not need JWT or archive settings; only surface
	// errors for the values it actually uses.
	for _, err := range errs {
		if errors.Is(err, config.ErrMissingDatabaseURL) {
			logger.Error("configuration error", "error", err)
			os.Exit(1)
		}
	}
	if cfg.FirehoseURL == "" {
		logger.Error("configuration error", "error", "FIREHOSE_URL is required")
		os.Exit(1)
	}
	firehoseURL, err := validate.FirehoseURL(cfg.FirehoseURL)
	if err != nil {
		logger.Error("invalid FIREHOSE_URL", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	conn, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer conn.Close()

	registry := prometheus.NewRegistry()
	playMetrics := play.NewMetrics()
	ingestMetrics := ingest.NewMetrics()
	if err := playMetrics.Register(registry); err != nil {
		logger.Error("failed to register play metrics", "error", err)
		os.Exit(1)
	}
	if err := ingestMetrics.Register(registry); err != nil {
		logger.Error("failed to register ingest metrics", "error", err)
		os.Exit(1)
	}

	store := history.NewPostgresStore(conn, logger)
	recorder := play.NewRecorder(store, nil, cfg.MinPlaySeconds, logger, play.WithMetrics(playMetrics))
	seq := ingest.NewPostgresSequenceTracker(conn, logger)

	handler := ingest.NewHandler(recorder, seq, logger,
		ingest.WithHandlerMetrics(ingestMetrics),
		ingest.WithTrackerOptions(
			session.WithMinPlay(time.Duration(cfg.MinPlaySeconds)*time.Second),
			session.WithDebounce(time.Duration(cfg.DebounceMillis)*time.Millisecond),
		),
	)
	defer handler.Close()

	client, err := ingest.NewClient(ingest.DefaultConfig(firehoseURL), handler.HandleFrame, logger)
	if err != nil {
		logger.Error("failed to create firehose client", "error", err)
		os.Exit(1)
	}

	// Metrics and liveness on the service port.
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		status := `{"status":"healthy","connected":false}`
		if client.IsConnected() {
			status = `{"status":"healthy","connected":true}`
		}
		if _, err := w.Write([]byte(status)); err != nil {
			logger.Error("failed to write health response", "error", err)
		}
	})
	metricsServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("starting ingest metrics server", "port", cfg.Port)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server error", "error", err)
		}
	}()

	logger.Info("starting firehose ingest",
		"firehose_url", firehoseURL,
		"min_play_seconds", cfg.MinPlaySeconds,
		"debounce_millis", cfg.DebounceMillis)

	if err := client.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("firehose client stopped", "error", err)
	}

	logger.Info("shutting down ingest daemon...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("metrics server forced to shutdown", "error", err)
	}

	// handler.Close (deferred) drains pending session flushes before exit.
	logger.Info("ingest daemon stopped")
}
