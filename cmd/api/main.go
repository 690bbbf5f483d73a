// Package main is the entry point for the API server.
package main

import (
	"context"
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
	"github.com/redis/go-redis/v9"

	"github.com/onnwee/replay/internal/api"
	"github.com/onnwee/replay/internal/archive"
	"github.com/onnwee/replay/internal/auth"
	"github.com/onnwee/replay/internal/config"
	"github.com/onnwee/replay/internal/db"
	"github.com/onnwee/replay/internal/health"
	"github.com/onnwee/replay/internal/history"
	"github.com/onnwee/replay/internal/idempotency"
	"github.com/onnwee/replay/internal/jobs"
	"github.com/onnwee/replay/internal/middleware"
	"github.com/onnwee/replay/internal/play"
	"github.com/onnwee/replay/internal/ranking"
	"github.com/onnwee/replay/internal/recency"
	"github.com/onnwee/replay/internal/stats"
	"github.com/onnwee/replay/internal/tracing"
)

// recomputeInterval is how often derived views are rebuilt from history to
// shed any drift accumulated from best-effort updates.
const recomputeInterval = time.Hour

func main() {
	configPath := flag.String("config", "", "path to optional YAML config file")
	help := flag.Bool("help", false, "display help message")
	flag.Parse()

	if *help {
		fmt.Println("Replay API Server")
		fmt.Println()
		fmt.Println("Usage: api [options]")
		fmt.Println()
		fmt.Println("Options:")
		flag.PrintDefaults()
		os.Exit(0)
	}

	cfg, errs := config.Load(*configPath)
	logger := middleware.NewLogger(envOrDefault(cfg))
	slog.SetDefault(logger)

	if len(errs) > 0 {
		for _, err := range errs {
			logger.Error("configuration error", "error", err)
		}
		os.Exit(1)
	}
	logger.Info("configuration loaded", "config", cfg.LogSummary())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Tracing.
	tracerProvider, err := tracing.NewProvider(tracing.Config{
		ServiceName:  "replay-api",
		Enabled:      cfg.TracingEnabled,
		Environment:  cfg.Env,
		ExporterType: cfg.TracingExporter,
		OTLPEndpoint: cfg.TracingEndpoint,
		SamplingRate: cfg.TracingSampleRate,
		InsecureMode: cfg.Env != "production",
	})
	if err != nil {
		logger.Error("failed to initialize tracing", "error", err)
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
			logger.Error("tracer shutdown failed", "error", err)
		}
	}()

	// Metrics registry.
	registry := prometheus.NewRegistry()
	httpMetrics := middleware.NewMetrics()
	playMetrics := play.NewMetrics()
	jobMetrics := jobs.NewMetrics()
	for name, reg := range map[string]interface {
		Register(prometheus.Registerer) error
	}{
		"http": httpMetrics,
		"play": playMetrics,
		"jobs": jobMetrics,
	} {
		if err := reg.Register(registry); err != nil {
			logger.Error("failed to register metrics", "group", name, "error", err)
			os.Exit(1)
		}
	}

	// Database.
	conn, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer conn.Close()
	store := history.NewPostgresStore(conn, logger)

	// Redis is optional: without it the recency index and rate limits fall
	// back to in-memory implementations (single-instance deployments only).
	var (
		redisClient  *redis.Client
		recencyIndex recency.Index
		rateStore    middleware.RateLimitStore
		redisChecker api.HealthChecker
	)
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Error("invalid REDIS_URL", "error", err)
			os.Exit(1)
		}
		redisClient = redis.NewClient(opts)
		defer redisClient.Close()
		recencyIndex = recency.NewRedisIndex(redisClient)
		rateStore = middleware.NewRedisRateLimitStore(redisClient)
		redisChecker = health.NewRedisChecker(redisClient)
		logger.Info("redis connected", "recency", "redis", "ratelimit", "redis")
	} else {
		recencyIndex = recency.NewInMemoryIndex()
		rateStore = middleware.NewInMemoryRateLimitStore()
		logger.Warn("REDIS_URL not set; using in-memory recency index and rate limits")
	}

	// Derived views fed by the recorder.
	counters := ranking.NewCounters()
	statsAgg := stats.NewAggregator()
	broadcaster := play.NewBroadcaster()
	views := []play.DerivedView{recencyIndex, counters, statsAgg, broadcaster}

	recorder := play.NewRecorder(store, views, cfg.MinPlaySeconds, logger, play.WithMetrics(playMetrics))

	// Cleared-history archival to object storage, if configured.
	var archiver play.Archiver
	if cfg.ArchiveEnabled() {
		exporter, err := archive.NewExporter(archive.ExporterConfig{
			BucketName:      cfg.ArchiveBucketName,
			AccessKeyID:     cfg.ArchiveAccessKeyID,
			SecretAccessKey: cfg.ArchiveSecretAccessKey,
			Endpoint:        cfg.ArchiveEndpoint,
		})
		if err != nil {
			logger.Error("failed to initialize archive exporter", "error", err)
			os.Exit(1)
		}
		archiver = exporter
		logger.Info("history archival enabled", "bucket", cfg.ArchiveBucketName)
	}
	clearer := play.NewClearService(store, views, archiver, logger, playMetrics)

	// In-memory views start empty on boot; rebuild them from history before
	// serving, then keep them honest on an interval.
	recomputer := jobs.NewRecomputer(store, []jobs.ResettableView{recencyIndex, counters, statsAgg}, logger, jobMetrics)
	if err := recomputer.Run(ctx); err != nil {
		logger.Error("initial view recompute failed", "error", err)
		os.Exit(1)
	}
	go recomputer.RunEvery(ctx, recomputeInterval)

	currentSecret, previousSecret := cfg.GetJWTSecrets()
	jwtService := auth.NewJWTServiceWithRotation(currentSecret, previousSecret)

	// Idempotency keys let clients retry play submissions safely.
	idemRepo := idempotency.NewInMemoryRepository()
	idemStop := make(chan struct{})
	defer close(idemStop)
	go idempotency.RunPeriodicCleanup(idemRepo, time.Hour, idempotency.DefaultExpiry, idemStop)

	handler := api.NewRouter(api.RouterConfig{
		Logger:     logger,
		JWTService: jwtService,
		Play:       api.NewPlayHandlers(recorder),
		History:    api.NewHistoryHandlers(store, clearer),
		Ranking:    api.NewRankingHandlers(counters, recencyIndex),
		Stats:      api.NewStatsHandlers(statsAgg),
		NowPlaying: api.NewNowPlayingHandlers(broadcaster),
		Health: api.NewHealthHandlers(api.HealthHandlersConfig{
			DBChecker:      health.NewDBChecker(conn),
			RedisChecker:   redisChecker,
			MetricsEnabled: true,
		}),
		MetricsHandler:   promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		RateLimitStore:   rateStore,
		Metrics:          httpMetrics,
		IdempotencyRepo:  idemRepo,
		AllowedOrigins:   cfg.AllowedOrigins,
		ProfilingEnabled: cfg.ProfilingEnabled,
		Environment:      cfg.Env,
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("starting server", "port", cfg.Port, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}

// envOrDefault returns the configured environment even when config loading
// failed, so startup errors are still logged in the right format.
func envOrDefault(cfg *config.Config) string {
	if cfg == nil || cfg.Env == "" {
		return config.DefaultEnv
	}
	return cfg.Env
}
