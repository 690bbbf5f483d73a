package api

import (
	"log/slog"
	"net/http"

	"github.com/onnwee/replay/internal/auth"
	"github.com/onnwee/replay/internal/idempotency"
	"github.com/onnwee/replay/internal/middleware"
)

// RouterConfig carries everything the HTTP surface needs.
type RouterConfig struct {
	Logger     *slog.Logger
	JWTService *auth.JWTService

	Play       *PlayHandlers
	History    *HistoryHandlers
	Ranking    *RankingHandlers
	Stats      *StatsHandlers
	NowPlaying *NowPlayingHandlers
	Health     *HealthHandlers

	// MetricsHandler serves the Prometheus scrape endpoint.
	MetricsHandler http.Handler

	RateLimitStore middleware.RateLimitStore
	Metrics        *middleware.Metrics

	// IdempotencyRepo enables Idempotency-Key handling on play submission
	// when non-nil, so client retries cannot double-record a play.
	IdempotencyRepo idempotency.Repository

	// AllowedOrigins is the CORS allowlist. Empty disables CORS.
	AllowedOrigins []string

	// ProfilingEnabled exposes /debug/pprof/* in non-production environments.
	ProfilingEnabled bool
	Environment      string
}

// NewRouter builds the route table and wraps it in the shared middleware
// chain: CORS -> RequestID -> Tracing -> Logging -> Profiling -> HTTPMetrics.
// Authentication and rate limits are applied per route.
func NewRouter(cfg RouterConfig) http.Handler {
	mux := http.NewServeMux()

	authed := middleware.RequireAuth(cfg.JWTService)
	ingestLimit := middleware.RateLimiter(cfg.RateLimitStore, middleware.DefaultIngestLimit(), middleware.UserKeyFunc(), cfg.Metrics)
	chartLimit := middleware.RateLimiter(cfg.RateLimitStore, middleware.DefaultChartLimit(), middleware.IPKeyFunc(), cfg.Metrics)

	// Play submission. Per-user rate limit sits inside auth so the limit is
	// keyed by the authenticated user, not the connecting IP.
	var submitPlay http.Handler = http.HandlerFunc(cfg.Play.SubmitPlay)
	if cfg.IdempotencyRepo != nil {
		idem := middleware.IdempotencyMiddleware(cfg.IdempotencyRepo, map[string]bool{"/v1/plays": true})
		submitPlay = idem(submitPlay)
	}
	mux.Handle("POST /v1/plays", authed(ingestLimit(submitPlay)))

	// Per-user reads.
	mux.Handle("GET /v1/users/me/history", authed(http.HandlerFunc(cfg.History.ListHistory)))
	mux.Handle("DELETE /v1/users/me/history", authed(http.HandlerFunc(cfg.History.ClearHistory)))
	mux.Handle("GET /v1/users/me/recent", authed(http.HandlerFunc(cfg.Ranking.RecentSongs)))
	mux.Handle("GET /v1/users/me/top", authed(http.HandlerFunc(cfg.Ranking.TopSongs)))
	mux.Handle("GET /v1/users/me/stats", authed(http.HandlerFunc(cfg.Stats.UserStats)))

	// Public charts, rate limited by IP.
	mux.Handle("GET /v1/charts", chartLimit(http.HandlerFunc(cfg.Ranking.Charts)))

	// Live feed of accepted plays.
	mux.Handle("GET /v1/now-playing/ws", authed(http.HandlerFunc(cfg.NowPlaying.Subscribe)))

	// Probes and metrics.
	mux.HandleFunc("GET /health", cfg.Health.Health)
	mux.HandleFunc("GET /ready", cfg.Health.Ready)
	if cfg.MetricsHandler != nil {
		mux.Handle("GET /metrics", cfg.MetricsHandler)
	}

	// Root service descriptor; everything unmatched is a structured 404.
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeNotFound)
			WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "The requested resource was not found")
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{
			"service": "replay-api",
			"version": "0.1.0",
		})
	})

	handler := middleware.HTTPMetrics(cfg.Metrics)(mux)
	handler = middleware.Profiling(middleware.ProfilingConfig{
		Enabled:     cfg.ProfilingEnabled,
		Environment: cfg.Environment,
	})(handler)
	handler = middleware.Logging(cfg.Logger)(handler)
	handler = middleware.Tracing("replay-api")(handler)
	handler = middleware.RequestID(handler)
	return middleware.CORS(middleware.CORSConfig{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization", "X-Request-ID", "Idempotency-Key"},
		AllowCredentials: true,
		MaxAge:           300,
	})(handler)
}
