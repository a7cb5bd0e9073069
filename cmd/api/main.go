// Package main is the entry point for the AgriNet forum API server.
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

	"github.com/agrinet-collective/agrinet/internal/api"
	"github.com/agrinet-collective/agrinet/internal/auth"
	"github.com/agrinet-collective/agrinet/internal/config"
	"github.com/agrinet-collective/agrinet/internal/db"
	"github.com/agrinet-collective/agrinet/internal/health"
	"github.com/agrinet-collective/agrinet/internal/knowledge"
	"github.com/agrinet-collective/agrinet/internal/middleware"
	"github.com/agrinet-collective/agrinet/internal/tracing"
)

func main() {
	help := flag.Bool("help", false, "display help message")
	configPath := flag.String("config", "", "path to optional YAML config file")
	flag.Parse()

	if *help {
		fmt.Println("AgriNet Forum API Server")
		fmt.Println()
		fmt.Println("Usage: api [options]")
		fmt.Println()
		fmt.Println("Options:")
		flag.PrintDefaults()
		os.Exit(0)
	}

	cfg, errs := config.Load(*configPath)
	if len(errs) > 0 {
		for _, err := range errs {
			fmt.Fprintln(os.Stderr, "config error:", err)
		}
		os.Exit(1)
	}

	logger := middleware.NewLogger(cfg.Env)
	slog.SetDefault(logger)
	logger.Info("configuration loaded", "config", cfg.LogSummary())

	// Tracing exports spans only when an OTLP endpoint is configured.
	samplingRate := 1.0
	if cfg.Env == "production" {
		samplingRate = 0.1
	}
	traceProvider, err := tracing.NewProvider(tracing.Config{
		ServiceName:  "agrinet-api",
		Enabled:      cfg.OTLPEndpoint != "",
		Environment:  cfg.Env,
		OTLPEndpoint: cfg.OTLPEndpoint,
		SamplingRate: samplingRate,
		InsecureMode: cfg.Env != "production",
	})
	if err != nil {
		logger.Error("failed to initialize tracing", "error", err)
		os.Exit(1)
	}

	startCtx, cancelStart := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelStart()

	// Entry storage: Postgres when DATABASE_URL is set, in-memory otherwise.
	var repo knowledge.EntryRepository
	var dbChecker api.HealthChecker
	if cfg.DatabaseURL != "" {
		database, err := db.Open(startCtx, cfg.DatabaseURL)
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer database.Close()
		repo = knowledge.NewPostgresEntryRepository(database)
		dbChecker = health.NewDBChecker(database)
	} else {
		logger.Warn("DATABASE_URL not set, using in-memory entry store")
		repo = knowledge.NewInMemoryEntryRepository()
	}

	// Relevance weights, with optional calibration overrides.
	weights, err := knowledge.LoadCalibration(cfg.RankingCalibrationPath)
	if err != nil {
		logger.Warn("calibration load failed, using default weights", "error", err)
	}
	ranker := knowledge.NewRanker(repo, weights)

	// Rate limit storage: Redis when REDIS_URL is set, in-memory otherwise.
	var limitStore middleware.RateLimitStore
	var redisChecker api.HealthChecker
	if cfg.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Error("invalid REDIS_URL", "error", err)
			os.Exit(1)
		}
		client := redis.NewClient(opt)
		defer client.Close()
		limitStore = middleware.NewRedisRateLimitStore(client)
		redisChecker = health.NewRedisChecker(client)
	} else {
		logger.Warn("REDIS_URL not set, rate limits are per-replica only")
		memStore := middleware.NewInMemoryRateLimitStore()
		limitStore = memStore
		go func() {
			ticker := time.NewTicker(time.Minute)
			defer ticker.Stop()
			for range ticker.C {
				memStore.Cleanup()
			}
		}()
	}

	jwtService := auth.NewJWTServiceWithRotation(cfg.JWTSecret, cfg.JWTPreviousSecret)

	metrics := middleware.NewMetrics()
	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		logger.Error("failed to register metrics", "error", err)
		os.Exit(1)
	}

	forum := api.NewForumHandlers(repo, ranker)
	healthHandlers := api.NewHealthHandlers(api.HealthHandlersConfig{
		DBChecker:    dbChecker,
		RedisChecker: redisChecker,
	})

	handler := buildHandler(routerDeps{
		forum:      forum,
		health:     healthHandlers,
		jwtService: jwtService,
		limitStore: limitStore,
		metrics:    metrics,
		logger:     logger,
		corsConfig: middleware.CORSConfig{
			AllowedOrigins:   cfg.CORSAllowedOrigins,
			AllowCredentials: true,
			MaxAge:           600,
		},
		tracingEnabled: traceProvider.IsEnabled(),
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("starting server", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	if err := traceProvider.Shutdown(ctx); err != nil {
		logger.Error("tracer shutdown error", "error", err)
	}

	logger.Info("server stopped")
}

// routerDeps carries everything buildHandler needs to assemble the routes
// and middleware chain.
type routerDeps struct {
	forum          *api.ForumHandlers
	health         *api.HealthHandlers
	jwtService     *auth.JWTService
	limitStore     middleware.RateLimitStore
	metrics        *middleware.Metrics
	logger         *slog.Logger
	corsConfig     middleware.CORSConfig
	tracingEnabled bool
}

// buildHandler assembles the route table and middleware chain:
// RequestID -> Tracing -> Logging -> HTTPMetrics -> CORS -> routes.
func buildHandler(deps routerDeps) http.Handler {
	requireAuth := middleware.Auth(deps.jwtService)
	searchLimit := middleware.RateLimiter(deps.limitStore, middleware.DefaultSearchLimit(), middleware.IPKeyFunc())
	writeLimit := middleware.RateLimiter(deps.limitStore, middleware.DefaultWriteLimit(), middleware.UserKeyFunc())
	readLimit := middleware.RateLimiter(deps.limitStore, middleware.DefaultGlobalLimit(), middleware.IPKeyFunc())

	mux := http.NewServeMux()

	mux.HandleFunc("/health", deps.health.Health)
	mux.HandleFunc("/ready", deps.health.Ready)
	mux.Handle("/metrics", promhttp.Handler())

	mux.Handle("/forum/search", searchLimit(http.HandlerFunc(deps.forum.Search)))
	mux.Handle("/forum/questions", requireAuth(writeLimit(http.HandlerFunc(deps.forum.CreateQuestion))))
	mux.Handle("/forum/entries", readLimit(http.HandlerFunc(deps.forum.ListEntries)))

	// Entry reads are public; counter mutations require an authenticated user.
	entry := http.HandlerFunc(deps.forum.HandleEntry)
	readEntry := readLimit(entry)
	writeEntry := requireAuth(writeLimit(entry))
	mux.Handle("/forum/entries/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			writeEntry.ServeHTTP(w, r)
			return
		}
		readEntry.ServeHTTP(w, r)
	}))

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		// Only handle exact root path, everything else returns 404
		if r.URL.Path != "/" {
			ctx := middleware.SetErrorCode(r.Context(), api.ErrCodeNotFound)
			api.WriteError(w, ctx, http.StatusNotFound, api.ErrCodeNotFound, "The requested resource was not found")
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte(`{"service":"agrinet-api","version":"0.0.1"}`)); err != nil {
			slog.Error("failed to write response", "error", err)
		}
	})

	var handler http.Handler = mux
	handler = middleware.CORS(deps.corsConfig)(handler)
	handler = middleware.HTTPMetrics(deps.metrics)(handler)
	handler = middleware.Logging(deps.logger)(handler)
	if deps.tracingEnabled {
		handler = middleware.Tracing("agrinet-api")(handler)
	}
	handler = middleware.RequestID(handler)

	return handler
}
