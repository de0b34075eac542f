// Package main is the entry point for the API server.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/apconsolide/tale-mosaic/internal/activitylog"
	"github.com/apconsolide/tale-mosaic/internal/api"
	"github.com/apconsolide/tale-mosaic/internal/config"
	"github.com/apconsolide/tale-mosaic/internal/db"
	"github.com/apconsolide/tale-mosaic/internal/extract"
	"github.com/apconsolide/tale-mosaic/internal/health"
	"github.com/apconsolide/tale-mosaic/internal/idempotency"
	"github.com/apconsolide/tale-mosaic/internal/middleware"
	"github.com/apconsolide/tale-mosaic/internal/pipeline"
	"github.com/apconsolide/tale-mosaic/internal/tracing"
	"github.com/apconsolide/tale-mosaic/internal/transcription"
	"github.com/apconsolide/tale-mosaic/internal/upload"
)

func main() {
	help := flag.Bool("help", false, "display help message")
	configFile := flag.String("config", "", "path to optional YAML config file")
	flag.Parse()

	if *help {
		fmt.Println("Tale Mosaic API Server")
		fmt.Println()
		fmt.Println("Usage: api [options]")
		fmt.Println()
		fmt.Println("Options:")
		flag.PrintDefaults()
		os.Exit(0)
	}

	cfg, cfgErrs := config.Load(*configFile)
	if len(cfgErrs) > 0 {
		for _, err := range cfgErrs {
			fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		}
		os.Exit(1)
	}

	logger := middleware.NewLogger(cfg.Env)
	slog.SetDefault(logger)
	logger.Info("configuration loaded", "summary", cfg.LogSummary())

	ctx := context.Background()

	// Database is optional. Without one the server runs on in-memory stores
	// and the dashboard works in preview mode.
	var (
		conn       *sql.DB
		capability db.Capability
	)
	if cfg.DatabaseURL != "" {
		var err error
		conn, err = db.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Error("failed to open database", "error", err)
			os.Exit(1)
		}
		defer conn.Close()
		capability = db.Probe(ctx, conn)
		logger.Info("database connected", "schema", capability.String())
	} else {
		logger.Warn("DATABASE_URL not set, using in-memory stores")
	}

	// Redis is optional. It backs the extraction cache and rate limit store;
	// both fall back to in-process alternatives without it.
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Error("invalid REDIS_URL", "error", err)
			os.Exit(1)
		}
		redisClient = redis.NewClient(opts)
		defer redisClient.Close()
		logger.Info("redis configured", "addr", opts.Addr)
	}

	// Distributed tracing
	tracingProvider, err := tracing.NewProvider(tracing.Config{
		ServiceName:  "tale-mosaic-api",
		Enabled:      cfg.TracingEnabled,
		Environment:  cfg.Env,
		OTLPEndpoint: cfg.OTLPEndpoint,
		SamplingRate: 1.0,
		InsecureMode: cfg.Env == "development",
	})
	if err != nil {
		logger.Error("failed to initialize tracing", "error", err)
		os.Exit(1)
	}

	// Repositories. Postgres when the schema is ready, in-memory otherwise.
	var (
		logRepo           activitylog.Repository
		transcriptionRepo transcription.Repository
	)
	if conn != nil && capability == db.CapabilityReady {
		logRepo = activitylog.NewPostgresRepository(conn, logger)
		transcriptionRepo = transcription.NewPostgresRepository(conn, logger)
	} else {
		logRepo = activitylog.NewInMemoryRepository()
		transcriptionRepo = transcription.NewInMemoryRepository()
		if conn != nil {
			logger.Warn("schema not ready, falling back to in-memory stores", "schema", capability.String())
		}
	}

	// Extraction service with optional Redis-backed result cache
	var extractionCache extract.Cache
	if redisClient != nil {
		ttl := time.Duration(cfg.ExtractionCacheTTLSeconds) * time.Second
		extractionCache = extract.NewRedisCache(redisClient, ttl, logger)
	}
	gemini := extract.NewGeminiExtractor(extract.GeminiConfig{
		APIKey:  cfg.GeminiAPIKey,
		Model:   cfg.GeminiModel,
		BaseURL: cfg.GeminiBaseURL,
	})
	extractionService := extract.NewService(extractionCache, logger, gemini)

	// Metrics registry
	registry := prometheus.NewRegistry()
	pipelineMetrics := pipeline.NewMetrics()
	if err := pipelineMetrics.Register(registry); err != nil {
		logger.Error("failed to register pipeline metrics", "error", err)
		os.Exit(1)
	}
	mwMetrics := middleware.NewMetrics()
	if err := mwMetrics.Register(registry); err != nil {
		logger.Error("failed to register middleware metrics", "error", err)
		os.Exit(1)
	}

	submitPipeline := pipeline.New(pipeline.Config{
		Extractor:      extractionService,
		Logs:           logRepo,
		Transcriptions: transcriptionRepo,
		Capability:     capability,
		Metrics:        pipelineMetrics,
		Logger:         logger,
	})

	// Handlers
	logHandlers := api.NewLogHandlers(logRepo)
	transcriptionHandlers := api.NewTranscriptionHandlers(submitPipeline, transcriptionRepo)
	mapHandlers := api.NewMapHandlers(logRepo)
	statsHandlers := api.NewStatsHandlers(logRepo)
	extractionHandlers := api.NewExtractionHandlers(extractionService)

	healthConfig := api.HealthHandlersConfig{Capability: capability}
	if conn != nil {
		healthConfig.DBChecker = health.NewDBChecker(conn)
	}
	if redisClient != nil {
		healthConfig.RedisChecker = health.NewRedisChecker(redisClient)
	}
	healthHandlers := api.NewHealthHandlers(healthConfig)

	// Rate limiting. Redis store when available so limits hold across
	// replicas, in-memory otherwise.
	var rateLimitStore middleware.RateLimitStore
	if redisClient != nil {
		rateLimitStore = middleware.NewRedisRateLimitStore(redisClient)
	} else {
		rateLimitStore = middleware.NewInMemoryRateLimitStore()
	}
	globalLimit := middleware.RateLimitConfig{
		RequestsPerWindow: cfg.RateLimitRequests,
		WindowDuration:    time.Duration(cfg.RateLimitWindowSeconds) * time.Second,
	}
	globalLimiter := middleware.RateLimiter(rateLimitStore, globalLimit, middleware.IPKeyFunc(), logger)
	submitLimiter := middleware.RateLimiter(rateLimitStore, middleware.DefaultSubmitLimit(), middleware.IPKeyFunc(), logger)

	// Idempotency for submissions, so retried POSTs replay the original
	// response instead of invoking the extractor again.
	idempotencyRepo := idempotency.NewInMemoryRepository()
	idempotencyMW := middleware.IdempotencyMiddleware(idempotencyRepo, map[string]bool{
		"/transcriptions": true,
	})
	cleanupStop := make(chan struct{})
	go idempotency.RunPeriodicCleanup(idempotencyRepo, time.Hour, idempotency.DefaultExpiry, cleanupStop)

	mux := http.NewServeMux()

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			reqCtx := middleware.SetErrorCode(r.Context(), api.ErrCodeNotFound)
			api.WriteError(w, reqCtx, http.StatusNotFound, api.ErrCodeNotFound, "The requested resource was not found")
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte(`{"service":"tale-mosaic-api","version":"0.0.1"}`)); err != nil {
			slog.Error("failed to write response", "error", err)
		}
	})

	mux.HandleFunc("/logs", logHandlers.ServeLogs)
	mux.HandleFunc("/logs/", logHandlers.ServeLog)
	mux.HandleFunc("/logs/groups", mapHandlers.Groups)
	mux.HandleFunc("/map/markers", mapHandlers.Markers)
	mux.HandleFunc("/stats", statsHandlers.Summary)
	mux.Handle("/transcriptions", idempotencyMW(submitLimiter(http.HandlerFunc(transcriptionHandlers.ServeTranscriptions))))
	mux.HandleFunc("/transcriptions/", transcriptionHandlers.ServeTranscription)
	mux.HandleFunc("/extraction/status", extractionHandlers.Status)
	mux.HandleFunc("/health", healthHandlers.Health)
	mux.HandleFunc("/ready", healthHandlers.Ready)
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	// Upload signing only when object storage is configured
	if cfg.S3BucketName != "" {
		uploadService, err := upload.NewService(upload.ServiceConfig{
			BucketName:      cfg.S3BucketName,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
			Endpoint:        cfg.S3Endpoint,
			MaxSizeMB:       cfg.S3MaxUploadSizeMB,
		})
		if err != nil {
			logger.Error("failed to initialize upload service", "error", err)
			os.Exit(1)
		}
		uploadHandlers := api.NewUploadHandlers(uploadService)
		mux.HandleFunc("/uploads/sign", uploadHandlers.SignUpload)
		logger.Info("audio upload signing enabled", "bucket", cfg.S3BucketName)
	}

	corsConfig := middleware.CORSConfig{
		AllowedOrigins: splitOrigins(cfg.CORSAllowedOrigins),
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "Idempotency-Key", "X-Request-ID"},
		MaxAge:         300,
	}

	// Middleware chain, outermost first: RequestID -> Logging -> Tracing ->
	// CORS -> HTTPMetrics -> rate limit -> mux
	var handler http.Handler = mux
	handler = globalLimiter(handler)
	handler = middleware.HTTPMetrics(mwMetrics)(handler)
	handler = middleware.CORS(corsConfig)(handler)
	if cfg.TracingEnabled {
		handler = middleware.Tracing("tale-mosaic-api")(handler)
	}
	handler = middleware.Logging(logger)(handler)
	handler = middleware.RequestID(handler)
	if cfg.Env == "development" {
		handler = middleware.Profiling(middleware.ProfilingConfig{
			Enabled:     true,
			Environment: cfg.Env,
		})(handler)
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("starting server", "port", cfg.Port, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")
	close(cleanupStop)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	if err := tracingProvider.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shut down tracing", "error", err)
	}

	logger.Info("server stopped")
}

// splitOrigins parses a comma-separated origin list from config.
func splitOrigins(origins string) []string {
	if origins == "" {
		return nil
	}
	var out []string
	for _, origin := range strings.Split(origins, ",") {
		origin = strings.TrimSpace(origin)
		if origin != "" {
			out = append(out, origin)
		}
	}
	return out
}
