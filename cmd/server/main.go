package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/zfogg/blog/backend/internal/analytics"
	"github.com/zfogg/blog/backend/internal/auth"
	"github.com/zfogg/blog/backend/internal/cache"
	"github.com/zfogg/blog/backend/internal/config"
	"github.com/zfogg/blog/backend/internal/database"
	"github.com/zfogg/blog/backend/internal/handlers"
	"github.com/zfogg/blog/backend/internal/logger"
	"github.com/zfogg/blog/backend/internal/metrics"
	"github.com/zfogg/blog/backend/internal/middleware"
	"github.com/zfogg/blog/backend/internal/otp"
	"github.com/zfogg/blog/backend/internal/repository"
	"github.com/zfogg/blog/backend/internal/search"
	"github.com/zfogg/blog/backend/internal/storage"
	"github.com/zfogg/blog/backend/internal/telemetry"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if err := logger.Initialize(logger.Options{
		Level:       cfg.LogLevel,
		File:        cfg.LogFile,
		Development: !cfg.IsProduction(),
	}); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Close()

	logger.Log.Info("=== Blog backend starting ===", zap.String("environment", cfg.Environment))

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	// Tracing is a no-op unless an OTLP endpoint is configured
	shutdownTracer, err := telemetry.InitTracer(telemetry.Config{
		ServiceName:  telemetry.ServiceName,
		Environment:  cfg.Environment,
		OTLPEndpoint: cfg.OTLPEndpoint,
		SamplingRate: 1,
	})
	if err != nil {
		logger.FatalWithFields("Failed to initialize tracing", err)
	}

	metrics.Initialize()

	// Initialize database
	if err := database.Initialize(cfg); err != nil {
		logger.FatalWithFields("Failed to initialize database", err)
	}
	defer database.Close()

	if cfg.OTLPEndpoint != "" {
		if err := database.DB.Use(telemetry.GORMTracingPlugin(otel.GetTracerProvider())); err != nil {
			logger.WarnWithFields("Failed to install GORM tracing", err)
		}
	}

	// Run migrations
	if err := database.Migrate(database.DB); err != nil {
		logger.FatalWithFields("Failed to run migrations", err)
	}

	// Redis backs the cache, counters and rate limits; without it everything
	// stays in process memory
	var store cache.Store
	if cfg.RedisHost != "" {
		redisClient, err := cache.NewRedisClient(cfg.RedisHost, cfg.RedisPort, cfg.RedisPassword)
		if err != nil {
			logger.FatalWithFields("Failed to connect to Redis", err)
		}
		defer redisClient.Close()
		store = redisClient
	} else {
		logger.Log.Warn("REDIS_HOST not set, using in-memory cache store")
		store = cache.NewMemoryStore()
	}
	cacheManager := cache.NewManager(store, cfg.CacheTTL)

	uploader, err := newUploader(cfg)
	if err != nil {
		logger.FatalWithFields("Failed to initialize media storage", err)
	}

	// Initialize auth and OTP services
	users := repository.NewUserRepository(database.DB)
	authService := auth.NewService(users, []byte(cfg.JWTSecret))
	otpService := otp.NewService(users, uploader, authService)

	h := handlers.NewHandlers(database.DB, cacheManager, authService, otpService)

	// Buffered impression counters are written back on a cron schedule
	flusher := analytics.NewFlusher(store, h.Analytics(), cfg.ImpressionFlushSchedule)
	if err := flusher.Start(); err != nil {
		logger.FatalWithFields("Failed to start impression flusher", err)
	}
	defer flusher.Stop()

	// Elasticsearch is optional; search falls back to the database
	if cfg.ElasticsearchURL != "" {
		searchClient, err := search.NewClient(cfg.ElasticsearchURL)
		if err != nil {
			logger.WarnWithFields("Elasticsearch unavailable, search falls back to the database", err)
		} else {
			if err := searchClient.InitializeIndices(context.Background()); err != nil {
				logger.WarnWithFields("Failed to initialize search indices", err)
			}

			indexer := search.NewIndexer(database.DB, searchClient, 1000)
			indexer.Start()
			defer indexer.Stop()

			reconciler := search.NewReconciliationService(database.DB, searchClient, time.Hour)
			reconciler.Start()
			defer reconciler.Stop()

			h.SetSearch(searchClient, indexer)
		}
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestIDMiddleware())
	r.Use(middleware.GinLoggerMiddleware())
	r.Use(middleware.MetricsMiddleware())
	r.Use(middleware.TracingMiddleware(telemetry.ServiceName)...)
	r.Use(gzip.Gzip(gzip.DefaultCompression))

	// CORS middleware
	corsConfig := cors.DefaultConfig()
	if len(cfg.CORSOrigins) == 1 && cfg.CORSOrigins[0] == "*" {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = cfg.CORSOrigins
		corsConfig.AllowCredentials = true
	}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-API-Key", "X-Request-ID"}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	r.Use(cors.New(corsConfig))

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	if cfg.StorageBackend == "local" {
		r.Static(cfg.MediaURL, cfg.MediaRoot)
	}

	h.RegisterRoutes(r, handlers.RouteConfig{
		APIKeys:            cfg.APIKeys,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Log.Info("Blog backend listening", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.FatalWithFields("Failed to start server", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.ErrorWithFields("Server forced to shutdown", err)
	}

	// Pending impressions would otherwise be lost with the in-memory store
	if _, err := flusher.Flush(ctx); err != nil {
		logger.WarnWithFields("Final impression flush failed", err)
	}

	if err := shutdownTracer(ctx); err != nil {
		logger.WarnWithFields("Tracer shutdown failed", err)
	}

	logger.Log.Info("Server exited")
}

func newUploader(cfg *config.Config) (storage.Uploader, error) {
	if cfg.StorageBackend != "s3" {
		return storage.NewLocalUploader(cfg.MediaRoot, cfg.MediaURL), nil
	}

	s3Uploader, err := storage.NewS3Uploader(context.Background(), cfg.AWSRegion, cfg.AWSBucket, cfg.CDNURL)
	if err != nil {
		return nil, err
	}
	if err := s3Uploader.CheckBucketAccess(context.Background()); err != nil {
		logger.WarnWithFields("S3 bucket access failed, QR code uploads will fail", err)
	}
	return s3Uploader, nil
}
