package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"

	_ "github.com/lib/pq" // PostgreSQL driver

	"screener/internal/classification"
	"screener/internal/config"
	"screener/internal/constants"
	"screener/internal/decisioncache"
	"screener/internal/governor"
	"screener/internal/logger"
	"screener/internal/patterns"
	"screener/internal/provider"
	"screener/internal/stats"
	"screener/pkg/bootstrap"
	"screener/pkg/circuitbreaker"
	"screener/pkg/health"
	"screener/pkg/metrics"
	"screener/pkg/middleware"
	"screener/pkg/ratelimit"
	"screener/pkg/tracing"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

type App struct {
	*bootstrap.Base
	dbConnector    *bootstrap.DatabaseConnector
	db             *sql.DB
	rdb            *redis.Client
	memCache       *decisioncache.MemoryCache
	collector      *stats.Collector
	server         *http.Server
	router         *gin.Engine
	tracerProvider *tracing.TracerProvider
}

func NewApp(cfg *config.Config, log logger.Logger) *App {
	if sugaredLogger, ok := log.(*logger.SugaredLogger); ok {
		sugaredLogger.SetServiceName("classifier-service")
	}
	return &App{
		Base:        bootstrap.NewBase(cfg, log),
		dbConnector: bootstrap.NewDatabaseConnector(cfg, log),
	}
}

func (a *App) Initialize(ctx context.Context) error {
	if err := a.initDatabases(ctx); err != nil {
		return fmt.Errorf("failed to initialize databases: %w", err)
	}

	if err := a.initRouter(); err != nil {
		return fmt.Errorf("failed to initialize router: %w", err)
	}

	if err := a.initServer(); err != nil {
		return fmt.Errorf("failed to initialize server: %w", err)
	}

	tp, err := tracing.Init(a.Config.Tracing, "classifier-service")
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	a.tracerProvider = tp

	return nil
}

func (a *App) initDatabases(ctx context.Context) error {
	db, err := a.dbConnector.InitPostgreSQL(ctx)
	if err != nil {
		return err
	}
	a.db = db

	if a.Config.Database.Redis.Host != "" {
		rdb, err := a.dbConnector.InitRedis(ctx)
		if err != nil {
			if a.Config.Cache.Backend == "redis" {
				return err
			}
			a.Logger.WarnwCtx(ctx, "Redis unavailable, provider caching disabled", "error", err)
		} else {
			a.rdb = rdb
		}
	}

	return nil
}

func (a *App) initRouter() error {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	if a.Config.Tracing.Enabled {
		router.Use(tracing.GinMiddleware("classifier-service"))
	}

	router.Use(middleware.RecoveryMiddleware(a.Logger))
	router.Use(middleware.LoggerMiddleware(a.Logger))
	router.Use(middleware.RequestIDMiddleware())

	cache, err := a.buildDecisionCache()
	if err != nil {
		return err
	}

	patternRepo := patterns.NewRepository(a.db)
	patternStore := patterns.NewStore(patternRepo, a.Logger)
	auditLogger := patterns.NewAuditLogger(a.db)
	patternService := patterns.NewService(patternRepo, patternStore, a.Logger,
		patterns.WithAudit(auditLogger),
		patterns.WithCacheInvalidator(cache))

	statsRepo := stats.NewRepository(a.db)
	a.collector = stats.NewCollector(statsRepo, a.Logger)

	gov := governor.New(a.Config.Governor, a.Logger)

	var classificationOpts []classification.Option
	var providerEnabled bool
	if a.Config.Provider.BaseURL != "" {
		providerClient := provider.NewClient(a.Config.Provider, gov, a.breakerConfig(), a.rdb, a.Logger)
		classificationOpts = append(classificationOpts, classification.WithMetadataFetcher(providerClient))
		providerEnabled = true
	}

	classificationService := classification.NewService(
		patternStore, patternRepo, cache, a.collector,
		a.Config.Classification, a.Config.Cache, a.Logger,
		classificationOpts...,
	)

	classificationHandler := classification.NewHandler(classificationService, cache, a.Logger)
	patternHandler := patterns.NewHandler(patternService, a.Logger)
	statsHandler := stats.NewHandler(a.collector, a.Logger)

	classificationHandler.RegisterRoutes(router)
	patternHandler.RegisterRoutes(router)
	statsHandler.RegisterRoutes(router)

	admin := router.Group("/api/v1/admin")
	if a.Config.Admin.RateLimit.Enabled {
		rateLimitConfig := ratelimit.RateLimitConfig{
			RPS:             a.Config.Admin.RateLimit.RPS,
			Burst:           a.Config.Admin.RateLimit.Burst,
			CleanupInterval: time.Duration(a.Config.Admin.RateLimit.CleanupInterval) * time.Second,
			MaxAge:          time.Duration(a.Config.Admin.RateLimit.MaxAge) * time.Second,
		}
		admin.Use(ratelimit.RateLimitMiddleware(rateLimitConfig))
		metrics.RegisterAdminMetrics()
		a.Logger.InfowCtx(context.Background(), "Admin rate limiting enabled",
			"rps", rateLimitConfig.RPS, "burst", rateLimitConfig.Burst)
	}
	classificationHandler.RegisterAdminRoutes(admin)
	statsHandler.RegisterAdminRoutes(admin)

	metrics.RegisterClassificationMetrics()
	metrics.RegisterGovernorMetrics()
	if providerEnabled {
		metrics.RegisterProviderMetrics()
		metrics.RegisterCircuitBreakerMetrics()
	}

	healthRegistry := health.NewCheckerRegistry()
	healthRegistry.Register(health.NewPostgreSQLChecker(a.db))
	if a.rdb != nil {
		healthRegistry.Register(health.NewRedisChecker(a.rdb))
	}

	router.GET("/health", func(c *gin.Context) {
		h := healthRegistry.Check(c.Request.Context())
		statusCode := http.StatusOK
		if h.Status == health.StatusUnhealthy {
			statusCode = http.StatusServiceUnavailable
		}
		c.JSON(statusCode, h)
	})

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	a.router = router
	return nil
}

func (a *App) buildDecisionCache() (decisioncache.Cache, error) {
	switch a.Config.Cache.Backend {
	case "redis":
		if a.rdb == nil {
			return nil, fmt.Errorf("cache backend is redis but no redis connection is configured")
		}
		return decisioncache.NewRedisCache(a.rdb, a.Logger), nil
	default:
		a.memCache = decisioncache.NewMemoryCache(time.Minute)
		return a.memCache, nil
	}
}

func (a *App) breakerConfig() circuitbreaker.Config {
	cfg := circuitbreaker.DefaultConfig("provider")
	if !a.Config.CircuitBreaker.Enabled {
		return cfg
	}

	if a.Config.CircuitBreaker.MaxRequests > 0 {
		cfg.MaxRequests = a.Config.CircuitBreaker.MaxRequests
	}
	if a.Config.CircuitBreaker.Interval > 0 {
		cfg.Interval = a.Config.CircuitBreaker.Interval
	}
	if a.Config.CircuitBreaker.Timeout > 0 {
		cfg.Timeout = a.Config.CircuitBreaker.Timeout
	}
	if a.Config.CircuitBreaker.FailureRatio > 0 && a.Config.CircuitBreaker.MinRequests > 0 {
		ratio := a.Config.CircuitBreaker.FailureRatio
		minRequests := a.Config.CircuitBreaker.MinRequests
		cfg.ReadyToTrip = func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= minRequests && failureRatio >= ratio
		}
	}

	return cfg
}

func (a *App) initServer() error {
	a.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler: a.router,
	}
	return nil
}

func (a *App) Run(ctx context.Context) error {
	errChan := make(chan error, 1)
	go func() {
		a.Logger.InfowCtx(ctx, "Server listening", "port", a.Config.Server.Port)
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		return a.Shutdown(ctx)
	case err := <-errChan:
		return err
	}
}

func (a *App) Shutdown(ctx context.Context) error {
	a.Logger.InfowCtx(ctx, "Shutting down server")

	additionalShutdown := func(ctx context.Context) []error {
		var errs []error

		shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
		defer cancel()

		if a.server != nil {
			if err := a.server.Shutdown(shutdownCtx); err != nil {
				errs = append(errs, fmt.Errorf("server shutdown error: %w", err))
			}
		}

		if a.collector != nil {
			if err := a.collector.Flush(shutdownCtx); err != nil {
				errs = append(errs, fmt.Errorf("stats flush error: %w", err))
			}
		}

		if a.memCache != nil {
			a.memCache.Close()
		}

		if a.tracerProvider != nil {
			if err := a.tracerProvider.Shutdown(ctx); err != nil {
				errs = append(errs, fmt.Errorf("tracer provider shutdown error: %w", err))
			}
		}

		errs = append(errs, a.dbConnector.ShutdownDatabases(ctx, a.rdb, a.db)...)

		return errs
	}

	return a.Base.Shutdown(ctx, additionalShutdown)
}
