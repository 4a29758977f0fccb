// Command server runs the shortcore URL-shortening service: it loads
// configuration, applies pending schema migrations, warms up the Bloom
// Filter, and serves the shorten/redirect/info/health/metrics HTTP surface
// behind a gin router (spec_full §2, §6).
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/short-core/shortlink/internal/alias"
	"github.com/short-core/shortlink/internal/allocator"
	"github.com/short-core/shortlink/internal/bloomfilter"
	"github.com/short-core/shortlink/internal/breaker"
	"github.com/short-core/shortlink/internal/cache"
	"github.com/short-core/shortlink/internal/codegen"
	"github.com/short-core/shortlink/internal/config"
	"github.com/short-core/shortlink/internal/handler"
	"github.com/short-core/shortlink/internal/metrics"
	"github.com/short-core/shortlink/internal/middleware"
	"github.com/short-core/shortlink/internal/resolver"
	"github.com/short-core/shortlink/internal/store"
)

const bloomSnapshotName = "primary"

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := config.Load("config/config.yaml")
	if err != nil {
		log.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	if err := store.Migrate(cfg.MySQL.DSN(), cfg.Migrations.Path); err != nil {
		log.Error("failed to apply migrations", "error", err)
		os.Exit(1)
	}

	ps, err := store.NewMySQLStore(cfg.MySQL.DSN(), cfg.MySQL.MaxIdleConns, cfg.MySQL.MaxOpenConns)
	if err != nil {
		log.Error("failed to connect to mysql", "error", err)
		os.Exit(1)
	}
	defer ps.Close()

	var redisCache *cache.RedisCache
	if cfg.Redis.Enabled {
		redisCache, err = cache.NewRedisCache(cfg.Redis.Addr(), cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.PoolSize)
		if err != nil {
			log.Error("failed to connect to redis", "error", err)
			os.Exit(1)
		}
		defer redisCache.Close()
	}

	snapshotName := cfg.BloomFilter.SnapshotName
	if snapshotName == "" {
		snapshotName = bloomSnapshotName
	}

	bloom := bloomfilter.New(cfg.BloomFilter.TargetCapacity, cfg.BloomFilter.FalsePositiveRate)
	warmUpBloom(context.Background(), bloom, ps, snapshotName, log)

	engine, err := codegen.New(codegen.Config{
		Length:   cfg.Shortener.Length,
		Alphabet: cfg.Shortener.Alphabet,
		Kind:     codegen.Kind(cfg.Shortener.EngineKind),
	})
	if err != nil {
		log.Error("failed to build code generator", "error", err)
		os.Exit(1)
	}
	reserved := alias.NewReservedSet(cfg.Alias.Reserved)
	filteredEngine := codegen.NewFilteredEngine(engine, reserved, 8)
	if seq, ok := engine.(*codegen.SequenceEngine); ok {
		recoverSequenceCounter(context.Background(), seq, ps, log)
	}

	idGen, err := allocator.NewIDGenerator(cfg.Snowflake.DatacenterID, cfg.Snowflake.WorkerID)
	if err != nil {
		log.Error("failed to initialize snowflake id generator", "error", err)
		os.Exit(1)
	}

	var br *breaker.Breaker
	if cfg.CircuitBreaker.ConsecutiveFailures > 0 {
		br = breaker.New(breaker.Config{
			Name:                "ps",
			MaxRequests:         cfg.CircuitBreaker.MaxRequests,
			Interval:            time.Duration(cfg.CircuitBreaker.IntervalSeconds) * time.Second,
			Timeout:             time.Duration(cfg.CircuitBreaker.TimeoutSeconds) * time.Second,
			ConsecutiveFailures: cfg.CircuitBreaker.ConsecutiveFailures,
		})
	}

	metricsRegistry := metrics.New()

	alloc := allocator.New(ps, bloom, filteredEngine, idGen, br, cfg.Shortener.RetryBudget, cfg.Dedup.Enabled, log)

	var resolverCache resolver.Cache
	if redisCache != nil {
		resolverCache = redisCache
	}
	res := resolver.New(ps, bloom, resolverCache, br, log)
	res.SetMetrics(metricsRegistry)

	validator := alias.NewValidator(cfg.Alias.MaxLength, cfg.Alias.Reserved)
	h := handler.New(alloc, res, validator, bloom, br, metricsRegistry, cfg.Server.BaseURL)

	snapshotInterval := time.Duration(cfg.BloomFilter.SnapshotIntervalSeconds) * time.Second
	snapshotter := bloomfilter.NewSnapshotter(bloom, ps, snapshotName, snapshotInterval, log)
	snapshotCtx, stopSnapshotter := context.WithCancel(context.Background())
	snapshotDone := make(chan struct{})
	go func() {
		snapshotter.Run(snapshotCtx)
		close(snapshotDone)
	}()

	gin.SetMode(cfg.Server.Mode)
	router := gin.New()
	router.Use(gin.Recovery())

	if cfg.RateLimit.Enabled && redisCache != nil {
		installRateLimiting(router, cfg, h, redisCache, log)
	} else {
		registerRoutes(router, h)
	}
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	srv := &http.Server{
		Addr:           fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:        router,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	go func() {
		log.Info("server starting", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down")

	stopSnapshotter()
	<-snapshotDone

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}

	log.Info("server exited")
}

// warmUpBloom restores the last snapshot if header-valid, otherwise
// rebuilds from the full PS scan (spec §4.3 step 3).
func warmUpBloom(ctx context.Context, bloom *bloomfilter.Filter, ps store.Store, snapshotName string, log *slog.Logger) {
	data, ok, err := ps.LoadSnapshot(ctx, snapshotName)
	if err == nil && ok {
		if err := bloom.Restore(data); err == nil {
			log.Info("bloom filter restored from snapshot")
			return
		}
		log.Warn("bloom snapshot present but invalid, rebuilding from storage")
	}

	var codes []string
	if err := ps.ScanCodes(ctx, func(code string) error {
		codes = append(codes, code)
		return nil
	}); err != nil {
		log.Error("bloom rebuild scan failed, starting with an empty (unready) filter", "error", err)
		return
	}
	bloom.Rebuild(codes)
	log.Info("bloom filter rebuilt from storage", "codes", len(codes))
}

// recoverSequenceCounter scans primary codes only (spec §9 open question
// resolution) to resume a sequence-mode CG's counter past the highest
// issued value (P10).
func recoverSequenceCounter(ctx context.Context, seq *codegen.SequenceEngine, ps store.Store, log *slog.Logger) {
	var maxIssued int64
	if err := ps.ScanPrimaryCodes(ctx, func(code string) error {
		if v := seq.Decode(code); v > maxIssued {
			maxIssued = v
		}
		return nil
	}); err != nil {
		log.Error("sequence counter recovery scan failed, starting from zero", "error", err)
		return
	}
	seq.Recover(maxIssued)
	log.Info("sequence counter recovered", "max_issued", maxIssued)
}

func registerRoutes(router *gin.Engine, h *handler.Handler) {
	router.GET("/health", h.Health)
	router.GET("/:code", h.Redirect)
	api := router.Group("/api/v1")
	api.POST("/shorten", h.Shorten)
	api.GET("/info/:code", h.Info)
}

// installRateLimiting mirrors registerRoutes but layers the configured
// global and per-endpoint rate limiters in front of the shorten/redirect
// routes (spec_full §6 additions).
func installRateLimiting(router *gin.Engine, cfg *config.Config, h *handler.Handler, redisCache *cache.RedisCache, log *slog.Logger) {
	strategy := middleware.Strategy(cfg.RateLimit.Strategy)
	if strategy == "" {
		strategy = middleware.SlidingWindow
	}

	client := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr(), Password: cfg.Redis.Password, DB: cfg.Redis.DB})

	global := middleware.NewRateLimiter(client, &middleware.Config{
		Strategy: strategy,
		Limit:    cfg.RateLimit.Global.Limit,
		Window:   time.Duration(cfg.RateLimit.Global.Window) * time.Second,
		SkipFunc: middleware.SkipObservability,
	}, log)
	router.Use(global.Middleware())

	endpointLimit := func(path string) (config.RateLimitEndpointRule, bool) {
		for _, e := range cfg.RateLimit.Endpoints {
			if e.Path == path {
				return e, true
			}
		}
		return config.RateLimitEndpointRule{}, false
	}

	router.GET("/health", h.Health)

	if rule, ok := endpointLimit("/:code"); ok {
		limiter := middleware.NewRateLimiter(client, &middleware.Config{
			Strategy: middleware.SlidingWindow,
			Limit:    rule.Limit,
			Window:   time.Duration(rule.Window) * time.Second,
		}, log)
		router.GET("/:code", limiter.Middleware(), h.Redirect)
	} else {
		router.GET("/:code", h.Redirect)
	}

	api := router.Group("/api/v1")
	if rule, ok := endpointLimit("/api/v1/shorten"); ok {
		limiter := middleware.NewRateLimiter(client, &middleware.Config{
			Strategy: middleware.SlidingWindow,
			Limit:    rule.Limit,
			Window:   time.Duration(rule.Window) * time.Second,
		}, log)
		api.POST("/shorten", limiter.Middleware(), h.Shorten)
	} else {
		api.POST("/shorten", h.Shorten)
	}
	api.GET("/info/:code", h.Info)
}
