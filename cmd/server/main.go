package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/eyc/invoicing/internal/bootstrap"
	"github.com/eyc/invoicing/internal/infrastructure/cache"
	"github.com/eyc/invoicing/internal/infrastructure/config"
	"github.com/eyc/invoicing/internal/infrastructure/logger"
	"github.com/eyc/invoicing/internal/interfaces/http/handler"
	"github.com/eyc/invoicing/internal/interfaces/http/middleware"
	"github.com/eyc/invoicing/internal/interfaces/http/router"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	baseLog, err := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}

	ctx := context.Background()
	tel, log, err := bootstrap.SetupTelemetry(ctx, cfg, baseLog)
	if err != nil {
		baseLog.Fatal("Failed to initialize telemetry", zap.Error(err))
	}
	defer func() {
		if err := tel.Shutdown(context.Background()); err != nil {
			baseLog.Error("Error shutting down telemetry", zap.Error(err))
		}
		_ = logger.Sync(baseLog)
	}()

	log.Info("Starting invoicing server",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("store", cfg.Store.Driver),
	)

	store, err := bootstrap.OpenStore(cfg, log)
	if err != nil {
		log.Fatal("Failed to open record store", zap.Error(err))
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Error("Error closing record store", zap.Error(err))
		}
	}()

	svc, err := bootstrap.NewService(ctx, cfg, store, tel.Meter, log)
	if err != nil {
		log.Fatal("Failed to initialize invoicing service", zap.Error(err))
	}

	var mutating []gin.HandlerFunc
	if cfg.Idempotency.Enabled {
		idem, err := cache.OpenIdempotencyStore(ctx, cfg.Idempotency, cfg.Redis, log)
		if err != nil {
			log.Fatal("Failed to initialize idempotency store", zap.Error(err))
		}
		defer idem.Close()
		mutating = append(mutating, middleware.Idempotency(idem, cfg.Idempotency.TTL, log))
	}

	checks := map[string]handler.HealthCheck{}
	if store.Ping != nil {
		checks["store"] = store.Ping
	}
	systemHandler := handler.NewSystemHandler(cfg.App.Name, cfg.App.Version, store.Driver, checks)

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	middleware.SetupValidator()

	engine := gin.New()
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}

	// Order matters: the request ID must exist before the logger and the
	// span enricher read it, and recovery must wrap everything after it.
	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(log))
	engine.Use(logger.GinMiddleware(log))
	engine.Use(middleware.Tracing(cfg.Telemetry.ServiceName, cfg.Telemetry.Enabled))
	engine.Use(middleware.SpanEnricher())
	engine.Use(middleware.HTTPMetrics(tel.Meter.Meter("http"), log))
	engine.Use(middleware.Secure())

	corsConfig := middleware.DefaultCORSConfig()
	corsConfig.AllowOrigins = cfg.HTTP.CORSAllowOrigins
	corsConfig.AllowMethods = cfg.HTTP.CORSAllowMethods
	corsConfig.AllowHeaders = cfg.HTTP.CORSAllowHeaders
	engine.Use(middleware.CORSWithConfig(corsConfig))
	engine.Use(middleware.BodyLimit(middleware.BodyLimits{
		Default:   cfg.HTTP.MaxBodySize,
		Multipart: cfg.HTTP.MaxUploadSize,
	}))

	r := router.New(engine, router.WithWriteGuard(mutating...))
	if cfg.HTTP.RateLimitEnabled {
		limiter := middleware.NewRateLimiter(cfg.HTTP.RateLimitPerSecond, cfg.HTTP.RateLimitBurst, 10*time.Minute)
		go sweepLimiter(ctx, limiter)
		r.Use(middleware.RateLimit(limiter))
	}

	routes := r.Mount(router.InvoicingRoutes(router.Handlers{
		Invoice: handler.NewInvoiceHandler(svc),
		Member:  handler.NewMemberHandler(svc),
		System:  systemHandler,
	})...).Setup()
	for _, rt := range routes {
		log.Debug("Route registered",
			zap.String("method", rt.Method),
			zap.String("path", rt.Path),
			zap.Bool("writes", rt.Writes),
		)
	}

	engine.GET("/health", systemHandler.Health)

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	// Let a running generation or export finish its current chunks.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.WriteTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
		return
	}

	log.Info("Server exited gracefully")
}

func sweepLimiter(ctx context.Context, limiter *middleware.RateLimiter) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			limiter.Sweep()
		}
	}
}
