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

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"teranga-build/portal/portal-backend/internal/auth"
	"teranga-build/portal/portal-backend/internal/cache"
	"teranga-build/portal/portal-backend/internal/config"
	"teranga-build/portal/portal-backend/internal/database"
	"teranga-build/portal/portal-backend/internal/export"
	"teranga-build/portal/portal-backend/internal/notify"
	"teranga-build/portal/portal-backend/internal/portal"
)

func main() {
	configPath := os.Getenv("PORTAL_CONFIG")
	if configPath == "" {
		configPath = "config.json"
	}
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// Initialize logger
	logger, err := cfg.Logging.NewLogger()
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer logger.Sync()

	backend, closeBackend, err := database.NewBackend(cfg.Backend, cfg.Database, logger)
	if err != nil {
		logger.Fatal("Failed to open backend", zap.Error(err))
	}
	defer closeBackend()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	queryCache := cache.New(cache.Options{
		TTL:             cfg.Cache.TTL,
		CleanupInterval: cfg.Cache.CleanupInterval,
		Metrics:         cache.NewMetrics(registry),
	})
	defer queryCache.Stop()

	service := portal.NewService(backend, logger, portal.Options{
		Cache:         queryCache,
		Fixture:       cfg.Backend.FixtureMode(),
		InvitationTTL: cfg.Portal.InvitationTTL,
	})

	trackerOpts := portal.TrackerOptions{StrictStatusTransitions: cfg.Portal.StrictStatusTransitions}
	if cfg.AWS.MailEnabled() {
		awsCfg, err := cfg.AWS.LoadAWS(context.Background())
		if err != nil {
			logger.Fatal("Failed to configure AWS", zap.Error(err))
		}
		trackerOpts.Notifier = notify.NewSESSender(awsCfg, cfg.AWS.SenderEmail, cfg.Portal.PublicURL, logger)
		logger.Info("Invitation mail enabled", zap.String("sender", cfg.AWS.SenderEmail))
	}
	tracker := portal.NewTracker(service, logger, trackerOpts)

	var issuer *auth.Issuer
	if cfg.Security.JWTSecret != "" {
		issuer = auth.NewIssuer(cfg.Security.JWTSecret, auth.DefaultTokenTTL)
	}
	devMode := cfg.Backend.FixtureMode() && issuer == nil
	if !devMode && issuer == nil {
		logger.Fatal("JWT secret is required when a database backend is configured")
	}

	// Setup Router
	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(logger), cors())

	public := router.Group("/api/v1")
	protected := router.Group("/api/v1", auth.Middleware(auth.MiddlewareOptions{
		Issuer:       issuer,
		AllowHeaders: devMode,
		Logger:       logger,
	}))
	auth.RegisterRoutes(public, protected, auth.NewHandler(issuer, logger), cfg.Backend.FixtureMode())
	portal.NewHandler(service, tracker, logger).RegisterRoutes(protected)
	export.NewHandler(service, tracker, logger).RegisterRoutes(protected)

	// Health Check
	router.GET("/health", func(c *gin.Context) {
		stats := service.CacheStats()
		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"mode":      service.Mode(),
			"cache":     stats,
			"timestamp": time.Now(),
		})
	})
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry})))

	// Start Server
	srv := &http.Server{
		Addr:         cfg.Server.GetServerAddr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	logger.Info("Server started",
		zap.String("addr", srv.Addr),
		zap.String("mode", service.Mode()),
		zap.Bool("strict_status_transitions", cfg.Portal.StrictStatusTransitions))

	// Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exiting")
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("Request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("took", time.Since(start)))
	}
}

// cors allows the portal front end, served from another origin, to call the API.
func cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With, X-User-ID, X-User-Type")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "Content-Disposition")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
