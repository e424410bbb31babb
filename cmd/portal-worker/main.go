package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"teranga-build/portal/portal-backend/internal/cache"
	"teranga-build/portal/portal-backend/internal/config"
	"teranga-build/portal/portal-backend/internal/database"
	"teranga-build/portal/portal-backend/internal/export"
	"teranga-build/portal/portal-backend/internal/jobs"
	"teranga-build/portal/portal-backend/internal/portal"
)

func main() {
	configPath := flag.String("config", "config.json", "path to the JSON config file")
	once := flag.Bool("once", false, "run every sweep once and exit")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
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

	// Sweeps read fresh data; the cache only collapses reads within one run.
	service := portal.NewService(backend, logger, portal.Options{
		Cache:         cache.New(cache.Options{TTL: 5 * time.Second, Metrics: cache.NewMetrics(registry)}),
		Fixture:       cfg.Backend.FixtureMode(),
		InvitationTTL: cfg.Portal.InvitationTTL,
	})
	tracker := portal.NewTracker(service, logger, portal.TrackerOptions{})

	var archiver jobs.LedgerArchiver
	if cfg.AWS.ArchiveEnabled() {
		awsCfg, err := cfg.AWS.LoadAWS(context.Background())
		if err != nil {
			logger.Fatal("Failed to configure AWS", zap.Error(err))
		}
		archiver = export.NewS3Archiver(awsCfg, service, cfg.AWS.ExportBucket, logger)
		logger.Info("Ledger archiving enabled", zap.String("bucket", cfg.AWS.ExportBucket))
	}

	scheduler, err := jobs.NewScheduler(service, tracker, archiver, logger, jobs.Config{
		DelaySweep:      cfg.Jobs.DelaySweep,
		InvitationSweep: cfg.Jobs.InvitationSweep,
		LedgerArchive:   cfg.Jobs.LedgerArchive,
		Registerer:      registry,
	})
	if err != nil {
		logger.Fatal("Failed to create scheduler", zap.Error(err))
	}

	if *once {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()
		scheduler.RunAll(ctx)
		return
	}

	metricsSrv := &http.Server{
		Addr:    cfg.Jobs.MetricsAddr,
		Handler: promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
	}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Metrics server failed", zap.Error(err))
		}
	}()

	if err := scheduler.Start(); err != nil {
		logger.Fatal("Failed to start scheduler", zap.Error(err))
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down worker...")

	scheduler.Stop()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = metricsSrv.Shutdown(ctx)
	logger.Info("Worker exiting")
}
