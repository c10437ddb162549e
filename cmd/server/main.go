// Package main is the entry point for the fundsentry scoring server. It
// opens the (possibly gzip-compressed) fund store, wires the return/score
// engine, registers the background jobs and serves the HTTP API until
// interrupted.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aristath/fundsentry/internal/config"
	"github.com/aristath/fundsentry/internal/database"
	"github.com/aristath/fundsentry/internal/modules/benchmark"
	"github.com/aristath/fundsentry/internal/modules/funds"
	"github.com/aristath/fundsentry/internal/modules/snapshots"
	"github.com/aristath/fundsentry/internal/scheduler"
	"github.com/aristath/fundsentry/internal/server"
	"github.com/aristath/fundsentry/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallbackLog := logger.New(logger.Config{Level: "info", Pretty: true})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})
	logger.SetGlobalLogger(log)

	log.Info().Str("store", cfg.StorePath).Msg("Starting fundsentry")

	// Store open is fatal on failure: a missing or undecompressable
	// snapshot means nothing downstream can work.
	store, err := database.Open(database.Config{
		Path: cfg.StorePath,
		Log:  log,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open fund store")
	}
	defer store.Close()

	// Engine wiring
	navRepo := funds.NewNavRepository(store, log)
	cacheRepo := funds.NewCacheRepository(store, log)
	batch := funds.NewBatchComputer(navRepo, cfg.QueryTimeout, log)
	cache := funds.NewReturnsCache(cacheRepo, batch, funds.CachePolicy{
		FallbackOnMiss: cfg.CacheFallback,
	}, log)
	scores := funds.NewScoreEngine(cache, log)
	risk := funds.NewRiskService(navRepo, cfg.RiskFreeRatePct, log)
	service := funds.NewService(navRepo, cacheRepo, cache, batch, scores, risk, log)
	reports := funds.NewReportService(service, log)

	indexDB := benchmark.NewIndexDB(cfg.IndexStorePath, log)
	defer indexDB.Close()
	gate := benchmark.NewGate(navRepo, indexDB, cfg.BenchmarkCode, cfg.BenchmarkMarket, log)

	fundsHandler := funds.NewHandler(service, reports, gate, log)

	// Background jobs
	sched := scheduler.New(log)
	sched.Start()
	defer sched.Stop()

	cacheProbe := funds.NewCacheProbeJob(cacheRepo, 48*time.Hour, log)
	if err := sched.AddJob("0 0 7 * * *", cacheProbe); err != nil {
		log.Fatal().Err(err).Msg("Failed to register cache probe job")
	}

	exporter := snapshots.NewExporter(service, cfg.ScratchDir, 20, log)
	exportJob := snapshots.NewExportJob(exporter, 5*time.Minute)
	if err := sched.AddJob("0 30 18 * * *", exportJob); err != nil {
		log.Fatal().Err(err).Msg("Failed to register snapshot job")
	}

	srv := server.New(server.Config{
		Port:         cfg.Port,
		Log:          log,
		Store:        store,
		FundsHandler: fundsHandler,
		DevMode:      cfg.DevMode,
	})

	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	log.Info().Int("port", cfg.Port).Msg("Server started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}
