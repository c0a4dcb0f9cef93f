// Package main is the entry point for the portfolio dashboard service.
// It serves a valuation snapshot and a reconstructed value history for a
// manually configured portfolio, refreshed from Yahoo Finance on a schedule
// or on demand.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Hahasky-afk/my-portfolio-dashboard/internal/clients/yahoo"
	"github.com/Hahasky-afk/my-portfolio-dashboard/internal/config"
	"github.com/Hahasky-afk/my-portfolio-dashboard/internal/database"
	"github.com/Hahasky-afk/my-portfolio-dashboard/internal/modules/cache"
	"github.com/Hahasky-afk/my-portfolio-dashboard/internal/modules/history"
	"github.com/Hahasky-afk/my-portfolio-dashboard/internal/modules/positions"
	"github.com/Hahasky-afk/my-portfolio-dashboard/internal/modules/refresh"
	"github.com/Hahasky-afk/my-portfolio-dashboard/internal/modules/snapshot"
	"github.com/Hahasky-afk/my-portfolio-dashboard/internal/scheduler"
	"github.com/Hahasky-afk/my-portfolio-dashboard/internal/server"
	"github.com/Hahasky-afk/my-portfolio-dashboard/pkg/logger"
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

	log.Info().Str("data_dir", cfg.DataDir).Int("port", cfg.Port).Msg("Starting portfolio dashboard")

	// Databases: portfolio.db holds the configured holdings, cache.db the
	// latest computed results.
	portfolioDB, err := database.New(database.Config{
		Path:    cfg.PortfolioDBPath(),
		Profile: database.ProfileStandard,
		Name:    "portfolio",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open portfolio database")
	}
	defer portfolioDB.Close()

	cacheDB, err := database.New(database.Config{
		Path:    cfg.CacheDBPath(),
		Profile: database.ProfileCache,
		Name:    "cache",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open cache database")
	}
	defer cacheDB.Close()

	positionRepo := positions.NewRepository(portfolioDB.Conn(), log)
	if err := positionRepo.Init(); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize positions schema")
	}

	cacheRepo := cache.NewRepository(cacheDB.Conn(), log)
	if err := cacheRepo.Init(); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize cache schema")
	}

	// Optional bootstrap: seed an empty portfolio from a JSON file.
	if seedPath := os.Getenv("DASH_SEED_FILE"); seedPath != "" {
		seed, err := positions.LoadSeedFile(seedPath)
		if err != nil {
			log.Fatal().Err(err).Str("path", seedPath).Msg("Failed to load seed file")
		}
		if err := positionRepo.Seed(seed.Positions, seed.Cash); err != nil {
			log.Fatal().Err(err).Msg("Failed to seed portfolio")
		}
	}

	// Core wiring: Yahoo price source, snapshot engine, history reconstructor.
	priceSource := yahoo.NewClient(log)
	engine := snapshot.NewEngine(priceSource, log)
	reconstructor := history.NewReconstructor(priceSource, cfg.LookbackDays, log)

	refreshService := refresh.NewService(
		positionRepo,
		engine,
		reconstructor,
		cacheRepo,
		cfg.DashboardDir,
		log,
	)

	// Scheduled refreshes keep the dashboard artifacts current without
	// anyone hitting the API.
	sched := scheduler.New(log)
	if cfg.RefreshSchedule != "" {
		job := scheduler.NewRefreshJob(refreshService, 2*time.Minute, log)
		if err := sched.AddJob(cfg.RefreshSchedule, job); err != nil {
			log.Fatal().Err(err).Str("schedule", cfg.RefreshSchedule).Msg("Invalid refresh schedule")
		}
	}
	sched.Start()
	defer sched.Stop()

	srv := server.New(server.Config{
		Log:          log,
		Port:         cfg.Port,
		DevMode:      cfg.DevMode,
		DashboardDir: cfg.DashboardDir,
		Handler:      server.NewHandler(refreshService, cacheRepo, log),
		System:       server.NewSystemHandlers(log),
	})

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutdown signal received")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Graceful shutdown failed")
	}
}
