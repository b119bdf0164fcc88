package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/poolvault/internal/adapters"
	"github.com/aristath/poolvault/internal/config"
	"github.com/aristath/poolvault/internal/database"
	"github.com/aristath/poolvault/internal/events"
	"github.com/aristath/poolvault/internal/modules/history"
	"github.com/aristath/poolvault/internal/modules/ledger"
	"github.com/aristath/poolvault/internal/modules/oracle"
	"github.com/aristath/poolvault/internal/modules/rebalancing"
	"github.com/aristath/poolvault/internal/scheduler"
	"github.com/aristath/poolvault/internal/server"
	"github.com/aristath/poolvault/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})

	log.Info().Msg("Starting pool vault")

	// Initialize database
	db, err := database.New(cfg.DatabasePath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer db.Close()

	// Run migrations
	if err := db.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("Failed to run migrations")
	}

	// Event manager
	eventManager := events.NewManager(log)

	// Position adapters, registered exactly once in index order
	lending := adapters.NewLendingPool(cfg.LendingYieldBps, log)
	staking := adapters.NewStakingPosition(cfg.StakingYieldBps, log)
	liquidity := adapters.NewLiquidityPosition(cfg.LiquidityYieldBps, log)
	lending.SetRates(cfg.AdapterEntryRates[0], cfg.AdapterExitRates[0])
	staking.SetRates(cfg.AdapterEntryRates[1], cfg.AdapterExitRates[1])
	liquidity.SetRates(cfg.AdapterEntryRates[2], cfg.AdapterExitRates[2])
	positions := adapters.NewSet(lending, staking, liquidity)

	// Price safety gate. Without a feed URL the gate runs on the manual
	// source and stays unsafe until samples arrive.
	var source oracle.Source
	if cfg.OracleFeedURL != "" {
		source = oracle.NewFeedSource(cfg.OracleFeedURL, log)
	} else {
		log.Warn().Msg("No oracle feed configured, using manual source")
		source = oracle.NewManualSource()
	}
	gate := oracle.NewGate(
		source,
		cfg.OracleAssets,
		time.Duration(cfg.OracleMaxAgeSeconds)*time.Second,
		cfg.OracleVolLimitBps,
		log,
	)

	// Share ledger
	vault := ledger.NewVault()
	ledgerRepo := ledger.NewRepository(db)
	ledgerService := ledger.NewService(vault, positions, ledgerRepo, eventManager, cfg.RebalanceToleranceBps, log)

	// History ledger
	historyRepo := history.NewRepository(db)

	// Rebalancing engine
	engine := rebalancing.NewEngine(vault, positions, gate, historyRepo, eventManager, cfg.RebalanceToleranceBps, log)

	// Initialize scheduler
	sched := scheduler.New(log)
	sched.Start()
	defer sched.Stop()

	// Register background jobs
	if err := registerJobs(sched, gate, ledgerService, eventManager, log); err != nil {
		log.Fatal().Err(err).Msg("Failed to register jobs")
	}

	// Initialize HTTP server
	srv := server.New(server.Config{
		Port:               cfg.Port,
		Log:                log,
		Config:             cfg,
		DevMode:            cfg.DevMode,
		LedgerHandler:      ledger.NewHandler(ledgerService, log),
		RebalancingHandler: rebalancing.NewHandler(engine, log),
		HistoryHandler:     history.NewHandler(historyRepo, log),
		OracleGate:         gate,
	})

	// Start server in goroutine
	go func() {
		if err := srv.Start(); err != nil {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	log.Info().Int("port", cfg.Port).Msg("Server started successfully")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}

func registerJobs(sched *scheduler.Scheduler, gate *oracle.Gate, ledgerService *ledger.Service, ev *events.Manager, log zerolog.Logger) error {
	refresh := scheduler.NewOracleRefreshJob(gate, ev, 20*time.Second, log)
	if err := sched.AddJob("@every 30s", refresh); err != nil {
		return err
	}
	// Prime the gate so the first rebalance attempt is not guaranteed stale
	_ = sched.RunNow(refresh)

	if err := sched.AddJob("0 0 0 * * *", scheduler.NewSnapshotJob(ledgerService, log)); err != nil {
		return err
	}
	return nil
}
