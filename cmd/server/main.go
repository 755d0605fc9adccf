package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aristath/regime-trader/internal/config"
	"github.com/aristath/regime-trader/internal/database"
	"github.com/aristath/regime-trader/internal/modules/backtest"
	"github.com/aristath/regime-trader/internal/modules/marketdata"
	"github.com/aristath/regime-trader/internal/modules/optimization"
	"github.com/aristath/regime-trader/internal/modules/strategy"
	"github.com/aristath/regime-trader/internal/scheduler"
	"github.com/aristath/regime-trader/internal/server"
	"github.com/aristath/regime-trader/pkg/logger"
)

func main() {
	// Load configuration first so the log level is honored
	cfg, err := config.Load()
	if err != nil {
		fallback := logger.New(logger.Config{Level: "info", Pretty: true})
		fallback.Fatal().Err(err).Msg("Invalid configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})
	logger.SetGlobalLogger(log)

	log.Info().
		Strs("symbols", cfg.AssetSymbols).
		Bool("dev_mode", cfg.DevMode).
		Msg("Starting regime trader")

	// Results database
	db, err := database.New(cfg.DatabasePath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("Failed to run migrations")
	}

	// Market data
	priceRepo := marketdata.NewPriceRepository(cfg.HistoryDir, log)
	if cfg.DevMode {
		start := time.Now().AddDate(-4, 0, 0)
		seeded, err := marketdata.SeedSampleHistory(priceRepo, cfg.AssetSymbols, start, 1000)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to seed sample history")
		}
		if seeded > 0 {
			log.Info().Int("symbols", seeded).Msg("Seeded sample price history")
		}
	}

	analyzer := marketdata.NewAnalyzer(marketdata.AnalyzerConfig{
		VolWindow:        cfg.VolWindow,
		HighVolThreshold: cfg.HighVolThreshold,
		LowVolThreshold:  cfg.LowVolThreshold,
	}, log)

	// Strategy + simulation
	allocator := optimization.NewAllocator(log)
	selector := strategy.NewSelector(strategy.Config{
		TargetRiskAnnual:   cfg.TargetRiskAnnual,
		RiskAversionLambda: cfg.RiskAversionLambda,
	}, cfg.AssetSymbols, allocator, log)

	costModel := backtest.NewCostModel(cfg.TransactionCostBps, cfg.SlippageBps)
	simulator, err := backtest.NewSimulator(cfg.AssetSymbols, cfg.InitialCapital, costModel, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to construct simulator")
	}

	engine := backtest.NewEngine(backtest.EngineConfig{
		OptimizationWindow: cfg.OptimizationWindow,
		RebalanceInterval:  cfg.RebalanceInterval,
		InitialCapital:     cfg.InitialCapital,
		RiskFreeRateAnnual: cfg.RiskFreeRateAnnual,
	}, analyzer, selector, simulator, log)

	resultRepo := backtest.NewResultRepository(db.Conn(), log)

	// Scheduler
	sched := scheduler.New(log)
	refreshJob := scheduler.NewBacktestRefreshJob(scheduler.BacktestRefreshConfig{
		Symbols: cfg.AssetSymbols,
		Prices:  priceRepo,
		Engine:  engine,
		Results: resultRepo,
		Log:     log,
	})
	if err := sched.AddJob("@daily", refreshJob); err != nil {
		log.Fatal().Err(err).Msg("Failed to register refresh job")
	}
	sched.Start()
	defer sched.Stop()

	// HTTP server
	srv := server.New(server.Config{
		Port:      cfg.Port,
		Log:       log,
		AppConfig: cfg,
		Engine:    engine,
		Results:   resultRepo,
		Prices:    priceRepo,
		Analyzer:  analyzer,
		DevMode:   cfg.DevMode,
	})

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

	log.Info().Msg("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}
