package scheduler

import (
	"github.com/rs/zerolog"

	"github.com/aristath/regime-trader/internal/modules/backtest"
	"github.com/aristath/regime-trader/internal/modules/marketdata"
)

// BacktestRefreshJob re-runs the full backtest over the stored price
// history and persists the result, so the latest run always reflects the
// newest synced prices.
type BacktestRefreshJob struct {
	symbols []string
	prices  *marketdata.PriceRepository
	engine  *backtest.Engine
	results *backtest.ResultRepository
	log     zerolog.Logger
}

// BacktestRefreshConfig holds configuration for the refresh job
type BacktestRefreshConfig struct {
	Symbols []string
	Prices  *marketdata.PriceRepository
	Engine  *backtest.Engine
	Results *backtest.ResultRepository
	Log     zerolog.Logger
}

// NewBacktestRefreshJob creates a new backtest refresh job
func NewBacktestRefreshJob(cfg BacktestRefreshConfig) *BacktestRefreshJob {
	return &BacktestRefreshJob{
		symbols: cfg.Symbols,
		prices:  cfg.Prices,
		engine:  cfg.Engine,
		results: cfg.Results,
		log:     cfg.Log.With().Str("job", "backtest_refresh").Logger(),
	}
}

// Name returns the job name
func (j *BacktestRefreshJob) Name() string {
	return "backtest_refresh"
}

// Run executes the refresh
func (j *BacktestRefreshJob) Run() error {
	prices, err := j.prices.BuildPriceTable(j.symbols)
	if err != nil {
		return err
	}

	result, err := j.engine.Run(prices)
	if err != nil {
		return err
	}

	if err := j.results.SaveRun(result); err != nil {
		return err
	}

	j.log.Info().
		Str("run_id", result.RunID).
		Float64("final_value", result.Summary.FinalValue).
		Msg("Scheduled backtest refresh completed")

	return nil
}
