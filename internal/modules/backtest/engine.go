package backtest

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/aristath/regime-trader/internal/modules/marketdata"
	"github.com/aristath/regime-trader/internal/modules/strategy"
)

// EngineConfig holds backtest orchestration parameters
type EngineConfig struct {
	OptimizationWindow int     // trailing return window for moment estimation
	RebalanceInterval  int     // trading days between weight recomputations
	InitialCapital     float64
	RiskFreeRateAnnual float64
}

// Engine orchestrates a full backtest: returns and regimes from prices,
// per-rebalance-date target weights from the regime strategy, then the
// sequential share-based simulation and the performance summary.
type Engine struct {
	cfg      EngineConfig
	analyzer *marketdata.Analyzer
	selector *strategy.Selector
	sim      *Simulator
	log      zerolog.Logger
}

// NewEngine creates a new backtest engine
func NewEngine(cfg EngineConfig, analyzer *marketdata.Analyzer, selector *strategy.Selector, sim *Simulator, log zerolog.Logger) *Engine {
	return &Engine{
		cfg:      cfg,
		analyzer: analyzer,
		selector: selector,
		sim:      sim,
		log:      log.With().Str("component", "engine").Logger(),
	}
}

// Run executes a backtest over the given price table.
func (e *Engine) Run(prices *marketdata.PriceTable) (*Result, error) {
	startedAt := time.Now().UTC()

	returns := e.analyzer.LogReturns(prices)
	if len(returns.Rows) <= e.cfg.OptimizationWindow {
		return nil, fmt.Errorf("not enough return history: have %d rows, need more than %d",
			len(returns.Rows), e.cfg.OptimizationWindow)
	}

	regimes := marketdata.RegimeByDate(e.analyzer.RollingVolatility(returns))
	targets := e.buildWeightTable(returns, regimes)

	out, err := e.sim.Run(prices, targets)
	if err != nil {
		return nil, err
	}

	result := &Result{
		RunID:      uuid.New().String(),
		StartedAt:  startedAt.Format(time.RFC3339),
		FinishedAt: time.Now().UTC().Format(time.RFC3339),
		Symbols:    prices.Symbols,
		Snapshots:  out.Snapshots,
		Trades:     out.Trades,
		Summary:    Summarize(out, e.cfg.InitialCapital, e.cfg.RiskFreeRateAnnual),
	}

	e.log.Info().
		Str("run_id", result.RunID).
		Float64("final_value", result.Summary.FinalValue).
		Int("num_dates", result.Summary.NumDates).
		Int("skipped_buys", result.Summary.SkippedBuys).
		Msg("Backtest completed")

	return result, nil
}

// buildWeightTable computes target weights at every rebalance date and
// forward-fills them to the dates in between.
//
// Each rebalance-date computation is pure (trailing window in, weight
// vector out), so they run concurrently; only the simulation itself is
// order-dependent.
func (e *Engine) buildWeightTable(returns *marketdata.ReturnSeries, regimes map[string]marketdata.Regime) WeightTable {
	var rebalanceIdx []int
	for i := e.cfg.OptimizationWindow; i < len(returns.Rows); i += e.cfg.RebalanceInterval {
		rebalanceIdx = append(rebalanceIdx, i)
	}

	weightsAt := make([][]float64, len(rebalanceIdx))
	var wg sync.WaitGroup
	for k, idx := range rebalanceIdx {
		wg.Add(1)
		go func(k, idx int) {
			defer wg.Done()
			date := returns.Dates[idx]
			regime, ok := regimes[date]
			if !ok {
				regime = marketdata.RegimeNormalVol
			}
			window := returns.Window(idx-e.cfg.OptimizationWindow, idx)
			weightsAt[k] = e.selector.TargetWeights(regime, window)
		}(k, idx)
	}
	wg.Wait()

	targets := make(WeightTable)
	for k, idx := range rebalanceIdx {
		end := len(returns.Dates)
		if k+1 < len(rebalanceIdx) {
			end = rebalanceIdx[k+1]
		}
		for i := idx; i < end; i++ {
			targets[returns.Dates[i]] = weightsAt[k]
		}
	}

	e.log.Debug().
		Int("num_rebalances", len(rebalanceIdx)).
		Int("num_target_dates", len(targets)).
		Msg("Built target weight table")

	return targets
}
