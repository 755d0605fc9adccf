package backtest

import (
	"fmt"
	"math"

	"github.com/rs/zerolog"

	"github.com/aristath/regime-trader/internal/modules/marketdata"
)

// Simulator replays a target-weight strategy against historical prices with
// share-based execution, maintaining cash and holdings state across dates.
//
// The simulation is inherently sequential: each date's realized weights,
// cash and value feed the next date's cost computation, and within a date
// trades execute in fixed universe order because later buys depend on cash
// consumed by earlier ones. Neither ordering may be changed.
type Simulator struct {
	symbols        []string
	initialCapital float64
	costModel      *CostModel
	log            zerolog.Logger
}

// NewSimulator creates a new portfolio simulator
func NewSimulator(symbols []string, initialCapital float64, costModel *CostModel, log zerolog.Logger) (*Simulator, error) {
	if len(symbols) == 0 {
		return nil, fmt.Errorf("simulator requires a non-empty asset universe")
	}
	if initialCapital <= 0 {
		return nil, fmt.Errorf("initial capital must be positive, got %f", initialCapital)
	}

	return &Simulator{
		symbols:        symbols,
		initialCapital: initialCapital,
		costModel:      costModel,
		log:            log.With().Str("component", "simulator").Logger(),
	}, nil
}

// SimulationOutput is the raw product of one simulation pass.
type SimulationOutput struct {
	Snapshots   []Snapshot
	Trades      []Trade
	SkippedBuys int
}

// Run replays the strategy over the joined price/weight tables.
//
// Per date: mark holdings to market, charge the friction cost of moving
// from the previous realized weights to the target (paid up front whether
// or not trades fill), then trade toward target share counts symbol by
// symbol. Buys that the remaining cash cannot cover in full are skipped
// outright, leaving that symbol desynchronized from its target for the
// step; sells always execute. Dates missing a price or a weight vector are
// dropped, never interpolated.
func (s *Simulator) Run(prices *marketdata.PriceTable, targets WeightTable) (*SimulationOutput, error) {
	n := len(s.symbols)

	if len(prices.Symbols) != n {
		return nil, fmt.Errorf("price table has %d symbols, universe has %d", len(prices.Symbols), n)
	}
	for i, sym := range prices.Symbols {
		if sym != s.symbols[i] {
			return nil, fmt.Errorf("price table symbol order mismatch at %d: %s != %s", i, sym, s.symbols[i])
		}
	}
	for date, w := range targets {
		if len(w) != n {
			return nil, fmt.Errorf("weight vector for %s has %d entries, expected %d", date, len(w), n)
		}
	}

	cash := s.initialCapital
	holdings := make([]float64, n)
	prevWeights := make([]float64, n)

	out := &SimulationOutput{}

	for i, date := range prices.Dates {
		target, ok := targets[date]
		if !ok {
			continue // no target weights for this date (outside the strategy horizon)
		}
		if prices.HasGap(i) {
			s.log.Debug().Str("date", date).Msg("Skipping date due to missing prices")
			continue
		}
		row := prices.Rows[i]

		// Mark existing holdings to market
		value := cash
		for j := 0; j < n; j++ {
			value += holdings[j] * row[j]
		}

		// Friction cost is charged immediately, before execution
		cost := s.costModel.Cost(prevWeights, target, value)
		cash -= cost
		postCostValue := value - cost

		// Trade toward target share counts, fixed universe order
		for j := 0; j < n; j++ {
			targetShares := target[j] * postCostValue / row[j]
			delta := targetShares - holdings[j]

			if delta > 0 {
				notional := delta * row[j]
				if notional <= cash+cashTolerance(cash) {
					holdings[j] += delta
					cash -= notional
					out.Trades = append(out.Trades, Trade{
						Date:      date,
						Symbol:    s.symbols[j],
						Side:      SideBuy,
						Shares:    delta,
						Price:     row[j],
						CostShare: notional * s.costModel.CombinedRate(),
					})
				} else {
					out.SkippedBuys++
					s.log.Warn().
						Str("date", date).
						Str("symbol", s.symbols[j]).
						Float64("shares", delta).
						Float64("notional", notional).
						Float64("cash", cash).
						Msg("Insufficient cash, skipping buy")
				}
			} else if delta < 0 {
				notional := -delta * row[j]
				holdings[j] += delta
				cash += notional
				out.Trades = append(out.Trades, Trade{
					Date:      date,
					Symbol:    s.symbols[j],
					Side:      SideSell,
					Shares:    -delta,
					Price:     row[j],
					CostShare: notional * s.costModel.CombinedRate(),
				})
			}
		}

		// Record end-of-date state
		assetValue := 0.0
		for j := 0; j < n; j++ {
			assetValue += holdings[j] * row[j]
		}
		total := assetValue + cash

		weights := make([]float64, n)
		if total != 0 {
			for j := 0; j < n; j++ {
				weights[j] = holdings[j] * row[j] / total
			}
		}

		out.Snapshots = append(out.Snapshots, Snapshot{
			Date:       date,
			TotalValue: total,
			Cash:       cash,
			AssetValue: assetValue,
			TradeCost:  cost,
			Weights:    weights,
		})

		prevWeights = weights
	}

	s.log.Info().
		Int("num_dates", len(out.Snapshots)).
		Int("num_trades", len(out.Trades)).
		Int("skipped_buys", out.SkippedBuys).
		Msg("Simulation completed")

	return out, nil
}

// cashTolerance absorbs rounding drift between same-step sell proceeds and
// buy notionals so an exactly-funded rebalance is not spuriously skipped.
func cashTolerance(cash float64) float64 {
	return 1e-9 * math.Max(1, math.Abs(cash))
}
