package marketdata

import (
	"math"

	"github.com/rs/zerolog"

	"github.com/aristath/regime-trader/pkg/formulas"
)

// Analyzer derives return series, rolling volatility and regime labels
// from a price table.
type Analyzer struct {
	volWindow        int
	highVolThreshold float64
	lowVolThreshold  float64
	log              zerolog.Logger
}

// AnalyzerConfig holds analyzer parameters
type AnalyzerConfig struct {
	VolWindow        int
	HighVolThreshold float64
	LowVolThreshold  float64
}

// NewAnalyzer creates a new market analyzer
func NewAnalyzer(cfg AnalyzerConfig, log zerolog.Logger) *Analyzer {
	return &Analyzer{
		volWindow:        cfg.VolWindow,
		highVolThreshold: cfg.HighVolThreshold,
		lowVolThreshold:  cfg.LowVolThreshold,
		log:              log.With().Str("component", "analyzer").Logger(),
	}
}

// LogReturns derives the daily log-return series from a price table.
// Rows where any symbol's return is undefined (price gap or non-positive
// price on either end of the interval) are dropped entirely.
func (a *Analyzer) LogReturns(prices *PriceTable) *ReturnSeries {
	n := len(prices.Symbols)

	perSymbol := make([][]float64, n)
	for j := range prices.Symbols {
		col := make([]float64, prices.NumDates())
		for i := range prices.Rows {
			col[i] = prices.Rows[i][j]
		}
		perSymbol[j] = formulas.CalculateLogReturns(col)
	}

	var dates []string
	var rows [][]float64
	for i := 0; i < prices.NumDates()-1; i++ {
		row := make([]float64, n)
		complete := true
		for j := 0; j < n; j++ {
			row[j] = perSymbol[j][i]
			if math.IsNaN(row[j]) {
				complete = false
			}
		}
		if !complete {
			continue
		}
		dates = append(dates, prices.Dates[i+1])
		rows = append(rows, row)
	}

	a.log.Debug().
		Int("num_dates", len(dates)).
		Int("num_symbols", n).
		Msg("Calculated log returns")

	return &ReturnSeries{Symbols: prices.Symbols, Dates: dates, Rows: rows}
}

// RollingVolatility computes the cross-sectional average of each asset's
// rolling daily return standard deviation, labelled with its regime.
//
// The first volWindow-1 return dates have no volatility estimate and are
// omitted from the result.
func (a *Analyzer) RollingVolatility(returns *ReturnSeries) []VolatilityPoint {
	n := len(returns.Symbols)
	if n == 0 || len(returns.Rows) == 0 {
		return nil
	}

	rolling := make([][]float64, n)
	for j := 0; j < n; j++ {
		col := make([]float64, len(returns.Rows))
		for i := range returns.Rows {
			col[i] = returns.Rows[i][j]
		}
		rolling[j] = formulas.RollingStdDev(col, a.volWindow)
	}

	var points []VolatilityPoint
	for i := range returns.Rows {
		sum := 0.0
		valid := true
		for j := 0; j < n; j++ {
			if math.IsNaN(rolling[j][i]) {
				valid = false
				break
			}
			sum += rolling[j][i]
		}
		if !valid {
			continue
		}
		vol := sum / float64(n)
		points = append(points, VolatilityPoint{
			Date:   returns.Dates[i],
			Value:  vol,
			Regime: a.ClassifyRegime(vol),
		})
	}

	a.log.Debug().
		Int("num_points", len(points)).
		Int("window", a.volWindow).
		Msg("Calculated rolling volatility")

	return points
}

// ClassifyRegime maps a daily volatility value to its regime label.
// value >= high threshold -> High_Vol; value <= low threshold -> Low_Vol;
// otherwise Normal_Vol.
func (a *Analyzer) ClassifyRegime(vol float64) Regime {
	switch {
	case vol >= a.highVolThreshold:
		return RegimeHighVol
	case vol <= a.lowVolThreshold:
		return RegimeLowVol
	default:
		return RegimeNormalVol
	}
}

// RegimeByDate indexes volatility points by date for lookup at rebalance dates.
func RegimeByDate(points []VolatilityPoint) map[string]Regime {
	regimes := make(map[string]Regime, len(points))
	for _, p := range points {
		regimes[p.Date] = p.Regime
	}
	return regimes
}
