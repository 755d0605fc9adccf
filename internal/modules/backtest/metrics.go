package backtest

import (
	"github.com/aristath/regime-trader/pkg/formulas"
)

// Summarize computes performance statistics over a simulation's equity
// curve. Pure reduction: it never touches simulator state.
func Summarize(out *SimulationOutput, initialCapital, riskFreeRateAnnual float64) Summary {
	summary := Summary{
		InitialCapital: initialCapital,
		NumDates:       len(out.Snapshots),
		NumTrades:      len(out.Trades),
		SkippedBuys:    out.SkippedBuys,
	}

	if len(out.Snapshots) == 0 {
		summary.FinalValue = initialCapital
		return summary
	}

	values := make([]float64, len(out.Snapshots))
	for i, snap := range out.Snapshots {
		values[i] = snap.TotalValue
	}

	summary.FinalValue = values[len(values)-1]
	if initialCapital != 0 {
		summary.CumulativeReturn = summary.FinalValue/initialCapital - 1
	}

	returns := formulas.CalculateReturns(values)
	summary.AnnualizedReturn = formulas.AnnualizedReturn(returns)
	summary.AnnualizedVolatility = formulas.AnnualizedVolatility(returns)

	if maxDD := formulas.CalculateMaxDrawdown(values); maxDD != nil {
		summary.MaxDrawdown = *maxDD
		summary.CalmarRatio = formulas.CalculateCalmarRatio(returns, *maxDD)
	}

	summary.SharpeRatio = formulas.CalculateSharpeRatio(returns, riskFreeRateAnnual)
	summary.SortinoRatio = formulas.CalculateSortinoRatio(returns, riskFreeRateAnnual)

	return summary
}
