package formulas

import (
	"math"
)

// DailyRiskFreeRate converts an annual risk-free rate to its daily
// equivalent: (1 + annual)^(1/252) - 1.
func DailyRiskFreeRate(annualRate float64) float64 {
	return math.Pow(1+annualRate, 1.0/TradingDaysPerYear) - 1
}

// CalculateSharpeRatio calculates the annualized Sharpe Ratio from daily returns
//
// Sharpe Formula:
//
//	Sharpe = Annualized Mean Excess Return / Annualized Std Dev of Excess Returns
//
// Args:
//
//	returns: Array of daily returns
//	riskFreeRateAnnual: Risk-free rate (annual, as decimal, e.g. 0.02 for 2%)
//
// Returns:
//
//	Sharpe ratio or nil if insufficient data or zero volatility
func CalculateSharpeRatio(returns []float64, riskFreeRateAnnual float64) *float64 {
	if len(returns) < 2 {
		return nil
	}

	dailyRiskFree := DailyRiskFreeRate(riskFreeRateAnnual)
	excess := make([]float64, len(returns))
	for i, r := range returns {
		excess[i] = r - dailyRiskFree
	}

	stdDev := StdDev(excess)
	if stdDev == 0 {
		return nil
	}

	sharpe := (Mean(excess) * TradingDaysPerYear) / (stdDev * math.Sqrt(TradingDaysPerYear))
	return &sharpe
}

// CalculateSortinoRatio calculates the annualized Sortino Ratio from daily returns.
// Like Sharpe but penalizes only downside deviation (excess returns below zero).
//
// Returns nil when there is no downside at all or the downside deviation is
// zero; callers treat nil as "not meaningful" rather than infinite.
func CalculateSortinoRatio(returns []float64, riskFreeRateAnnual float64) *float64 {
	if len(returns) < 2 {
		return nil
	}

	dailyRiskFree := DailyRiskFreeRate(riskFreeRateAnnual)

	var downside []float64
	var excessSum float64
	for _, r := range returns {
		excess := r - dailyRiskFree
		excessSum += excess
		if excess < 0 {
			downside = append(downside, excess)
		}
	}

	// Sample stddev needs at least two observations
	if len(downside) < 2 {
		return nil
	}

	downsideDeviation := StdDev(downside)
	if downsideDeviation == 0 {
		return nil
	}

	meanExcess := excessSum / float64(len(returns))
	sortino := (meanExcess * TradingDaysPerYear) / (downsideDeviation * math.Sqrt(TradingDaysPerYear))
	return &sortino
}

// CalculateCalmarRatio calculates the Calmar Ratio: annualized return over
// the absolute maximum drawdown.
//
// Returns nil when maxDrawdown is zero (undefined ratio).
func CalculateCalmarRatio(returns []float64, maxDrawdown float64) *float64 {
	if len(returns) == 0 || maxDrawdown == 0 {
		return nil
	}

	calmar := AnnualizedReturn(returns) / math.Abs(maxDrawdown)
	return &calmar
}
