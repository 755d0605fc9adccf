package backtest

import "math"

// CostModel computes per-step trading frictions as a fraction of notional
// traded: transaction cost plus slippage, symmetric for buys and sells.
type CostModel struct {
	transactionCostRate float64
	slippageRate        float64
}

// NewCostModel builds a cost model from basis-point rates.
func NewCostModel(transactionCostBps, slippageBps float64) *CostModel {
	return &CostModel{
		transactionCostRate: transactionCostBps / 10000,
		slippageRate:        slippageBps / 10000,
	}
}

// CombinedRate returns the total fractional rate charged on traded notional.
func (c *CostModel) CombinedRate() float64 {
	return c.transactionCostRate + c.slippageRate
}

// Cost returns the friction cost of moving a portfolio of the given value
// from oldWeights to newWeights: turnover notional times the combined rate.
// Always non-negative.
func (c *CostModel) Cost(oldWeights, newWeights []float64, portfolioValue float64) float64 {
	var turnover float64
	for i := range newWeights {
		old := 0.0
		if i < len(oldWeights) {
			old = oldWeights[i]
		}
		turnover += math.Abs(newWeights[i]*portfolioValue - old*portfolioValue)
	}
	return turnover * c.CombinedRate()
}
