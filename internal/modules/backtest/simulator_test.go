package backtest

import (
	"math"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/regime-trader/internal/modules/marketdata"
)

func mustPriceTable(t *testing.T, symbols, dates []string, rows [][]float64) *marketdata.PriceTable {
	t.Helper()
	table, err := marketdata.NewPriceTable(symbols, dates, rows)
	require.NoError(t, err)
	return table
}

func TestNewSimulator_Validation(t *testing.T) {
	model := NewCostModel(0, 0)

	_, err := NewSimulator(nil, 10000, model, zerolog.Nop())
	assert.Error(t, err, "empty universe should be rejected")

	_, err = NewSimulator([]string{"A"}, 0, model, zerolog.Nop())
	assert.Error(t, err, "non-positive capital should be rejected")

	_, err = NewSimulator([]string{"A"}, 10000, model, zerolog.Nop())
	assert.NoError(t, err)
}

func TestSimulator_Run_InputMismatch(t *testing.T) {
	sim, err := NewSimulator([]string{"A", "B"}, 10000, NewCostModel(0, 0), zerolog.Nop())
	require.NoError(t, err)

	prices := mustPriceTable(t,
		[]string{"B", "A"},
		[]string{"2024-01-02"},
		[][]float64{{50, 100}},
	)
	_, err = sim.Run(prices, WeightTable{})
	assert.Error(t, err, "symbol order must match the universe")

	prices = mustPriceTable(t,
		[]string{"A", "B"},
		[]string{"2024-01-02"},
		[][]float64{{100, 50}},
	)
	_, err = sim.Run(prices, WeightTable{"2024-01-02": {0.5}})
	assert.Error(t, err, "weight vector length must match the universe")
}

func TestSimulator_Run_HandComputed(t *testing.T) {
	symbols := []string{"A", "B"}
	dates := []string{"2024-01-02", "2024-01-03", "2024-01-04"}
	prices := mustPriceTable(t, symbols, dates, [][]float64{
		{100, 50},
		{101, 49},
		{102, 50},
	})

	half := []float64{0.5, 0.5}
	targets := WeightTable{
		"2024-01-02": half,
		"2024-01-03": half,
		"2024-01-04": half,
	}

	sim, err := NewSimulator(symbols, 10000, NewCostModel(0, 0), zerolog.Nop())
	require.NoError(t, err)

	out, err := sim.Run(prices, targets)
	require.NoError(t, err)
	require.Len(t, out.Snapshots, 3)

	// Day 3 rebalances into A, which precedes the funding sell of B in
	// universe order, so that buy is skipped with cash at zero.
	assert.Equal(t, 1, out.SkippedBuys)

	// Day 1: full deployment at no cost keeps total value intact.
	assert.InDelta(t, 10000, out.Snapshots[0].TotalValue, 1e-9)
	assert.InDelta(t, 0, out.Snapshots[0].Cash, 1e-9)
	assert.InDelta(t, 0.5, out.Snapshots[0].Weights[0], 1e-12)
	assert.InDelta(t, 0.5, out.Snapshots[0].Weights[1], 1e-12)

	// Day 2: 50sh A at 101 plus 100sh B at 49 marks to 9950 before
	// the rebalance, which cannot change total value at zero cost.
	assert.InDelta(t, 9950, out.Snapshots[1].TotalValue, 1e-9)

	// Day 3: each half of the day-2 value compounds at its own gross
	// return. The skipped buy does not change total value, it only
	// leaves the sell proceeds parked in cash.
	expected := 10000.0 * 0.995 * ((102.0/101.0 + 50.0/49.0) / 2.0)
	assert.InDelta(t, expected, out.Snapshots[2].TotalValue, 1e-6)
	assert.Greater(t, out.Snapshots[2].Cash, 0.0)

	// Day 1 produces exactly one buy per symbol, in universe order.
	require.GreaterOrEqual(t, len(out.Trades), 2)
	assert.Equal(t, "A", out.Trades[0].Symbol)
	assert.Equal(t, SideBuy, out.Trades[0].Side)
	assert.InDelta(t, 50, out.Trades[0].Shares, 1e-9)
	assert.Equal(t, "B", out.Trades[1].Symbol)
	assert.InDelta(t, 100, out.Trades[1].Shares, 1e-9)
}

func TestSimulator_Run_CostDrag(t *testing.T) {
	symbols := []string{"A", "B"}
	dates := []string{"2024-01-02", "2024-01-03", "2024-01-04"}
	rows := [][]float64{
		{100, 50},
		{101, 49},
		{102, 50},
	}
	half := []float64{0.5, 0.5}
	targets := WeightTable{
		"2024-01-02": half,
		"2024-01-03": half,
		"2024-01-04": half,
	}

	free, err := NewSimulator(symbols, 10000, NewCostModel(0, 0), zerolog.Nop())
	require.NoError(t, err)
	costly, err := NewSimulator(symbols, 10000, NewCostModel(40, 10), zerolog.Nop())
	require.NoError(t, err)

	freeOut, err := free.Run(mustPriceTable(t, symbols, dates, rows), targets)
	require.NoError(t, err)
	costlyOut, err := costly.Run(mustPriceTable(t, symbols, dates, rows), targets)
	require.NoError(t, err)

	require.Len(t, costlyOut.Snapshots, len(freeOut.Snapshots))
	for i := range freeOut.Snapshots {
		assert.LessOrEqual(t, costlyOut.Snapshots[i].TotalValue, freeOut.Snapshots[i].TotalValue,
			"frictions can only reduce value (date %s)", freeOut.Snapshots[i].Date)
	}

	// Day 1 deploys 10000 of notional at 50 bps combined.
	assert.InDelta(t, 50, costlyOut.Snapshots[0].TradeCost, 1e-6)
	assert.Greater(t, freeOut.Snapshots[2].TotalValue, costlyOut.Snapshots[2].TotalValue)
}

func TestSimulator_Run_Conservation(t *testing.T) {
	// Across consecutive dates, value only changes through price moves on
	// held positions and the explicit friction deduction. Trades themselves
	// are value-neutral whether or not they fill.
	symbols := []string{"A", "B"}
	dates := []string{"2024-01-02", "2024-01-03", "2024-01-04"}
	rows := [][]float64{
		{100, 50},
		{101, 49},
		{102, 50},
	}
	half := []float64{0.5, 0.5}
	targets := WeightTable{
		"2024-01-02": half,
		"2024-01-03": half,
		"2024-01-04": half,
	}

	sim, err := NewSimulator(symbols, 10000, NewCostModel(40, 10), zerolog.Nop())
	require.NoError(t, err)

	out, err := sim.Run(mustPriceTable(t, symbols, dates, rows), targets)
	require.NoError(t, err)
	require.Len(t, out.Snapshots, 3)

	for i := 1; i < len(out.Snapshots); i++ {
		prev := out.Snapshots[i-1]
		cur := out.Snapshots[i]

		expected := prev.Cash
		for j := range symbols {
			expected += prev.Weights[j] * prev.TotalValue * (rows[i][j] / rows[i-1][j])
		}
		expected -= cur.TradeCost

		assert.InDelta(t, expected, cur.TotalValue, 1e-6, "date %s", cur.Date)
	}
}

func TestSimulator_Run_BuySkippedUntilSellFrees_Cash(t *testing.T) {
	// Rotating the whole portfolio from B into A: with universe order
	// [A, B] the buy of A is processed before the sell of B and must be
	// skipped for lack of cash. Reversing the universe order lets the
	// sell fund the buy. Same targets, different outcome.
	dates := []string{"2024-01-02", "2024-01-03"}
	rows := [][]float64{
		{10, 10},
		{10, 10},
	}

	simAB, err := NewSimulator([]string{"A", "B"}, 10000, NewCostModel(0, 0), zerolog.Nop())
	require.NoError(t, err)
	outAB, err := simAB.Run(
		mustPriceTable(t, []string{"A", "B"}, dates, rows),
		WeightTable{
			"2024-01-02": {0, 1},
			"2024-01-03": {1, 0},
		},
	)
	require.NoError(t, err)

	assert.Equal(t, 1, outAB.SkippedBuys)
	final := outAB.Snapshots[len(outAB.Snapshots)-1]
	assert.InDelta(t, 10000, final.Cash, 1e-9, "sell executed, buy skipped, all cash")
	assert.InDelta(t, 0, final.Weights[0], 1e-12)
	assert.InDelta(t, 0, final.Weights[1], 1e-12)

	simBA, err := NewSimulator([]string{"B", "A"}, 10000, NewCostModel(0, 0), zerolog.Nop())
	require.NoError(t, err)
	outBA, err := simBA.Run(
		mustPriceTable(t, []string{"B", "A"}, dates, rows),
		WeightTable{
			"2024-01-02": {1, 0},
			"2024-01-03": {0, 1},
		},
	)
	require.NoError(t, err)

	assert.Zero(t, outBA.SkippedBuys)
	final = outBA.Snapshots[len(outBA.Snapshots)-1]
	assert.InDelta(t, 1, final.Weights[1], 1e-9, "sell proceeds funded the buy")
}

func TestSimulator_Run_SkipsDatesWithGapsOrNoTargets(t *testing.T) {
	symbols := []string{"A", "B"}
	dates := []string{"2024-01-02", "2024-01-03", "2024-01-04", "2024-01-05"}
	prices := mustPriceTable(t, symbols, dates, [][]float64{
		{100, 50},
		{100, math.NaN()},
		{100, 50},
		{100, 50},
	})

	half := []float64{0.5, 0.5}
	targets := WeightTable{
		"2024-01-02": half,
		"2024-01-03": half,
		"2024-01-04": half,
		// 2024-01-05 has no target and is outside the horizon
	}

	sim, err := NewSimulator(symbols, 10000, NewCostModel(0, 0), zerolog.Nop())
	require.NoError(t, err)

	out, err := sim.Run(prices, targets)
	require.NoError(t, err)

	require.Len(t, out.Snapshots, 2)
	assert.Equal(t, "2024-01-02", out.Snapshots[0].Date)
	assert.Equal(t, "2024-01-04", out.Snapshots[1].Date)
}

func TestSimulator_Run_ExactlyFundedRebalance(t *testing.T) {
	// Rotations where sell proceeds exactly cover the buy notional must
	// not trip the insufficient-cash check on float drift.
	symbols := []string{"A", "B"}
	dates := []string{"2024-01-02", "2024-01-03", "2024-01-04"}
	prices := mustPriceTable(t, symbols, dates, [][]float64{
		{3, 7},
		{3.1, 6.9},
		{2.9, 7.2},
	})

	sim, err := NewSimulator(symbols, 10000, NewCostModel(0, 0), zerolog.Nop())
	require.NoError(t, err)

	// Each rebalance sells A (first in order) and buys B with exactly
	// the freed proceeds.
	out, err := sim.Run(prices, WeightTable{
		"2024-01-02": {0.9, 0.1},
		"2024-01-03": {0.1, 0.9},
		"2024-01-04": {0.05, 0.95},
	})
	require.NoError(t, err)

	assert.Zero(t, out.SkippedBuys)
	for _, snap := range out.Snapshots {
		assert.GreaterOrEqual(t, snap.Cash, -1e-6, "cash must never go meaningfully negative")
	}
}
