package marketdata

import (
	"math"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAnalyzer(volWindow int) *Analyzer {
	return NewAnalyzer(AnalyzerConfig{
		VolWindow:        volWindow,
		HighVolThreshold: 0.015,
		LowVolThreshold:  0.005,
	}, zerolog.Nop())
}

func TestAnalyzer_LogReturns_KnownValues(t *testing.T) {
	prices, err := NewPriceTable(
		[]string{"SPY", "GLD"},
		[]string{"2024-01-02", "2024-01-03", "2024-01-04"},
		[][]float64{
			{100, 50},
			{110, 50},
			{99, 55},
		},
	)
	require.NoError(t, err)

	returns := newTestAnalyzer(2).LogReturns(prices)

	require.Len(t, returns.Rows, 2)
	assert.Equal(t, []string{"2024-01-03", "2024-01-04"}, returns.Dates,
		"returns are labelled with the interval end date")

	assert.InDelta(t, math.Log(1.1), returns.Rows[0][0], 1e-12)
	assert.InDelta(t, 0, returns.Rows[0][1], 1e-12)
	assert.InDelta(t, math.Log(0.9), returns.Rows[1][0], 1e-12)
	assert.InDelta(t, math.Log(1.1), returns.Rows[1][1], 1e-12)
}

func TestAnalyzer_LogReturns_DropsGapRows(t *testing.T) {
	// A missing price poisons both adjacent return intervals; those rows
	// are dropped for every symbol, not filled.
	prices, err := NewPriceTable(
		[]string{"SPY", "GLD"},
		[]string{"2024-01-02", "2024-01-03", "2024-01-04", "2024-01-05"},
		[][]float64{
			{100, 50},
			{101, math.NaN()},
			{102, 51},
			{103, 52},
		},
	)
	require.NoError(t, err)

	returns := newTestAnalyzer(2).LogReturns(prices)

	require.Len(t, returns.Rows, 1)
	assert.Equal(t, []string{"2024-01-05"}, returns.Dates)
	assert.InDelta(t, math.Log(103.0/102.0), returns.Rows[0][0], 1e-12)
	assert.InDelta(t, math.Log(52.0/51.0), returns.Rows[0][1], 1e-12)
}

func TestAnalyzer_ClassifyRegime_Boundaries(t *testing.T) {
	a := newTestAnalyzer(21)

	tests := []struct {
		vol  float64
		want Regime
	}{
		{0.020, RegimeHighVol},
		{0.015, RegimeHighVol}, // boundary is inclusive
		{0.014, RegimeNormalVol},
		{0.006, RegimeNormalVol},
		{0.005, RegimeLowVol}, // boundary is inclusive
		{0.001, RegimeLowVol},
		{0.0, RegimeLowVol},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, a.ClassifyRegime(tt.vol), "vol=%f", tt.vol)
	}
}

func TestAnalyzer_RollingVolatility(t *testing.T) {
	returns := &ReturnSeries{
		Symbols: []string{"SPY"},
		Dates:   []string{"2024-01-03", "2024-01-04", "2024-01-05"},
		Rows: [][]float64{
			{0.01},
			{0.01},
			{0.03},
		},
	}

	points := newTestAnalyzer(2).RollingVolatility(returns)

	// Warm-up dates carry no estimate
	require.Len(t, points, 2)

	assert.Equal(t, "2024-01-04", points[0].Date)
	assert.InDelta(t, 0, points[0].Value, 1e-12)
	assert.Equal(t, RegimeLowVol, points[0].Regime)

	// Sample stddev of {0.01, 0.03} over the 2-day window
	assert.Equal(t, "2024-01-05", points[1].Date)
	assert.InDelta(t, 0.01*math.Sqrt2, points[1].Value, 1e-12)
	assert.Equal(t, RegimeNormalVol, points[1].Regime)
}

func TestAnalyzer_RollingVolatility_Empty(t *testing.T) {
	a := newTestAnalyzer(21)
	assert.Nil(t, a.RollingVolatility(&ReturnSeries{Symbols: []string{"SPY"}}))
}

func TestRegimeByDate(t *testing.T) {
	points := []VolatilityPoint{
		{Date: "2024-01-04", Value: 0.001, Regime: RegimeLowVol},
		{Date: "2024-01-05", Value: 0.020, Regime: RegimeHighVol},
	}

	regimes := RegimeByDate(points)
	assert.Len(t, regimes, 2)
	assert.Equal(t, RegimeLowVol, regimes["2024-01-04"])
	assert.Equal(t, RegimeHighVol, regimes["2024-01-05"])
}

func TestNewPriceTable_Validation(t *testing.T) {
	_, err := NewPriceTable(nil, nil, nil)
	assert.Error(t, err, "empty universe")

	_, err = NewPriceTable([]string{"SPY"}, []string{"2024-01-02"}, nil)
	assert.Error(t, err, "row count mismatch")

	_, err = NewPriceTable(
		[]string{"SPY"},
		[]string{"2024-01-03", "2024-01-02"},
		[][]float64{{100}, {101}},
	)
	assert.Error(t, err, "dates must be strictly increasing")

	table, err := NewPriceTable(
		[]string{"SPY"},
		[]string{"2024-01-02", "2024-01-03"},
		[][]float64{{100}, {math.NaN()}},
	)
	require.NoError(t, err)
	assert.False(t, table.HasGap(0))
	assert.True(t, table.HasGap(1))
}
