package formulas

import (
	"math"

	"github.com/markcheno/go-talib"
)

// RollingStdDev calculates the rolling sample standard deviation over a
// window.
//
// The first window-1 entries of the result are NaN (insufficient data),
// mirroring how a rolling window leaves the warm-up period undefined.
//
// Args:
//   values: Input series (e.g. daily returns)
//   window: Rolling window length in periods
//
// Returns:
//   Slice of the same length as values, NaN-padded at the front
func RollingStdDev(values []float64, window int) []float64 {
	out := make([]float64, len(values))
	for i := range out {
		out[i] = math.NaN()
	}
	if window < 2 || len(values) < window {
		return out
	}

	// talib's rolling stddev is the population figure; rescale to the
	// sample convention used by the rest of the stats helpers
	std := talib.StdDev(values, window, 1.0)
	scale := math.Sqrt(float64(window) / float64(window-1))
	for i := window - 1; i < len(values); i++ {
		out[i] = std[i] * scale
	}

	return out
}

// RollingMean calculates the rolling arithmetic mean over a window.
// NaN-padded at the front like RollingStdDev.
func RollingMean(values []float64, window int) []float64 {
	out := make([]float64, len(values))
	for i := range out {
		out[i] = math.NaN()
	}
	if window < 1 || len(values) < window {
		return out
	}

	sma := talib.Sma(values, window)
	for i := window - 1; i < len(values); i++ {
		out[i] = sma[i]
	}

	return out
}
