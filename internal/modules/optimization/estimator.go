package optimization

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Moments holds the estimated first and second moments of a return window.
// Values are per-period (daily); annualization happens in the allocator.
type Moments struct {
	ExpectedReturns []float64     // per-symbol mean daily return
	Covariance      *mat.SymDense // sample covariance of daily returns
}

// EstimateMoments computes the mean return vector and sample covariance
// matrix of a return window (R rows by N symbols, universe order).
//
// Pure function: identical windows yield identical output. A zero-row
// window returns ErrEmptyWindow.
func EstimateMoments(window [][]float64) (*Moments, error) {
	if len(window) == 0 {
		return nil, ErrEmptyWindow
	}

	n := len(window[0])
	if n == 0 {
		return nil, fmt.Errorf("return window has no symbols")
	}
	for i, row := range window {
		if len(row) != n {
			return nil, fmt.Errorf("return window row %d has %d entries, expected %d", i, len(row), n)
		}
	}

	r := len(window)
	data := mat.NewDense(r, n, nil)
	for i, row := range window {
		data.SetRow(i, row)
	}

	mu := make([]float64, n)
	for j := 0; j < n; j++ {
		mu[j] = stat.Mean(mat.Col(nil, j, data), nil)
	}

	sigma := mat.NewSymDense(n, nil)
	if r > 1 {
		stat.CovarianceMatrix(sigma, data, nil)
	}
	// With a single observation the sample covariance is undefined;
	// leave it at zero and let the allocator's fallback handle the
	// degenerate problem.

	return &Moments{ExpectedReturns: mu, Covariance: sigma}, nil
}
