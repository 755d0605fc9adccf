package optimization

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEstimateMoments_KnownValues(t *testing.T) {
	window := [][]float64{
		{0.01, 0.02},
		{0.03, -0.01},
		{0.02, 0.04},
	}

	moments, err := EstimateMoments(window)
	require.NoError(t, err)
	require.Len(t, moments.ExpectedReturns, 2)

	assert.InDelta(t, 0.02, moments.ExpectedReturns[0], 1e-12)
	assert.InDelta(t, 0.05/3, moments.ExpectedReturns[1], 1e-12)

	// Hand-computed sample covariance (divisor R-1)
	assert.InDelta(t, 1.0e-4, moments.Covariance.At(0, 0), 1e-12)
	assert.InDelta(t, 6.333333333e-4, moments.Covariance.At(1, 1), 1e-10)
	assert.InDelta(t, -1.5e-4, moments.Covariance.At(0, 1), 1e-10)

	// Symmetry
	assert.Equal(t, moments.Covariance.At(0, 1), moments.Covariance.At(1, 0))
}

func TestEstimateMoments_Idempotent(t *testing.T) {
	window := [][]float64{
		{0.005, -0.002, 0.001},
		{-0.01, 0.004, 0.0},
		{0.002, 0.001, -0.003},
		{0.007, -0.006, 0.002},
	}

	first, err := EstimateMoments(window)
	require.NoError(t, err)
	second, err := EstimateMoments(window)
	require.NoError(t, err)

	assert.Equal(t, first.ExpectedReturns, second.ExpectedReturns)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			assert.Equal(t, first.Covariance.At(i, j), second.Covariance.At(i, j))
		}
	}
}

func TestEstimateMoments_EmptyWindow(t *testing.T) {
	_, err := EstimateMoments(nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrEmptyWindow))

	_, err = EstimateMoments([][]float64{})
	assert.True(t, errors.Is(err, ErrEmptyWindow))
}

func TestEstimateMoments_RaggedWindow(t *testing.T) {
	window := [][]float64{
		{0.01, 0.02},
		{0.03},
	}
	_, err := EstimateMoments(window)
	assert.Error(t, err)
}
