package optimization

import (
	"math"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func newMoments(mu []float64, cov []float64) *Moments {
	n := len(mu)
	sigma := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			sigma.SetSym(i, j, cov[i*n+j])
		}
	}
	return &Moments{ExpectedReturns: mu, Covariance: sigma}
}

func assertValidLongOnly(t *testing.T, weights []float64, n int) {
	t.Helper()
	require.Len(t, weights, n)
	sum := 0.0
	for _, w := range weights {
		assert.GreaterOrEqual(t, w, 0.0, "weights should be non-negative")
		assert.LessOrEqual(t, w, 1.0, "weights should be <= 1")
		sum += w
	}
	assert.InDelta(t, 1.0, sum, 1e-9, "weights should sum to 1")
}

func TestAllocator_UtilityMax_InteriorOptimum(t *testing.T) {
	// Daily moments; uncorrelated assets. With lambda=10 the
	// analytic optimum on the simplex is w0 ~ 0.722.
	moments := newMoments(
		[]float64{0.001, 0.0005},
		[]float64{
			1e-4, 0,
			0, 8e-5,
		},
	)

	allocator := NewAllocator(zerolog.Nop())
	result := allocator.Optimize(moments, NewUtilityMax(10, true))

	assertValidLongOnly(t, result.Weights, 2)
	if !result.FellBack {
		assert.InDelta(t, 0.722, result.Weights[0], 0.1)
		assert.Greater(t, result.Weights[0], result.Weights[1],
			"higher-return asset should be overweighted")
	}
}

func TestAllocator_UtilityMax_AlwaysUsable(t *testing.T) {
	// Regardless of convergence, the result must be a fully-specified
	// long-only weight vector.
	moments := newMoments(
		[]float64{0.002, -0.001, 0.0005},
		[]float64{
			2e-4, 1e-5, 0,
			1e-5, 1.5e-4, 2e-5,
			0, 2e-5, 1e-4,
		},
	)

	allocator := NewAllocator(zerolog.Nop())
	result := allocator.Optimize(moments, NewUtilityMax(0.5, true))

	assertValidLongOnly(t, result.Weights, 3)
}

func TestAllocator_TargetRisk_AlwaysUsable(t *testing.T) {
	moments := newMoments(
		[]float64{0.001, 0.0008},
		[]float64{
			4e-4, 0,
			0, 4e-4,
		},
	)

	allocator := NewAllocator(zerolog.Nop())
	result := allocator.Optimize(moments, NewTargetRisk(0.30, true))

	assertValidLongOnly(t, result.Weights, 2)
}

func TestAllocator_NaNMoments_FallsBack(t *testing.T) {
	moments := newMoments(
		[]float64{0.001, 0.0005},
		[]float64{
			math.NaN(), 0,
			0, 1e-4,
		},
	)

	allocator := NewAllocator(zerolog.Nop())
	result := allocator.Optimize(moments, NewUtilityMax(1, true))

	assert.True(t, result.FellBack, "NaN covariance should trigger fallback")
	assert.Equal(t, EqualWeights(2), result.Weights)
	assert.NotEmpty(t, result.Reason)
}

func TestAllocator_NoAssets_FallsBack(t *testing.T) {
	allocator := NewAllocator(zerolog.Nop())
	result := allocator.Optimize(&Moments{Covariance: mat.NewSymDense(1, nil)}, NewUtilityMax(1, true))

	assert.True(t, result.FellBack)
	assert.Nil(t, result.Weights)
}

func TestEqualWeights(t *testing.T) {
	assert.Nil(t, EqualWeights(0))
	assert.Equal(t, []float64{0.25, 0.25, 0.25, 0.25}, EqualWeights(4))

	sum := 0.0
	for _, w := range EqualWeights(3) {
		sum += w
	}
	assert.InDelta(t, 1.0, sum, 1e-12)
}
