package optimization

import (
	"fmt"
	"math"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"

	"github.com/aristath/regime-trader/pkg/formulas"
)

const (
	// penaltyWeight scales the quadratic penalty terms that enforce the
	// equality constraints (sum-to-one, target volatility).
	penaltyWeight = 1000.0

	// defaultMaxIterations bounds the solver so a run always terminates.
	defaultMaxIterations = 500
)

// Allocator solves the constrained mean-variance allocation problem.
//
// Solver failures never propagate: the result always carries a usable
// weight vector, falling back to equal weights when the problem is
// infeasible or ill-conditioned. The target-risk objective's equality
// constraint in particular has a feasible region only near one point of
// the minimum-variance frontier, so its fallback fires routinely.
type Allocator struct {
	maxIterations int
	log           zerolog.Logger
}

// NewAllocator creates a new allocator
func NewAllocator(log zerolog.Logger) *Allocator {
	return &Allocator{
		maxIterations: defaultMaxIterations,
		log:           log.With().Str("component", "allocator").Logger(),
	}
}

// Optimize computes portfolio weights for the given moments and objective.
//
// Daily moments are annualized internally (252 trading days). The returned
// weights are in universe order, sum to 1, and are clipped to [0, 1] when
// the objective is long-only.
func (a *Allocator) Optimize(m *Moments, obj Objective) AllocationResult {
	n := len(m.ExpectedReturns)
	if n == 0 {
		return a.fallback(n, "no assets in moments")
	}

	// Annualize daily moments
	mu := make([]float64, n)
	for i, r := range m.ExpectedReturns {
		mu[i] = r * formulas.TradingDaysPerYear
	}
	sigma := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			sigma.SetSym(i, j, m.Covariance.At(i, j)*formulas.TradingDaysPerYear)
		}
	}

	var problem optimize.Problem
	switch obj.Kind {
	case TargetRisk:
		problem = a.targetRiskProblem(sigma, obj)
	case UtilityMax:
		problem = a.utilityMaxProblem(mu, sigma, obj)
	default:
		return a.fallback(n, fmt.Sprintf("unknown objective kind %v", obj.Kind))
	}

	initial := EqualWeights(n)

	result, err := a.solve(problem, initial, &optimize.BFGS{})
	if err != nil || !converged(result) {
		// Retry with a derivative-free method before giving up
		result, err = a.solve(problem, initial, &optimize.NelderMead{})
	}
	if err != nil {
		a.log.Warn().
			Err(err).
			Str("objective", obj.Kind.String()).
			Msg("Optimization failed, falling back to equal weights")
		return a.fallback(n, err.Error())
	}
	if !converged(result) {
		a.log.Warn().
			Str("objective", obj.Kind.String()).
			Str("status", result.Status.String()).
			Msg("Optimization did not converge, falling back to equal weights")
		return a.fallback(n, fmt.Sprintf("did not converge: %s", result.Status))
	}

	weights := a.finalize(result.X, obj, n)
	if weights == nil {
		return a.fallback(n, "solution contained invalid weights")
	}

	return AllocationResult{Weights: weights}
}

// targetRiskProblem minimizes annualized volatility with quadratic
// penalties enforcing sum(w)=1 and vol(w)=target.
func (a *Allocator) targetRiskProblem(sigma *mat.SymDense, obj Objective) optimize.Problem {
	n := sigma.SymmetricDim()

	return optimize.Problem{
		Func: func(x []float64) float64 {
			w := projectToBounds(x, obj.LongOnly)

			vol := portfolioVolatility(w, sigma)
			sum := sumOf(w)

			f := vol
			f += penaltyWeight * (sum - 1) * (sum - 1)
			f += penaltyWeight * (vol - obj.TargetVol) * (vol - obj.TargetVol)
			return f
		},
		Grad: func(grad, x []float64) {
			w := projectToBounds(x, obj.LongOnly)

			vol := portfolioVolatility(w, sigma)
			sum := sumOf(w)

			// d(vol)/dw_i = (Σw)_i / vol
			scale := 0.0
			if vol > 1e-12 {
				scale = (1 + 2*penaltyWeight*(vol-obj.TargetVol)) / vol
			}
			for i := 0; i < n; i++ {
				var sw float64
				for j := 0; j < n; j++ {
					sw += sigma.At(i, j) * w[j]
				}
				grad[i] = scale*sw + 2*penaltyWeight*(sum-1)
			}
		},
	}
}

// utilityMaxProblem minimizes -(mu'w - 0.5*lambda*w'Σw) with a quadratic
// penalty enforcing sum(w)=1.
func (a *Allocator) utilityMaxProblem(mu []float64, sigma *mat.SymDense, obj Objective) optimize.Problem {
	n := len(mu)

	return optimize.Problem{
		Func: func(x []float64) float64 {
			w := projectToBounds(x, obj.LongOnly)

			ret := 0.0
			for i := 0; i < n; i++ {
				ret += mu[i] * w[i]
			}
			variance := portfolioVariance(w, sigma)
			sum := sumOf(w)

			f := -(ret - 0.5*obj.Lambda*variance)
			f += penaltyWeight * (sum - 1) * (sum - 1)
			return f
		},
		Grad: func(grad, x []float64) {
			w := projectToBounds(x, obj.LongOnly)
			sum := sumOf(w)

			for i := 0; i < n; i++ {
				var sw float64
				for j := 0; j < n; j++ {
					sw += sigma.At(i, j) * w[j]
				}
				grad[i] = -mu[i] + obj.Lambda*sw + 2*penaltyWeight*(sum-1)
			}
		},
	}
}

// solve runs the solver with a bounded iteration budget, converting any
// numerical panic into an error so the caller can fall back.
func (a *Allocator) solve(problem optimize.Problem, initial []float64, method optimize.Method) (result *optimize.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = fmt.Errorf("solver panic: %v", r)
		}
	}()

	settings := &optimize.Settings{MajorIterations: a.maxIterations}
	return optimize.Minimize(problem, initial, settings, method)
}

// finalize projects, clips and renormalizes the raw solver output.
// Returns nil when the solution is unusable (NaN components or zero sum
// after clipping).
func (a *Allocator) finalize(x []float64, obj Objective, n int) []float64 {
	weights := projectToBounds(x, obj.LongOnly)

	sum := 0.0
	for _, w := range weights {
		if math.IsNaN(w) || math.IsInf(w, 0) {
			return nil
		}
		sum += w
	}
	if sum == 0 {
		return nil
	}

	normalized := make([]float64, n)
	for i, w := range weights {
		normalized[i] = w / sum
	}

	if obj.LongOnly {
		// Absorb floating-point drift from the division
		clippedSum := 0.0
		for i, w := range normalized {
			normalized[i] = math.Min(1, math.Max(0, w))
			clippedSum += normalized[i]
		}
		if clippedSum == 0 {
			return nil
		}
		for i := range normalized {
			normalized[i] /= clippedSum
		}
	}

	return normalized
}

func (a *Allocator) fallback(n int, reason string) AllocationResult {
	return AllocationResult{
		Weights:  EqualWeights(n),
		FellBack: true,
		Reason:   reason,
	}
}

func converged(result *optimize.Result) bool {
	if result == nil {
		return false
	}
	switch result.Status {
	case optimize.Success, optimize.GradientThreshold, optimize.FunctionConvergence:
		return true
	default:
		return false
	}
}

// projectToBounds clips each component into [0, 1] when long-only;
// unconstrained otherwise.
func projectToBounds(x []float64, longOnly bool) []float64 {
	w := make([]float64, len(x))
	copy(w, x)
	if !longOnly {
		return w
	}
	for i := range w {
		w[i] = math.Min(1, math.Max(0, w[i]))
	}
	return w
}

func portfolioVariance(w []float64, sigma *mat.SymDense) float64 {
	n := len(w)
	var variance float64
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			variance += w[i] * w[j] * sigma.At(i, j)
		}
	}
	return variance
}

func portfolioVolatility(w []float64, sigma *mat.SymDense) float64 {
	return math.Sqrt(math.Max(portfolioVariance(w, sigma), 0))
}

func sumOf(w []float64) float64 {
	sum := 0.0
	for _, v := range w {
		sum += v
	}
	return sum
}
