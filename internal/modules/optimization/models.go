package optimization

import (
	"errors"
	"fmt"
)

// ErrEmptyWindow signals a zero-row return window. Callers treat it as
// "no estimate available" and fall back to equal weighting.
var ErrEmptyWindow = errors.New("return window has no rows")

// ObjectiveKind selects the allocator objective
type ObjectiveKind int

const (
	// TargetRisk minimizes annualized portfolio volatility subject to the
	// volatility equalling an annual target. The equality constraint is
	// frequently infeasible; the fallback path is expected behavior.
	TargetRisk ObjectiveKind = iota
	// UtilityMax maximizes E[return] - 0.5 * lambda * variance.
	UtilityMax
)

func (k ObjectiveKind) String() string {
	switch k {
	case TargetRisk:
		return "target_risk"
	case UtilityMax:
		return "utility_max"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// Objective is a fully-specified allocator objective. Construct with
// NewTargetRisk or NewUtilityMax; weights always carry a sum-to-one
// constraint, LongOnly additionally boxes each weight into [0, 1].
type Objective struct {
	Kind      ObjectiveKind
	TargetVol float64 // annualized volatility target (TargetRisk)
	Lambda    float64 // risk aversion (UtilityMax)
	LongOnly  bool
}

// NewTargetRisk builds a target-risk objective
func NewTargetRisk(annualVolTarget float64, longOnly bool) Objective {
	return Objective{Kind: TargetRisk, TargetVol: annualVolTarget, LongOnly: longOnly}
}

// NewUtilityMax builds a utility-maximization objective
func NewUtilityMax(lambda float64, longOnly bool) Objective {
	return Objective{Kind: UtilityMax, Lambda: lambda, LongOnly: longOnly}
}

// AllocationResult carries the allocator outcome. Weights is always a
// usable, fully-specified vector (components sum to 1): on solver failure
// it holds the equal-weight fallback and FellBack records why, so the
// caller can log and keep going instead of branching on an error.
type AllocationResult struct {
	Weights  []float64
	FellBack bool
	Reason   string
}

// EqualWeights returns the 1/N weight vector over n assets.
func EqualWeights(n int) []float64 {
	if n <= 0 {
		return nil
	}
	weights := make([]float64, n)
	for i := range weights {
		weights[i] = 1.0 / float64(n)
	}
	return weights
}
