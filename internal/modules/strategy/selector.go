package strategy

import (
	"errors"

	"github.com/rs/zerolog"

	"github.com/aristath/regime-trader/internal/modules/marketdata"
	"github.com/aristath/regime-trader/internal/modules/optimization"
)

// Config holds the regime strategy parameters
type Config struct {
	TargetRiskAnnual   float64 // base annualized volatility target
	RiskAversionLambda float64 // base risk aversion
}

// Selector maps a volatility regime to an allocator objective and produces
// target weights for a return window.
//
// Stateless: safe to call concurrently for independent rebalance dates.
type Selector struct {
	cfg       Config
	symbols   []string
	allocator *optimization.Allocator
	log       zerolog.Logger
}

// NewSelector creates a new regime strategy selector
func NewSelector(cfg Config, symbols []string, allocator *optimization.Allocator, log zerolog.Logger) *Selector {
	return &Selector{
		cfg:       cfg,
		symbols:   symbols,
		allocator: allocator,
		log:       log.With().Str("component", "strategy").Logger(),
	}
}

// ObjectiveFor returns the allocator objective for a regime:
//
//	High_Vol   -> target risk at half the configured annual target
//	Low_Vol    -> utility maximization at 1.5x the configured lambda
//	Normal_Vol -> utility maximization at the configured lambda
//
// All objectives are long-only with weights summing to one.
func (s *Selector) ObjectiveFor(regime marketdata.Regime) optimization.Objective {
	switch regime {
	case marketdata.RegimeHighVol:
		return optimization.NewTargetRisk(s.cfg.TargetRiskAnnual*0.5, true)
	case marketdata.RegimeLowVol:
		return optimization.NewUtilityMax(s.cfg.RiskAversionLambda*1.5, true)
	default:
		return optimization.NewUtilityMax(s.cfg.RiskAversionLambda, true)
	}
}

// TargetWeights computes the target weight vector for a regime and a
// trailing return window (rows in universe order).
//
// An empty window short-circuits to equal weights without invoking the
// allocator; allocator failures surface only as the equal-weight fallback.
// The returned vector is always usable: non-negative, summing to one.
func (s *Selector) TargetWeights(regime marketdata.Regime, window [][]float64) []float64 {
	n := len(s.symbols)

	moments, err := optimization.EstimateMoments(window)
	if err != nil {
		if !errors.Is(err, optimization.ErrEmptyWindow) {
			s.log.Warn().
				Err(err).
				Str("regime", string(regime)).
				Msg("Moment estimation failed, using equal weights")
		} else {
			s.log.Warn().
				Str("regime", string(regime)).
				Msg("No lookback returns for regime, using equal weights")
		}
		return optimization.EqualWeights(n)
	}

	result := s.allocator.Optimize(moments, s.ObjectiveFor(regime))
	if result.FellBack {
		s.log.Warn().
			Str("regime", string(regime)).
			Str("reason", result.Reason).
			Msg("Allocator fell back to equal weights")
	}

	return result.Weights
}
