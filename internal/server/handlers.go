package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// handleHealth responds to health checks
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// handleSystemStatus reports the configured universe and parameters
func (s *Server) handleSystemStatus(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"symbols":             s.cfg.AssetSymbols,
		"optimization_window": s.cfg.OptimizationWindow,
		"rebalance_interval":  s.cfg.RebalanceInterval,
		"vol_window":          s.cfg.VolWindow,
		"target_risk_annual":  s.cfg.TargetRiskAnnual,
		"risk_aversion":       s.cfg.RiskAversionLambda,
	})
}

// handleRunBacktest runs a backtest over the stored price history and
// persists the result.
func (s *Server) handleRunBacktest(w http.ResponseWriter, r *http.Request) {
	prices, err := s.prices.BuildPriceTable(s.cfg.AssetSymbols)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, "failed to load price history", err)
		return
	}

	result, err := s.engine.Run(prices)
	if err != nil {
		s.respondError(w, http.StatusUnprocessableEntity, "backtest failed", err)
		return
	}

	if err := s.results.SaveRun(result); err != nil {
		s.respondError(w, http.StatusInternalServerError, "failed to save run", err)
		return
	}

	s.respondJSON(w, http.StatusCreated, map[string]interface{}{
		"run_id":  result.RunID,
		"summary": result.Summary,
	})
}

// handleListBacktests returns recent run headers
func (s *Server) handleListBacktests(w http.ResponseWriter, r *http.Request) {
	runs, err := s.results.ListRuns(20)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, "failed to list runs", err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"runs": runs})
}

// handleGetBacktest returns one run with its history and trade log
func (s *Server) handleGetBacktest(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")

	run, err := s.results.GetRun(runID)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, "failed to get run", err)
		return
	}
	if run == nil {
		s.respondError(w, http.StatusNotFound, "run not found", nil)
		return
	}

	snapshots, err := s.results.GetSnapshots(runID)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, "failed to get snapshots", err)
		return
	}
	trades, err := s.results.GetTrades(runID)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, "failed to get trades", err)
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"run":       run,
		"snapshots": snapshots,
		"trades":    trades,
	})
}

// handleRegimes returns the rolling volatility and regime series for the
// stored price history.
func (s *Server) handleRegimes(w http.ResponseWriter, r *http.Request) {
	prices, err := s.prices.BuildPriceTable(s.cfg.AssetSymbols)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, "failed to load price history", err)
		return
	}

	returns := s.analyzer.LogReturns(prices)
	points := s.analyzer.RollingVolatility(returns)

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"points": points,
	})
}

// respondJSON writes a JSON response
func (s *Server) respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log.Error().Err(err).Msg("Failed to encode response")
	}
}

// respondError writes a JSON error response
func (s *Server) respondError(w http.ResponseWriter, status int, message string, err error) {
	if err != nil {
		s.log.Error().Err(err).Str("message", message).Msg("Request failed")
	}
	s.respondJSON(w, status, map[string]string{"error": message})
}
