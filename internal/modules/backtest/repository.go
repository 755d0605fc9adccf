package backtest

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/regime-trader/internal/database/repositories"
)

// ResultRepository persists backtest runs, snapshots and trades.
type ResultRepository struct {
	*repositories.BaseRepository
}

// NewResultRepository creates a new backtest result repository
func NewResultRepository(db *sql.DB, log zerolog.Logger) *ResultRepository {
	return &ResultRepository{
		BaseRepository: repositories.NewBase(db, log.With().Str("repo", "backtest").Logger()),
	}
}

// SaveRun stores a completed run with its snapshots and trade log.
func (r *ResultRepository) SaveRun(result *Result) error {
	tx, err := r.DB().Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	s := result.Summary
	_, err = tx.Exec(`
		INSERT INTO backtest_runs
		(id, started_at, finished_at, initial_capital, final_value,
		 cumulative_return, annualized_return, annualized_volatility,
		 sharpe_ratio, sortino_ratio, calmar_ratio, max_drawdown,
		 num_dates, num_trades, skipped_buys)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		result.RunID, result.StartedAt, result.FinishedAt,
		s.InitialCapital, s.FinalValue,
		s.CumulativeReturn, s.AnnualizedReturn, s.AnnualizedVolatility,
		nullFloat(s.SharpeRatio), nullFloat(s.SortinoRatio), nullFloat(s.CalmarRatio),
		s.MaxDrawdown, s.NumDates, s.NumTrades, s.SkippedBuys,
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	snapStmt, err := tx.Prepare(`
		INSERT INTO portfolio_snapshots
		(run_id, date, total_value, cash, asset_value, trade_cost, weights)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare snapshot insert: %w", err)
	}
	defer snapStmt.Close()

	for _, snap := range result.Snapshots {
		weights, err := json.Marshal(snap.Weights)
		if err != nil {
			return fmt.Errorf("failed to marshal weights for %s: %w", snap.Date, err)
		}
		if _, err := snapStmt.Exec(result.RunID, snap.Date, snap.TotalValue, snap.Cash, snap.AssetValue, snap.TradeCost, string(weights)); err != nil {
			return fmt.Errorf("failed to insert snapshot for %s: %w", snap.Date, err)
		}
	}

	tradeStmt, err := tx.Prepare(`
		INSERT INTO trades
		(run_id, date, symbol, side, shares, price, cost_share, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare trade insert: %w", err)
	}
	defer tradeStmt.Close()

	now := time.Now().UTC().Format(time.RFC3339)
	sells := 0
	for _, trade := range result.Trades {
		if trade.Side.IsSell() {
			sells++
		}
		if _, err := tradeStmt.Exec(result.RunID, trade.Date, trade.Symbol, string(trade.Side), trade.Shares, trade.Price, trade.CostShare, now); err != nil {
			return fmt.Errorf("failed to insert trade: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run: %w", err)
	}

	r.Log().Info().
		Str("run_id", result.RunID).
		Int("num_snapshots", len(result.Snapshots)).
		Int("num_buys", len(result.Trades)-sells).
		Int("num_sells", sells).
		Msg("Backtest run saved")

	return nil
}

// RunSummaryRow is a persisted run header
type RunSummaryRow struct {
	RunID      string  `json:"run_id"`
	StartedAt  string  `json:"started_at"`
	FinishedAt string  `json:"finished_at"`
	Summary    Summary `json:"summary"`
}

// GetRun fetches a run header by ID. Returns nil when not found.
func (r *ResultRepository) GetRun(runID string) (*RunSummaryRow, error) {
	row := r.DB().QueryRow(`
		SELECT id, started_at, finished_at, initial_capital, final_value,
		       cumulative_return, annualized_return, annualized_volatility,
		       sharpe_ratio, sortino_ratio, calmar_ratio, max_drawdown,
		       num_dates, num_trades, skipped_buys
		FROM backtest_runs WHERE id = ?
	`, runID)

	run, err := scanRunSummary(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run %s: %w", runID, err)
	}
	return run, nil
}

// ListRuns fetches the most recent run headers, newest first.
func (r *ResultRepository) ListRuns(limit int) ([]RunSummaryRow, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := r.DB().Query(`
		SELECT id, started_at, finished_at, initial_capital, final_value,
		       cumulative_return, annualized_return, annualized_volatility,
		       sharpe_ratio, sortino_ratio, calmar_ratio, max_drawdown,
		       num_dates, num_trades, skipped_buys
		FROM backtest_runs ORDER BY started_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []RunSummaryRow
	for rows.Next() {
		run, err := scanRunSummary(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// GetSnapshots fetches a run's portfolio history in date order.
func (r *ResultRepository) GetSnapshots(runID string) ([]Snapshot, error) {
	rows, err := r.DB().Query(`
		SELECT date, total_value, cash, asset_value, trade_cost, weights
		FROM portfolio_snapshots WHERE run_id = ? ORDER BY date ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}
	defer rows.Close()

	var snapshots []Snapshot
	for rows.Next() {
		var snap Snapshot
		var weightsJSON string
		if err := rows.Scan(&snap.Date, &snap.TotalValue, &snap.Cash, &snap.AssetValue, &snap.TradeCost, &weightsJSON); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		if err := json.Unmarshal([]byte(weightsJSON), &snap.Weights); err != nil {
			return nil, fmt.Errorf("failed to unmarshal weights: %w", err)
		}
		snapshots = append(snapshots, snap)
	}
	return snapshots, rows.Err()
}

// GetTrades fetches a run's trade log in insertion order.
func (r *ResultRepository) GetTrades(runID string) ([]Trade, error) {
	rows, err := r.DB().Query(`
		SELECT date, symbol, side, shares, price, cost_share
		FROM trades WHERE run_id = ? ORDER BY id ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query trades: %w", err)
	}
	defer rows.Close()

	var trades []Trade
	for rows.Next() {
		var trade Trade
		var side string
		if err := rows.Scan(&trade.Date, &trade.Symbol, &side, &trade.Shares, &trade.Price, &trade.CostShare); err != nil {
			return nil, fmt.Errorf("failed to scan trade: %w", err)
		}
		trade.Side = TradeSide(side)
		trades = append(trades, trade)
	}
	return trades, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRunSummary(row rowScanner) (*RunSummaryRow, error) {
	var run RunSummaryRow
	var sharpe, sortino, calmar sql.NullFloat64

	err := row.Scan(
		&run.RunID, &run.StartedAt, &run.FinishedAt,
		&run.Summary.InitialCapital, &run.Summary.FinalValue,
		&run.Summary.CumulativeReturn, &run.Summary.AnnualizedReturn, &run.Summary.AnnualizedVolatility,
		&sharpe, &sortino, &calmar, &run.Summary.MaxDrawdown,
		&run.Summary.NumDates, &run.Summary.NumTrades, &run.Summary.SkippedBuys,
	)
	if err != nil {
		return nil, err
	}

	if sharpe.Valid {
		run.Summary.SharpeRatio = &sharpe.Float64
	}
	if sortino.Valid {
		run.Summary.SortinoRatio = &sortino.Float64
	}
	if calmar.Valid {
		run.Summary.CalmarRatio = &calmar.Float64
	}

	return &run, nil
}

func nullFloat(v *float64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}
