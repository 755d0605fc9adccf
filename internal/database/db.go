package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// DB wraps the database connection
type DB struct {
	conn *sql.DB
	path string
}

// New creates a new database connection
func New(dbPath string) (*DB, error) {
	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// Open database connection
	// Use WAL mode for better concurrency
	conn, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Test connection
	if err := conn.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// Configure connection pool
	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(5)

	return &DB{
		conn: conn,
		path: dbPath,
	}, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

// Conn returns the underlying sql.DB connection
func (db *DB) Conn() *sql.DB {
	return db.conn
}

// Migrate creates the backtest result schema
func (db *DB) Migrate() error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS backtest_runs (
			id TEXT PRIMARY KEY,
			started_at TEXT NOT NULL,
			finished_at TEXT NOT NULL,
			initial_capital REAL NOT NULL,
			final_value REAL NOT NULL,
			cumulative_return REAL,
			annualized_return REAL,
			annualized_volatility REAL,
			sharpe_ratio REAL,
			sortino_ratio REAL,
			calmar_ratio REAL,
			max_drawdown REAL,
			num_dates INTEGER NOT NULL,
			num_trades INTEGER NOT NULL,
			skipped_buys INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS portfolio_snapshots (
			run_id TEXT NOT NULL,
			date TEXT NOT NULL,
			total_value REAL NOT NULL,
			cash REAL NOT NULL,
			asset_value REAL NOT NULL,
			trade_cost REAL NOT NULL,
			weights TEXT NOT NULL,
			PRIMARY KEY (run_id, date)
		)`,
		`CREATE TABLE IF NOT EXISTS trades (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL,
			date TEXT NOT NULL,
			symbol TEXT NOT NULL,
			side TEXT NOT NULL,
			shares REAL NOT NULL,
			price REAL NOT NULL,
			cost_share REAL NOT NULL,
			created_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_snapshots_run ON portfolio_snapshots(run_id)`,
		`CREATE INDEX IF NOT EXISTS idx_trades_run ON trades(run_id)`,
	}

	for _, stmt := range schema {
		if _, err := db.conn.Exec(stmt); err != nil {
			return fmt.Errorf("failed to run migration: %w", err)
		}
	}

	return nil
}

// Begin starts a new transaction
func (db *DB) Begin() (*sql.Tx, error) {
	return db.conn.Begin()
}

// Exec executes a query without returning rows
func (db *DB) Exec(query string, args ...interface{}) (sql.Result, error) {
	return db.conn.Exec(query, args...)
}

// Query executes a query that returns rows
func (db *DB) Query(query string, args ...interface{}) (*sql.Rows, error) {
	return db.conn.Query(query, args...)
}

// QueryRow executes a query that returns at most one row
func (db *DB) QueryRow(query string, args ...interface{}) *sql.Row {
	return db.conn.QueryRow(query, args...)
}
