package marketdata

import (
	"database/sql"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
	"github.com/rs/zerolog"
)

// PriceRepository provides access to historical price data.
//
// Each symbol lives in its own SQLite database file under historyDir,
// so individual symbol histories can be synced and rebuilt independently.
type PriceRepository struct {
	historyDir string
	log        zerolog.Logger
}

// NewPriceRepository creates a new price history accessor
func NewPriceRepository(historyDir string, log zerolog.Logger) *PriceRepository {
	return &PriceRepository{
		historyDir: historyDir,
		log:        log.With().Str("component", "price_repository").Logger(),
	}
}

// openHistoryDB opens (and initializes if needed) a symbol's history database
func (r *PriceRepository) openHistoryDB(symbol string) (*sql.DB, error) {
	if err := os.MkdirAll(r.historyDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}

	safeName := strings.ReplaceAll(strings.ToUpper(symbol), "/", "_")
	dbPath := filepath.Join(r.historyDir, fmt.Sprintf("%s.db", safeName))

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open history db for %s: %w", symbol, err)
	}

	schema := `
		CREATE TABLE IF NOT EXISTS daily_prices (
			date TEXT PRIMARY KEY,
			close_price REAL NOT NULL
		)
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize history schema for %s: %w", symbol, err)
	}

	return db, nil
}

// SaveDailyCloses upserts daily closing prices for a symbol
func (r *PriceRepository) SaveDailyCloses(symbol string, prices []DailyClose) error {
	db, err := r.openHistoryDB(symbol)
	if err != nil {
		return err
	}
	defer db.Close()

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO daily_prices (date, close_price) VALUES (?, ?)
		ON CONFLICT(date) DO UPDATE SET close_price = excluded.close_price
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, p := range prices {
		if _, err := stmt.Exec(p.Date, p.Close); err != nil {
			return fmt.Errorf("failed to upsert price for %s on %s: %w", symbol, p.Date, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit prices for %s: %w", symbol, err)
	}

	r.log.Debug().
		Str("symbol", symbol).
		Int("num_prices", len(prices)).
		Msg("Saved daily closes")

	return nil
}

// GetDailyCloses fetches all daily closing prices for a symbol, ascending by date
func (r *PriceRepository) GetDailyCloses(symbol string) ([]DailyClose, error) {
	db, err := r.openHistoryDB(symbol)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	rows, err := db.Query(`SELECT date, close_price FROM daily_prices ORDER BY date ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query daily prices for %s: %w", symbol, err)
	}
	defer rows.Close()

	var prices []DailyClose
	for rows.Next() {
		var p DailyClose
		if err := rows.Scan(&p.Date, &p.Close); err != nil {
			return nil, fmt.Errorf("failed to scan daily price: %w", err)
		}
		prices = append(prices, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating daily prices: %w", err)
	}

	return prices, nil
}

// CountDailyCloses returns the number of stored prices for a symbol
func (r *PriceRepository) CountDailyCloses(symbol string) (int, error) {
	db, err := r.openHistoryDB(symbol)
	if err != nil {
		return 0, err
	}
	defer db.Close()

	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM daily_prices`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count daily prices: %w", err)
	}
	return count, nil
}

// BuildPriceTable assembles a date-aligned price table for the given symbols.
//
// The date axis is the union of all symbols' dates; a symbol with no price
// on a date gets NaN there. Gap handling (skipping the date) is the
// simulator's job, not the repository's.
func (r *PriceRepository) BuildPriceTable(symbols []string) (*PriceTable, error) {
	if len(symbols) == 0 {
		return nil, fmt.Errorf("no symbols provided")
	}

	bySymbol := make(map[string]map[string]float64, len(symbols))
	dateSet := make(map[string]struct{})

	for _, symbol := range symbols {
		closes, err := r.GetDailyCloses(symbol)
		if err != nil {
			return nil, err
		}
		series := make(map[string]float64, len(closes))
		for _, p := range closes {
			series[p.Date] = p.Close
			dateSet[p.Date] = struct{}{}
		}
		bySymbol[symbol] = series
	}

	dates := make([]string, 0, len(dateSet))
	for d := range dateSet {
		dates = append(dates, d)
	}
	sort.Strings(dates)

	rows := make([][]float64, len(dates))
	for i, date := range dates {
		row := make([]float64, len(symbols))
		for j, symbol := range symbols {
			if price, ok := bySymbol[symbol][date]; ok {
				row[j] = price
			} else {
				row[j] = math.NaN()
			}
		}
		rows[i] = row
	}

	table, err := NewPriceTable(symbols, dates, rows)
	if err != nil {
		return nil, err
	}

	r.log.Info().
		Int("num_symbols", len(symbols)).
		Int("num_dates", len(dates)).
		Msg("Built price table")

	return table, nil
}
