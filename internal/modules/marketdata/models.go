package marketdata

import (
	"fmt"
	"math"
)

// DateFormat is the canonical date layout used across price history and
// backtest output. Dates sort lexicographically in this layout.
const DateFormat = "2006-01-02"

// Regime is a categorical market volatility label
type Regime string

const (
	RegimeLowVol    Regime = "Low_Vol"
	RegimeNormalVol Regime = "Normal_Vol"
	RegimeHighVol   Regime = "High_Vol"
)

// DailyClose represents a single daily closing price
type DailyClose struct {
	Date  string  `json:"date"`
	Close float64 `json:"close"`
}

// PriceTable is a date-by-symbol table of closing prices.
//
// Symbols are in universe order: the order defines the index order of every
// weight vector downstream, and the per-symbol trade execution order in the
// simulator. Dates are strictly increasing and form the simulation clock.
// Missing prices are NaN; they are never interpolated.
type PriceTable struct {
	Symbols []string
	Dates   []string
	Rows    [][]float64 // Rows[i][j] = price of Symbols[j] on Dates[i]
}

// NewPriceTable validates shape and constructs a PriceTable.
func NewPriceTable(symbols, dates []string, rows [][]float64) (*PriceTable, error) {
	if len(symbols) == 0 {
		return nil, fmt.Errorf("price table requires at least one symbol")
	}
	if len(rows) != len(dates) {
		return nil, fmt.Errorf("price table has %d rows for %d dates", len(rows), len(dates))
	}
	for i, row := range rows {
		if len(row) != len(symbols) {
			return nil, fmt.Errorf("price row %d has %d entries for %d symbols", i, len(row), len(symbols))
		}
	}
	for i := 1; i < len(dates); i++ {
		if dates[i] <= dates[i-1] {
			return nil, fmt.Errorf("price dates must be strictly increasing (%s after %s)", dates[i], dates[i-1])
		}
	}

	return &PriceTable{Symbols: symbols, Dates: dates, Rows: rows}, nil
}

// HasGap reports whether any symbol's price is missing on row i.
// A non-positive price is treated as missing.
func (t *PriceTable) HasGap(i int) bool {
	for _, p := range t.Rows[i] {
		if math.IsNaN(p) || p <= 0 {
			return true
		}
	}
	return false
}

// NumDates returns the number of dates in the table.
func (t *PriceTable) NumDates() int {
	return len(t.Dates)
}

// ReturnSeries is a date-by-symbol table of daily log returns, one row
// shorter than the price table it was derived from. Rows containing any
// NaN (a price gap on either side of the interval) are dropped.
type ReturnSeries struct {
	Symbols []string
	Dates   []string    // date of the return (interval end)
	Rows    [][]float64 // Rows[i][j] = log return of Symbols[j] on Dates[i]
}

// Window returns the contiguous slice of return rows [start, end).
// The slices share backing arrays with the series; callers must not mutate.
func (r *ReturnSeries) Window(start, end int) [][]float64 {
	if start < 0 {
		start = 0
	}
	if end > len(r.Rows) {
		end = len(r.Rows)
	}
	if start >= end {
		return nil
	}
	return r.Rows[start:end]
}

// VolatilityPoint is a rolling-volatility observation
type VolatilityPoint struct {
	Date   string  `json:"date"`
	Value  float64 `json:"value"`
	Regime Regime  `json:"regime"`
}
