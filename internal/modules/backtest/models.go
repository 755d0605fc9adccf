package backtest

// TradeSide indicates trade direction
type TradeSide string

const (
	SideBuy  TradeSide = "BUY"
	SideSell TradeSide = "SELL"
)

// IsSell reports whether the side is a sell
func (s TradeSide) IsSell() bool {
	return s == SideSell
}

// Trade is one executed trade. Records are append-only: once emitted by the
// simulator they are never mutated.
type Trade struct {
	Date      string    `json:"date"`
	Symbol    string    `json:"symbol"`
	Side      TradeSide `json:"side"`
	Shares    float64   `json:"shares"` // always positive; Side carries direction
	Price     float64   `json:"price"`
	CostShare float64   `json:"cost_share"` // this trade's share of the step's friction cost
}

// Snapshot is the recorded portfolio state at the end of one simulated date.
type Snapshot struct {
	Date       string    `json:"date"`
	TotalValue float64   `json:"total_value"`
	Cash       float64   `json:"cash"`
	AssetValue float64   `json:"asset_value"`
	TradeCost  float64   `json:"trade_cost"`
	Weights    []float64 `json:"weights"` // realized weights, universe order
}

// Summary holds read-only performance reductions over the equity curve.
type Summary struct {
	InitialCapital       float64  `json:"initial_capital"`
	FinalValue           float64  `json:"final_value"`
	CumulativeReturn     float64  `json:"cumulative_return"`
	AnnualizedReturn     float64  `json:"annualized_return"`
	AnnualizedVolatility float64  `json:"annualized_volatility"`
	SharpeRatio          *float64 `json:"sharpe_ratio,omitempty"`
	SortinoRatio         *float64 `json:"sortino_ratio,omitempty"`
	CalmarRatio          *float64 `json:"calmar_ratio,omitempty"`
	MaxDrawdown          float64  `json:"max_drawdown"`
	NumDates             int      `json:"num_dates"`
	NumTrades            int      `json:"num_trades"`
	SkippedBuys          int      `json:"skipped_buys"`
}

// Result is a completed backtest run.
type Result struct {
	RunID      string     `json:"run_id"`
	StartedAt  string     `json:"started_at"`
	FinishedAt string     `json:"finished_at"`
	Symbols    []string   `json:"symbols"`
	Snapshots  []Snapshot `json:"snapshots"`
	Trades     []Trade    `json:"trades"`
	Summary    Summary    `json:"summary"`
}

// WeightTable maps a date to its target weight vector (universe order).
// The simulator inner-joins it with the price table on the date axis.
type WeightTable map[string][]float64
