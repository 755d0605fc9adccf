package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	// Storage
	DatabasePath string // runs / snapshots / trades database
	HistoryDir   string // per-symbol price history databases

	// Asset universe, ordered. The order defines the index order of every
	// weight vector and the symbol iteration order during trade execution.
	AssetSymbols []string

	// Regime detection
	VolWindow        int     // rolling volatility window (trading days)
	HighVolThreshold float64 // daily vol at or above -> High_Vol
	LowVolThreshold  float64 // daily vol at or below -> Low_Vol

	// Optimization
	OptimizationWindow int     // lookback window for moment estimation (trading days)
	RebalanceInterval  int     // trading days between weight recomputations
	TargetRiskAnnual   float64 // annualized volatility target (High_Vol regime)
	RiskAversionLambda float64 // utility-maximization risk aversion

	// Backtesting
	InitialCapital     float64
	TransactionCostBps float64
	SlippageBps        float64
	RiskFreeRateAnnual float64

	// Server
	Port     int
	LogLevel string
	DevMode  bool
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{
		DatabasePath: getEnv("DATABASE_PATH", "./data/backtests.db"),
		HistoryDir:   getEnv("HISTORY_DIR", "./data/history"),

		AssetSymbols: splitSymbols(getEnv("ASSET_SYMBOLS", "SPY,QQQ,GLD,TLT,EEM,VNQ")),

		VolWindow:        getEnvAsInt("VOL_WINDOW", 20),
		HighVolThreshold: getEnvAsFloat("REGIME_THRESHOLD_HIGH_VOL", 0.015),
		LowVolThreshold:  getEnvAsFloat("REGIME_THRESHOLD_LOW_VOL", 0.005),

		OptimizationWindow: getEnvAsInt("OPTIMIZATION_WINDOW", 60),
		RebalanceInterval:  getEnvAsInt("REBALANCE_INTERVAL", 21),
		TargetRiskAnnual:   getEnvAsFloat("TARGET_RISK_ANNUAL", 0.15),
		RiskAversionLambda: getEnvAsFloat("LAMBDA_RISK_AVERSION", 0.5),

		InitialCapital:     getEnvAsFloat("INITIAL_CAPITAL", 1000000),
		TransactionCostBps: getEnvAsFloat("TRANSACTION_COST_BPS", 2),
		SlippageBps:        getEnvAsFloat("SLIPPAGE_BPS", 1),
		RiskFreeRateAnnual: getEnvAsFloat("RISK_FREE_RATE_ANNUAL", 0.02),

		Port:     getEnvAsInt("GO_PORT", 8001),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		DevMode:  getEnvAsBool("DEV_MODE", false),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks configuration invariants. Violations abort startup before
// any simulation date is processed.
func (c *Config) Validate() error {
	if len(c.AssetSymbols) == 0 {
		return fmt.Errorf("ASSET_SYMBOLS must contain at least one symbol")
	}
	if c.InitialCapital <= 0 {
		return fmt.Errorf("INITIAL_CAPITAL must be positive, got %f", c.InitialCapital)
	}
	if c.TransactionCostBps < 0 || c.SlippageBps < 0 {
		return fmt.Errorf("cost rates must be non-negative (transaction=%f bps, slippage=%f bps)",
			c.TransactionCostBps, c.SlippageBps)
	}
	if c.OptimizationWindow <= 0 {
		return fmt.Errorf("OPTIMIZATION_WINDOW must be positive, got %d", c.OptimizationWindow)
	}
	if c.RebalanceInterval <= 0 {
		return fmt.Errorf("REBALANCE_INTERVAL must be positive, got %d", c.RebalanceInterval)
	}
	if c.VolWindow < 2 {
		return fmt.Errorf("VOL_WINDOW must be at least 2, got %d", c.VolWindow)
	}
	if c.LowVolThreshold < 0 || c.HighVolThreshold < c.LowVolThreshold {
		return fmt.Errorf("regime thresholds must satisfy high >= low >= 0 (high=%f, low=%f)",
			c.HighVolThreshold, c.LowVolThreshold)
	}
	if c.TargetRiskAnnual <= 0 {
		return fmt.Errorf("TARGET_RISK_ANNUAL must be positive, got %f", c.TargetRiskAnnual)
	}
	if c.RiskAversionLambda <= 0 {
		return fmt.Errorf("LAMBDA_RISK_AVERSION must be positive, got %f", c.RiskAversionLambda)
	}
	if c.DatabasePath == "" {
		return fmt.Errorf("DATABASE_PATH is required")
	}

	return nil
}

func splitSymbols(raw string) []string {
	var symbols []string
	for _, s := range strings.Split(raw, ",") {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s != "" {
			symbols = append(symbols, s)
		}
	}
	return symbols
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
