// Package config provides application-wide configuration management.
// Configuration is loaded from a JSON file plus environment variable
// overrides; downstream packages accept only the typed tree below and
// never read settings ad-hoc (indicator functions in particular take only
// Series and numeric parameters).
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// BearMarketMode selects how the backtest and live planner behave when
// the benchmark is below both SMA(50) and SMA(200).
type BearMarketMode string

const (
	BearModeCash    BearMarketMode = "cash"
	BearModeReduced BearMarketMode = "reduced"
)

// SizingMethod selects the position-sizing algorithm. Normalized per the
// spec's own Design Note to these two values (the reference implementation
// uses "risk_based"/"slots" in some paths and "slot-based" in others).
type SizingMethod string

const (
	SizingRiskBased SizingMethod = "risk_based"
	SizingSlotBased SizingMethod = "slot_based"
)

// ProviderPlan selects the vendor rate-limit tier, which in turn drives
// the ingestion orchestrator's concurrency policy.
type ProviderPlan string

const (
	PlanFree      ProviderPlan = "free"
	PlanStarter   ProviderPlan = "starter"
	PlanDeveloper ProviderPlan = "developer"
	PlanAdvanced  ProviderPlan = "advanced"
)

// PlanRequestsPerMinute are the vendor's default rate limits by plan tier.
var PlanRequestsPerMinute = map[ProviderPlan]int{
	PlanFree:      5,
	PlanStarter:   200,
	PlanDeveloper: 1000,
	PlanAdvanced:  2000,
}

// PlanConcurrency is the ingestion batch size per plan tier (§4.3).
var PlanConcurrency = map[ProviderPlan]int{
	PlanFree:      1,
	PlanStarter:   10,
	PlanDeveloper: 50,
	PlanAdvanced:  50,
}

// Config holds all system configuration, loaded once at startup and passed
// read-only to every component.
type Config struct {
	DataProvider DataProviderConfig `json:"data_provider"`
	Filters      FilterConfig       `json:"filters"`
	Risk         RiskConfig         `json:"risk"`
	Capital      float64            `json:"capital"`
	StockAlloc   float64            `json:"stock_alloc"`

	// MarketStorePath / UserStorePath are the file-based store locations.
	MarketStorePath string `json:"market_store_path"`
	UserStorePath   string `json:"user_store_path"`

	// MarketCalendarPath points at the NYSE/NASDAQ holiday JSON file.
	MarketCalendarPath string `json:"market_calendar_path"`

	// SectorMapPath points at a JSON object of symbol -> sector, used by
	// the Portfolio Manager's sector-concentration diversity filter.
	SectorMapPath string `json:"sector_map_path"`

	// Webhook server configuration for the out-of-scope monitor heartbeat.
	Webhook WebhookConfig `json:"webhook"`
}

// DataProviderConfig configures the external OHLCV vendor client.
type DataProviderConfig struct {
	Plan              ProviderPlan `json:"plan"`
	RequestsPerMinute *int         `json:"requests_per_minute"` // nil = plan default
	HistoricalYears   int          `json:"historical_years"`
	SymbolsFile       string       `json:"symbols_file"`
	APIKey            string       `json:"api_key"`
	BaseURL           string       `json:"base_url"`
}

// EffectiveRPM resolves the configured requests-per-minute, falling back to
// the plan default when not explicitly overridden.
func (d DataProviderConfig) EffectiveRPM() int {
	if d.RequestsPerMinute != nil && *d.RequestsPerMinute > 0 {
		return *d.RequestsPerMinute
	}
	return PlanRequestsPerMinute[d.Plan]
}

// FilterConfig holds the screener thresholds shared by all three strategies.
type FilterConfig struct {
	MinPrice          float64 `json:"min_price"`
	MaxPrice          float64 `json:"max_price"`
	MinAvgVolume      float64 `json:"min_avg_volume"`
	MinMarketCap      float64 `json:"min_market_cap"`
	MinNATR           float64 `json:"min_natr"`
	MaxNATR           float64 `json:"max_natr"`
	MinDollarVolume   float64 `json:"min_dollar_volume"`
	MaxSpreadPercent  float64 `json:"max_spread_percent"`
	BenchmarkSymbol   string  `json:"benchmark_symbol"`
	CommissionEUR     float64 `json:"commission_eur"`
	MinTradeValue     float64 `json:"min_trade_value"`
}

// DefaultFilterConfig returns the screener's named defaults.
func DefaultFilterConfig() FilterConfig {
	return FilterConfig{
		MinDollarVolume: 3_000_000,
		BenchmarkSymbol: "SPY",
		CommissionEUR:   2.0,
		MinTradeValue:   50.0,
	}
}

// TrailingStopConfig configures the backtest's ratchet-up-only trailing stop.
type TrailingStopConfig struct {
	TriggerPct  float64 `json:"trailing_trigger_pct"`  // default 6.0
	DistancePct float64 `json:"trailing_distance_pct"` // default 1.5
	MinLockPct  float64 `json:"trailing_min_lock_pct"` // default 3.5
}

// RiskConfig defines position sizing, stop management, and
// drawdown-protection parameters.
type RiskConfig struct {
	MaxHoldWeeks int `json:"max_hold_weeks"`

	EntrySlippagePct float64 `json:"entry_slippage_pct"`
	ExitSlippagePct  float64 `json:"exit_slippage_pct"`
	Trailing         TrailingStopConfig

	BearMarketProtection    bool           `json:"bear_market_protection"`
	BearMarketMode          BearMarketMode `json:"bear_market_mode"`
	BearMarketExitPositions bool           `json:"bear_market_exit_positions"`

	ATRMultiplier           float64      `json:"atr_multiplier"`
	CommissionPerTrade      float64      `json:"commission_per_trade"`
	MinTradeValue           float64      `json:"min_trade_value"`
	UseFixedRisk            bool         `json:"use_fixed_risk"`
	MaxRiskPerTradeFixed    float64      `json:"max_risk_per_trade_fixed"`
	MaxRiskPerTradePercent  float64      `json:"max_risk_per_trade_percent"`
	SizingMethod            SizingMethod `json:"sizing_method"`
	SlotsCount              int          `json:"slots_count"`

	MaxStockPositions int     `json:"max_stock_positions"`
	MaxPerSector      int     `json:"max_per_sector"`
	MaxSectorCapitalPct float64 `json:"max_sector_capital_pct"`

	TPLadderEnabled bool `json:"tp_ladder_enabled"`
}

// DefaultRiskConfig returns the risk engine's named defaults.
func DefaultRiskConfig() RiskConfig {
	return RiskConfig{
		MaxHoldWeeks:     8,
		EntrySlippagePct: 0.2,
		ExitSlippagePct:  0.1,
		Trailing: TrailingStopConfig{
			TriggerPct:  6.0,
			DistancePct: 1.5,
			MinLockPct:  3.5,
		},
		BearMarketProtection:    true,
		BearMarketMode:          BearModeCash,
		BearMarketExitPositions: true,
		ATRMultiplier:           1.5,
		CommissionPerTrade:      1.0,
		MinTradeValue:           50.0,
		UseFixedRisk:            true,
		MaxRiskPerTradeFixed:    100,
		MaxRiskPerTradePercent:  2.0,
		SizingMethod:            SizingRiskBased,
		MaxStockPositions:       10,
		MaxSectorCapitalPct:     40.0,
		TPLadderEnabled:         false,
	}
}

// WebhookConfig configures the monitor loop's outgoing alert notifications
// (new signal, drawdown-protection trip, ingestion failure).
type WebhookConfig struct {
	Enabled        bool   `json:"enabled"`
	URL            string `json:"url"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

// Load reads configuration from a JSON file, applying environment
// overrides, then validating.
func Load(path string) (*Config, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("config: resolve path: %w", err)
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("config: read file %s: %w", absPath, err)
	}

	cfg := Config{
		Filters: DefaultFilterConfig(),
		Risk:    DefaultRiskConfig(),
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse json: %w", err)
	}

	if v := os.Getenv("DSS_DATA_PROVIDER_API_KEY"); v != "" {
		cfg.DataProvider.APIKey = v
	}
	if v := os.Getenv("DSS_MARKET_STORE_PATH"); v != "" {
		cfg.MarketStorePath = v
	}
	if v := os.Getenv("DSS_USER_STORE_PATH"); v != "" {
		cfg.UserStorePath = v
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validation failed: %w", err)
	}

	return &cfg, nil
}

// Validate checks that required configuration fields are present and sane.
func (c *Config) Validate() error {
	if c.Capital <= 0 {
		return fmt.Errorf("capital must be positive, got %f", c.Capital)
	}
	if c.StockAlloc < 0 || c.StockAlloc > 1 {
		return fmt.Errorf("stock_alloc must be in [0, 1], got %f", c.StockAlloc)
	}
	if c.MarketStorePath == "" {
		return fmt.Errorf("market_store_path is required")
	}
	if c.UserStorePath == "" {
		return fmt.Errorf("user_store_path is required")
	}
	if c.Risk.MaxStockPositions <= 0 {
		return fmt.Errorf("risk.max_stock_positions must be positive, got %d", c.Risk.MaxStockPositions)
	}
	if c.Risk.MaxRiskPerTradePercent <= 0 || c.Risk.MaxRiskPerTradePercent > 100 {
		return fmt.Errorf("risk.max_risk_per_trade_percent must be in (0, 100], got %f", c.Risk.MaxRiskPerTradePercent)
	}
	if c.Risk.SizingMethod != SizingRiskBased && c.Risk.SizingMethod != SizingSlotBased {
		return fmt.Errorf("risk.sizing_method must be 'risk_based' or 'slot_based', got %q", c.Risk.SizingMethod)
	}
	return nil
}
