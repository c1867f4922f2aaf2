// Package config provides configuration management for the advisor.
// Policy constants that shape recommendations (regime boundaries, delta
// targets, the EV kill-switch, liquidity thresholds) live here rather
// than as package-level constants, so the core stays testable and the
// thresholds stay tunable without a rebuild.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	yaml "gopkg.in/yaml.v3"
)

const (
	// defaultRiskFreeRate approximates the short-term treasury rate.
	defaultRiskFreeRate = 0.05
	// defaultTimeStopDays is the calendar-day buffer before expiration at
	// which positions are evaluated and closed (gamma risk accelerates
	// inside this window).
	defaultTimeStopDays = 21
	// defaultTakeProfitPct is the premium-selling heuristic: close at 50%
	// of max profit.
	defaultTakeProfitPct = 0.50
	// defaultEVCutoffPct rejects any structure whose expected P&L is
	// worse than -20% of its max risk.
	defaultEVCutoffPct = 0.20
)

// Config represents the complete application configuration.
type Config struct {
	Environment EnvironmentConfig `yaml:"environment"`
	Pricing     PricingConfig     `yaml:"pricing"`
	Strategy    StrategyConfig    `yaml:"strategy"`
	Regime      RegimeConfig      `yaml:"regime"`
	Liquidity   LiquidityConfig   `yaml:"liquidity"`
	Risk        RiskConfig        `yaml:"risk"`
	Scan        ScanConfig        `yaml:"scan"`
	Dashboard   DashboardConfig   `yaml:"dashboard"`
	MarketData  MarketDataConfig  `yaml:"market_data"`
	// VolIndexes maps a ticker to its dedicated CBOE volatility index;
	// anything absent falls back to ^VIX.
	VolIndexes map[string]string `yaml:"vol_indexes"`
	// VolIndexNames maps an index symbol to a display name.
	VolIndexNames map[string]string `yaml:"vol_index_names"`
}

// EnvironmentConfig defines the environment settings.
type EnvironmentConfig struct {
	LogLevel string `yaml:"log_level"` // debug | info | warn | error
	LogFile  string `yaml:"log_file"`  // empty = stdout only
}

// PricingConfig holds the Black-Scholes model inputs.
type PricingConfig struct {
	RiskFreeRate float64 `yaml:"risk_free_rate"`
}

// DeltaTargets are the per-structure strike-selection deltas.
type DeltaTargets struct {
	CondorShort       float64 `yaml:"condor_short"`       // 0.16
	CreditSpreadShort float64 `yaml:"credit_spread_short"` // 0.20
	PMCCLong          float64 `yaml:"pmcc_long"`          // 0.80 LEAPS
	PMCCShort         float64 `yaml:"pmcc_short"`         // 0.30
	LowVolBearPut     float64 `yaml:"low_vol_bear_put"`   // 0.45
	DirectionalSpread float64 `yaml:"directional_spread"` // 0.50
	CashSecuredPut    float64 `yaml:"cash_secured_put"`   // 0.25
}

// StrategyConfig defines structure-construction parameters.
type StrategyConfig struct {
	TargetDTE     int          `yaml:"target_dte"`      // ~45
	ShortTermDTE  int          `yaml:"short_term_dte"`  // ~21, calendar front leg
	LeapsMinDTE   int          `yaml:"leaps_min_dte"`   // >200, PMCC back leg
	TakeProfitPct float64      `yaml:"take_profit_pct"` // fraction of max profit
	TimeStopDays  int          `yaml:"time_stop_days"`
	Deltas        DeltaTargets `yaml:"deltas"`
}

// RegimeConfig defines the IV-rank / volatility-index boundaries of the
// regime classification table.
type RegimeConfig struct {
	IVRankHigh   float64 `yaml:"iv_rank_high"`   // >50 = high
	VolIndexHigh float64 `yaml:"vol_index_high"` // >20 = high
	IVRankLow    float64 `yaml:"iv_rank_low"`    // <20 = low
	VolIndexLow  float64 `yaml:"vol_index_low"`  // <15 = low
}

// LiquidityConfig defines the chain hygiene thresholds.
type LiquidityConfig struct {
	MinOpenInterest    int64   `yaml:"min_open_interest"`
	MaxSpreadPct       float64 `yaml:"max_spread_pct"`
	SyntheticSpreadPct float64 `yaml:"synthetic_spread_pct"`
	MinQuotesPerSide   int     `yaml:"min_quotes_per_side"`
}

// RiskConfig defines the risk-manager gates.
type RiskConfig struct {
	MinSpot        float64 `yaml:"min_spot"`         // penny-stock gate
	EVCutoffPct    float64 `yaml:"ev_cutoff_pct"`    // kill-switch, fraction of max risk
	WidthTargetPct float64 `yaml:"width_target_pct"` // protective-leg distance, fraction of spot
	WidthSlackMult float64 `yaml:"width_slack_mult"` // reject widths beyond target x mult
}

// ScanConfig defines the batch scan universe.
type ScanConfig struct {
	Tickers     []string `yaml:"tickers"`
	Budget      float64  `yaml:"budget"`
	Parallelism int      `yaml:"parallelism"`
}

// DashboardConfig defines the read-only results server.
type DashboardConfig struct {
	Port      int    `yaml:"port"`
	AuthToken string `yaml:"auth_token"`
}

// MarketDataConfig defines the data-provider settings.
type MarketDataConfig struct {
	Provider       string `yaml:"provider"` // synthetic | http
	APIKey         string `yaml:"api_key"`
	APIEndpoint    string `yaml:"api_endpoint"`
	MaxRetries     int    `yaml:"max_retries"`
	InitialBackoff string `yaml:"initial_backoff"` // e.g. "1s"
	MaxBackoff     string `yaml:"max_backoff"`     // e.g. "30s"
}

// InitialBackoffDuration parses the configured initial backoff.
func (m MarketDataConfig) InitialBackoffDuration() time.Duration {
	d, err := time.ParseDuration(m.InitialBackoff)
	if err != nil || d <= 0 {
		return time.Second
	}
	return d
}

// MaxBackoffDuration parses the configured backoff ceiling.
func (m MarketDataConfig) MaxBackoffDuration() time.Duration {
	d, err := time.ParseDuration(m.MaxBackoff)
	if err != nil || d <= 0 {
		return 30 * time.Second
	}
	return d
}

// Load reads and parses the configuration file from the specified path.
func Load(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = "config.yaml"
	}

	data, err := os.ReadFile(configPath) // #nosec G304 -- configPath is a user-provided config file path
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	config := Default()
	if err := yaml.Unmarshal([]byte(expanded), config); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return config, nil
}

// Default returns a Config populated with the reference parameters.
func Default() *Config {
	return &Config{
		Environment: EnvironmentConfig{LogLevel: "info"},
		Pricing:     PricingConfig{RiskFreeRate: defaultRiskFreeRate},
		Strategy: StrategyConfig{
			TargetDTE:     45,
			ShortTermDTE:  21,
			LeapsMinDTE:   200,
			TakeProfitPct: defaultTakeProfitPct,
			TimeStopDays:  defaultTimeStopDays,
			Deltas: DeltaTargets{
				CondorShort:       0.16,
				CreditSpreadShort: 0.20,
				PMCCLong:          0.80,
				PMCCShort:         0.30,
				LowVolBearPut:     0.45,
				DirectionalSpread: 0.50,
				CashSecuredPut:    0.25,
			},
		},
		Regime: RegimeConfig{
			IVRankHigh:   50,
			VolIndexHigh: 20,
			IVRankLow:    20,
			VolIndexLow:  15,
		},
		Liquidity: LiquidityConfig{
			MinOpenInterest:    10,
			MaxSpreadPct:       0.40,
			SyntheticSpreadPct: 0.02,
			MinQuotesPerSide:   3,
		},
		Risk: RiskConfig{
			MinSpot:        10,
			EVCutoffPct:    defaultEVCutoffPct,
			WidthTargetPct: 0.015,
			WidthSlackMult: 3,
		},
		Scan: ScanConfig{
			Tickers:     []string{"SPY", "QQQ", "IWM", "DIA", "GLD", "TLT"},
			Budget:      1000,
			Parallelism: 4,
		},
		Dashboard: DashboardConfig{Port: 9847},
		MarketData: MarketDataConfig{
			Provider:       "synthetic",
			MaxRetries:     3,
			InitialBackoff: "1s",
			MaxBackoff:     "30s",
		},
		VolIndexes: map[string]string{
			"SPY": "^VIX", "VOO": "^VIX", "IVV": "^VIX", "RSP": "^VIX",
			"QQQ": "^VXN", "TQQQ": "^VXN", "SQQQ": "^VXN",
			"DIA": "^VXD",
			"USO": "^OVX", "XOM": "^OVX", "CVX": "^OVX", "XLE": "^OVX",
			"GLD": "^GVZ",
			"SLV": "^VXSLV",
			"EEM": "^VXEEM", "VWO": "^VXEEM",
			"EWZ": "^VXEWZ",
			"FXI": "^VXFXI", "KWEB": "^VXFXI",
			"VGK": "^VXEFA", "FEZ": "^VXEFA", "VXUS": "^VXEFA",
			"AAPL": "^VXAPL", "AMZN": "^VXAZN", "GOOGL": "^VXGOG",
			"GS": "^VXGS", "IBM": "^VXIBM",
		},
		VolIndexNames: map[string]string{
			"^VIX":   "VIX (S&P 500)",
			"^VXN":   "VXN (Nasdaq)",
			"^VXD":   "VXD (Dow Jones)",
			"^OVX":   "OVX (Crude Oil)",
			"^GVZ":   "GVZ (Gold)",
			"^VXSLV": "VXSLV (Silver)",
			"^VXEEM": "VXEEM (Emerging Markets)",
			"^VXEWZ": "VXEWZ (Brazil)",
			"^VXFXI": "VXFXI (China)",
			"^VXEFA": "VXEFA (Europe)",
			"^VXAPL": "VXAPL (Apple)",
			"^VXAZN": "VXAZN (Amazon)",
			"^VXGOG": "VXGOG (Google)",
			"^VXGS":  "VXGS (Goldman)",
			"^VXIBM": "VXIBM (IBM)",
		},
	}
}

// Validate checks the configuration for internally consistent values.
func (c *Config) Validate() error {
	if c.Pricing.RiskFreeRate < 0 || c.Pricing.RiskFreeRate > 0.25 {
		return fmt.Errorf("pricing.risk_free_rate %.3f out of range [0, 0.25]", c.Pricing.RiskFreeRate)
	}
	if c.Strategy.TargetDTE <= 0 {
		return fmt.Errorf("strategy.target_dte must be positive, got %d", c.Strategy.TargetDTE)
	}
	if c.Strategy.TakeProfitPct <= 0 || c.Strategy.TakeProfitPct > 1 {
		return fmt.Errorf("strategy.take_profit_pct %.2f out of range (0, 1]", c.Strategy.TakeProfitPct)
	}
	if c.Strategy.TimeStopDays < 0 || c.Strategy.TimeStopDays >= c.Strategy.TargetDTE {
		return fmt.Errorf("strategy.time_stop_days %d must be in [0, target_dte)", c.Strategy.TimeStopDays)
	}
	if c.Regime.IVRankLow >= c.Regime.IVRankHigh {
		return fmt.Errorf("regime.iv_rank_low %.0f must be below iv_rank_high %.0f",
			c.Regime.IVRankLow, c.Regime.IVRankHigh)
	}
	if c.Regime.VolIndexLow >= c.Regime.VolIndexHigh {
		return fmt.Errorf("regime.vol_index_low %.1f must be below vol_index_high %.1f",
			c.Regime.VolIndexLow, c.Regime.VolIndexHigh)
	}
	for _, d := range []struct {
		name  string
		value float64
	}{
		{"condor_short", c.Strategy.Deltas.CondorShort},
		{"credit_spread_short", c.Strategy.Deltas.CreditSpreadShort},
		{"pmcc_long", c.Strategy.Deltas.PMCCLong},
		{"pmcc_short", c.Strategy.Deltas.PMCCShort},
		{"low_vol_bear_put", c.Strategy.Deltas.LowVolBearPut},
		{"directional_spread", c.Strategy.Deltas.DirectionalSpread},
		{"cash_secured_put", c.Strategy.Deltas.CashSecuredPut},
	} {
		if d.value <= 0 || d.value >= 1 {
			return fmt.Errorf("strategy.deltas.%s %.2f out of range (0, 1)", d.name, d.value)
		}
	}
	if c.Liquidity.MinQuotesPerSide < 1 {
		return fmt.Errorf("liquidity.min_quotes_per_side must be >= 1, got %d", c.Liquidity.MinQuotesPerSide)
	}
	if c.Liquidity.MaxSpreadPct <= 0 {
		return fmt.Errorf("liquidity.max_spread_pct must be positive, got %.2f", c.Liquidity.MaxSpreadPct)
	}
	if c.Risk.EVCutoffPct < 0 {
		return fmt.Errorf("risk.ev_cutoff_pct must be non-negative, got %.2f", c.Risk.EVCutoffPct)
	}
	if c.Risk.WidthTargetPct <= 0 || c.Risk.WidthSlackMult < 1 {
		return fmt.Errorf("risk width settings invalid: target_pct=%.3f slack_mult=%.1f",
			c.Risk.WidthTargetPct, c.Risk.WidthSlackMult)
	}
	if c.Scan.Parallelism < 1 {
		return fmt.Errorf("scan.parallelism must be >= 1, got %d", c.Scan.Parallelism)
	}
	switch strings.ToLower(c.MarketData.Provider) {
	case "synthetic", "http":
	default:
		return fmt.Errorf("market_data.provider must be synthetic or http, got %q", c.MarketData.Provider)
	}
	if strings.ToLower(c.MarketData.Provider) == "http" && c.MarketData.APIEndpoint == "" {
		return fmt.Errorf("market_data.api_endpoint required for the http provider")
	}
	return nil
}

// VolIndexFor returns the volatility-index symbol tracked for a ticker,
// defaulting to ^VIX.
func (c *Config) VolIndexFor(ticker string) string {
	if sym, ok := c.VolIndexes[strings.ToUpper(ticker)]; ok {
		return sym
	}
	return "^VIX"
}

// VolIndexName returns the display name for a volatility-index symbol.
func (c *Config) VolIndexName(symbol string) string {
	if name, ok := c.VolIndexNames[symbol]; ok {
		return name
	}
	return "VIX"
}
