package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
strategy:
  take_profit_pct: 0.35
risk:
  ev_cutoff_pct: 0.10
market_data:
  provider: synthetic
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Strategy.TakeProfitPct != 0.35 {
		t.Errorf("take_profit_pct = %v, want 0.35", cfg.Strategy.TakeProfitPct)
	}
	if cfg.Risk.EVCutoffPct != 0.10 {
		t.Errorf("ev_cutoff_pct = %v, want 0.10", cfg.Risk.EVCutoffPct)
	}
	// Untouched values keep their defaults.
	if cfg.Strategy.TargetDTE != 45 {
		t.Errorf("target_dte = %v, want default 45", cfg.Strategy.TargetDTE)
	}
	if cfg.Regime.IVRankHigh != 50 {
		t.Errorf("iv_rank_high = %v, want default 50", cfg.Regime.IVRankHigh)
	}
}

func TestLoadExpandsEnvVars(t *testing.T) {
	t.Setenv("ADVISOR_API_KEY", "sekrit")
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
market_data:
  provider: http
  api_endpoint: https://sandbox.example.com/v1
  api_key: ${ADVISOR_API_KEY}
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.MarketData.APIKey != "sekrit" {
		t.Errorf("api_key = %q, want expanded env var", cfg.MarketData.APIKey)
	}
}

func TestValidateRejections(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantSub string
	}{
		{"negative rate", func(c *Config) { c.Pricing.RiskFreeRate = -0.01 }, "risk_free_rate"},
		{"take profit above 1", func(c *Config) { c.Strategy.TakeProfitPct = 1.5 }, "take_profit_pct"},
		{"time stop beyond dte", func(c *Config) { c.Strategy.TimeStopDays = 60 }, "time_stop_days"},
		{"inverted ivr bounds", func(c *Config) { c.Regime.IVRankLow = 80 }, "iv_rank_low"},
		{"delta out of range", func(c *Config) { c.Strategy.Deltas.PMCCLong = 1.2 }, "pmcc_long"},
		{"bad provider", func(c *Config) { c.MarketData.Provider = "carrier-pigeon" }, "provider"},
		{"http without endpoint", func(c *Config) { c.MarketData.Provider = "http" }, "api_endpoint"},
		{"zero parallelism", func(c *Config) { c.Scan.Parallelism = 0 }, "parallelism"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.wantSub) {
				t.Errorf("error %q does not mention %q", err, tt.wantSub)
			}
		})
	}
}

func TestVolIndexLookups(t *testing.T) {
	cfg := Default()
	if got := cfg.VolIndexFor("gld"); got != "^GVZ" {
		t.Errorf("VolIndexFor(gld) = %q, want ^GVZ", got)
	}
	if got := cfg.VolIndexFor("XYZ"); got != "^VIX" {
		t.Errorf("VolIndexFor(XYZ) = %q, want fallback ^VIX", got)
	}
	if got := cfg.VolIndexName("^GVZ"); got != "GVZ (Gold)" {
		t.Errorf("VolIndexName(^GVZ) = %q", got)
	}
	if got := cfg.VolIndexName("^NOPE"); got != "VIX" {
		t.Errorf("VolIndexName fallback = %q, want VIX", got)
	}
}

func TestBackoffParsing(t *testing.T) {
	m := MarketDataConfig{InitialBackoff: "250ms", MaxBackoff: "bogus"}
	if got := m.InitialBackoffDuration(); got != 250*time.Millisecond {
		t.Errorf("initial backoff = %v", got)
	}
	if got := m.MaxBackoffDuration(); got != 30*time.Second {
		t.Errorf("max backoff fallback = %v", got)
	}
}
