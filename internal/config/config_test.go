package config

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/shopledger/payoutrecon/internal/reconciliation"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{
		"PORT", "DB_PATH", "LOG_LEVEL", "LOG_FORMAT", "RECON_MAX_LOOKBACK_DAYS",
		"RECON_OVERSHOOT_TOLERANCE", "RECON_MATCH_THRESHOLD", "RECON_NET_TOLERANCE",
		"RECON_STRATEGY", "RECON_EXCLUSIVE", "RECON_WORKERS",
	} {
		t.Setenv(key, "")
	}
	t.Setenv("PORT", "8080")
	t.Setenv("DB_PATH", "payoutrecon.db")

	cfg := Load()

	if cfg.Addr() != ":8080" {
		t.Errorf("Expected addr :8080, got %s", cfg.Addr())
	}
	if cfg.Recon.MaxLookbackDays != 5 {
		t.Errorf("Expected lookback 5, got %d", cfg.Recon.MaxLookbackDays)
	}
	if !cfg.Recon.OvershootTolerance.Equal(decimal.RequireFromString("0.10")) {
		t.Errorf("Expected tolerance 0.10, got %s", cfg.Recon.OvershootTolerance)
	}
	if !cfg.Recon.MatchThreshold.Equal(decimal.NewFromInt(5)) {
		t.Errorf("Expected threshold 5, got %s", cfg.Recon.MatchThreshold)
	}
	if cfg.Recon.Strategy != reconciliation.StrategyHeuristic {
		t.Errorf("Expected heuristic strategy, got %s", cfg.Recon.Strategy)
	}
	if cfg.Recon.Workers != 4 {
		t.Errorf("Expected 4 workers, got %d", cfg.Recon.Workers)
	}
	if len(cfg.Warnings) != 0 {
		t.Errorf("Expected no warnings, got %v", cfg.Warnings)
	}
}

func TestLoadOverridesAndInvalidValues(t *testing.T) {
	tests := []struct {
		name     string
		key      string
		value    string
		check    func(*Config) bool
		wantWarn bool
	}{
		{"lookback", "RECON_MAX_LOOKBACK_DAYS", "7", func(c *Config) bool { return c.Recon.MaxLookbackDays == 7 }, false},
		{"negative lookback", "RECON_MAX_LOOKBACK_DAYS", "-1", func(c *Config) bool { return c.Recon.MaxLookbackDays == 5 }, true},
		{"exclusive", "RECON_EXCLUSIVE", "true", func(c *Config) bool { return c.Recon.Exclusive }, false},
		{"bad bool", "RECON_EXCLUSIVE", "maybe", func(c *Config) bool { return !c.Recon.Exclusive }, true},
		{"exact", "RECON_STRATEGY", "exact", func(c *Config) bool { return c.Recon.Strategy == reconciliation.StrategyExact }, false},
		{"unknown strategy", "RECON_STRATEGY", "magic", func(c *Config) bool { return c.Recon.Strategy == reconciliation.StrategyHeuristic }, true},
		{"threshold", "RECON_MATCH_THRESHOLD", "2.50", func(c *Config) bool { return c.Recon.MatchThreshold.Equal(decimal.RequireFromString("2.5")) }, false},
		{"negative tolerance", "RECON_NET_TOLERANCE", "-0.01", func(c *Config) bool { return c.Recon.NetTolerance.Equal(decimal.RequireFromString("0.05")) }, true},
		{"zero workers", "RECON_WORKERS", "0", func(c *Config) bool { return c.Recon.Workers == 4 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			cfg := Load()
			if !tt.check(cfg) {
				t.Errorf("Unexpected config for %s=%s: %+v", tt.key, tt.value, cfg.Recon)
			}
			if got := len(cfg.Warnings) > 0; got != tt.wantWarn {
				t.Errorf("Expected warning=%v, got %v", tt.wantWarn, cfg.Warnings)
			}
		})
	}
}
