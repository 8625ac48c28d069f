package reconciliation

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Strategy selects how candidate orders are chosen for a payout.
type Strategy string

const (
	StrategyHeuristic Strategy = "heuristic"
	StrategyExact     Strategy = "exact"
)

// ParseStrategy maps a configuration value onto a Strategy. The empty string
// selects the heuristic matcher.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(strings.ToLower(strings.TrimSpace(s))) {
	case "", StrategyHeuristic:
		return StrategyHeuristic, nil
	case StrategyExact:
		return StrategyExact, nil
	default:
		return "", fmt.Errorf("unknown strategy %q", s)
	}
}

// Config holds the engine tunables.
type Config struct {
	MaxLookbackDays    int
	OvershootTolerance decimal.Decimal
	MatchThreshold     decimal.Decimal
	NetTolerance       decimal.Decimal
	Strategy           Strategy
	Exclusive          bool
	Workers            int

	// Bounds on the exact matcher's search. Beyond either the engine falls
	// back to the heuristic matcher.
	ExactMaxCandidates int
	ExactMaxCents      int64
}

const (
	defaultMaxLookbackDays    = 5
	defaultWorkers            = 1
	defaultExactMaxCandidates = 40
	defaultExactMaxCents      = 1_000_000
)

var (
	defaultOvershootTolerance = decimal.RequireFromString("0.10")
	defaultMatchThreshold     = decimal.RequireFromString("5.00")
	defaultNetTolerance       = decimal.RequireFromString("0.05")
)

func DefaultConfig() Config {
	return Config{
		MaxLookbackDays:    defaultMaxLookbackDays,
		OvershootTolerance: defaultOvershootTolerance,
		MatchThreshold:     defaultMatchThreshold,
		NetTolerance:       defaultNetTolerance,
		Strategy:           StrategyHeuristic,
		Workers:            defaultWorkers,
		ExactMaxCandidates: defaultExactMaxCandidates,
		ExactMaxCents:      defaultExactMaxCents,
	}
}

// normalized replaces out-of-range values with their defaults.
func (c Config) normalized() Config {
	if c.MaxLookbackDays < 0 {
		c.MaxLookbackDays = defaultMaxLookbackDays
	}
	if c.OvershootTolerance.IsNegative() {
		c.OvershootTolerance = defaultOvershootTolerance
	}
	if c.MatchThreshold.IsNegative() {
		c.MatchThreshold = defaultMatchThreshold
	}
	if c.NetTolerance.IsNegative() {
		c.NetTolerance = defaultNetTolerance
	}
	if c.Strategy == "" {
		c.Strategy = StrategyHeuristic
	}
	if c.Workers < 1 {
		c.Workers = defaultWorkers
	}
	if c.ExactMaxCandidates <= 0 {
		c.ExactMaxCandidates = defaultExactMaxCandidates
	}
	if c.ExactMaxCents <= 0 {
		c.ExactMaxCents = defaultExactMaxCents
	}
	return c
}
