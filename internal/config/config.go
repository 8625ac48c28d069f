// Package config loads application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"github.com/shopledger/payoutrecon/internal/reconciliation"
)

// Config holds all application configuration.
// Load it once at startup using Load().
type Config struct {
	// Port is the HTTP listen port.
	Port string

	// DBPath is the SQLite database file.
	DBPath string

	// LogLevel is a logrus level name; LogFormat is "text" or "json".
	LogLevel  string
	LogFormat string

	// Recon holds the reconciliation engine tunables.
	Recon reconciliation.Config

	// Warnings lists values that were invalid and replaced by defaults. They
	// are logged once a logger exists.
	Warnings []string
}

// Load reads configuration from the environment. It attempts to load a .env
// file first (for local development).
func Load() *Config {
	_ = godotenv.Load() // Ignore error - .env is optional

	l := &loader{}
	defaults := reconciliation.DefaultConfig()

	cfg := &Config{
		Port:      getEnv("PORT", "8080"),
		DBPath:    getEnv("DB_PATH", "payoutrecon.db"),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),
		Recon: reconciliation.Config{
			MaxLookbackDays:    l.getEnvInt("RECON_MAX_LOOKBACK_DAYS", defaults.MaxLookbackDays, 0),
			OvershootTolerance: l.getEnvDecimal("RECON_OVERSHOOT_TOLERANCE", defaults.OvershootTolerance),
			MatchThreshold:     l.getEnvDecimal("RECON_MATCH_THRESHOLD", defaults.MatchThreshold),
			NetTolerance:       l.getEnvDecimal("RECON_NET_TOLERANCE", defaults.NetTolerance),
			Exclusive:          l.getEnvBool("RECON_EXCLUSIVE", false),
			Workers:            l.getEnvInt("RECON_WORKERS", 4, 1),
			ExactMaxCandidates: defaults.ExactMaxCandidates,
			ExactMaxCents:      defaults.ExactMaxCents,
		},
	}

	strategy, err := reconciliation.ParseStrategy(getEnv("RECON_STRATEGY", ""))
	if err != nil {
		l.warn("RECON_STRATEGY", err.Error())
		strategy = reconciliation.StrategyHeuristic
	}
	cfg.Recon.Strategy = strategy

	cfg.Warnings = l.warnings
	return cfg
}

// Addr returns the HTTP listen address.
func (c *Config) Addr() string {
	return ":" + c.Port
}

type loader struct {
	warnings []string
}

func (l *loader) warn(key, msg string) {
	l.warnings = append(l.warnings, fmt.Sprintf("%s: %s, using default", key, msg))
}

// getEnv returns the environment variable value or a default.
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// getEnvInt returns the environment variable as int or a default. Values
// below minValue are rejected.
func (l *loader) getEnvInt(key string, defaultValue, minValue int) int {
	valueStr := strings.TrimSpace(getEnv(key, ""))
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil || value < minValue {
		l.warn(key, fmt.Sprintf("invalid value %q", valueStr))
		return defaultValue
	}
	return value
}

func (l *loader) getEnvBool(key string, defaultValue bool) bool {
	valueStr := strings.TrimSpace(getEnv(key, ""))
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		l.warn(key, fmt.Sprintf("invalid value %q", valueStr))
		return defaultValue
	}
	return value
}

// getEnvDecimal returns a non-negative decimal or the default.
func (l *loader) getEnvDecimal(key string, defaultValue decimal.Decimal) decimal.Decimal {
	valueStr := strings.TrimSpace(getEnv(key, ""))
	if valueStr == "" {
		return defaultValue
	}
	value, err := decimal.NewFromString(valueStr)
	if err != nil || value.IsNegative() {
		l.warn(key, fmt.Sprintf("invalid value %q", valueStr))
		return defaultValue
	}
	return value
}
