package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type DiscrepancyType string

const (
	DiscrepancyNoCandidates       DiscrepancyType = "NO_CANDIDATES"
	DiscrepancyShopAmountMismatch DiscrepancyType = "SHOP_AMOUNT_MISMATCH"
	DiscrepancyNetAmountMismatch  DiscrepancyType = "NET_AMOUNT_MISMATCH"
)

type Severity string

const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

type Discrepancy struct {
	ID          string          `json:"id"`
	RunID       string          `json:"run_id,omitempty"`
	Type        DiscrepancyType `json:"type"`
	PayoutID    string          `json:"payout_id"`
	Expected    decimal.Decimal `json:"expected"`
	Actual      decimal.Decimal `json:"actual"`
	Difference  decimal.Decimal `json:"difference"`
	Currency    string          `json:"currency"`
	Severity    Severity        `json:"severity"`
	Description string          `json:"description"`
	DetectedAt  time.Time       `json:"detected_at"`
}
