package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/shopledger/payoutrecon/internal/currency"
)

// DateLayout is the calendar-date format used in mappings and summaries.
const DateLayout = "2006-01-02"

// Payout is a settlement event depositing merchant funds, denominated in the
// merchant's settlement currency.
type Payout struct {
	ID               string          `json:"payout_id"`
	SettlementDate   time.Time       `json:"settlement_date"`
	Status           string          `json:"status,omitempty"`
	GrossAmount      decimal.Decimal `json:"gross_amount"`
	ProcessingFee    decimal.Decimal `json:"processing_fee"`
	NetAmount        decimal.Decimal `json:"net_amount"`
	Currency         string          `json:"currency"`
	RefundsGross     decimal.Decimal `json:"refunds_gross"`
	AdjustmentsGross decimal.Decimal `json:"adjustments_gross"`
}

// FeeRatePercent returns the processing fee as a percentage of gross.
func (p Payout) FeeRatePercent() decimal.Decimal {
	return currency.Percent(p.ProcessingFee, p.GrossAmount)
}

// SettlementDay returns the settlement date as YYYY-MM-DD.
func (p Payout) SettlementDay() string {
	return p.SettlementDate.Format(DateLayout)
}

// Validate reports the first reason this payout cannot be reconciled.
func (p Payout) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("payout: %w", ErrMissingID)
	}
	if p.SettlementDate.IsZero() {
		return fmt.Errorf("payout %s settlement_date: %w", p.ID, ErrMissingDate)
	}
	if p.GrossAmount.IsNegative() || p.ProcessingFee.IsNegative() || p.NetAmount.IsNegative() {
		return fmt.Errorf("payout %s: %w", p.ID, ErrNegativeAmount)
	}
	if _, err := currency.NormalizeCode(p.Currency); err != nil {
		return fmt.Errorf("payout %s: %w", p.ID, ErrInvalidCurrency)
	}
	return nil
}
