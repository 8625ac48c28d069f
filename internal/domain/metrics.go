package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PayoutReconciliation is the validation outcome for a single payout.
type PayoutReconciliation struct {
	PayoutID            string          `json:"payout_id"`
	SettlementDate      time.Time       `json:"settlement_date"`
	Currency            string          `json:"currency"`
	GrossAmount         decimal.Decimal `json:"gross_amount"`
	ProcessingFee       decimal.Decimal `json:"processing_fee"`
	NetAmount           decimal.Decimal `json:"net_amount"`
	FeeRatePercent      decimal.Decimal `json:"fee_rate_percent"`
	CandidateCount      int             `json:"candidate_count"`
	MappedOrderCount    int             `json:"mapped_order_count"`
	CustomerTotal       decimal.Decimal `json:"customer_total"`
	ShopTotal           decimal.Decimal `json:"shop_total"`
	AverageExchangeRate decimal.Decimal `json:"average_exchange_rate"`
	ShopDifference      decimal.Decimal `json:"shop_difference"`
	CurrencyMatch       bool            `json:"currency_match"`
	NetMatch            bool            `json:"net_match"`
	Strategy            string          `json:"strategy"`
}

// CurrencyMetrics aggregates exchange-rate statistics over a batch.
type CurrencyMetrics struct {
	AverageExchangeRate        decimal.Decimal `json:"average_exchange_rate"`
	MinExchangeRate            decimal.Decimal `json:"min_exchange_rate"`
	MaxExchangeRate            decimal.Decimal `json:"max_exchange_rate"`
	ExchangeRateVolatility     decimal.Decimal `json:"exchange_rate_volatility"`
	RatedOrderCount            int             `json:"rated_order_count"`
	TotalCustomerAmount        decimal.Decimal `json:"total_customer_amount"`
	TotalShopAmountFromOrders  decimal.Decimal `json:"total_shop_amount_from_orders"`
	TotalShopAmountFromPayouts decimal.Decimal `json:"total_shop_amount_from_payouts"`
	ConversionAccuracyPercent  decimal.Decimal `json:"conversion_accuracy_percent"`
	ConversionDifference       decimal.Decimal `json:"conversion_difference"`
}

// Summary is the batch-level report handed to loaders and operators.
type Summary struct {
	TotalPayouts               int             `json:"total_payouts"`
	TotalOrders                int             `json:"total_orders"`
	MatchedPayouts             int             `json:"matched_payouts"`
	PayoutsWithoutCandidates   int             `json:"payouts_without_candidates"`
	SkippedRecords             int             `json:"skipped_records"`
	TotalCustomerAmount        decimal.Decimal `json:"total_customer_amount"`
	TotalShopAmountFromOrders  decimal.Decimal `json:"total_shop_amount_from_orders"`
	TotalShopAmountFromPayouts decimal.Decimal `json:"total_shop_amount_from_payouts"`
	DateRange                  string          `json:"date_range"`
}
