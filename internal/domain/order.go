package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/shopledger/payoutrecon/internal/currency"
)

// Order is a customer purchase priced in the customer's (presentment)
// currency and also expressed in the shop's settlement currency.
type Order struct {
	ID        string    `json:"order_id"`
	Number    string    `json:"order_number"`
	CreatedAt time.Time `json:"created_at"`

	CustomerCurrency  string          `json:"customer_currency"`
	CustomerTotal     decimal.Decimal `json:"customer_total"`
	CustomerSubtotal  decimal.Decimal `json:"customer_subtotal"`
	CustomerTax       decimal.Decimal `json:"customer_tax"`
	CustomerShipping  decimal.Decimal `json:"customer_shipping"`
	CustomerDiscounts decimal.Decimal `json:"customer_discounts"`

	ShopCurrency  string          `json:"shop_currency"`
	ShopTotal     decimal.Decimal `json:"shop_total"`
	ShopSubtotal  decimal.Decimal `json:"shop_subtotal"`
	ShopTax       decimal.Decimal `json:"shop_tax"`
	ShopShipping  decimal.Decimal `json:"shop_shipping"`
	ShopDiscounts decimal.Decimal `json:"shop_discounts"`

	// ExchangeRate is CustomerTotal/ShopTotal, or zero when ShopTotal is zero.
	ExchangeRate decimal.Decimal `json:"exchange_rate"`

	FinancialStatus string `json:"financial_status,omitempty"`
	PaymentGateway  string `json:"payment_gateway,omitempty"`
	CustomerCountry string `json:"customer_country,omitempty"`

	MappedPayoutID      string     `json:"mapped_payout_id,omitempty"`
	EstimatedPayoutDate *time.Time `json:"estimated_payout_date,omitempty"`
}

// DeriveExchangeRate recomputes ExchangeRate from the two totals.
func (o *Order) DeriveExchangeRate() {
	o.ExchangeRate = currency.ExchangeRate(o.CustomerTotal, o.ShopTotal)
}

// AssignedTo returns a copy of the order annotated with the payout it was
// matched to. The receiver is left untouched.
func (o Order) AssignedTo(p Payout) Order {
	settled := p.SettlementDate
	o.MappedPayoutID = p.ID
	o.EstimatedPayoutDate = &settled
	return o
}

// Validate reports the first reason this order cannot take part in a
// reconciliation.
func (o Order) Validate() error {
	if o.ID == "" {
		return fmt.Errorf("order: %w", ErrMissingID)
	}
	if o.CreatedAt.IsZero() {
		return fmt.Errorf("order %s created_at: %w", o.ID, ErrMissingDate)
	}
	if o.ShopTotal.IsNegative() || o.CustomerTotal.IsNegative() {
		return fmt.Errorf("order %s: %w", o.ID, ErrNegativeAmount)
	}
	return nil
}
