package domain

import "github.com/shopspring/decimal"

// PayoutOrderMapping links one order to the payout it was matched to.
type PayoutOrderMapping struct {
	PayoutID         string          `json:"payout_id"`
	PayoutDate       string          `json:"payout_date"`
	PayoutGross      decimal.Decimal `json:"payout_amount"`
	OrderID          string          `json:"order_id"`
	OrderNumber      string          `json:"order_number"`
	OrderDate        string          `json:"order_date"`
	CustomerAmount   decimal.Decimal `json:"customer_amount"`
	ShopAmount       decimal.Decimal `json:"shop_amount"`
	ExchangeRate     decimal.Decimal `json:"exchange_rate"`
	DaysToPayout     int             `json:"days_to_payout"`
	CustomerCurrency string          `json:"customer_currency"`
	ShopCurrency     string          `json:"shop_currency"`
}
