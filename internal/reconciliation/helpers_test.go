package reconciliation

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/shopledger/payoutrecon/internal/domain"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func date(s string) time.Time {
	t, err := time.Parse(domain.DateLayout, s)
	if err != nil {
		panic(err)
	}
	return t
}

func payout(id, settled, gross string) domain.Payout {
	g := dec(gross)
	fee := g.Mul(dec("0.03")).Round(2)
	return domain.Payout{
		ID:               id,
		SettlementDate:   date(settled),
		GrossAmount:      g,
		ProcessingFee:    fee,
		NetAmount:        g.Sub(fee),
		Currency:         "EUR",
		RefundsGross:     decimal.Zero,
		AdjustmentsGross: decimal.Zero,
	}
}

func order(id string, created time.Time, customer, shop string) domain.Order {
	o := domain.Order{
		ID:               id,
		Number:           "#" + id,
		CreatedAt:        created,
		CustomerCurrency: "USD",
		CustomerTotal:    dec(customer),
		ShopCurrency:     "EUR",
		ShopTotal:        dec(shop),
	}
	o.DeriveExchangeRate()
	return o
}

// shopOrder is an order priced identically in both currencies.
func shopOrder(id, created, shop string) domain.Order {
	return order(id, date(created), shop, shop)
}

func newTestLogger() (logrus.FieldLogger, *test.Hook) {
	log, hook := test.NewNullLogger()
	return log, hook
}

func orderIDs(orders []domain.Order) []string {
	ids := make([]string, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
	}
	return ids
}

func equalIDs(got, want []string) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}
