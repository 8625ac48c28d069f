package ingestion

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// graphQLError is one entry of a GraphQL "errors" array.
type graphQLError struct {
	Message string `json:"message"`
}

type money struct {
	Amount       decimal.Decimal `json:"amount"`
	CurrencyCode string          `json:"currencyCode"`
}

// moneyBag is a Shopify *PriceSet: the same amount in presentment (customer)
// and shop currency.
type moneyBag struct {
	PresentmentMoney *money `json:"presentmentMoney"`
	ShopMoney        *money `json:"shopMoney"`
}

func (b *moneyBag) presentment() decimal.Decimal {
	if b == nil || b.PresentmentMoney == nil {
		return decimal.Zero
	}
	return b.PresentmentMoney.Amount
}

func (b *moneyBag) shop() decimal.Decimal {
	if b == nil || b.ShopMoney == nil {
		return decimal.Zero
	}
	return b.ShopMoney.Amount
}

// responseError reports the errors of a GraphQL response that carried no data.
func responseError(errs []graphQLError) error {
	msgs := make([]string, len(errs))
	for i, e := range errs {
		msgs[i] = e.Message
	}
	return fmt.Errorf("graphql errors: %s", strings.Join(msgs, "; "))
}
