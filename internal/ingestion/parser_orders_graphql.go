package ingestion

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/shopledger/payoutrecon/internal/currency"
	"github.com/shopledger/payoutrecon/internal/domain"
)

// ordersResponse is the response to a Shopify Admin orders query.
type ordersResponse struct {
	Data *struct {
		Orders *struct {
			Edges []struct {
				Node orderNode `json:"node"`
			} `json:"edges"`
		} `json:"orders"`
	} `json:"data"`
	Errors []graphQLError `json:"errors"`
}

type orderNode struct {
	ID                      string    `json:"id"`
	Name                    string    `json:"name"`
	CreatedAt               string    `json:"createdAt"`
	PresentmentCurrencyCode string    `json:"presentmentCurrencyCode"`
	CurrencyCode            string    `json:"currencyCode"`
	DisplayFinancialStatus  string    `json:"displayFinancialStatus"`
	PaymentGatewayNames     []string  `json:"paymentGatewayNames"`
	TotalPriceSet           *moneyBag `json:"totalPriceSet"`
	SubtotalPriceSet        *moneyBag `json:"subtotalPriceSet"`
	TotalTaxSet             *moneyBag `json:"totalTaxSet"`
	TotalShippingPriceSet   *moneyBag `json:"totalShippingPriceSet"`
	TotalDiscountsSet       *moneyBag `json:"totalDiscountsSet"`
	ShippingAddress         *struct {
		Country string `json:"country"`
	} `json:"shippingAddress"`
}

var errMissingTotal = errors.New("missing totalPriceSet")

// ParseOrdersGraphQL parses a Shopify orders GraphQL response carrying both
// presentment and shop money for every price set.
func ParseOrdersGraphQL(data []byte) ([]domain.Order, []RowError, error) {
	var resp ordersResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, nil, fmt.Errorf("unmarshal: %w", err)
	}
	if resp.Data == nil || resp.Data.Orders == nil {
		if len(resp.Errors) > 0 {
			return nil, nil, responseError(resp.Errors)
		}
		return nil, nil, fmt.Errorf("missing data.orders")
	}

	var orders []domain.Order
	var skipped []RowError

	for i, edge := range resp.Data.Orders.Edges {
		o, err := orderFromNode(edge.Node)
		if err != nil {
			skipped = append(skipped, RowError{Row: i, ID: o.ID, Err: err})
			continue
		}
		orders = append(orders, o)
	}

	return orders, skipped, nil
}

func orderFromNode(n orderNode) (domain.Order, error) {
	o := domain.Order{
		ID:                gidSuffix(n.ID),
		Number:            strings.TrimPrefix(n.Name, "#"),
		FinancialStatus:   n.DisplayFinancialStatus,
		CustomerSubtotal:  n.SubtotalPriceSet.presentment(),
		CustomerTax:       n.TotalTaxSet.presentment(),
		CustomerShipping:  n.TotalShippingPriceSet.presentment(),
		CustomerDiscounts: n.TotalDiscountsSet.presentment(),
		ShopSubtotal:      n.SubtotalPriceSet.shop(),
		ShopTax:           n.TotalTaxSet.shop(),
		ShopShipping:      n.TotalShippingPriceSet.shop(),
		ShopDiscounts:     n.TotalDiscountsSet.shop(),
	}
	if len(n.PaymentGatewayNames) > 0 {
		o.PaymentGateway = n.PaymentGatewayNames[0]
	}
	if n.ShippingAddress != nil {
		o.CustomerCountry = n.ShippingAddress.Country
	}

	if n.TotalPriceSet == nil || n.TotalPriceSet.ShopMoney == nil {
		return o, errMissingTotal
	}
	o.CustomerTotal = n.TotalPriceSet.presentment()
	o.ShopTotal = n.TotalPriceSet.shop()

	customerCode := n.PresentmentCurrencyCode
	if customerCode == "" && n.TotalPriceSet.PresentmentMoney != nil {
		customerCode = n.TotalPriceSet.PresentmentMoney.CurrencyCode
	}
	shopCode := n.CurrencyCode
	if shopCode == "" {
		shopCode = n.TotalPriceSet.ShopMoney.CurrencyCode
	}
	var err error
	if o.CustomerCurrency, err = currency.NormalizeCode(customerCode); err != nil {
		return o, fmt.Errorf("order %s presentment: %w", o.ID, domain.ErrInvalidCurrency)
	}
	if o.ShopCurrency, err = currency.NormalizeCode(shopCode); err != nil {
		return o, fmt.Errorf("order %s shop: %w", o.ID, domain.ErrInvalidCurrency)
	}

	if n.CreatedAt != "" {
		created, err := parseDate(n.CreatedAt)
		if err != nil {
			return o, fmt.Errorf("createdAt: %w", err)
		}
		o.CreatedAt = created
	}

	o.DeriveExchangeRate()
	return o, o.Validate()
}
