package currency

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Rounding precision for settlement amounts and exchange rates. Rates carry
// more places because small errors compound over large gross amounts.
const (
	AmountPlaces int32 = 2
	RatePlaces   int32 = 4
)

var hundred = decimal.NewFromInt(100)

// RoundAmount rounds a currency amount to cents.
func RoundAmount(d decimal.Decimal) decimal.Decimal {
	return d.Round(AmountPlaces)
}

// RoundRate rounds an exchange rate to four places.
func RoundRate(d decimal.Decimal) decimal.Decimal {
	return d.Round(RatePlaces)
}

// SafeDiv returns num/den, or zero when den is zero.
func SafeDiv(num, den decimal.Decimal) decimal.Decimal {
	if den.IsZero() {
		return decimal.Zero
	}
	return num.Div(den)
}

// Percent returns num/den*100 rounded to two places, zero when den is zero.
func Percent(num, den decimal.Decimal) decimal.Decimal {
	return SafeDiv(num, den).Mul(hundred).Round(AmountPlaces)
}

// ExchangeRate returns customer units per shop unit (customer/shop) rounded to
// four places. A non-positive shop amount yields zero, meaning "no conversion
// known".
func ExchangeRate(customerAmount, shopAmount decimal.Decimal) decimal.Decimal {
	if !shopAmount.IsPositive() {
		return decimal.Zero
	}
	return RoundRate(customerAmount.Div(shopAmount))
}

// Sum adds amounts without rounding.
func Sum(amounts ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, a := range amounts {
		total = total.Add(a)
	}
	return total
}

// NormalizeCode upper-cases and validates an ISO 4217 style currency code.
func NormalizeCode(code string) (string, error) {
	c := strings.ToUpper(strings.TrimSpace(code))
	if len(c) != 3 {
		return "", fmt.Errorf("invalid currency code: %q", code)
	}
	for _, r := range c {
		if r < 'A' || r > 'Z' {
			return "", fmt.Errorf("invalid currency code: %q", code)
		}
	}
	return c, nil
}
