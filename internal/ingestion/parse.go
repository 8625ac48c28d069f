package ingestion

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/shopledger/payoutrecon/internal/currency"
	"github.com/shopledger/payoutrecon/internal/domain"
)

// Supported export formats.
const (
	FormatPayoutsCSV     = "payouts_csv"
	FormatPayoutsGraphQL = "payouts_graphql"
	FormatOrdersGraphQL  = "orders_graphql"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported format")
	ErrMalformedFile     = errors.New("malformed file")
)

// RowError describes a record that was skipped while parsing.
type RowError struct {
	Row int    `json:"row"`
	ID  string `json:"id,omitempty"`
	Err error  `json:"-"`
}

func (e RowError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("row %d (%s): %v", e.Row, e.ID, e.Err)
	}
	return fmt.Sprintf("row %d: %v", e.Row, e.Err)
}

func (e RowError) Unwrap() error {
	return e.Err
}

// ParsePayouts decodes a payout export in the given format. Records that
// cannot be parsed or fail validation are returned as row errors; only an
// unreadable file yields an error.
func ParsePayouts(format string, data []byte) ([]domain.Payout, []RowError, error) {
	var (
		payouts []domain.Payout
		skipped []RowError
		err     error
	)
	switch format {
	case FormatPayoutsCSV:
		payouts, skipped, err = ParsePayoutsCSV(data)
	case FormatPayoutsGraphQL:
		payouts, skipped, err = ParsePayoutsGraphQL(data)
	default:
		return nil, nil, fmt.Errorf("%w: %q for payouts", ErrUnsupportedFormat, format)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrMalformedFile, err)
	}
	return payouts, skipped, nil
}

// ParseOrders decodes an order export in the given format.
func ParseOrders(format string, data []byte) ([]domain.Order, []RowError, error) {
	if format != FormatOrdersGraphQL {
		return nil, nil, fmt.Errorf("%w: %q for orders", ErrUnsupportedFormat, format)
	}
	orders, skipped, err := ParseOrdersGraphQL(data)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrMalformedFile, err)
	}
	return orders, skipped, nil
}

// --- helpers ---

// parseDate accepts a calendar date or an RFC3339 timestamp. Timestamps are
// normalised to UTC, the zone all days are reported in.
func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(domain.DateLayout, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

// parseCurrency normalises a currency code, reporting a bad one as
// domain.ErrInvalidCurrency.
func parseCurrency(code string) (string, error) {
	c, err := currency.NormalizeCode(code)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrInvalidCurrency, err)
	}
	return c, nil
}

func parseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}

// gidSuffix strips a "gid://shopify/Order/123" style id down to "123".
func gidSuffix(id string) string {
	if i := strings.LastIndex(id, "/"); i >= 0 {
		return id[i+1:]
	}
	return id
}
