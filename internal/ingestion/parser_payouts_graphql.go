package ingestion

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/shopledger/payoutrecon/internal/domain"
)

// payoutsResponse is the response to a Shopify Payments payouts query.
type payoutsResponse struct {
	Data *struct {
		ShopifyPaymentsAccount *struct {
			Payouts struct {
				Edges []struct {
					Node payoutNode `json:"node"`
				} `json:"edges"`
			} `json:"payouts"`
		} `json:"shopifyPaymentsAccount"`
	} `json:"data"`
	Errors []graphQLError `json:"errors"`
}

type payoutNode struct {
	ID               string `json:"id"`
	LegacyResourceID string `json:"legacyResourceId"`
	IssuedAt         string `json:"issuedAt"`
	Status           string `json:"status"`
	Net              *money `json:"net"`
	Summary          struct {
		ChargesGross     *money `json:"chargesGross"`
		ChargesFee       *money `json:"chargesFee"`
		RefundsFeeGross  *money `json:"refundsFeeGross"`
		AdjustmentsGross *money `json:"adjustmentsGross"`
	} `json:"summary"`
}

var errMissingCharges = errors.New("missing summary.chargesGross")

// ParsePayoutsGraphQL parses a Shopify Payments payouts GraphQL response.
func ParsePayoutsGraphQL(data []byte) ([]domain.Payout, []RowError, error) {
	var resp payoutsResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, nil, fmt.Errorf("unmarshal: %w", err)
	}
	if resp.Data == nil || resp.Data.ShopifyPaymentsAccount == nil {
		if len(resp.Errors) > 0 {
			return nil, nil, responseError(resp.Errors)
		}
		return nil, nil, fmt.Errorf("missing data.shopifyPaymentsAccount")
	}

	var payouts []domain.Payout
	var skipped []RowError

	for i, edge := range resp.Data.ShopifyPaymentsAccount.Payouts.Edges {
		p, err := payoutFromNode(edge.Node)
		if err != nil {
			skipped = append(skipped, RowError{Row: i, ID: p.ID, Err: err})
			continue
		}
		payouts = append(payouts, p)
	}

	return payouts, skipped, nil
}

func payoutFromNode(n payoutNode) (domain.Payout, error) {
	p := domain.Payout{
		ID:               n.LegacyResourceID,
		Status:           n.Status,
		RefundsGross:     amountOf(n.Summary.RefundsFeeGross),
		AdjustmentsGross: amountOf(n.Summary.AdjustmentsGross),
		NetAmount:        amountOf(n.Net),
		ProcessingFee:    amountOf(n.Summary.ChargesFee),
	}
	if p.ID == "" {
		p.ID = gidSuffix(n.ID)
	}

	if n.Summary.ChargesGross == nil {
		return p, errMissingCharges
	}
	p.GrossAmount = n.Summary.ChargesGross.Amount

	code := n.Summary.ChargesGross.CurrencyCode
	if code == "" && n.Net != nil {
		code = n.Net.CurrencyCode
	}
	var err error
	if p.Currency, err = parseCurrency(code); err != nil {
		return p, err
	}

	if n.IssuedAt != "" {
		issued, err := parseDate(n.IssuedAt)
		if err != nil {
			return p, fmt.Errorf("issuedAt: %w", err)
		}
		p.SettlementDate = issued
	}

	return p, p.Validate()
}

func amountOf(m *money) decimal.Decimal {
	if m == nil {
		return decimal.Zero
	}
	return m.Amount
}
