package ingestion

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/shopledger/payoutrecon/internal/domain"
)

var payoutCSVRequired = []string{"payout_id", "settlement_date", "gross_sales", "processing_fee", "net_amount", "currency"}

// ParsePayoutsCSV parses a header-keyed payout CSV export.
//
// Expected header (any column order, optional columns in brackets):
//
//	payout_id,settlement_date,[status],gross_sales,processing_fee,net_amount,currency,[refunds_gross],[adjustments_gross]
func ParsePayoutsCSV(data []byte) ([]domain.Payout, []RowError, error) {
	reader := csv.NewReader(strings.NewReader(string(data)))
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, nil, fmt.Errorf("read header: %w", err)
	}

	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	if _, ok := cols["gross_sales"]; !ok {
		if i, ok := cols["gross_amount"]; ok {
			cols["gross_sales"] = i
		}
	}
	for _, c := range payoutCSVRequired {
		if _, ok := cols[c]; !ok {
			return nil, nil, fmt.Errorf("missing column %q", c)
		}
	}

	field := func(row []string, name string) string {
		i, ok := cols[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	var payouts []domain.Payout
	var skipped []RowError
	lineNum := 1

	for {
		lineNum++
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				skipped = append(skipped, RowError{Row: lineNum, Err: err})
				continue
			}
			return nil, nil, fmt.Errorf("line %d: %w", lineNum, err)
		}

		p, err := payoutFromRow(row, field)
		if err != nil {
			skipped = append(skipped, RowError{Row: lineNum, ID: field(row, "payout_id"), Err: err})
			continue
		}
		payouts = append(payouts, p)
	}

	return payouts, skipped, nil
}

func payoutFromRow(row []string, field func([]string, string) string) (domain.Payout, error) {
	settled, err := parseDate(field(row, "settlement_date"))
	if err != nil {
		return domain.Payout{}, fmt.Errorf("settlement_date: %w", domain.ErrMissingDate)
	}

	amounts := map[string]*decimal.Decimal{}
	var p domain.Payout
	amounts["gross_sales"] = &p.GrossAmount
	amounts["processing_fee"] = &p.ProcessingFee
	amounts["net_amount"] = &p.NetAmount
	amounts["refunds_gross"] = &p.RefundsGross
	amounts["adjustments_gross"] = &p.AdjustmentsGross
	for name, dst := range amounts {
		v, err := parseAmount(field(row, name))
		if err != nil {
			return domain.Payout{}, fmt.Errorf("%s: %w", name, err)
		}
		*dst = v
	}

	p.ID = field(row, "payout_id")
	p.SettlementDate = settled
	p.Status = field(row, "status")
	if p.Currency, err = parseCurrency(field(row, "currency")); err != nil {
		return domain.Payout{}, err
	}

	if err := p.Validate(); err != nil {
		return domain.Payout{}, err
	}
	return p, nil
}
