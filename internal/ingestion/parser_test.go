package ingestion

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/shopledger/payoutrecon/internal/domain"
)

func readTestdata(t *testing.T, name string) []byte {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", name))
	if err != nil {
		t.Fatalf("read %s: %v", name, err)
	}
	return data
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestParsePayoutsCSV(t *testing.T) {
	payouts, skipped, err := ParsePayoutsCSV(readTestdata(t, "payouts.csv"))
	if err != nil {
		t.Fatalf("ParsePayoutsCSV: %v", err)
	}

	if len(payouts) != 2 {
		t.Fatalf("Expected 2 payouts, got %d", len(payouts))
	}
	if len(skipped) != 3 {
		t.Errorf("Expected 3 skipped rows, got %d: %v", len(skipped), skipped)
	}

	p := payouts[0]
	if p.ID != "98001" || p.SettlementDay() != "2024-03-15" {
		t.Errorf("Unexpected first payout %+v", p)
	}
	if !p.GrossAmount.Equal(dec("405.61")) || !p.NetAmount.Equal(dec("393.44")) {
		t.Errorf("Expected gross 405.61 and net 393.44, got %s and %s", p.GrossAmount, p.NetAmount)
	}
	if payouts[1].Currency != "EUR" {
		t.Errorf("Expected currency normalised to EUR, got %q", payouts[1].Currency)
	}
	if !payouts[1].RefundsGross.IsZero() {
		t.Errorf("Expected empty refunds to parse as zero, got %s", payouts[1].RefundsGross)
	}

	if !errors.Is(skipped[0], domain.ErrMissingDate) {
		t.Errorf("Expected first skipped row to be a missing date, got %v", skipped[0])
	}
	if !errors.Is(skipped[2], domain.ErrInvalidCurrency) {
		t.Errorf("Expected last skipped row to be an invalid currency, got %v", skipped[2])
	}
	if skipped[0].Row != 4 || skipped[0].ID != "98003" {
		t.Errorf("Expected row 4 (98003), got row %d (%s)", skipped[0].Row, skipped[0].ID)
	}
}

func TestParsePayoutsCSVMissingColumn(t *testing.T) {
	_, _, err := ParsePayoutsCSV([]byte("payout_id,settlement_date,currency\n1,2024-03-01,EUR\n"))
	if err == nil {
		t.Fatal("Expected an error for a header without amounts")
	}
}

func TestParsePayoutsGraphQL(t *testing.T) {
	payouts, skipped, err := ParsePayoutsGraphQL(readTestdata(t, "payouts_graphql.json"))
	if err != nil {
		t.Fatalf("ParsePayoutsGraphQL: %v", err)
	}

	if len(payouts) != 2 {
		t.Fatalf("Expected 2 payouts, got %d", len(payouts))
	}
	if len(skipped) != 1 || !errors.Is(skipped[0], errMissingCharges) {
		t.Errorf("Expected the payout without charges to be skipped, got %v", skipped)
	}

	if payouts[1].ID != "98002" {
		t.Errorf("Expected id taken from the gid, got %q", payouts[1].ID)
	}
	if !payouts[1].RefundsGross.Equal(dec("10")) {
		t.Errorf("Expected refunds 10, got %s", payouts[1].RefundsGross)
	}
	if !payouts[0].FeeRatePercent().Equal(dec("3")) {
		t.Errorf("Expected fee rate 3%%, got %s", payouts[0].FeeRatePercent())
	}
}

func TestParsePayoutsGraphQLErrors(t *testing.T) {
	_, _, err := ParsePayoutsGraphQL([]byte(`{"errors":[{"message":"Access denied"}]}`))
	if err == nil {
		t.Fatal("Expected the GraphQL error to be reported")
	}
}

func TestParseOrdersGraphQL(t *testing.T) {
	orders, skipped, err := ParseOrdersGraphQL(readTestdata(t, "orders_graphql.json"))
	if err != nil {
		t.Fatalf("ParseOrdersGraphQL: %v", err)
	}

	if len(orders) != 2 {
		t.Fatalf("Expected 2 orders, got %d", len(orders))
	}
	if len(skipped) != 2 {
		t.Errorf("Expected 2 skipped orders, got %v", skipped)
	}

	o := orders[0]
	if o.ID != "5501" || o.Number != "1001" {
		t.Errorf("Expected id 5501 and number 1001, got %s and %s", o.ID, o.Number)
	}
	if o.CustomerCurrency != "USD" || o.ShopCurrency != "EUR" {
		t.Errorf("Unexpected currencies %s/%s", o.CustomerCurrency, o.ShopCurrency)
	}
	if !o.ExchangeRate.Equal(dec("1.1765")) {
		t.Errorf("Expected rate 1.1765, got %s", o.ExchangeRate)
	}
	if !o.ShopTax.Equal(dec("4.25")) || !o.CustomerShipping.Equal(dec("5")) {
		t.Errorf("Unexpected breakdown %+v", o)
	}
	if o.PaymentGateway != "shopify_payments" || o.CustomerCountry != "United States" {
		t.Errorf("Unexpected informational fields %q/%q", o.PaymentGateway, o.CustomerCountry)
	}

	if !orders[1].ExchangeRate.IsZero() {
		t.Errorf("Expected zero rate for a zero shop total, got %s", orders[1].ExchangeRate)
	}

	// 2024-03-13T18:02:11+01:00 is reported on the UTC calendar.
	want := time.Date(2024, 3, 13, 17, 2, 11, 0, time.UTC)
	if got := orders[1].CreatedAt; !got.Equal(want) || got.Location() != time.UTC {
		t.Errorf("Expected created at %s in UTC, got %s", want, got)
	}
}

func TestParseDateNormalisesToUTC(t *testing.T) {
	tests := []struct {
		in   string
		want time.Time
	}{
		{"2024-03-15", time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)},
		{"2024-03-15T23:30:00-02:00", time.Date(2024, 3, 16, 1, 30, 0, 0, time.UTC)},
		{" 2024-03-15T04:12:00Z ", time.Date(2024, 3, 15, 4, 12, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseDate(tt.in)
			if err != nil {
				t.Fatalf("parseDate: %v", err)
			}
			if !got.Equal(tt.want) || got.Location() != time.UTC {
				t.Errorf("Expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestParsePayoutsInvalidCurrency(t *testing.T) {
	csvData := []byte("payout_id,settlement_date,gross_sales,processing_fee,net_amount,currency\n" +
		"1,2024-03-01,10.00,0.30,9.70,EU\n")
	_, skipped, err := ParsePayoutsCSV(csvData)
	if err != nil {
		t.Fatalf("ParsePayoutsCSV: %v", err)
	}
	if len(skipped) != 1 || !errors.Is(skipped[0], domain.ErrInvalidCurrency) {
		t.Fatalf("Expected one invalid currency row, got %v", skipped)
	}
	if !strings.Contains(skipped[0].Error(), `"EU"`) {
		t.Errorf("Expected the offending code in the error, got %v", skipped[0])
	}

	gqlData := []byte(`{"data":{"shopifyPaymentsAccount":{"payouts":{"edges":[{"node":{
		"legacyResourceId":"2","issuedAt":"2024-03-01T04:00:00Z",
		"net":{"amount":"9.70","currencyCode":"E1R"},
		"summary":{"chargesGross":{"amount":"10.00","currencyCode":"E1R"},
		"chargesFee":{"amount":"0.30","currencyCode":"E1R"}}}}]}}}}`)
	_, skipped, err = ParsePayoutsGraphQL(gqlData)
	if err != nil {
		t.Fatalf("ParsePayoutsGraphQL: %v", err)
	}
	if len(skipped) != 1 || !errors.Is(skipped[0], domain.ErrInvalidCurrency) {
		t.Errorf("Expected one invalid currency payout, got %v", skipped)
	}
}

func TestParseUnsupportedFormat(t *testing.T) {
	if _, _, err := ParsePayouts("xlsx", nil); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("Expected ErrUnsupportedFormat, got %v", err)
	}
	if _, _, err := ParseOrders(FormatPayoutsCSV, nil); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("Expected ErrUnsupportedFormat, got %v", err)
	}
	if _, _, err := ParseOrders(FormatOrdersGraphQL, []byte("{")); !errors.Is(err, ErrMalformedFile) {
		t.Errorf("Expected ErrMalformedFile, got %v", err)
	}
}
