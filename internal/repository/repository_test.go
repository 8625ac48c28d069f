package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/shopledger/payoutrecon/internal/domain"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := InitDB(":memory:")
	if err != nil {
		t.Fatalf("InitDB: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func day(s string) time.Time {
	t, err := time.Parse(domain.DateLayout, s)
	if err != nil {
		panic(err)
	}
	return t
}

func testOrder(id, created, shop string) domain.Order {
	o := domain.Order{
		ID:                id,
		Number:            "#" + id,
		CreatedAt:         day(created),
		CustomerCurrency:  "USD",
		CustomerTotal:     dec(shop).Mul(dec("1.1")),
		CustomerSubtotal:  dec(shop),
		CustomerTax:       decimal.Zero,
		CustomerShipping:  decimal.Zero,
		CustomerDiscounts: decimal.Zero,
		ShopCurrency:      "EUR",
		ShopTotal:         dec(shop),
		ShopSubtotal:      dec(shop),
		ShopTax:           decimal.Zero,
		ShopShipping:      decimal.Zero,
		ShopDiscounts:     decimal.Zero,
	}
	o.DeriveExchangeRate()
	return o
}

func TestPayoutRepoRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := NewPayoutRepo(newTestDB(t))

	payouts := []domain.Payout{
		{ID: "p1", SettlementDate: day("2024-03-01"), GrossAmount: dec("405.61"), ProcessingFee: dec("12.07"), NetAmount: dec("393.54"), Currency: "EUR", RefundsGross: decimal.Zero, AdjustmentsGross: decimal.Zero},
		{ID: "p2", SettlementDate: day("2024-03-03"), GrossAmount: dec("80"), ProcessingFee: dec("2"), NetAmount: dec("78"), Currency: "EUR", RefundsGross: decimal.Zero, AdjustmentsGross: decimal.Zero},
	}

	n, err := repo.BulkInsert(ctx, payouts, "")
	if err != nil {
		t.Fatalf("BulkInsert: %v", err)
	}
	if n != 2 {
		t.Errorf("Expected 2 inserted, got %d", n)
	}

	n, err = repo.BulkInsert(ctx, payouts, "")
	if err != nil {
		t.Fatalf("second BulkInsert: %v", err)
	}
	if n != 0 {
		t.Errorf("Expected duplicates to be ignored, got %d inserted", n)
	}

	got, err := repo.GetByID(ctx, "p1")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if !got.GrossAmount.Equal(dec("405.61")) {
		t.Errorf("Expected gross 405.61, got %s", got.GrossAmount)
	}
	if got.SettlementDay() != "2024-03-01" {
		t.Errorf("Expected settlement day 2024-03-01, got %s", got.SettlementDay())
	}

	if _, err := repo.GetByID(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}

	inRange, err := repo.ListSettledBetween(ctx, day("2024-03-01"), day("2024-03-03"))
	if err != nil {
		t.Fatalf("ListSettledBetween: %v", err)
	}
	if len(inRange) != 1 || inRange[0].ID != "p1" {
		t.Errorf("Expected only p1 in [03-01, 03-03), got %+v", inRange)
	}
}

func TestOrderRepoAssignPayouts(t *testing.T) {
	ctx := context.Background()
	repo := NewOrderRepo(newTestDB(t))

	orders := []domain.Order{
		testOrder("o1", "2024-03-01", "40"),
		testOrder("o2", "2024-03-02", "40"),
		testOrder("o3", "2024-03-02", "40"),
	}
	if _, err := repo.BulkInsert(ctx, orders, ""); err != nil {
		t.Fatalf("BulkInsert: %v", err)
	}

	p1 := domain.Payout{ID: "p1", SettlementDate: day("2024-03-03")}
	p2 := domain.Payout{ID: "p2", SettlementDate: day("2024-03-04")}
	assigned := []domain.Order{
		orders[0].AssignedTo(p1),
		orders[1].AssignedTo(p1),
		orders[1].AssignedTo(p2),
	}
	pool := []string{"o1", "o2", "o3"}

	if err := repo.AssignPayouts(ctx, pool, assigned); err != nil {
		t.Fatalf("AssignPayouts: %v", err)
	}

	o2, err := repo.GetByID(ctx, "o2")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if o2.MappedPayoutID != "p1" {
		t.Errorf("Expected first assignment to win, got %q", o2.MappedPayoutID)
	}
	if o2.EstimatedPayoutDate == nil || !o2.EstimatedPayoutDate.Equal(day("2024-03-03")) {
		t.Errorf("Expected estimated payout date 2024-03-03, got %v", o2.EstimatedPayoutDate)
	}

	unmapped, total, err := repo.List(ctx, OrderFilter{Unmapped: true})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if total != 1 || unmapped[0].ID != "o3" {
		t.Errorf("Expected only o3 unmapped, got %d: %+v", total, unmapped)
	}

	// Re-running with nothing assigned clears the previous annotations.
	if err := repo.AssignPayouts(ctx, pool, nil); err != nil {
		t.Fatalf("AssignPayouts: %v", err)
	}
	mapped, err := repo.GetByPayoutID(ctx, "p1")
	if err != nil {
		t.Fatalf("GetByPayoutID: %v", err)
	}
	if len(mapped) != 0 {
		t.Errorf("Expected annotations cleared, got %d orders", len(mapped))
	}
}

func TestRunRepoInsertAndRead(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	runs := NewRunRepo(db)
	discs := NewDiscrepancyRepo(db)

	if _, err := runs.Latest(ctx); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Expected ErrNotFound with no runs, got %v", err)
	}

	started := time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC)
	run := &domain.Run{
		ID:          "run-1",
		From:        day("2024-03-01"),
		To:          day("2024-03-03"),
		Strategy:    "heuristic",
		StartedAt:   started,
		CompletedAt: started.Add(time.Second),
		Summary:     domain.Summary{TotalPayouts: 1, TotalOrders: 2, TotalShopAmountFromPayouts: dec("80")},
		Metrics:     domain.CurrencyMetrics{AverageExchangeRate: dec("1.1")},
	}
	results := []domain.PayoutReconciliation{{
		PayoutID: "p1", SettlementDate: day("2024-03-03"), Currency: "EUR",
		GrossAmount: dec("80"), ProcessingFee: dec("2"), NetAmount: dec("78"), FeeRatePercent: dec("2.5"),
		CandidateCount: 3, MappedOrderCount: 2, CustomerTotal: dec("88"), ShopTotal: dec("80"),
		AverageExchangeRate: dec("1.1"), ShopDifference: decimal.Zero, CurrencyMatch: true, NetMatch: true,
		Strategy: "heuristic",
	}}
	mappings := []domain.PayoutOrderMapping{
		{PayoutID: "p1", PayoutDate: "2024-03-03", PayoutGross: dec("80"), OrderID: "o1", OrderNumber: "#o1", OrderDate: "2024-03-01", CustomerAmount: dec("44"), ShopAmount: dec("40"), ExchangeRate: dec("1.1"), DaysToPayout: 2, CustomerCurrency: "USD", ShopCurrency: "EUR"},
		{PayoutID: "p1", PayoutDate: "2024-03-03", PayoutGross: dec("80"), OrderID: "o2", OrderNumber: "#o2", OrderDate: "2024-03-02", CustomerAmount: dec("44"), ShopAmount: dec("40"), ExchangeRate: dec("1.1"), DaysToPayout: 1, CustomerCurrency: "USD", ShopCurrency: "EUR"},
	}

	if err := runs.Insert(ctx, run, results, mappings); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	latest, err := runs.Latest(ctx)
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if latest.ID != "run-1" {
		t.Errorf("Expected run-1, got %s", latest.ID)
	}
	if !latest.Summary.TotalShopAmountFromPayouts.Equal(dec("80")) {
		t.Errorf("Expected summary to round-trip, got %+v", latest.Summary)
	}

	stored, err := runs.PayoutResults(ctx, "run-1")
	if err != nil {
		t.Fatalf("PayoutResults: %v", err)
	}
	if len(stored) != 1 || !stored[0].CurrencyMatch || stored[0].MappedOrderCount != 2 {
		t.Errorf("Unexpected payout results: %+v", stored)
	}

	got, err := runs.Mappings(ctx, "run-1", "p1")
	if err != nil {
		t.Fatalf("Mappings: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Expected 2 mappings, got %d", len(got))
	}
	if got[0].OrderID != "o2" {
		t.Errorf("Expected mappings ordered by days to payout, got %s first", got[0].OrderID)
	}

	d := []domain.Discrepancy{
		{ID: "DISC-SM-p1", Type: domain.DiscrepancyShopAmountMismatch, PayoutID: "p1", Expected: dec("80"), Actual: dec("70"), Difference: dec("-10"), Currency: "EUR", Severity: domain.SeverityLow, DetectedAt: started},
		{ID: "DISC-NM-p1", Type: domain.DiscrepancyNetAmountMismatch, PayoutID: "p1", Expected: dec("78"), Actual: dec("77"), Difference: dec("-1"), Currency: "EUR", Severity: domain.SeverityMedium, DetectedAt: started},
	}
	if n, err := discs.BulkInsert(ctx, "run-1", d); err != nil || n != 2 {
		t.Fatalf("BulkInsert discrepancies: n=%d err=%v", n, err)
	}

	summary, err := discs.GetSummary(ctx, "run-1")
	if err != nil {
		t.Fatalf("GetSummary: %v", err)
	}
	if summary.TotalCount != 2 {
		t.Errorf("Expected 2 discrepancies, got %d", summary.TotalCount)
	}
	if !summary.TotalImpact.Equal(dec("11")) {
		t.Errorf("Expected total impact 11, got %s", summary.TotalImpact)
	}

	list, total, err := discs.List(ctx, DiscrepancyFilter{RunID: "run-1", Severity: "LOW"})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if total != 1 || list[0].ID != "DISC-SM-p1" {
		t.Errorf("Expected only the LOW discrepancy, got %d: %+v", total, list)
	}
}

func TestImportRepoExistsByHash(t *testing.T) {
	ctx := context.Background()
	repo := NewImportRepo(newTestDB(t))

	exists, err := repo.ExistsByHash(ctx, "abc")
	if err != nil {
		t.Fatalf("ExistsByHash: %v", err)
	}
	if exists {
		t.Error("Expected hash to be unknown")
	}

	b := &domain.ImportBatch{ID: "imp-1", Kind: "payouts", Format: "payouts_csv", FileHash: "abc", RecordCount: 3, IngestedAt: time.Now()}
	if err := repo.Insert(ctx, b); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	exists, err = repo.ExistsByHash(ctx, "abc")
	if err != nil {
		t.Fatalf("ExistsByHash: %v", err)
	}
	if !exists {
		t.Error("Expected hash to be recorded")
	}
}

func TestRunRepoLatestWithinOneSecond(t *testing.T) {
	ctx := context.Background()
	runs := NewRunRepo(newTestDB(t))

	base := time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC)
	insert := func(id string, completed time.Time) {
		t.Helper()
		run := &domain.Run{
			ID: id, From: day("2024-03-01"), To: day("2024-03-03"), Strategy: "heuristic",
			StartedAt: base, CompletedAt: completed,
		}
		if err := runs.Insert(ctx, run, nil, nil); err != nil {
			t.Fatalf("Insert %s: %v", id, err)
		}
	}

	// Stored out of completion order, 300ms apart.
	insert("manual", base.Add(700*time.Millisecond))
	insert("import", base.Add(400*time.Millisecond))

	latest, err := runs.Latest(ctx)
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if latest.ID != "manual" {
		t.Errorf("Expected the run completed last, got %s", latest.ID)
	}
	if !latest.CompletedAt.Equal(base.Add(700 * time.Millisecond)) {
		t.Errorf("Expected sub-second completion time to round-trip, got %s", latest.CompletedAt)
	}

	// Identical completion instants resolve to the run stored last.
	insert("tie", base.Add(700*time.Millisecond))
	latest, err = runs.Latest(ctx)
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if latest.ID != "tie" {
		t.Errorf("Expected the run stored last on a tie, got %s", latest.ID)
	}

	list, total, err := runs.List(ctx, 1, 10)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if total != 3 || list[0].ID != "tie" || list[2].ID != "import" {
		t.Errorf("Expected newest first, got %d runs: %+v", total, list)
	}
}
