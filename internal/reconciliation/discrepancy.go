package reconciliation

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/shopledger/payoutrecon/internal/currency"
	"github.com/shopledger/payoutrecon/internal/domain"
)

// detectDiscrepancies turns a payout validation into zero or more
// discrepancies. A payout without candidates raises only NO_CANDIDATES; the
// shop-amount check is meaningless without orders.
func detectDiscrepancies(r domain.PayoutReconciliation, now time.Time) []domain.Discrepancy {
	var discs []domain.Discrepancy

	if r.CandidateCount == 0 {
		discs = append(discs, domain.Discrepancy{
			ID:          fmt.Sprintf("DISC-NC-%s", r.PayoutID),
			Type:        domain.DiscrepancyNoCandidates,
			PayoutID:    r.PayoutID,
			Expected:    r.GrossAmount,
			Actual:      decimal.Zero,
			Difference:  r.GrossAmount.Neg(),
			Currency:    r.Currency,
			Severity:    severityByAmount(r.GrossAmount),
			Description: fmt.Sprintf("Payout %s (%s %s) has no orders within the lookback window", r.PayoutID, r.GrossAmount.StringFixed(2), r.Currency),
			DetectedAt:  now,
		})
	} else if !r.CurrencyMatch {
		diff := r.ShopTotal.Sub(r.GrossAmount)
		pct := currency.SafeDiv(diff.Abs(), r.GrossAmount)
		discs = append(discs, domain.Discrepancy{
			ID:         fmt.Sprintf("DISC-SM-%s", r.PayoutID),
			Type:       domain.DiscrepancyShopAmountMismatch,
			PayoutID:   r.PayoutID,
			Expected:   r.GrossAmount,
			Actual:     r.ShopTotal,
			Difference: diff,
			Currency:   r.Currency,
			Severity:   mismatchSeverity(pct, diff.Abs()),
			Description: fmt.Sprintf(
				"Payout %s gross %s %s explained by %d orders totalling %s (%s%% diff)",
				r.PayoutID, r.GrossAmount.StringFixed(2), r.Currency, r.MappedOrderCount,
				r.ShopTotal.StringFixed(2), pct.Mul(hundred).StringFixed(1),
			),
			DetectedAt: now,
		})
	}

	if !r.NetMatch {
		expected := r.GrossAmount.Sub(r.ProcessingFee)
		diff := r.NetAmount.Sub(expected)
		pct := currency.SafeDiv(diff.Abs(), expected)
		discs = append(discs, domain.Discrepancy{
			ID:         fmt.Sprintf("DISC-NM-%s", r.PayoutID),
			Type:       domain.DiscrepancyNetAmountMismatch,
			PayoutID:   r.PayoutID,
			Expected:   expected,
			Actual:     r.NetAmount,
			Difference: diff,
			Currency:   r.Currency,
			Severity:   mismatchSeverity(pct, diff.Abs()),
			Description: fmt.Sprintf(
				"Payout %s net %s %s does not equal gross minus fee %s",
				r.PayoutID, r.NetAmount.StringFixed(2), r.Currency, expected.StringFixed(2),
			),
			DetectedAt: now,
		})
	}

	return discs
}

// --- helpers ---

var (
	fiveHundred = decimal.NewFromInt(500)
	twoPercent  = decimal.RequireFromString("0.02")
)

func severityByAmount(amount decimal.Decimal) domain.Severity {
	switch {
	case amount.GreaterThan(fiveHundred):
		return domain.SeverityHigh
	case amount.GreaterThan(hundred):
		return domain.SeverityMedium
	default:
		return domain.SeverityLow
	}
}

func mismatchSeverity(pctDiff, absDiff decimal.Decimal) domain.Severity {
	if absDiff.GreaterThan(fiveHundred) {
		return domain.SeverityCritical
	}
	if pctDiff.GreaterThan(twoPercent) {
		return domain.SeverityHigh
	}
	return domain.SeverityMedium
}
