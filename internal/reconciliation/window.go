package reconciliation

import (
	"time"

	"github.com/shopledger/payoutrecon/internal/domain"
)

const day = 24 * time.Hour

// DaysToPayout returns the calendar days from order creation to settlement,
// counted in the settlement's zone. An order created later on the settlement
// day is at day 0, one created the day after is at day -1.
func DaysToPayout(settlement, created time.Time) int {
	loc := settlement.Location()
	return int(calendarDay(settlement, loc).Sub(calendarDay(created, loc)) / day)
}

func calendarDay(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// SelectCandidates returns the orders created between 0 and maxLookbackDays
// days before the payout settled, in input order.
func SelectCandidates(p domain.Payout, orders []domain.Order, maxLookbackDays int) []domain.Order {
	var candidates []domain.Order
	for _, o := range orders {
		days := DaysToPayout(p.SettlementDate, o.CreatedAt)
		if days >= 0 && days <= maxLookbackDays {
			candidates = append(candidates, o)
		}
	}
	return candidates
}
