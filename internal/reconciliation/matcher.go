package reconciliation

import (
	"sort"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/shopledger/payoutrecon/internal/domain"
)

// Selection is the set of candidate orders a matcher attributed to a payout.
type Selection struct {
	Orders       []domain.Order
	RunningTotal decimal.Decimal
	Cutoff       decimal.Decimal
	Strategy     Strategy
}

// Matcher picks, from a payout's candidate orders, the subset whose shop
// totals explain the payout gross.
type Matcher interface {
	Match(p domain.Payout, candidates []domain.Order) Selection
}

// NewMatcher returns the matcher for cfg.Strategy.
func NewMatcher(cfg Config, log logrus.FieldLogger) Matcher {
	cfg = cfg.normalized()
	greedy := &GreedyMatcher{Tolerance: cfg.OvershootTolerance}
	if cfg.Strategy != StrategyExact {
		return greedy
	}
	return &ExactMatcher{
		Tolerance:     cfg.OvershootTolerance,
		MaxCandidates: cfg.ExactMaxCandidates,
		MaxCents:      cfg.ExactMaxCents,
		Fallback:      greedy,
		Log:           log,
	}
}

// Cutoff is the largest running total a payout may absorb.
func Cutoff(gross, tolerance decimal.Decimal) decimal.Decimal {
	return gross.Mul(decimal.NewFromInt(1).Add(tolerance))
}

// GreedyMatcher walks the candidates nearest-first and admits each one while
// the running total stays within the cutoff. It stops at the first candidate
// that would overshoot.
type GreedyMatcher struct {
	Tolerance decimal.Decimal
}

func (m *GreedyMatcher) Match(p domain.Payout, candidates []domain.Order) Selection {
	sel := Selection{
		RunningTotal: decimal.Zero,
		Cutoff:       Cutoff(p.GrossAmount, m.Tolerance),
		Strategy:     StrategyHeuristic,
	}

	for _, o := range sortByProximity(p, candidates) {
		next := sel.RunningTotal.Add(o.ShopTotal)
		if next.GreaterThan(sel.Cutoff) {
			break
		}
		sel.Orders = append(sel.Orders, o)
		sel.RunningTotal = next
	}
	return sel
}

// ExactMatcher searches every subset sum of the candidates in cents and picks
// the one closest to the gross without exceeding the cutoff. Ties go to the
// lower sum. Candidates are ranked nearest-first so that, between subsets
// reaching the same sum, the one built from nearer orders wins.
type ExactMatcher struct {
	Tolerance     decimal.Decimal
	MaxCandidates int
	MaxCents      int64
	Fallback      Matcher
	Log           logrus.FieldLogger
}

func (m *ExactMatcher) Match(p domain.Payout, candidates []domain.Order) Selection {
	cutoff := Cutoff(p.GrossAmount, m.Tolerance)
	cutoffCents := cutoff.Mul(hundred).Floor().IntPart()

	if len(candidates) > m.MaxCandidates || cutoffCents > m.MaxCents {
		if m.Log != nil {
			m.Log.WithFields(logrus.Fields{
				"payout_id":    p.ID,
				"candidates":   len(candidates),
				"cutoff_cents": cutoffCents,
			}).Warn("exact search bounds exceeded, falling back to heuristic")
		}
		return m.Fallback.Match(p, candidates)
	}

	sorted := sortByProximity(p, candidates)
	weights := make([]int64, len(sorted))
	for i, o := range sorted {
		weights[i] = o.ShopTotal.Mul(hundred).Ceil().IntPart()
	}

	// reached[s] reports whether some subset sums to s cents; from[s] is the
	// first item that reached it.
	reached := make([]bool, cutoffCents+1)
	from := make([]int32, cutoffCents+1)
	reached[0] = true
	for i, w := range weights {
		if w <= 0 || w > cutoffCents {
			continue
		}
		for s := cutoffCents; s >= w; s-- {
			if !reached[s] && reached[s-w] {
				reached[s] = true
				from[s] = int32(i)
			}
		}
	}

	grossCents := p.GrossAmount.Mul(hundred).Round(0).IntPart()
	best := int64(0)
	bestGap := abs64(grossCents)
	for s := int64(1); s <= cutoffCents; s++ {
		if !reached[s] {
			continue
		}
		if gap := abs64(grossCents - s); gap < bestGap {
			best, bestGap = s, gap
		}
	}

	picked := make([]bool, len(sorted))
	for s := best; s > 0; {
		i := from[s]
		picked[i] = true
		s -= weights[i]
	}

	sel := Selection{
		RunningTotal: decimal.Zero,
		Cutoff:       cutoff,
		Strategy:     StrategyExact,
	}
	for i, o := range sorted {
		if picked[i] || weights[i] <= 0 {
			sel.Orders = append(sel.Orders, o)
			sel.RunningTotal = sel.RunningTotal.Add(o.ShopTotal)
		}
	}
	return sel
}

var hundred = decimal.NewFromInt(100)

// sortByProximity returns a copy of orders stably ordered by how close their
// creation is to the settlement date.
func sortByProximity(p domain.Payout, orders []domain.Order) []domain.Order {
	sorted := make([]domain.Order, len(orders))
	copy(sorted, orders)
	sort.SliceStable(sorted, func(i, j int) bool {
		return absInt(DaysToPayout(p.SettlementDate, sorted[i].CreatedAt)) <
			absInt(DaysToPayout(p.SettlementDate, sorted[j].CreatedAt))
	})
	return sorted
}

func absInt(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

func abs64(n int64) int64 {
	if n < 0 {
		return -n
	}
	return n
}
