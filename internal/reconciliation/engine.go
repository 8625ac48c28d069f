package reconciliation

import (
	"sort"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/sirupsen/logrus"

	"github.com/shopledger/payoutrecon/internal/domain"
)

// Batch is the input to one reconciliation: the payouts to explain and the
// orders that may explain them. From and To only label the summary; when
// zero, the range is taken from the payouts themselves.
type Batch struct {
	Payouts []domain.Payout
	Orders  []domain.Order
	From    time.Time
	To      time.Time
}

// SkippedRecord is an input record left out of the batch because it failed
// validation.
type SkippedRecord struct {
	Kind   string `json:"kind"`
	ID     string `json:"id"`
	Reason string `json:"reason"`
}

// Result is everything a reconciliation produces.
type Result struct {
	Orders        []domain.Order                `json:"orders"`
	Mappings      []domain.PayoutOrderMapping   `json:"mappings"`
	Payouts       []domain.PayoutReconciliation `json:"payouts"`
	Metrics       domain.CurrencyMetrics        `json:"currency_metrics"`
	Summary       domain.Summary                `json:"summary"`
	Discrepancies []domain.Discrepancy          `json:"discrepancies"`
	Skipped       []SkippedRecord               `json:"skipped,omitempty"`
}

// Engine attributes orders to payouts. It holds no state between calls.
type Engine struct {
	cfg     Config
	matcher Matcher
	log     logrus.FieldLogger
	now     func() time.Time
}

func NewEngine(cfg Config, log logrus.FieldLogger) *Engine {
	cfg = cfg.normalized()
	log = log.WithField("component", "reconciliation")
	return &Engine{
		cfg:     cfg,
		matcher: NewMatcher(cfg, log),
		log:     log,
		now:     time.Now,
	}
}

func (e *Engine) Config() Config {
	return e.cfg
}

// payoutOutcome is the per-payout work product, assembled into a Result.
type payoutOutcome struct {
	orders     []domain.Order
	mappings   []domain.PayoutOrderMapping
	validation domain.PayoutReconciliation
}

// Reconcile matches every valid payout in the batch against the valid orders.
// Records that fail validation are skipped, never fatal.
func (e *Engine) Reconcile(b Batch) *Result {
	payouts, orders, skipped := e.validate(b)

	var outcomes []payoutOutcome
	switch {
	case e.cfg.Exclusive:
		payouts, outcomes = e.reconcileExclusive(payouts, orders)
	case e.cfg.Workers > 1 && len(payouts) > 1:
		outcomes = e.reconcileParallel(payouts, orders)
	default:
		outcomes = make([]payoutOutcome, len(payouts))
		for i, p := range payouts {
			outcomes[i] = e.reconcileOne(p, orders)
		}
	}

	res := &Result{Skipped: skipped}
	now := e.now().UTC()
	for _, out := range outcomes {
		res.Orders = append(res.Orders, out.orders...)
		res.Mappings = append(res.Mappings, out.mappings...)
		res.Payouts = append(res.Payouts, out.validation)
		res.Discrepancies = append(res.Discrepancies, detectDiscrepancies(out.validation, now)...)
	}

	res.Metrics = CalculateCurrencyMetrics(res.Orders, payouts)
	res.Summary = e.summarize(b, payouts, res)

	e.log.WithFields(logrus.Fields{
		"payouts":       res.Summary.TotalPayouts,
		"mapped_orders": res.Summary.TotalOrders,
		"matched":       res.Summary.MatchedPayouts,
		"no_candidates": res.Summary.PayoutsWithoutCandidates,
		"skipped":       res.Summary.SkippedRecords,
		"discrepancies": len(res.Discrepancies),
		"accuracy_pct":  res.Metrics.ConversionAccuracyPercent.StringFixed(2),
	}).Info("reconciliation complete")

	return res
}

func (e *Engine) validate(b Batch) ([]domain.Payout, []domain.Order, []SkippedRecord) {
	var skipped []SkippedRecord

	payouts := make([]domain.Payout, 0, len(b.Payouts))
	for _, p := range b.Payouts {
		if err := p.Validate(); err != nil {
			e.log.WithError(err).WithField("payout_id", p.ID).Warn("skipping payout")
			skipped = append(skipped, SkippedRecord{Kind: "payout", ID: p.ID, Reason: err.Error()})
			continue
		}
		payouts = append(payouts, p)
	}

	orders := make([]domain.Order, 0, len(b.Orders))
	for _, o := range b.Orders {
		if err := o.Validate(); err != nil {
			e.log.WithError(err).WithField("order_id", o.ID).Warn("skipping order")
			skipped = append(skipped, SkippedRecord{Kind: "order", ID: o.ID, Reason: err.Error()})
			continue
		}
		o.DeriveExchangeRate()
		orders = append(orders, o)
	}

	return payouts, orders, skipped
}

func (e *Engine) reconcileOne(p domain.Payout, pool []domain.Order) payoutOutcome {
	candidates := SelectCandidates(p, pool, e.cfg.MaxLookbackDays)
	if len(candidates) == 0 {
		e.log.WithFields(logrus.Fields{
			"payout_id":       p.ID,
			"settlement_date": p.SettlementDay(),
		}).Warn("no candidate orders for payout")
	}

	sel := e.matcher.Match(p, candidates)

	out := payoutOutcome{
		validation: ValidatePayout(p, len(candidates), sel, e.cfg),
	}
	for _, o := range sel.Orders {
		out.orders = append(out.orders, o.AssignedTo(p))
		out.mappings = append(out.mappings, domain.PayoutOrderMapping{
			PayoutID:         p.ID,
			PayoutDate:       p.SettlementDay(),
			PayoutGross:      p.GrossAmount,
			OrderID:          o.ID,
			OrderNumber:      o.Number,
			OrderDate:        o.CreatedAt.Format(domain.DateLayout),
			CustomerAmount:   o.CustomerTotal,
			ShopAmount:       o.ShopTotal,
			ExchangeRate:     o.ExchangeRate,
			DaysToPayout:     DaysToPayout(p.SettlementDate, o.CreatedAt),
			CustomerCurrency: o.CustomerCurrency,
			ShopCurrency:     o.ShopCurrency,
		})
	}
	return out
}

// reconcileExclusive processes payouts oldest first and removes each
// selected order from the pool, so an order is attributed at most once.
func (e *Engine) reconcileExclusive(payouts []domain.Payout, orders []domain.Order) ([]domain.Payout, []payoutOutcome) {
	sorted := make([]domain.Payout, len(payouts))
	copy(sorted, payouts)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].SettlementDate.Before(sorted[j].SettlementDate)
	})

	pool := make([]domain.Order, len(orders))
	copy(pool, orders)

	outcomes := make([]payoutOutcome, len(sorted))
	for i, p := range sorted {
		outcomes[i] = e.reconcileOne(p, pool)
		if len(outcomes[i].orders) == 0 {
			continue
		}

		used := make(map[string]bool, len(outcomes[i].orders))
		for _, o := range outcomes[i].orders {
			used[o.ID] = true
		}
		remaining := pool[:0:0]
		for _, o := range pool {
			if !used[o.ID] {
				remaining = append(remaining, o)
			}
		}
		pool = remaining
	}
	return sorted, outcomes
}

// reconcileParallel fans payouts out over a bounded worker pool. Outcomes are
// stored by input index so the result order does not depend on scheduling.
func (e *Engine) reconcileParallel(payouts []domain.Payout, orders []domain.Order) []payoutOutcome {
	outcomes := make([]payoutOutcome, len(payouts))

	pool, err := ants.NewPool(e.cfg.Workers)
	if err != nil {
		e.log.WithError(err).Warn("worker pool unavailable, reconciling sequentially")
		for i, p := range payouts {
			outcomes[i] = e.reconcileOne(p, orders)
		}
		return outcomes
	}
	defer pool.Release()

	var wg sync.WaitGroup
	for i, p := range payouts {
		i, p := i, p
		wg.Add(1)
		task := func() {
			defer wg.Done()
			outcomes[i] = e.reconcileOne(p, orders)
		}
		if err := pool.Submit(task); err != nil {
			e.log.WithError(err).WithField("payout_id", p.ID).Warn("submit failed, reconciling inline")
			task()
		}
	}
	wg.Wait()

	return outcomes
}

func (e *Engine) summarize(b Batch, payouts []domain.Payout, res *Result) domain.Summary {
	s := domain.Summary{
		TotalPayouts:               len(payouts),
		TotalOrders:                len(res.Orders),
		SkippedRecords:             len(res.Skipped),
		TotalCustomerAmount:        res.Metrics.TotalCustomerAmount,
		TotalShopAmountFromOrders:  res.Metrics.TotalShopAmountFromOrders,
		TotalShopAmountFromPayouts: res.Metrics.TotalShopAmountFromPayouts,
		DateRange:                  dateRange(b, payouts),
	}
	for _, r := range res.Payouts {
		if r.CandidateCount == 0 {
			s.PayoutsWithoutCandidates++
		} else if r.CurrencyMatch {
			s.MatchedPayouts++
		}
	}
	return s
}

func dateRange(b Batch, payouts []domain.Payout) string {
	var from, to time.Time
	for _, p := range payouts {
		if from.IsZero() || p.SettlementDate.Before(from) {
			from = p.SettlementDate
		}
		if to.IsZero() || p.SettlementDate.After(to) {
			to = p.SettlementDate
		}
	}
	if !b.From.IsZero() {
		from = b.From
	}
	if !b.To.IsZero() {
		to = b.To
	}
	if from.IsZero() || to.IsZero() {
		return ""
	}
	return from.Format(domain.DateLayout) + " to " + to.Format(domain.DateLayout)
}
