package reconciliation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/shopledger/payoutrecon/internal/domain"
	"github.com/shopledger/payoutrecon/internal/repository"
)

// ErrInvalidRange is returned when a run's end date precedes its start.
var ErrInvalidRange = errors.New("invalid date range")

// Service runs the engine over stored payouts and orders and persists the
// outcome as a reconciliation run.
type Service struct {
	engine     *Engine
	payoutRepo *repository.PayoutRepo
	orderRepo  *repository.OrderRepo
	runRepo    *repository.RunRepo
	discRepo   *repository.DiscrepancyRepo
	log        logrus.FieldLogger
}

// NewService creates a new reconciliation service.
func NewService(
	engine *Engine,
	payoutRepo *repository.PayoutRepo,
	orderRepo *repository.OrderRepo,
	runRepo *repository.RunRepo,
	discRepo *repository.DiscrepancyRepo,
	log logrus.FieldLogger,
) *Service {
	return &Service{
		engine:     engine,
		payoutRepo: payoutRepo,
		orderRepo:  orderRepo,
		runRepo:    runRepo,
		discRepo:   discRepo,
		log:        log.WithField("component", "reconciliation"),
	}
}

// Run reconciles payouts settled on the calendar days from..to inclusive
// against orders created up to the lookback window before them. The run, its
// per-payout results, mappings and discrepancies are stored, and each mapped
// order is annotated with its payout.
func (s *Service) Run(ctx context.Context, from, to time.Time) (*domain.Run, *Result, error) {
	from, to = truncateDay(from), truncateDay(to)
	if to.Before(from) {
		return nil, nil, fmt.Errorf("%s before %s: %w",
			to.Format(domain.DateLayout), from.Format(domain.DateLayout), ErrInvalidRange)
	}
	started := time.Now().UTC()
	end := to.AddDate(0, 0, 1)

	payouts, err := s.payoutRepo.ListSettledBetween(ctx, from, end)
	if err != nil {
		return nil, nil, fmt.Errorf("load payouts: %w", err)
	}

	// One extra day so that orders at the far edge of the window are loaded
	// whatever the time of day of settlement.
	lookback := s.engine.Config().MaxLookbackDays + 1
	orders, err := s.orderRepo.ListCreatedBetween(ctx, from.AddDate(0, 0, -lookback), end)
	if err != nil {
		return nil, nil, fmt.Errorf("load orders: %w", err)
	}

	res := s.engine.Reconcile(Batch{Payouts: payouts, Orders: orders, From: from, To: to})

	cfg := s.engine.Config()
	run := &domain.Run{
		ID:          uuid.NewString(),
		From:        from,
		To:          to,
		Strategy:    string(cfg.Strategy),
		Exclusive:   cfg.Exclusive,
		StartedAt:   started,
		CompletedAt: time.Now().UTC(),
		Summary:     res.Summary,
		Metrics:     res.Metrics,
	}

	if err := s.runRepo.Insert(ctx, run, res.Payouts, res.Mappings); err != nil {
		return nil, nil, fmt.Errorf("store run: %w", err)
	}

	if len(res.Discrepancies) > 0 {
		n, err := s.discRepo.BulkInsert(ctx, run.ID, res.Discrepancies)
		if err != nil {
			return nil, nil, fmt.Errorf("insert discrepancies: %w", err)
		}
		s.log.WithField("run_id", run.ID).Infof("recorded %d discrepancies", n)
	}

	if err := s.orderRepo.AssignPayouts(ctx, previouslyMapped(payouts, orders), res.Orders); err != nil {
		return nil, nil, fmt.Errorf("annotate orders: %w", err)
	}

	s.log.WithFields(logrus.Fields{
		"run_id":     run.ID,
		"date_range": res.Summary.DateRange,
		"payouts":    res.Summary.TotalPayouts,
		"mappings":   len(res.Mappings),
	}).Info("reconciliation run stored")

	return run, res, nil
}

// previouslyMapped returns the ids of loaded orders currently annotated with
// one of the payouts being reconciled again.
func previouslyMapped(payouts []domain.Payout, orders []domain.Order) []string {
	ids := make(map[string]bool, len(payouts))
	for _, p := range payouts {
		ids[p.ID] = true
	}

	var pool []string
	for _, o := range orders {
		if o.MappedPayoutID != "" && ids[o.MappedPayoutID] {
			pool = append(pool, o.ID)
		}
	}
	return pool
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
