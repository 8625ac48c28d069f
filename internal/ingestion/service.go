package ingestion

import (
	"context"
	"crypto/sha256"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/shopledger/payoutrecon/internal/domain"
	"github.com/shopledger/payoutrecon/internal/reconciliation"
	"github.com/shopledger/payoutrecon/internal/repository"
)

// IngestResult is returned from a successful ingestion.
type IngestResult struct {
	ImportID          string     `json:"import_id"`
	Kind              string     `json:"kind"`
	Format            string     `json:"format"`
	AlreadyIngested   bool       `json:"already_ingested"`
	RecordsParsed     int        `json:"records_parsed"`
	RecordsIngested   int        `json:"records_ingested"`
	DuplicatesSkipped int        `json:"duplicates_skipped"`
	RowsSkipped       int        `json:"rows_skipped"`
	Skipped           []RowError `json:"skipped,omitempty"`
	RunID             string     `json:"run_id,omitempty"`
}

// Service handles ingestion of payout and order exports.
type Service struct {
	importRepo *repository.ImportRepo
	payoutRepo *repository.PayoutRepo
	orderRepo  *repository.OrderRepo
	reconSvc   *reconciliation.Service
	log        logrus.FieldLogger
}

// NewService creates a new ingestion service. reconSvc may be nil, in which
// case payout imports are not followed by a reconciliation.
func NewService(
	importRepo *repository.ImportRepo,
	payoutRepo *repository.PayoutRepo,
	orderRepo *repository.OrderRepo,
	reconSvc *reconciliation.Service,
	log logrus.FieldLogger,
) *Service {
	return &Service{
		importRepo: importRepo,
		payoutRepo: payoutRepo,
		orderRepo:  orderRepo,
		reconSvc:   reconSvc,
		log:        log.WithField("component", "ingestion"),
	}
}

// IngestPayouts parses a payout export and stores its payouts, then
// reconciles the settlement range it covered.
func (s *Service) IngestPayouts(ctx context.Context, data []byte, format string) (*IngestResult, error) {
	res, hash, err := s.begin(ctx, data, "payouts", format)
	if err != nil || res.AlreadyIngested {
		return res, err
	}

	payouts, skipped, err := ParsePayouts(format, data)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", format, err)
	}
	s.warnSkipped(format, skipped)

	inserted, err := s.payoutRepo.BulkInsert(ctx, payouts, res.ImportID)
	if err != nil {
		return nil, fmt.Errorf("insert payouts: %w", err)
	}

	// The hash is recorded only once the rows are stored.
	if err := s.record(ctx, res, hash, len(payouts), skipped); err != nil {
		return nil, err
	}
	res.RecordsIngested = inserted
	res.DuplicatesSkipped = len(payouts) - inserted

	s.log.WithFields(logrus.Fields{
		"import_id": res.ImportID,
		"format":    format,
		"parsed":    len(payouts),
		"new":       inserted,
		"skipped":   len(skipped),
	}).Info("ingested payouts")

	if s.reconSvc != nil && len(payouts) > 0 {
		from, to := settlementRange(payouts)
		run, _, err := s.reconSvc.Run(ctx, from, to)
		if err != nil {
			// Do not fail ingestion if reconciliation has issues.
			s.log.WithError(err).Warn("reconciliation after import failed")
		} else {
			res.RunID = run.ID
		}
	}

	return res, nil
}

// IngestOrders parses an order export and stores its orders.
func (s *Service) IngestOrders(ctx context.Context, data []byte, format string) (*IngestResult, error) {
	res, hash, err := s.begin(ctx, data, "orders", format)
	if err != nil || res.AlreadyIngested {
		return res, err
	}

	orders, skipped, err := ParseOrders(format, data)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", format, err)
	}
	s.warnSkipped(format, skipped)

	inserted, err := s.orderRepo.BulkInsert(ctx, orders, res.ImportID)
	if err != nil {
		return nil, fmt.Errorf("insert orders: %w", err)
	}

	// The hash is recorded only once the rows are stored.
	if err := s.record(ctx, res, hash, len(orders), skipped); err != nil {
		return nil, err
	}
	res.RecordsIngested = inserted
	res.DuplicatesSkipped = len(orders) - inserted

	s.log.WithFields(logrus.Fields{
		"import_id": res.ImportID,
		"format":    format,
		"parsed":    len(orders),
		"new":       inserted,
		"skipped":   len(skipped),
	}).Info("ingested orders")

	return res, nil
}

// begin performs the idempotency check via file hash.
func (s *Service) begin(ctx context.Context, data []byte, kind, format string) (*IngestResult, string, error) {
	hash := fmt.Sprintf("%x", sha256.Sum256(data))
	exists, err := s.importRepo.ExistsByHash(ctx, hash)
	if err != nil {
		return nil, "", fmt.Errorf("check hash: %w", err)
	}

	res := &IngestResult{Kind: kind, Format: format}
	if exists {
		s.log.WithFields(logrus.Fields{"kind": kind, "hash": hash[:12]}).Info("file already ingested")
		res.ImportID = "already-ingested"
		res.AlreadyIngested = true
		return res, hash, nil
	}

	res.ImportID = "IMP-" + uuid.NewString()
	return res, hash, nil
}

func (s *Service) record(ctx context.Context, res *IngestResult, hash string, parsed int, skipped []RowError) error {
	res.RecordsParsed = parsed
	res.RowsSkipped = len(skipped)
	res.Skipped = skipped

	batch := &domain.ImportBatch{
		ID:           res.ImportID,
		Kind:         res.Kind,
		Format:       res.Format,
		FileHash:     hash,
		RecordCount:  parsed,
		SkippedCount: len(skipped),
		IngestedAt:   time.Now().UTC(),
	}
	if err := s.importRepo.Insert(ctx, batch); err != nil {
		return fmt.Errorf("insert import: %w", err)
	}
	return nil
}

func (s *Service) warnSkipped(format string, skipped []RowError) {
	for _, rerr := range skipped {
		s.log.WithField("format", format).Warnf("skipping malformed record: %v", rerr)
	}
}

func settlementRange(payouts []domain.Payout) (time.Time, time.Time) {
	from, to := payouts[0].SettlementDate, payouts[0].SettlementDate
	for _, p := range payouts[1:] {
		if p.SettlementDate.Before(from) {
			from = p.SettlementDate
		}
		if p.SettlementDate.After(to) {
			to = p.SettlementDate
		}
	}
	return from, to
}
