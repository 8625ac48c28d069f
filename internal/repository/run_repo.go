package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/shopledger/payoutrecon/internal/domain"
)

const runColumns = "id, range_from, range_to, strategy, exclusive, started_at, completed_at, summary, metrics"

const payoutResultColumns = `payout_id, settlement_date, currency, gross_amount, processing_fee, net_amount,
	fee_rate_percent, candidate_count, mapped_order_count, customer_total, shop_total,
	average_exchange_rate, shop_difference, currency_match, net_match, strategy`

const mappingColumns = `payout_id, order_id, payout_date, payout_gross, order_number, order_date,
	customer_amount, shop_amount, exchange_rate, days_to_payout, customer_currency, shop_currency`

// RunRepo stores reconciliation runs together with their per-payout results
// and payout-order mappings.
type RunRepo struct {
	db *sql.DB
}

func NewRunRepo(db *sql.DB) *RunRepo {
	return &RunRepo{db: db}
}

// Insert writes a run, its payout results and its mappings in one transaction.
func (r *RunRepo) Insert(
	ctx context.Context,
	run *domain.Run,
	payouts []domain.PayoutReconciliation,
	mappings []domain.PayoutOrderMapping,
) error {
	summary, err := json.Marshal(run.Summary)
	if err != nil {
		return fmt.Errorf("encode summary: %w", err)
	}
	metrics, err := json.Marshal(run.Metrics)
	if err != nil {
		return fmt.Errorf("encode metrics: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO reconciliation_runs ("+runColumns+") VALUES (?,?,?,?,?,?,?,?,?)",
		run.ID, formatTime(run.From), formatTime(run.To), run.Strategy, run.Exclusive,
		formatInstant(run.StartedAt), formatInstant(run.CompletedAt), string(summary), string(metrics),
	); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	prStmt, err := tx.PrepareContext(ctx,
		"INSERT INTO payout_reconciliations (run_id, "+payoutResultColumns+") VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)",
	)
	if err != nil {
		return fmt.Errorf("prepare payout results: %w", err)
	}
	defer prStmt.Close()

	for i := range payouts {
		p := &payouts[i]
		if _, err := prStmt.ExecContext(ctx,
			run.ID, p.PayoutID, formatTime(p.SettlementDate), p.Currency, p.GrossAmount, p.ProcessingFee,
			p.NetAmount, p.FeeRatePercent, p.CandidateCount, p.MappedOrderCount, p.CustomerTotal,
			p.ShopTotal, p.AverageExchangeRate, p.ShopDifference, p.CurrencyMatch, p.NetMatch, p.Strategy,
		); err != nil {
			return fmt.Errorf("insert payout result %d: %w", i, err)
		}
	}

	mStmt, err := tx.PrepareContext(ctx,
		"INSERT OR IGNORE INTO payout_order_mappings (run_id, "+mappingColumns+") VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)",
	)
	if err != nil {
		return fmt.Errorf("prepare mappings: %w", err)
	}
	defer mStmt.Close()

	for i := range mappings {
		m := &mappings[i]
		if _, err := mStmt.ExecContext(ctx,
			run.ID, m.PayoutID, m.OrderID, m.PayoutDate, m.PayoutGross, m.OrderNumber, m.OrderDate,
			m.CustomerAmount, m.ShopAmount, m.ExchangeRate, m.DaysToPayout, m.CustomerCurrency, m.ShopCurrency,
		); err != nil {
			return fmt.Errorf("insert mapping %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (r *RunRepo) GetByID(ctx context.Context, id string) (*domain.Run, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT "+runColumns+" FROM reconciliation_runs WHERE id = ?", id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, ErrNotFound
	}
	return scanRun(rows)
}

// Latest returns the most recently completed run, or ErrNotFound. Runs
// completing at the same instant resolve to the one stored last.
func (r *RunRepo) Latest(ctx context.Context) (*domain.Run, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+runColumns+" FROM reconciliation_runs ORDER BY completed_at DESC, rowid DESC LIMIT 1",
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, ErrNotFound
	}
	return scanRun(rows)
}

func (r *RunRepo) List(ctx context.Context, page, limit int) ([]domain.Run, int, error) {
	var total int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM reconciliation_runs").Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count: %w", err)
	}

	_, limit, offset := pageBounds(page, limit)
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+runColumns+" FROM reconciliation_runs ORDER BY completed_at DESC, rowid DESC LIMIT ? OFFSET ?",
		limit, offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	var runs []domain.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan: %w", err)
		}
		runs = append(runs, *run)
	}
	return runs, total, rows.Err()
}

// PayoutResults returns the per-payout validations stored for a run.
func (r *RunRepo) PayoutResults(ctx context.Context, runID string) ([]domain.PayoutReconciliation, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+payoutResultColumns+" FROM payout_reconciliations WHERE run_id = ? ORDER BY settlement_date, payout_id",
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	var results []domain.PayoutReconciliation
	for rows.Next() {
		var p domain.PayoutReconciliation
		var settleDate string
		if err := rows.Scan(
			&p.PayoutID, &settleDate, &p.Currency, &p.GrossAmount, &p.ProcessingFee, &p.NetAmount,
			&p.FeeRatePercent, &p.CandidateCount, &p.MappedOrderCount, &p.CustomerTotal, &p.ShopTotal,
			&p.AverageExchangeRate, &p.ShopDifference, &p.CurrencyMatch, &p.NetMatch, &p.Strategy,
		); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		p.SettlementDate = parseTime(settleDate)
		results = append(results, p)
	}
	return results, rows.Err()
}

// Mappings returns the payout-order mappings of a run, optionally narrowed to
// one payout.
func (r *RunRepo) Mappings(ctx context.Context, runID, payoutID string) ([]domain.PayoutOrderMapping, error) {
	q := "SELECT " + mappingColumns + " FROM payout_order_mappings WHERE run_id = ?"
	args := []any{runID}
	if payoutID != "" {
		q += " AND payout_id = ?"
		args = append(args, payoutID)
	}
	q += " ORDER BY payout_id, days_to_payout, order_id"

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	var mappings []domain.PayoutOrderMapping
	for rows.Next() {
		var m domain.PayoutOrderMapping
		if err := rows.Scan(
			&m.PayoutID, &m.OrderID, &m.PayoutDate, &m.PayoutGross, &m.OrderNumber, &m.OrderDate,
			&m.CustomerAmount, &m.ShopAmount, &m.ExchangeRate, &m.DaysToPayout, &m.CustomerCurrency, &m.ShopCurrency,
		); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		mappings = append(mappings, m)
	}
	return mappings, rows.Err()
}

func scanRun(rows *sql.Rows) (*domain.Run, error) {
	var run domain.Run
	var from, to, started, completed, summary, metrics string

	if err := rows.Scan(
		&run.ID, &from, &to, &run.Strategy, &run.Exclusive, &started, &completed, &summary, &metrics,
	); err != nil {
		return nil, err
	}

	run.From = parseTime(from)
	run.To = parseTime(to)
	run.StartedAt = parseTime(started)
	run.CompletedAt = parseTime(completed)
	if err := json.Unmarshal([]byte(summary), &run.Summary); err != nil {
		return nil, fmt.Errorf("decode summary: %w", err)
	}
	if err := json.Unmarshal([]byte(metrics), &run.Metrics); err != nil {
		return nil, fmt.Errorf("decode metrics: %w", err)
	}
	return &run, nil
}
