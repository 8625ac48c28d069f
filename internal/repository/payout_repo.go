package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/shopledger/payoutrecon/internal/domain"
)

const payoutColumns = `id, settlement_date, status, gross_amount, processing_fee, net_amount,
	currency, refunds_gross, adjustments_gross`

type PayoutRepo struct {
	db *sql.DB
}

func NewPayoutRepo(db *sql.DB) *PayoutRepo {
	return &PayoutRepo{db: db}
}

// BulkInsert stores payouts, ignoring ids already present: a payout is
// immutable once fetched.
func (r *PayoutRepo) BulkInsert(ctx context.Context, payouts []domain.Payout, importID string) (int, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR IGNORE INTO payouts
		(`+payoutColumns+`, import_id)
		VALUES (?,?,?,?,?,?,?,?,?,?)`,
	)
	if err != nil {
		return 0, fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	for i := range payouts {
		p := &payouts[i]
		res, err := stmt.ExecContext(ctx,
			p.ID, formatTime(p.SettlementDate), p.Status, p.GrossAmount, p.ProcessingFee,
			p.NetAmount, p.Currency, p.RefundsGross, p.AdjustmentsGross, nullableString(importID),
		)
		if err != nil {
			return inserted, fmt.Errorf("insert payout %d: %w", i, err)
		}
		ra, _ := res.RowsAffected()
		inserted += int(ra)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return inserted, nil
}

func (r *PayoutRepo) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM payouts").Scan(&count)
	return count, err
}

func (r *PayoutRepo) GetByID(ctx context.Context, id string) (*domain.Payout, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT "+payoutColumns+" FROM payouts WHERE id = ?", id)
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
	return scanPayout(rows)
}

// ListSettledBetween returns payouts whose settlement date falls in
// [from, to), oldest first.
func (r *PayoutRepo) ListSettledBetween(ctx context.Context, from, to time.Time) ([]domain.Payout, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+payoutColumns+` FROM payouts
		WHERE settlement_date >= ? AND settlement_date < ?
		ORDER BY settlement_date, id`,
		formatTime(from), formatTime(to),
	)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()
	return scanPayouts(rows)
}

type PayoutFilter struct {
	Currency string
	From     *time.Time
	To       *time.Time
	Page     int
	Limit    int
}

func (r *PayoutRepo) List(ctx context.Context, f PayoutFilter) ([]domain.Payout, int, error) {
	where, args := buildPayoutWhere(f)

	var total int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM payouts"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count: %w", err)
	}

	_, limit, offset := pageBounds(f.Page, f.Limit)
	q := "SELECT " + payoutColumns + " FROM payouts" + where + " ORDER BY settlement_date DESC LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	payouts, err := scanPayouts(rows)
	return payouts, total, err
}

// --- helpers ---

func buildPayoutWhere(f PayoutFilter) (string, []any) {
	var clauses []string
	var args []any

	if f.Currency != "" {
		clauses = append(clauses, "currency = ?")
		args = append(args, strings.ToUpper(f.Currency))
	}
	if f.From != nil {
		clauses = append(clauses, "settlement_date >= ?")
		args = append(args, formatTime(*f.From))
	}
	if f.To != nil {
		clauses = append(clauses, "settlement_date <= ?")
		args = append(args, formatTime(*f.To))
	}

	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func scanPayouts(rows *sql.Rows) ([]domain.Payout, error) {
	var payouts []domain.Payout
	for rows.Next() {
		p, err := scanPayout(rows)
		if err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		payouts = append(payouts, *p)
	}
	return payouts, rows.Err()
}

func scanPayout(rows *sql.Rows) (*domain.Payout, error) {
	var p domain.Payout
	var settleDate string

	err := rows.Scan(
		&p.ID, &settleDate, &p.Status, &p.GrossAmount, &p.ProcessingFee, &p.NetAmount,
		&p.Currency, &p.RefundsGross, &p.AdjustmentsGross,
	)
	if err != nil {
		return nil, err
	}
	p.SettlementDate = parseTime(settleDate)
	return &p, nil
}
