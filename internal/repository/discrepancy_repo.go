package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/shopledger/payoutrecon/internal/domain"
)

const discrepancyColumns = `id, run_id, type, payout_id, expected, actual, difference,
	currency, severity, description, detected_at`

type DiscrepancyRepo struct {
	db *sql.DB
}

func NewDiscrepancyRepo(db *sql.DB) *DiscrepancyRepo {
	return &DiscrepancyRepo{db: db}
}

func (r *DiscrepancyRepo) BulkInsert(ctx context.Context, runID string, discs []domain.Discrepancy) (int, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		"INSERT OR IGNORE INTO discrepancies ("+discrepancyColumns+") VALUES (?,?,?,?,?,?,?,?,?,?,?)",
	)
	if err != nil {
		return 0, fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	for i := range discs {
		d := &discs[i]
		res, err := stmt.ExecContext(ctx,
			d.ID, runID, string(d.Type), d.PayoutID, d.Expected, d.Actual, d.Difference,
			d.Currency, string(d.Severity), d.Description, formatTime(d.DetectedAt),
		)
		if err != nil {
			return inserted, fmt.Errorf("insert %d: %w", i, err)
		}
		ra, _ := res.RowsAffected()
		inserted += int(ra)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return inserted, nil
}

// GetByPayoutID returns the discrepancies a run raised for one payout.
func (r *DiscrepancyRepo) GetByPayoutID(ctx context.Context, runID, payoutID string) ([]domain.Discrepancy, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+discrepancyColumns+" FROM discrepancies WHERE run_id = ? AND payout_id = ? ORDER BY id",
		runID, payoutID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanDiscrepancies(rows)
}

type DiscrepancyFilter struct {
	RunID    string
	Type     string
	Severity string
	PayoutID string
	Page     int
	Limit    int
}

func (r *DiscrepancyRepo) List(ctx context.Context, f DiscrepancyFilter) ([]domain.Discrepancy, int, error) {
	where, args := buildDiscrepancyWhere(f)

	var total int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM discrepancies"+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	_, limit, offset := pageBounds(f.Page, f.Limit)
	q := "SELECT " + discrepancyColumns + " FROM discrepancies" + where + " ORDER BY payout_id, id LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	discs, err := scanDiscrepancies(rows)
	return discs, total, err
}

type DiscrepancySummary struct {
	RunID       string                     `json:"run_id"`
	TotalCount  int                        `json:"total_count"`
	TotalImpact decimal.Decimal            `json:"total_impact"`
	ByType      map[string]int             `json:"by_type"`
	BySeverity  map[string]int             `json:"by_severity"`
	ByCurrency  map[string]int             `json:"by_currency"`
	Impact      map[string]decimal.Decimal `json:"impact_by_currency"`
}

// GetSummary aggregates a run's discrepancies. Amounts are stored as text, so
// impact totals are summed here rather than in SQL.
func (r *DiscrepancyRepo) GetSummary(ctx context.Context, runID string) (*DiscrepancySummary, error) {
	s := &DiscrepancySummary{
		RunID:       runID,
		TotalImpact: decimal.Zero,
		ByType:      make(map[string]int),
		BySeverity:  make(map[string]int),
		ByCurrency:  make(map[string]int),
		Impact:      make(map[string]decimal.Decimal),
	}

	rows, err := r.db.QueryContext(ctx,
		"SELECT "+discrepancyColumns+" FROM discrepancies WHERE run_id = ?", runID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	discs, err := scanDiscrepancies(rows)
	if err != nil {
		return nil, err
	}

	for _, d := range discs {
		impact := d.Difference.Abs()
		s.TotalCount++
		s.TotalImpact = s.TotalImpact.Add(impact)
		s.ByType[string(d.Type)]++
		s.BySeverity[string(d.Severity)]++
		s.ByCurrency[d.Currency]++
		s.Impact[d.Currency] = s.Impact[d.Currency].Add(impact)
	}
	return s, nil
}

// --- helpers ---

func buildDiscrepancyWhere(f DiscrepancyFilter) (string, []any) {
	var clauses []string
	var args []any

	if f.RunID != "" {
		clauses = append(clauses, "run_id = ?")
		args = append(args, f.RunID)
	}
	if f.Type != "" {
		clauses = append(clauses, "type = ?")
		args = append(args, f.Type)
	}
	if f.Severity != "" {
		clauses = append(clauses, "severity = ?")
		args = append(args, f.Severity)
	}
	if f.PayoutID != "" {
		clauses = append(clauses, "payout_id = ?")
		args = append(args, f.PayoutID)
	}

	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func scanDiscrepancies(rows *sql.Rows) ([]domain.Discrepancy, error) {
	var discs []domain.Discrepancy
	for rows.Next() {
		var d domain.Discrepancy
		var dtype, sev, detectedAt string

		err := rows.Scan(
			&d.ID, &d.RunID, &dtype, &d.PayoutID, &d.Expected, &d.Actual, &d.Difference,
			&d.Currency, &sev, &d.Description, &detectedAt,
		)
		if err != nil {
			return nil, err
		}

		d.Type = domain.DiscrepancyType(dtype)
		d.Severity = domain.Severity(sev)
		d.DetectedAt = parseTime(detectedAt)
		discs = append(discs, d)
	}
	return discs, rows.Err()
}
