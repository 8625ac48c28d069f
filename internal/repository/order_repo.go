package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/shopledger/payoutrecon/internal/domain"
)

const orderColumns = `id, order_number, created_at,
	customer_currency, customer_total, customer_subtotal, customer_tax, customer_shipping, customer_discounts,
	shop_currency, shop_total, shop_subtotal, shop_tax, shop_shipping, shop_discounts,
	exchange_rate, financial_status, payment_gateway, customer_country,
	mapped_payout_id, estimated_payout_date`

type OrderRepo struct {
	db *sql.DB
}

func NewOrderRepo(db *sql.DB) *OrderRepo {
	return &OrderRepo{db: db}
}

func (r *OrderRepo) BulkInsert(ctx context.Context, orders []domain.Order, importID string) (int, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR IGNORE INTO orders
		(`+orderColumns+`, import_id)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
	)
	if err != nil {
		return 0, fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	for i := range orders {
		o := &orders[i]
		res, err := stmt.ExecContext(ctx,
			o.ID, o.Number, formatTime(o.CreatedAt),
			o.CustomerCurrency, o.CustomerTotal, o.CustomerSubtotal, o.CustomerTax, o.CustomerShipping, o.CustomerDiscounts,
			o.ShopCurrency, o.ShopTotal, o.ShopSubtotal, o.ShopTax, o.ShopShipping, o.ShopDiscounts,
			o.ExchangeRate, o.FinancialStatus, o.PaymentGateway, o.CustomerCountry,
			nullableString(o.MappedPayoutID), formatNullableTime(o.EstimatedPayoutDate),
			nullableString(importID),
		)
		if err != nil {
			return inserted, fmt.Errorf("insert row %d: %w", i, err)
		}
		ra, _ := res.RowsAffected()
		inserted += int(ra)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return inserted, nil
}

func (r *OrderRepo) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM orders").Scan(&count)
	return count, err
}

func (r *OrderRepo) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT "+orderColumns+" FROM orders WHERE id = ?", id)
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
	return scanOrder(rows)
}

// ListCreatedBetween returns orders created in [from, to), oldest first.
func (r *OrderRepo) ListCreatedBetween(ctx context.Context, from, to time.Time) ([]domain.Order, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+orderColumns+` FROM orders
		WHERE created_at >= ? AND created_at < ?
		ORDER BY created_at, id`,
		formatTime(from), formatTime(to),
	)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()
	return scanOrders(rows)
}

// GetByPayoutID returns the orders currently annotated with the payout.
func (r *OrderRepo) GetByPayoutID(ctx context.Context, payoutID string) ([]domain.Order, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+orderColumns+" FROM orders WHERE mapped_payout_id = ? ORDER BY created_at", payoutID,
	)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()
	return scanOrders(rows)
}

// AssignPayouts clears the payout annotation on every order in pool and then
// writes the annotation carried by each assigned order. When an order appears
// more than once in assigned, the first occurrence wins.
func (r *OrderRepo) AssignPayouts(ctx context.Context, pool []string, assigned []domain.Order) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	clearStmt, err := tx.PrepareContext(ctx,
		"UPDATE orders SET mapped_payout_id = NULL, estimated_payout_date = NULL WHERE id = ?",
	)
	if err != nil {
		return fmt.Errorf("prepare clear: %w", err)
	}
	defer clearStmt.Close()

	for _, id := range pool {
		if _, err := clearStmt.ExecContext(ctx, id); err != nil {
			return fmt.Errorf("clear %s: %w", id, err)
		}
	}

	setStmt, err := tx.PrepareContext(ctx,
		"UPDATE orders SET mapped_payout_id = ?, estimated_payout_date = ? WHERE id = ?",
	)
	if err != nil {
		return fmt.Errorf("prepare set: %w", err)
	}
	defer setStmt.Close()

	seen := make(map[string]bool, len(assigned))
	for _, o := range assigned {
		if seen[o.ID] {
			continue
		}
		seen[o.ID] = true
		if _, err := setStmt.ExecContext(ctx,
			nullableString(o.MappedPayoutID), formatNullableTime(o.EstimatedPayoutDate), o.ID,
		); err != nil {
			return fmt.Errorf("assign %s: %w", o.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

type OrderFilter struct {
	PayoutID string
	Unmapped bool
	From     *time.Time
	To       *time.Time
	Page     int
	Limit    int
}

func (r *OrderRepo) List(ctx context.Context, f OrderFilter) ([]domain.Order, int, error) {
	where, args := buildOrderWhere(f)

	var total int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM orders"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count: %w", err)
	}

	_, limit, offset := pageBounds(f.Page, f.Limit)
	q := "SELECT " + orderColumns + " FROM orders" + where + " ORDER BY created_at DESC LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	orders, err := scanOrders(rows)
	return orders, total, err
}

// --- helpers ---

func buildOrderWhere(f OrderFilter) (string, []any) {
	var clauses []string
	var args []any

	if f.PayoutID != "" {
		clauses = append(clauses, "mapped_payout_id = ?")
		args = append(args, f.PayoutID)
	}
	if f.Unmapped {
		clauses = append(clauses, "mapped_payout_id IS NULL")
	}
	if f.From != nil {
		clauses = append(clauses, "created_at >= ?")
		args = append(args, formatTime(*f.From))
	}
	if f.To != nil {
		clauses = append(clauses, "created_at <= ?")
		args = append(args, formatTime(*f.To))
	}

	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func scanOrders(rows *sql.Rows) ([]domain.Order, error) {
	var orders []domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		orders = append(orders, *o)
	}
	return orders, rows.Err()
}

func scanOrder(rows *sql.Rows) (*domain.Order, error) {
	var o domain.Order
	var createdAt string
	var payoutIDNull, payoutDateNull sql.NullString

	err := rows.Scan(
		&o.ID, &o.Number, &createdAt,
		&o.CustomerCurrency, &o.CustomerTotal, &o.CustomerSubtotal, &o.CustomerTax, &o.CustomerShipping, &o.CustomerDiscounts,
		&o.ShopCurrency, &o.ShopTotal, &o.ShopSubtotal, &o.ShopTax, &o.ShopShipping, &o.ShopDiscounts,
		&o.ExchangeRate, &o.FinancialStatus, &o.PaymentGateway, &o.CustomerCountry,
		&payoutIDNull, &payoutDateNull,
	)
	if err != nil {
		return nil, err
	}

	o.CreatedAt = parseTime(createdAt)
	if payoutIDNull.Valid {
		o.MappedPayoutID = payoutIDNull.String
	}
	if payoutDateNull.Valid {
		t := parseTime(payoutDateNull.String)
		o.EstimatedPayoutDate = &t
	}
	return &o, nil
}
