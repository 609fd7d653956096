package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/salonpulse/salonpulse/libs/db"
	"github.com/salonpulse/salonpulse/services/insights-service/internal/insights"
	"github.com/salonpulse/salonpulse/services/insights-service/internal/model"
)

type OrderRepository struct {
	pool *db.Pool
}

func NewOrderRepository(pool *db.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

func (r *OrderRepository) Orders(ctx context.Context, f insights.OrderFilter) ([]model.Order, error) {
	var sb strings.Builder
	sb.WriteString(`
		SELECT order_id, company_id, COALESCE(unit_id, ''), COALESCE(staff_id, ''), COALESCE(client_id, ''),
			total, status, created_at
		FROM orders
		WHERE company_id = $1 AND created_at >= $2 AND created_at <= $3
	`)
	args := []any{f.CompanyID, f.From, f.To}

	if f.UnitID != "" {
		args = append(args, f.UnitID)
		fmt.Fprintf(&sb, " AND unit_id = $%d", len(args))
	}
	if f.StaffID != "" {
		args = append(args, f.StaffID)
		fmt.Fprintf(&sb, " AND staff_id = $%d", len(args))
	}
	if len(f.Statuses) > 0 {
		args = append(args, f.Statuses)
		fmt.Fprintf(&sb, " AND status = ANY($%d)", len(args))
	}
	sb.WriteString(" ORDER BY created_at ASC")

	rows, err := r.pool.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []model.Order
	for rows.Next() {
		var o model.Order
		if err := rows.Scan(
			&o.ID,
			&o.CompanyID,
			&o.UnitID,
			&o.StaffID,
			&o.ClientID,
			&o.Total,
			&o.Status,
			&o.CreatedAt,
		); err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return orders, nil
}

// MonthlyRevenue sums paid revenue per calendar month for the forecast
// engine, keyed "YYYY-MM". Months without revenue are absent.
func (r *OrderRepository) MonthlyRevenue(ctx context.Context, companyID, unitID, staffID string, from, to time.Time) (map[string]float64, error) {
	var sb strings.Builder
	sb.WriteString(`
		SELECT to_char(date_trunc('month', created_at), 'YYYY-MM') AS month, SUM(total)
		FROM orders
		WHERE company_id = $1
			AND status IN ('paid', 'finished')
			AND created_at >= $2 AND created_at < $3
	`)
	args := []any{companyID, from, to}
	if unitID != "" {
		args = append(args, unitID)
		fmt.Fprintf(&sb, " AND unit_id = $%d", len(args))
	}
	if staffID != "" {
		args = append(args, staffID)
		fmt.Fprintf(&sb, " AND staff_id = $%d", len(args))
	}
	sb.WriteString(" GROUP BY 1")

	rows, err := r.pool.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	revenue := map[string]float64{}
	for rows.Next() {
		var month string
		var total float64
		if err := rows.Scan(&month, &total); err != nil {
			return nil, err
		}
		revenue[month] = total
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return revenue, nil
}

// Upsert applies an order event to the read model, last write wins.
func (r *OrderRepository) Upsert(ctx context.Context, o model.Order) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO orders
			(order_id, company_id, unit_id, staff_id, client_id, total, status, created_at)
		VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), NULLIF($5, ''), $6, $7, $8)
		ON CONFLICT (order_id)
		DO UPDATE SET total = EXCLUDED.total,
		              status = EXCLUDED.status,
		              updated_at = now()
	`, o.ID, o.CompanyID, o.UnitID, o.StaffID, o.ClientID, o.Total, o.Status, o.CreatedAt)
	return err
}

// MarkPaidByReference flips an order to paid given the payment provider's
// reference, used by the Stripe webhook. Returns false when no order
// carries that reference.
func (r *OrderRepository) MarkPaidByReference(ctx context.Context, companyID, reference string, paidAt time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE orders
		SET status = 'paid', paid_at = $3, updated_at = now()
		WHERE company_id = $1 AND payment_reference = $2 AND status <> 'paid'
	`, companyID, reference, paidAt)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}
