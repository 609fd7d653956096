package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/salonpulse/salonpulse/libs/db"
	"github.com/salonpulse/salonpulse/services/insights-service/internal/insights"
	"github.com/salonpulse/salonpulse/services/insights-service/internal/model"
)

// AppointmentRepository serves the appointment read model. Rows are written
// by the event consumer and read by the aggregator; the booking service
// remains the system of record.
type AppointmentRepository struct {
	pool *db.Pool
}

func NewAppointmentRepository(pool *db.Pool) *AppointmentRepository {
	return &AppointmentRepository{pool: pool}
}

func (r *AppointmentRepository) Appointments(ctx context.Context, f insights.AppointmentFilter) ([]model.Appointment, error) {
	var sb strings.Builder
	sb.WriteString(`
		SELECT appointment_id, company_id, COALESCE(unit_id, ''), staff_id, service_id, client_id,
			start_time, end_time, status, price
		FROM appointments
		WHERE company_id = $1 AND start_time >= $2 AND start_time <= $3
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
	if f.ServiceID != "" {
		args = append(args, f.ServiceID)
		fmt.Fprintf(&sb, " AND service_id = $%d", len(args))
	}
	if len(f.Statuses) > 0 {
		args = append(args, f.Statuses)
		fmt.Fprintf(&sb, " AND status = ANY($%d)", len(args))
	}
	sb.WriteString(" ORDER BY start_time ASC")

	rows, err := r.pool.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAppointmentRows(rows)
}

// Upsert applies an appointment event to the read model. Events always carry
// the full appointment, so replays and out-of-order status updates both
// reduce to a last-write-wins upsert.
func (r *AppointmentRepository) Upsert(ctx context.Context, appt model.Appointment) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO appointments
			(appointment_id, company_id, unit_id, staff_id, service_id, client_id,
			 start_time, end_time, status, price)
		VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (appointment_id)
		DO UPDATE SET status = EXCLUDED.status,
		              start_time = EXCLUDED.start_time,
		              end_time = EXCLUDED.end_time,
		              price = EXCLUDED.price,
		              updated_at = now()
	`, appt.ID, appt.CompanyID, appt.UnitID, appt.StaffID, appt.ServiceID, appt.ClientID,
		appt.StartTime, appt.EndTime, appt.Status, appt.Price)
	return err
}

func scanAppointmentRows(rows pgx.Rows) ([]model.Appointment, error) {
	var appts []model.Appointment
	for rows.Next() {
		var appt model.Appointment
		var unitID string
		if err := rows.Scan(
			&appt.ID,
			&appt.CompanyID,
			&unitID,
			&appt.StaffID,
			&appt.ServiceID,
			&appt.ClientID,
			&appt.StartTime,
			&appt.EndTime,
			&appt.Status,
			&appt.Price,
		); err != nil {
			return nil, err
		}
		appt.UnitID = unitID
		appts = append(appts, appt)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return appts, nil
}
