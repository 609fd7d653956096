package storage

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/salonpulse/salonpulse/libs/db"
	"github.com/salonpulse/salonpulse/services/booking-service/internal/model"
)

type BookingRepository struct {
	pool *db.Pool
}

type IdempotencyRecord struct {
	CompanyID       string
	IdempotencyKey  string
	AppointmentID   string
	StatusCode      int
	ResponsePayload []byte
}

func NewBookingRepository(pool *db.Pool) *BookingRepository {
	return &BookingRepository{pool: pool}
}

func (r *BookingRepository) Begin(ctx context.Context) (pgx.Tx, error) {
	return r.pool.Begin(ctx)
}

func (r *BookingRepository) LockIdempotencyKey(ctx context.Context, tx pgx.Tx, companyID, key string) (IdempotencyRecord, bool, error) {
	rec, err := r.selectIdempotencyForUpdate(ctx, tx, companyID, key)
	if err == nil {
		return rec, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return IdempotencyRecord{}, false, err
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO booking_idempotency_keys (company_id, idempotency_key)
		VALUES ($1, $2)
		ON CONFLICT (company_id, idempotency_key) DO NOTHING
	`, companyID, key)
	if err != nil {
		return IdempotencyRecord{}, false, err
	}

	rec, err = r.selectIdempotencyForUpdate(ctx, tx, companyID, key)
	if err != nil {
		return IdempotencyRecord{}, false, err
	}
	return rec, false, nil
}

func (r *BookingRepository) FinalizeIdempotency(ctx context.Context, tx pgx.Tx, companyID, key, appointmentID string, statusCode int, response []byte) error {
	_, err := tx.Exec(ctx, `
		UPDATE booking_idempotency_keys
		SET appointment_id = $3,
			status_code = $4,
			response_payload = $5,
			updated_at = now()
		WHERE company_id = $1 AND idempotency_key = $2
	`, companyID, key, appointmentID, statusCode, response)
	return err
}

func (r *BookingRepository) Create(ctx context.Context, tx pgx.Tx, appt *model.Appointment) (string, error) {
	var id string
	err := tx.QueryRow(ctx, `
		INSERT INTO appointments
			(company_id, unit_id, service_id, staff_id, client_id, start_time, end_time, status, price)
		VALUES ($1, NULLIF($2, '')::uuid, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`, appt.CompanyID, appt.UnitID, appt.ServiceID, appt.StaffID, appt.ClientID,
		appt.StartTime, appt.EndTime, appt.Status, appt.Price).Scan(&id)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (r *BookingRepository) GetAppointmentForUpdate(ctx context.Context, tx pgx.Tx, companyID, appointmentID string) (model.Appointment, error) {
	var appt model.Appointment
	var cancelledAt *time.Time
	err := tx.QueryRow(ctx, `
		SELECT id, company_id, COALESCE(unit_id::text, ''), service_id, staff_id, client_id,
			start_time, end_time, status, price, COALESCE(cancellation_reason, ''), cancelled_at, created_at
		FROM appointments
		WHERE id = $1 AND company_id = $2
		FOR UPDATE
	`, appointmentID, companyID).Scan(
		&appt.ID,
		&appt.CompanyID,
		&appt.UnitID,
		&appt.ServiceID,
		&appt.StaffID,
		&appt.ClientID,
		&appt.StartTime,
		&appt.EndTime,
		&appt.Status,
		&appt.Price,
		&appt.CancelReason,
		&cancelledAt,
		&appt.CreatedAt,
	)
	if err != nil {
		return model.Appointment{}, err
	}
	appt.CancelledAt = cancelledAt
	return appt, nil
}

func (r *BookingRepository) CancelAppointment(ctx context.Context, tx pgx.Tx, companyID, appointmentID, reason string) (time.Time, error) {
	var cancelledAt time.Time
	err := tx.QueryRow(ctx, `
		UPDATE appointments
		SET status = 'canceled',
			cancelled_at = now(),
			cancellation_reason = $3
		WHERE id = $1 AND company_id = $2
		RETURNING cancelled_at
	`, appointmentID, companyID, reason).Scan(&cancelledAt)
	return cancelledAt, err
}

// SetStatus moves a scheduled appointment to completed or no_show. The WHERE
// clause keeps the transition one-way.
func (r *BookingRepository) SetStatus(ctx context.Context, tx pgx.Tx, companyID, appointmentID, status string) error {
	tag, err := tx.Exec(ctx, `
		UPDATE appointments
		SET status = $3
		WHERE id = $1 AND company_id = $2 AND status = 'scheduled'
	`, appointmentID, companyID, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// ListBookedIntervals returns appointments that still block the staff
// member's calendar within [start, end). Canceled and no-show appointments
// do not block.
func (r *BookingRepository) ListBookedIntervals(ctx context.Context, companyID, staffID string, start, end time.Time) ([]model.Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, company_id, COALESCE(unit_id::text, ''), service_id, staff_id, client_id,
			start_time, end_time, status, price, COALESCE(cancellation_reason, ''), cancelled_at, created_at
		FROM appointments
		WHERE company_id = $1
			AND staff_id = $2
			AND status IN ('scheduled', 'completed')
			AND start_time < $4
			AND end_time > $3
		ORDER BY start_time ASC
	`, companyID, staffID, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAppointments(rows)
}

func (r *BookingRepository) ListByCompany(ctx context.Context, companyID string, limit int) ([]model.Appointment, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, company_id, COALESCE(unit_id::text, ''), service_id, staff_id, client_id,
			start_time, end_time, status, price, COALESCE(cancellation_reason, ''), cancelled_at, created_at
		FROM appointments
		WHERE company_id = $1
		ORDER BY start_time DESC
		LIMIT $2
	`, companyID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAppointments(rows)
}

func scanAppointments(rows pgx.Rows) ([]model.Appointment, error) {
	var appts []model.Appointment
	for rows.Next() {
		var appt model.Appointment
		var cancelledAt *time.Time
		if err := rows.Scan(
			&appt.ID,
			&appt.CompanyID,
			&appt.UnitID,
			&appt.ServiceID,
			&appt.StaffID,
			&appt.ClientID,
			&appt.StartTime,
			&appt.EndTime,
			&appt.Status,
			&appt.Price,
			&appt.CancelReason,
			&cancelledAt,
			&appt.CreatedAt,
		); err != nil {
			return nil, err
		}
		appt.CancelledAt = cancelledAt
		appts = append(appts, appt)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return appts, nil
}

func IsConflict(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23P01"
}

func IsNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

func (r *BookingRepository) selectIdempotencyForUpdate(ctx context.Context, tx pgx.Tx, companyID, key string) (IdempotencyRecord, error) {
	var rec IdempotencyRecord
	var responseText string
	err := tx.QueryRow(ctx, `
		SELECT company_id::text,
			idempotency_key,
			COALESCE(appointment_id::text, ''),
			COALESCE(status_code, 0),
			COALESCE(response_payload::text, '')
		FROM booking_idempotency_keys
		WHERE company_id = $1 AND idempotency_key = $2
		FOR UPDATE
	`, companyID, key).Scan(
		&rec.CompanyID,
		&rec.IdempotencyKey,
		&rec.AppointmentID,
		&rec.StatusCode,
		&responseText,
	)
	if err != nil {
		return IdempotencyRecord{}, err
	}
	if responseText != "" {
		rec.ResponsePayload = []byte(responseText)
	}
	return rec, nil
}
