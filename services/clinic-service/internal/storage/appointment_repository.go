package storage

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/wltan/clinicdesk/libs/db"
	"github.com/wltan/clinicdesk/services/clinic-service/internal/model"
)

type AppointmentRepository struct {
	pool *db.Pool
}

func NewAppointmentRepository(pool *db.Pool) *AppointmentRepository {
	return &AppointmentRepository{pool: pool}
}

func (r *AppointmentRepository) Begin(ctx context.Context) (pgx.Tx, error) {
	return r.pool.Begin(ctx)
}

const appointmentColumns = `id, patient_name, email, phone, weight, height, treatment_id,
	appointment_time, status, COALESCE(notes, ''), created_at, updated_at`

func scanAppointment(row pgx.Row) (model.Appointment, error) {
	var appt model.Appointment
	err := row.Scan(
		&appt.ID,
		&appt.PatientName,
		&appt.Email,
		&appt.Phone,
		&appt.Weight,
		&appt.Height,
		&appt.TreatmentID,
		&appt.AppointmentTime,
		&appt.Status,
		&appt.Notes,
		&appt.CreatedAt,
		&appt.UpdatedAt,
	)
	return appt, err
}

func (r *AppointmentRepository) Insert(ctx context.Context, tx pgx.Tx, appt *model.Appointment) error {
	return tx.QueryRow(ctx, `
		INSERT INTO appointments
			(patient_name, email, phone, weight, height, treatment_id, appointment_time, status, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at, updated_at
	`, appt.PatientName, appt.Email, appt.Phone, appt.Weight, appt.Height, appt.TreatmentID,
		appt.AppointmentTime, appt.Status, appt.Notes).Scan(&appt.ID, &appt.CreatedAt, &appt.UpdatedAt)
}

// HasConfirmedAt reports whether a confirmed appointment exists at exactly
// the given start time.
func (r *AppointmentRepository) HasConfirmedAt(ctx context.Context, t time.Time) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM appointments
			WHERE appointment_time = $1 AND status = 'confirmed'
		)
	`, t).Scan(&exists)
	return exists, err
}

// HasConfirmedNear reports whether a confirmed appointment other than
// excludeID starts strictly within the open interval (after, before).
// Callers derive the bounds from the 30-minute slot window.
func (r *AppointmentRepository) HasConfirmedNear(ctx context.Context, tx pgx.Tx, after, before time.Time, excludeID string) (bool, error) {
	var exists bool
	err := tx.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM appointments
			WHERE status = 'confirmed'
				AND appointment_time > $1
				AND appointment_time < $2
				AND id::text IS DISTINCT FROM NULLIF($3, '')
		)
	`, after, before, excludeID).Scan(&exists)
	return exists, err
}

func (r *AppointmentRepository) Get(ctx context.Context, id string) (model.Appointment, error) {
	return scanAppointment(r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id))
}

func (r *AppointmentRepository) GetForUpdate(ctx context.Context, tx pgx.Tx, id string) (model.Appointment, error) {
	return scanAppointment(tx.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
		FOR UPDATE
	`, id))
}

// UpdateStatus sets the status and refreshes updated_at, returning the new
// updated_at so callers can reflect it without a re-read.
func (r *AppointmentRepository) UpdateStatus(ctx context.Context, tx pgx.Tx, id, status string) (time.Time, error) {
	var updatedAt time.Time
	err := tx.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2, updated_at = now()
		WHERE id = $1
		RETURNING updated_at
	`, id, status).Scan(&updatedAt)
	return updatedAt, err
}

func (r *AppointmentRepository) UpdateTime(ctx context.Context, tx pgx.Tx, id string, newTime time.Time) (time.Time, error) {
	var updatedAt time.Time
	err := tx.QueryRow(ctx, `
		UPDATE appointments
		SET appointment_time = $2, updated_at = now()
		WHERE id = $1
		RETURNING updated_at
	`, id, newTime).Scan(&updatedAt)
	return updatedAt, err
}

func (r *AppointmentRepository) ListAll(ctx context.Context, limit int) ([]model.Appointment, error) {
	if limit <= 0 {
		limit = 200
	}
	return r.list(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		ORDER BY appointment_time DESC
		LIMIT $1
	`, limit)
}

func (r *AppointmentRepository) ListByStatus(ctx context.Context, status string) ([]model.Appointment, error) {
	return r.list(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE status = $1
		ORDER BY appointment_time DESC
	`, status)
}

func (r *AppointmentRepository) ListByEmail(ctx context.Context, email string) ([]model.Appointment, error) {
	return r.list(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE email = $1
		ORDER BY appointment_time DESC
	`, email)
}

// ConfirmedTimesBetween returns the start times of confirmed appointments in
// [start, end), ordered ascending. Used for the booked-slots projection.
func (r *AppointmentRepository) ConfirmedTimesBetween(ctx context.Context, start, end time.Time) ([]time.Time, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT appointment_time
		FROM appointments
		WHERE status = 'confirmed'
			AND appointment_time >= $1
			AND appointment_time < $2
		ORDER BY appointment_time
	`, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var times []time.Time
	for rows.Next() {
		var t time.Time
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		times = append(times, t)
	}
	return times, rows.Err()
}

// ListOverdueConfirmed returns confirmed appointments whose start time is
// before cutoff, locking the rows so concurrent sweeper runs skip them.
func (r *AppointmentRepository) ListOverdueConfirmed(ctx context.Context, tx pgx.Tx, cutoff time.Time, limit int) ([]model.Appointment, error) {
	rows, err := tx.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE status = 'confirmed' AND appointment_time < $1
		ORDER BY appointment_time
		LIMIT $2
		FOR UPDATE SKIP LOCKED
	`, cutoff, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectAppointments(rows)
}

func (r *AppointmentRepository) list(ctx context.Context, query string, args ...any) ([]model.Appointment, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectAppointments(rows)
}

func collectAppointments(rows pgx.Rows) ([]model.Appointment, error) {
	var appts []model.Appointment
	for rows.Next() {
		appt, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		appts = append(appts, appt)
	}
	return appts, rows.Err()
}

// IsConflict reports whether err is the slot exclusion constraint firing
// (Postgres 23P01, exclusion_violation).
func IsConflict(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23P01"
}

func IsNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
