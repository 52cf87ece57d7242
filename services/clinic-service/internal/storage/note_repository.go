package storage

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/wltan/clinicdesk/libs/db"
	"github.com/wltan/clinicdesk/services/clinic-service/internal/model"
)

// NoteRepository is the append-only note ledger. Notes are inserted once per
// lifecycle event; there is no update or delete.
type NoteRepository struct {
	pool *db.Pool
}

func NewNoteRepository(pool *db.Pool) *NoteRepository {
	return &NoteRepository{pool: pool}
}

func (r *NoteRepository) Append(ctx context.Context, tx pgx.Tx, note model.Note) (model.Note, error) {
	err := tx.QueryRow(ctx, `
		INSERT INTO notes (appointment_id, type, content, added_by, added_by_id)
		VALUES ($1, $2, $3, $4, NULLIF($5, '')::uuid)
		RETURNING id, created_at
	`, note.AppointmentID, note.Type, note.Content, note.AddedBy, note.AddedByID).
		Scan(&note.ID, &note.CreatedAt)
	if err != nil {
		return model.Note{}, err
	}
	return note, nil
}

func (r *NoteRepository) ListByAppointment(ctx context.Context, appointmentID string) ([]model.Note, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, appointment_id, type, content, added_by, COALESCE(added_by_id::text, ''), created_at
		FROM notes
		WHERE appointment_id = $1
		ORDER BY created_at, id
	`, appointmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectNotes(rows)
}

// ListByAppointments fetches the note history for a set of appointments in
// one round trip, grouped by appointment id in chronological order.
func (r *NoteRepository) ListByAppointments(ctx context.Context, appointmentIDs []string) (map[string][]model.Note, error) {
	grouped := make(map[string][]model.Note, len(appointmentIDs))
	if len(appointmentIDs) == 0 {
		return grouped, nil
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, appointment_id, type, content, added_by, COALESCE(added_by_id::text, ''), created_at
		FROM notes
		WHERE appointment_id = ANY($1)
		ORDER BY created_at, id
	`, appointmentIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	notes, err := collectNotes(rows)
	if err != nil {
		return nil, err
	}
	for _, note := range notes {
		grouped[note.AppointmentID] = append(grouped[note.AppointmentID], note)
	}
	return grouped, nil
}

func collectNotes(rows pgx.Rows) ([]model.Note, error) {
	var notes []model.Note
	for rows.Next() {
		var n model.Note
		if err := rows.Scan(&n.ID, &n.AppointmentID, &n.Type, &n.Content, &n.AddedBy, &n.AddedByID, &n.CreatedAt); err != nil {
			return nil, err
		}
		notes = append(notes, n)
	}
	return notes, rows.Err()
}
