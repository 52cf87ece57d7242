package model

import "time"

const (
	NoteTypeConfirmed  = "confirmed"
	NoteTypeCompleted  = "completed"
	NoteTypeNoShow     = "no_show"
	NoteTypeCancelled  = "cancelled"
	NoteTypeReschedule = "reschedule_note"
	NoteTypeBooking    = "booking"
)

const (
	ActorPatient = "patient"
	ActorAdmin   = "admin"
	ActorStaff   = "staff"
	ActorSystem  = "system"
)

// Note is an immutable audit-trail entry attached to an appointment.
// Notes are written exactly once per lifecycle event and never updated.
type Note struct {
	ID            string
	AppointmentID string
	Type          string
	Content       string
	AddedBy       string
	AddedByID     string // empty when AddedBy is "system"
	CreatedAt     time.Time
}
