package model

import "time"

const (
	StatusConfirmed = "confirmed"
	StatusCompleted = "completed"
	StatusNoShow    = "no_show"
	StatusCancelled = "cancelled"
)

func IsValidStatus(s string) bool {
	switch s {
	case StatusConfirmed, StatusCompleted, StatusNoShow, StatusCancelled:
		return true
	default:
		return false
	}
}

type Appointment struct {
	ID              string
	PatientName     string
	Email           string
	Phone           string
	Weight          *float64
	Height          *float64
	TreatmentID     string
	AppointmentTime time.Time
	Status          string
	// Notes is the free-text field from the booking form. The audit trail
	// lives in the notes table, not here.
	Notes     string
	CreatedAt time.Time
	UpdatedAt time.Time
}
