package booking

import (
	"errors"
	"strings"
)

var (
	ErrNotFound      = errors.New("appointment not found")
	ErrInvalidStatus = errors.New("invalid appointment status")
	ErrSlotConflict  = errors.New("this time slot is already booked")
)

// ValidationError carries the names of the request fields that were
// missing or malformed.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return "missing or invalid fields: " + strings.Join(e.Fields, ", ")
}
