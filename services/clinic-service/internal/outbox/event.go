package outbox

// Event is the domain event envelope written to the outbox table.
// The Kafka topic name equals EventType (event per topic).
type Event struct {
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

// Appointment lifecycle event types published by this service.
const (
	EventAppointmentBooked        = "clinic.appointment.booked.v1"
	EventAppointmentStatusChanged = "clinic.appointment.status_changed.v1"
	EventAppointmentRescheduled   = "clinic.appointment.rescheduled.v1"
	EventAppointmentCompleted     = "clinic.appointment.completed.v1"
)
