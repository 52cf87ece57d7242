package booking

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/wltan/clinicdesk/services/clinic-service/internal/model"
	"github.com/wltan/clinicdesk/services/clinic-service/internal/outbox"
	"github.com/wltan/clinicdesk/services/clinic-service/internal/storage"
	"golang.org/x/crypto/bcrypt"
)

// Actor identifies who performed a lifecycle operation. The zero ID with
// role "system" marks machine-triggered transitions.
type Actor struct {
	Role string
	ID   string
}

// AppointmentStore is the persistence surface the lifecycle operations
// drive. *storage.AppointmentRepository implements it.
type AppointmentStore interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Insert(ctx context.Context, tx pgx.Tx, appt *model.Appointment) error
	HasConfirmedAt(ctx context.Context, t time.Time) (bool, error)
	HasConfirmedNear(ctx context.Context, tx pgx.Tx, after, before time.Time, excludeID string) (bool, error)
	Get(ctx context.Context, id string) (model.Appointment, error)
	GetForUpdate(ctx context.Context, tx pgx.Tx, id string) (model.Appointment, error)
	UpdateStatus(ctx context.Context, tx pgx.Tx, id, status string) (time.Time, error)
	UpdateTime(ctx context.Context, tx pgx.Tx, id string, newTime time.Time) (time.Time, error)
	ListAll(ctx context.Context, limit int) ([]model.Appointment, error)
	ListByStatus(ctx context.Context, status string) ([]model.Appointment, error)
	ListByEmail(ctx context.Context, email string) ([]model.Appointment, error)
	ConfirmedTimesBetween(ctx context.Context, start, end time.Time) ([]time.Time, error)
}

// NoteLedger is the append-only audit trail.
type NoteLedger interface {
	Append(ctx context.Context, tx pgx.Tx, note model.Note) (model.Note, error)
	ListByAppointment(ctx context.Context, appointmentID string) ([]model.Note, error)
	ListByAppointments(ctx context.Context, appointmentIDs []string) (map[string][]model.Note, error)
}

// UserDirectory resolves and maintains the patient accounts bookings
// link to.
type UserDirectory interface {
	GetByEmail(ctx context.Context, email string) (model.User, error)
	CreateTx(ctx context.Context, tx pgx.Tx, user *model.User) error
	UpdateContact(ctx context.Context, tx pgx.Tx, id, name, phone string) error
}

// ServiceCatalog resolves treatment ids against the bookable services.
type ServiceCatalog interface {
	GetService(ctx context.Context, id string) (model.Service, error)
}

// EventOutbox records domain events in the booking transaction.
type EventOutbox interface {
	Insert(ctx context.Context, tx pgx.Tx, evt outbox.Event) error
}

var (
	_ AppointmentStore = (*storage.AppointmentRepository)(nil)
	_ NoteLedger       = (*storage.NoteRepository)(nil)
	_ UserDirectory    = (*storage.UserRepository)(nil)
	_ ServiceCatalog   = (*storage.CatalogRepository)(nil)
	_ EventOutbox      = (*outbox.Repository)(nil)
)

// Service composes the appointment store, note ledger, and outbox into the
// booking lifecycle operations. Every mutating operation runs as a single
// transaction so a status change and its audit note land together.
type Service struct {
	appointments AppointmentStore
	notes        NoteLedger
	users        UserDirectory
	catalog      ServiceCatalog
	outbox       EventOutbox
	loc          *time.Location
}

func NewService(
	appointments AppointmentStore,
	notes NoteLedger,
	users UserDirectory,
	catalog ServiceCatalog,
	outboxRepo EventOutbox,
	loc *time.Location,
) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{
		appointments: appointments,
		notes:        notes,
		users:        users,
		catalog:      catalog,
		outbox:       outboxRepo,
		loc:          loc,
	}
}

type CreateInput struct {
	PatientName     string
	Email           string
	Phone           string
	Weight          *float64
	Height          *float64
	TreatmentID     string
	AppointmentTime time.Time
	Notes           string
}

func (in *CreateInput) normalize() {
	in.PatientName = strings.TrimSpace(in.PatientName)
	in.Email = strings.TrimSpace(in.Email)
	in.Phone = strings.TrimSpace(in.Phone)
	in.TreatmentID = strings.TrimSpace(in.TreatmentID)
	in.Notes = strings.TrimSpace(in.Notes)
}

// Validate reports the missing or malformed required fields, or nil when the
// input is bookable.
func (in CreateInput) Validate() *ValidationError {
	var fields []string
	if in.PatientName == "" {
		fields = append(fields, "patient_name")
	}
	if in.Email == "" {
		fields = append(fields, "email")
	}
	if in.Phone == "" {
		fields = append(fields, "phone")
	}
	if in.TreatmentID == "" {
		fields = append(fields, "treatment_id")
	}
	if in.AppointmentTime.IsZero() {
		fields = append(fields, "appointment_time")
	}
	if in.Weight != nil && *in.Weight < 0 {
		fields = append(fields, "weight")
	}
	if in.Height != nil && *in.Height < 0 {
		fields = append(fields, "height")
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

// Create books a new appointment. The slot is guarded twice: an exact-time
// collision check up front, then the windowed conflict check inside the
// booking transaction, with the database's exclusion constraint as the
// authoritative backstop against concurrent bookings.
func (s *Service) Create(ctx context.Context, in CreateInput) (model.Appointment, error) {
	in.normalize()
	if verr := in.Validate(); verr != nil {
		return model.Appointment{}, verr
	}

	if _, err := s.catalog.GetService(ctx, in.TreatmentID); err != nil {
		if storage.IsNotFound(err) {
			return model.Appointment{}, &ValidationError{Fields: []string{"treatment_id"}}
		}
		return model.Appointment{}, err
	}

	taken, err := s.appointments.HasConfirmedAt(ctx, in.AppointmentTime)
	if err != nil {
		return model.Appointment{}, err
	}
	if taken {
		return model.Appointment{}, ErrSlotConflict
	}

	tx, err := s.appointments.Begin(ctx)
	if err != nil {
		return model.Appointment{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	patient, err := s.linkPatientAccount(ctx, tx, in)
	if err != nil {
		return model.Appointment{}, err
	}

	blocked, err := s.appointments.HasConfirmedNear(ctx, tx,
		in.AppointmentTime.Add(-SlotLength), in.AppointmentTime.Add(SlotLength), "")
	if err != nil {
		return model.Appointment{}, err
	}
	if blocked {
		return model.Appointment{}, ErrSlotConflict
	}

	appt := model.Appointment{
		PatientName:     in.PatientName,
		Email:           in.Email,
		Phone:           in.Phone,
		Weight:          in.Weight,
		Height:          in.Height,
		TreatmentID:     in.TreatmentID,
		AppointmentTime: in.AppointmentTime,
		Status:          model.StatusConfirmed,
		Notes:           in.Notes,
	}
	if err := s.appointments.Insert(ctx, tx, &appt); err != nil {
		if storage.IsConflict(err) {
			return model.Appointment{}, ErrSlotConflict
		}
		return model.Appointment{}, err
	}

	if in.Notes != "" {
		_, err := s.notes.Append(ctx, tx, model.Note{
			AppointmentID: appt.ID,
			Type:          model.NoteTypeBooking,
			Content:       in.Notes,
			AddedBy:       model.ActorPatient,
			AddedByID:     patient.ID,
		})
		if err != nil {
			return model.Appointment{}, err
		}
	}

	if err := s.emit(ctx, tx, outbox.EventAppointmentBooked, appt, map[string]any{
		"patient_user_id": patient.ID,
	}); err != nil {
		return model.Appointment{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		if storage.IsConflict(err) {
			return model.Appointment{}, ErrSlotConflict
		}
		return model.Appointment{}, err
	}
	return appt, nil
}

// ChangeStatus moves an appointment to newStatus and appends a note of the
// matching type. Any status may follow any other; there is no transition
// graph beyond membership in the status enum.
func (s *Service) ChangeStatus(ctx context.Context, id, newStatus, content string, actor Actor) (model.Appointment, model.Note, error) {
	if !model.IsValidStatus(newStatus) {
		return model.Appointment{}, model.Note{}, ErrInvalidStatus
	}
	content = strings.TrimSpace(content)
	if content == "" {
		content = defaultStatusNoteContent
	}

	tx, err := s.appointments.Begin(ctx)
	if err != nil {
		return model.Appointment{}, model.Note{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	appt, err := s.appointments.GetForUpdate(ctx, tx, id)
	if err != nil {
		if storage.IsNotFound(err) {
			return model.Appointment{}, model.Note{}, ErrNotFound
		}
		return model.Appointment{}, model.Note{}, err
	}

	note, err := s.notes.Append(ctx, tx, model.Note{
		AppointmentID: appt.ID,
		Type:          newStatus,
		Content:       content,
		AddedBy:       actor.Role,
		AddedByID:     actor.ID,
	})
	if err != nil {
		return model.Appointment{}, model.Note{}, err
	}

	updatedAt, err := s.appointments.UpdateStatus(ctx, tx, appt.ID, newStatus)
	if err != nil {
		return model.Appointment{}, model.Note{}, err
	}
	appt.Status = newStatus
	appt.UpdatedAt = updatedAt

	if err := s.emit(ctx, tx, outbox.EventAppointmentStatusChanged, appt, map[string]any{
		"changed_by": actor.Role,
	}); err != nil {
		return model.Appointment{}, model.Note{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return model.Appointment{}, model.Note{}, err
	}
	return appt, note, nil
}

// Reschedule moves an appointment to a new time, recording old and new
// times plus the reason in a reschedule note. Status is left untouched.
// This path skips conflict detection; only new bookings are slot-checked.
func (s *Service) Reschedule(ctx context.Context, id string, newTime time.Time, reason string, actor Actor) (model.Appointment, model.Note, error) {
	tx, err := s.appointments.Begin(ctx)
	if err != nil {
		return model.Appointment{}, model.Note{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	appt, err := s.appointments.GetForUpdate(ctx, tx, id)
	if err != nil {
		if storage.IsNotFound(err) {
			return model.Appointment{}, model.Note{}, ErrNotFound
		}
		return model.Appointment{}, model.Note{}, err
	}

	oldTime := appt.AppointmentTime
	note, err := s.notes.Append(ctx, tx, model.Note{
		AppointmentID: appt.ID,
		Type:          model.NoteTypeReschedule,
		Content:       RescheduleNoteContent(oldTime.In(s.loc), newTime.In(s.loc), reason),
		AddedBy:       actor.Role,
		AddedByID:     actor.ID,
	})
	if err != nil {
		return model.Appointment{}, model.Note{}, err
	}

	updatedAt, err := s.appointments.UpdateTime(ctx, tx, appt.ID, newTime)
	if err != nil {
		return model.Appointment{}, model.Note{}, err
	}
	appt.AppointmentTime = newTime
	appt.UpdatedAt = updatedAt

	if err := s.emit(ctx, tx, outbox.EventAppointmentRescheduled, appt, map[string]any{
		"old_time": oldTime.UTC().Format(time.RFC3339),
		"reason":   reason,
	}); err != nil {
		return model.Appointment{}, model.Note{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return model.Appointment{}, model.Note{}, err
	}
	return appt, note, nil
}

func (s *Service) Get(ctx context.Context, id string) (model.Appointment, []model.Note, error) {
	appt, err := s.appointments.Get(ctx, id)
	if err != nil {
		if storage.IsNotFound(err) {
			return model.Appointment{}, nil, ErrNotFound
		}
		return model.Appointment{}, nil, err
	}
	notes, err := s.notes.ListByAppointment(ctx, id)
	if err != nil {
		return model.Appointment{}, nil, err
	}
	return appt, notes, nil
}

func (s *Service) ListAll(ctx context.Context, limit int) ([]model.Appointment, map[string][]model.Note, error) {
	appts, err := s.appointments.ListAll(ctx, limit)
	if err != nil {
		return nil, nil, err
	}
	history, err := s.noteHistoryFor(ctx, appts)
	if err != nil {
		return nil, nil, err
	}
	return appts, history, nil
}

func (s *Service) ListByStatus(ctx context.Context, status string) ([]model.Appointment, error) {
	if !model.IsValidStatus(status) {
		return nil, ErrInvalidStatus
	}
	return s.appointments.ListByStatus(ctx, status)
}

func (s *Service) ListByPatient(ctx context.Context, email string) ([]model.Appointment, map[string][]model.Note, error) {
	appts, err := s.appointments.ListByEmail(ctx, email)
	if err != nil {
		return nil, nil, err
	}
	history, err := s.noteHistoryFor(ctx, appts)
	if err != nil {
		return nil, nil, err
	}
	return appts, history, nil
}

// BookedSlots returns the start times of confirmed appointments on the given
// calendar day as time-of-day labels, for slot-picker UIs.
func (s *Service) BookedSlots(ctx context.Context, date string) ([]string, error) {
	dayStart, dayEnd, err := DayWindow(date, s.loc)
	if err != nil {
		return nil, &ValidationError{Fields: []string{"date"}}
	}
	times, err := s.appointments.ConfirmedTimesBetween(ctx, dayStart, dayEnd)
	if err != nil {
		return nil, err
	}
	slots := make([]string, 0, len(times))
	for _, t := range times {
		slots = append(slots, ClockLabel(t.In(s.loc)))
	}
	return slots, nil
}

// linkPatientAccount ensures the booking email maps to a user account,
// creating a temporary one on first contact so the patient can complete
// registration later with the same email.
func (s *Service) linkPatientAccount(ctx context.Context, tx pgx.Tx, in CreateInput) (model.User, error) {
	user, err := s.users.GetByEmail(ctx, in.Email)
	if err != nil {
		if !storage.IsNotFound(err) {
			return model.User{}, err
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(randomPassword()), bcrypt.DefaultCost)
		if err != nil {
			return model.User{}, err
		}
		user = model.User{
			Name:         in.PatientName,
			Email:        in.Email,
			Phone:        in.Phone,
			PasswordHash: string(hash),
			Role:         model.ActorPatient,
			IsTemporary:  true,
		}
		if err := s.users.CreateTx(ctx, tx, &user); err != nil {
			return model.User{}, err
		}
		return user, nil
	}

	if err := s.users.UpdateContact(ctx, tx, user.ID, in.PatientName, in.Phone); err != nil {
		return model.User{}, err
	}
	user.Name = in.PatientName
	user.Phone = in.Phone
	return user, nil
}

func (s *Service) emit(ctx context.Context, tx pgx.Tx, eventType string, appt model.Appointment, extra map[string]any) error {
	payload := map[string]any{
		"appointment_id":   appt.ID,
		"treatment_id":     appt.TreatmentID,
		"email":            appt.Email,
		"appointment_time": appt.AppointmentTime.UTC().Format(time.RFC3339),
		"status":           appt.Status,
	}
	for k, v := range extra {
		payload[k] = v
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return s.outbox.Insert(ctx, tx, outbox.Event{
		AggregateType: "appointment",
		AggregateID:   appt.ID,
		EventType:     eventType,
		Payload:       body,
	})
}

func (s *Service) noteHistoryFor(ctx context.Context, appts []model.Appointment) (map[string][]model.Note, error) {
	ids := make([]string, 0, len(appts))
	for _, appt := range appts {
		ids = append(ids, appt.ID)
	}
	return s.notes.ListByAppointments(ctx, ids)
}

func randomPassword() string {
	var b [12]byte
	_, _ = rand.Read(b[:])
	return hex.EncodeToString(b[:])
}
