package booking

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/wltan/clinicdesk/services/clinic-service/internal/model"
	"github.com/wltan/clinicdesk/services/clinic-service/internal/outbox"
)

// fakeTx satisfies pgx.Tx for in-memory stores. Only Commit and Rollback are
// callable; the embedded interface is nil so anything else panics loudly.
type fakeTx struct{ pgx.Tx }

func (fakeTx) Commit(context.Context) error   { return nil }
func (fakeTx) Rollback(context.Context) error { return nil }

type fakeAppointments struct {
	appts  map[string]*model.Appointment
	nextID int
}

func newFakeAppointments() *fakeAppointments {
	return &fakeAppointments{appts: make(map[string]*model.Appointment)}
}

func (f *fakeAppointments) Begin(context.Context) (pgx.Tx, error) { return fakeTx{}, nil }

func (f *fakeAppointments) Insert(_ context.Context, _ pgx.Tx, appt *model.Appointment) error {
	f.nextID++
	appt.ID = fmt.Sprintf("appt-%d", f.nextID)
	appt.CreatedAt = time.Now()
	appt.UpdatedAt = appt.CreatedAt
	cp := *appt
	f.appts[appt.ID] = &cp
	return nil
}

func (f *fakeAppointments) HasConfirmedAt(_ context.Context, t time.Time) (bool, error) {
	for _, a := range f.appts {
		if a.Status == model.StatusConfirmed && a.AppointmentTime.Equal(t) {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeAppointments) HasConfirmedNear(_ context.Context, _ pgx.Tx, after, before time.Time, excludeID string) (bool, error) {
	for id, a := range f.appts {
		if id == excludeID || a.Status != model.StatusConfirmed {
			continue
		}
		if a.AppointmentTime.After(after) && a.AppointmentTime.Before(before) {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeAppointments) Get(_ context.Context, id string) (model.Appointment, error) {
	a, ok := f.appts[id]
	if !ok {
		return model.Appointment{}, pgx.ErrNoRows
	}
	return *a, nil
}

func (f *fakeAppointments) GetForUpdate(ctx context.Context, _ pgx.Tx, id string) (model.Appointment, error) {
	return f.Get(ctx, id)
}

func (f *fakeAppointments) UpdateStatus(_ context.Context, _ pgx.Tx, id, status string) (time.Time, error) {
	a, ok := f.appts[id]
	if !ok {
		return time.Time{}, pgx.ErrNoRows
	}
	a.Status = status
	a.UpdatedAt = time.Now()
	return a.UpdatedAt, nil
}

func (f *fakeAppointments) UpdateTime(_ context.Context, _ pgx.Tx, id string, newTime time.Time) (time.Time, error) {
	a, ok := f.appts[id]
	if !ok {
		return time.Time{}, pgx.ErrNoRows
	}
	a.AppointmentTime = newTime
	a.UpdatedAt = time.Now()
	return a.UpdatedAt, nil
}

func (f *fakeAppointments) ListAll(context.Context, int) ([]model.Appointment, error) {
	var out []model.Appointment
	for _, a := range f.appts {
		out = append(out, *a)
	}
	return out, nil
}

func (f *fakeAppointments) ListByStatus(_ context.Context, status string) ([]model.Appointment, error) {
	var out []model.Appointment
	for _, a := range f.appts {
		if a.Status == status {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (f *fakeAppointments) ListByEmail(_ context.Context, email string) ([]model.Appointment, error) {
	var out []model.Appointment
	for _, a := range f.appts {
		if a.Email == email {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (f *fakeAppointments) ConfirmedTimesBetween(_ context.Context, start, end time.Time) ([]time.Time, error) {
	var out []time.Time
	for _, a := range f.appts {
		if a.Status == model.StatusConfirmed && !a.AppointmentTime.Before(start) && a.AppointmentTime.Before(end) {
			out = append(out, a.AppointmentTime)
		}
	}
	return out, nil
}

type fakeNotes struct {
	notes  []model.Note
	nextID int
}

func (f *fakeNotes) Append(_ context.Context, _ pgx.Tx, note model.Note) (model.Note, error) {
	f.nextID++
	note.ID = fmt.Sprintf("note-%d", f.nextID)
	note.CreatedAt = time.Now()
	f.notes = append(f.notes, note)
	return note, nil
}

func (f *fakeNotes) ListByAppointment(_ context.Context, appointmentID string) ([]model.Note, error) {
	var out []model.Note
	for _, n := range f.notes {
		if n.AppointmentID == appointmentID {
			out = append(out, n)
		}
	}
	return out, nil
}

func (f *fakeNotes) ListByAppointments(ctx context.Context, appointmentIDs []string) (map[string][]model.Note, error) {
	out := make(map[string][]model.Note, len(appointmentIDs))
	for _, id := range appointmentIDs {
		notes, _ := f.ListByAppointment(ctx, id)
		if len(notes) > 0 {
			out[id] = notes
		}
	}
	return out, nil
}

func (f *fakeNotes) forAppointment(id string) []model.Note {
	notes, _ := f.ListByAppointment(context.Background(), id)
	return notes
}

type fakeUsers struct {
	byEmail map[string]*model.User
	nextID  int
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{byEmail: make(map[string]*model.User)}
}

func (f *fakeUsers) GetByEmail(_ context.Context, email string) (model.User, error) {
	u, ok := f.byEmail[email]
	if !ok {
		return model.User{}, pgx.ErrNoRows
	}
	return *u, nil
}

func (f *fakeUsers) CreateTx(_ context.Context, _ pgx.Tx, user *model.User) error {
	f.nextID++
	user.ID = fmt.Sprintf("user-%d", f.nextID)
	user.CreatedAt = time.Now()
	cp := *user
	f.byEmail[user.Email] = &cp
	return nil
}

func (f *fakeUsers) UpdateContact(_ context.Context, _ pgx.Tx, id, name, phone string) error {
	for _, u := range f.byEmail {
		if u.ID == id {
			u.Name = name
			u.Phone = phone
			return nil
		}
	}
	return pgx.ErrNoRows
}

type fakeCatalog struct {
	services map[string]model.Service
}

func (f *fakeCatalog) GetService(_ context.Context, id string) (model.Service, error) {
	svc, ok := f.services[id]
	if !ok {
		return model.Service{}, pgx.ErrNoRows
	}
	return svc, nil
}

type fakeOutbox struct {
	events []outbox.Event
}

func (f *fakeOutbox) Insert(_ context.Context, _ pgx.Tx, evt outbox.Event) error {
	f.events = append(f.events, evt)
	return nil
}

type testEnv struct {
	svc    *Service
	appts  *fakeAppointments
	notes  *fakeNotes
	users  *fakeUsers
	outbox *fakeOutbox
}

func newTestEnv() *testEnv {
	appts := newFakeAppointments()
	notes := &fakeNotes{}
	users := newFakeUsers()
	catalog := &fakeCatalog{services: map[string]model.Service{
		"b6f7a6a0-0000-0000-0000-000000000001": {
			ID:              "b6f7a6a0-0000-0000-0000-000000000001",
			Name:            "General Consultation",
			DurationMinutes: 30,
			IsActive:        true,
		},
	}}
	ob := &fakeOutbox{}
	return &testEnv{
		svc:    NewService(appts, notes, users, catalog, ob, time.UTC),
		appts:  appts,
		notes:  notes,
		users:  users,
		outbox: ob,
	}
}
