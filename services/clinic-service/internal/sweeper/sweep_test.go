package sweeper

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/wltan/clinicdesk/services/clinic-service/internal/booking"
	"github.com/wltan/clinicdesk/services/clinic-service/internal/model"
	"github.com/wltan/clinicdesk/services/clinic-service/internal/outbox"
)

type fakeTx struct{ pgx.Tx }

func (fakeTx) Commit(context.Context) error   { return nil }
func (fakeTx) Rollback(context.Context) error { return nil }

type fakeAppointments struct {
	appts map[string]*model.Appointment
}

func (f *fakeAppointments) Begin(context.Context) (pgx.Tx, error) { return fakeTx{}, nil }

func (f *fakeAppointments) ListOverdueConfirmed(_ context.Context, _ pgx.Tx, cutoff time.Time, limit int) ([]model.Appointment, error) {
	var out []model.Appointment
	for _, a := range f.appts {
		if len(out) == limit {
			break
		}
		if a.Status == model.StatusConfirmed && a.AppointmentTime.Before(cutoff) {
			out = append(out, *a)
		}
	}
	return out, nil
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

type fakeNotes struct {
	notes []model.Note
}

func (f *fakeNotes) Append(_ context.Context, _ pgx.Tx, note model.Note) (model.Note, error) {
	note.ID = fmt.Sprintf("note-%d", len(f.notes)+1)
	note.CreatedAt = time.Now()
	f.notes = append(f.notes, note)
	return note, nil
}

type fakeOutbox struct {
	events []outbox.Event
}

func (f *fakeOutbox) Insert(_ context.Context, _ pgx.Tx, evt outbox.Event) error {
	f.events = append(f.events, evt)
	return nil
}

type sweepEnv struct {
	worker *Worker
	appts  *fakeAppointments
	notes  *fakeNotes
	outbox *fakeOutbox
	now    time.Time
}

func newSweepEnv(t *testing.T, appts ...model.Appointment) *sweepEnv {
	t.Helper()
	env := &sweepEnv{
		appts:  &fakeAppointments{appts: make(map[string]*model.Appointment)},
		notes:  &fakeNotes{},
		outbox: &fakeOutbox{},
		now:    env0(),
	}
	for i := range appts {
		cp := appts[i]
		env.appts.appts[cp.ID] = &cp
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	env.worker = New(env.appts, env.notes, env.outbox, logger, Config{
		Now: func() time.Time { return env.now },
	})
	return env
}

func confirmedAt(id string, t time.Time) model.Appointment {
	return model.Appointment{
		ID:              id,
		PatientName:     "Jamie Tan",
		Email:           "jamie@example.com",
		AppointmentTime: t,
		Status:          model.StatusConfirmed,
	}
}

func TestSweepCompletesOverdueAppointment(t *testing.T) {
	env := newSweepEnv(t, confirmedAt("appt-1", env0().Add(-2*time.Hour)))

	if err := env.worker.Sweep(context.Background()); err != nil {
		t.Fatalf("Sweep: %v", err)
	}

	if got := env.appts.appts["appt-1"].Status; got != model.StatusCompleted {
		t.Fatalf("status = %q, want %q", got, model.StatusCompleted)
	}
	if len(env.notes.notes) != 1 {
		t.Fatalf("notes = %d, want 1", len(env.notes.notes))
	}
	note := env.notes.notes[0]
	if note.Type != model.NoteTypeCompleted {
		t.Fatalf("note type = %q, want %q", note.Type, model.NoteTypeCompleted)
	}
	if note.AddedBy != model.ActorSystem || note.AddedByID != "" {
		t.Fatalf("note actor = %q/%q, want system with no user id", note.AddedBy, note.AddedByID)
	}
	if note.Content != booking.AutoCompletionNoteContent() {
		t.Fatalf("note content = %q", note.Content)
	}
	if len(env.outbox.events) != 1 || env.outbox.events[0].EventType != outbox.EventAppointmentCompleted {
		t.Fatalf("outbox events = %+v", env.outbox.events)
	}
}

func TestSweepIsIdempotent(t *testing.T) {
	env := newSweepEnv(t, confirmedAt("appt-1", env0().Add(-2*time.Hour)))

	for i := 0; i < 2; i++ {
		if err := env.worker.Sweep(context.Background()); err != nil {
			t.Fatalf("Sweep #%d: %v", i+1, err)
		}
	}

	if len(env.notes.notes) != 1 {
		t.Fatalf("second sweep must be a no-op, notes = %d", len(env.notes.notes))
	}
	if len(env.outbox.events) != 1 {
		t.Fatalf("second sweep must be a no-op, events = %d", len(env.outbox.events))
	}
}

func TestSweepLeavesRecentAppointmentsAlone(t *testing.T) {
	env := newSweepEnv(t,
		confirmedAt("appt-recent", env0().Add(-30*time.Minute)),
		confirmedAt("appt-boundary", env0().Add(-time.Hour)),
	)

	if err := env.worker.Sweep(context.Background()); err != nil {
		t.Fatalf("Sweep: %v", err)
	}

	for _, id := range []string{"appt-recent", "appt-boundary"} {
		if got := env.appts.appts[id].Status; got != model.StatusConfirmed {
			t.Fatalf("%s status = %q, want untouched", id, got)
		}
	}
	if len(env.notes.notes) != 0 || len(env.outbox.events) != 0 {
		t.Fatalf("nothing should be written: notes=%d events=%d", len(env.notes.notes), len(env.outbox.events))
	}
}

func TestSweepSkipsNonConfirmedStatuses(t *testing.T) {
	cancelled := confirmedAt("appt-cancelled", env0().Add(-3*time.Hour))
	cancelled.Status = model.StatusCancelled
	env := newSweepEnv(t, cancelled)

	if err := env.worker.Sweep(context.Background()); err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if got := env.appts.appts["appt-cancelled"].Status; got != model.StatusCancelled {
		t.Fatalf("status = %q, want untouched", got)
	}
	if len(env.notes.notes) != 0 {
		t.Fatalf("notes = %+v, want none", env.notes.notes)
	}
}

// env0 is the fixed sweep clock shared by the scenarios above.
func env0() time.Time {
	return time.Date(2026, 3, 9, 12, 0, 0, 0, time.UTC)
}
