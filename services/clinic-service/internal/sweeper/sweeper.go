package sweeper

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/wltan/clinicdesk/services/clinic-service/internal/booking"
	"github.com/wltan/clinicdesk/services/clinic-service/internal/model"
	"github.com/wltan/clinicdesk/services/clinic-service/internal/outbox"
	"github.com/wltan/clinicdesk/services/clinic-service/internal/storage"
)

// CompletionDelay is how long past its scheduled time a confirmed
// appointment must be before the sweeper marks it completed.
const CompletionDelay = time.Hour

// AppointmentStore is the slice of appointment persistence the sweeper
// needs. *storage.AppointmentRepository implements it.
type AppointmentStore interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	ListOverdueConfirmed(ctx context.Context, tx pgx.Tx, cutoff time.Time, limit int) ([]model.Appointment, error)
	UpdateStatus(ctx context.Context, tx pgx.Tx, id, status string) (time.Time, error)
}

// NoteLedger records the system note alongside each auto-completion.
type NoteLedger interface {
	Append(ctx context.Context, tx pgx.Tx, note model.Note) (model.Note, error)
}

// EventOutbox records the completed event in the sweep transaction.
type EventOutbox interface {
	Insert(ctx context.Context, tx pgx.Tx, evt outbox.Event) error
}

var (
	_ AppointmentStore = (*storage.AppointmentRepository)(nil)
	_ NoteLedger       = (*storage.NoteRepository)(nil)
	_ EventOutbox      = (*outbox.Repository)(nil)
)

// Worker periodically completes confirmed appointments that are more than
// CompletionDelay past their scheduled time. Each sweep runs as one
// transaction: the status changes, system notes, and completed events of a
// batch commit together or not at all.
type Worker struct {
	appointments AppointmentStore
	notes        NoteLedger
	outbox       EventOutbox
	logger       *slog.Logger
	interval     time.Duration
	batchSize    int
	now          func() time.Time
}

type Config struct {
	Interval  time.Duration
	BatchSize int
	// Now overrides the clock, for tests. Nil means time.Now.
	Now func() time.Time
}

func New(
	appointments AppointmentStore,
	notes NoteLedger,
	outboxRepo EventOutbox,
	logger *slog.Logger,
	cfg Config,
) *Worker {
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Minute
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Worker{
		appointments: appointments,
		notes:        notes,
		outbox:       outboxRepo,
		logger:       logger,
		interval:     cfg.Interval,
		batchSize:    cfg.BatchSize,
		now:          cfg.Now,
	}
}

func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.Sweep(ctx); err != nil {
				w.logger.Error("completion sweep failed", "err", err)
			}
		}
	}
}

// Due reports whether an appointment scheduled at appointmentTime should be
// auto-completed as of now. An appointment exactly CompletionDelay old is
// not yet due.
func Due(appointmentTime, now time.Time) bool {
	return appointmentTime.Add(CompletionDelay).Before(now)
}

// Sweep completes one batch of overdue confirmed appointments.
func (w *Worker) Sweep(ctx context.Context) error {
	now := w.now()
	cutoff := now.Add(-CompletionDelay)

	tx, err := w.appointments.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	overdue, err := w.appointments.ListOverdueConfirmed(ctx, tx, cutoff, w.batchSize)
	if err != nil {
		return err
	}

	completed := 0
	for _, appt := range overdue {
		if !Due(appt.AppointmentTime, now) {
			continue
		}
		if err := w.complete(ctx, tx, appt); err != nil {
			return err
		}
		completed++
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}
	if completed > 0 {
		w.logger.Info("completion sweep finished", "completed", completed)
	}
	return nil
}

func (w *Worker) complete(ctx context.Context, tx pgx.Tx, appt model.Appointment) error {
	_, err := w.notes.Append(ctx, tx, model.Note{
		AppointmentID: appt.ID,
		Type:          model.NoteTypeCompleted,
		Content:       booking.AutoCompletionNoteContent(),
		AddedBy:       model.ActorSystem,
	})
	if err != nil {
		return err
	}

	if _, err := w.appointments.UpdateStatus(ctx, tx, appt.ID, model.StatusCompleted); err != nil {
		return err
	}

	payload, err := json.Marshal(map[string]any{
		"appointment_id":   appt.ID,
		"email":            appt.Email,
		"appointment_time": appt.AppointmentTime.UTC().Format(time.RFC3339),
		"status":           model.StatusCompleted,
		"completed_by":     model.ActorSystem,
	})
	if err != nil {
		return err
	}
	return w.outbox.Insert(ctx, tx, outbox.Event{
		AggregateType: "appointment",
		AggregateID:   appt.ID,
		EventType:     outbox.EventAppointmentCompleted,
		Payload:       payload,
	})
}
