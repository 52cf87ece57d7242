package booking

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func validInput() CreateInput {
	return CreateInput{
		PatientName:     "Jamie Tan",
		Email:           "jamie@example.com",
		Phone:           "+65 9123 4567",
		TreatmentID:     "b6f7a6a0-0000-0000-0000-000000000001",
		AppointmentTime: time.Date(2026, 3, 9, 9, 0, 0, 0, time.UTC),
	}
}

func TestCreateInputValidate(t *testing.T) {
	if err := validInput().Validate(); err != nil {
		t.Fatalf("valid input rejected: %v", err)
	}

	in := validInput()
	in.PatientName = ""
	in.Phone = ""
	verr := in.Validate()
	if verr == nil {
		t.Fatal("expected validation error")
	}
	if len(verr.Fields) != 2 {
		t.Fatalf("fields = %v", verr.Fields)
	}
	if !strings.Contains(verr.Error(), "patient_name") || !strings.Contains(verr.Error(), "phone") {
		t.Fatalf("error should name the missing fields: %v", verr)
	}
}

func TestCreateInputValidateNegativeMeasurements(t *testing.T) {
	in := validInput()
	w := -1.5
	in.Weight = &w
	verr := in.Validate()
	if verr == nil || verr.Fields[0] != "weight" {
		t.Fatalf("expected weight validation error, got %v", verr)
	}
}

func TestValidationErrorIs(t *testing.T) {
	var verr *ValidationError
	err := error(&ValidationError{Fields: []string{"email"}})
	if !errors.As(err, &verr) {
		t.Fatal("errors.As failed for ValidationError")
	}
}

func TestRescheduleNoteContent(t *testing.T) {
	oldTime := time.Date(2026, 3, 9, 9, 0, 0, 0, time.UTC)
	newTime := time.Date(2026, 3, 10, 14, 30, 0, 0, time.UTC)

	got := RescheduleNoteContent(oldTime, newTime, "patient request")
	want := "Appointment rescheduled from Mar 9, 2026 9:00 AM to Mar 10, 2026 2:30 PM. Reason: patient request"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestAutoCompletionNoteContent(t *testing.T) {
	want := "Automatically marked as completed (1 hour after scheduled time)"
	if got := AutoCompletionNoteContent(); got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}
