package booking

import (
	"fmt"
	"time"
)

// noteTimeLayout is how timestamps are rendered inside note content.
const noteTimeLayout = "Jan 2, 2006 3:04 PM"

const defaultStatusNoteContent = "No notes provided"

// RescheduleNoteContent describes a time change for the audit trail,
// embedding both the old and new times and the supplied reason.
func RescheduleNoteContent(oldTime, newTime time.Time, reason string) string {
	return fmt.Sprintf("Appointment rescheduled from %s to %s. Reason: %s",
		oldTime.Format(noteTimeLayout), newTime.Format(noteTimeLayout), reason)
}

// AutoCompletionNoteContent is the system note written when the sweeper
// marks an overdue appointment completed.
func AutoCompletionNoteContent() string {
	return "Automatically marked as completed (1 hour after scheduled time)"
}
