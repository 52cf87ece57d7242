package booking

import "time"

// SlotLength is the fixed conflict window for a booking. It is clinic-wide
// and not derived from the booked service's configured duration.
const SlotLength = 30 * time.Minute

// Blocks reports whether a confirmed appointment starting at existingStart
// occupies the slot proposed at proposedStart. Two bookings conflict when
// their half-open 30-minute windows overlap, i.e. the starts are strictly
// less than SlotLength apart.
func Blocks(existingStart, proposedStart time.Time) bool {
	d := existingStart.Sub(proposedStart)
	return d > -SlotLength && d < SlotLength
}

// DayWindow returns the half-open window covering the calendar day named by
// date ("2006-01-02") in the given location.
func DayWindow(date string, loc *time.Location) (time.Time, time.Time, error) {
	day, err := time.ParseInLocation("2006-01-02", date, loc)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return day, day.AddDate(0, 0, 1), nil
}

// ClockLabel formats a slot start as a time-of-day label for slot-picker UIs.
func ClockLabel(t time.Time) string {
	return t.Format("3:04 PM")
}
