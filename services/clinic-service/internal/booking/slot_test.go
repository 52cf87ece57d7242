package booking

import (
	"testing"
	"time"
)

func TestBlocks(t *testing.T) {
	base := time.Date(2026, 3, 9, 9, 0, 0, 0, time.UTC)

	cases := []struct {
		name     string
		existing time.Time
		proposed time.Time
		want     bool
	}{
		{"same time", base, base, true},
		{"15 minutes later", base, base.Add(15 * time.Minute), true},
		{"29 minutes later", base, base.Add(29 * time.Minute), true},
		{"exactly 30 minutes later", base, base.Add(30 * time.Minute), false},
		{"31 minutes later", base, base.Add(31 * time.Minute), false},
		{"15 minutes earlier", base, base.Add(-15 * time.Minute), true},
		{"exactly 30 minutes earlier", base, base.Add(-30 * time.Minute), false},
		{"an hour apart", base, base.Add(time.Hour), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Blocks(tc.existing, tc.proposed); got != tc.want {
				t.Fatalf("Blocks(%v, %v) = %v, want %v", tc.existing, tc.proposed, got, tc.want)
			}
		})
	}
}

func TestBlocksIsSymmetric(t *testing.T) {
	a := time.Date(2026, 3, 9, 9, 0, 0, 0, time.UTC)
	b := a.Add(15 * time.Minute)
	if Blocks(a, b) != Blocks(b, a) {
		t.Fatal("Blocks must not depend on argument order")
	}
}

func TestDayWindow(t *testing.T) {
	loc, err := time.LoadLocation("Asia/Singapore")
	if err != nil {
		t.Fatal(err)
	}

	start, end, err := DayWindow("2026-03-09", loc)
	if err != nil {
		t.Fatal(err)
	}
	if !start.Equal(time.Date(2026, 3, 9, 0, 0, 0, 0, loc)) {
		t.Errorf("start = %v", start)
	}
	if !end.Equal(time.Date(2026, 3, 10, 0, 0, 0, 0, loc)) {
		t.Errorf("end = %v", end)
	}

	if _, _, err := DayWindow("09/03/2026", loc); err == nil {
		t.Error("expected error for non ISO date")
	}
	if _, _, err := DayWindow("", loc); err == nil {
		t.Error("expected error for empty date")
	}
}

func TestClockLabel(t *testing.T) {
	cases := []struct {
		in   time.Time
		want string
	}{
		{time.Date(2026, 3, 9, 9, 0, 0, 0, time.UTC), "9:00 AM"},
		{time.Date(2026, 3, 9, 14, 30, 0, 0, time.UTC), "2:30 PM"},
		{time.Date(2026, 3, 9, 0, 5, 0, 0, time.UTC), "12:05 AM"},
	}
	for _, tc := range cases {
		if got := ClockLabel(tc.in); got != tc.want {
			t.Errorf("ClockLabel(%v) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
