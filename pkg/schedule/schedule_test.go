package schedule

import (
	"testing"
	"time"
)

func TestNew_InvalidInputs(t *testing.T) {
	if _, err := New("9:30", "16:00", "Not/AZone"); err == nil {
		t.Error("Expected error for invalid timezone")
	}
	if _, err := New("junk", "16:00", "America/New_York"); err == nil {
		t.Error("Expected error for invalid start time")
	}
	if _, err := New("9:30", "25:00", "America/New_York"); err == nil {
		t.Error("Expected error for out-of-range end time")
	}
}

func TestContains_DaySession(t *testing.T) {
	s, err := New("9:30", "16:00", "America/New_York")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	ny := s.Location()
	// A regular Wednesday
	inside := time.Date(2026, 3, 4, 12, 0, 0, 0, ny)
	before := time.Date(2026, 3, 4, 9, 0, 0, 0, ny)
	after := time.Date(2026, 3, 4, 16, 30, 0, 0, ny)

	if !s.Contains(inside) {
		t.Error("Expected 12:00 to be inside 9:30-16:00")
	}
	if s.Contains(before) {
		t.Error("Expected 9:00 to be outside 9:30-16:00")
	}
	if s.Contains(after) {
		t.Error("Expected 16:30 to be outside 9:30-16:00")
	}
}

func TestContains_OvernightSession(t *testing.T) {
	s, err := New("21:00", "2:30", "America/Chicago")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	loc := s.Location()
	if !s.Contains(time.Date(2026, 3, 4, 22, 0, 0, 0, loc)) {
		t.Error("Expected 22:00 to be inside 21:00-02:30")
	}
	if !s.Contains(time.Date(2026, 3, 4, 1, 0, 0, 0, loc)) {
		t.Error("Expected 01:00 to be inside 21:00-02:30")
	}
	if s.Contains(time.Date(2026, 3, 4, 12, 0, 0, 0, loc)) {
		t.Error("Expected 12:00 to be outside 21:00-02:30")
	}
}

func TestRemainingTime(t *testing.T) {
	s, err := New("9:30", "16:00", "America/New_York")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	ny := s.Location()
	at := time.Date(2026, 3, 4, 15, 0, 0, 0, ny)
	if got := s.RemainingTime(at); got != time.Hour {
		t.Errorf("Expected 1h remaining at 15:00, got %v", got)
	}

	outside := time.Date(2026, 3, 4, 18, 0, 0, 0, ny)
	if got := s.RemainingTime(outside); got != 0 {
		t.Errorf("Expected 0 remaining outside schedule, got %v", got)
	}
}

func TestRemainingTime_Overnight(t *testing.T) {
	s, err := New("21:00", "2:30", "America/Chicago")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	loc := s.Location()
	// Before midnight: session ends tomorrow at 02:30
	at := time.Date(2026, 3, 4, 23, 30, 0, 0, loc)
	if got := s.RemainingTime(at); got != 3*time.Hour {
		t.Errorf("Expected 3h remaining at 23:30, got %v", got)
	}

	// After midnight: session ends today at 02:30
	at = time.Date(2026, 3, 5, 1, 30, 0, 0, loc)
	if got := s.RemainingTime(at); got != time.Hour {
		t.Errorf("Expected 1h remaining at 01:30, got %v", got)
	}
}

func TestWithCalendar_Holiday(t *testing.T) {
	s, err := New("9:30", "16:00", "America/New_York")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	s = s.WithCalendar("xnys")

	// Christmas Day 2026 falls on a Friday; NYSE is closed.
	holiday := time.Date(2026, 12, 25, 12, 0, 0, 0, s.Location())
	if s.Contains(holiday) {
		t.Error("Expected exchange holiday to be outside the schedule")
	}
}
