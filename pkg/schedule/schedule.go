// Package schedule defines the daily trading window a strategy is allowed to
// trade within, including the exchange time zone and optional exchange
// holiday calendar.
package schedule

import (
	"fmt"
	"time"

	"github.com/scmhub/calendar"
)

// TradingSchedule is a daily [start, end) trading window in a fixed time
// zone. Overnight windows (end before start, e.g. 21:00-02:30) are supported.
type TradingSchedule struct {
	startTime string // HH:MM:SS
	endTime   string // HH:MM:SS
	location  *time.Location
	cal       *calendar.Calendar // optional exchange holiday calendar
}

// New creates a trading schedule. Times are "HH:MM:SS" or "HH:MM" strings in
// the given IANA time zone.
func New(startTime, endTime, timezone string) (*TradingSchedule, error) {
	location, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", timezone, err)
	}

	s := &TradingSchedule{
		startTime: startTime,
		endTime:   endTime,
		location:  location,
	}

	// Validate formats up front
	now := time.Now().In(location)
	if _, err := s.parseTime(startTime, now); err != nil {
		return nil, fmt.Errorf("invalid start time: %w", err)
	}
	if _, err := s.parseTime(endTime, now); err != nil {
		return nil, fmt.Errorf("invalid end time: %w", err)
	}

	return s, nil
}

// WithCalendar attaches an exchange holiday calendar by MIC code (ISO 10383,
// e.g. "xnys", "xcme"). An instant on an exchange holiday is outside the
// schedule even when it falls inside the daily window. Unknown MICs leave the
// schedule unchanged.
func (s *TradingSchedule) WithCalendar(mic string) *TradingSchedule {
	if cal := calendar.GetCalendar(mic); cal != nil {
		s.cal = cal
	}
	return s
}

// Location returns the schedule's time zone.
func (s *TradingSchedule) Location() *time.Location {
	return s.location
}

// Contains reports whether the instant falls inside the trading window.
func (s *TradingSchedule) Contains(instant time.Time) bool {
	t := instant.In(s.location)

	if s.cal != nil && !s.cal.IsBusinessDay(t) {
		return false
	}

	start, err := s.parseTime(s.startTime, t)
	if err != nil {
		return false
	}
	end, err := s.parseTime(s.endTime, t)
	if err != nil {
		return false
	}

	// Overnight session (e.g. 21:00 - 02:30)
	if end.Before(start) {
		return !t.Before(start) || t.Before(end)
	}

	return !t.Before(start) && t.Before(end)
}

// RemainingTime returns the time left between the instant and the end of the
// session containing it. For an instant outside the window it returns 0.
func (s *TradingSchedule) RemainingTime(instant time.Time) time.Duration {
	if !s.Contains(instant) {
		return 0
	}

	t := instant.In(s.location)
	start, _ := s.parseTime(s.startTime, t)
	end, _ := s.parseTime(s.endTime, t)

	// In an overnight session past midnight the end is today; before midnight
	// it is tomorrow.
	if end.Before(start) && !t.Before(start) {
		end = end.AddDate(0, 0, 1)
	}

	return end.Sub(t)
}

func (s *TradingSchedule) String() string {
	return fmt.Sprintf("%s - %s %s", s.startTime, s.endTime, s.location)
}

// parseTime parses an HH:MM:SS or HH:MM string into an instant on the given
// date in the schedule's time zone.
func (s *TradingSchedule) parseTime(timeStr string, date time.Time) (time.Time, error) {
	var hour, minute, second int

	if _, err := fmt.Sscanf(timeStr, "%d:%d:%d", &hour, &minute, &second); err != nil {
		second = 0
		if _, err := fmt.Sscanf(timeStr, "%d:%d", &hour, &minute); err != nil {
			return time.Time{}, fmt.Errorf("invalid time format: %s (expected HH:MM:SS or HH:MM)", timeStr)
		}
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 || second < 0 || second > 59 {
		return time.Time{}, fmt.Errorf("time out of range: %s", timeStr)
	}

	return time.Date(date.Year(), date.Month(), date.Day(), hour, minute, second, 0, s.location), nil
}
