package models

import (
	"fmt"
	"strings"
	"time"
)

const (
	clockLayout = "15:04"
	dateLayout  = "2006-01-02"
	minutesDay  = 24 * 60
)

// NormalizeClock parses a time of day like "9:05" or "09:05" and returns it as "09:05"
func NormalizeClock(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", Invalid(ErrMissingTime, "time is required")
	}
	t, err := time.Parse(clockLayout, raw)
	if err != nil {
		return "", Invalid(ErrInvalidTime, "invalid time %q, use HH:MM", raw)
	}
	return t.Format(clockLayout), nil
}

// ClockMinutes returns minutes since midnight for a normalized clock
func ClockMinutes(clock string) (int, error) {
	t, err := time.Parse(clockLayout, clock)
	if err != nil {
		return 0, fmt.Errorf("parse clock %q: %w", clock, err)
	}
	return t.Hour()*60 + t.Minute(), nil
}

// AdvanceClock adds d to a clock, wrapping past midnight
func AdvanceClock(clock string, d time.Duration) (string, error) {
	m, err := ClockMinutes(clock)
	if err != nil {
		return "", err
	}
	m = (m + int(d/time.Minute)) % minutesDay
	if m < 0 {
		m += minutesDay
	}
	return fmt.Sprintf("%02d:%02d", m/60, m%60), nil
}

// ParseDate parses a YYYY-MM-DD calendar date as midnight in loc
func ParseDate(raw string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	d, err := time.ParseInLocation(dateLayout, strings.TrimSpace(raw), loc)
	if err != nil {
		return time.Time{}, Invalid(ErrInvalidDate, "invalid date %q, use YYYY-MM-DD", raw)
	}
	return d, nil
}

// FormatDate formats the calendar day of t
func FormatDate(t time.Time) string {
	return t.Format(dateLayout)
}

// DayBounds returns [midnight, next midnight) of the day containing t, in t's location
func DayBounds(t time.Time) (time.Time, time.Time) {
	y, m, d := t.Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, t.Location())
	return start, start.AddDate(0, 0, 1)
}

// At combines a calendar day with a clock in the day's location
func At(day time.Time, clock string) (time.Time, error) {
	m, err := ClockMinutes(clock)
	if err != nil {
		return time.Time{}, err
	}
	y, mo, d := day.Date()
	return time.Date(y, mo, d, m/60, m%60, 0, 0, day.Location()), nil
}
