package models

import (
	"errors"
	"testing"
	"time"
	_ "time/tzdata"
)

func TestNormalizeClock(t *testing.T) {
	cases := map[string]string{
		"9:05":    "09:05",
		"09:05":   "09:05",
		" 23:59 ": "23:59",
		"00:00":   "00:00",
	}
	for in, want := range cases {
		got, err := NormalizeClock(in)
		if err != nil || got != want {
			t.Errorf("Expected %q -> %s, got %s (%v)", in, want, got, err)
		}
	}

	for _, in := range []string{"9am", "24:00", "12:60", "1200", "12:5"} {
		if _, err := NormalizeClock(in); !errors.Is(err, ErrInvalidTime) {
			t.Errorf("Expected ErrInvalidTime for %q, got %v", in, err)
		}
	}
	if _, err := NormalizeClock("  "); !errors.Is(err, ErrMissingTime) {
		t.Errorf("Expected ErrMissingTime, got %v", err)
	}
}

func TestAdvanceClock(t *testing.T) {
	cases := []struct {
		in   string
		step time.Duration
		want string
	}{
		{"09:00", 5 * time.Minute, "09:05"},
		{"09:55", 5 * time.Minute, "10:00"},
		{"23:55", 5 * time.Minute, "00:00"},
		{"23:58", 5 * time.Minute, "00:03"},
		{"00:00", -5 * time.Minute, "23:55"},
	}
	for _, c := range cases {
		got, err := AdvanceClock(c.in, c.step)
		if err != nil || got != c.want {
			t.Errorf("Expected %s + %s = %s, got %s (%v)", c.in, c.step, c.want, got, err)
		}
	}
	if _, err := AdvanceClock("noon", time.Minute); err == nil {
		t.Errorf("Expected error for unparsable clock")
	}
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2024-06-10", time.UTC)
	if err != nil {
		t.Fatalf("ParseDate failed: %v", err)
	}
	if FormatDate(d) != "2024-06-10" || d.Hour() != 0 {
		t.Errorf("Expected midnight 2024-06-10, got %s", d)
	}
	for _, raw := range []string{"10/06/2024", "2024-13-01", ""} {
		if _, err := ParseDate(raw, time.UTC); !errors.Is(err, ErrInvalidDate) {
			t.Errorf("Expected ErrInvalidDate for %q, got %v", raw, err)
		}
	}
}

func TestDayBoundsAcrossDST(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}

	// clocks spring forward on 2024-03-10
	day, _ := ParseDate("2024-03-10", ny)
	start, end := DayBounds(day.Add(15 * time.Hour))
	if !start.Equal(day) {
		t.Errorf("Expected start %s, got %s", day, start)
	}
	if got := end.Sub(start); got != 23*time.Hour {
		t.Errorf("Expected a 23h day, got %s", got)
	}
	if FormatDate(end) != "2024-03-11" || end.Hour() != 0 {
		t.Errorf("Expected next local midnight, got %s", end)
	}

	at, err := At(day, "09:00")
	if err != nil {
		t.Fatalf("At failed: %v", err)
	}
	if want := time.Date(2024, 3, 10, 13, 0, 0, 0, time.UTC); !at.Equal(want) {
		t.Errorf("Expected 09:00 EDT = %s, got %s", want, at.UTC())
	}
	if at.Before(start) || !at.Before(end) {
		t.Errorf("Expected %s inside [%s, %s)", at, start, end)
	}

	fallBack, _ := ParseDate("2024-11-03", ny)
	s, e := DayBounds(fallBack)
	if got := e.Sub(s); got != 25*time.Hour {
		t.Errorf("Expected a 25h day, got %s", got)
	}
}
