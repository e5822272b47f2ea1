package shift_test

import (
	"errors"
	"testing"
	"time"

	"github.com/prodtrack/api/internal/shift"
)

func mustTime(t *testing.T, s string) time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339, s)
	if err != nil {
		t.Fatalf("parse %q: %v", s, err)
	}
	return ts
}

func TestWindowOf(t *testing.T) {
	cal := shift.NewCalendar(time.UTC)

	tests := []struct {
		name      string
		at        string
		wantLabel shift.Label
		wantStart string
		wantEnd   string
	}{
		{"morning", "2024-09-28T07:00:00Z", shift.I, "2024-09-28T06:00:00Z", "2024-09-28T14:00:00Z"},
		{"afternoon", "2024-09-28T15:30:00Z", shift.II, "2024-09-28T14:00:00Z", "2024-09-28T22:00:00Z"},
		{"late night", "2024-09-28T23:10:00Z", shift.III, "2024-09-28T22:00:00Z", "2024-09-29T06:00:00Z"},
		{"early morning", "2024-09-28T05:00:00Z", shift.III, "2024-09-27T22:00:00Z", "2024-09-28T06:00:00Z"},
		{"midnight", "2024-09-28T00:00:00Z", shift.III, "2024-09-27T22:00:00Z", "2024-09-28T06:00:00Z"},
		{"month rollover", "2024-09-30T22:30:00Z", shift.III, "2024-09-30T22:00:00Z", "2024-10-01T06:00:00Z"},
		{"year rollover", "2025-01-01T03:00:00Z", shift.III, "2024-12-31T22:00:00Z", "2025-01-01T06:00:00Z"},
		{"last instant of I", "2024-09-28T13:59:59Z", shift.I, "2024-09-28T06:00:00Z", "2024-09-28T14:00:00Z"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := cal.WindowOf(mustTime(t, tt.at))
			if w.Label != tt.wantLabel {
				t.Fatalf("label: got %s, want %s", w.Label, tt.wantLabel)
			}
			if !w.Start.Equal(mustTime(t, tt.wantStart)) {
				t.Fatalf("start: got %s, want %s", w.Start, tt.wantStart)
			}
			if !w.End.Equal(mustTime(t, tt.wantEnd)) {
				t.Fatalf("end: got %s, want %s", w.End, tt.wantEnd)
			}
		})
	}
}

func TestWindowOf_BoundaryBelongsToLaterShift(t *testing.T) {
	cal := shift.NewCalendar(time.UTC)

	for _, at := range []string{"2024-09-28T06:00:00Z", "2024-09-28T14:00:00Z", "2024-09-28T22:00:00Z"} {
		ts := mustTime(t, at)
		w := cal.WindowOf(ts)
		if !w.Start.Equal(ts) {
			t.Fatalf("WindowOf(%s) starts at %s, want the window starting at the boundary", at, w.Start)
		}
	}
}

func TestWindowOf_ContainsInstant(t *testing.T) {
	cal := shift.NewCalendar(time.UTC)
	from := mustTime(t, "2024-02-27T00:00:00Z")

	// Three days in 7-minute steps crosses every boundary, including a leap day.
	for ts := from; ts.Before(from.Add(72 * time.Hour)); ts = ts.Add(7 * time.Minute) {
		w := cal.WindowOf(ts)
		if !w.Contains(ts) {
			t.Fatalf("WindowOf(%s) = [%s, %s) does not contain it", ts, w.Start, w.End)
		}
		if w.End.Sub(w.Start) != 8*time.Hour {
			t.Fatalf("WindowOf(%s) spans %s, want 8h", ts, w.End.Sub(w.Start))
		}
	}
}

func TestWindowOf_NonUTCLocation(t *testing.T) {
	jakarta := time.FixedZone("WIB", 7*60*60)
	cal := shift.NewCalendar(jakarta)

	// 23:30 UTC is 06:30 WIB the next day: shift I in Jakarta.
	w := cal.WindowOf(mustTime(t, "2024-09-28T23:30:00Z"))
	if w.Label != shift.I {
		t.Fatalf("label: got %s, want I", w.Label)
	}
	if want := time.Date(2024, 9, 29, 6, 0, 0, 0, jakarta); !w.Start.Equal(want) {
		t.Fatalf("start: got %s, want %s", w.Start, want)
	}
}

func TestWindowOfLabel(t *testing.T) {
	cal := shift.NewCalendar(time.UTC)
	date := mustTime(t, "2024-09-28T00:00:00Z")

	tests := []struct {
		label     shift.Label
		wantStart string
		wantEnd   string
	}{
		{shift.I, "2024-09-28T06:00:00Z", "2024-09-28T14:00:00Z"},
		{shift.II, "2024-09-28T14:00:00Z", "2024-09-28T22:00:00Z"},
		{shift.III, "2024-09-28T22:00:00Z", "2024-09-29T06:00:00Z"},
	}
	for _, tt := range tests {
		w, err := cal.WindowOfLabel(tt.label, date)
		if err != nil {
			t.Fatalf("WindowOfLabel(%s): %v", tt.label, err)
		}
		if !w.Start.Equal(mustTime(t, tt.wantStart)) || !w.End.Equal(mustTime(t, tt.wantEnd)) {
			t.Fatalf("WindowOfLabel(%s) = [%s, %s), want [%s, %s)", tt.label, w.Start, w.End, tt.wantStart, tt.wantEnd)
		}
	}

	if _, err := cal.WindowOfLabel("IV", date); !errors.Is(err, shift.ErrInvalidShift) {
		t.Fatalf("expected ErrInvalidShift, got %v", err)
	}
}

func TestParseLabel(t *testing.T) {
	for in, want := range map[string]shift.Label{"I": shift.I, " ii ": shift.II, "iii": shift.III} {
		got, err := shift.ParseLabel(in)
		if err != nil || got != want {
			t.Fatalf("ParseLabel(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	for _, in := range []string{"", "IV", "1", "night"} {
		if _, err := shift.ParseLabel(in); !errors.Is(err, shift.ErrInvalidShift) {
			t.Fatalf("ParseLabel(%q): expected ErrInvalidShift, got %v", in, err)
		}
	}
}
