// Package shift maps instants onto the plant's three rotating production shifts
// and partitions order runs across shift and operator-group boundaries.
package shift

import (
	"errors"
	"strings"
	"time"
)

// Label identifies one of the three daily shifts.
type Label string

const (
	I   Label = "I"
	II  Label = "II"
	III Label = "III"
)

// Shift boundaries as wall-clock hours in the calendar's location.
const (
	morningStartHour = 6
	eveningStartHour = 14
	nightStartHour   = 22
)

// ErrInvalidShift is returned for a label other than I, II or III.
var ErrInvalidShift = errors.New("invalid shift")

// Window is the half-open interval [Start, End) of one shift occurrence.
type Window struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
	Label Label     `json:"label"`
}

// Contains reports whether t lies in [Start, End).
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

// Calendar computes shift windows in a fixed civil time zone.
type Calendar struct {
	loc *time.Location
}

// NewCalendar returns a Calendar for loc. A nil loc means UTC.
func NewCalendar(loc *time.Location) Calendar {
	if loc == nil {
		loc = time.UTC
	}
	return Calendar{loc: loc}
}

// Location returns the calendar's time zone.
func (c Calendar) Location() *time.Location {
	if c.loc == nil {
		return time.UTC
	}
	return c.loc
}

// ParseLabel accepts "I", "II" or "III" (case-insensitive, surrounding space ignored).
func ParseLabel(s string) (Label, error) {
	switch Label(strings.ToUpper(strings.TrimSpace(s))) {
	case I:
		return I, nil
	case II:
		return II, nil
	case III:
		return III, nil
	}
	return "", ErrInvalidShift
}

// WindowOf returns the unique shift window containing t.
// An instant exactly on 06:00, 14:00 or 22:00 belongs to the shift starting there.
func (c Calendar) WindowOf(t time.Time) Window {
	local := t.In(c.Location())
	y, m, d := local.Date()
	hour := local.Hour()

	switch {
	case hour >= morningStartHour && hour < eveningStartHour:
		return Window{Start: c.at(y, m, d, morningStartHour), End: c.at(y, m, d, eveningStartHour), Label: I}
	case hour >= eveningStartHour && hour < nightStartHour:
		return Window{Start: c.at(y, m, d, eveningStartHour), End: c.at(y, m, d, nightStartHour), Label: II}
	case hour >= nightStartHour:
		return Window{Start: c.at(y, m, d, nightStartHour), End: c.at(y, m, d+1, morningStartHour), Label: III}
	default:
		// Early morning tail of the night shift that began yesterday.
		return Window{Start: c.at(y, m, d-1, nightStartHour), End: c.at(y, m, d, morningStartHour), Label: III}
	}
}

// WindowOfLabel returns the canonical window of label on the calendar date of date.
// Shift III ends at 06:00 on the following date.
func (c Calendar) WindowOfLabel(label Label, date time.Time) (Window, error) {
	local := date.In(c.Location())
	y, m, d := local.Date()

	switch label {
	case I:
		return Window{Start: c.at(y, m, d, morningStartHour), End: c.at(y, m, d, eveningStartHour), Label: I}, nil
	case II:
		return Window{Start: c.at(y, m, d, eveningStartHour), End: c.at(y, m, d, nightStartHour), Label: II}, nil
	case III:
		return Window{Start: c.at(y, m, d, nightStartHour), End: c.at(y, m, d+1, morningStartHour), Label: III}, nil
	}
	return Window{}, ErrInvalidShift
}

func (c Calendar) at(y int, m time.Month, d, hour int) time.Time {
	return time.Date(y, m, d, hour, 0, 0, 0, c.Location())
}
