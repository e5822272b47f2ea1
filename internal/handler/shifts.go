package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prodtrack/api/internal/shift"
)

const dateLayout = "2006-01-02"

// ShiftHandler exposes the shift calendar.
type ShiftHandler struct {
	cal shift.Calendar
	now func() time.Time
}

// NewShiftHandler creates a new ShiftHandler.
func NewShiftHandler(cal shift.Calendar) *ShiftHandler {
	return &ShiftHandler{cal: cal, now: time.Now}
}

// RegisterRoutes registers shift endpoints on the given Chi router.
func (h *ShiftHandler) RegisterRoutes(r chi.Router) {
	r.Get("/shifts/current", h.Current)
	r.Get("/shifts/{label}", h.ByLabel)
}

// Current returns the shift containing ?at (RFC 3339), or now.
func (h *ShiftHandler) Current(w http.ResponseWriter, r *http.Request) {
	at := h.now()
	if v := r.URL.Query().Get("at"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "at must be an RFC 3339 timestamp"})
			return
		}
		at = t
	}
	writeJSON(w, http.StatusOK, h.cal.WindowOf(at))
}

// ByLabel returns the window of shift {label} on ?date (YYYY-MM-DD), or today.
func (h *ShiftHandler) ByLabel(w http.ResponseWriter, r *http.Request) {
	label, err := shift.ParseLabel(chi.URLParam(r, "label"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	date, err := dateFromQuery(h.cal, r, h.now())
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	window, err := h.cal.WindowOfLabel(label, date)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, window)
}

var errBadDate = errors.New("date must be formatted YYYY-MM-DD")

func dateFromQuery(cal shift.Calendar, r *http.Request, now time.Time) (time.Time, error) {
	v := r.URL.Query().Get("date")
	if v == "" {
		return now.In(cal.Location()), nil
	}
	d, err := time.ParseInLocation(dateLayout, v, cal.Location())
	if err != nil {
		return time.Time{}, errBadDate
	}
	return d, nil
}

// windowFromQuery picks a shift window from ?shift and ?date, falling back
// to the shift containing ?at or the current time.
func windowFromQuery(cal shift.Calendar, r *http.Request) (shift.Window, error) {
	q := r.URL.Query()
	now := time.Now()

	if label := q.Get("shift"); label != "" {
		l, err := shift.ParseLabel(label)
		if err != nil {
			return shift.Window{}, err
		}
		date, err := dateFromQuery(cal, r, now)
		if err != nil {
			return shift.Window{}, err
		}
		return cal.WindowOfLabel(l, date)
	}

	if v := q.Get("at"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return shift.Window{}, errors.New("at must be an RFC 3339 timestamp")
		}
		return cal.WindowOf(t), nil
	}
	return cal.WindowOf(now), nil
}
