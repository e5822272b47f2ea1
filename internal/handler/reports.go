package handler

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prodtrack/api/internal/database"
	"github.com/prodtrack/api/internal/shift"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// maxReportDays bounds the production days one report may span.
const maxReportDays = 92

// ReportStore defines the database methods needed by report handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type ReportStore interface {
	ListPlantSegmentsInRange(ctx context.Context, arg database.ListPlantSegmentsInRangeParams) ([]database.ListPlantSegmentsInRangeRow, error)
}

// ReportHandler aggregates recorded segments into production reports.
type ReportHandler struct {
	store ReportStore
	cal   shift.Calendar
	log   zerolog.Logger
	now   func() time.Time
}

// NewReportHandler creates a new ReportHandler.
func NewReportHandler(store ReportStore, cal shift.Calendar, log zerolog.Logger) *ReportHandler {
	return &ReportHandler{store: store, cal: cal, log: log, now: time.Now}
}

// RegisterRoutes registers plant-scoped report endpoints.
// Expected to be mounted at /plants/{plant}/reports behind RequirePlant.
func (h *ReportHandler) RegisterRoutes(r chi.Router) {
	r.Get("/group-hours", h.GroupHours)
}

type groupHoursRow struct {
	Date     string `json:"date"`
	Shift    string `json:"shift"`
	Line     string `json:"line"`
	Group    string `json:"group"`
	Segments int    `json:"segments"`
	Hours    string `json:"hours"`
}

type groupHoursResponse struct {
	Plant      string          `json:"plant"`
	From       time.Time       `json:"from"`
	To         time.Time       `json:"to"`
	Rows       []groupHoursRow `json:"rows"`
	TotalHours string          `json:"total_hours"`
}

type groupHoursKey struct {
	date, shift, line, group string
}

// GroupHours sums segment run time per production date, shift, line and
// group over ?start_date..?end_date (inclusive, YYYY-MM-DD). A production
// date runs from 06:00 to 06:00 the next day, so shift III is counted on
// the date it started. Unattributed segments are reported under group "".
func (h *ReportHandler) GroupHours(w http.ResponseWriter, r *http.Request) {
	plant := strings.TrimSpace(chi.URLParam(r, "plant"))
	if plant == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "plant is required"})
		return
	}

	from, to, err := h.productionRange(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	segments, err := h.store.ListPlantSegmentsInRange(r.Context(), database.ListPlantSegmentsInRangeParams{
		Plant: plant,
		From:  from,
		To:    to,
	})
	if err != nil {
		h.log.Error().Err(err).Str("plant", plant).Msg("list plant segments")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	type bucket struct {
		segments int
		seconds  decimal.Decimal
	}
	buckets := make(map[groupHoursKey]*bucket)
	var keys []groupHoursKey
	total := decimal.Zero

	for _, s := range segments {
		window := h.cal.WindowOf(s.ActualStart)
		key := groupHoursKey{
			date:  productionDate(h.cal, window),
			shift: s.Shift,
			line:  s.Line,
			group: s.GroupName.String,
		}
		b, ok := buckets[key]
		if !ok {
			b = &bucket{}
			buckets[key] = b
			keys = append(keys, key)
		}
		secs := durationSeconds(s.ActualStart, s.ActualEnd)
		b.segments++
		b.seconds = b.seconds.Add(secs)
		total = total.Add(secs)
	}

	sort.Slice(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		if a.date != b.date {
			return a.date < b.date
		}
		if a.shift != b.shift {
			return shiftOrder(a.shift) < shiftOrder(b.shift)
		}
		if a.line != b.line {
			return a.line < b.line
		}
		return a.group < b.group
	})

	resp := groupHoursResponse{
		Plant:      plant,
		From:       from,
		To:         to,
		Rows:       make([]groupHoursRow, len(keys)),
		TotalHours: total.Div(decimal.NewFromInt(3600)).StringFixed(2),
	}
	for i, k := range keys {
		b := buckets[k]
		resp.Rows[i] = groupHoursRow{
			Date:     k.date,
			Shift:    k.shift,
			Line:     k.line,
			Group:    k.group,
			Segments: b.segments,
			Hours:    b.seconds.Div(decimal.NewFromInt(3600)).StringFixed(2),
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

var (
	errBadStartDate  = errors.New("start_date must be formatted YYYY-MM-DD")
	errBadEndDate    = errors.New("end_date must be formatted YYYY-MM-DD")
	errDateOrder     = errors.New("start_date must not be after end_date")
	errRangeTooLarge = errors.New("date range too large")
)

// productionRange returns [06:00 on start_date, 06:00 after end_date).
// Both default to the production date of now.
func (h *ReportHandler) productionRange(r *http.Request) (time.Time, time.Time, error) {
	loc := h.cal.Location()
	today, _ := time.ParseInLocation(dateLayout, productionDate(h.cal, h.cal.WindowOf(h.now())), loc)

	start, end := today, today
	if s := r.URL.Query().Get("start_date"); s != "" {
		t, err := time.ParseInLocation(dateLayout, s, loc)
		if err != nil {
			return time.Time{}, time.Time{}, errBadStartDate
		}
		start = t
	}
	if s := r.URL.Query().Get("end_date"); s != "" {
		t, err := time.ParseInLocation(dateLayout, s, loc)
		if err != nil {
			return time.Time{}, time.Time{}, errBadEndDate
		}
		end = t
	}
	if start.After(end) {
		return time.Time{}, time.Time{}, errDateOrder
	}
	if end.Sub(start) >= maxReportDays*24*time.Hour {
		return time.Time{}, time.Time{}, errRangeTooLarge
	}

	first, _ := h.cal.WindowOfLabel(shift.I, start)
	last, _ := h.cal.WindowOfLabel(shift.III, end)
	return first.Start, last.End, nil
}

// productionDate is the calendar date on which a shift window's production
// day began.
func productionDate(cal shift.Calendar, w shift.Window) string {
	return w.Start.In(cal.Location()).Format(dateLayout)
}

func shiftOrder(label string) int {
	switch shift.Label(label) {
	case shift.I:
		return 0
	case shift.II:
		return 1
	case shift.III:
		return 2
	}
	return 3
}
