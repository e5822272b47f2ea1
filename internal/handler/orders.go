package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/prodtrack/api/internal/database"
	"github.com/prodtrack/api/internal/enum"
	"github.com/prodtrack/api/internal/middleware"
	"github.com/prodtrack/api/internal/service"
	"github.com/prodtrack/api/internal/shift"
	"github.com/prodtrack/api/internal/ws"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// OrderServicer runs the lifecycle transitions.
// Satisfied by *service.OrderService.
type OrderServicer interface {
	Start(ctx context.Context, req service.StartOrderRequest) (*service.TransitionResult, error)
	Stop(ctx context.Context, req service.StopOrderRequest) (*service.TransitionResult, error)
	Reopen(ctx context.Context, req service.ReopenOrderRequest) (*service.TransitionResult, error)
	Advance(ctx context.Context, req service.AdvanceRequest) (*service.TransitionResult, error)
	UpdateActuals(ctx context.Context, req service.UpdateActualsRequest) (*service.TransitionResult, error)
	Calendar() shift.Calendar
}

// OrderStore defines the read queries behind the order endpoints.
// Satisfied by *database.Queries; narrow interface for testability.
type OrderStore interface {
	GetOrder(ctx context.Context, id int64) (database.ProductionOrder, error)
	ListSegmentsByOrder(ctx context.Context, orderID int64) ([]database.OrderSegment, error)
	ListOrdersInWindow(ctx context.Context, arg database.ListOrdersInWindowParams) ([]database.ProductionOrder, error)
}

// Broadcaster pushes order events to the clients watching a line.
// Satisfied by *ws.Hub.
type Broadcaster interface {
	BroadcastToLine(line string, event ws.Event)
}

// OrderHandler serves production order reads and lifecycle transitions.
type OrderHandler struct {
	svc   OrderServicer
	store OrderStore
	hub   Broadcaster
	log   zerolog.Logger
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(svc OrderServicer, store OrderStore, hub Broadcaster, log zerolog.Logger) *OrderHandler {
	return &OrderHandler{svc: svc, store: store, hub: hub, log: log}
}

// RegisterRoutes registers the read endpoints.
func (h *OrderHandler) RegisterRoutes(r chi.Router) {
	r.Get("/orders/{id}", h.Get)
	r.Get("/lines/{line}/orders", h.ListByShift)
}

// RegisterLifecycleRoutes registers the endpoints that change order state.
func (h *OrderHandler) RegisterLifecycleRoutes(r chi.Router) {
	r.Post("/orders/{id}/start", h.Start)
	r.Post("/orders/{id}/stop", h.Stop)
	r.Post("/orders/{id}/reopen", h.Reopen)
	r.Post("/orders/{id}/advance", h.Advance)
}

// RegisterCorrectionRoutes registers the actual window correction endpoint.
func (h *OrderHandler) RegisterCorrectionRoutes(r chi.Router) {
	r.Patch("/orders/{id}/actuals", h.UpdateActuals)
}

// --- Request / Response types ---

type lifecycleRequest struct {
	Instant         time.Time `json:"instant" validate:"required"`
	Group           string    `json:"group" validate:"max=64"`
	GroupSelections []string  `json:"group_selections" validate:"max=64,dive,required,max=64"`
}

type actualsRequest struct {
	ActualStart   *time.Time `json:"actual_start"`
	ActualEnd     *time.Time `json:"actual_end" validate:"required_without=ActualStart"`
	ExpectedStart *time.Time `json:"expected_start"`
	ExpectedEnd   *time.Time `json:"expected_end"`
}

type orderResponse struct {
	ID              int64      `json:"id"`
	ParentID        *int64     `json:"parent_id"`
	ProductID       int32      `json:"product_id"`
	Qty             int32      `json:"qty"`
	DateStart       time.Time  `json:"date_start"`
	DateEnd         time.Time  `json:"date_end"`
	Status          string     `json:"status"`
	ActualStart     *time.Time `json:"actual_start"`
	ActualEnd       *time.Time `json:"actual_end"`
	RunHours        *string    `json:"run_hours"`
	Plant           string     `json:"plant"`
	Line            string     `json:"line"`
	CompletionCount int32      `json:"completion_count"`
	GroupID         *int32     `json:"group_id"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

type segmentResponse struct {
	ID            uuid.UUID `json:"id"`
	OrderID       int64     `json:"order_id"`
	Shift         string    `json:"shift"`
	ActualStart   time.Time `json:"actual_start"`
	ActualEnd     time.Time `json:"actual_end"`
	DurationHours string    `json:"duration_hours"`
	GroupID       *int32    `json:"group_id"`
}

type orderDetailResponse struct {
	orderResponse
	Segments []segmentResponse `json:"segments"`
}

type transitionResponse struct {
	RowsAffected int64             `json:"rows_affected"`
	Message      string            `json:"message"`
	Order        orderResponse     `json:"order"`
	Sibling      *orderResponse    `json:"sibling,omitempty"`
	Segments     []segmentResponse `json:"segments,omitempty"`
	Skipped      []shift.Skip      `json:"skipped,omitempty"`
}

type lineOrdersResponse struct {
	Line   string          `json:"line"`
	Window shift.Window    `json:"window"`
	Orders []orderResponse `json:"orders"`
}

// --- Read handlers ---

// Get returns one order with its shift segments.
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := parseOrderID(w, r)
	if !ok {
		return
	}

	order, ok := h.loadAuthorizedOrder(w, r, id)
	if !ok {
		return
	}

	segments, err := h.store.ListSegmentsByOrder(r.Context(), id)
	if err != nil {
		h.log.Error().Err(err).Int64("order_id", id).Msg("list segments")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := orderDetailResponse{
		orderResponse: toOrderResponse(order),
		Segments:      make([]segmentResponse, len(segments)),
	}
	for i, s := range segments {
		resp.Segments[i] = toSegmentResponse(s)
	}
	writeJSON(w, http.StatusOK, resp)
}

// ListByShift returns the orders of a line whose run overlaps one shift.
// Without ?shift the shift containing ?at (default now) is used; ?date
// (YYYY-MM-DD) picks the day of a labelled shift.
func (h *OrderHandler) ListByShift(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	line := chi.URLParam(r, "line")
	if strings.TrimSpace(line) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "line is required"})
		return
	}

	window, err := windowFromQuery(h.svc.Calendar(), r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	orders, err := h.store.ListOrdersInWindow(r.Context(), database.ListOrdersInWindowParams{
		Line:        line,
		WindowStart: window.Start,
		WindowEnd:   window.End,
	})
	if err != nil {
		h.log.Error().Err(err).Str("line", line).Msg("list orders in window")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := lineOrdersResponse{Line: line, Window: window, Orders: []orderResponse{}}
	for _, o := range orders {
		if !canAccessPlant(claims, o.Plant) {
			continue
		}
		resp.Orders = append(resp.Orders, toOrderResponse(o))
	}
	writeJSON(w, http.StatusOK, resp)
}

// --- Lifecycle handlers ---

// Start moves a New order to Active.
func (h *OrderHandler) Start(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, func(ctx context.Context, id int64, req lifecycleRequest) (*service.TransitionResult, error) {
		return h.svc.Start(ctx, service.StartOrderRequest{OrderID: id, Instant: req.Instant, Group: req.Group})
	})
}

// Stop completes an Active order, or splits its run when group_selections is given.
func (h *OrderHandler) Stop(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, func(ctx context.Context, id int64, req lifecycleRequest) (*service.TransitionResult, error) {
		return h.svc.Stop(ctx, service.StopOrderRequest{OrderID: id, Instant: req.Instant, GroupSelections: req.GroupSelections})
	})
}

// Reopen reactivates a completed order.
func (h *OrderHandler) Reopen(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, func(ctx context.Context, id int64, req lifecycleRequest) (*service.TransitionResult, error) {
		return h.svc.Reopen(ctx, service.ReopenOrderRequest{OrderID: id, Instant: req.Instant, Group: req.Group})
	})
}

// Advance runs the transition the order's current status allows.
func (h *OrderHandler) Advance(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, func(ctx context.Context, id int64, req lifecycleRequest) (*service.TransitionResult, error) {
		return h.svc.Advance(ctx, service.AdvanceRequest{
			OrderID:         id,
			Instant:         req.Instant,
			Group:           req.Group,
			GroupSelections: req.GroupSelections,
		})
	})
}

// UpdateActuals corrects an order's actual start/end.
func (h *OrderHandler) UpdateActuals(w http.ResponseWriter, r *http.Request) {
	id, ok := parseOrderID(w, r)
	if !ok {
		return
	}

	req, err := decodeJSON[actualsRequest](r)
	if err != nil {
		writeBindError(w, h.log, err)
		return
	}

	if _, ok := h.loadAuthorizedOrder(w, r, id); !ok {
		return
	}

	result, err := h.svc.UpdateActuals(r.Context(), service.UpdateActualsRequest{
		OrderID:       id,
		ActualStart:   req.ActualStart,
		ActualEnd:     req.ActualEnd,
		ExpectedStart: req.ExpectedStart,
		ExpectedEnd:   req.ExpectedEnd,
	})
	if err != nil {
		h.writeServiceError(w, id, err)
		return
	}
	h.respondTransition(w, result)
}

// --- Helpers ---

type transitionFunc func(ctx context.Context, id int64, req lifecycleRequest) (*service.TransitionResult, error)

func (h *OrderHandler) transition(w http.ResponseWriter, r *http.Request, run transitionFunc) {
	id, ok := parseOrderID(w, r)
	if !ok {
		return
	}

	req, err := decodeJSON[lifecycleRequest](r)
	if err != nil {
		writeBindError(w, h.log, err)
		return
	}

	if _, ok := h.loadAuthorizedOrder(w, r, id); !ok {
		return
	}

	result, err := run(r.Context(), id, req)
	if err != nil {
		h.writeServiceError(w, id, err)
		return
	}
	h.respondTransition(w, result)
}

func (h *OrderHandler) respondTransition(w http.ResponseWriter, result *service.TransitionResult) {
	resp := transitionResponse{
		RowsAffected: result.RowsAffected,
		Message:      result.Message,
		Order:        toOrderResponse(result.Order),
		Skipped:      result.Skipped,
	}
	if result.Sibling != nil {
		sibling := toOrderResponse(*result.Sibling)
		resp.Sibling = &sibling
	}
	for _, s := range result.Segments {
		resp.Segments = append(resp.Segments, toSegmentResponse(s))
	}

	if result.Event != "" {
		ev, err := ws.NewEvent(result.Event, result.Order.Plant, result.Order.Line, resp)
		if err != nil {
			h.log.Error().Err(err).Str("event", result.Event).Msg("encode order event")
		} else {
			h.hub.BroadcastToLine(result.Order.Line, ev)
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// loadAuthorizedOrder fetches the order and checks that the caller may act
// on its plant. It writes the error response itself.
func (h *OrderHandler) loadAuthorizedOrder(w http.ResponseWriter, r *http.Request, id int64) (database.ProductionOrder, bool) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return database.ProductionOrder{}, false
	}

	order, err := h.store.GetOrder(r.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "order not found"})
			return database.ProductionOrder{}, false
		}
		h.log.Error().Err(err).Int64("order_id", id).Msg("get order")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return database.ProductionOrder{}, false
	}

	if !canAccessPlant(claims, order.Plant) {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "access denied for this plant"})
		return database.ProductionOrder{}, false
	}
	return order, true
}

func (h *OrderHandler) writeServiceError(w http.ResponseWriter, id int64, err error) {
	switch {
	case errors.Is(err, service.ErrOrderNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "order not found"})
	case isValidationError(err):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case isConflictError(err):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	case errors.Is(err, context.DeadlineExceeded):
		h.log.Warn().Err(err).Int64("order_id", id).Msg("order transition timed out")
		writeJSON(w, http.StatusGatewayTimeout, map[string]string{"error": "request timed out"})
	default:
		h.log.Error().Err(err).Int64("order_id", id).Msg("order transition failed")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
	}
}

func isValidationError(err error) bool {
	return errors.Is(err, service.ErrMissingInstant) ||
		errors.Is(err, service.ErrMissingActuals) ||
		errors.Is(err, service.ErrEmptySelection) ||
		errors.Is(err, service.ErrInvalidRange) ||
		errors.Is(err, service.ErrUnknownGroup)
}

func isConflictError(err error) bool {
	return errors.Is(err, service.ErrInvalidTransition) ||
		errors.Is(err, service.ErrStaleWindow) ||
		errors.Is(err, service.ErrSiblingIDExhausted)
}

func parseOrderID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order id"})
		return 0, false
	}
	return id, true
}

func toOrderResponse(o database.ProductionOrder) orderResponse {
	resp := orderResponse{
		ID:              o.ID,
		ProductID:       o.ProductID,
		Qty:             o.Qty,
		DateStart:       o.DateStart,
		DateEnd:         o.DateEnd,
		Status:          o.Status,
		ActualStart:     timePtr(o.ActualStart),
		ActualEnd:       timePtr(o.ActualEnd),
		Plant:           o.Plant,
		Line:            o.Line,
		CompletionCount: o.CompletionCount,
		GroupID:         int4Ptr(o.GroupID),
		UpdatedAt:       o.UpdatedAt,
	}
	if o.ParentID.Valid {
		parent := o.ParentID.Int64
		resp.ParentID = &parent
	}
	if o.ActualStart.Valid && o.ActualEnd.Valid && o.Status != enum.OrderStatusActive {
		hours := durationHours(o.ActualStart.Time, o.ActualEnd.Time)
		resp.RunHours = &hours
	}
	return resp
}

func toSegmentResponse(s database.OrderSegment) segmentResponse {
	return segmentResponse{
		ID:            s.ID,
		OrderID:       s.OrderID,
		Shift:         s.Shift,
		ActualStart:   s.ActualStart,
		ActualEnd:     s.ActualEnd,
		DurationHours: durationHours(s.ActualStart, s.ActualEnd),
		GroupID:       int4Ptr(s.GroupID),
	}
}

// durationHours renders end-start in hours with two decimals.
func durationHours(start, end time.Time) string {
	return durationSeconds(start, end).Div(decimal.NewFromInt(3600)).StringFixed(2)
}

// durationSeconds truncates to whole seconds so sums stay exact.
func durationSeconds(start, end time.Time) decimal.Decimal {
	return decimal.NewFromInt(int64(end.Sub(start) / time.Second))
}

func timePtr(t pgtype.Timestamptz) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

func int4Ptr(v pgtype.Int4) *int32 {
	if !v.Valid {
		return nil
	}
	n := v.Int32
	return &n
}
