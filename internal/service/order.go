package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/prodtrack/api/internal/database"
	"github.com/prodtrack/api/internal/enum"
	"github.com/prodtrack/api/internal/shift"
	"github.com/rs/zerolog"
)

// Errors returned by the order service.
var (
	ErrOrderNotFound      = errors.New("order not found")
	ErrInvalidTransition  = errors.New("order is not in the required status")
	ErrUnknownGroup       = errors.New("unknown group")
	ErrMissingInstant     = errors.New("instant is required")
	ErrMissingActuals     = errors.New("actual_start or actual_end is required")
	ErrStaleWindow        = errors.New("order actual window was changed by another request")
	ErrSiblingIDExhausted = errors.New("no free sibling order id")

	// Re-exported so handlers only need to know this package.
	ErrEmptySelection = shift.ErrEmptySelection
	ErrInvalidRange   = shift.ErrInvalidRange
)

// TxBeginner starts a new database transaction.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// OrderStore defines the DB methods needed to move orders through their lifecycle.
// Satisfied by *database.Queries (and its WithTx variant).
type OrderStore interface {
	GetOrderForUpdate(ctx context.Context, id int64) (database.ProductionOrder, error)
	ListOrderStartsInRange(ctx context.Context, arg database.ListOrderStartsInRangeParams) ([]time.Time, error)
	ListGroupsByPlant(ctx context.Context, plant string) ([]database.Group, error)
	UpdateOrderStatus(ctx context.Context, arg database.UpdateOrderStatusParams) (database.ProductionOrder, error)
	UpdateOrderActuals(ctx context.Context, arg database.UpdateOrderActualsParams) (database.ProductionOrder, error)
	CreateOrderSegment(ctx context.Context, arg database.CreateOrderSegmentParams) (database.OrderSegment, error)
	LatestSegmentEnd(ctx context.Context, orderID int64) (pgtype.Timestamptz, error)
	ReserveSiblingSuffix(ctx context.Context, id int64) (int32, error)
	CreateSiblingOrder(ctx context.Context, arg database.CreateSiblingOrderParams) (database.ProductionOrder, error)
}

// NewOrderStore creates an OrderStore from a DBTX (pool or tx).
// This allows the service to create store instances from transactions.
type NewOrderStore func(db database.DBTX) OrderStore

// StartOrderRequest moves a New order to Active.
type StartOrderRequest struct {
	OrderID int64
	Instant time.Time
	Group   string // optional operator group label
}

// StopOrderRequest stops an Active order. With GroupSelections the run so far
// is split into per-shift segments instead of completing the order.
type StopOrderRequest struct {
	OrderID         int64
	Instant         time.Time
	GroupSelections []string
}

// ReopenOrderRequest reactivates a Completed order.
type ReopenOrderRequest struct {
	OrderID int64
	Instant time.Time
	Group   string
}

// AdvanceRequest carries the union of the lifecycle inputs; the order's
// current status picks which transition runs.
type AdvanceRequest struct {
	OrderID         int64
	Instant         time.Time
	Group           string
	GroupSelections []string
}

// UpdateActualsRequest corrects an order's actual window. Nil fields of the
// new window are left unchanged. The update only applies while the stored
// window still equals ExpectedStart/ExpectedEnd.
type UpdateActualsRequest struct {
	OrderID       int64
	ActualStart   *time.Time
	ActualEnd     *time.Time
	ExpectedStart *time.Time
	ExpectedEnd   *time.Time
}

// TransitionResult describes what a lifecycle operation wrote.
type TransitionResult struct {
	Order        database.ProductionOrder
	Sibling      *database.ProductionOrder
	Segments     []database.OrderSegment
	Skipped      []shift.Skip
	RowsAffected int64
	Message      string
	Event        string
}

// OrderService handles production order state transitions.
type OrderService struct {
	pool     TxBeginner
	newStore NewOrderStore
	cal      shift.Calendar
	log      zerolog.Logger
}

// NewOrderService creates a new OrderService.
func NewOrderService(pool TxBeginner, newStore NewOrderStore, cal shift.Calendar, log zerolog.Logger) *OrderService {
	return &OrderService{pool: pool, newStore: newStore, cal: cal, log: log}
}

// Calendar returns the shift calendar the service partitions runs with.
func (s *OrderService) Calendar() shift.Calendar {
	return s.cal
}

// Start moves a New order to Active.
func (s *OrderService) Start(ctx context.Context, req StartOrderRequest) (*TransitionResult, error) {
	if req.Instant.IsZero() {
		return nil, ErrMissingInstant
	}
	return s.withLockedOrder(ctx, req.OrderID, func(store OrderStore, order database.ProductionOrder) (*TransitionResult, error) {
		if order.Status != enum.OrderStatusNew {
			return nil, fmt.Errorf("start %s order: %w", order.Status, ErrInvalidTransition)
		}
		return s.start(ctx, store, order, req.Instant, req.Group)
	})
}

// Stop stops an Active order, either completing it or splitting its run.
func (s *OrderService) Stop(ctx context.Context, req StopOrderRequest) (*TransitionResult, error) {
	if req.Instant.IsZero() {
		return nil, ErrMissingInstant
	}
	return s.withLockedOrder(ctx, req.OrderID, func(store OrderStore, order database.ProductionOrder) (*TransitionResult, error) {
		if order.Status != enum.OrderStatusActive {
			return nil, fmt.Errorf("stop %s order: %w", order.Status, ErrInvalidTransition)
		}
		return s.stop(ctx, store, order, req.Instant, req.GroupSelections)
	})
}

// Reopen reactivates a Completed order.
func (s *OrderService) Reopen(ctx context.Context, req ReopenOrderRequest) (*TransitionResult, error) {
	if req.Instant.IsZero() {
		return nil, ErrMissingInstant
	}
	return s.withLockedOrder(ctx, req.OrderID, func(store OrderStore, order database.ProductionOrder) (*TransitionResult, error) {
		if _, ok := ParseCompleted(order.Status); !ok {
			return nil, fmt.Errorf("reopen %s order: %w", order.Status, ErrInvalidTransition)
		}
		return s.reopen(ctx, store, order, req.Instant, req.Group)
	})
}

// Advance runs whichever transition the order's current status allows:
// New starts, Active stops (or splits), Completed reopens.
func (s *OrderService) Advance(ctx context.Context, req AdvanceRequest) (*TransitionResult, error) {
	if req.Instant.IsZero() {
		return nil, ErrMissingInstant
	}
	return s.withLockedOrder(ctx, req.OrderID, func(store OrderStore, order database.ProductionOrder) (*TransitionResult, error) {
		switch {
		case order.Status == enum.OrderStatusNew:
			return s.start(ctx, store, order, req.Instant, req.Group)
		case order.Status == enum.OrderStatusActive:
			return s.stop(ctx, store, order, req.Instant, req.GroupSelections)
		default:
			if _, ok := ParseCompleted(order.Status); ok {
				return s.reopen(ctx, store, order, req.Instant, req.Group)
			}
		}
		return nil, fmt.Errorf("advance %s order: %w", order.Status, ErrInvalidTransition)
	})
}

// UpdateActuals applies a guarded correction to an order's actual window.
func (s *OrderService) UpdateActuals(ctx context.Context, req UpdateActualsRequest) (*TransitionResult, error) {
	if req.ActualStart == nil && req.ActualEnd == nil {
		return nil, ErrMissingActuals
	}
	return s.withLockedOrder(ctx, req.OrderID, func(store OrderStore, order database.ProductionOrder) (*TransitionResult, error) {
		start, end := order.ActualStart, order.ActualEnd
		if req.ActualStart != nil {
			start = timestamptz(*req.ActualStart)
		}
		if req.ActualEnd != nil {
			end = timestamptz(*req.ActualEnd)
		}
		if start.Valid && end.Valid && !start.Time.Before(end.Time) {
			return nil, ErrInvalidRange
		}

		updated, err := store.UpdateOrderActuals(ctx, database.UpdateOrderActualsParams{
			ID:            order.ID,
			ActualStart:   optionalTimestamptz(req.ActualStart),
			ActualEnd:     optionalTimestamptz(req.ActualEnd),
			ExpectedStart: optionalTimestamptz(req.ExpectedStart),
			ExpectedEnd:   optionalTimestamptz(req.ExpectedEnd),
		})
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, ErrStaleWindow
			}
			return nil, fmt.Errorf("update actuals: %w", err)
		}

		s.log.Info().Int64("order_id", order.ID).Msg("order actual window corrected")
		return &TransitionResult{
			Order:        updated,
			RowsAffected: 1,
			Message:      "Order actual window updated.",
			Event:        enum.EventOrderCorrected,
		}, nil
	})
}

// withLockedOrder runs fn in a transaction holding the order's row lock and
// commits when fn succeeds.
func (s *OrderService) withLockedOrder(ctx context.Context, id int64, fn func(OrderStore, database.ProductionOrder) (*TransitionResult, error)) (*TransitionResult, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	order, err := store.GetOrderForUpdate(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}

	result, err := fn(store, order)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return result, nil
}

func (s *OrderService) start(ctx context.Context, store OrderStore, order database.ProductionOrder, at time.Time, group string) (*TransitionResult, error) {
	groupID, err := s.resolveGroup(ctx, store, order.Plant, group)
	if err != nil {
		return nil, err
	}

	updated, err := store.UpdateOrderStatus(ctx, database.UpdateOrderStatusParams{
		ID:            order.ID,
		Status:        enum.OrderStatusActive,
		CurrentStatus: order.Status,
		ActualStart:   timestamptz(at),
		GroupID:       groupID,
	})
	if err != nil {
		return nil, statusUpdateError("start order", err)
	}

	s.log.Info().Int64("order_id", order.ID).Str("line", order.Line).Time("actual_start", at).Msg("order started")
	return &TransitionResult{
		Order:        updated,
		RowsAffected: 1,
		Message:      "Order status changed to Active.",
		Event:        enum.EventOrderStarted,
	}, nil
}

func (s *OrderService) stop(ctx context.Context, store OrderStore, order database.ProductionOrder, at time.Time, selections []string) (*TransitionResult, error) {
	if !order.ActualStart.Valid {
		return nil, fmt.Errorf("active order %d has no actual_start: %w", order.ID, ErrInvalidTransition)
	}
	if !order.ActualStart.Time.Before(at) {
		return nil, ErrInvalidRange
	}

	if len(selections) > 0 {
		return s.split(ctx, store, order, at, selections)
	}

	n := completions(order) + 1
	status := CompletedLabel(n)
	updated, err := store.UpdateOrderStatus(ctx, database.UpdateOrderStatusParams{
		ID:              order.ID,
		Status:          status,
		CurrentStatus:   order.Status,
		ActualEnd:       timestamptz(at),
		CompletionDelta: int32(n) - order.CompletionCount,
	})
	if err != nil {
		return nil, statusUpdateError("complete order", err)
	}

	s.log.Info().Int64("order_id", order.ID).Str("line", order.Line).Str("status", status).Msg("order completed")
	return &TransitionResult{
		Order:        updated,
		RowsAffected: 1,
		Message:      fmt.Sprintf("Order status changed to %s.", status),
		Event:        enum.EventOrderStopped,
	}, nil
}

// split records one segment row per shift/group slice of the run. The order's
// own status is left as it is.
func (s *OrderService) split(ctx context.Context, store OrderStore, order database.ProductionOrder, at time.Time, selections []string) (*TransitionResult, error) {
	groups, err := s.groupTable(ctx, store, order.Plant)
	if err != nil {
		return nil, err
	}

	// A run that was already split continues from where its last segment ended.
	from := order.ActualStart.Time
	last, err := store.LatestSegmentEnd(ctx, order.ID)
	if err != nil {
		return nil, fmt.Errorf("latest segment end: %w", err)
	}
	if last.Valid && last.Time.After(from) {
		from = last.Time
	}
	if !from.Before(at) {
		return nil, fmt.Errorf("run already split up to %s: %w", from.Format(time.RFC3339), ErrInvalidRange)
	}

	parts, err := s.cal.Split(from, at, selections, groups)
	if err != nil {
		return nil, err
	}

	segments := make([]database.OrderSegment, 0, len(parts.Segments))
	for i, seg := range parts.Segments {
		row, err := store.CreateOrderSegment(ctx, database.CreateOrderSegmentParams{
			ID:          uuid.New(),
			OrderID:     order.ID,
			Shift:       string(seg.Shift),
			ActualStart: seg.Start,
			ActualEnd:   seg.End,
			GroupID:     pgtype.Int4{Int32: seg.GroupID, Valid: true},
		})
		if err != nil {
			if isForeignKeyViolation(err) {
				return nil, fmt.Errorf("segment[%d]: group %d: %w", i, seg.GroupID, ErrUnknownGroup)
			}
			return nil, fmt.Errorf("segment[%d]: create: %w", i, err)
		}
		segments = append(segments, row)
	}

	for _, skip := range parts.Skipped {
		s.log.Warn().
			Int64("order_id", order.ID).
			Str("group", skip.GroupLabel).
			Str("shift", string(skip.Shift)).
			Time("start", skip.Start).
			Time("end", skip.End).
			Msg("unknown group label, slot left unattributed")
	}
	s.log.Info().Int64("order_id", order.ID).Int("segments", len(segments)).Int("skipped", len(parts.Skipped)).Msg("order split")

	return &TransitionResult{
		Order:        order,
		Segments:     segments,
		Skipped:      parts.Skipped,
		RowsAffected: int64(len(segments)),
		Message:      "Order successfully split.",
		Event:        enum.EventOrderSplit,
	}, nil
}

func (s *OrderService) reopen(ctx context.Context, store OrderStore, order database.ProductionOrder, at time.Time, group string) (*TransitionResult, error) {
	groupID, err := s.resolveGroup(ctx, store, order.Plant, group)
	if err != nil {
		return nil, err
	}
	if !groupID.Valid {
		groupID = order.GroupID
	}

	end, err := s.cal.ResolveEnd(ctx, at, func(ctx context.Context, start, end time.Time) ([]time.Time, error) {
		return store.ListOrderStartsInRange(ctx, database.ListOrderStartsInRangeParams{
			Line:       order.Line,
			RangeStart: start,
			RangeEnd:   end,
		})
	})
	if err != nil {
		return nil, fmt.Errorf("resolve shift end: %w", err)
	}

	if order.Status == enum.OrderStatusCompleted {
		return s.reopenAsSibling(ctx, store, order, at, end, groupID)
	}

	// A counter lagging behind the label is synced so the next Stop continues the sequence.
	done := completions(order)
	updated, err := store.UpdateOrderStatus(ctx, database.UpdateOrderStatusParams{
		ID:              order.ID,
		Status:          enum.OrderStatusActive,
		CurrentStatus:   order.Status,
		ActualStart:     timestamptz(at),
		ActualEnd:       timestamptz(end),
		GroupID:         groupID,
		CompletionDelta: int32(done) - order.CompletionCount,
	})
	if err != nil {
		return nil, statusUpdateError("reopen order", err)
	}

	next := CompletedLabel(done + 1)
	s.log.Info().Int64("order_id", order.ID).Time("actual_end", end).Str("next_status", next).Msg("order reopened in place")
	return &TransitionResult{
		Order:        updated,
		RowsAffected: 1,
		Message:      fmt.Sprintf("Order reactivated; next completion is %s.", next),
		Event:        enum.EventOrderReopened,
	}, nil
}

// reopenAsSibling leaves the Completed order intact and inserts an Active
// copy under a derived id.
func (s *OrderService) reopenAsSibling(ctx context.Context, store OrderStore, order database.ProductionOrder, at, end time.Time, groupID pgtype.Int4) (*TransitionResult, error) {
	for attempt := 0; attempt < maxSiblingIDAttempts; attempt++ {
		suffix, err := store.ReserveSiblingSuffix(ctx, order.ID)
		if err != nil {
			return nil, fmt.Errorf("reserve sibling suffix: %w", err)
		}
		id, err := DeriveSiblingID(order.ID, suffix)
		if err != nil {
			return nil, err
		}

		sibling, err := store.CreateSiblingOrder(ctx, database.CreateSiblingOrderParams{
			ID:              id,
			ParentID:        order.ID,
			ProductID:       order.ProductID,
			Qty:             order.Qty,
			DateStart:       order.DateStart,
			DateEnd:         order.DateEnd,
			Status:          enum.OrderStatusActive,
			ActualStart:     timestamptz(at),
			ActualEnd:       timestamptz(end),
			Plant:           order.Plant,
			Line:            order.Line,
			CompletionCount: int32(completions(order)),
			GroupID:         groupID,
		})
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				s.log.Debug().Int64("order_id", order.ID).Int64("sibling_id", id).Msg("sibling id taken, reserving next suffix")
				continue
			}
			return nil, fmt.Errorf("create sibling order: %w", err)
		}

		s.log.Info().Int64("order_id", order.ID).Int64("sibling_id", sibling.ID).Time("actual_end", end).Msg("order reopened as sibling")
		return &TransitionResult{
			Order:        order,
			Sibling:      &sibling,
			RowsAffected: 1,
			Message:      "Original order intact, new order created with trailing number.",
			Event:        enum.EventOrderReopened,
		}, nil
	}
	return nil, ErrSiblingIDExhausted
}

// resolveGroup maps an optional group label to its id within plant.
// An empty label yields a null id.
func (s *OrderService) resolveGroup(ctx context.Context, store OrderStore, plant, label string) (pgtype.Int4, error) {
	if label == "" {
		return pgtype.Int4{}, nil
	}
	groups, err := s.groupTable(ctx, store, plant)
	if err != nil {
		return pgtype.Int4{}, err
	}
	id, ok := groups.ResolveGroup(label)
	if !ok {
		return pgtype.Int4{}, fmt.Errorf("%w: %q", ErrUnknownGroup, label)
	}
	return pgtype.Int4{Int32: id, Valid: true}, nil
}

func (s *OrderService) groupTable(ctx context.Context, store OrderStore, plant string) (shift.GroupTable, error) {
	rows, err := store.ListGroupsByPlant(ctx, plant)
	if err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}
	byName := make(map[string]int32, len(rows))
	for _, g := range rows {
		byName[g.Name] = g.ID
	}
	return shift.NewGroupTable(byName), nil
}

// statusUpdateError maps the guarded update's no-rows result to
// ErrInvalidTransition, and a group removed since it was resolved to
// ErrUnknownGroup.
func statusUpdateError(op string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, ErrInvalidTransition)
	}
	if isForeignKeyViolation(err) {
		return fmt.Errorf("%s: %w", op, ErrUnknownGroup)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}

func timestamptz(t time.Time) pgtype.Timestamptz {
	return pgtype.Timestamptz{Time: t, Valid: true}
}

func optionalTimestamptz(t *time.Time) pgtype.Timestamptz {
	if t == nil {
		return pgtype.Timestamptz{}
	}
	return timestamptz(*t)
}
