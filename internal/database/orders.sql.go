package database

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const productionOrderColumns = `id, parent_id, product_id, qty, date_start, date_end, status, actual_start, actual_end,
    plant, line, completion_count, group_id, reopen_seq, created_at, updated_at`

func scanProductionOrder(row pgx.Row) (ProductionOrder, error) {
	var i ProductionOrder
	err := row.Scan(
		&i.ID,
		&i.ParentID,
		&i.ProductID,
		&i.Qty,
		&i.DateStart,
		&i.DateEnd,
		&i.Status,
		&i.ActualStart,
		&i.ActualEnd,
		&i.Plant,
		&i.Line,
		&i.CompletionCount,
		&i.GroupID,
		&i.ReopenSeq,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const getOrder = `-- name: GetOrder :one
SELECT ` + productionOrderColumns + `
FROM production_orders
WHERE id = $1
`

func (q *Queries) GetOrder(ctx context.Context, id int64) (ProductionOrder, error) {
	return scanProductionOrder(q.db.QueryRow(ctx, getOrder, id))
}

const getOrderForUpdate = `-- name: GetOrderForUpdate :one
SELECT ` + productionOrderColumns + `
FROM production_orders
WHERE id = $1
FOR UPDATE
`

// GetOrderForUpdate locks the order row until the surrounding transaction ends.
func (q *Queries) GetOrderForUpdate(ctx context.Context, id int64) (ProductionOrder, error) {
	return scanProductionOrder(q.db.QueryRow(ctx, getOrderForUpdate, id))
}

const listOrdersInWindow = `-- name: ListOrdersInWindow :many
SELECT ` + productionOrderColumns + `
FROM production_orders
WHERE line = $1
  AND actual_start < $3
  AND (actual_end > $2 OR actual_end IS NULL)
ORDER BY actual_start, id
`

type ListOrdersInWindowParams struct {
	Line        string    `json:"line"`
	WindowStart time.Time `json:"window_start"`
	WindowEnd   time.Time `json:"window_end"`
}

// ListOrdersInWindow returns orders on a line whose actual run overlaps the window.
func (q *Queries) ListOrdersInWindow(ctx context.Context, arg ListOrdersInWindowParams) ([]ProductionOrder, error) {
	rows, err := q.db.Query(ctx, listOrdersInWindow, arg.Line, arg.WindowStart, arg.WindowEnd)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []ProductionOrder{}
	for rows.Next() {
		i, err := scanProductionOrder(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const listOrderStartsInRange = `-- name: ListOrderStartsInRange :many
SELECT actual_start
FROM production_orders
WHERE line = $1
  AND actual_start >= $2
  AND actual_start < $3
ORDER BY actual_start
`

type ListOrderStartsInRangeParams struct {
	Line       string    `json:"line"`
	RangeStart time.Time `json:"range_start"`
	RangeEnd   time.Time `json:"range_end"`
}

func (q *Queries) ListOrderStartsInRange(ctx context.Context, arg ListOrderStartsInRangeParams) ([]time.Time, error) {
	rows, err := q.db.Query(ctx, listOrderStartsInRange, arg.Line, arg.RangeStart, arg.RangeEnd)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []time.Time{}
	for rows.Next() {
		var actualStart time.Time
		if err := rows.Scan(&actualStart); err != nil {
			return nil, err
		}
		items = append(items, actualStart)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const updateOrderStatus = `-- name: UpdateOrderStatus :one
UPDATE production_orders
SET status           = $2,
    actual_start     = COALESCE($4, actual_start),
    actual_end       = COALESCE($5, actual_end),
    group_id         = COALESCE($6, group_id),
    completion_count = completion_count + $7,
    updated_at       = now()
WHERE id = $1
  AND status = $3
RETURNING ` + productionOrderColumns + `
`

// UpdateOrderStatusParams moves an order from CurrentStatus to Status.
// Null ActualStart, ActualEnd and GroupID leave the stored values untouched.
type UpdateOrderStatusParams struct {
	ID              int64              `json:"id"`
	Status          string             `json:"status"`
	CurrentStatus   string             `json:"current_status"`
	ActualStart     pgtype.Timestamptz `json:"actual_start"`
	ActualEnd       pgtype.Timestamptz `json:"actual_end"`
	GroupID         pgtype.Int4        `json:"group_id"`
	CompletionDelta int32              `json:"completion_delta"`
}

// UpdateOrderStatus returns pgx.ErrNoRows when the order is no longer in CurrentStatus.
func (q *Queries) UpdateOrderStatus(ctx context.Context, arg UpdateOrderStatusParams) (ProductionOrder, error) {
	row := q.db.QueryRow(ctx, updateOrderStatus,
		arg.ID,
		arg.Status,
		arg.CurrentStatus,
		arg.ActualStart,
		arg.ActualEnd,
		arg.GroupID,
		arg.CompletionDelta,
	)
	return scanProductionOrder(row)
}

const updateOrderActuals = `-- name: UpdateOrderActuals :one
UPDATE production_orders
SET actual_start = COALESCE($2, actual_start),
    actual_end   = COALESCE($3, actual_end),
    updated_at   = now()
WHERE id = $1
  AND actual_start IS NOT DISTINCT FROM $4
  AND actual_end IS NOT DISTINCT FROM $5
RETURNING ` + productionOrderColumns + `
`

type UpdateOrderActualsParams struct {
	ID            int64              `json:"id"`
	ActualStart   pgtype.Timestamptz `json:"actual_start"`
	ActualEnd     pgtype.Timestamptz `json:"actual_end"`
	ExpectedStart pgtype.Timestamptz `json:"expected_start"`
	ExpectedEnd   pgtype.Timestamptz `json:"expected_end"`
}

// UpdateOrderActuals returns pgx.ErrNoRows when the stored window no longer
// matches ExpectedStart/ExpectedEnd.
func (q *Queries) UpdateOrderActuals(ctx context.Context, arg UpdateOrderActualsParams) (ProductionOrder, error) {
	row := q.db.QueryRow(ctx, updateOrderActuals,
		arg.ID,
		arg.ActualStart,
		arg.ActualEnd,
		arg.ExpectedStart,
		arg.ExpectedEnd,
	)
	return scanProductionOrder(row)
}

const reserveSiblingSuffix = `-- name: ReserveSiblingSuffix :one
UPDATE production_orders
SET reopen_seq = reopen_seq + 1
WHERE id = $1
RETURNING reopen_seq
`

// ReserveSiblingSuffix atomically claims the next reopen suffix of an order.
func (q *Queries) ReserveSiblingSuffix(ctx context.Context, id int64) (int32, error) {
	row := q.db.QueryRow(ctx, reserveSiblingSuffix, id)
	var reopenSeq int32
	err := row.Scan(&reopenSeq)
	return reopenSeq, err
}

const createSiblingOrder = `-- name: CreateSiblingOrder :one
INSERT INTO production_orders (
    id, parent_id, product_id, qty, date_start, date_end, status,
    actual_start, actual_end, plant, line, completion_count, group_id
) VALUES (
    $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13
)
ON CONFLICT (id) DO NOTHING
RETURNING ` + productionOrderColumns + `
`

type CreateSiblingOrderParams struct {
	ID              int64              `json:"id"`
	ParentID        int64              `json:"parent_id"`
	ProductID       int32              `json:"product_id"`
	Qty             int32              `json:"qty"`
	DateStart       time.Time          `json:"date_start"`
	DateEnd         time.Time          `json:"date_end"`
	Status          string             `json:"status"`
	ActualStart     pgtype.Timestamptz `json:"actual_start"`
	ActualEnd       pgtype.Timestamptz `json:"actual_end"`
	Plant           string             `json:"plant"`
	Line            string             `json:"line"`
	CompletionCount int32              `json:"completion_count"`
	GroupID         pgtype.Int4        `json:"group_id"`
}

// CreateSiblingOrder returns pgx.ErrNoRows when ID is already taken.
func (q *Queries) CreateSiblingOrder(ctx context.Context, arg CreateSiblingOrderParams) (ProductionOrder, error) {
	row := q.db.QueryRow(ctx, createSiblingOrder,
		arg.ID,
		arg.ParentID,
		arg.ProductID,
		arg.Qty,
		arg.DateStart,
		arg.DateEnd,
		arg.Status,
		arg.ActualStart,
		arg.ActualEnd,
		arg.Plant,
		arg.Line,
		arg.CompletionCount,
		arg.GroupID,
	)
	return scanProductionOrder(row)
}
