package database

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const createOrderSegment = `-- name: CreateOrderSegment :one
INSERT INTO order_segments (id, order_id, shift, actual_start, actual_end, group_id)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id, order_id, shift, actual_start, actual_end, group_id, created_at
`

type CreateOrderSegmentParams struct {
	ID          uuid.UUID   `json:"id"`
	OrderID     int64       `json:"order_id"`
	Shift       string      `json:"shift"`
	ActualStart time.Time   `json:"actual_start"`
	ActualEnd   time.Time   `json:"actual_end"`
	GroupID     pgtype.Int4 `json:"group_id"`
}

func (q *Queries) CreateOrderSegment(ctx context.Context, arg CreateOrderSegmentParams) (OrderSegment, error) {
	row := q.db.QueryRow(ctx, createOrderSegment,
		arg.ID,
		arg.OrderID,
		arg.Shift,
		arg.ActualStart,
		arg.ActualEnd,
		arg.GroupID,
	)
	var i OrderSegment
	err := row.Scan(
		&i.ID,
		&i.OrderID,
		&i.Shift,
		&i.ActualStart,
		&i.ActualEnd,
		&i.GroupID,
		&i.CreatedAt,
	)
	return i, err
}

const listSegmentsByOrder = `-- name: ListSegmentsByOrder :many
SELECT id, order_id, shift, actual_start, actual_end, group_id, created_at
FROM order_segments
WHERE order_id = $1
ORDER BY actual_start, created_at
`

func (q *Queries) ListSegmentsByOrder(ctx context.Context, orderID int64) ([]OrderSegment, error) {
	rows, err := q.db.Query(ctx, listSegmentsByOrder, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []OrderSegment{}
	for rows.Next() {
		var i OrderSegment
		if err := rows.Scan(
			&i.ID,
			&i.OrderID,
			&i.Shift,
			&i.ActualStart,
			&i.ActualEnd,
			&i.GroupID,
			&i.CreatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const latestSegmentEnd = `-- name: LatestSegmentEnd :one
SELECT max(actual_end)::timestamptz AS latest_end
FROM order_segments
WHERE order_id = $1
`

func (q *Queries) LatestSegmentEnd(ctx context.Context, orderID int64) (pgtype.Timestamptz, error) {
	row := q.db.QueryRow(ctx, latestSegmentEnd, orderID)
	var latest_end pgtype.Timestamptz
	err := row.Scan(&latest_end)
	return latest_end, err
}

const listPlantSegmentsInRange = `-- name: ListPlantSegmentsInRange :many
SELECT s.shift, s.actual_start, s.actual_end, o.line, g.name AS group_name
FROM order_segments s
JOIN production_orders o ON o.id = s.order_id
LEFT JOIN groups g ON g.id = s.group_id
WHERE o.plant = $1
  AND s.actual_start >= $2
  AND s.actual_start < $3
ORDER BY s.actual_start, o.line
`

type ListPlantSegmentsInRangeParams struct {
	Plant string    `json:"plant"`
	From  time.Time `json:"from"`
	To    time.Time `json:"to"`
}

type ListPlantSegmentsInRangeRow struct {
	Shift       string      `json:"shift"`
	ActualStart time.Time   `json:"actual_start"`
	ActualEnd   time.Time   `json:"actual_end"`
	Line        string      `json:"line"`
	GroupName   pgtype.Text `json:"group_name"`
}

func (q *Queries) ListPlantSegmentsInRange(ctx context.Context, arg ListPlantSegmentsInRangeParams) ([]ListPlantSegmentsInRangeRow, error) {
	rows, err := q.db.Query(ctx, listPlantSegmentsInRange, arg.Plant, arg.From, arg.To)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []ListPlantSegmentsInRangeRow{}
	for rows.Next() {
		var i ListPlantSegmentsInRangeRow
		if err := rows.Scan(
			&i.Shift,
			&i.ActualStart,
			&i.ActualEnd,
			&i.Line,
			&i.GroupName,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
