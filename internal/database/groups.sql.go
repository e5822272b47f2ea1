package database

import (
	"context"
)

const listGroupsByPlant = `-- name: ListGroupsByPlant :many
SELECT id, plant, name
FROM groups
WHERE plant = $1
ORDER BY id
`

func (q *Queries) ListGroupsByPlant(ctx context.Context, plant string) ([]Group, error) {
	rows, err := q.db.Query(ctx, listGroupsByPlant, plant)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []Group{}
	for rows.Next() {
		var i Group
		if err := rows.Scan(&i.ID, &i.Plant, &i.Name); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const upsertGroup = `-- name: UpsertGroup :one
INSERT INTO groups (plant, name)
VALUES ($1, $2)
ON CONFLICT (plant, name) DO UPDATE SET name = EXCLUDED.name
RETURNING id, plant, name
`

type UpsertGroupParams struct {
	Plant string `json:"plant"`
	Name  string `json:"name"`
}

func (q *Queries) UpsertGroup(ctx context.Context, arg UpsertGroupParams) (Group, error) {
	row := q.db.QueryRow(ctx, upsertGroup, arg.Plant, arg.Name)
	var i Group
	err := row.Scan(&i.ID, &i.Plant, &i.Name)
	return i, err
}
