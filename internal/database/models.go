package database

import (
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

type Group struct {
	ID    int32  `json:"id"`
	Plant string `json:"plant"`
	Name  string `json:"name"`
}

type OrderSegment struct {
	ID          uuid.UUID   `json:"id"`
	OrderID     int64       `json:"order_id"`
	Shift       string      `json:"shift"`
	ActualStart time.Time   `json:"actual_start"`
	ActualEnd   time.Time   `json:"actual_end"`
	GroupID     pgtype.Int4 `json:"group_id"`
	CreatedAt   time.Time   `json:"created_at"`
}

type Product struct {
	ID       int32  `json:"id"`
	Sku      string `json:"sku"`
	Category string `json:"category"`
}

type ProductionOrder struct {
	ID              int64              `json:"id"`
	ParentID        pgtype.Int8        `json:"parent_id"`
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
	ReopenSeq       int32              `json:"reopen_seq"`
	CreatedAt       time.Time          `json:"created_at"`
	UpdatedAt       time.Time          `json:"updated_at"`
}

type User struct {
	ID           uuid.UUID   `json:"id"`
	Email        string      `json:"email"`
	PasswordHash string      `json:"password_hash"`
	FullName     string      `json:"full_name"`
	Role         string      `json:"role"`
	Plant        pgtype.Text `json:"plant"`
	IsActive     bool        `json:"is_active"`
	CreatedAt    time.Time   `json:"created_at"`
}
