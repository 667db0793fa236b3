package models

import "time"

type TableStatus string

const (
	TableAvailable   TableStatus = "available"
	TableReserved    TableStatus = "reserved"
	TableOccupied    TableStatus = "occupied"
	TableUnavailable TableStatus = "unavailable"
)

type Table struct {
	ID                   uint        `gorm:"primaryKey" json:"id"`
	CategoryID           *uint       `gorm:"index" json:"category_id,omitempty"`
	Label                string      `gorm:"type:varchar(40);not null" json:"label"`
	PosX                 *float64    `json:"pos_x,omitempty"`
	PosY                 *float64    `json:"pos_y,omitempty"`
	Status               TableStatus `gorm:"type:varchar(20);not null;default:'available'" json:"status"`
	CurrentReservationID *uint       `json:"current_reservation_id,omitempty"`
	Version              int         `gorm:"not null;default:1" json:"version"`
	CreatedAt            time.Time   `json:"created_at"`
	UpdatedAt            time.Time   `json:"updated_at"`
}
