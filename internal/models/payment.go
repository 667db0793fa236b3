package models

import "time"

type Payment struct {
	ID            uint           `gorm:"primaryKey" json:"id"`
	ReservationID uint           `gorm:"not null;index" json:"reservation_id"`
	Reference     *string        `gorm:"type:varchar(120);uniqueIndex" json:"reference,omitempty"`
	Amount        int64          `gorm:"not null" json:"amount"`
	Method        string         `gorm:"type:varchar(40)" json:"method,omitempty"`
	Outcome       PaymentOutcome `gorm:"type:varchar(20);not null" json:"outcome"`
	PaidAfter     int64          `gorm:"not null" json:"paid_after"`
	CreatedAt     time.Time      `json:"created_at"`
}
