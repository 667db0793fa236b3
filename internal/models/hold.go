package models

import "time"

type HoldStatus string

const (
	HoldHeld      HoldStatus = "HELD"
	HoldCommitted HoldStatus = "COMMITTED"
	HoldReleased  HoldStatus = "RELEASED"
	HoldExpired   HoldStatus = "EXPIRED"
)

// CapacityHold is a soft claim on tier units. While HELD its quantity is
// counted in the tier's held_count, once COMMITTED in sold_count.
type CapacityHold struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	Token     string     `gorm:"type:varchar(64);uniqueIndex;not null" json:"token"`
	TierID    uint       `gorm:"not null;index" json:"tier_id"`
	Quantity  int        `gorm:"not null" json:"quantity"`
	Status    HoldStatus `gorm:"type:varchar(20);not null;default:'HELD'" json:"status"`
	ExpiresAt time.Time  `gorm:"not null;index" json:"expires_at"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}
