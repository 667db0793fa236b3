package models

import "time"

type TicketTier struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	EventID         uint       `gorm:"not null;index" json:"event_id"`
	Name            string     `gorm:"type:varchar(120);not null" json:"name"`
	Capacity        *int       `gorm:"check:chk_tier_capacity,held_count >= 0 AND sold_count >= 0 AND (capacity IS NULL OR held_count + sold_count <= capacity)" json:"capacity"`
	HeldCount       int        `gorm:"not null;default:0" json:"held_count"`
	SoldCount       int        `gorm:"not null;default:0" json:"sold_count"`
	TableNumber     *string    `gorm:"type:varchar(40)" json:"table_number,omitempty"`
	Location        *string    `gorm:"type:varchar(120)" json:"location,omitempty"`
	IsVIP           bool       `gorm:"column:is_vip;not null" json:"is_vip"`
	IsPublic        bool       `gorm:"not null" json:"is_public"`
	RewardID        *uint      `json:"reward_id,omitempty"`
	TableCategoryID *uint      `json:"table_category_id,omitempty"`
	RetiredAt       *time.Time `json:"retired_at,omitempty"`
	Version         int        `gorm:"not null;default:1" json:"version"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// Remaining returns the units still sellable. ok is false for unlimited tiers.
func (t *TicketTier) Remaining() (n int, ok bool) {
	if t.Capacity == nil {
		return 0, false
	}
	return *t.Capacity - t.HeldCount - t.SoldCount, true
}

func (t *TicketTier) Retired() bool { return t.RetiredAt != nil }
