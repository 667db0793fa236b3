package models

import "time"

type Reward struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"type:varchar(120);not null" json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

type UserRewardStatus string

const (
	UserRewardGranted  UserRewardStatus = "GRANTED"
	UserRewardRedeemed UserRewardStatus = "REDEEMED"
)

// UserReward is a reward granted through an issued ticket.
type UserReward struct {
	ID         uint             `gorm:"primaryKey" json:"id"`
	RewardID   uint             `gorm:"not null;index" json:"reward_id"`
	HolderID   string           `gorm:"type:varchar(100);not null" json:"holder_id"`
	TicketID   uint             `gorm:"not null;uniqueIndex" json:"ticket_id"`
	Status     UserRewardStatus `gorm:"type:varchar(20);not null;default:'GRANTED'" json:"status"`
	RedeemedAt *time.Time       `json:"redeemed_at,omitempty"`
	CreatedAt  time.Time        `json:"created_at"`
}

// All lists every model for migrations.
func All() []any {
	return []any{
		&TicketTier{}, &Table{}, &CapacityHold{}, &TableReservation{},
		&Payment{}, &Ticket{}, &TicketTransition{}, &Reward{}, &UserReward{},
	}
}
