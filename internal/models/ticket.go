package models

import (
	"time"

	"github.com/Eursukkul/booking-microservice/allocation-service/internal/lifecycle"
)

type Ticket struct {
	ID             uint             `gorm:"primaryKey" json:"id"`
	Code           string           `gorm:"type:varchar(40);uniqueIndex;not null" json:"code"`
	TierID         *uint            `gorm:"index" json:"tier_id,omitempty"`
	ReservationID  *uint            `gorm:"uniqueIndex" json:"reservation_id,omitempty"`
	RewardID       *uint            `json:"reward_id,omitempty"`
	HolderID       string           `gorm:"type:varchar(100);not null" json:"holder_id"`
	Status         lifecycle.Status `gorm:"type:varchar(20);not null" json:"status"`
	GuestAllotment int              `gorm:"not null;default:1" json:"guest_allotment"`
	AdmittedCount  int              `gorm:"not null;default:0;check:chk_ticket_admitted,admitted_count >= 0 AND admitted_count <= guest_allotment" json:"admitted_count"`
	Version        int              `gorm:"not null;default:1" json:"version"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

func (t *Ticket) Remaining() int { return t.GuestAllotment - t.AdmittedCount }

// TicketTransition is one audit entry of a ticket's status history.
type TicketTransition struct {
	ID         uint             `gorm:"primaryKey" json:"id"`
	TicketID   uint             `gorm:"not null;index" json:"ticket_id"`
	FromStatus lifecycle.Status `gorm:"type:varchar(20)" json:"from,omitempty"`
	ToStatus   lifecycle.Status `gorm:"type:varchar(20);not null" json:"to"`
	Event      lifecycle.Event  `gorm:"type:varchar(30);not null" json:"event"`
	Actor      string           `gorm:"type:varchar(100);not null" json:"actor"`
	Admitted   int              `gorm:"not null;default:0" json:"admitted,omitempty"`
	Reason     string           `gorm:"type:varchar(255)" json:"reason,omitempty"`
	At         time.Time        `gorm:"not null" json:"at"`
}
