package models

import "time"

type ReservationStatus string

const (
	ReservationHeld      ReservationStatus = "HELD"
	ReservationConfirmed ReservationStatus = "CONFIRMED"
	ReservationCancelled ReservationStatus = "CANCELLED"
	ReservationExpired   ReservationStatus = "EXPIRED"
)

type PaymentOutcome string

const (
	OutcomeUnpaid   PaymentOutcome = "Unpaid"
	OutcomePartial  PaymentOutcome = "Partial"
	OutcomeComplete PaymentOutcome = "Complete"
)

// TableReservation is a buyer's claim on a table and/or tier units.
// Amounts are minor currency units.
type TableReservation struct {
	ID            uint              `gorm:"primaryKey" json:"id"`
	TierID        *uint             `gorm:"index" json:"tier_id,omitempty"`
	TableID       *uint             `gorm:"index" json:"table_id,omitempty"`
	HoldToken     *string           `gorm:"type:varchar(64)" json:"hold_token,omitempty"`
	ClientID      string            `gorm:"type:varchar(100);not null" json:"client_id"`
	GuestCount    int               `gorm:"not null" json:"guest_count"`
	AmountPaid    int64             `gorm:"not null;default:0;check:chk_reservation_amount,amount_paid >= 0 AND amount_paid <= total_price" json:"amount_paid"`
	TotalPrice    int64             `gorm:"not null" json:"total_price"`
	PaymentMethod string            `gorm:"type:varchar(40)" json:"payment_method,omitempty"`
	Status        ReservationStatus `gorm:"type:varchar(20);not null;default:'HELD'" json:"status"`
	HoldDeadline  time.Time         `gorm:"not null;index" json:"hold_deadline"`
	TicketID      *uint             `json:"ticket_id,omitempty"`
	Version       int               `gorm:"not null;default:1" json:"version"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

// Live reports whether the reservation still holds its table and units.
func (r *TableReservation) Live() bool {
	return r.Status == ReservationHeld || r.Status == ReservationConfirmed
}

func (r *TableReservation) Balance() int64 { return r.TotalPrice - r.AmountPaid }

// Outcome derives payment completeness from the amounts. A free
// reservation is complete from the start.
func (r *TableReservation) Outcome() PaymentOutcome {
	switch {
	case r.TotalPrice <= 0:
		return OutcomeComplete
	case r.AmountPaid <= 0:
		return OutcomeUnpaid
	case r.AmountPaid < r.TotalPrice:
		return OutcomePartial
	default:
		return OutcomeComplete
	}
}
