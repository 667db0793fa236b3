package service

import (
	"context"
	"time"
)

const (
	RouteTicketIssued         = "ticket.issued"
	RouteTicketStatusChanged  = "ticket.status_changed"
	RouteTicketRedeemed       = "ticket.redeemed"
	RouteRewardGranted        = "reward.granted"
	RouteReservationCancelled = "reservation.cancelled"
	RouteReservationExpired   = "reservation.expired"
	RoutePaymentApplied       = "payment.applied"
)

// EventPublisher delivers domain events to collaborators.
type EventPublisher interface {
	Publish(routingKey string, payload any) error
}

type TicketEvent struct {
	TicketID      uint      `json:"ticket_id"`
	Code          string    `json:"code"`
	From          string    `json:"from,omitempty"`
	Status        string    `json:"status"`
	TierID        *uint     `json:"tier_id,omitempty"`
	ReservationID *uint     `json:"reservation_id,omitempty"`
	RewardID      *uint     `json:"reward_id,omitempty"`
	HolderID      string    `json:"holder_id"`
	Actor         string    `json:"actor,omitempty"`
	At            time.Time `json:"at"`
}

type RewardEvent struct {
	UserRewardID uint      `json:"user_reward_id"`
	RewardID     uint      `json:"reward_id"`
	TicketID     uint      `json:"ticket_id"`
	HolderID     string    `json:"holder_id"`
	Status       string    `json:"status"`
	At           time.Time `json:"at"`
}

type ReservationEvent struct {
	ReservationID uint      `json:"reservation_id"`
	TableID       *uint     `json:"table_id,omitempty"`
	TierID        *uint     `json:"tier_id,omitempty"`
	Status        string    `json:"status"`
	Actor         string    `json:"actor,omitempty"`
	At            time.Time `json:"at"`
}

type PaymentEvent struct {
	ReservationID uint      `json:"reservation_id"`
	Amount        int64     `json:"amount"`
	AmountPaid    int64     `json:"amount_paid"`
	TotalPrice    int64     `json:"total_price"`
	Outcome       string    `json:"outcome"`
	Reference     string    `json:"reference,omitempty"`
	At            time.Time `json:"at"`
}

type outboundEvent struct {
	routingKey string
	payload    any
}

// outbox collects the events of one unit of work; they leave only after
// the unit commits.
type outbox struct {
	events []outboundEvent
}

type outboxKey struct{}

func withOutbox(ctx context.Context) (context.Context, *outbox) {
	ob := &outbox{}
	return context.WithValue(ctx, outboxKey{}, ob), ob
}

func emit(ctx context.Context, routingKey string, payload any) {
	if ob, ok := ctx.Value(outboxKey{}).(*outbox); ok {
		ob.events = append(ob.events, outboundEvent{routingKey: routingKey, payload: payload})
	}
}
