package dto

import (
	"time"

	"github.com/Eursukkul/booking-microservice/allocation-service/internal/models"
	"github.com/Eursukkul/booking-microservice/allocation-service/internal/service"
)

type TierResponse struct {
	*models.TicketTier
	Remaining *int `json:"remaining"`
	Unlimited bool `json:"unlimited"`
	Retired   bool `json:"retired"`
}

func ToTierResponse(t *models.TicketTier) TierResponse {
	resp := TierResponse{TicketTier: t, Retired: t.Retired()}
	if n, ok := t.Remaining(); ok {
		resp.Remaining = &n
	} else {
		resp.Unlimited = true
	}
	return resp
}

type ReservationResponse struct {
	*models.TableReservation
	Outcome  models.PaymentOutcome `json:"payment_outcome"`
	Balance  int64                 `json:"balance"`
	Payments []models.Payment      `json:"payments,omitempty"`
}

func ToReservationResponse(r *models.TableReservation) ReservationResponse {
	return ReservationResponse{TableReservation: r, Outcome: r.Outcome(), Balance: r.Balance()}
}

func ToReservationView(v *service.ReservationView) ReservationResponse {
	resp := ToReservationResponse(v.Reservation)
	resp.Outcome = v.Outcome
	resp.Payments = v.Payments
	return resp
}

type CheckoutResponse struct {
	Reservation ReservationResponse   `json:"reservation"`
	Outcome     models.PaymentOutcome `json:"payment_outcome"`
	Ticket      *TicketResponse       `json:"ticket,omitempty"`
}

func ToCheckoutResponse(r *service.CheckoutResult) CheckoutResponse {
	return CheckoutResponse{
		Reservation: ToReservationResponse(r.Reservation),
		Outcome:     r.Outcome,
		Ticket:      ticketOrNil(r.Ticket),
	}
}

type PaymentResponse struct {
	Reservation ReservationResponse   `json:"reservation"`
	Payment     *models.Payment       `json:"payment,omitempty"`
	Outcome     models.PaymentOutcome `json:"payment_outcome"`
	Replayed    bool                  `json:"replayed"`
	Ticket      *TicketResponse       `json:"ticket,omitempty"`
}

func ToPaymentResponse(p *service.PaymentApplied) PaymentResponse {
	return PaymentResponse{
		Reservation: ToReservationResponse(p.Reservation),
		Payment:     p.Payment,
		Outcome:     p.Outcome,
		Replayed:    p.Replayed,
		Ticket:      ticketOrNil(p.Ticket),
	}
}

type TicketResponse struct {
	*models.Ticket
	Remaining  int  `json:"remaining"`
	Admissible bool `json:"admissible"`
	Terminal   bool `json:"terminal"`
}

func ToTicketResponse(t *models.Ticket) TicketResponse {
	return TicketResponse{
		Ticket:     t,
		Remaining:  t.Remaining(),
		Admissible: t.Status.Admissible(),
		Terminal:   t.Status.Terminal(),
	}
}

func ticketOrNil(t *models.Ticket) *TicketResponse {
	if t == nil {
		return nil
	}
	resp := ToTicketResponse(t)
	return &resp
}

type ScanResponse struct {
	Ticket    TicketResponse `json:"ticket"`
	Admitted  int            `json:"admitted"`
	Remaining int            `json:"remaining"`
}

func ToScanResponse(r *service.ScanResult) ScanResponse {
	return ScanResponse{Ticket: ToTicketResponse(r.Ticket), Admitted: r.Admitted, Remaining: r.Remaining}
}

type RedeemResponse struct {
	Ticket TicketResponse     `json:"ticket"`
	Reward *models.UserReward `json:"reward,omitempty"`
}

func ToRedeemResponse(r *service.RedeemResult) RedeemResponse {
	return RedeemResponse{Ticket: ToTicketResponse(r.Ticket), Reward: r.Grant}
}

type HealthResponse struct {
	Status  string    `json:"status"`
	Service string    `json:"service"`
	Store   string    `json:"store"`
	Time    time.Time `json:"time"`
}
