package dto

import (
	"github.com/Eursukkul/booking-microservice/allocation-service/internal/models"
	"github.com/Eursukkul/booking-microservice/allocation-service/internal/service"
)

type CreateTierRequest struct {
	EventID         uint    `json:"event_id" validate:"required"`
	Name            string  `json:"name" validate:"required,max=120"`
	Capacity        *int    `json:"capacity" validate:"omitempty,gte=0"`
	TableNumber     *string `json:"table_number" validate:"omitempty,max=40"`
	Location        *string `json:"location" validate:"omitempty,max=120"`
	IsVIP           bool    `json:"is_vip"`
	IsPublic        *bool   `json:"is_public"`
	RewardID        *uint   `json:"reward_id"`
	TableCategoryID *uint   `json:"table_category_id"`
}

func (r CreateTierRequest) Model() *models.TicketTier {
	public := true
	if r.IsPublic != nil {
		public = *r.IsPublic
	}
	return &models.TicketTier{
		EventID:         r.EventID,
		Name:            r.Name,
		Capacity:        r.Capacity,
		TableNumber:     r.TableNumber,
		Location:        r.Location,
		IsVIP:           r.IsVIP,
		IsPublic:        public,
		RewardID:        r.RewardID,
		TableCategoryID: r.TableCategoryID,
	}
}

// SetCapacityRequest replaces a tier's capacity. A null capacity makes the
// tier unlimited.
type SetCapacityRequest struct {
	Capacity *int `json:"capacity" validate:"omitempty,gte=0"`
}

type CreateTableRequest struct {
	Label      string   `json:"label" validate:"required,max=40"`
	CategoryID *uint    `json:"category_id"`
	PosX       *float64 `json:"pos_x"`
	PosY       *float64 `json:"pos_y"`
}

func (r CreateTableRequest) Model() *models.Table {
	return &models.Table{
		Label:      r.Label,
		CategoryID: r.CategoryID,
		PosX:       r.PosX,
		PosY:       r.PosY,
	}
}

type SetTableStatusRequest struct {
	Status models.TableStatus `json:"status" validate:"required,oneof=available unavailable"`
}

type CreateReservationRequest struct {
	TableID       *uint  `json:"table_id" validate:"required_without=TierID"`
	TierID        *uint  `json:"tier_id" validate:"required_without=TableID"`
	ClientID      string `json:"client_id" validate:"required,max=100"`
	GuestCount    int    `json:"guest_count" validate:"required,gt=0"`
	TotalPrice    int64  `json:"total_price" validate:"gte=0"`
	PaymentMethod string `json:"payment_method" validate:"max=40"`
}

func (r CreateReservationRequest) Service() service.ReservationRequest {
	return service.ReservationRequest{
		TableID:       r.TableID,
		TierID:        r.TierID,
		ClientID:      r.ClientID,
		GuestCount:    r.GuestCount,
		TotalPrice:    r.TotalPrice,
		PaymentMethod: r.PaymentMethod,
	}
}

type InitialPaymentRequest struct {
	Amount    int64  `json:"amount"`
	Reference string `json:"reference" validate:"max=120"`
	Method    string `json:"method" validate:"max=40"`
}

type CheckoutRequest struct {
	CreateReservationRequest
	Payment *InitialPaymentRequest `json:"payment" validate:"omitempty"`
}

func (r CheckoutRequest) Service() service.CheckoutRequest {
	req := service.CheckoutRequest{ReservationRequest: r.CreateReservationRequest.Service()}
	if r.Payment != nil {
		req.Payment = &service.InitialPayment{
			Amount:    r.Payment.Amount,
			Reference: r.Payment.Reference,
			Method:    r.Payment.Method,
		}
	}
	return req
}

// ApplyPaymentRequest carries a verified payment. Amount is validated by
// the reconciler so a non-positive amount surfaces as InvalidAmount.
type ApplyPaymentRequest struct {
	Amount    int64  `json:"amount"`
	Reference string `json:"reference" validate:"max=120"`
	Method    string `json:"method" validate:"max=40"`
}

// ScanRequest admits guests against a ticket. A missing admit_count
// admits one guest.
type ScanRequest struct {
	AdmitCount *int   `json:"admit_count"`
	Actor      string `json:"actor" validate:"max=100"`
}

func (r ScanRequest) Admit() int {
	if r.AdmitCount == nil {
		return 1
	}
	return *r.AdmitCount
}

type CheckinRequest struct {
	Code string `json:"code" validate:"required,max=40"`
	ScanRequest
}

type RevokeRequest struct {
	Actor  string `json:"actor" validate:"max=100"`
	Reason string `json:"reason" validate:"max=255"`
}

type ActorRequest struct {
	Actor string `json:"actor" validate:"max=100"`
}
