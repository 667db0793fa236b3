package service

import (
	"context"
	"errors"
	"log"

	"github.com/Eursukkul/booking-microservice/allocation-service/internal/models"
	"github.com/Eursukkul/booking-microservice/allocation-service/internal/repository"
)

type PaymentRequest struct {
	ReservationID uint
	Amount        int64
	Reference     string
	Method        string
}

type PaymentResult struct {
	Reservation *models.TableReservation
	Payment     *models.Payment
	Outcome     models.PaymentOutcome
	Previous    models.PaymentOutcome
	Replayed    bool
}

// Reconciler applies verified payment amounts to reservations. It is the
// only writer of amount_paid.
type Reconciler struct {
	store        *repository.Store
	reservations *ReservationManager
	clock        Clock
}

func NewReconciler(store *repository.Store, reservations *ReservationManager, clock Clock) *Reconciler {
	return &Reconciler{store: store, reservations: reservations, clock: clock}
}

// Apply adds req.Amount to the reservation. A reference that was already
// applied returns the recorded outcome unchanged. Payments landing after
// the hold deadline are accepted while the reservation is still held.
func (r *Reconciler) Apply(ctx context.Context, req PaymentRequest) (*PaymentResult, error) {
	if req.Amount <= 0 {
		return nil, &Error{Kind: KindInvalidAmount, Message: "payment amount must be positive", ReservationID: req.ReservationID}
	}

	var result *PaymentResult
	err := r.store.Tx.WithinTransaction(ctx, func(ctx context.Context) error {
		res, err := r.store.Reservations.FindByIDForUpdate(ctx, req.ReservationID)
		if err != nil {
			return lookup(err, "reservation", req.ReservationID)
		}

		if req.Reference != "" {
			prior, err := r.store.Payments.FindByReference(ctx, req.Reference)
			switch {
			case err == nil:
				if prior.ReservationID != res.ID {
					return &Error{Kind: KindInvalidRequest, Message: "payment reference belongs to another reservation", ReservationID: res.ID}
				}
				result = &PaymentResult{Reservation: res, Payment: prior, Outcome: prior.Outcome, Previous: prior.Outcome, Replayed: true}
				return nil
			case !errors.Is(err, repository.ErrNotFound):
				return err
			}
		}

		if !res.Live() {
			return &Error{Kind: KindReservationExpired, Message: "reservation is no longer active", ReservationID: res.ID, State: string(res.Status)}
		}
		if res.AmountPaid+req.Amount > res.TotalPrice {
			return &Error{
				Kind:          KindOverpaymentRejected,
				Message:       "payment exceeds the outstanding balance",
				ReservationID: res.ID,
				State:         string(res.Outcome()),
			}
		}

		prev := res.Outcome()
		res.AmountPaid += req.Amount
		if res.PaymentMethod == "" {
			res.PaymentMethod = req.Method
		}
		outcome := res.Outcome()
		if outcome == models.OutcomeComplete && res.Status == models.ReservationHeld {
			if err := r.reservations.Confirm(ctx, res); err != nil {
				return err
			}
		}
		if err := r.store.Reservations.Update(ctx, res); err != nil {
			return err
		}

		payment := &models.Payment{
			ReservationID: res.ID,
			Amount:        req.Amount,
			Method:        req.Method,
			Outcome:       outcome,
			PaidAfter:     res.AmountPaid,
		}
		if req.Reference != "" {
			ref := req.Reference
			payment.Reference = &ref
		}
		if err := r.store.Payments.Create(ctx, payment); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return &Error{Kind: KindConcurrencyConflict, Message: "payment reference is being applied concurrently", ReservationID: res.ID}
			}
			return err
		}

		emit(ctx, RoutePaymentApplied, PaymentEvent{
			ReservationID: res.ID,
			Amount:        req.Amount,
			AmountPaid:    res.AmountPaid,
			TotalPrice:    res.TotalPrice,
			Outcome:       string(outcome),
			Reference:     req.Reference,
			At:            r.clock.Now(),
		})
		result = &PaymentResult{Reservation: res, Payment: payment, Outcome: outcome, Previous: prev}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if !result.Replayed {
		log.Printf("[Payments] reservation %d paid %d/%d (%s)", result.Reservation.ID, result.Reservation.AmountPaid, result.Reservation.TotalPrice, result.Outcome)
	}
	return result, nil
}

// SettleFree confirms a reservation that has nothing to pay. It runs in
// the unit of work that created the reservation.
func (r *Reconciler) SettleFree(ctx context.Context, res *models.TableReservation) (*PaymentResult, error) {
	if res.TotalPrice != 0 || res.Status != models.ReservationHeld {
		return nil, &Error{Kind: KindInvalidRequest, Message: "reservation is not a free held reservation", ReservationID: res.ID, State: string(res.Status)}
	}
	err := r.store.Tx.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := r.reservations.Confirm(ctx, res); err != nil {
			return err
		}
		return r.store.Reservations.Update(ctx, res)
	})
	if err != nil {
		return nil, err
	}
	log.Printf("[Payments] reservation %d is free, confirmed", res.ID)
	return &PaymentResult{Reservation: res, Outcome: models.OutcomeComplete, Previous: models.OutcomeUnpaid}, nil
}

func (r *Reconciler) History(ctx context.Context, reservationID uint) ([]models.Payment, error) {
	return r.store.Payments.ListByReservation(ctx, reservationID)
}
