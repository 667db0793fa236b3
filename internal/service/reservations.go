package service

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/Eursukkul/booking-microservice/allocation-service/internal/models"
	"github.com/Eursukkul/booking-microservice/allocation-service/internal/repository"
)

type ReservationRequest struct {
	TableID       *uint
	TierID        *uint
	ClientID      string
	GuestCount    int
	TotalPrice    int64
	PaymentMethod string
}

// ReleaseHook runs inside the unit of work that cancels or expires a
// reservation, after the table and units are released.
type ReleaseHook func(ctx context.Context, res *models.TableReservation, actor string) error

// ReservationManager binds reservations to tables and tier units. It is
// the only writer of table occupancy.
type ReservationManager struct {
	store     *repository.Store
	ledger    *Ledger
	policy    Policy
	clock     Clock
	run       runner
	onRelease []ReleaseHook
}

func NewReservationManager(store *repository.Store, ledger *Ledger, policy Policy, clock Clock) *ReservationManager {
	return &ReservationManager{store: store, ledger: ledger, policy: policy, clock: clock, run: store.Tx.WithinTransaction}
}

func (m *ReservationManager) OnRelease(h ReleaseHook) {
	m.onRelease = append(m.onRelease, h)
}

func (m *ReservationManager) Create(ctx context.Context, req ReservationRequest) (*models.TableReservation, error) {
	switch {
	case req.TableID == nil && req.TierID == nil:
		return nil, newError(KindInvalidRequest, "a table or a tier is required")
	case req.GuestCount < 1:
		return nil, newError(KindInvalidRequest, "guest count must be at least 1")
	case req.TotalPrice < 0:
		return nil, newError(KindInvalidRequest, "total price must not be negative")
	case req.ClientID == "":
		return nil, newError(KindInvalidRequest, "client id is required")
	}

	var res *models.TableReservation
	err := m.store.Tx.WithinTransaction(ctx, func(ctx context.Context) error {
		deadline := m.clock.Now().Add(m.policy.HoldTTL())

		var table *models.Table
		if req.TableID != nil {
			var err error
			table, err = m.store.Tables.FindByIDForUpdate(ctx, *req.TableID)
			if err != nil {
				return lookup(err, "table", *req.TableID)
			}
			if table.Status != models.TableAvailable {
				return &Error{
					Kind:    KindTableUnavailable,
					Message: "table is not available",
					TableID: table.ID,
					State:   string(table.Status),
				}
			}
		}

		res = &models.TableReservation{
			TierID:        req.TierID,
			TableID:       req.TableID,
			ClientID:      req.ClientID,
			GuestCount:    req.GuestCount,
			TotalPrice:    req.TotalPrice,
			PaymentMethod: req.PaymentMethod,
			Status:        models.ReservationHeld,
			HoldDeadline:  deadline,
		}

		if req.TierID != nil {
			tier, err := m.store.Tiers.FindByID(ctx, *req.TierID)
			if err != nil {
				return lookup(err, "tier", *req.TierID)
			}
			if table != nil && tier.TableCategoryID != nil &&
				(table.CategoryID == nil || *table.CategoryID != *tier.TableCategoryID) {
				return &Error{
					Kind:    KindInvalidRequest,
					Message: "table does not belong to the tier's table category",
					TierID:  tier.ID,
					TableID: table.ID,
				}
			}
			hold, err := m.ledger.ReserveUntil(ctx, tier.ID, req.GuestCount, deadline)
			if err != nil {
				return err
			}
			res.HoldToken = &hold.Token
		}

		if err := m.store.Reservations.Create(ctx, res); err != nil {
			if errors.Is(err, repository.ErrDuplicate) && table != nil {
				return &Error{Kind: KindTableUnavailable, Message: "table is already reserved", TableID: table.ID}
			}
			return err
		}

		if table != nil {
			table.Status = models.TableReserved
			table.CurrentReservationID = &res.ID
			if err := m.store.Tables.Update(ctx, table); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("[Reservations] reservation %d held for client %s until %s", res.ID, res.ClientID, res.HoldDeadline.Format(time.RFC3339))
	return res, nil
}

func (m *ReservationManager) Get(ctx context.Context, id uint) (*models.TableReservation, error) {
	res, err := m.store.Reservations.FindByID(ctx, id)
	if err != nil {
		return nil, lookup(err, "reservation", id)
	}
	return res, nil
}

// Cancel releases the table and any tier units held by the reservation.
func (m *ReservationManager) Cancel(ctx context.Context, id uint, actor string) (*models.TableReservation, error) {
	var res *models.TableReservation
	err := m.store.Tx.WithinTransaction(ctx, func(ctx context.Context) error {
		var err error
		res, err = m.store.Reservations.FindByIDForUpdate(ctx, id)
		if err != nil {
			return lookup(err, "reservation", id)
		}
		switch res.Status {
		case models.ReservationCancelled:
			return &Error{Kind: KindInvalidTransition, Message: "reservation is already cancelled", ReservationID: id, State: string(res.Status)}
		case models.ReservationExpired:
			return &Error{Kind: KindReservationExpired, Message: "reservation has expired", ReservationID: id, State: string(res.Status)}
		}
		if err := m.release(ctx, res, models.ReservationCancelled, actor); err != nil {
			return err
		}
		emit(ctx, RouteReservationCancelled, reservationEvent(res, actor, m.clock.Now()))
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("[Reservations] reservation %d cancelled by %s", res.ID, actor)
	return res, nil
}

// Confirm commits the reservation's held units and marks it fully paid.
// The caller persists the reservation.
func (m *ReservationManager) Confirm(ctx context.Context, res *models.TableReservation) error {
	if res.HoldToken != nil {
		if err := m.ledger.Commit(ctx, *res.HoldToken); err != nil {
			var se *Error
			if errors.As(err, &se) {
				se.ReservationID = res.ID
			}
			return err
		}
	}
	res.Status = models.ReservationConfirmed
	return nil
}

func (m *ReservationManager) StaleIDs(ctx context.Context, now time.Time, limit int) ([]uint, error) {
	return m.store.Reservations.FindStaleIDs(ctx, now, limit)
}

// Expire cancels one reservation if it is still unpaid past its hold
// deadline when observed under lock. It reports whether it did.
func (m *ReservationManager) Expire(ctx context.Context, id uint, now time.Time) (*models.TableReservation, bool, error) {
	var (
		res     *models.TableReservation
		expired bool
	)
	err := m.store.Tx.WithinTransaction(ctx, func(ctx context.Context) error {
		var err error
		expired = false
		res, err = m.store.Reservations.FindByIDForUpdate(ctx, id)
		if err != nil {
			return lookup(err, "reservation", id)
		}
		if res.Status != models.ReservationHeld || res.HoldDeadline.After(now) {
			return nil
		}
		if err := m.release(ctx, res, models.ReservationExpired, "system:sweeper"); err != nil {
			return err
		}
		expired = true
		emit(ctx, RouteReservationExpired, reservationEvent(res, "system:sweeper", now))
		return nil
	})
	return res, expired, err
}

// ExpireStale sweeps reservations past their hold deadline, one unit of
// work per reservation, and returns the ones it expired.
func (m *ReservationManager) ExpireStale(ctx context.Context, now time.Time, limit int) ([]models.TableReservation, error) {
	ids, err := m.StaleIDs(ctx, now, limit)
	if err != nil {
		return nil, err
	}
	var out []models.TableReservation
	for _, id := range ids {
		var (
			res     *models.TableReservation
			expired bool
		)
		err := m.run(ctx, func(ctx context.Context) error {
			var err error
			res, expired, err = m.Expire(ctx, id, now)
			return err
		})
		if err != nil {
			log.Printf("[Reservations] failed to expire reservation %d: %v", id, err)
			continue
		}
		if expired {
			out = append(out, *res)
		}
	}
	return out, nil
}

func (m *ReservationManager) release(ctx context.Context, res *models.TableReservation, status models.ReservationStatus, actor string) error {
	if res.TableID != nil {
		table, err := m.store.Tables.FindByIDForUpdate(ctx, *res.TableID)
		if err != nil {
			return lookup(err, "table", *res.TableID)
		}
		if table.CurrentReservationID != nil && *table.CurrentReservationID == res.ID {
			table.Status = models.TableAvailable
			table.CurrentReservationID = nil
			if err := m.store.Tables.Update(ctx, table); err != nil {
				return err
			}
		}
	}
	if res.HoldToken != nil {
		if err := m.ledger.Release(ctx, *res.HoldToken); err != nil {
			return err
		}
	}

	res.Status = status
	if err := m.store.Reservations.Update(ctx, res); err != nil {
		return err
	}
	for _, h := range m.onRelease {
		if err := h(ctx, res, actor); err != nil {
			return err
		}
	}
	return nil
}

func (m *ReservationManager) CreateTable(ctx context.Context, table *models.Table) error {
	if table.Label == "" {
		return newError(KindInvalidRequest, "table label is required")
	}
	switch table.Status {
	case "":
		table.Status = models.TableAvailable
	case models.TableAvailable, models.TableUnavailable:
	default:
		return newError(KindInvalidRequest, "a new table must be available or unavailable")
	}
	table.CurrentReservationID = nil
	return m.store.Tables.Create(ctx, table)
}

func (m *ReservationManager) Table(ctx context.Context, id uint) (*models.Table, error) {
	table, err := m.store.Tables.FindByID(ctx, id)
	if err != nil {
		return nil, lookup(err, "table", id)
	}
	return table, nil
}

// SetTableStatus takes a table in or out of service. Tables held by a
// reservation cannot be changed.
func (m *ReservationManager) SetTableStatus(ctx context.Context, id uint, status models.TableStatus) (*models.Table, error) {
	if status != models.TableAvailable && status != models.TableUnavailable {
		return nil, newError(KindInvalidRequest, "status must be available or unavailable")
	}
	var table *models.Table
	err := m.store.Tx.WithinTransaction(ctx, func(ctx context.Context) error {
		var err error
		table, err = m.store.Tables.FindByIDForUpdate(ctx, id)
		if err != nil {
			return lookup(err, "table", id)
		}
		if table.CurrentReservationID != nil || table.Status == models.TableReserved || table.Status == models.TableOccupied {
			return &Error{Kind: KindTableUnavailable, Message: "table is held by a reservation", TableID: id, State: string(table.Status)}
		}
		if table.Status == status {
			return nil
		}
		table.Status = status
		return m.store.Tables.Update(ctx, table)
	})
	if err != nil {
		return nil, err
	}
	return table, nil
}

func reservationEvent(res *models.TableReservation, actor string, at time.Time) ReservationEvent {
	return ReservationEvent{
		ReservationID: res.ID,
		TableID:       res.TableID,
		TierID:        res.TierID,
		Status:        string(res.Status),
		Actor:         actor,
		At:            at,
	}
}
