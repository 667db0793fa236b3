package repository

import (
	"context"
	"errors"
	"time"

	"github.com/Eursukkul/booking-microservice/allocation-service/internal/models"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrConflict  = errors.New("concurrent update conflict")
	ErrDuplicate = errors.New("duplicate record")
)

// Transactor runs fn as one unit of work. Repository calls made with the
// context handed to fn join that unit; a nested call joins the outer one.
type Transactor interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// Update methods on versioned rows write only when the stored version
// still matches the one on the passed model, then bump it. A mismatch is
// ErrConflict.

type TierRepository interface {
	Create(ctx context.Context, tier *models.TicketTier) error
	FindByID(ctx context.Context, id uint) (*models.TicketTier, error)
	FindByIDForUpdate(ctx context.Context, id uint) (*models.TicketTier, error)
	Update(ctx context.Context, tier *models.TicketTier) error
}

type HoldRepository interface {
	Create(ctx context.Context, hold *models.CapacityHold) error
	FindByToken(ctx context.Context, token string) (*models.CapacityHold, error)
	FindByTokenForUpdate(ctx context.Context, token string) (*models.CapacityHold, error)
	UpdateStatus(ctx context.Context, hold *models.CapacityHold, status models.HoldStatus) error
	// FindExpired lists HELD holds past their expiry that no HELD
	// reservation refers to.
	FindExpired(ctx context.Context, now time.Time, limit int) ([]models.CapacityHold, error)
}

type TableRepository interface {
	Create(ctx context.Context, table *models.Table) error
	FindByID(ctx context.Context, id uint) (*models.Table, error)
	FindByIDForUpdate(ctx context.Context, id uint) (*models.Table, error)
	Update(ctx context.Context, table *models.Table) error
}

type ReservationRepository interface {
	// Create fails with ErrDuplicate when another live reservation
	// already holds the same table.
	Create(ctx context.Context, res *models.TableReservation) error
	FindByID(ctx context.Context, id uint) (*models.TableReservation, error)
	FindByIDForUpdate(ctx context.Context, id uint) (*models.TableReservation, error)
	Update(ctx context.Context, res *models.TableReservation) error
	// FindStaleIDs lists HELD reservations whose hold deadline has passed.
	FindStaleIDs(ctx context.Context, now time.Time, limit int) ([]uint, error)
}

type PaymentRepository interface {
	Create(ctx context.Context, p *models.Payment) error
	FindByReference(ctx context.Context, ref string) (*models.Payment, error)
	ListByReservation(ctx context.Context, reservationID uint) ([]models.Payment, error)
}

type TicketRepository interface {
	Create(ctx context.Context, t *models.Ticket) error
	FindByID(ctx context.Context, id uint) (*models.Ticket, error)
	FindByIDForUpdate(ctx context.Context, id uint) (*models.Ticket, error)
	FindByCode(ctx context.Context, code string) (*models.Ticket, error)
	Update(ctx context.Context, t *models.Ticket) error
	AddTransition(ctx context.Context, tr *models.TicketTransition) error
	ListTransitions(ctx context.Context, ticketID uint) ([]models.TicketTransition, error)
}

type RewardRepository interface {
	Create(ctx context.Context, r *models.Reward) error
	FindByID(ctx context.Context, id uint) (*models.Reward, error)
	Grant(ctx context.Context, ur *models.UserReward) error
	FindGrantByTicketForUpdate(ctx context.Context, ticketID uint) (*models.UserReward, error)
	UpdateGrant(ctx context.Context, ur *models.UserReward) error
}

// Store bundles the repositories of one backend with its Transactor.
type Store struct {
	Tx           Transactor
	Tiers        TierRepository
	Holds        HoldRepository
	Tables       TableRepository
	Reservations ReservationRepository
	Payments     PaymentRepository
	Tickets      TicketRepository
	Rewards      RewardRepository
}
