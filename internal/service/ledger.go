package service

import (
	"context"
	"log"
	"strconv"
	"time"

	"github.com/Eursukkul/booking-microservice/allocation-service/internal/models"
	"github.com/Eursukkul/booking-microservice/allocation-service/internal/repository"
	"github.com/google/uuid"
)

// runner executes fn as one unit of work.
type runner func(ctx context.Context, fn func(ctx context.Context) error) error

// Ledger is the capacity ledger: it owns the held and sold counters of
// every tier. Locks are always taken tier first, hold second.
type Ledger struct {
	store  *repository.Store
	policy Policy
	clock  Clock
	run    runner
}

func NewLedger(store *repository.Store, policy Policy, clock Clock) *Ledger {
	return &Ledger{store: store, policy: policy, clock: clock, run: store.Tx.WithinTransaction}
}

func (l *Ledger) CreateTier(ctx context.Context, tier *models.TicketTier) error {
	if tier.Capacity != nil && *tier.Capacity < 0 {
		return newError(KindInvalidRequest, "capacity must not be negative")
	}
	tier.HeldCount, tier.SoldCount, tier.RetiredAt = 0, 0, nil
	return l.store.Tiers.Create(ctx, tier)
}

func (l *Ledger) Tier(ctx context.Context, id uint) (*models.TicketTier, error) {
	tier, err := l.store.Tiers.FindByID(ctx, id)
	if err != nil {
		return nil, lookup(err, "tier", id)
	}
	return tier, nil
}

// Reserve places a soft hold of quantity units that expires after the
// policy's hold TTL.
func (l *Ledger) Reserve(ctx context.Context, tierID uint, quantity int) (*models.CapacityHold, error) {
	return l.ReserveUntil(ctx, tierID, quantity, l.clock.Now().Add(l.policy.HoldTTL()))
}

func (l *Ledger) ReserveUntil(ctx context.Context, tierID uint, quantity int, expiresAt time.Time) (*models.CapacityHold, error) {
	if quantity < 1 {
		return nil, newError(KindInvalidRequest, "quantity must be at least 1")
	}
	var hold *models.CapacityHold
	err := l.store.Tx.WithinTransaction(ctx, func(ctx context.Context) error {
		tier, err := l.store.Tiers.FindByIDForUpdate(ctx, tierID)
		if err != nil {
			return lookup(err, "tier", tierID)
		}
		if tier.Retired() {
			return &Error{Kind: KindCapacityExceeded, Message: "tier is retired", TierID: tier.ID, State: "retired"}
		}
		if remaining, limited := tier.Remaining(); limited && remaining < quantity {
			return &Error{
				Kind:    KindCapacityExceeded,
				Message: "not enough units left in tier",
				TierID:  tier.ID,
				State:   remainingState(remaining),
			}
		}

		tier.HeldCount += quantity
		if err := l.store.Tiers.Update(ctx, tier); err != nil {
			return err
		}

		hold = &models.CapacityHold{
			Token:     uuid.NewString(),
			TierID:    tier.ID,
			Quantity:  quantity,
			Status:    models.HoldHeld,
			ExpiresAt: expiresAt,
		}
		return l.store.Holds.Create(ctx, hold)
	})
	if err != nil {
		return nil, err
	}
	return hold, nil
}

// Release gives the units of a hold back to its tier. Committed units
// leave the sold counter. Releasing a hold that is already released or
// expired is a no-op.
func (l *Ledger) Release(ctx context.Context, token string) error {
	return l.settle(ctx, token, func(tier *models.TicketTier, hold *models.CapacityHold) (models.HoldStatus, error) {
		switch hold.Status {
		case models.HoldHeld:
			tier.HeldCount -= hold.Quantity
		case models.HoldCommitted:
			tier.SoldCount -= hold.Quantity
		default:
			return "", nil
		}
		return models.HoldReleased, nil
	})
}

// Commit turns a live hold into sold units. Committing twice is a no-op.
func (l *Ledger) Commit(ctx context.Context, token string) error {
	return l.settle(ctx, token, func(tier *models.TicketTier, hold *models.CapacityHold) (models.HoldStatus, error) {
		switch hold.Status {
		case models.HoldHeld:
			tier.HeldCount -= hold.Quantity
			tier.SoldCount += hold.Quantity
			return models.HoldCommitted, nil
		case models.HoldCommitted:
			return "", nil
		}
		return "", &Error{
			Kind:    KindReservationExpired,
			Message: "capacity hold is no longer live",
			TierID:  tier.ID,
			State:   string(hold.Status),
		}
	})
}

// settle locks the tier and the hold, lets apply adjust the counters and
// persists both. An empty status from apply means nothing to do.
func (l *Ledger) settle(ctx context.Context, token string, apply func(*models.TicketTier, *models.CapacityHold) (models.HoldStatus, error)) error {
	return l.store.Tx.WithinTransaction(ctx, func(ctx context.Context) error {
		peek, err := l.store.Holds.FindByToken(ctx, token)
		if err != nil {
			if KindOf(err) == KindNotFound {
				return newError(KindNotFound, "capacity hold %s not found", token)
			}
			return err
		}
		tier, err := l.store.Tiers.FindByIDForUpdate(ctx, peek.TierID)
		if err != nil {
			return lookup(err, "tier", peek.TierID)
		}
		hold, err := l.store.Holds.FindByTokenForUpdate(ctx, token)
		if err != nil {
			return err
		}

		next, err := apply(tier, hold)
		if err != nil || next == "" {
			return err
		}
		if err := l.store.Tiers.Update(ctx, tier); err != nil {
			return err
		}
		return l.store.Holds.UpdateStatus(ctx, hold, next)
	})
}

// ExpireHolds releases held units whose hold ran past its expiry and is
// not bound to a pending reservation. Each hold is settled in its own
// unit of work; the number expired is returned.
func (l *Ledger) ExpireHolds(ctx context.Context, now time.Time, limit int) (int, error) {
	holds, err := l.store.Holds.FindExpired(ctx, now, limit)
	if err != nil {
		return 0, err
	}
	expired := 0
	for _, h := range holds {
		var done bool
		err := l.run(ctx, func(ctx context.Context) error {
			done = false
			return l.settle(ctx, h.Token, func(tier *models.TicketTier, hold *models.CapacityHold) (models.HoldStatus, error) {
				if hold.Status != models.HoldHeld || hold.ExpiresAt.After(now) {
					return "", nil
				}
				tier.HeldCount -= hold.Quantity
				done = true
				return models.HoldExpired, nil
			})
		})
		if err != nil {
			log.Printf("[Ledger] failed to expire hold %s: %v", h.Token, err)
			continue
		}
		if done {
			expired++
		}
	}
	return expired, nil
}

// SetCapacity changes a tier's capacity; nil means unlimited. The new
// capacity may not drop below the units already held or sold.
func (l *Ledger) SetCapacity(ctx context.Context, tierID uint, capacity *int) (*models.TicketTier, error) {
	var tier *models.TicketTier
	err := l.store.Tx.WithinTransaction(ctx, func(ctx context.Context) error {
		var err error
		tier, err = l.store.Tiers.FindByIDForUpdate(ctx, tierID)
		if err != nil {
			return lookup(err, "tier", tierID)
		}
		if capacity != nil && *capacity < tier.HeldCount+tier.SoldCount {
			return &Error{
				Kind:    KindInvalidRequest,
				Message: "capacity is below the units already held or sold",
				TierID:  tier.ID,
			}
		}
		tier.Capacity = capacity
		return l.store.Tiers.Update(ctx, tier)
	})
	if err != nil {
		return nil, err
	}
	return tier, nil
}

// Retire stops a tier from taking new holds. Existing holds and tickets
// are untouched.
func (l *Ledger) Retire(ctx context.Context, tierID uint) (*models.TicketTier, error) {
	var tier *models.TicketTier
	err := l.store.Tx.WithinTransaction(ctx, func(ctx context.Context) error {
		var err error
		tier, err = l.store.Tiers.FindByIDForUpdate(ctx, tierID)
		if err != nil {
			return lookup(err, "tier", tierID)
		}
		if tier.Retired() {
			return nil
		}
		now := l.clock.Now()
		tier.RetiredAt = &now
		return l.store.Tiers.Update(ctx, tier)
	})
	if err != nil {
		return nil, err
	}
	return tier, nil
}

func remainingState(n int) string {
	if n <= 0 {
		return "sold_out"
	}
	return "remaining_" + strconv.Itoa(n)
}
