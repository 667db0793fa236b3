package service

import (
	"context"
	"log"

	"github.com/Eursukkul/booking-microservice/allocation-service/internal/models"
	"github.com/Eursukkul/booking-microservice/allocation-service/internal/repository"
)

// AllocationService is the surface exposed to the checkout front end,
// the payment webhook relay and the check-in scanner.
type AllocationService interface {
	CreateTier(ctx context.Context, tier *models.TicketTier) (*models.TicketTier, error)
	Tier(ctx context.Context, id uint) (*models.TicketTier, error)
	SetTierCapacity(ctx context.Context, id uint, capacity *int) (*models.TicketTier, error)
	RetireTier(ctx context.Context, id uint) (*models.TicketTier, error)

	CreateTable(ctx context.Context, table *models.Table) (*models.Table, error)
	Table(ctx context.Context, id uint) (*models.Table, error)
	SetTableStatus(ctx context.Context, id uint, status models.TableStatus) (*models.Table, error)

	Checkout(ctx context.Context, req CheckoutRequest) (*CheckoutResult, error)
	CreateReservation(ctx context.Context, req ReservationRequest) (*models.TableReservation, error)
	Reservation(ctx context.Context, id uint) (*ReservationView, error)
	CancelReservation(ctx context.Context, id uint, actor string) (*models.TableReservation, error)
	ApplyPayment(ctx context.Context, req PaymentRequest) (*PaymentApplied, error)

	Ticket(ctx context.Context, id uint) (*models.Ticket, error)
	TicketHistory(ctx context.Context, id uint) ([]models.TicketTransition, error)
	ScanTicket(ctx context.Context, id uint, admit int, actor string) (*ScanResult, error)
	ScanByCode(ctx context.Context, code string, admit int, actor string) (*ScanResult, error)
	RevokeTicket(ctx context.Context, id uint, actor, reason string) (*models.Ticket, error)
	RedeemTicket(ctx context.Context, id uint, actor string) (*RedeemResult, error)

	SweepExpired(ctx context.Context) (*SweepReport, error)
}

type InitialPayment struct {
	Amount    int64
	Reference string
	Method    string
}

type CheckoutRequest struct {
	ReservationRequest
	Payment *InitialPayment
}

type CheckoutResult struct {
	Reservation *models.TableReservation
	Outcome     models.PaymentOutcome
	Ticket      *models.Ticket
}

type PaymentApplied struct {
	Reservation *models.TableReservation
	Payment     *models.Payment
	Outcome     models.PaymentOutcome
	Replayed    bool
	Ticket      *models.Ticket
}

type ReservationView struct {
	Reservation *models.TableReservation
	Outcome     models.PaymentOutcome
	Payments    []models.Payment
}

type SweepReport struct {
	Reservations int `json:"reservations_expired"`
	Holds        int `json:"holds_expired"`
}

type Options struct {
	Policy     Policy
	Clock      Clock
	Retry      RetryPolicy
	Publisher  EventPublisher
	SweepBatch int
}

// Coordinator runs every request as one unit of work over the ledger,
// reservations, payments and tickets, retrying on contention. Events are
// published only after the unit commits.
type Coordinator struct {
	store        *repository.Store
	ledger       *Ledger
	reservations *ReservationManager
	payments     *Reconciler
	tickets      *TicketEngine
	clock        Clock
	retry        RetryPolicy
	publisher    EventPublisher
	sweepBatch   int
}

func NewCoordinator(store *repository.Store, opts Options) *Coordinator {
	if opts.Policy == nil {
		opts.Policy = StaticPolicy{}
	}
	if opts.Clock == nil {
		opts.Clock = SystemClock()
	}
	if opts.SweepBatch <= 0 {
		opts.SweepBatch = 100
	}

	ledger := NewLedger(store, opts.Policy, opts.Clock)
	reservations := NewReservationManager(store, ledger, opts.Policy, opts.Clock)
	tickets := NewTicketEngine(store, opts.Policy, opts.Clock)
	reservations.OnRelease(tickets.InvalidateForReservation)

	c := &Coordinator{
		store:        store,
		ledger:       ledger,
		reservations: reservations,
		payments:     NewReconciler(store, reservations, opts.Clock),
		tickets:      tickets,
		clock:        opts.Clock,
		retry:        opts.Retry,
		publisher:    opts.Publisher,
		sweepBatch:   opts.SweepBatch,
	}
	ledger.run = c.do
	reservations.run = c.do
	return c
}

// do runs fn in a transaction, retrying the whole unit on contention.
func (c *Coordinator) do(ctx context.Context, fn func(ctx context.Context) error) error {
	err := c.retry.Do(ctx, func(ctx context.Context) error {
		txCtx, ob := withOutbox(ctx)
		if err := c.store.Tx.WithinTransaction(txCtx, fn); err != nil {
			return err
		}
		c.flush(ob)
		return nil
	})
	return surface(err)
}

func (c *Coordinator) flush(ob *outbox) {
	if c.publisher == nil {
		return
	}
	for _, ev := range ob.events {
		if err := c.publisher.Publish(ev.routingKey, ev.payload); err != nil {
			log.Printf("[Coordinator] failed to publish %s: %v", ev.routingKey, err)
		}
	}
}

func (c *Coordinator) CreateTier(ctx context.Context, tier *models.TicketTier) (*models.TicketTier, error) {
	err := c.do(ctx, func(ctx context.Context) error {
		tier.ID = 0
		return c.ledger.CreateTier(ctx, tier)
	})
	if err != nil {
		return nil, err
	}
	return tier, nil
}

func (c *Coordinator) Tier(ctx context.Context, id uint) (*models.TicketTier, error) {
	tier, err := c.ledger.Tier(ctx, id)
	return tier, surface(err)
}

func (c *Coordinator) SetTierCapacity(ctx context.Context, id uint, capacity *int) (*models.TicketTier, error) {
	var tier *models.TicketTier
	err := c.do(ctx, func(ctx context.Context) error {
		var err error
		tier, err = c.ledger.SetCapacity(ctx, id, capacity)
		return err
	})
	if err != nil {
		return nil, err
	}
	return tier, nil
}

func (c *Coordinator) RetireTier(ctx context.Context, id uint) (*models.TicketTier, error) {
	var tier *models.TicketTier
	err := c.do(ctx, func(ctx context.Context) error {
		var err error
		tier, err = c.ledger.Retire(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return tier, nil
}

func (c *Coordinator) CreateTable(ctx context.Context, table *models.Table) (*models.Table, error) {
	err := c.do(ctx, func(ctx context.Context) error {
		table.ID = 0
		return c.reservations.CreateTable(ctx, table)
	})
	if err != nil {
		return nil, err
	}
	return table, nil
}

func (c *Coordinator) Table(ctx context.Context, id uint) (*models.Table, error) {
	table, err := c.reservations.Table(ctx, id)
	return table, surface(err)
}

func (c *Coordinator) SetTableStatus(ctx context.Context, id uint, status models.TableStatus) (*models.Table, error) {
	var table *models.Table
	err := c.do(ctx, func(ctx context.Context) error {
		var err error
		table, err = c.reservations.SetTableStatus(ctx, id, status)
		return err
	})
	if err != nil {
		return nil, err
	}
	return table, nil
}

// Checkout holds capacity, binds the table and applies an optional first
// payment as one unit: a failure at any step leaves nothing held.
func (c *Coordinator) Checkout(ctx context.Context, req CheckoutRequest) (*CheckoutResult, error) {
	var result *CheckoutResult
	err := c.do(ctx, func(ctx context.Context) error {
		res, err := c.reservations.Create(ctx, req.ReservationRequest)
		if err != nil {
			return err
		}
		result = &CheckoutResult{Reservation: res, Outcome: res.Outcome()}
		if res.TotalPrice == 0 {
			if result.Ticket, err = c.settleFree(ctx, res); err != nil {
				return err
			}
		}
		if req.Payment == nil {
			return nil
		}

		pr, err := c.payments.Apply(ctx, PaymentRequest{
			ReservationID: res.ID,
			Amount:        req.Payment.Amount,
			Reference:     req.Payment.Reference,
			Method:        req.Payment.Method,
		})
		if err != nil {
			return err
		}
		ticket, err := c.tickets.Settle(ctx, pr)
		if err != nil {
			return err
		}
		result = &CheckoutResult{Reservation: pr.Reservation, Outcome: pr.Outcome, Ticket: ticket}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (c *Coordinator) CreateReservation(ctx context.Context, req ReservationRequest) (*models.TableReservation, error) {
	var res *models.TableReservation
	err := c.do(ctx, func(ctx context.Context) error {
		var err error
		if res, err = c.reservations.Create(ctx, req); err != nil {
			return err
		}
		if res.TotalPrice == 0 {
			_, err = c.settleFree(ctx, res)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// settleFree confirms a zero-priced reservation and issues its ticket.
func (c *Coordinator) settleFree(ctx context.Context, res *models.TableReservation) (*models.Ticket, error) {
	pr, err := c.payments.SettleFree(ctx, res)
	if err != nil {
		return nil, err
	}
	return c.tickets.Settle(ctx, pr)
}

func (c *Coordinator) Reservation(ctx context.Context, id uint) (*ReservationView, error) {
	res, err := c.reservations.Get(ctx, id)
	if err != nil {
		return nil, surface(err)
	}
	payments, err := c.payments.History(ctx, id)
	if err != nil {
		return nil, surface(err)
	}
	return &ReservationView{Reservation: res, Outcome: res.Outcome(), Payments: payments}, nil
}

func (c *Coordinator) CancelReservation(ctx context.Context, id uint, actor string) (*models.TableReservation, error) {
	var res *models.TableReservation
	err := c.do(ctx, func(ctx context.Context) error {
		var err error
		res, err = c.reservations.Cancel(ctx, id, actor)
		return err
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (c *Coordinator) ApplyPayment(ctx context.Context, req PaymentRequest) (*PaymentApplied, error) {
	var out *PaymentApplied
	err := c.do(ctx, func(ctx context.Context) error {
		pr, err := c.payments.Apply(ctx, req)
		if err != nil {
			return err
		}
		ticket, err := c.tickets.Settle(ctx, pr)
		if err != nil {
			return err
		}
		out = &PaymentApplied{
			Reservation: pr.Reservation,
			Payment:     pr.Payment,
			Outcome:     pr.Outcome,
			Replayed:    pr.Replayed,
			Ticket:      ticket,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Coordinator) Ticket(ctx context.Context, id uint) (*models.Ticket, error) {
	t, err := c.tickets.Get(ctx, id)
	return t, surface(err)
}

func (c *Coordinator) TicketHistory(ctx context.Context, id uint) ([]models.TicketTransition, error) {
	history, err := c.tickets.History(ctx, id)
	return history, surface(err)
}

func (c *Coordinator) ScanTicket(ctx context.Context, id uint, admit int, actor string) (*ScanResult, error) {
	var result *ScanResult
	err := c.do(ctx, func(ctx context.Context) error {
		var err error
		result, err = c.tickets.Scan(ctx, id, admit, actor)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (c *Coordinator) ScanByCode(ctx context.Context, code string, admit int, actor string) (*ScanResult, error) {
	var result *ScanResult
	err := c.do(ctx, func(ctx context.Context) error {
		t, err := c.tickets.FindByCode(ctx, code)
		if err != nil {
			return err
		}
		result, err = c.tickets.Scan(ctx, t.ID, admit, actor)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (c *Coordinator) RevokeTicket(ctx context.Context, id uint, actor, reason string) (*models.Ticket, error) {
	var t *models.Ticket
	err := c.do(ctx, func(ctx context.Context) error {
		var err error
		t, err = c.tickets.Revoke(ctx, id, actor, reason)
		return err
	})
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (c *Coordinator) RedeemTicket(ctx context.Context, id uint, actor string) (*RedeemResult, error) {
	var result *RedeemResult
	err := c.do(ctx, func(ctx context.Context) error {
		var err error
		result, err = c.tickets.Redeem(ctx, id, actor)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// SweepExpired expires unpaid reservations past their deadline, then
// orphaned holds. Each item is its own unit of work, so a payment that
// committed first always wins over the sweep.
func (c *Coordinator) SweepExpired(ctx context.Context) (*SweepReport, error) {
	now := c.clock.Now()
	expired, err := c.reservations.ExpireStale(ctx, now, c.sweepBatch)
	if err != nil {
		return nil, surface(err)
	}
	holds, err := c.ledger.ExpireHolds(ctx, now, c.sweepBatch)
	if err != nil {
		return nil, surface(err)
	}
	return &SweepReport{Reservations: len(expired), Holds: holds}, nil
}
