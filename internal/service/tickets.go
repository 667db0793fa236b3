package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/Eursukkul/booking-microservice/allocation-service/internal/lifecycle"
	"github.com/Eursukkul/booking-microservice/allocation-service/internal/models"
	"github.com/Eursukkul/booking-microservice/allocation-service/internal/repository"
	"github.com/google/uuid"
)

const (
	ActorPayments = "system:payments"
	ActorIssuer   = "system:issuer"
)

type IssueRequest struct {
	TierID        *uint
	ReservationID *uint
	HolderID      string
	Guests        int
	Status        lifecycle.Status
}

type ScanResult struct {
	Ticket    *models.Ticket
	Admitted  int
	Remaining int
}

type RedeemResult struct {
	Ticket *models.Ticket
	Grant  *models.UserReward
}

// TicketEngine issues tickets and is the only writer of ticket status.
// Every status change is appended to the ticket's transition history.
type TicketEngine struct {
	store  *repository.Store
	policy Policy
	clock  Clock
}

func NewTicketEngine(store *repository.Store, policy Policy, clock Clock) *TicketEngine {
	return &TicketEngine{store: store, policy: policy, clock: clock}
}

// Settle reacts to an applied payment: a Complete outcome issues a VALID
// ticket or promotes a PARTIALLY_PAID one, a Partial outcome issues a
// PARTIALLY_PAID ticket when the event allows partial admission. It
// returns the reservation's ticket, or nil when there is none yet.
func (e *TicketEngine) Settle(ctx context.Context, pr *PaymentResult) (*models.Ticket, error) {
	res := pr.Reservation
	var ticket *models.Ticket
	err := e.store.Tx.WithinTransaction(ctx, func(ctx context.Context) error {
		if res.TicketID != nil {
			t, err := e.store.Tickets.FindByIDForUpdate(ctx, *res.TicketID)
			if err != nil {
				return lookup(err, "ticket", *res.TicketID)
			}
			ticket = t
			if !pr.Replayed && pr.Outcome == models.OutcomeComplete && t.Status == lifecycle.StatusPartiallyPaid {
				return e.transition(ctx, t, lifecycle.EventPaymentCompleted, ActorPayments, 0, "")
			}
			return nil
		}
		if pr.Replayed {
			return nil
		}

		var status lifecycle.Status
		switch pr.Outcome {
		case models.OutcomeComplete:
			status = lifecycle.InitialStatus(false)
		case models.OutcomePartial:
			allowed, err := e.partialAllowed(ctx, res)
			if err != nil || !allowed {
				return err
			}
			status = lifecycle.InitialStatus(true)
		default:
			return nil
		}

		t, err := e.Issue(ctx, IssueRequest{
			TierID:        res.TierID,
			ReservationID: &res.ID,
			HolderID:      res.ClientID,
			Guests:        res.GuestCount,
			Status:        status,
		})
		if err != nil {
			return err
		}
		res.TicketID = &t.ID
		if err := e.store.Reservations.Update(ctx, res); err != nil {
			return err
		}
		ticket = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ticket, nil
}

func (e *TicketEngine) partialAllowed(ctx context.Context, res *models.TableReservation) (bool, error) {
	var eventID uint
	if res.TierID != nil {
		tier, err := e.store.Tiers.FindByID(ctx, *res.TierID)
		if err != nil {
			return false, lookup(err, "tier", *res.TierID)
		}
		eventID = tier.EventID
	}
	return e.policy.AllowPartialAdmission(eventID), nil
}

// Issue creates a ticket and, when its tier links a reward, grants that
// reward to the holder in the same unit of work.
func (e *TicketEngine) Issue(ctx context.Context, req IssueRequest) (*models.Ticket, error) {
	if req.Guests < 1 {
		return nil, newError(KindInvalidRequest, "a ticket admits at least one guest")
	}
	if req.Status != lifecycle.StatusValid && req.Status != lifecycle.StatusPartiallyPaid {
		return nil, newError(KindInvalidRequest, "tickets are issued VALID or PARTIALLY_PAID, not %s", req.Status)
	}

	var ticket *models.Ticket
	err := e.store.Tx.WithinTransaction(ctx, func(ctx context.Context) error {
		var rewardID *uint
		if req.TierID != nil {
			tier, err := e.store.Tiers.FindByID(ctx, *req.TierID)
			if err != nil {
				return lookup(err, "tier", *req.TierID)
			}
			rewardID = tier.RewardID
		}

		ticket = &models.Ticket{
			Code:           newTicketCode(),
			TierID:         req.TierID,
			ReservationID:  req.ReservationID,
			RewardID:       rewardID,
			HolderID:       req.HolderID,
			Status:         req.Status,
			GuestAllotment: req.Guests,
		}
		if err := e.store.Tickets.Create(ctx, ticket); err != nil {
			return err
		}
		if err := e.record(ctx, ticket, "", lifecycle.EventIssue, ActorIssuer, 0, ""); err != nil {
			return err
		}

		now := e.clock.Now()
		if rewardID != nil {
			grant := &models.UserReward{RewardID: *rewardID, HolderID: req.HolderID, TicketID: ticket.ID, Status: models.UserRewardGranted}
			if err := e.store.Rewards.Grant(ctx, grant); err != nil {
				return err
			}
			emit(ctx, RouteRewardGranted, RewardEvent{
				UserRewardID: grant.ID,
				RewardID:     grant.RewardID,
				TicketID:     ticket.ID,
				HolderID:     grant.HolderID,
				Status:       string(grant.Status),
				At:           now,
			})
		}
		emit(ctx, RouteTicketIssued, ticketEvent(ticket, "", ActorIssuer, now))
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("[Tickets] issued ticket %d (%s) as %s", ticket.ID, ticket.Code, ticket.Status)
	return ticket, nil
}

// Scan admits guests against the ticket's remaining allotment.
func (e *TicketEngine) Scan(ctx context.Context, ticketID uint, admit int, actor string) (*ScanResult, error) {
	var result *ScanResult
	err := e.store.Tx.WithinTransaction(ctx, func(ctx context.Context) error {
		peek, err := e.store.Tickets.FindByID(ctx, ticketID)
		if err != nil {
			return lookup(err, "ticket", ticketID)
		}

		// The table is locked before the ticket, matching cancellation.
		var table *models.Table
		if peek.AdmittedCount == 0 && peek.ReservationID != nil {
			res, err := e.store.Reservations.FindByID(ctx, *peek.ReservationID)
			if err != nil {
				return lookup(err, "reservation", *peek.ReservationID)
			}
			if res.TableID != nil {
				if table, err = e.store.Tables.FindByIDForUpdate(ctx, *res.TableID); err != nil {
					return lookup(err, "table", *res.TableID)
				}
			}
		}

		t, err := e.store.Tickets.FindByIDForUpdate(ctx, ticketID)
		if err != nil {
			return lookup(err, "ticket", ticketID)
		}
		if !t.Status.Admissible() {
			return &Error{Kind: KindTicketNotAdmissible, Message: "ticket is not admissible", TicketID: t.ID, State: string(t.Status)}
		}
		if admit < 1 {
			return &Error{Kind: KindInvalidRequest, Message: "admit count must be at least 1", TicketID: t.ID}
		}
		remaining := t.Remaining()
		if admit > remaining {
			return &Error{
				Kind:     KindTicketNotAdmissible,
				Message:  fmt.Sprintf("requested %d guests but only %d remain", admit, remaining),
				TicketID: t.ID,
				State:    string(t.Status),
			}
		}

		ev := lifecycle.ScanEvent(remaining, admit)
		t.AdmittedCount += admit
		if err := e.transition(ctx, t, ev, actor, admit, ""); err != nil {
			return err
		}

		if table != nil && table.Status == models.TableReserved &&
			table.CurrentReservationID != nil && *table.CurrentReservationID == *t.ReservationID {
			table.Status = models.TableOccupied
			if err := e.store.Tables.Update(ctx, table); err != nil {
				return err
			}
		}

		result = &ScanResult{Ticket: t, Admitted: admit, Remaining: t.Remaining()}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (e *TicketEngine) FindByCode(ctx context.Context, code string) (*models.Ticket, error) {
	t, err := e.store.Tickets.FindByCode(ctx, strings.TrimSpace(code))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, newError(KindNotFound, "ticket code %s not found", code)
		}
		return nil, err
	}
	return t, nil
}

func (e *TicketEngine) Revoke(ctx context.Context, ticketID uint, actor, reason string) (*models.Ticket, error) {
	var ticket *models.Ticket
	err := e.store.Tx.WithinTransaction(ctx, func(ctx context.Context) error {
		var err error
		ticket, err = e.store.Tickets.FindByIDForUpdate(ctx, ticketID)
		if err != nil {
			return lookup(err, "ticket", ticketID)
		}
		return e.transition(ctx, ticket, lifecycle.EventRevoke, actor, 0, reason)
	})
	if err != nil {
		return nil, err
	}

	log.Printf("[Tickets] ticket %d revoked by %s", ticket.ID, actor)
	return ticket, nil
}

// InvalidateForReservation voids the ticket of a cancelled or expired
// reservation. Tickets already in a terminal status keep it.
func (e *TicketEngine) InvalidateForReservation(ctx context.Context, res *models.TableReservation, actor string) error {
	if res.TicketID == nil {
		return nil
	}
	t, err := e.store.Tickets.FindByIDForUpdate(ctx, *res.TicketID)
	if err != nil {
		return lookup(err, "ticket", *res.TicketID)
	}
	if t.Status.Terminal() {
		return nil
	}
	return e.transition(ctx, t, lifecycle.EventReservationCancelled, actor, 0, "reservation "+string(res.Status))
}

// Redeem exchanges the ticket for its linked reward grant.
func (e *TicketEngine) Redeem(ctx context.Context, ticketID uint, actor string) (*RedeemResult, error) {
	var result *RedeemResult
	err := e.store.Tx.WithinTransaction(ctx, func(ctx context.Context) error {
		t, err := e.store.Tickets.FindByIDForUpdate(ctx, ticketID)
		if err != nil {
			return lookup(err, "ticket", ticketID)
		}
		if t.RewardID == nil {
			return &Error{Kind: KindInvalidTransition, Message: "ticket has no linked reward", TicketID: t.ID, State: string(t.Status)}
		}
		if err := e.transition(ctx, t, lifecycle.EventRedeem, actor, 0, ""); err != nil {
			return err
		}

		grant, err := e.store.Rewards.FindGrantByTicketForUpdate(ctx, t.ID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return &Error{Kind: KindNotFound, Message: "no reward grant for ticket", TicketID: t.ID}
			}
			return err
		}
		now := e.clock.Now()
		grant.Status = models.UserRewardRedeemed
		grant.RedeemedAt = &now
		if err := e.store.Rewards.UpdateGrant(ctx, grant); err != nil {
			return err
		}

		emit(ctx, RouteTicketRedeemed, RewardEvent{
			UserRewardID: grant.ID,
			RewardID:     grant.RewardID,
			TicketID:     t.ID,
			HolderID:     grant.HolderID,
			Status:       string(grant.Status),
			At:           now,
		})
		result = &RedeemResult{Ticket: t, Grant: grant}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (e *TicketEngine) Get(ctx context.Context, id uint) (*models.Ticket, error) {
	t, err := e.store.Tickets.FindByID(ctx, id)
	if err != nil {
		return nil, lookup(err, "ticket", id)
	}
	return t, nil
}

func (e *TicketEngine) History(ctx context.Context, id uint) ([]models.TicketTransition, error) {
	if _, err := e.Get(ctx, id); err != nil {
		return nil, err
	}
	return e.store.Tickets.ListTransitions(ctx, id)
}

// transition moves a locked ticket along ev, persists it and records the
// audit entry.
func (e *TicketEngine) transition(ctx context.Context, t *models.Ticket, ev lifecycle.Event, actor string, admitted int, reason string) error {
	from := t.Status
	to, err := lifecycle.Next(from, ev)
	if err != nil {
		return &Error{Kind: KindInvalidTransition, Message: err.Error(), TicketID: t.ID, State: string(from)}
	}
	t.Status = to
	if err := e.store.Tickets.Update(ctx, t); err != nil {
		return err
	}
	if err := e.record(ctx, t, from, ev, actor, admitted, reason); err != nil {
		return err
	}
	emit(ctx, RouteTicketStatusChanged, ticketEvent(t, from, actor, e.clock.Now()))
	return nil
}

func (e *TicketEngine) record(ctx context.Context, t *models.Ticket, from lifecycle.Status, ev lifecycle.Event, actor string, admitted int, reason string) error {
	if actor == "" {
		actor = "unknown"
	}
	return e.store.Tickets.AddTransition(ctx, &models.TicketTransition{
		TicketID:   t.ID,
		FromStatus: from,
		ToStatus:   t.Status,
		Event:      ev,
		Actor:      actor,
		Admitted:   admitted,
		Reason:     reason,
		At:         e.clock.Now(),
	})
}

func newTicketCode() string {
	return "TKT-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:12])
}

func ticketEvent(t *models.Ticket, from lifecycle.Status, actor string, at time.Time) TicketEvent {
	return TicketEvent{
		TicketID:      t.ID,
		Code:          t.Code,
		From:          string(from),
		Status:        string(t.Status),
		TierID:        t.TierID,
		ReservationID: t.ReservationID,
		RewardID:      t.RewardID,
		HolderID:      t.HolderID,
		Actor:         actor,
		At:            at,
	}
}
