package service

import (
	"context"
	"sync"
	"testing"

	"github.com/Eursukkul/booking-microservice/allocation-service/internal/lifecycle"
	"github.com/Eursukkul/booking-microservice/allocation-service/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newReservation(t *testing.T, env *testEnv, tierID *uint, guests int, total int64) *models.TableReservation {
	t.Helper()
	req := ReservationRequest{TierID: tierID, ClientID: "client-1", GuestCount: guests, TotalPrice: total}
	if tierID == nil {
		req.TableID = &env.table(t).ID
	}
	res, err := env.svc.CreateReservation(context.Background(), req)
	require.NoError(t, err)
	return res
}

func TestApplyPayment_PartialThenCompleteThenOverpayment(t *testing.T) {
	env := newEnv(t, StaticPolicy{})
	tier := env.tier(t, intPtr(10))
	res := newReservation(t, env, &tier.ID, 2, 100)
	ctx := context.Background()

	first, err := env.svc.ApplyPayment(ctx, PaymentRequest{ReservationID: res.ID, Amount: 50})
	require.NoError(t, err)
	assert.Equal(t, models.OutcomePartial, first.Outcome)
	assert.Nil(t, first.Ticket)

	second, err := env.svc.ApplyPayment(ctx, PaymentRequest{ReservationID: res.ID, Amount: 50})
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeComplete, second.Outcome)
	assert.Equal(t, models.ReservationConfirmed, second.Reservation.Status)
	require.NotNil(t, second.Ticket)
	assert.Equal(t, lifecycle.StatusValid, second.Ticket.Status)
	assert.Equal(t, 2, second.Ticket.GuestAllotment)

	_, err = env.svc.ApplyPayment(ctx, PaymentRequest{ReservationID: res.ID, Amount: 1})
	requireKind(t, err, KindOverpaymentRejected)

	view, err := env.svc.Reservation(ctx, res.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(100), view.Reservation.AmountPaid)
	assert.Len(t, view.Payments, 2)

	got := env.reload(t, tier.ID)
	assert.Equal(t, 0, got.HeldCount)
	assert.Equal(t, 2, got.SoldCount)
}

func TestApplyPayment_RejectsNonPositiveAmounts(t *testing.T) {
	env := newEnv(t, StaticPolicy{})
	res := newReservation(t, env, nil, 1, 100)
	ctx := context.Background()

	for _, amount := range []int64{0, -5} {
		_, err := env.svc.ApplyPayment(ctx, PaymentRequest{ReservationID: res.ID, Amount: amount})
		requireKind(t, err, KindInvalidAmount)
	}

	view, err := env.svc.Reservation(ctx, res.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), view.Reservation.AmountPaid)
	assert.Equal(t, models.OutcomeUnpaid, view.Outcome)
}

func TestApplyPayment_ReplayedReferenceChangesNothing(t *testing.T) {
	env := newEnv(t, StaticPolicy{})
	res := newReservation(t, env, nil, 1, 100)
	ctx := context.Background()

	first, err := env.svc.ApplyPayment(ctx, PaymentRequest{ReservationID: res.ID, Amount: 40, Reference: "gw-123"})
	require.NoError(t, err)
	assert.False(t, first.Replayed)

	again, err := env.svc.ApplyPayment(ctx, PaymentRequest{ReservationID: res.ID, Amount: 40, Reference: "gw-123"})
	require.NoError(t, err)
	assert.True(t, again.Replayed)
	assert.Equal(t, models.OutcomePartial, again.Outcome)
	assert.Equal(t, int64(40), again.Reservation.AmountPaid)

	other := newReservation(t, env, nil, 1, 100)
	_, err = env.svc.ApplyPayment(ctx, PaymentRequest{ReservationID: other.ID, Amount: 40, Reference: "gw-123"})
	requireKind(t, err, KindInvalidRequest)
}

func TestApplyPayment_ConcurrentCallsNeverExceedTotal(t *testing.T) {
	env := newEnv(t, StaticPolicy{})
	res := newReservation(t, env, nil, 1, 100)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
		rejected int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.svc.ApplyPayment(context.Background(), PaymentRequest{ReservationID: res.ID, Amount: 10})
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				accepted++
			} else if assert.ErrorIs(t, err, ErrOverpaymentRejected) {
				rejected++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, accepted)
	assert.Equal(t, 10, rejected)

	view, err := env.svc.Reservation(context.Background(), res.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(100), view.Reservation.AmountPaid)
	assert.Equal(t, models.ReservationConfirmed, view.Reservation.Status)
}

func TestApplyPayment_CancelledReservation(t *testing.T) {
	env := newEnv(t, StaticPolicy{})
	res := newReservation(t, env, nil, 1, 100)
	ctx := context.Background()

	_, err := env.svc.CancelReservation(ctx, res.ID, "client-1")
	require.NoError(t, err)

	_, err = env.svc.ApplyPayment(ctx, PaymentRequest{ReservationID: res.ID, Amount: 100})
	requireKind(t, err, KindReservationExpired)

	_, err = env.svc.ApplyPayment(ctx, PaymentRequest{ReservationID: 999, Amount: 100})
	requireKind(t, err, KindNotFound)
}

func TestApplyPayment_PartialAdmissionPolicy(t *testing.T) {
	ctx := context.Background()

	t.Run("disallowed holds issuance", func(t *testing.T) {
		env := newEnv(t, StaticPolicy{})
		tier := env.tier(t, intPtr(10))
		res := newReservation(t, env, &tier.ID, 2, 100)

		applied, err := env.svc.ApplyPayment(ctx, PaymentRequest{ReservationID: res.ID, Amount: 30})
		require.NoError(t, err)
		assert.Nil(t, applied.Ticket)
		assert.Nil(t, applied.Reservation.TicketID)
	})

	t.Run("allowed for the event issues PARTIALLY_PAID", func(t *testing.T) {
		env := newEnv(t, StaticPolicy{PartialEvents: map[uint]bool{1: true}})
		tier := env.tier(t, intPtr(10))
		res := newReservation(t, env, &tier.ID, 2, 100)

		partial, err := env.svc.ApplyPayment(ctx, PaymentRequest{ReservationID: res.ID, Amount: 30})
		require.NoError(t, err)
		require.NotNil(t, partial.Ticket)
		assert.Equal(t, lifecycle.StatusPartiallyPaid, partial.Ticket.Status)

		_, err = env.svc.ScanTicket(ctx, partial.Ticket.ID, 1, "gate-1")
		requireKind(t, err, KindTicketNotAdmissible)

		more, err := env.svc.ApplyPayment(ctx, PaymentRequest{ReservationID: res.ID, Amount: 20})
		require.NoError(t, err)
		require.NotNil(t, more.Ticket)
		assert.Equal(t, partial.Ticket.ID, more.Ticket.ID)
		assert.Equal(t, lifecycle.StatusPartiallyPaid, more.Ticket.Status)

		full, err := env.svc.ApplyPayment(ctx, PaymentRequest{ReservationID: res.ID, Amount: 50})
		require.NoError(t, err)
		require.NotNil(t, full.Ticket)
		assert.Equal(t, partial.Ticket.ID, full.Ticket.ID)
		assert.Equal(t, lifecycle.StatusValid, full.Ticket.Status)

		history, err := env.svc.TicketHistory(ctx, full.Ticket.ID)
		require.NoError(t, err)
		require.Len(t, history, 2)
		assert.Equal(t, lifecycle.EventIssue, history[0].Event)
		assert.Equal(t, lifecycle.EventPaymentCompleted, history[1].Event)
	})

	t.Run("underpaid ticket is invalidated on expiry", func(t *testing.T) {
		env := newEnv(t, StaticPolicy{AllowPartial: true})
		res := newReservation(t, env, nil, 2, 100)

		partial, err := env.svc.ApplyPayment(ctx, PaymentRequest{ReservationID: res.ID, Amount: 10})
		require.NoError(t, err)
		require.NotNil(t, partial.Ticket)

		env.clock.Advance(testTTL * 2)
		report, err := env.svc.SweepExpired(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, report.Reservations)

		ticket, err := env.svc.Ticket(ctx, partial.Ticket.ID)
		require.NoError(t, err)
		assert.Equal(t, lifecycle.StatusInvalidated, ticket.Status)
	})
}
