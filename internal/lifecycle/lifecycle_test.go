package lifecycle

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNext_ListedTransitions(t *testing.T) {
	cases := []struct {
		from Status
		ev   Event
		to   Status
	}{
		{StatusValid, EventFullScan, StatusUsed},
		{StatusValid, EventPartialScan, StatusPartiallyUsed},
		{StatusPartiallyUsed, EventFullScan, StatusUsed},
		{StatusPartiallyUsed, EventPartialScan, StatusPartiallyUsed},
		{StatusPartiallyPaid, EventPaymentCompleted, StatusValid},
		{StatusPartiallyPaid, EventReservationCancelled, StatusInvalidated},
		{StatusPartiallyPaid, EventRevoke, StatusInvalidated},
		{StatusValid, EventRevoke, StatusInvalidated},
		{StatusValid, EventReservationCancelled, StatusInvalidated},
		{StatusPartiallyUsed, EventRevoke, StatusInvalidated},
		{StatusPartiallyUsed, EventReservationCancelled, StatusInvalidated},
		{StatusValid, EventRedeem, StatusRedeemed},
		{StatusPartiallyUsed, EventRedeem, StatusRedeemed},
		{StatusUsed, EventRedeem, StatusRedeemed},
	}

	for _, tc := range cases {
		t.Run(string(tc.from)+"/"+string(tc.ev), func(t *testing.T) {
			got, err := Next(tc.from, tc.ev)
			require.NoError(t, err)
			assert.Equal(t, tc.to, got)
		})
	}
}

func TestNext_EveryUnlistedPairIsRejected(t *testing.T) {
	listed := map[Status]map[Event]bool{
		StatusValid:         {EventFullScan: true, EventPartialScan: true, EventRevoke: true, EventReservationCancelled: true, EventRedeem: true},
		StatusPartiallyUsed: {EventFullScan: true, EventPartialScan: true, EventRevoke: true, EventReservationCancelled: true, EventRedeem: true},
		StatusPartiallyPaid: {EventPaymentCompleted: true, EventRevoke: true, EventReservationCancelled: true},
		StatusUsed:          {EventRedeem: true},
	}

	rejected := 0
	for _, s := range Statuses() {
		for _, ev := range append(Events(), EventIssue) {
			if listed[s][ev] {
				continue
			}
			got, err := Next(s, ev)
			assert.True(t, errors.Is(err, ErrInvalidTransition), "%s on %s", ev, s)
			assert.Equal(t, s, got)
			rejected++
		}
	}
	assert.Equal(t, len(Statuses())*(len(Events())+1)-14, rejected)
}

func TestTerminalStatesHaveNoAdmissionExit(t *testing.T) {
	for _, s := range []Status{StatusInvalidated, StatusRedeemed} {
		for _, ev := range Events() {
			_, err := Next(s, ev)
			assert.ErrorIs(t, err, ErrInvalidTransition)
		}
	}
	for _, ev := range []Event{EventFullScan, EventPartialScan, EventRevoke, EventReservationCancelled, EventPaymentCompleted} {
		_, err := Next(StatusUsed, ev)
		assert.ErrorIs(t, err, ErrInvalidTransition)
	}
}

func TestStatusPredicates(t *testing.T) {
	assert.True(t, StatusValid.Admissible())
	assert.True(t, StatusPartiallyUsed.Admissible())
	assert.False(t, StatusPartiallyPaid.Admissible())
	assert.False(t, StatusUsed.Admissible())

	assert.True(t, StatusUsed.Terminal())
	assert.True(t, StatusInvalidated.Terminal())
	assert.True(t, StatusRedeemed.Terminal())
	assert.False(t, StatusPartiallyPaid.Terminal())

	assert.True(t, StatusRedeemed.Known())
	assert.False(t, Status("PAID").Known())
}

func TestScanEventAndInitialStatus(t *testing.T) {
	assert.Equal(t, EventPartialScan, ScanEvent(4, 2))
	assert.Equal(t, EventFullScan, ScanEvent(2, 2))
	assert.Equal(t, StatusPartiallyPaid, InitialStatus(true))
	assert.Equal(t, StatusValid, InitialStatus(false))
}
