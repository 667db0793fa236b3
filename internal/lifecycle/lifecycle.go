// Package lifecycle holds the ticket status machine. Every transition a
// ticket may take is listed in one table; anything else is rejected.
package lifecycle

import (
	"errors"
	"fmt"
)

type Status string

const (
	StatusValid         Status = "VALID"
	StatusUsed          Status = "USED"
	StatusInvalidated   Status = "INVALIDATED"
	StatusPartiallyUsed Status = "PARTIALLY_USED"
	StatusPartiallyPaid Status = "PARTIALLY_PAID"
	StatusRedeemed      Status = "REDEEMED"
)

type Event string

const (
	EventFullScan             Event = "FULL_SCAN"
	EventPartialScan          Event = "PARTIAL_SCAN"
	EventPaymentCompleted     Event = "PAYMENT_COMPLETED"
	EventReservationCancelled Event = "RESERVATION_CANCELLED"
	EventRevoke               Event = "REVOKE"
	EventRedeem               Event = "REDEEM"

	// EventIssue labels the first audit entry of a ticket. It is not a
	// transition and Next always rejects it.
	EventIssue Event = "ISSUE"
)

var ErrInvalidTransition = errors.New("invalid ticket transition")

var transitions = map[Status]map[Event]Status{
	StatusValid: {
		EventFullScan:             StatusUsed,
		EventPartialScan:          StatusPartiallyUsed,
		EventRevoke:               StatusInvalidated,
		EventReservationCancelled: StatusInvalidated,
		EventRedeem:               StatusRedeemed,
	},
	StatusPartiallyUsed: {
		EventFullScan:             StatusUsed,
		EventPartialScan:          StatusPartiallyUsed,
		EventRevoke:               StatusInvalidated,
		EventReservationCancelled: StatusInvalidated,
		EventRedeem:               StatusRedeemed,
	},
	StatusPartiallyPaid: {
		EventPaymentCompleted:     StatusValid,
		EventRevoke:               StatusInvalidated,
		EventReservationCancelled: StatusInvalidated,
	},
	StatusUsed: {
		EventRedeem: StatusRedeemed,
	},
}

// Statuses lists every known status.
func Statuses() []Status {
	return []Status{StatusValid, StatusUsed, StatusInvalidated, StatusPartiallyUsed, StatusPartiallyPaid, StatusRedeemed}
}

// Events lists every event that may drive a transition.
func Events() []Event {
	return []Event{EventFullScan, EventPartialScan, EventPaymentCompleted, EventReservationCancelled, EventRevoke, EventRedeem}
}

func (s Status) Known() bool {
	for _, k := range Statuses() {
		if s == k {
			return true
		}
	}
	return false
}

// Terminal reports whether the status ends admission. USED still allows
// redemption for a linked reward.
func (s Status) Terminal() bool {
	return s == StatusUsed || s == StatusInvalidated || s == StatusRedeemed
}

// Admissible reports whether a check-in scan may be attempted.
func (s Status) Admissible() bool {
	return s == StatusValid || s == StatusPartiallyUsed
}

// Next returns the status reached from s on ev.
func Next(s Status, ev Event) (Status, error) {
	if to, ok := transitions[s][ev]; ok {
		return to, nil
	}
	return s, fmt.Errorf("%w: %s on %s", ErrInvalidTransition, ev, s)
}

// ScanEvent picks the scan event for admitting admit guests out of remaining.
func ScanEvent(remaining, admit int) Event {
	if admit >= remaining {
		return EventFullScan
	}
	return EventPartialScan
}

// InitialStatus is the status a ticket is issued in.
func InitialStatus(partiallyPaid bool) Status {
	if partiallyPaid {
		return StatusPartiallyPaid
	}
	return StatusValid
}
