package service

import (
	"errors"
	"fmt"

	"github.com/Eursukkul/booking-microservice/allocation-service/internal/repository"
)

type Kind string

const (
	KindCapacityExceeded    Kind = "CapacityExceeded"
	KindTableUnavailable    Kind = "TableUnavailable"
	KindOverpaymentRejected Kind = "OverpaymentRejected"
	KindTicketNotAdmissible Kind = "TicketNotAdmissible"
	KindReservationExpired  Kind = "ReservationExpired"
	KindInvalidTransition   Kind = "InvalidTransition"
	KindConcurrencyConflict Kind = "ConcurrencyConflict"
	KindInvalidAmount       Kind = "InvalidAmount"
	KindInvalidRequest      Kind = "InvalidRequest"
	KindNotFound            Kind = "NotFound"
)

var (
	ErrCapacityExceeded    = errors.New("capacity exceeded")
	ErrTableUnavailable    = errors.New("table unavailable")
	ErrOverpaymentRejected = errors.New("overpayment rejected")
	ErrTicketNotAdmissible = errors.New("ticket not admissible")
	ErrReservationExpired  = errors.New("reservation expired")
	ErrInvalidTransition   = errors.New("invalid transition")
	ErrConcurrencyConflict = errors.New("concurrency conflict")
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrInvalidRequest      = errors.New("invalid request")
	ErrNotFound            = errors.New("not found")
)

var sentinels = map[Kind]error{
	KindCapacityExceeded:    ErrCapacityExceeded,
	KindTableUnavailable:    ErrTableUnavailable,
	KindOverpaymentRejected: ErrOverpaymentRejected,
	KindTicketNotAdmissible: ErrTicketNotAdmissible,
	KindReservationExpired:  ErrReservationExpired,
	KindInvalidTransition:   ErrInvalidTransition,
	KindConcurrencyConflict: ErrConcurrencyConflict,
	KindInvalidAmount:       ErrInvalidAmount,
	KindInvalidRequest:      ErrInvalidRequest,
	KindNotFound:            ErrNotFound,
}

// Error is the structured failure every operation returns. The id fields
// that are non-zero name the resources involved; State is the state the
// resource was found in.
type Error struct {
	Kind          Kind
	Message       string
	TierID        uint
	TableID       uint
	ReservationID uint
	TicketID      uint
	State         string
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return sentinels[e.Kind]
}

// Retryable reports whether repeating the same request may succeed.
func (e *Error) Retryable() bool {
	return e.Kind == KindConcurrencyConflict
}

// Details returns the context fields that are set.
func (e *Error) Details() map[string]any {
	d := map[string]any{}
	if e.TierID != 0 {
		d["tier_id"] = e.TierID
	}
	if e.TableID != 0 {
		d["table_id"] = e.TableID
	}
	if e.ReservationID != 0 {
		d["reservation_id"] = e.ReservationID
	}
	if e.TicketID != 0 {
		d["ticket_id"] = e.TicketID
	}
	if e.State != "" {
		d["state"] = e.State
	}
	return d
}

func newError(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// KindOf classifies err. Repository errors that escaped a component are
// classified too; anything else yields "".
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	switch {
	case errors.Is(err, repository.ErrConflict):
		return KindConcurrencyConflict
	case errors.Is(err, repository.ErrNotFound):
		return KindNotFound
	}
	return ""
}

// surface converts leftover repository errors into *Error so callers
// only ever see the taxonomy or an internal failure.
func surface(err error) error {
	if err == nil {
		return nil
	}
	var se *Error
	if errors.As(err, &se) {
		return err
	}
	switch {
	case errors.Is(err, repository.ErrConflict):
		return &Error{Kind: KindConcurrencyConflict, Message: "resource is busy, retry the request"}
	case errors.Is(err, repository.ErrNotFound):
		return &Error{Kind: KindNotFound, Message: "resource not found"}
	}
	return err
}

// lookup wraps a not-found from a fetch of the named resource.
func lookup(err error, what string, id uint) error {
	if errors.Is(err, repository.ErrNotFound) {
		e := newError(KindNotFound, "%s %d not found", what, id)
		switch what {
		case "tier":
			e.TierID = id
		case "table":
			e.TableID = id
		case "reservation":
			e.ReservationID = id
		case "ticket":
			e.TicketID = id
		}
		return e
	}
	return err
}
