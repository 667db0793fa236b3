package service

import "time"

// Policy is the read-only configuration the engine consults.
type Policy interface {
	HoldTTL() time.Duration
	// AllowPartialAdmission reports whether a partially paid reservation
	// gets a PARTIALLY_PAID ticket. eventID is 0 when the reservation has
	// no tier.
	AllowPartialAdmission(eventID uint) bool
}

type StaticPolicy struct {
	TTL           time.Duration
	AllowPartial  bool
	PartialEvents map[uint]bool
}

func (p StaticPolicy) HoldTTL() time.Duration {
	if p.TTL <= 0 {
		return 15 * time.Minute
	}
	return p.TTL
}

func (p StaticPolicy) AllowPartialAdmission(eventID uint) bool {
	return p.AllowPartial || p.PartialEvents[eventID]
}

type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// SystemClock reads the wall clock.
func SystemClock() Clock { return systemClock{} }
