package service

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"

	"github.com/Eursukkul/booking-microservice/allocation-service/internal/repository"
)

// RetryPolicy retries work that failed on lock or version contention.
type RetryPolicy struct {
	Attempts  int
	BaseDelay time.Duration
	MaxDelay  time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{Attempts: 4, BaseDelay: 25 * time.Millisecond, MaxDelay: time.Second}
}

func isConflict(err error) bool {
	return errors.Is(err, repository.ErrConflict) || errors.Is(err, ErrConcurrencyConflict)
}

// Do runs fn until it succeeds, fails with a non-conflict error, or the
// attempts are used up. Delays double from BaseDelay with jitter.
func (p RetryPolicy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}
	delay := p.BaseDelay
	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(ctx); err == nil || !isConflict(err) {
			return err
		}
		if i == attempts-1 {
			break
		}
		wait := delay
		if wait > 0 {
			wait += time.Duration(rand.Int64N(int64(wait)/2 + 1))
		}
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return ctx.Err()
		}
		delay *= 2
		if p.MaxDelay > 0 && delay > p.MaxDelay {
			delay = p.MaxDelay
		}
	}
	var se *Error
	if errors.As(err, &se) {
		return err
	}
	return &Error{Kind: KindConcurrencyConflict, Message: "resource is busy, retry the request"}
}
