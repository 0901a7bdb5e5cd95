package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/hollanddz228/ComputerClubBookingg/internal/model"
)

const (
	defaultRetryAttempts  uint64 = 3
	defaultRetryBaseDelay        = 100 * time.Millisecond
)

// RetryPolicy bounds how often a transient store failure is retried.
type RetryPolicy struct {
	Attempts  uint64
	BaseDelay time.Duration
}

func (p RetryPolicy) backoff() retry.Backoff {
	base := p.BaseDelay
	if base <= 0 {
		base = defaultRetryBaseDelay
	}
	return retry.WithMaxRetries(p.Attempts, retry.NewExponential(base))
}

// withRetry runs fn until it succeeds, fails with a non-transient error or the
// policy is exhausted. Exhaustion and unclassified failures become ErrStoreUnavailable.
func (s *Service) withRetry(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	attempt := 0
	err := retry.Do(ctx, s.retry.backoff(), func(ctx context.Context) error {
		attempt++
		err := fn(ctx)
		if err != nil && errors.Is(err, model.ErrStoreTransient) {
			s.logger.Warn("transient store failure",
				"op", op,
				"attempt", attempt,
				"error", err,
			)
			return retry.RetryableError(err)
		}
		return err
	})
	if err == nil || isDomainError(err) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", ErrStoreUnavailable, op, err)
}

func isDomainError(err error) bool {
	for _, target := range []error{
		ErrPastStartTime,
		ErrInvalidNightStart,
		ErrSlotTaken,
		ErrInvalidPackage,
		ErrNotOwner,
		ErrNotActive,
		model.ErrResourceNotFound,
		model.ErrReservationNotFound,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
