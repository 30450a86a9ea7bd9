package task

import (
	"fmt"
	"time"

	"github.com/careloop/careloop-api/internal/domain"
	"github.com/sethvargo/go-retry"
)

// RetryPolicy bounds how often and how quickly a failing task is retried.
type RetryPolicy struct {
	// MaxRetries is the number of retries allowed after the first attempt.
	// A task whose retry_count exceeds it is failed terminally.
	MaxRetries int

	// BaseDelay is the delay before the first retry. Each later retry
	// doubles it.
	BaseDelay time.Duration

	// MaxDelay caps the delay between retries.
	MaxDelay time.Duration
}

// DefaultRetryPolicy returns the policy used when none is configured.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries: 5,
		BaseDelay:  30 * time.Second,
		MaxDelay:   time.Hour,
	}
}

// Validate checks that the policy is usable.
func (p RetryPolicy) Validate() error {
	if p.MaxRetries < 0 {
		return fmt.Errorf("%w: max retries must not be negative", domain.ErrValidation)
	}
	if p.BaseDelay <= 0 {
		return fmt.Errorf("%w: base delay must be positive", domain.ErrValidation)
	}
	if p.MaxDelay < p.BaseDelay {
		return fmt.Errorf("%w: max delay must be at least the base delay", domain.ErrValidation)
	}
	return nil
}

// Exhausted reports whether a task with the given retry count has used up
// its retries.
func (p RetryPolicy) Exhausted(retryCount int) bool {
	return retryCount > p.MaxRetries
}

// NextDelay returns the backoff before retry number retryCount (1-based):
// BaseDelay * 2^(retryCount-1), capped at MaxDelay.
func (p RetryPolicy) NextDelay(retryCount int) time.Duration {
	if retryCount < 1 {
		retryCount = 1
	}
	b := retry.WithCappedDuration(p.MaxDelay, retry.NewExponential(p.BaseDelay))

	var d time.Duration
	for i := 0; i < retryCount; i++ {
		next, stop := b.Next()
		if stop {
			return p.MaxDelay
		}
		d = next
		if d >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	return d
}
