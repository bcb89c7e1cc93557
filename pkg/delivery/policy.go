package delivery

import (
	"time"

	"github.com/schooldesk/notifier/pkg/queue"
)

// RetryPolicy bounds delivery attempts for one notification and spaces them
// out. Backoff[i] is the delay after the (i+1)-th failed attempt.
type RetryPolicy struct {
	MaxAttempts int
	Backoff     []time.Duration
}

// DefaultRetryPolicy gives a notification three attempts, one minute after
// the first failure, five after the second, fifteen after the third.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		Backoff:     []time.Duration{time.Minute, 5 * time.Minute, 15 * time.Minute},
	}
}

// BackoffFunc adapts the policy for the queue storages.
func (p RetryPolicy) BackoffFunc() queue.BackoffFunc {
	return queue.StepBackoff(p.Backoff...)
}
