package resposta

import "time"

// RetryBuilder accumulates the RetryPolicy handed to Builder.WithRetry.
// Start one with Retry; the chain reads as the schedule it produces:
//
//	Retry(3).Policy()                                  // 3 attempts back to back
//	Retry(3).Backoff(200 * time.Millisecond).Policy()  // then 200ms, 400ms
//	Retry(5).FixedBackoff(time.Second).Policy()        // 1s between every attempt
type RetryBuilder struct {
	policy RetryPolicy
}

// Retry returns a builder for a policy allowing maxAttempts total
// attempts, the first call included, with no delay between them until a
// backoff method is chained. maxAttempts < 1 is treated as 1.
func Retry(maxAttempts int) RetryBuilder {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return RetryBuilder{policy: RetryPolicy{MaxAttempts: maxAttempts}}
}

// Backoff sets an exponential schedule: initial before the first retry,
// doubling for each retry after that. Chain CappedAt to bound the growth.
func (r RetryBuilder) Backoff(initial time.Duration) RetryBuilder {
	r.policy.InitialBackoff = initial
	r.policy.BackoffMultiplier = 2.0
	return r
}

// FixedBackoff sets a flat schedule: the same delay before every retry.
// It replaces any schedule set earlier in the chain.
func (r RetryBuilder) FixedBackoff(delay time.Duration) RetryBuilder {
	r.policy.InitialBackoff = delay
	r.policy.BackoffMultiplier = 1.0
	r.policy.MaxBackoff = 0
	return r
}

// CappedAt bounds the delay produced by an exponential schedule.
func (r RetryBuilder) CappedAt(max time.Duration) RetryBuilder {
	r.policy.MaxBackoff = max
	return r
}

// Policy returns the accumulated RetryPolicy.
func (r RetryBuilder) Policy() RetryPolicy {
	return r.policy
}
