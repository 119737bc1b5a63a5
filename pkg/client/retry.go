package client

import (
	"math/rand"
	"time"
)

// Policy decides whether and how long to wait before re-attempting a
// failed call.
type Policy struct {
	// MaxAttempts is the maximum number of attempts (including the initial
	// request).
	MaxAttempts int

	// BaseBackoff is the backoff before the first retry.
	BaseBackoff time.Duration

	// MaxBackoff clamps the exponential backoff.
	MaxBackoff time.Duration

	// JitterMax bounds the uniform random jitter added on top of the
	// backoff. Jitter prevents synchronized retry storms across
	// concurrent fetches.
	JitterMax time.Duration
}

// DefaultPolicy returns the default retry policy.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 5,
		BaseBackoff: 1 * time.Second,
		MaxBackoff:  30 * time.Second,
		JitterMax:   500 * time.Millisecond,
	}
}

// Decide returns the delay before the next attempt and whether to retry
// at all, given the outcome of attempt number attempt (1-based).
func (p Policy) Decide(o Outcome, attempt int) (time.Duration, bool) {
	if !o.Kind.Retryable() {
		return 0, false
	}
	if attempt >= p.MaxAttempts {
		return 0, false
	}

	// base * 2^(attempt-1), clamped
	backoff := p.BaseBackoff << (attempt - 1)
	if backoff > p.MaxBackoff || backoff <= 0 {
		backoff = p.MaxBackoff
	}

	delay := backoff
	if p.JitterMax > 0 {
		delay += time.Duration(rand.Int63n(int64(p.JitterMax) + 1))
	}

	// A server-provided Retry-After hint wins when it is larger than the
	// computed backoff.
	if o.RetryAfter > delay {
		delay = o.RetryAfter
	}

	return delay, true
}
