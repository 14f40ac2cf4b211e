package job

import (
	"errors"
	"time"
)

// ErrInvalidBackoff indicates the configured backoff bounds are not usable.
var ErrInvalidBackoff = errors.New("backoff base and cap must be positive")

// BackoffPolicy computes the retry delay before a failed job becomes
// eligible again: the base delay doubles per completed attempt, capped.
type BackoffPolicy struct {
	base time.Duration
	cap  time.Duration
}

// NewBackoffPolicy constructs a BackoffPolicy. Cap is raised to base when it
// is set below it.
func NewBackoffPolicy(base, cap time.Duration) (*BackoffPolicy, error) {
	if base <= 0 || cap <= 0 {
		return nil, ErrInvalidBackoff
	}
	if cap < base {
		cap = base
	}
	return &BackoffPolicy{base: base, cap: cap}, nil
}

// Base returns the configured base delay.
func (p *BackoffPolicy) Base() time.Duration {
	if p == nil {
		return 0
	}
	return p.base
}

// Delay returns the wait before the next attempt, given the number of
// attempts already made. The first retry (attempts=1) waits the base delay.
func (p *BackoffPolicy) Delay(attempts int) time.Duration {
	if p == nil {
		return 0
	}
	if attempts < 1 {
		attempts = 1
	}

	d := p.base
	for i := 1; i < attempts; i++ {
		d *= 2
		if d >= p.cap {
			return p.cap
		}
	}
	if d > p.cap {
		return p.cap
	}
	return d
}
