// Package retry decides whether a failed submission is worth another attempt
// and how long to wait before it.
package retry

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// Policy configures the retry schedule. Delays grow geometrically from
// BaseDelay by Multiplier and are capped at MaxDelay.
type Policy struct {
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Multiplier  float64
	MaxAttempts int
}

// DefaultPolicy returns the schedule 2s, 4s, 8s, 16s, 32s, 60s... with five attempts.
func DefaultPolicy() Policy {
	return Policy{
		BaseDelay:   2 * time.Second,
		MaxDelay:    60 * time.Second,
		Multiplier:  2,
		MaxAttempts: 5,
	}
}

// Decision is the verdict for one failed attempt.
type Decision struct {
	Retry     bool
	Delay     time.Duration
	Exhausted bool // transient failure that ran out of attempts
}

// Permanent reports whether the record should be marked failed.
func (d Decision) Permanent() bool {
	return !d.Retry
}

// Transient is implemented by errors that know whether they are worth retrying.
type Transient interface {
	Transient() bool
}

// IsTransient reports whether err is a temporary condition: a network error,
// a timeout, or an error that says so via Transient().
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var t Transient
	if errors.As(err, &t) {
		return t.Transient()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// Classify decides what to do after the given 1-based attempt failed with err.
// It has no side effects.
func (p Policy) Classify(err error, attempt int) Decision {
	if !IsTransient(err) {
		return Decision{}
	}
	if attempt >= p.maxAttempts() {
		return Decision{Exhausted: true}
	}
	return Decision{Retry: true, Delay: p.Backoff(attempt)}
}

// Backoff returns the delay after the n-th failed attempt (n >= 1).
func (p Policy) Backoff(n int) time.Duration {
	if n < 1 {
		n = 1
	}
	b := p.newBackOff()
	var d time.Duration
	for i := 0; i < n; i++ {
		d = b.NextBackOff()
		if d >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	return d
}

// Schedule lists the delays slept between MaxAttempts attempts.
func (p Policy) Schedule() []time.Duration {
	n := p.maxAttempts() - 1
	delays := make([]time.Duration, 0, n)
	for i := 1; i <= n; i++ {
		delays = append(delays, p.Backoff(i))
	}
	return delays
}

func (p Policy) newBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.BaseDelay
	b.MaxInterval = p.MaxDelay
	b.Multiplier = p.Multiplier
	b.RandomizationFactor = 0
	if b.Multiplier < 1 {
		b.Multiplier = 1
	}
	b.Reset()
	return b
}

func (p Policy) maxAttempts() int {
	if p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}
