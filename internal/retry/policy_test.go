package retry

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
)

type flaggedError struct{ transient bool }

func (e flaggedError) Error() string   { return "flagged" }
func (e flaggedError) Transient() bool { return e.transient }

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain", errors.New("boom"), false},
		{"deadline", context.DeadlineExceeded, true},
		{"wrapped deadline", fmt.Errorf("submit: %w", context.DeadlineExceeded), true},
		{"canceled", context.Canceled, false},
		{"net error", &net.OpError{Op: "dial", Err: errors.New("refused")}, true},
		{"transient flag", flaggedError{transient: true}, true},
		{"permanent flag", fmt.Errorf("wrapped: %w", flaggedError{transient: false}), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransient(tt.err))
		})
	}
}

func TestPolicy_Backoff(t *testing.T) {
	p := DefaultPolicy()

	want := []time.Duration{2, 4, 8, 16, 32, 60, 60}
	for i, w := range want {
		assert.Equal(t, w*time.Second, p.Backoff(i+1), "attempt %d", i+1)
	}
}

func TestPolicy_Schedule(t *testing.T) {
	assert.Equal(t,
		[]time.Duration{2 * time.Second, 4 * time.Second, 8 * time.Second, 16 * time.Second},
		DefaultPolicy().Schedule())
}

func TestPolicy_Classify(t *testing.T) {
	p := DefaultPolicy()
	transient := flaggedError{transient: true}

	d := p.Classify(errors.New("rejected"), 1)
	assert.True(t, d.Permanent())
	assert.False(t, d.Exhausted)

	d = p.Classify(transient, 1)
	assert.True(t, d.Retry)
	assert.Equal(t, 2*time.Second, d.Delay)

	d = p.Classify(transient, 4)
	assert.True(t, d.Retry)
	assert.Equal(t, 16*time.Second, d.Delay)

	d = p.Classify(transient, 5)
	assert.True(t, d.Permanent())
	assert.True(t, d.Exhausted)
}

func TestPolicy_Properties(t *testing.T) {
	p := DefaultPolicy()
	properties := gopter.NewProperties(nil)

	properties.Property("delay is bounded by base and max", prop.ForAll(
		func(n int) bool {
			d := p.Backoff(n)
			return d >= p.BaseDelay && d <= p.MaxDelay
		},
		gen.IntRange(1, 64),
	))

	properties.Property("delay never decreases", prop.ForAll(
		func(n int) bool {
			return p.Backoff(n+1) >= p.Backoff(n)
		},
		gen.IntRange(1, 64),
	))

	properties.Property("classification is pure", prop.ForAll(
		func(attempt int, transient bool) bool {
			err := flaggedError{transient: transient}
			return p.Classify(err, attempt) == p.Classify(err, attempt)
		},
		gen.IntRange(1, 10),
		gen.Bool(),
	))

	properties.Property("transient errors retry until the last attempt", prop.ForAll(
		func(attempt int) bool {
			d := p.Classify(flaggedError{transient: true}, attempt)
			if attempt < p.MaxAttempts {
				return d.Retry && !d.Exhausted
			}
			return !d.Retry && d.Exhausted
		},
		gen.IntRange(1, 10),
	))

	properties.TestingRun(t)
}
