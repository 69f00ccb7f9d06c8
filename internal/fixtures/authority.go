package fixtures

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mrlokans/taxsync/internal/taxauthority"
)

// ErrUnavailable is a transient error returned by scripted failures.
var ErrUnavailable = &taxauthority.ServerError{StatusCode: 503, Body: "maintenance"}

// Call is one recorded request to the fake authority.
type Call struct {
	Method string
	Key    string // registration code, invoice number or external ref
}

type scriptedFailure struct {
	err       error
	remaining int // negative means forever
}

// FakeAuthority is a scripted taxauthority.Client. By default it accepts everything.
type FakeAuthority struct {
	mu       sync.Mutex
	calls    []Call
	rejects  map[string]string
	failures map[string]*scriptedFailure
	failAll  error
	statuses map[string]*taxauthority.StatusResult
	delay    time.Duration
	hook     func(Call)
}

var _ taxauthority.Client = (*FakeAuthority)(nil)

func NewFakeAuthority() *FakeAuthority {
	return &FakeAuthority{
		rejects:  make(map[string]string),
		failures: make(map[string]*scriptedFailure),
		statuses: make(map[string]*taxauthority.StatusResult),
	}
}

// Reject makes submissions for key return a rejected decision.
func (f *FakeAuthority) Reject(key, reason string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rejects[key] = reason
}

// Fail makes the next times submissions for key return err; times < 0 fails forever.
func (f *FakeAuthority) Fail(key string, err error, times int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[key] = &scriptedFailure{err: err, remaining: times}
}

// FailAll makes every submission return err; nil restores normal behaviour.
func (f *FakeAuthority) FailAll(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failAll = err
}

// SetDelay makes every call wait d or until its context ends.
func (f *FakeAuthority) SetDelay(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.delay = d
}

// OnCall registers a hook invoked synchronously before each call is answered.
func (f *FakeAuthority) OnCall(hook func(Call)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hook = hook
}

// SetStatus scripts the CheckStatus answer for a reference.
func (f *FakeAuthority) SetStatus(ref string, status taxauthority.Status, reason string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses[ref] = &taxauthority.StatusResult{ExternalRef: ref, Status: status, Reason: reason, UpdatedAt: time.Now().UTC()}
}

// Calls returns a copy of the recorded calls.
func (f *FakeAuthority) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Call, len(f.calls))
	copy(out, f.calls)
	return out
}

// CallCount counts recorded calls for a key.
func (f *FakeAuthority) CallCount(key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c.Key == key {
			n++
		}
	}
	return n
}

func (f *FakeAuthority) RegisterProduct(ctx context.Context, code string, attrs taxauthority.ProductAttributes) (*taxauthority.Decision, error) {
	if err := f.begin(ctx, Call{Method: "RegisterProduct", Key: code}); err != nil {
		return nil, err
	}
	return f.decide(code, "REG-"+code)
}

func (f *FakeAuthority) SubmitInvoice(ctx context.Context, invoice taxauthority.InvoicePayload) (*taxauthority.Decision, error) {
	if err := f.begin(ctx, Call{Method: "SubmitInvoice", Key: invoice.Number}); err != nil {
		return nil, err
	}
	return f.decide(invoice.Number, "SUB-"+invoice.Number)
}

func (f *FakeAuthority) CheckStatus(ctx context.Context, ref string) (*taxauthority.StatusResult, error) {
	if err := f.begin(ctx, Call{Method: "CheckStatus", Key: ref}); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if sf := f.takeFailure(ref); sf != nil {
		return nil, sf
	}
	if s, ok := f.statuses[ref]; ok {
		result := *s
		return &result, nil
	}
	return &taxauthority.StatusResult{ExternalRef: ref, Status: taxauthority.StatusPending}, nil
}

func (f *FakeAuthority) begin(ctx context.Context, call Call) error {
	f.mu.Lock()
	f.calls = append(f.calls, call)
	hook := f.hook
	delay := f.delay
	f.mu.Unlock()

	if hook != nil {
		hook(call)
	}
	if delay > 0 {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return fmt.Errorf("%s %s: %w", call.Method, call.Key, ctx.Err())
		case <-timer.C:
		}
	}
	return ctx.Err()
}

func (f *FakeAuthority) decide(key, ref string) (*taxauthority.Decision, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failAll != nil {
		return nil, f.failAll
	}
	if err := f.takeFailure(key); err != nil {
		return nil, err
	}
	if reason, ok := f.rejects[key]; ok {
		return &taxauthority.Decision{Accepted: false, Reason: reason}, nil
	}
	return &taxauthority.Decision{Accepted: true, ExternalRef: ref}, nil
}

// takeFailure must be called with f.mu held.
func (f *FakeAuthority) takeFailure(key string) error {
	sf, ok := f.failures[key]
	if !ok || sf.remaining == 0 {
		return nil
	}
	if sf.remaining > 0 {
		sf.remaining--
	}
	if sf.err == nil {
		return errors.New("scripted failure")
	}
	return sf.err
}
