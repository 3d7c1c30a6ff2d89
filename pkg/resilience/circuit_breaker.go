// SPDX-License-Identifier: Apache-2.0
package resilience

import (
	"context"
	stderrors "errors"
	"sync"
	"time"

	"github.com/jllopis/shopper/pkg/errors"
)

// CircuitBreakerState is one of closed, open or half-open.
type CircuitBreakerState string

const (
	StateClosed   CircuitBreakerState = "closed"
	StateOpen     CircuitBreakerState = "open"
	StateHalfOpen CircuitBreakerState = "half-open"
)

// CircuitBreakerConfig configures a circuit breaker.
type CircuitBreakerConfig struct {
	// FailureThreshold is the number of consecutive failures that opens
	// the circuit. Defaults to 5.
	FailureThreshold int

	// SuccessThreshold is the number of half-open successes that closes
	// it again. Defaults to 2.
	SuccessThreshold int

	// Timeout is how long the circuit stays open before admitting a probe.
	Timeout time.Duration

	// MaxProbes bounds concurrent calls while half-open. Defaults to 1.
	MaxProbes int

	// Name identifies the breaker in errors and transition callbacks.
	Name string

	// IsFailure decides whether an error counts against the backend.
	// The default ignores caller cancellation and invalid input.
	IsFailure func(error) bool

	// OnStateChange, when set, is called after every state transition.
	// It runs under the breaker lock and must not call back into it.
	OnStateChange func(name string, from, to CircuitBreakerState)
}

// Counts is a snapshot of the breaker bookkeeping.
type Counts struct {
	State                CircuitBreakerState
	ConsecutiveFailures  int
	ConsecutiveSuccesses int
	Rejected             int64
	OpenedAt             time.Time
}

// CircuitBreaker stops calling a backend after repeated failures and
// probes it again once Timeout has elapsed.
type CircuitBreaker struct {
	config CircuitBreakerConfig
	now    func() time.Time

	mu        sync.Mutex
	state     CircuitBreakerState
	failures  int
	successes int
	probes    int
	rejected  int64
	openedAt  time.Time
}

// NewCircuitBreaker creates a closed circuit breaker.
func NewCircuitBreaker(config CircuitBreakerConfig) *CircuitBreaker {
	if config.FailureThreshold < 1 {
		config.FailureThreshold = 5
	}
	if config.SuccessThreshold < 1 {
		config.SuccessThreshold = 2
	}
	if config.MaxProbes < 1 {
		config.MaxProbes = 1
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	if config.Name == "" {
		config.Name = "circuit_breaker"
	}
	if config.IsFailure == nil {
		config.IsFailure = countsAsFailure
	}
	return &CircuitBreaker{config: config, now: time.Now, state: StateClosed}
}

// Call runs fn when the breaker admits it. A rejected call returns
// errors.CodeUnavailable without running fn.
func (cb *CircuitBreaker) Call(ctx context.Context, fn func() error) error {
	_, err := Execute(ctx, cb, func(context.Context) (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}

// Execute is the value returning form of CircuitBreaker.Call.
func Execute[T any](ctx context.Context, cb *CircuitBreaker, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, err
	}
	probe, err := cb.admit()
	if err != nil {
		return zero, err
	}
	v, err := fn(ctx)
	cb.record(probe, err)
	return v, err
}

func (cb *CircuitBreaker) admit() (probe bool, err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateOpen && cb.now().Sub(cb.openedAt) >= cb.config.Timeout {
		cb.setState(StateHalfOpen)
	}
	switch cb.state {
	case StateOpen:
		cb.rejected++
		return false, cb.rejection("circuit breaker open")
	case StateHalfOpen:
		if cb.probes >= cb.config.MaxProbes {
			cb.rejected++
			return false, cb.rejection("circuit breaker probing")
		}
		cb.probes++
		return true, nil
	}
	return false, nil
}

func (cb *CircuitBreaker) record(probe bool, err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if probe {
		cb.probes--
	}
	if err != nil && cb.config.IsFailure(err) {
		cb.successes = 0
		cb.failures++
		if cb.state == StateHalfOpen || cb.failures >= cb.config.FailureThreshold {
			cb.trip()
		}
		return
	}
	cb.failures = 0
	if cb.state == StateHalfOpen {
		cb.successes++
		if cb.successes >= cb.config.SuccessThreshold {
			cb.setState(StateClosed)
		}
	}
}

func (cb *CircuitBreaker) rejection(msg string) *errors.Error {
	return errors.New(errors.CodeUnavailable, msg, nil).
		WithContext("breaker", cb.config.Name).
		WithRecoverable(true)
}

// trip opens the circuit. Must be called under lock.
func (cb *CircuitBreaker) trip() {
	cb.openedAt = cb.now()
	cb.setState(StateOpen)
}

// setState records a transition and clears the counters. Must be called
// under lock.
func (cb *CircuitBreaker) setState(to CircuitBreakerState) {
	from := cb.state
	cb.state = to
	cb.failures = 0
	cb.successes = 0
	if from != to && cb.config.OnStateChange != nil {
		cb.config.OnStateChange(cb.config.Name, from, to)
	}
}

// State returns the current state. An open breaker whose timeout elapsed
// still reports open until the next call probes it.
func (cb *CircuitBreaker) State() CircuitBreakerState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Counts returns a snapshot of the breaker bookkeeping.
func (cb *CircuitBreaker) Counts() Counts {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return Counts{
		State:                cb.state,
		ConsecutiveFailures:  cb.failures,
		ConsecutiveSuccesses: cb.successes,
		Rejected:             cb.rejected,
		OpenedAt:             cb.openedAt,
	}
}

// Reset closes the circuit.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.setState(StateClosed)
}

// Open forces the circuit open for one Timeout.
func (cb *CircuitBreaker) Open() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.trip()
}

func countsAsFailure(err error) bool {
	if stderrors.Is(err, context.Canceled) {
		return false
	}
	return !errors.HasCode(err, errors.CodeInvalidInput)
}
