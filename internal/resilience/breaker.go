package resilience

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker/v2"
)

// State is the circuit state of one protected dependency.
type State int

const (
	StateClosed State = iota
	StateHalfOpen
	StateOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateHalfOpen:
		return "HALF_OPEN"
	case StateOpen:
		return "OPEN"
	default:
		return "UNKNOWN"
	}
}

func stateOf(s gobreaker.State) State {
	switch s {
	case gobreaker.StateHalfOpen:
		return StateHalfOpen
	case gobreaker.StateOpen:
		return StateOpen
	default:
		return StateClosed
	}
}

// breaker owns the shared state of a dependency. gobreaker serializes every
// transition under its own mutex, and MaxRequests=1 admits a single trial
// while half-open; concurrent callers are rejected like an open circuit.
type breaker struct {
	cb *gobreaker.CircuitBreaker[Result]
}

func newBreaker(name string, threshold uint32, breakFor time.Duration, onChange func(from, to State)) *breaker {
	st := gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     breakFor,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= threshold
		},
		IsSuccessful: countsAsSuccess,
		IsExcluded:   isCallerAbort,
	}
	if onChange != nil {
		// runs under the breaker lock: must not call back into the breaker
		st.OnStateChange = func(_ string, from, to gobreaker.State) {
			onChange(stateOf(from), stateOf(to))
		}
	}
	return &breaker{cb: gobreaker.NewCircuitBreaker[Result](st)}
}

func (b *breaker) execute(fn func() (Result, error)) (Result, error) {
	res, err := b.cb.Execute(fn)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return Result{}, &Failure{Kind: CircuitOpen, Cause: err}
	}
	return res, err
}

func (b *breaker) state() State { return stateOf(b.cb.State()) }

// countsAsSuccess decides what the breaker counts against the dependency.
// Non-5xx statuses say nothing about its health.
func countsAsSuccess(err error) bool {
	if err == nil {
		return true
	}
	var f *Failure
	if errors.As(err, &f) {
		return !f.Transient()
	}
	return false
}

// isCallerAbort keeps calls the caller gave up on out of the counts: they
// neither close a half-open circuit nor break a failure streak. Expiry of the
// total timeout is a *Failure and is still counted.
func isCallerAbort(err error) bool {
	var f *Failure
	if errors.As(err, &f) {
		return false
	}
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
