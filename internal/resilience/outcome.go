package resilience

import (
	"fmt"
	"net/http"
)

// Status is the classification of a call that produced an answer.
type Status int

const (
	StatusSuccess Status = iota + 1
	// StatusNotFound is a well-formed "does not exist": an answer, not a failure.
	StatusNotFound
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusNotFound:
		return "not_found"
	default:
		return "unknown"
	}
}

// Result is returned when the dependency answered with 2xx or 404.
type Result struct {
	Status     Status
	StatusCode int
	Payload    []byte
}

type FailureKind int

const (
	TimeoutExceeded FailureKind = iota + 1
	CircuitOpen
	TransportError
	UnexpectedStatus
)

func (k FailureKind) String() string {
	switch k {
	case TimeoutExceeded:
		return "timeout_exceeded"
	case CircuitOpen:
		return "circuit_open"
	case TransportError:
		return "transport_error"
	case UnexpectedStatus:
		return "unexpected_status"
	default:
		return "unknown"
	}
}

// Failure is every way the pipeline can fail to get an answer.
type Failure struct {
	Kind       FailureKind
	StatusCode int // set for UnexpectedStatus
	Cause      error
	transient  bool
}

func (f *Failure) Error() string {
	switch {
	case f.Kind == UnexpectedStatus:
		return fmt.Sprintf("%s: %d %s", f.Kind, f.StatusCode, http.StatusText(f.StatusCode))
	case f.Cause != nil:
		return fmt.Sprintf("%s: %v", f.Kind, f.Cause)
	default:
		return f.Kind.String()
	}
}

func (f *Failure) Unwrap() error { return f.Cause }

// Transient reports whether the failure says something about the health of
// the dependency: transport errors, attempt timeouts and 5xx responses.
func (f *Failure) Transient() bool { return f.transient }

func transportFailure(err error) *Failure {
	return &Failure{Kind: TransportError, Cause: err, transient: true}
}

func attemptTimeout(err error) *Failure {
	return &Failure{Kind: TimeoutExceeded, Cause: err, transient: true}
}

func statusFailure(code int) *Failure {
	return &Failure{Kind: UnexpectedStatus, StatusCode: code, transient: code >= 500}
}
