package domain

import (
	"context"
	"errors"
	"fmt"
)

// Kind classifies a registration failure. The transport maps kinds to
// status codes; the kind never drives control flow inside the saga.
type Kind string

const (
	KindInvalidOrder               Kind = "invalid_order"
	KindCustomerInvalid            Kind = "customer_invalid"
	KindExternalServiceUnavailable Kind = "external_service_unavailable"
	KindPersistenceFailure         Kind = "persistence_failure"
	KindFatal                      Kind = "fatal"
	KindCanceled                   Kind = "canceled"
	KindNotFound                   Kind = "not_found"
	KindConflict                   Kind = "conflict"
	KindInternal                   Kind = "internal"
)

// Error carries a Kind plus an optional underlying cause. The cause is kept
// for logging and errors.Is/As.
type Error struct {
	kind Kind
	Msg  string
	Err  error
}

// Sentinels match any *Error of the same kind through errors.Is.
var (
	ErrInvalidOrder        = &Error{kind: KindInvalidOrder}
	ErrCustomerInvalid     = &Error{kind: KindCustomerInvalid}
	ErrExternalService     = &Error{kind: KindExternalServiceUnavailable}
	ErrPersistence         = &Error{kind: KindPersistenceFailure}
	ErrFatal               = &Error{kind: KindFatal}
	ErrCanceled            = &Error{kind: KindCanceled}
	ErrNotFound            = &Error{kind: KindNotFound}
	ErrConflict            = &Error{kind: KindConflict}
	ErrNoActiveTransaction = Fatal("no active transaction")
	ErrTransactionActive   = Fatal("transaction already active")
)

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = string(e.kind)
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Kind satisfies the transport's kinder interface.
func (e *Error) Kind() string { return string(e.kind) }

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	// bare sentinels match by kind only
	return t.Msg == "" && t.Err == nil && t.kind == e.kind
}

func InvalidOrder(msg string) error {
	return &Error{kind: KindInvalidOrder, Msg: msg}
}

func CustomerInvalid(customerID int64) error {
	return &Error{
		kind: KindCustomerInvalid,
		Msg:  fmt.Sprintf("customer %d did not pass external validation", customerID),
	}
}

func ExternalServiceUnavailable(msg string, cause error) error {
	return &Error{kind: KindExternalServiceUnavailable, Msg: msg, Err: cause}
}

func PersistenceFailure(msg string, cause error) error {
	return &Error{kind: KindPersistenceFailure, Msg: msg, Err: cause}
}

func Fatal(msg string) *Error {
	return &Error{kind: KindFatal, Msg: msg}
}

func Canceled(cause error) error {
	return &Error{kind: KindCanceled, Msg: "registration canceled", Err: cause}
}

func NotFound(msg string) error {
	return &Error{kind: KindNotFound, Msg: msg}
}

// Conflict reports a request that collides with one still in flight.
func Conflict(msg string) error {
	return &Error{kind: KindConflict, Msg: msg}
}

// KindOf classifies any error, including ones that never passed through
// this package.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var de *Error
	if errors.As(err, &de) {
		return de.kind
	}
	if errors.Is(err, context.Canceled) {
		return KindCanceled
	}
	return KindInternal
}
