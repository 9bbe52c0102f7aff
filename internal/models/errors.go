package models

import (
	"errors"
	"fmt"
)

// Sentinel errors classify failures the way callers are expected to
// switch on them (errors.Is), per the taxonomy in spec.md §7.
var (
	ErrUnauthenticated   = errors.New("unauthenticated")
	ErrForbidden         = errors.New("permission denied")
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrNotFound          = errors.New("requested resource not found")
	ErrConflict          = errors.New("resource conflict, item already exists")
	ErrResourceExhausted = errors.New("resource exhausted")
	ErrCircuitOpen       = errors.New("circuit open")
	ErrTimeout           = errors.New("operation timed out")
	ErrTransient         = errors.New("transient failure")
	ErrInternal          = errors.New("internal error")

	// ErrNoDrivers is a NotFound specialization surfaced by the
	// dispatch orchestrator when a radius query + rank yields nothing.
	ErrNoDrivers = fmt.Errorf("%w: no eligible drivers", ErrNotFound)
)

// DispatchError carries an operator-readable code, the subject the
// error concerns (an order id, a breaker key, a job id, ...), and a
// structured payload, per spec.md §7. It wraps one of the sentinels
// above so errors.Is(err, ErrNotFound) still works after wrapping.
type DispatchError struct {
	Code    error
	Subject string
	Detail  map[string]any
}

func (e *DispatchError) Error() string {
	if e.Subject == "" {
		return e.Code.Error()
	}
	return fmt.Sprintf("%s: %s", e.Code.Error(), e.Subject)
}

func (e *DispatchError) Unwrap() error { return e.Code }

// NewDispatchError constructs a DispatchError; detail may be nil.
func NewDispatchError(code error, subject string, detail map[string]any) *DispatchError {
	return &DispatchError{Code: code, Subject: subject, Detail: detail}
}

// Retryable reports whether the retry wrapper (internal/breaker) should
// retry this error rather than rethrow it immediately. Mirrors the
// propagation policy in spec.md §7: Unauthenticated, PermissionDenied,
// InvalidArgument, NotFound and CircuitOpen are never retried.
func Retryable(err error) bool {
	switch {
	case errors.Is(err, ErrUnauthenticated),
		errors.Is(err, ErrForbidden),
		errors.Is(err, ErrInvalidArgument),
		errors.Is(err, ErrNotFound),
		errors.Is(err, ErrCircuitOpen):
		return false
	default:
		return true
	}
}
