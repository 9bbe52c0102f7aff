package models

import "time"

// BreakerState is the circuit breaker's state machine position, per
// spec.md §3/§4.7.
type BreakerState int

const (
	BreakerClosed BreakerState = iota
	BreakerOpen
	BreakerHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "CLOSED"
	case BreakerOpen:
		return "OPEN"
	case BreakerHalfOpen:
		return "HALF_OPEN"
	default:
		return "UNKNOWN"
	}
}

// BreakerErrorRecord is one entry of a breaker key's bounded error log
// (50 entries, trimmed to 25).
type BreakerErrorRecord struct {
	Message string
	At      time.Time
	Stack   string
}

// BreakerSnapshot is the read-only operator view of one breaker key.
type BreakerSnapshot struct {
	Key       string
	State     BreakerState
	Failures  int
	ResetAt   time.Time
	LastError string
}
