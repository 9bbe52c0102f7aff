// Package breaker implements the per-key circuit breaker and its
// retry wrapper, spec.md §4.7.
package breaker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/atomic"
	"go.uber.org/zap"

	"dispatch-and-delivery/internal/models"
)

const (
	maxErrorLog = 50
	trimErrorLog = 25
)

// Config mirrors spec.md §6's circuit.* tunables.
type Config struct {
	MaxFailures  int
	ResetTimeout time.Duration
	Retries      int
	BaseDelay    time.Duration
}

// DefaultConfig matches spec.md §4.7's stated defaults.
func DefaultConfig() Config {
	return Config{MaxFailures: 5, ResetTimeout: 30 * time.Second, Retries: 3, BaseDelay: time.Second}
}

type keyState struct {
	state    models.BreakerState
	failures *atomic.Int64
	resetAt  time.Time
	errorLog []models.BreakerErrorRecord
}

func newKeyState() *keyState {
	return &keyState{state: models.BreakerClosed, failures: atomic.NewInt64(0)}
}

// Breaker is the process-wide table of per-key state machines, keyed
// by (op, id).
type Breaker struct {
	mu     sync.Mutex
	keys   map[string]*keyState
	cfg    Config
	now    func() time.Time
	sleep  func(d time.Duration)
	log    *zap.SugaredLogger
}

// New constructs a Breaker with cfg and an optional logger.
func New(cfg Config, log *zap.SugaredLogger) *Breaker {
	return &Breaker{
		keys:  make(map[string]*keyState),
		cfg:   cfg,
		now:   time.Now,
		sleep: time.Sleep,
		log:   log,
	}
}

func keyFor(op, id string) string {
	return op + "|" + id
}

func (b *Breaker) stateFor(key string) *keyState {
	b.mu.Lock()
	defer b.mu.Unlock()
	ks, ok := b.keys[key]
	if !ok {
		ks = newKeyState()
		b.keys[key] = ks
	}
	return ks
}

// admit decides, under the key-table mutex, whether a call may proceed,
// performing the OPEN->HALF_OPEN transition if reset-at has passed.
// State transitions are serialized per key via the outer mutex: two
// concurrent failures on the same key either both count toward the
// same OPEN threshold or the second observes OPEN.
func (b *Breaker) admit(key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	ks := b.keys[key]
	if ks == nil {
		ks = newKeyState()
		b.keys[key] = ks
	}

	switch ks.state {
	case models.BreakerOpen:
		if b.now().After(ks.resetAt) {
			ks.state = models.BreakerHalfOpen
			return nil
		}
		return models.NewDispatchError(models.ErrCircuitOpen, key, map[string]any{"resetAt": ks.resetAt})
	default:
		return nil
	}
}

func (b *Breaker) onSuccess(key string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	ks := b.keys[key]
	ks.state = models.BreakerClosed
	ks.failures.Store(0)
}

func (b *Breaker) onFailure(key string, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	ks := b.keys[key]

	rec := models.BreakerErrorRecord{Message: truncate(err.Error(), 500), At: b.now()}
	ks.errorLog = append(ks.errorLog, rec)
	if len(ks.errorLog) > maxErrorLog {
		ks.errorLog = ks.errorLog[len(ks.errorLog)-trimErrorLog:]
	}

	switch ks.state {
	case models.BreakerHalfOpen:
		ks.state = models.BreakerOpen
		ks.resetAt = b.now().Add(b.cfg.ResetTimeout)
	default:
		if ks.failures.Inc() >= int64(b.cfg.MaxFailures) {
			ks.state = models.BreakerOpen
			ks.resetAt = b.now().Add(b.cfg.ResetTimeout)
		}
	}
}

// MeasureFunc wraps a single attempt with the performance meter;
// wired by the orchestrator so this package never imports
// internal/metrics directly.
type MeasureFunc func(ctx context.Context, op string, fn func(ctx context.Context) error) error

// Run executes fn under the breaker for (op, id), making at most
// cfg.Retries attempts in total with linear backoff between them. An OPEN
// circuit short-circuits without retrying. A non-retryable error
// (models.Retryable returns false — Unauthenticated, PermissionDenied,
// InvalidArgument, NotFound, CircuitOpen) is rethrown on the first
// attempt without counting toward the breaker's failure threshold.
func (b *Breaker) Run(ctx context.Context, op, id string, measure MeasureFunc, fn func(ctx context.Context) error) error {
	key := keyFor(op, id)

	if err := b.admit(key); err != nil {
		return err
	}

	run := fn
	if measure != nil {
		run = func(ctx context.Context) error {
			return measure(ctx, op, fn)
		}
	}

	var lastErr error
	for attempt := 1; attempt <= b.cfg.Retries; attempt++ {
		if attempt > 1 {
			if err := b.admit(key); err != nil {
				return err
			}
		}

		err := run(ctx)
		if err == nil {
			b.onSuccess(key)
			return nil
		}

		if !models.Retryable(err) {
			return err
		}

		b.onFailure(key, err)
		lastErr = err

		if attempt < b.cfg.Retries {
			b.sleep(b.cfg.BaseDelay * time.Duration(attempt))
		}
	}

	if b.log != nil {
		b.log.Errorw("circuit breaker exhausted retries", "op", op, "id", id, "error", lastErr)
	}
	return lastErr
}

// Snapshot returns the operator-facing view of every known key.
func (b *Breaker) Snapshot() []models.BreakerSnapshot {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]models.BreakerSnapshot, 0, len(b.keys))
	for key, ks := range b.keys {
		var lastErr string
		if n := len(ks.errorLog); n > 0 {
			lastErr = ks.errorLog[n-1].Message
		}
		out = append(out, models.BreakerSnapshot{
			Key:       key,
			State:     ks.state,
			Failures:  int(ks.failures.Load()),
			ResetAt:   ks.resetAt,
			LastError: lastErr,
		})
	}
	return out
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
