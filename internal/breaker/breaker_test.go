package breaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"dispatch-and-delivery/internal/models"
)

func noopMeasure(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func TestRunSucceedsOnFirstAttempt(t *testing.T) {
	b := New(DefaultConfig(), nil)
	calls := 0
	err := b.Run(context.Background(), "dispatch", "vendor-1", noopMeasure, func(ctx context.Context) error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("Run returned %v", err)
	}
	if calls != 1 {
		t.Errorf("fn called %d times; want 1", calls)
	}
}

func TestRunRetriesOnFailureWithLinearBackoff(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Retries = 3
	cfg.BaseDelay = time.Millisecond
	b := New(cfg, nil)

	var slept []time.Duration
	b.sleep = func(d time.Duration) { slept = append(slept, d) }

	calls := 0
	boom := errors.New("boom")
	err := b.Run(context.Background(), "dispatch", "vendor-1", noopMeasure, func(ctx context.Context) error {
		calls++
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Run returned %v; want boom", err)
	}
	if calls != 3 {
		t.Errorf("fn called %d times; want 3", calls)
	}
	if len(slept) != 2 || slept[0] != time.Millisecond || slept[1] != 2*time.Millisecond {
		t.Errorf("sleep durations = %v; want [1ms, 2ms]", slept)
	}
}

func TestRunRethrowsNonRetryableErrorWithoutRetryingOrCounting(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Retries = 3
	cfg.MaxFailures = 1
	cfg.BaseDelay = time.Millisecond
	b := New(cfg, nil)

	var slept []time.Duration
	b.sleep = func(d time.Duration) { slept = append(slept, d) }

	calls := 0
	err := b.Run(context.Background(), "dispatch", "vendor-1", noopMeasure, func(ctx context.Context) error {
		calls++
		return models.ErrNoDrivers
	})
	if !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("Run returned %v; want ErrNotFound (ErrNoDrivers)", err)
	}
	if calls != 1 {
		t.Errorf("fn called %d times; want 1 (non-retryable error must not retry)", calls)
	}
	if len(slept) != 0 {
		t.Errorf("slept %v; want no backoff sleep for a non-retryable error", slept)
	}

	snap := b.Snapshot()
	if len(snap) != 1 || snap[0].State != models.BreakerClosed {
		t.Errorf("Snapshot = %+v; want CLOSED (non-retryable failure must not count toward OPENing)", snap)
	}
}

func TestOpenCircuitShortCircuitsWithoutRetrying(t *testing.T) {
	cfg := Config{MaxFailures: 1, ResetTimeout: time.Hour, Retries: 3, BaseDelay: time.Millisecond}
	b := New(cfg, nil)
	b.sleep = func(d time.Duration) {}

	boom := errors.New("boom")
	_ = b.Run(context.Background(), "dispatch", "vendor-1", noopMeasure, func(ctx context.Context) error {
		return boom
	})

	calls := 0
	err := b.Run(context.Background(), "dispatch", "vendor-1", noopMeasure, func(ctx context.Context) error {
		calls++
		return nil
	})
	if !errors.Is(err, models.ErrCircuitOpen) {
		t.Fatalf("Run returned %v; want ErrCircuitOpen", err)
	}
	if calls != 0 {
		t.Errorf("fn called while circuit OPEN; want 0 calls")
	}
}

func TestHalfOpenTrialSuccessClosesCircuit(t *testing.T) {
	cfg := Config{MaxFailures: 1, ResetTimeout: time.Millisecond, Retries: 1, BaseDelay: time.Millisecond}
	b := New(cfg, nil)

	base := time.Now()
	b.now = func() time.Time { return base }

	_ = b.Run(context.Background(), "dispatch", "v", noopMeasure, func(ctx context.Context) error {
		return errors.New("boom")
	})

	b.now = func() time.Time { return base.Add(time.Hour) }

	err := b.Run(context.Background(), "dispatch", "v", noopMeasure, func(ctx context.Context) error {
		return nil
	})
	if err != nil {
		t.Fatalf("half-open trial returned %v; want nil", err)
	}

	snap := b.Snapshot()
	if len(snap) != 1 || snap[0].State != models.BreakerClosed {
		t.Errorf("Snapshot = %+v; want CLOSED", snap)
	}
}
