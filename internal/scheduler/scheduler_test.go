package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"dispatch-and-delivery/internal/models"
)

func TestTickRunsDueJobAndReschedulesPeriodic(t *testing.T) {
	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	s := New(DefaultConfig(), nil)
	s.now = func() time.Time { return base }

	var calls int32
	s.Schedule("sweep", func(ctx context.Context) error {
		atomic.AddInt32(&calls, 1)
		return nil
	}, models.Trigger{Interval: models.Every30m}, models.DefaultJobOpts())

	s.now = func() time.Time { return base.Add(31 * time.Minute) }
	s.Tick(context.Background())

	if atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("job ran %d times; want 1", calls)
	}

	snap := s.Snapshot()
	if len(snap) != 1 || snap[0].Status != models.JobScheduled {
		t.Errorf("Snapshot = %+v; want SCHEDULED after successful periodic run", snap)
	}
	if !snap[0].NextRun.Equal(base.Add(31 * time.Minute).Add(30 * time.Minute)) {
		t.Errorf("NextRun = %v; want base+31m+30m", snap[0].NextRun)
	}
}

func TestOneShotJobRemovedAfterCompletion(t *testing.T) {
	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	s := New(DefaultConfig(), nil)
	s.now = func() time.Time { return base }

	s.Schedule("one-shot", func(ctx context.Context) error { return nil }, models.Trigger{At: base}, models.DefaultJobOpts())
	s.Tick(context.Background())

	if len(s.Snapshot()) != 0 {
		t.Errorf("one-shot job still present after completion")
	}
}

func TestPriorityOrderingWithinOneTick(t *testing.T) {
	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	s := New(Config{MaxConcurrentJobs: 1, Tick: time.Second}, nil)
	s.now = func() time.Time { return base }

	var order []string
	record := func(name string) JobFunc {
		return func(ctx context.Context) error {
			order = append(order, name)
			return nil
		}
	}

	lowOpts := models.DefaultJobOpts()
	lowOpts.Priority = models.PriorityLow
	highOpts := models.DefaultJobOpts()
	highOpts.Priority = models.PriorityHigh

	s.Schedule("low", record("low"), models.Trigger{At: base}, lowOpts)
	s.Schedule("high", record("high"), models.Trigger{At: base}, highOpts)
	s.Tick(context.Background())

	if len(order) != 2 || order[0] != "high" || order[1] != "low" {
		t.Errorf("execution order = %v; want [high, low]", order)
	}
}

func TestFailureSchedulesRetryWithLinearBackoff(t *testing.T) {
	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	s := New(DefaultConfig(), nil)
	s.now = func() time.Time { return base }

	opts := models.DefaultJobOpts()
	opts.MaxRetries = 3
	s.Schedule("flaky", func(ctx context.Context) error { return errors.New("boom") }, models.Trigger{At: base}, opts)
	s.Tick(context.Background())

	snap := s.Snapshot()
	if snap[0].RetryCount != 1 {
		t.Fatalf("RetryCount = %d; want 1", snap[0].RetryCount)
	}
	if snap[0].Status != models.JobScheduled {
		t.Errorf("Status = %v; want SCHEDULED (retries remain)", snap[0].Status)
	}
	if !snap[0].NextRun.Equal(base.Add(30 * time.Second)) {
		t.Errorf("NextRun = %v; want base+30s", snap[0].NextRun)
	}
}

func TestOneShotJobRemovedAfterExhaustingRetries(t *testing.T) {
	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	s := New(DefaultConfig(), nil)
	s.now = func() time.Time { return base }

	opts := models.DefaultJobOpts()
	opts.MaxRetries = 2
	s.Schedule("flaky", func(ctx context.Context) error { return errors.New("boom") }, models.Trigger{At: base}, opts)

	s.Tick(context.Background())
	snap := s.Snapshot()
	if snap[0].RetryCount != 1 || snap[0].Status != models.JobScheduled {
		t.Fatalf("after failure 1: RetryCount=%d Status=%v; want 1/SCHEDULED", snap[0].RetryCount, snap[0].Status)
	}
	if !snap[0].NextRun.Equal(base.Add(30 * time.Second)) {
		t.Errorf("after failure 1: NextRun = %v; want base+30s", snap[0].NextRun)
	}

	s.now = func() time.Time { return base.Add(30 * time.Second) }
	s.Tick(context.Background())
	snap = s.Snapshot()
	if snap[0].RetryCount != 2 || snap[0].Status != models.JobScheduled {
		t.Fatalf("after failure 2: RetryCount=%d Status=%v; want 2/SCHEDULED", snap[0].RetryCount, snap[0].Status)
	}
	if !snap[0].NextRun.Equal(base.Add(30*time.Second).Add(60 * time.Second)) {
		t.Errorf("after failure 2: NextRun = %v; want +60s from second attempt", snap[0].NextRun)
	}

	s.now = func() time.Time { return base.Add(90 * time.Second) }
	s.Tick(context.Background())
	if len(s.Snapshot()) != 0 {
		t.Errorf("after failure 3: job table = %v; want job removed", s.Snapshot())
	}
}

func TestTimeoutSchedulesRetryWithLongerBackoff(t *testing.T) {
	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	s := New(DefaultConfig(), nil)
	s.now = func() time.Time { return base }

	opts := models.DefaultJobOpts()
	opts.MaxRetries = 3
	opts.Timeout = 10 * time.Millisecond
	s.Schedule("slow", func(ctx context.Context) error {
		time.Sleep(50 * time.Millisecond)
		return nil
	}, models.Trigger{At: base}, opts)
	s.Tick(context.Background())

	snap := s.Snapshot()
	if snap[0].Status != models.JobScheduled {
		t.Fatalf("Status = %v; want SCHEDULED (retries remain after timeout)", snap[0].Status)
	}
	if !snap[0].NextRun.Equal(base.Add(60 * time.Second)) {
		t.Errorf("NextRun = %v; want base+60s", snap[0].NextRun)
	}
}
