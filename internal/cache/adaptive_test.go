package cache

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestGetOrLoadCallsLoaderOnce(t *testing.T) {
	a := NewAdaptive(nil)
	var calls int32
	loader := func(ctx context.Context) (any, error) {
		atomic.AddInt32(&calls, 1)
		return 42, nil
	}

	v1, err := a.GetOrLoad(context.Background(), "k", loader, 5)
	if err != nil {
		t.Fatalf("GetOrLoad #1 error: %v", err)
	}
	v2, err := a.GetOrLoad(context.Background(), "k", loader, 5)
	if err != nil {
		t.Fatalf("GetOrLoad #2 error: %v", err)
	}
	if v1 != v2 {
		t.Errorf("GetOrLoad values differ: %v vs %v", v1, v2)
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Errorf("loader called %d times; want 1", calls)
	}
}

func TestOptimalTTLFewerThanFiveAccessesReturnsBase(t *testing.T) {
	a := NewAdaptive(nil)
	for i := 0; i < 3; i++ {
		a.recordAccess("k")
	}
	got := a.OptimalTTL("k", 5)
	if got != 5 {
		t.Errorf("OptimalTTL with <5 accesses = %v; want 5", got)
	}
}

func TestOptimalTTLScenario(t *testing.T) {
	// spec.md §8 scenario 4: 60 accesses in the last hour, hitRate .95
	// over 20 samples, baseMinutes=5 -> 18.
	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	a := NewAdaptive(nil)
	a.now = func() time.Time { return base }

	for i := 0; i < 60; i++ {
		a.recordAccess("k")
	}
	for i := 0; i < 19; i++ {
		a.recordOutcome("k", true)
	}
	a.recordOutcome("k", false)

	got := a.OptimalTTL("k", 5)
	if got != 18 {
		t.Errorf("OptimalTTL = %v; want 18", got)
	}
}

func TestOptimalTTLClampsToUpperBound(t *testing.T) {
	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	a := NewAdaptive(nil)
	a.now = func() time.Time { return base }
	for i := 0; i < 60; i++ {
		a.recordAccess("k")
	}
	for i := 0; i < 12; i++ {
		a.recordOutcome("k", true)
	}
	got := a.OptimalTTL("k", 100) // 100*3.0*1.2 = 360, clamp to 120
	if got != 120 {
		t.Errorf("OptimalTTL = %v; want 120 (clamped)", got)
	}
}

func TestPreloadIsolatesFailures(t *testing.T) {
	a := NewAdaptive(nil)
	specs := []PreloadSpec{
		{Key: "good", Loader: func(ctx context.Context) (any, error) { return 1, nil }, BaseMinutes: 5},
		{Key: "bad", Loader: func(ctx context.Context) (any, error) { return nil, errBoom }, BaseMinutes: 5},
	}
	a.Preload(context.Background(), specs)

	if _, ok := a.base.Get("good"); !ok {
		t.Errorf("good key not cached after preload")
	}
	if _, ok := a.base.Get("bad"); ok {
		t.Errorf("bad key unexpectedly cached")
	}
}

var errBoom = &testErr{"boom"}

type testErr struct{ msg string }

func (e *testErr) Error() string { return e.msg }
