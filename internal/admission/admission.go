// Package admission implements resource admission control, spec.md
// §4.8: a fixed set of counted resources with hard limits, and a
// periodic sampler that triggers emergency cleanup when heap usage
// crosses its limit.
package admission

import (
	"context"
	"runtime"
	"sync"
	"time"

	"go.uber.org/atomic"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"dispatch-and-delivery/internal/models"
)

// Limits mirrors spec.md §6's resourceLimits.* tunables (cpuPct and
// dbConns are unconfigured in §6's enumerated list but still carry
// spec.md §4.8's stated defaults).
type Limits struct {
	ActiveDispatch int64
	HeapBytes      int64
	CPUPercent     int64
	DBConns        int64
}

// DefaultLimits matches spec.md §4.8's stated defaults.
func DefaultLimits() Limits {
	return Limits{ActiveDispatch: 100, HeapBytes: 512 * 1024 * 1024, CPUPercent: 80, DBConns: 50}
}

func (l Limits) limitFor(t models.ResourceType) int64 {
	switch t {
	case models.ResourceActiveDispatch:
		return l.ActiveDispatch
	case models.ResourceHeapBytes:
		return l.HeapBytes
	case models.ResourceCPUPercent:
		return l.CPUPercent
	case models.ResourceDBConns:
		return l.DBConns
	default:
		return 0
	}
}

// AlertFunc records a resource-exhaustion alert; wired by the
// orchestrator so this package never imports internal/notify.
type AlertFunc func(ctx context.Context, t models.ResourceType, current, limit, requested int64)

// PrioritizeFunc is the "prioritize high-value pending orders" signal
// spec.md §4.8 calls for on activeDispatch exhaustion, exposed as a
// callback the orchestrator wires.
type PrioritizeFunc func(ctx context.Context)

// CleanupFunc clears one of the process-local caches during emergency
// cleanup (cache, adaptive cache, spatial index all implement it via
// their own Clear()).
type CleanupFunc func()

// resourceTypes is the fixed set admission tracks, per spec.md §4.8.
var resourceTypes = []models.ResourceType{
	models.ResourceActiveDispatch, models.ResourceHeapBytes,
	models.ResourceCPUPercent, models.ResourceDBConns,
}

// Admission tracks current usage per resource type against its limit.
// The counters are lock-free atomics; mu only guards the cleanups
// slice, which Sample reads into a snapshot before running hooks.
type Admission struct {
	mu         sync.Mutex
	current    map[models.ResourceType]*atomic.Int64
	limits     Limits
	alert      AlertFunc
	prioritize PrioritizeFunc
	cleanups   []CleanupFunc
	log        *zap.SugaredLogger
	sampleCPU  func() int64
	sampleDB   func() int64
	sampleHeap func() int64
	sampleGate *rate.Limiter
}

// New constructs an Admission tracker with limits, an alert callback,
// and the prioritize-on-exhaustion callback. Sample is paced to at
// most once per second regardless of how often callers invoke it, so
// a misconfigured job cadence can't turn sampling into a busy loop.
func New(limits Limits, alert AlertFunc, prioritize PrioritizeFunc, log *zap.SugaredLogger) *Admission {
	current := make(map[models.ResourceType]*atomic.Int64, len(resourceTypes))
	for _, t := range resourceTypes {
		current[t] = atomic.NewInt64(0)
	}
	return &Admission{
		current:    current,
		limits:     limits,
		alert:      alert,
		prioritize: prioritize,
		log:        log,
		sampleCPU:  func() int64 { return 0 },
		sampleDB:   func() int64 { return 0 },
		sampleHeap: defaultHeapSample,
		sampleGate: rate.NewLimiter(rate.Every(time.Second), 1),
	}
}

// RegisterCleanup adds a cleanup hook run by emergency cleanup, in
// registration order.
func (a *Admission) RegisterCleanup(fn CleanupFunc) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.cleanups = append(a.cleanups, fn)
}

// Handle releases the resources it was issued for. Release is not
// idempotent: every call decrements again, so it is called exactly
// once per Handle (WithResources calls it once per acquisition).
type Handle struct {
	a     *Admission
	types map[models.ResourceType]int64
}

// Acquire atomically checks current+n<=limit for t and increments on
// success, via a compare-and-swap loop rather than a lock — Acquire
// and Release on independent resource types never contend.
func (a *Admission) Acquire(ctx context.Context, t models.ResourceType, n int64) (*Handle, error) {
	limit := a.limits.limitFor(t)
	counter := a.current[t]

	for {
		cur := counter.Load()
		if cur+n > limit {
			if a.alert != nil {
				a.alert(ctx, t, cur, limit, n)
			}
			if a.log != nil {
				a.log.Errorw("resource exhausted", "type", t, "current", cur, "limit", limit, "requested", n)
			}
			if t == models.ResourceActiveDispatch && a.prioritize != nil {
				a.prioritize(ctx)
			}
			return nil, models.NewDispatchError(models.ErrResourceExhausted, string(t), map[string]any{
				"current": cur, "limit": limit, "requested": n,
			})
		}
		if counter.CAS(cur, cur+n) {
			break
		}
	}

	return &Handle{a: a, types: map[models.ResourceType]int64{t: n}}, nil
}

// Release decrements every resource this handle was issued for.
func (h *Handle) Release() {
	for t, n := range h.types {
		h.a.current[t].Sub(n)
	}
}

// WithResources acquires every {type: n} pair in declaration order,
// runs fn, and releases in reverse order on every exit path including
// a panic or an error from fn.
func (a *Admission) WithResources(ctx context.Context, order []models.ResourceType, amounts map[models.ResourceType]int64, fn func(ctx context.Context) error) error {
	handles := make([]*Handle, 0, len(order))
	defer func() {
		for i := len(handles) - 1; i >= 0; i-- {
			handles[i].Release()
		}
	}()

	for _, t := range order {
		h, err := a.Acquire(ctx, t, amounts[t])
		if err != nil {
			return err
		}
		handles = append(handles, h)
	}

	return fn(ctx)
}

// Sample refreshes the heap/cpu/db counters and triggers emergency
// cleanup if heap usage exceeds its limit. A no-op if called more
// than once a second — see sampleGate on New.
func (a *Admission) Sample(ctx context.Context) {
	if !a.sampleGate.Allow() {
		return
	}

	heap := a.sampleHeap()
	cpu := a.sampleCPU()
	db := a.sampleDB()

	a.current[models.ResourceHeapBytes].Store(heap)
	a.current[models.ResourceCPUPercent].Store(cpu)
	a.current[models.ResourceDBConns].Store(db)
	exceeded := heap > a.limits.HeapBytes

	a.mu.Lock()
	cleanups := append([]CleanupFunc(nil), a.cleanups...)
	a.mu.Unlock()

	if exceeded {
		if a.log != nil {
			a.log.Errorw("heap limit exceeded, running emergency cleanup", "heap", heap, "limit", a.limits.HeapBytes)
		}
		for _, fn := range cleanups {
			fn()
		}
	}
}

// Snapshot returns the operator-facing view of every tracked
// resource type.
func (a *Admission) Snapshot() []models.ResourceSnapshot {
	out := make([]models.ResourceSnapshot, 0, len(resourceTypes))
	for _, t := range resourceTypes {
		out = append(out, models.ResourceSnapshot{Type: t, Current: a.current[t].Load(), Limit: a.limits.limitFor(t)})
	}
	return out
}

func defaultHeapSample() int64 {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	return int64(ms.HeapAlloc)
}
