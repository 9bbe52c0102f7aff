// Package dispatch implements the orchestrator (C12), spec.md §4.12:
// the single request-driven operation that composes admission
// control, the circuit breaker, the adaptive cache, the spatial
// index, and the matcher into one dispatch(order, context) call.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"dispatch-and-delivery/internal/admission"
	"dispatch-and-delivery/internal/breaker"
	"dispatch-and-delivery/internal/cache"
	"dispatch-and-delivery/internal/matcher"
	"dispatch-and-delivery/internal/models"
	"dispatch-and-delivery/internal/spatial"
	"dispatch-and-delivery/internal/threat"
)

const driverSetBaseMinutes = 2

var contextValidator = validator.New()

// Result is what a successful dispatch returns: the chosen driver and
// the score that won them the slot.
type Result struct {
	DriverID string
	Score    float64
}

// DriverSource supplies the live candidate population for a vendor.
type DriverSource interface {
	ListCandidates(ctx context.Context, order models.Order) ([]models.Driver, error)
}

// PreferenceSource supplies a customer's preferred/blocked driver
// lists.
type PreferenceSource interface {
	Customer(ctx context.Context, uid string) (models.CustomerPreference, error)
}

// PerformanceSource supplies a driver's 30-day performance rollup.
type PerformanceSource interface {
	FetchWindow(ctx context.Context, driverID string, fromInstant time.Time) (models.PerformanceAggregate, error)
}

const performanceWindow = 30 * 24 * time.Hour

// NotifyFunc informs the winning driver (or operator feed) of the
// assignment; wired to internal/notify without this package importing
// it directly.
type NotifyFunc func(ctx context.Context, driverID string, order models.Order)

// MeasureFunc wraps a single breaker attempt with the performance
// meter.
type MeasureFunc func(ctx context.Context, op string, fn func(ctx context.Context) error) error

// Orchestrator composes C2/C3/C4/C5/C7/C8/C9 into dispatch(order, ctx).
type Orchestrator struct {
	drivers     DriverSource
	preferences PreferenceSource
	performance PerformanceSource
	adaptive    *cache.AdaptiveCache
	spatialIdx  *spatial.Index
	breaker     *breaker.Breaker
	admission   *admission.Admission
	threatMeter *threat.Meter
	notify      NotifyFunc
	measure     MeasureFunc
	log         *zap.SugaredLogger
	now         func() time.Time
}

// New wires every component the orchestrator composes. Components are
// constructed by the caller (cmd/dispatchd) and passed in fully
// configured.
func New(
	drivers DriverSource,
	preferences PreferenceSource,
	performance PerformanceSource,
	adaptive *cache.AdaptiveCache,
	spatialIdx *spatial.Index,
	br *breaker.Breaker,
	adm *admission.Admission,
	threatMeter *threat.Meter,
	notify NotifyFunc,
	measure MeasureFunc,
	log *zap.SugaredLogger,
) *Orchestrator {
	return &Orchestrator{
		drivers: drivers, preferences: preferences, performance: performance, adaptive: adaptive,
		spatialIdx: spatialIdx, breaker: br, admission: adm, threatMeter: threatMeter,
		notify: notify, measure: measure, log: log, now: time.Now,
	}
}

func driverSetKey(order models.Order) string {
	return fmt.Sprintf("drivers:%s", order.VendorID)
}

// Dispatch runs the full spec.md §4.12 pipeline: acquire activeDispatch,
// run the candidate-fetch/rank/pick under the circuit breaker keyed on
// (dispatch, vendorID), and record a threat score for the requesting
// author regardless of outcome. A matcher.Context that fails
// validation is rejected before any of this, with no threat score
// recorded.
func (o *Orchestrator) Dispatch(ctx context.Context, order models.Order, mctx matcher.Context, tctx models.ThreatContext) (Result, error) {
	if err := contextValidator.Struct(mctx); err != nil {
		return Result{}, models.NewDispatchError(models.ErrInvalidArgument, order.ID, map[string]any{"cause": err.Error()})
	}

	var result Result

	err := o.admission.WithResources(ctx,
		[]models.ResourceType{models.ResourceActiveDispatch},
		map[models.ResourceType]int64{models.ResourceActiveDispatch: 1},
		func(ctx context.Context) error {
			measure := func(ctx context.Context, op string, fn func(ctx context.Context) error) error {
				if o.measure == nil {
					return fn(ctx)
				}
				return o.measure(ctx, op, fn)
			}
			return o.breaker.Run(ctx, "dispatch", order.VendorID, measure, func(ctx context.Context) error {
				r, err := o.pickDriver(ctx, order, mctx)
				if err != nil {
					return err
				}
				result = r
				return nil
			})
		},
	)

	if o.threatMeter != nil {
		o.threatMeter.Score(ctx, order.AuthorID, "dispatch_order", tctx)
	}

	if err != nil {
		return Result{}, classify(err, order)
	}
	return result, nil
}

func (o *Orchestrator) pickDriver(ctx context.Context, order models.Order, mctx matcher.Context) (Result, error) {
	candidates, err := o.candidateDrivers(ctx, order)
	if err != nil {
		return Result{}, err
	}

	near := o.spatialIdx.Near(order.VendorLatitude, order.VendorLongitude, order.RadiusMiles)
	filtered := intersectByID(near, candidates)

	if o.preferences != nil && order.AuthorID != "" {
		pref, err := o.preferences.Customer(ctx, order.AuthorID)
		if err == nil {
			mctx.Preference = pref
		}
	}
	if mctx.Now.IsZero() {
		mctx.Now = o.now()
	}

	ranked := matcher.Rank(order, filtered, mctx)
	if len(ranked) == 0 {
		return Result{}, models.ErrNoDrivers
	}

	winner := ranked[0]
	if o.notify != nil {
		o.notify(ctx, winner.ID, order)
	}
	return Result{DriverID: winner.ID, Score: winner.MatchScore}, nil
}

// candidateDrivers fetches (and caches, per C3) the driver set for
// order's vendor, then feeds it into the spatial index so Near
// reflects the latest snapshot.
func (o *Orchestrator) candidateDrivers(ctx context.Context, order models.Order) ([]models.Driver, error) {
	key := driverSetKey(order)
	loader := func(ctx context.Context) (any, error) {
		drivers, err := o.drivers.ListCandidates(ctx, order)
		if err != nil {
			return nil, fmt.Errorf("ListCandidates: %w", err)
		}
		o.enrichPerformance(ctx, drivers)
		o.spatialIdx.UpsertDrivers(drivers)
		return drivers, nil
	}

	v, err := o.adaptive.GetOrLoad(ctx, key, loader, driverSetBaseMinutes)
	if err != nil {
		return nil, err
	}
	drivers, ok := v.([]models.Driver)
	if !ok {
		return nil, models.NewDispatchError(models.ErrInternal, key, map[string]any{"reason": "unexpected cache value type"})
	}
	return drivers, nil
}

// enrichPerformance fills in each driver's 30-day rollup in place. A
// per-driver fetch failure leaves that driver's aggregate zero-valued
// (matcher.performanceScore's documented "no data" default) rather
// than failing the whole candidate fetch.
func (o *Orchestrator) enrichPerformance(ctx context.Context, drivers []models.Driver) {
	if o.performance == nil {
		return
	}
	since := o.now().Add(-performanceWindow)
	for i := range drivers {
		agg, err := o.performance.FetchWindow(ctx, drivers[i].ID, since)
		if err != nil {
			if o.log != nil {
				o.log.Warnw("FetchWindow failed, scoring as no-data", "driver", drivers[i].ID, "error", err)
			}
			continue
		}
		drivers[i].Performance = agg
	}
}

func intersectByID(near []models.Driver, candidates []models.Driver) []models.Driver {
	known := make(map[string]bool, len(candidates))
	for _, d := range candidates {
		known[d.ID] = true
	}
	out := make([]models.Driver, 0, len(near))
	for _, d := range near {
		if known[d.ID] {
			out = append(out, d)
		}
	}
	return out
}

// classify maps an internal failure to the surfaced error taxonomy,
// per spec.md §4.12: NoDrivers/ResourceExhausted/CircuitOpen/
// InvalidArgument surface as-is; anything else becomes a generic
// internal failure.
func classify(err error, order models.Order) error {
	switch {
	case err == nil:
		return nil
	case isOneOf(err, models.ErrNoDrivers, models.ErrResourceExhausted, models.ErrCircuitOpen, models.ErrInvalidArgument):
		return err
	default:
		return models.NewDispatchError(models.ErrInternal, order.ID, map[string]any{"cause": err.Error()})
	}
}

func isOneOf(err error, sentinels ...error) bool {
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return true
		}
	}
	return false
}
