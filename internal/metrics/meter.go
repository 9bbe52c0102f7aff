// Package metrics implements the performance meter, spec.md §4.6: a
// per-operation ring buffer of (duration, memory delta, outcome)
// samples, alert emission on threshold breach, and an aggregated
// system-health report.
package metrics

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"dispatch-and-delivery/internal/models"
)

const (
	maxRingLen      = 200
	trimRingLen     = 100
	lastErrorsLimit = 5
	maxStackPrefix  = 500
)

// AlertFunc forwards a performance alert to the notifier, with
// severity "normal" on channels email+chat per spec.md §4.6. Wired by
// the orchestrator so this package never imports internal/notify
// directly.
type AlertFunc func(ctx context.Context, op string, sample models.MetricSample)

// Meter owns the per-operation ring buffers and the thresholds that
// trigger alerts.
type Meter struct {
	mu      sync.Mutex
	buffers map[string][]models.MetricSample

	durationAlertMs int64
	memAlertBytes   int64
	heapLimitBytes  int64

	alert AlertFunc
	log   *zap.SugaredLogger
	now   func() time.Time

	durationGauge *prometheus.GaugeVec
	errorCounter  *prometheus.CounterVec
}

// New constructs a Meter. durationAlertMs/memAlertBytes/heapLimitBytes
// come from config (spec.md §6 defaults: 5000, 134217728, 536870912).
func New(durationAlertMs, memAlertBytes, heapLimitBytes int64, alert AlertFunc, log *zap.SugaredLogger) *Meter {
	m := &Meter{
		buffers:         make(map[string][]models.MetricSample),
		durationAlertMs: durationAlertMs,
		memAlertBytes:   memAlertBytes,
		heapLimitBytes:  heapLimitBytes,
		alert:           alert,
		log:             log,
		now:             time.Now,
		durationGauge: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "dispatch_op_duration_ms",
			Help: "Most recent duration sample per operation, in milliseconds.",
		}, []string{"op"}),
		errorCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dispatch_op_errors_total",
			Help: "Total failed operation samples per operation.",
		}, []string{"op"}),
	}
	return m
}

// Register attaches the meter's prometheus collectors to reg. Tests
// pass a dedicated registry so they can construct independent meters;
// cmd/dispatchd registers on prometheus.DefaultRegisterer.
func (m *Meter) Register(reg prometheus.Registerer) error {
	if err := reg.Register(m.durationGauge); err != nil {
		return fmt.Errorf("register duration gauge: %w", err)
	}
	if err := reg.Register(m.errorCounter); err != nil {
		return fmt.Errorf("register error counter: %w", err)
	}
	return nil
}

// Measure runs fn, recording a sample for op and alerting on
// threshold breach. The memory delta is taken from runtime.MemStats
// heap-alloc before/after fn runs.
func (m *Meter) Measure(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	start := m.now()
	memBefore := heapAlloc()

	err := fn(ctx)

	duration := m.now().Sub(start)
	memDelta := heapAlloc() - memBefore

	sample := models.MetricSample{
		Duration:     duration,
		MemDeltaByte: memDelta,
		Success:      err == nil,
		At:           m.now(),
	}
	if err != nil {
		sample.ErrorMessage = truncate(err.Error(), maxStackPrefix)
	}

	m.record(op, sample)

	if err == nil && m.breachesThreshold(sample) && m.alert != nil {
		m.alert(ctx, op, sample)
	}
	return err
}

func (m *Meter) breachesThreshold(s models.MetricSample) bool {
	return s.Duration.Milliseconds() > m.durationAlertMs || s.MemDeltaByte > m.memAlertBytes
}

func (m *Meter) record(op string, s models.MetricSample) {
	m.mu.Lock()
	defer m.mu.Unlock()

	buf := append(m.buffers[op], s)
	if len(buf) > maxRingLen {
		buf = buf[len(buf)-trimRingLen:]
	}
	m.buffers[op] = buf

	m.durationGauge.WithLabelValues(op).Set(float64(s.Duration.Milliseconds()))
	if !s.Success {
		m.errorCounter.WithLabelValues(op).Inc()
	}
}

// Report aggregates every tracked operation's ring buffer plus a
// system-health bucket.
func (m *Meter) Report() models.PerformanceOverview {
	m.mu.Lock()
	ops := make([]string, 0, len(m.buffers))
	bufs := make(map[string][]models.MetricSample, len(m.buffers))
	for op, buf := range m.buffers {
		ops = append(ops, op)
		bufs[op] = append([]models.MetricSample(nil), buf...)
	}
	m.mu.Unlock()

	sort.Strings(ops)

	reports := make([]models.MetricReport, 0, len(ops))
	for _, op := range ops {
		reports = append(reports, aggregate(op, bufs[op]))
	}

	return models.PerformanceOverview{
		Ops:    reports,
		Health: m.health(bufs),
	}
}

func aggregate(op string, samples []models.MetricSample) models.MetricReport {
	r := models.MetricReport{Op: op, Count: len(samples)}
	if len(samples) == 0 {
		return r
	}

	var successCount int
	var totalDuration, memDeltaTotal int64
	r.MinDuration = samples[0].Duration
	r.MaxDuration = samples[0].Duration
	var errs []string

	for _, s := range samples {
		if s.Success {
			successCount++
		} else if s.ErrorMessage != "" {
			errs = append(errs, s.ErrorMessage)
		}
		totalDuration += s.Duration.Nanoseconds()
		memDeltaTotal += s.MemDeltaByte
		if s.Duration < r.MinDuration {
			r.MinDuration = s.Duration
		}
		if s.Duration > r.MaxDuration {
			r.MaxDuration = s.Duration
		}
	}

	r.SuccessRate = float64(successCount) / float64(len(samples))
	r.MeanDuration = time.Duration(totalDuration / int64(len(samples)))
	r.MeanMemDelta = memDeltaTotal / int64(len(samples))

	if len(errs) > lastErrorsLimit {
		errs = errs[len(errs)-lastErrorsLimit:]
	}
	r.LastErrors = errs
	return r
}

// health buckets GOOD/FAIR/WARNING/CRITICAL from the last hour's
// pooled error rate and mean duration, escalated to CRITICAL outright
// if current heap usage exceeds the configured limit. Thresholds are
// an implementation decision (spec.md leaves exact cutoffs open):
// errorRate is compared against fixed 10%/5%/1% cutoffs, and
// avgDuration against the configured alert threshold, doubled for the
// CRITICAL tier.
func (m *Meter) health(bufs map[string][]models.MetricSample) models.HealthBucket {
	if heapAlloc() > m.heapLimitBytes {
		return models.HealthCritical
	}

	cutoff := m.now().Add(-1 * time.Hour)
	var total, failed int
	var durationSum time.Duration

	for _, samples := range bufs {
		for _, s := range samples {
			if s.At.Before(cutoff) {
				continue
			}
			total++
			durationSum += s.Duration
			if !s.Success {
				failed++
			}
		}
	}
	if total == 0 {
		return models.HealthGood
	}

	errorRate := float64(failed) / float64(total)
	avgDurationMs := float64(durationSum.Milliseconds()) / float64(total)
	alertMs := float64(m.durationAlertMs)

	switch {
	case errorRate > 0.10 || avgDurationMs > alertMs*2:
		return models.HealthCritical
	case errorRate > 0.05 || avgDurationMs > alertMs:
		return models.HealthWarning
	case errorRate > 0.01:
		return models.HealthFair
	default:
		return models.HealthGood
	}
}

func heapAlloc() int64 {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	return int64(ms.HeapAlloc)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
