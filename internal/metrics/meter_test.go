package metrics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"dispatch-and-delivery/internal/models"
)

func TestMeasureRecordsSuccessSample(t *testing.T) {
	m := New(5000, 134217728, 536870912, nil, nil)
	err := m.Measure(context.Background(), "matchDrivers", func(ctx context.Context) error {
		return nil
	})
	if err != nil {
		t.Fatalf("Measure returned %v", err)
	}

	report := m.Report()
	if len(report.Ops) != 1 || report.Ops[0].Op != "matchDrivers" {
		t.Fatalf("Report.Ops = %+v; want one entry for matchDrivers", report.Ops)
	}
	if report.Ops[0].SuccessRate != 1 {
		t.Errorf("SuccessRate = %v; want 1", report.Ops[0].SuccessRate)
	}
}

func TestMeasurePropagatesFailureAndRecordsError(t *testing.T) {
	m := New(5000, 134217728, 536870912, nil, nil)
	boom := errors.New("boom")

	err := m.Measure(context.Background(), "dispatchOrder", func(ctx context.Context) error {
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Measure returned %v; want boom", err)
	}

	report := m.Report()
	if report.Ops[0].SuccessRate != 0 {
		t.Errorf("SuccessRate = %v; want 0", report.Ops[0].SuccessRate)
	}
	if len(report.Ops[0].LastErrors) != 1 || report.Ops[0].LastErrors[0] != "boom" {
		t.Errorf("LastErrors = %v; want [boom]", report.Ops[0].LastErrors)
	}
}

func TestMeasureAlertsOnDurationBreach(t *testing.T) {
	var alerted bool
	alert := func(ctx context.Context, op string, s models.MetricSample) { alerted = true }

	m := New(5000, 134217728, 536870912, alert, nil)
	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	calls := 0
	m.now = func() time.Time {
		calls++
		if calls == 1 {
			return base
		}
		return base.Add(6 * time.Second)
	}

	_ = m.Measure(context.Background(), "slowOp", func(ctx context.Context) error { return nil })

	if !alerted {
		t.Errorf("alert not invoked on duration breach")
	}
}

func TestReportRingBufferTrimsOnOverflow(t *testing.T) {
	m := New(5000, 134217728, 536870912, nil, nil)
	for i := 0; i < 250; i++ {
		m.record("op", models.MetricSample{Duration: time.Millisecond, Success: true, At: time.Now()})
	}
	// Record 201 overflows maxRingLen and trims the buffer to
	// trimRingLen; the remaining 49 records are appended after the trim.
	want := trimRingLen + 49
	if got := len(m.buffers["op"]); got != want {
		t.Errorf("ring buffer length after overflow = %d; want %d", got, want)
	}
}

func TestRegisterAttachesCollectors(t *testing.T) {
	m := New(5000, 134217728, 536870912, nil, nil)
	reg := prometheus.NewRegistry()
	if err := m.Register(reg); err != nil {
		t.Fatalf("Register returned %v", err)
	}
}
