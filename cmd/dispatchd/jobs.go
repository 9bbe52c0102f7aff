package main

import (
	"context"

	"dispatch-and-delivery/internal/scheduler"
	"dispatch-and-delivery/internal/store"
)

// systemJobHandlers wires jobs.yaml's declarative system-job list
// (internal/scheduler/registry.go) to this deployment's live
// components, per spec.md §4.10's boot-time job list.
func (d *deployment) systemJobHandlers(auditSink store.AuditSinkInterface) map[string]scheduler.JobFunc {
	return map[string]scheduler.JobFunc{
		"cleanup-sweeper": func(ctx context.Context) error {
			d.adaptive.Clear()
			d.spatialIdx.Clear()
			return nil
		},
		"performance-report": func(ctx context.Context) error {
			report := d.metrics.Report()
			return auditSink.AppendAudit(ctx, "performance_reports", report)
		},
		"cache-preload": func(ctx context.Context) error {
			// No vendor directory exists to enumerate warm-candidate
			// keys from (store.DriverSource indexes by driver, not
			// vendor) — audited as a no-op until one does.
			return auditSink.AppendAudit(ctx, "performance_reports", map[string]any{"job": "cache-preload", "note": "no preload source configured"})
		},
		"threat-report": func(ctx context.Context) error {
			return auditSink.AppendAudit(ctx, "security_logs", map[string]any{"suspended": d.threatM.SuspendedSubjects()})
		},
		"resource-sampler": func(ctx context.Context) error {
			d.admission.Sample(ctx)
			return nil
		},
		"spatial-index-gc": func(ctx context.Context) error {
			d.spatialIdx.GCStale()
			return nil
		},
		"demand-prediction": func(ctx context.Context) error {
			return auditSink.AppendAudit(ctx, "predictions", map[string]any{"job": "demand-prediction", "note": "forecasting model not yet wired"})
		},
		"utilization-prediction": func(ctx context.Context) error {
			return auditSink.AppendAudit(ctx, "predictions", map[string]any{"job": "utilization-prediction", "note": "forecasting model not yet wired"})
		},
	}
}
