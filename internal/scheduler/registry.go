package scheduler

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"

	"dispatch-and-delivery/internal/models"
)

//go:embed jobs.yaml
var systemJobsYAML []byte

// SystemJobSpec is one declarative entry from jobs.yaml.
type SystemJobSpec struct {
	ID       string `yaml:"id"`
	Interval string `yaml:"interval"`
	Priority string `yaml:"priority"`
}

type jobsFile struct {
	Jobs []SystemJobSpec `yaml:"jobs"`
}

// LoadSystemJobs parses the embedded system job registry, per
// spec.md §4.10's boot-time list (cleanup sweeper, performance
// report, cache preload, threat report, resource sampler,
// spatial-index GC, demand prediction, utilization prediction).
func LoadSystemJobs() ([]SystemJobSpec, error) {
	var f jobsFile
	if err := yaml.Unmarshal(systemJobsYAML, &f); err != nil {
		return nil, fmt.Errorf("parse jobs.yaml: %w", err)
	}
	return f.Jobs, nil
}

var intervalTokens = map[string]models.IntervalToken{
	"second": models.EverySecond,
	"5s":     models.Every5s,
	"10s":    models.Every10s,
	"30s":    models.Every30s,
	"minute": models.EveryMinute,
	"5m":     models.Every5m,
	"10m":    models.Every10m,
	"15m":    models.Every15m,
	"30m":    models.Every30m,
	"hour":   models.EveryHour,
	"day":    models.EveryDay,
}

// InstallSystemJobs loads jobs.yaml and schedules each entry against
// s, dispatching to handler keyed by job id. A handler missing for a
// declared id is a configuration error, not silently skipped.
func InstallSystemJobs(s *Scheduler, handlers map[string]JobFunc) error {
	specs, err := LoadSystemJobs()
	if err != nil {
		return err
	}

	for _, spec := range specs {
		token, ok := intervalTokens[spec.Interval]
		if !ok {
			return fmt.Errorf("jobs.yaml: unrecognized interval %q for job %q", spec.Interval, spec.ID)
		}
		fn, ok := handlers[spec.ID]
		if !ok {
			return fmt.Errorf("jobs.yaml: no handler registered for job %q", spec.ID)
		}

		opts := models.DefaultJobOpts()
		opts.Priority = models.ParseJobPriority(spec.Priority)
		s.Schedule(spec.ID, fn, models.Trigger{Interval: token}, opts)
	}
	return nil
}
