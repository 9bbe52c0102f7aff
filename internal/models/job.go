package models

import "time"

// JobPriority orders dispatch within one scheduler tick, per
// spec.md §4.10: high runs before normal runs before low.
type JobPriority int

const (
	PriorityHigh JobPriority = iota
	PriorityNormal
	PriorityLow
)

func ParseJobPriority(s string) JobPriority {
	switch s {
	case "high":
		return PriorityHigh
	case "low":
		return PriorityLow
	default:
		return PriorityNormal
	}
}

// JobStatus is a job's lifecycle position.
type JobStatus int

const (
	JobScheduled JobStatus = iota
	JobRunning
	JobCompleted
	JobFailed
	JobTimeout
)

func (s JobStatus) String() string {
	switch s {
	case JobScheduled:
		return "SCHEDULED"
	case JobRunning:
		return "RUNNING"
	case JobCompleted:
		return "COMPLETED"
	case JobFailed:
		return "FAILED"
	case JobTimeout:
		return "TIMEOUT"
	default:
		return "UNKNOWN"
	}
}

// IntervalToken is the closed set of periodic trigger tokens spec.md
// §4.10 enumerates.
type IntervalToken string

const (
	EverySecond IntervalToken = "second"
	Every5s     IntervalToken = "5s"
	Every10s    IntervalToken = "10s"
	Every30s    IntervalToken = "30s"
	EveryMinute IntervalToken = "minute"
	Every5m     IntervalToken = "5m"
	Every10m    IntervalToken = "10m"
	Every15m    IntervalToken = "15m"
	Every30m    IntervalToken = "30m"
	EveryHour   IntervalToken = "hour"
	EveryDay    IntervalToken = "day"
)

// Duration maps an IntervalToken to its concrete interval; the zero
// duration means the token is unrecognized.
func (t IntervalToken) Duration() time.Duration {
	switch t {
	case EverySecond:
		return time.Second
	case Every5s:
		return 5 * time.Second
	case Every10s:
		return 10 * time.Second
	case Every30s:
		return 30 * time.Second
	case EveryMinute:
		return time.Minute
	case Every5m:
		return 5 * time.Minute
	case Every10m:
		return 10 * time.Minute
	case Every15m:
		return 15 * time.Minute
	case Every30m:
		return 30 * time.Minute
	case EveryHour:
		return time.Hour
	case EveryDay:
		return 24 * time.Hour
	default:
		return 0
	}
}

// Trigger is either a fixed one-shot epoch or a periodic interval
// token, never both — spec.md §3/§4.10.
type Trigger struct {
	At       time.Time     // one-shot, zero if periodic
	Interval IntervalToken // periodic, empty if one-shot
}

func (t Trigger) IsOneShot() bool { return t.Interval == "" }

// JobOpts configures retry/timeout/priority behavior for a scheduled
// job, defaults per spec.md §4.10.
type JobOpts struct {
	Priority   JobPriority
	MaxRetries int           `validate:"gte=0"`
	Timeout    time.Duration `validate:"gt=0"`
}

// DefaultJobOpts mirrors spec.md §4.10's stated defaults.
func DefaultJobOpts() JobOpts {
	return JobOpts{Priority: PriorityNormal, MaxRetries: 3, Timeout: 300 * time.Second}
}

// JobSnapshot is the read-only operator view of one job-table entry.
type JobSnapshot struct {
	ID         string
	Priority   JobPriority
	Status     JobStatus
	NextRun    time.Time
	RetryCount int
	MaxRetries int
	LastError  string
}
