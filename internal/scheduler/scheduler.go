// Package scheduler implements the cooperative job scheduler, spec.md
// §4.10: a single tick loop dispatching bounded-concurrency workers,
// each racing its job function against a timeout, with priority
// ordering and linear retry backoff.
package scheduler

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"

	"dispatch-and-delivery/internal/models"
)

var optsValidator = validator.New()

// Config mirrors spec.md §6's scheduler.* tunables.
type Config struct {
	MaxConcurrentJobs int
	Tick              time.Duration
}

// DefaultConfig matches spec.md §4.10/§6's stated defaults.
func DefaultConfig() Config {
	return Config{MaxConcurrentJobs: 5, Tick: time.Second}
}

// JobFunc is the work a scheduled job performs.
type JobFunc func(ctx context.Context) error

type job struct {
	id         string
	fn         JobFunc
	trigger    models.Trigger
	opts       models.JobOpts
	status     models.JobStatus
	nextRun    time.Time
	retryCount int
	lastError  string
}

// Scheduler owns the job table and tick loop.
type Scheduler struct {
	mu   sync.Mutex
	jobs map[string]*job
	cfg  Config
	log  *zap.SugaredLogger
	now  func() time.Time

	running map[string]bool
}

// New constructs a Scheduler.
func New(cfg Config, log *zap.SugaredLogger) *Scheduler {
	return &Scheduler{
		jobs:    make(map[string]*job),
		cfg:     cfg,
		log:     log,
		now:     time.Now,
		running: make(map[string]bool),
	}
}

// Schedule registers a job. trigger.At, if non-zero, is a one-shot
// epoch; otherwise trigger.Interval drives periodic reschedule.
// Opts failing validation (negative MaxRetries, non-positive Timeout)
// are rejected without registering the job.
func (s *Scheduler) Schedule(id string, fn JobFunc, trigger models.Trigger, opts models.JobOpts) {
	if err := optsValidator.Struct(opts); err != nil {
		if s.log != nil {
			s.log.Errorw("refusing to schedule job with invalid opts", "job", id, "error", err)
		}
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := trigger.At
	if trigger.IsOneShot() && next.IsZero() {
		next = s.now()
	}
	if !trigger.IsOneShot() {
		next = s.now().Add(trigger.Interval.Duration())
	}

	s.jobs[id] = &job{
		id:      id,
		fn:      fn,
		trigger: trigger,
		opts:    opts,
		status:  models.JobScheduled,
		nextRun: next,
	}
}

// ScheduleOnce registers an ad-hoc one-shot job with a generated id,
// for callers (cmd/dispatchd's gc command) that don't need a
// stable, human-chosen job id. Returns the generated id.
func (s *Scheduler) ScheduleOnce(fn JobFunc, opts models.JobOpts) string {
	id := "adhoc-" + uuid.NewString()
	s.Schedule(id, fn, models.Trigger{At: s.now()}, opts)
	return id
}

// Tick runs one scheduling pass: collect due jobs, order them, and
// run every one of them through a pool of at most
// cfg.MaxConcurrentJobs concurrent workers. It
// blocks until every dispatched job in this tick completes — callers
// drive the 1-second cadence externally (Run loops this).
func (s *Scheduler) Tick(ctx context.Context) {
	due := s.collectDue()
	if len(due) == 0 {
		return
	}

	p := pool.New().WithMaxGoroutines(s.cfg.MaxConcurrentJobs)
	for _, j := range due {
		j := j
		p.Go(func() {
			s.dispatch(ctx, j)
		})
	}
	p.Wait()
}

// Run loops Tick on cfg.Tick cadence until ctx is canceled.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.Tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

func (s *Scheduler) collectDue() []*job {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	var due []*job
	for id, j := range s.jobs {
		if s.running[id] {
			continue
		}
		eligible := j.status == models.JobScheduled ||
			(j.status == models.JobFailed && j.retryCount < j.opts.MaxRetries)
		if eligible && !j.nextRun.After(now) {
			due = append(due, j)
		}
	}

	sort.SliceStable(due, func(i, j2 int) bool {
		if due[i].opts.Priority != due[j2].opts.Priority {
			return due[i].opts.Priority < due[j2].opts.Priority
		}
		return due[i].nextRun.Before(due[j2].nextRun)
	})

	for _, j := range due {
		s.running[j.id] = true
		j.status = models.JobRunning
	}
	return due
}

func (s *Scheduler) dispatch(ctx context.Context, j *job) {
	runCtx, cancel := context.WithTimeout(ctx, j.opts.Timeout)
	defer cancel()

	resultCh := make(chan error, 1)
	go func() {
		resultCh <- j.fn(runCtx)
	}()

	var err error
	var timedOut bool
	select {
	case err = <-resultCh:
	case <-runCtx.Done():
		timedOut = true
	}

	s.finish(j, err, timedOut)
}

func (s *Scheduler) finish(j *job, err error, timedOut bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer delete(s.running, j.id)

	now := s.now()

	switch {
	case err == nil && !timedOut:
		j.status = models.JobCompleted
		j.retryCount = 0
		j.lastError = ""
		if j.trigger.IsOneShot() {
			delete(s.jobs, j.id)
			return
		}
		j.nextRun = now.Add(j.trigger.Interval.Duration())
		j.status = models.JobScheduled

	case timedOut:
		j.status = models.JobTimeout
		j.retryCount++
		if j.retryCount <= j.opts.MaxRetries {
			j.nextRun = now.Add(time.Duration(j.retryCount) * 60 * time.Second)
			j.status = models.JobScheduled
			return
		}
		if s.log != nil {
			s.log.Errorw("job exhausted retries after timeout", "job", j.id)
		}
		s.retireExhausted(j, now)

	default:
		j.status = models.JobFailed
		j.retryCount++
		j.lastError = err.Error()
		if j.retryCount <= j.opts.MaxRetries {
			j.nextRun = now.Add(time.Duration(j.retryCount) * 30 * time.Second)
			j.status = models.JobScheduled
			return
		}
		if s.log != nil {
			s.log.Errorw("job exhausted retries after failure", "job", j.id, "error", err)
		}
		s.retireExhausted(j, now)
	}
}

// retireExhausted handles a job whose retryCount has exceeded
// opts.MaxRetries: a one-shot job is removed from the table per
// spec.md §8 scenario 5 ("job removed, critical action logged"); a
// periodic job instead resumes on its normal interval with retryCount
// reset, so one exhausted failure chain doesn't permanently wedge it.
func (s *Scheduler) retireExhausted(j *job, now time.Time) {
	if j.trigger.IsOneShot() {
		delete(s.jobs, j.id)
		return
	}
	j.retryCount = 0
	j.nextRun = now.Add(j.trigger.Interval.Duration())
	j.status = models.JobScheduled
}

// Snapshot returns the operator-facing view of the job table.
func (s *Scheduler) Snapshot() []models.JobSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.JobSnapshot, 0, len(s.jobs))
	for _, j := range s.jobs {
		out = append(out, models.JobSnapshot{
			ID: j.id, Priority: j.opts.Priority, Status: j.status,
			NextRun: j.nextRun, RetryCount: j.retryCount,
			MaxRetries: j.opts.MaxRetries, LastError: j.lastError,
		})
	}
	sort.Slice(out, func(i, k int) bool { return out[i].ID < out[k].ID })
	return out
}
