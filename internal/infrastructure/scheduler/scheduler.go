// Package scheduler runs the periodic background work of Planboard:
// refreshing the member directory and recomputing project progress.
//
// A job never overlaps with itself: if a run is still in flight when the
// next tick is due, that tick is skipped.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sort"
	"sync"
	"time"

	"github.com/planboard/planboard-core/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// JOB INTERFACE
// ══════════════════════════════════════════════════════════════════════════════

// Job defines the interface that all scheduled jobs must implement.
type Job interface {
	// Name returns the unique name of the job.
	Name() string

	// Run executes the job.
	// The context is cancelled when the scheduler is stopping.
	Run(ctx context.Context) error

	// Description returns a human-readable description of the job.
	Description() string
}

// Schedule defines when a job should run.
type Schedule interface {
	// Next returns the next time the job should run after the given time.
	// A zero time means the job never runs again.
	Next(t time.Time) time.Time

	// String returns a human-readable representation of the schedule.
	String() string
}

// JobResult contains the result of a job execution.
type JobResult struct {
	JobName     string
	StartedAt   time.Time
	CompletedAt time.Time
	Duration    time.Duration
	Success     bool
	Manual      bool
	Error       error
}

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// Config contains configuration for the Scheduler.
type Config struct {
	// Logger for structured logging.
	Logger *slog.Logger

	// Timezone for schedule calculations (default: UTC).
	Timezone *time.Location

	// Tick is how often due jobs are checked (default: 1s).
	Tick time.Duration

	// MaxHistorySize is the maximum number of job results to keep in history.
	MaxHistorySize int

	// RunOnStart runs every enabled job once right after Start.
	RunOnStart bool

	// Now overrides the clock, for tests.
	Now func() time.Time
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Timezone:       time.UTC,
		Tick:           time.Second,
		MaxHistorySize: 200,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// SCHEDULER
// ══════════════════════════════════════════════════════════════════════════════

// Scheduler manages and executes scheduled jobs.
type Scheduler struct {
	mu sync.RWMutex

	log        *slog.Logger
	timezone   *time.Location
	tick       time.Duration
	maxHistory int
	runOnStart bool
	now        func() time.Time

	jobs      map[string]*scheduledJob
	running   bool
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	startedAt time.Time

	metrics    *Metrics
	lastRuns   map[string]*JobResult
	runHistory []JobResult

	onJobComplete func(result JobResult)
}

type scheduledJob struct {
	job       Job
	schedule  Schedule
	enabled   bool
	inFlight  bool
	lastRun   time.Time
	nextRun   time.Time
	runCount  int64
	failCount int64
	skipCount int64
}

// New creates a new Scheduler with the given configuration.
func New(cfg Config) *Scheduler {
	defaults := DefaultConfig()
	if cfg.Timezone == nil {
		cfg.Timezone = defaults.Timezone
	}
	if cfg.Tick <= 0 {
		cfg.Tick = defaults.Tick
	}
	if cfg.MaxHistorySize <= 0 {
		cfg.MaxHistorySize = defaults.MaxHistorySize
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &Scheduler{
		log:        logger.OrDefault(cfg.Logger).With(logger.Component("scheduler")),
		timezone:   cfg.Timezone,
		tick:       cfg.Tick,
		maxHistory: cfg.MaxHistorySize,
		runOnStart: cfg.RunOnStart,
		now:        cfg.Now,
		jobs:       make(map[string]*scheduledJob),
		metrics:    NewMetrics(),
		lastRuns:   make(map[string]*JobResult),
		runHistory: make([]JobResult, 0, cfg.MaxHistorySize),
	}
}

func (s *Scheduler) clock() time.Time {
	return s.now().In(s.timezone)
}

// ══════════════════════════════════════════════════════════════════════════════
// JOB REGISTRATION
// ══════════════════════════════════════════════════════════════════════════════

// Register adds a job to the scheduler with the given schedule.
func (s *Scheduler) Register(job Job, schedule Schedule) error {
	if job == nil {
		return ErrNilJob
	}
	if schedule == nil {
		return ErrNilSchedule
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	name := job.Name()
	if _, exists := s.jobs[name]; exists {
		return fmt.Errorf("%w: %s", ErrJobAlreadyExists, name)
	}

	sj := &scheduledJob{
		job:      job,
		schedule: schedule,
		enabled:  true,
		nextRun:  schedule.Next(s.clock()),
	}
	s.jobs[name] = sj

	s.log.Info("job registered",
		logger.JobName(name),
		slog.String("schedule", schedule.String()),
		slog.Time("next_run", sj.nextRun),
	)
	return nil
}

// Unregister removes a job from the scheduler.
func (s *Scheduler) Unregister(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[name]; !exists {
		return fmt.Errorf("%w: %s", ErrJobNotFound, name)
	}
	delete(s.jobs, name)
	return nil
}

// EnableJob enables a job by name.
func (s *Scheduler) EnableJob(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sj, exists := s.jobs[name]
	if !exists {
		return fmt.Errorf("%w: %s", ErrJobNotFound, name)
	}
	sj.enabled = true
	sj.nextRun = sj.schedule.Next(s.clock())
	return nil
}

// DisableJob disables a job by name.
func (s *Scheduler) DisableJob(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sj, exists := s.jobs[name]
	if !exists {
		return fmt.Errorf("%w: %s", ErrJobNotFound, name)
	}
	sj.enabled = false
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// LIFECYCLE
// ══════════════════════════════════════════════════════════════════════════════

// Start begins the scheduler loop.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return ErrSchedulerAlreadyRunning
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.running = true
	s.startedAt = s.now()
	count := len(s.jobs)
	s.mu.Unlock()

	s.log.Info("scheduler started", slog.Int("jobs_count", count))

	if s.runOnStart {
		s.dispatch(func(*scheduledJob) bool { return true })
	}

	s.wg.Add(1)
	go s.runLoop()
	return nil
}

// Stop cancels the loop and waits for in-flight jobs to finish.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return ErrSchedulerNotRunning
	}
	s.running = false
	s.cancel()
	s.mu.Unlock()

	s.wg.Wait()

	s.log.Info("scheduler stopped", slog.Duration("uptime", s.now().Sub(s.startedAt)))
	return nil
}

// IsRunning returns true if the scheduler is running.
func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// ══════════════════════════════════════════════════════════════════════════════
// SCHEDULER LOOP
// ══════════════════════════════════════════════════════════════════════════════

func (s *Scheduler) runLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			now := s.clock()
			s.dispatch(func(sj *scheduledJob) bool {
				return !sj.nextRun.IsZero() && !now.Before(sj.nextRun)
			})
		}
	}
}

// dispatch starts every enabled job matching due that is not already running.
func (s *Scheduler) dispatch(due func(*scheduledJob) bool) {
	now := s.clock()

	s.mu.Lock()
	var toRun []*scheduledJob
	for name, sj := range s.jobs {
		if !sj.enabled || !due(sj) {
			continue
		}
		if sj.inFlight {
			sj.skipCount++
			sj.nextRun = sj.schedule.Next(now)
			s.log.Warn("job still running, tick skipped", logger.JobName(name))
			continue
		}
		sj.inFlight = true
		sj.lastRun = now
		sj.nextRun = sj.schedule.Next(now)
		sj.runCount++
		toRun = append(toRun, sj)
	}
	ctx := s.ctx
	s.mu.Unlock()

	for _, sj := range toRun {
		s.wg.Add(1)
		go func(sj *scheduledJob) {
			defer s.wg.Done()
			s.execute(ctx, sj, false)
		}(sj)
	}
}

// execute runs one job and records its result.
func (s *Scheduler) execute(ctx context.Context, sj *scheduledJob, manual bool) JobResult {
	name := sj.job.Name()
	log := s.log.With(logger.JobName(name))
	startedAt := s.now()

	log.Debug("job started", slog.Bool("manual", manual))
	err := safeRun(ctx, sj.job)
	completedAt := s.now()

	result := JobResult{
		JobName:     name,
		StartedAt:   startedAt,
		CompletedAt: completedAt,
		Duration:    completedAt.Sub(startedAt),
		Success:     err == nil,
		Manual:      manual,
		Error:       err,
	}
	s.metrics.RecordExecution(name, result.Duration, result.Success)

	s.mu.Lock()
	if !manual {
		sj.inFlight = false
	}
	if err != nil {
		sj.failCount++
	}
	s.lastRuns[name] = &result
	s.addToHistory(result)
	hook := s.onJobComplete
	s.mu.Unlock()

	if err != nil {
		log.Error("job failed", slog.Duration("duration", result.Duration), logger.Err(err))
	} else {
		log.Info("job completed", slog.Duration("duration", result.Duration))
	}

	if hook != nil {
		hook(result)
	}
	return result
}

func safeRun(ctx context.Context, job Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v\n%s", ErrJobPanicked, r, debug.Stack())
		}
	}()
	return job.Run(ctx)
}

func (s *Scheduler) addToHistory(result JobResult) {
	s.runHistory = append(s.runHistory, result)
	if len(s.runHistory) > s.maxHistory {
		s.runHistory = s.runHistory[len(s.runHistory)-s.maxHistory:]
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// MANUAL EXECUTION
// ══════════════════════════════════════════════════════════════════════════════

// RunNow immediately executes a job by name, ignoring its schedule.
// A job that is currently running on schedule is rejected with ErrJobRunning.
func (s *Scheduler) RunNow(ctx context.Context, name string) (*JobResult, error) {
	s.mu.Lock()
	sj, exists := s.jobs[name]
	if !exists {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, name)
	}
	if sj.inFlight {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrJobRunning, name)
	}
	sj.inFlight = true
	s.mu.Unlock()

	result := s.execute(ctx, sj, true)

	s.mu.Lock()
	sj.inFlight = false
	s.mu.Unlock()

	return &result, result.Error
}

// ══════════════════════════════════════════════════════════════════════════════
// STATUS & INFO
// ══════════════════════════════════════════════════════════════════════════════

// JobInfo contains information about a registered job.
type JobInfo struct {
	Name        string
	Description string
	Enabled     bool
	Running     bool
	Schedule    string
	LastRun     time.Time
	NextRun     time.Time
	RunCount    int64
	FailCount   int64
	SkipCount   int64
	LastResult  *JobResult
}

func (s *Scheduler) info(name string, sj *scheduledJob) JobInfo {
	return JobInfo{
		Name:        name,
		Description: sj.job.Description(),
		Enabled:     sj.enabled,
		Running:     sj.inFlight,
		Schedule:    sj.schedule.String(),
		LastRun:     sj.lastRun,
		NextRun:     sj.nextRun,
		RunCount:    sj.runCount,
		FailCount:   sj.failCount,
		SkipCount:   sj.skipCount,
		LastResult:  s.lastRuns[name],
	}
}

// ListJobs returns information about all registered jobs, sorted by name.
func (s *Scheduler) ListJobs() []JobInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	infos := make([]JobInfo, 0, len(s.jobs))
	for name, sj := range s.jobs {
		infos = append(infos, s.info(name, sj))
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}

// GetJobInfo returns information about a specific job.
func (s *Scheduler) GetJobInfo(name string) (*JobInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sj, exists := s.jobs[name]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, name)
	}
	info := s.info(name, sj)
	return &info, nil
}

// GetHistory returns the most recent job results, oldest first.
func (s *Scheduler) GetHistory(limit int) []JobResult {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 || limit > len(s.runHistory) {
		limit = len(s.runHistory)
	}
	result := make([]JobResult, limit)
	copy(result, s.runHistory[len(s.runHistory)-limit:])
	return result
}

// Metrics returns the execution counters.
func (s *Scheduler) Metrics() *Metrics {
	return s.metrics
}

// OnJobComplete sets a callback invoked after every job run.
func (s *Scheduler) OnJobComplete(fn func(result JobResult)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onJobComplete = fn
}

// ══════════════════════════════════════════════════════════════════════════════
// METRICS
// ══════════════════════════════════════════════════════════════════════════════

// Metrics tracks job execution counters.
type Metrics struct {
	mu sync.RWMutex

	totalExecutions int64
	totalFailures   int64
	totalDuration   time.Duration
	executionsByJob map[string]int64
	failuresByJob   map[string]int64
}

// NewMetrics creates a new metrics tracker.
func NewMetrics() *Metrics {
	return &Metrics{
		executionsByJob: make(map[string]int64),
		failuresByJob:   make(map[string]int64),
	}
}

// RecordExecution records a job execution.
func (m *Metrics) RecordExecution(name string, duration time.Duration, success bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.totalExecutions++
	m.totalDuration += duration
	m.executionsByJob[name]++
	if !success {
		m.totalFailures++
		m.failuresByJob[name]++
	}
}

// MetricsSnapshot is a point-in-time snapshot of scheduler metrics.
type MetricsSnapshot struct {
	TotalExecutions int64
	TotalFailures   int64
	SuccessRate     float64
	AverageDuration time.Duration
	ExecutionsByJob map[string]int64
	FailuresByJob   map[string]int64
}

// Snapshot returns a point-in-time snapshot of metrics.
func (m *Metrics) Snapshot() MetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snap := MetricsSnapshot{
		TotalExecutions: m.totalExecutions,
		TotalFailures:   m.totalFailures,
		ExecutionsByJob: make(map[string]int64, len(m.executionsByJob)),
		FailuresByJob:   make(map[string]int64, len(m.failuresByJob)),
	}
	if m.totalExecutions > 0 {
		snap.AverageDuration = m.totalDuration / time.Duration(m.totalExecutions)
		snap.SuccessRate = float64(m.totalExecutions-m.totalFailures) / float64(m.totalExecutions)
	}
	for k, v := range m.executionsByJob {
		snap.ExecutionsByJob[k] = v
	}
	for k, v := range m.failuresByJob {
		snap.FailuresByJob[k] = v
	}
	return snap
}

// ══════════════════════════════════════════════════════════════════════════════
// ERRORS
// ══════════════════════════════════════════════════════════════════════════════

var (
	// ErrNilJob is returned when trying to register a nil job.
	ErrNilJob = errors.New("job cannot be nil")

	// ErrNilSchedule is returned when trying to register a job with nil schedule.
	ErrNilSchedule = errors.New("schedule cannot be nil")

	// ErrJobAlreadyExists is returned when a job with the same name already exists.
	ErrJobAlreadyExists = errors.New("job already exists")

	// ErrJobNotFound is returned when a job is not found.
	ErrJobNotFound = errors.New("job not found")

	// ErrJobRunning is returned by RunNow while the job is in flight.
	ErrJobRunning = errors.New("job is already running")

	// ErrJobPanicked wraps a panic recovered from Job.Run.
	ErrJobPanicked = errors.New("job panicked")

	// ErrSchedulerAlreadyRunning is returned when Start is called on a running scheduler.
	ErrSchedulerAlreadyRunning = errors.New("scheduler is already running")

	// ErrSchedulerNotRunning is returned when Stop is called on a stopped scheduler.
	ErrSchedulerNotRunning = errors.New("scheduler is not running")
)
