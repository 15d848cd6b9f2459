package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Default schedules, standard five-field cron syntax.
const (
	DefaultAnalysisSchedule = "0 8 * * *"
	DefaultLearningSchedule = "0 16 * * *"
)

// Job names registered by RegisterPipelineJobs.
const (
	JobDailyAnalysis = "daily_analysis"
	JobDailyLearning = "daily_learning"
)

// JobFunc is one scheduled unit of work.
type JobFunc func(ctx context.Context) error

// Scheduler runs named jobs on cron schedules.
type Scheduler struct {
	cron     *cron.Cron
	jobs     map[string]JobFunc
	mu       sync.RWMutex
	timeouts *TimeoutManager
	logger   *logrus.Logger
}

// NewScheduler creates a scheduler evaluating schedules in loc.
func NewScheduler(loc *time.Location, logger *logrus.Logger) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	return &Scheduler{
		cron:     cron.New(cron.WithLocation(loc)),
		jobs:     make(map[string]JobFunc),
		timeouts: NewTimeoutManager(nil, logger),
		logger:   logger,
	}
}

// SetTimeouts replaces the per-job timeout configuration.
func (s *Scheduler) SetTimeouts(config *TimeoutConfig) {
	s.timeouts = NewTimeoutManager(config, s.logger)
}

// ActiveJobs lists the run IDs of jobs currently executing on schedule.
func (s *Scheduler) ActiveJobs() []string {
	return s.timeouts.GetActiveOperations()
}

// AddJob registers fn under name to run on schedule.
func (s *Scheduler) AddJob(name, schedule string, fn JobFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[name]; exists {
		return fmt.Errorf("job %q already registered", name)
	}
	if _, err := s.cron.AddFunc(schedule, func() { s.run(name) }); err != nil {
		return fmt.Errorf("invalid schedule %q for job %s: %w", schedule, name, err)
	}
	s.jobs[name] = fn

	s.logger.WithFields(logrus.Fields{
		"job":      name,
		"schedule": schedule,
	}).Info("Scheduled job registered")
	return nil
}

// RegisterPipelineJobs schedules the daily analysis and learning runs.
func (s *Scheduler) RegisterPipelineJobs(p *DailyPipeline, analysisSchedule, learningSchedule string) error {
	if analysisSchedule == "" {
		analysisSchedule = DefaultAnalysisSchedule
	}
	if learningSchedule == "" {
		learningSchedule = DefaultLearningSchedule
	}
	if err := s.AddJob(JobDailyAnalysis, analysisSchedule, p.RunDailyAnalysis); err != nil {
		return err
	}
	return s.AddJob(JobDailyLearning, learningSchedule, p.RunDailyLearning)
}

// Start begins firing jobs.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("Scheduler started")
}

// Stop halts the schedule and waits for running jobs until ctx ends, then
// cancels whatever is still running.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		s.logger.Info("Scheduler stopped")
		return nil
	case <-ctx.Done():
		s.timeouts.CancelAllOperations()
		return fmt.Errorf("scheduler stop: %w", ctx.Err())
	}
}

// Trigger runs the named job now, in the caller's goroutine.
func (s *Scheduler) Trigger(ctx context.Context, name string) error {
	s.mu.RLock()
	fn, ok := s.jobs[name]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("unknown job %q", name)
	}
	return fn(ctx)
}

func (s *Scheduler) run(name string) {
	runID := fmt.Sprintf("%s-%s", name, uuid.NewString())
	op := s.timeouts.Start(context.Background(), name, runID)
	defer op.Complete()

	start := op.StartTime
	s.logger.WithFields(logrus.Fields{
		"job":     name,
		"run_id":  runID,
		"timeout": op.Timeout,
	}).Info("Scheduled job started")

	if err := s.Trigger(op.Ctx, name); err != nil {
		s.logger.WithFields(logrus.Fields{
			"job":      name,
			"error":    err.Error(),
			"duration": time.Since(start),
		}).Error("Scheduled job failed")
		return
	}
	s.logger.WithFields(logrus.Fields{
		"job":      name,
		"duration": time.Since(start),
	}).Info("Scheduled job completed")
}
