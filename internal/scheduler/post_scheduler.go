package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Past-Tang/x/internal/database"
	"github.com/Past-Tang/x/internal/models"
	"github.com/Past-Tang/x/internal/poster"
)

// JobRunner executes a single post job run.
type JobRunner interface {
	ExecuteJob(ctx context.Context, job *models.PostJob) (*poster.RunOutcome, error)
}

// PostScheduler wakes due post jobs and runs them.
type PostScheduler struct {
	jobs          models.PostJobRepository
	runner        JobRunner
	logger        *slog.Logger
	guard         *runGuard
	stopChan      chan struct{}
	checkInterval time.Duration
	wg            sync.WaitGroup
}

// NewPostScheduler creates a post scheduler.
func NewPostScheduler(jobs models.PostJobRepository, runner JobRunner, logger *slog.Logger) *PostScheduler {
	return &PostScheduler{
		jobs:          jobs,
		runner:        runner,
		logger:        logger,
		guard:         newRunGuard(),
		stopChan:      make(chan struct{}),
		checkInterval: 1 * time.Minute,
	}
}

// Start begins the scheduler loop. It blocks until Stop is called or
// ctx is cancelled.
func (s *PostScheduler) Start(ctx context.Context) {
	s.logger.Info("starting post scheduler", "check_interval", s.checkInterval)
	ticker := time.NewTicker(s.checkInterval)
	defer ticker.Stop()

	s.tick(ctx)

	for {
		select {
		case <-ticker.C:
			s.tick(ctx)
		case <-s.stopChan:
			s.logger.Info("post scheduler stopped")
			s.wg.Wait()
			return
		case <-ctx.Done():
			s.logger.Info("post scheduler stopping due to context cancellation")
			s.wg.Wait()
			return
		}
	}
}

// Stop stops the scheduler loop and waits for in-flight runs.
func (s *PostScheduler) Stop() {
	close(s.stopChan)
}

func (s *PostScheduler) tick(ctx context.Context) {
	jobs, err := s.jobs.ListDue(ctx, time.Now())
	if err != nil {
		s.logger.Error("failed to list due post jobs", "error", err)
		return
	}
	if len(jobs) == 0 {
		return
	}

	s.logger.Debug("found due post jobs", "count", len(jobs))

	for _, job := range jobs {
		if !s.guard.tryBegin(job.ID) {
			continue
		}
		s.wg.Add(1)
		go func(job *models.PostJob) {
			defer s.wg.Done()
			defer s.guard.end(job.ID)
			if _, err := s.runner.ExecuteJob(ctx, job); err != nil {
				s.logger.Error("post job run failed",
					"job_id", job.ID,
					"job_name", job.Name,
					"error", err)
			}
		}(job)
	}
}

// RunNow executes one job immediately, bypassing its schedule. A run
// already in flight for the job makes this a no-op error.
func (s *PostScheduler) RunNow(ctx context.Context, jobID int64) (*poster.RunOutcome, error) {
	job, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, database.ErrNotFound
	}

	if !s.guard.tryBegin(job.ID) {
		return nil, ErrAlreadyRunning
	}
	defer s.guard.end(job.ID)

	outcome, err := s.runner.ExecuteJob(ctx, job)
	if err != nil {
		return nil, fmt.Errorf("run failed for job %d: %w", jobID, err)
	}
	return outcome, nil
}
