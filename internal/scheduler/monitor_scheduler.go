// Package scheduler drives the monitor and post pipelines: one ticker
// loop per pipeline wakes due entities, and a per-entity guard keeps
// scheduled ticks and manual triggers from overlapping.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Past-Tang/x/internal/database"
	"github.com/Past-Tang/x/internal/models"
	"github.com/Past-Tang/x/internal/monitor"
)

// TargetChecker runs a single monitor check.
type TargetChecker interface {
	CheckTarget(ctx context.Context, target *models.Target) (*monitor.CheckOutcome, error)
}

// MonitorScheduler wakes due targets and checks them.
type MonitorScheduler struct {
	targets       models.TargetRepository
	checker       TargetChecker
	logger        *slog.Logger
	guard         *runGuard
	stopChan      chan struct{}
	checkInterval time.Duration
	wg            sync.WaitGroup
}

// NewMonitorScheduler creates a monitor scheduler.
func NewMonitorScheduler(targets models.TargetRepository, checker TargetChecker, logger *slog.Logger) *MonitorScheduler {
	return &MonitorScheduler{
		targets:       targets,
		checker:       checker,
		logger:        logger,
		guard:         newRunGuard(),
		stopChan:      make(chan struct{}),
		checkInterval: 1 * time.Minute,
	}
}

// Start begins the scheduler loop. It blocks until Stop is called or
// ctx is cancelled.
func (s *MonitorScheduler) Start(ctx context.Context) {
	s.logger.Info("starting monitor scheduler", "check_interval", s.checkInterval)
	ticker := time.NewTicker(s.checkInterval)
	defer ticker.Stop()

	s.tick(ctx)

	for {
		select {
		case <-ticker.C:
			s.tick(ctx)
		case <-s.stopChan:
			s.logger.Info("monitor scheduler stopped")
			s.wg.Wait()
			return
		case <-ctx.Done():
			s.logger.Info("monitor scheduler stopping due to context cancellation")
			s.wg.Wait()
			return
		}
	}
}

// Stop stops the scheduler loop and waits for in-flight checks.
func (s *MonitorScheduler) Stop() {
	close(s.stopChan)
}

// tick runs every due target concurrently. Targets serialize against
// themselves through the guard, so a check outlasting a tick is simply
// skipped on the next one.
func (s *MonitorScheduler) tick(ctx context.Context) {
	targets, err := s.targets.ListDue(ctx, time.Now())
	if err != nil {
		s.logger.Error("failed to list due targets", "error", err)
		return
	}
	if len(targets) == 0 {
		return
	}

	s.logger.Debug("found due targets", "count", len(targets))

	for _, target := range targets {
		if !s.guard.tryBegin(target.ID) {
			continue
		}
		s.wg.Add(1)
		go func(target *models.Target) {
			defer s.wg.Done()
			defer s.guard.end(target.ID)
			if _, err := s.checker.CheckTarget(ctx, target); err != nil {
				s.logger.Error("target check failed",
					"target_id", target.ID,
					"target_user_id", target.TargetUserID,
					"error", err)
			}
		}(target)
	}
}

// RunNow checks one target immediately, bypassing its schedule. A
// check already in flight for the target makes this a no-op error.
func (s *MonitorScheduler) RunNow(ctx context.Context, targetID int64) (*monitor.CheckOutcome, error) {
	target, err := s.targets.GetByID(ctx, targetID)
	if err != nil {
		return nil, err
	}
	if target == nil {
		return nil, database.ErrNotFound
	}

	if !s.guard.tryBegin(target.ID) {
		return nil, ErrAlreadyRunning
	}
	defer s.guard.end(target.ID)

	outcome, err := s.checker.CheckTarget(ctx, target)
	if err != nil {
		return nil, fmt.Errorf("check failed for target %d: %w", targetID, err)
	}
	return outcome, nil
}
