package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Past-Tang/x/internal/models"
	"github.com/Past-Tang/x/internal/monitor"
	"github.com/Past-Tang/x/internal/poster"
)

type fakeJobRepo struct {
	models.PostJobRepository

	job *models.PostJob
}

func (f *fakeJobRepo) GetByID(ctx context.Context, id int64) (*models.PostJob, error) {
	if f.job == nil || f.job.ID != id {
		return nil, errors.New("not found")
	}
	return f.job, nil
}

func (f *fakeJobRepo) ListDue(ctx context.Context, now time.Time) ([]*models.PostJob, error) {
	if f.job == nil {
		return nil, nil
	}
	return []*models.PostJob{f.job}, nil
}

// blockingRunner holds each run open until released so tests can force
// the scheduled tick and the manual trigger to overlap.
type blockingRunner struct {
	started chan struct{}
	release chan struct{}
	runs    atomic.Int64
}

func (r *blockingRunner) ExecuteJob(ctx context.Context, job *models.PostJob) (*poster.RunOutcome, error) {
	r.runs.Add(1)
	if r.started != nil {
		r.started <- struct{}{}
	}
	if r.release != nil {
		<-r.release
	}
	return &poster.RunOutcome{TweetID: "900"}, nil
}

func TestRunGuardSingleFlight(t *testing.T) {
	guard := newRunGuard()

	if !guard.tryBegin(1) {
		t.Fatal("first begin must succeed")
	}
	if guard.tryBegin(1) {
		t.Error("second begin for same id must fail")
	}
	if !guard.tryBegin(2) {
		t.Error("different id must be independent")
	}

	guard.end(1)
	if !guard.tryBegin(1) {
		t.Error("begin must succeed after end")
	}
}

func TestConcurrentTriggersRunOnce(t *testing.T) {
	runner := &blockingRunner{
		started: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
	repo := &fakeJobRepo{job: &models.PostJob{ID: 1, Name: "daily", Status: models.StatusActive}}
	s := NewPostScheduler(repo, runner, slog.New(slog.DiscardHandler))

	// First trigger: a scheduled tick picks the job up and blocks
	// inside the run.
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.tick(context.Background())
		s.wg.Wait()
	}()
	<-runner.started

	// Second trigger: manual run-now while the run is in flight.
	if _, err := s.RunNow(context.Background(), 1); !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("expected ErrAlreadyRunning, got %v", err)
	}

	close(runner.release)
	wg.Wait()

	if got := runner.runs.Load(); got != 1 {
		t.Errorf("expected exactly one execution, got %d", got)
	}
}

func TestRunNowAfterCompletion(t *testing.T) {
	runner := &blockingRunner{}
	repo := &fakeJobRepo{job: &models.PostJob{ID: 1, Name: "daily", Status: models.StatusActive}}
	s := NewPostScheduler(repo, runner, slog.New(slog.DiscardHandler))

	outcome, err := s.RunNow(context.Background(), 1)
	if err != nil {
		t.Fatalf("RunNow failed: %v", err)
	}
	if outcome.TweetID != "900" {
		t.Errorf("unexpected outcome %+v", outcome)
	}

	if _, err := s.RunNow(context.Background(), 1); err != nil {
		t.Errorf("second RunNow after completion must succeed, got %v", err)
	}
	if got := runner.runs.Load(); got != 2 {
		t.Errorf("expected 2 executions, got %d", got)
	}
}

type fakeTargetRepo struct {
	models.TargetRepository

	target *models.Target
}

func (f *fakeTargetRepo) GetByID(ctx context.Context, id int64) (*models.Target, error) {
	if f.target == nil || f.target.ID != id {
		return nil, errors.New("not found")
	}
	return f.target, nil
}

func (f *fakeTargetRepo) ListDue(ctx context.Context, now time.Time) ([]*models.Target, error) {
	if f.target == nil {
		return nil, nil
	}
	return []*models.Target{f.target}, nil
}

type countingChecker struct {
	checks atomic.Int64
}

func (c *countingChecker) CheckTarget(ctx context.Context, target *models.Target) (*monitor.CheckOutcome, error) {
	c.checks.Add(1)
	return &monitor.CheckOutcome{}, nil
}

func TestMonitorTickChecksDueTargets(t *testing.T) {
	checker := &countingChecker{}
	repo := &fakeTargetRepo{target: &models.Target{ID: 1, TargetUserID: "u1", Status: models.TargetStatusActive}}
	s := NewMonitorScheduler(repo, checker, slog.New(slog.DiscardHandler))

	s.tick(context.Background())
	s.wg.Wait()

	if got := checker.checks.Load(); got != 1 {
		t.Errorf("expected 1 check, got %d", got)
	}
}

func TestMonitorSchedulerStartBlocksUntilCancel(t *testing.T) {
	checker := &countingChecker{}
	repo := &fakeTargetRepo{target: &models.Target{ID: 1, TargetUserID: "u1", Status: models.TargetStatusActive}}
	s := NewMonitorScheduler(repo, checker, slog.New(slog.DiscardHandler))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Start(ctx)
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("Start returned before cancellation")
	case <-time.After(50 * time.Millisecond):
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return after cancellation")
	}

	if got := checker.checks.Load(); got != 1 {
		t.Errorf("expected 1 check from the startup tick, got %d", got)
	}
}

func TestMonitorRunNow(t *testing.T) {
	checker := &countingChecker{}
	repo := &fakeTargetRepo{target: &models.Target{ID: 1, TargetUserID: "u1", Status: models.TargetStatusActive}}
	s := NewMonitorScheduler(repo, checker, slog.New(slog.DiscardHandler))

	if _, err := s.RunNow(context.Background(), 1); err != nil {
		t.Fatalf("RunNow failed: %v", err)
	}
	if _, err := s.RunNow(context.Background(), 99); err == nil {
		t.Error("expected error for unknown target")
	}
}
