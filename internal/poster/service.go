// Package poster executes post jobs: pick the next content in
// rotation, pick an account per the job's strategy, publish, and
// advance the schedule.
package poster

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Past-Tang/x/internal/accountpool"
	"github.com/Past-Tang/x/internal/models"
	"github.com/Past-Tang/x/internal/ratelimit"
	"github.com/Past-Tang/x/internal/secrets"
	"github.com/Past-Tang/x/internal/selector"
	"github.com/Past-Tang/x/internal/social"
)

// Run failure reasons surfaced in last_run_error and filterable in
// logs.
const (
	errNoActiveContent    = "no active post contents available"
	errNoAccountAvailable = "no_account_available"
)

// ErrJobNotActive is returned when a run is requested for a disabled
// job.
var ErrJobNotActive = errors.New("post job is not active")

// Gateway is the slice of the social client the poster needs.
type Gateway interface {
	PostTweet(ctx context.Context, authToken, text string) (*social.Result, error)
}

// Pool acquires and releases accounts by strategy.
type Pool interface {
	Acquire(ctx context.Context, strategy selector.Strategy, selectionContext string, excluded map[int64]bool) (*models.Account, error)
	Release(ctx context.Context, accountID int64, callErr error)
}

// Recorder writes execution log entries.
type Recorder interface {
	Record(ctx context.Context, entry *models.ExecutionLog)
}

// RunOutcome summarizes one job run.
type RunOutcome struct {
	TweetID   string `json:"tweet_id,omitempty"`
	ContentID int64  `json:"content_id,omitempty"`
	AccountID int64  `json:"account_id,omitempty"`
}

// Service executes post jobs. The scheduler guard serializes runs per
// job.
type Service struct {
	jobs     models.PostJobRepository
	contents models.PostContentRepository
	pool     Pool
	gateway  Gateway
	limiter  *ratelimit.Limiter
	recorder Recorder
	tokens   *secrets.Box
	logger   *slog.Logger
	now      func() time.Time
}

// NewService constructs a poster Service.
func NewService(
	jobs models.PostJobRepository,
	contents models.PostContentRepository,
	pool Pool,
	gateway Gateway,
	limiter *ratelimit.Limiter,
	recorder Recorder,
	tokens *secrets.Box,
	logger *slog.Logger,
) *Service {
	return &Service{
		jobs:     jobs,
		contents: contents,
		pool:     pool,
		gateway:  gateway,
		limiter:  limiter,
		recorder: recorder,
		tokens:   tokens,
		logger:   logger,
		now:      time.Now,
	}
}

// ExecuteJob runs the job once. The content cursor advances only after
// a successful publish; every other outcome leaves it where it was so
// no content is skipped. The schedule always advances.
func (s *Service) ExecuteJob(ctx context.Context, job *models.PostJob) (*RunOutcome, error) {
	if job.Status != models.StatusActive {
		return nil, ErrJobNotActive
	}

	contents, err := s.contents.ListActive(ctx)
	if err != nil {
		return nil, s.failRun(ctx, job, nil, "", nil, fmt.Errorf("failed to list post contents: %w", err))
	}
	if len(contents) == 0 {
		return nil, s.failRun(ctx, job, nil, "", nil, errors.New(errNoActiveContent))
	}

	// Cursor is reduced against the live pool size on every run, so
	// disabling content can never strand it out of range.
	content := contents[job.CurrentContentIndex%len(contents)]
	text := content.FullText()

	if err := s.limiter.CheckAndConsume(ctx, ratelimit.ActionPost); err != nil {
		return nil, s.failRun(ctx, job, nil, text, &content.ID, err)
	}

	strategy, err := selector.ParseStrategy(job.AccountStrategy)
	if err != nil {
		return nil, s.failRun(ctx, job, nil, text, &content.ID, err)
	}

	account, err := s.pool.Acquire(ctx, strategy, fmt.Sprintf("post_job_%d", job.ID), nil)
	if err != nil {
		if errors.Is(err, accountpool.ErrNoEligibleAccount) {
			err = errors.New(errNoAccountAvailable)
		}
		return nil, s.failRun(ctx, job, nil, text, &content.ID, err)
	}

	authToken, err := s.tokens.Open(account.EncryptedToken)
	if err != nil {
		s.pool.Release(ctx, account.ID, fmt.Errorf("failed to decrypt auth token: %w", err))
		return nil, s.failRun(ctx, job, &account.ID, text, &content.ID, err)
	}

	res, err := s.gateway.PostTweet(ctx, authToken, text)
	s.pool.Release(ctx, account.ID, err)
	if err != nil {
		return nil, s.failRunWithResponse(ctx, job, &account.ID, text, &content.ID, res, err)
	}

	if err := s.contents.RecordUsage(ctx, content.ID); err != nil {
		s.logger.Error("failed to record content usage", "content_id", content.ID, "error", err)
	}

	now := s.now()
	job.LastRunAt = &now
	job.LastRunResult = models.RunResultSuccess
	job.LastRunError = ""
	job.LastTweetID = res.TweetID
	job.TotalPosts++
	job.CurrentContentIndex = (job.CurrentContentIndex + 1) % len(contents)
	s.reschedule(job, now)

	if err := s.jobs.UpdateRunState(ctx, job); err != nil {
		s.logger.Error("failed to persist job run state", "job_id", job.ID, "error", err)
	}

	entry := &models.ExecutionLog{
		LogType:     models.LogTypePost,
		AccountID:   &account.ID,
		JobID:       &job.ID,
		TweetID:     res.TweetID,
		ContentID:   &content.ID,
		ContentText: text,
		Result:      models.LogResultSuccess,
		APIResponse: res.Body,
	}
	entry.ExecutionTimeMs = &res.DurationMs
	s.recorder.Record(ctx, entry)

	s.logger.Info("post job run completed",
		"job_id", job.ID,
		"tweet_id", res.TweetID,
		"content_id", content.ID,
		"account_id", account.ID)

	return &RunOutcome{TweetID: res.TweetID, ContentID: content.ID, AccountID: account.ID}, nil
}

func (s *Service) failRun(ctx context.Context, job *models.PostJob, accountID *int64, text string, contentID *int64, runErr error) error {
	return s.failRunWithResponse(ctx, job, accountID, text, contentID, nil, runErr)
}

// failRunWithResponse records a failed run: last_run_* stamped, cursor
// untouched, schedule advanced, log entry written.
func (s *Service) failRunWithResponse(ctx context.Context, job *models.PostJob, accountID *int64, text string, contentID *int64, res *social.Result, runErr error) error {
	now := s.now()
	job.LastRunAt = &now
	job.LastRunResult = models.RunResultFailed
	job.LastRunError = runErr.Error()
	s.reschedule(job, now)

	if err := s.jobs.UpdateRunState(ctx, job); err != nil {
		s.logger.Error("failed to persist job run state", "job_id", job.ID, "error", err)
	}

	entry := &models.ExecutionLog{
		LogType:      models.LogTypePost,
		AccountID:    accountID,
		JobID:        &job.ID,
		ContentID:    contentID,
		ContentText:  text,
		Result:       models.LogResultFailed,
		ErrorMessage: runErr.Error(),
	}
	if res != nil {
		entry.APIResponse = res.Body
		entry.ExecutionTimeMs = &res.DurationMs
	}
	s.recorder.Record(ctx, entry)

	return runErr
}

func (s *Service) reschedule(job *models.PostJob, now time.Time) {
	next := now.Add(time.Duration(job.IntervalMinutes) * time.Minute)
	job.NextRunAt = &next
}
