// Package monitor checks targets for new tweets and fans replies out
// across the account pool.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/Past-Tang/x/internal/models"
	"github.com/Past-Tang/x/internal/ratelimit"
	"github.com/Past-Tang/x/internal/secrets"
	"github.com/Past-Tang/x/internal/settings"
	"github.com/Past-Tang/x/internal/social"
	"github.com/Past-Tang/x/internal/templates"
)

// ErrTargetNotActive is returned when a check is requested for a
// disabled target.
var ErrTargetNotActive = errors.New("target is not active")

// Gateway is the slice of the social client the monitor needs.
type Gateway interface {
	GetUserTweets(ctx context.Context, authToken, userID string, count int) ([]social.Tweet, *social.Result, error)
	ReplyToTweet(ctx context.Context, authToken, tweetID, text string) (*social.Result, error)
}

// Pool is the slice of the account pool the monitor needs. Fan-out
// addresses accounts individually instead of picking by strategy.
type Pool interface {
	Eligible(ctx context.Context) ([]*models.Account, error)
	AcquireID(ctx context.Context, accountID int64) (bool, error)
	Release(ctx context.Context, accountID int64, callErr error)
}

// TemplateSource picks the next reply template for a target.
type TemplateSource interface {
	Next(ctx context.Context, targetID int64) (*models.ReplyTemplate, error)
}

// Recorder writes execution log entries.
type Recorder interface {
	Record(ctx context.Context, entry *models.ExecutionLog)
}

// CheckOutcome summarizes one target check.
type CheckOutcome struct {
	NewTweetsFound int `json:"new_tweets_found"`
	RepliesSent    int `json:"replies_sent"`
}

// Service runs monitor checks. The scheduler guard serializes checks
// per target, so Service itself holds no per-target state.
type Service struct {
	targets  models.TargetRepository
	replied  models.RepliedTweetRepository
	pool     Pool
	tmpl     TemplateSource
	gateway  Gateway
	limiter  *ratelimit.Limiter
	recorder Recorder
	tokens   *secrets.Box
	settings settings.Source
	logger   *slog.Logger
	now      func() time.Time
}

// NewService constructs a monitor Service.
func NewService(
	targets models.TargetRepository,
	replied models.RepliedTweetRepository,
	pool Pool,
	tmpl TemplateSource,
	gateway Gateway,
	limiter *ratelimit.Limiter,
	recorder Recorder,
	tokens *secrets.Box,
	src settings.Source,
	logger *slog.Logger,
) *Service {
	return &Service{
		targets:  targets,
		replied:  replied,
		pool:     pool,
		tmpl:     tmpl,
		gateway:  gateway,
		limiter:  limiter,
		recorder: recorder,
		tokens:   tokens,
		settings: src,
		logger:   logger,
		now:      time.Now,
	}
}

// CheckTarget runs one monitor check: fetch recent tweets, pick out
// the ones newer than the watermark, reply to the oldest few, and
// advance the schedule. The schedule advances on every exit path so a
// broken target cannot hot-loop.
func (s *Service) CheckTarget(ctx context.Context, target *models.Target) (*CheckOutcome, error) {
	if target.Status != models.TargetStatusActive {
		return nil, ErrTargetNotActive
	}

	if err := s.limiter.CheckAndConsume(ctx, ratelimit.ActionMonitor); err != nil {
		// Quota pressure is not a target-health signal; reschedule
		// without touching the failure streak.
		s.recordMonitorLog(ctx, target, models.LogResultFailed, err.Error(), nil)
		s.advanceSchedule(ctx, target, false, err.Error(), false)
		return nil, err
	}

	tweets, res, err := s.gateway.GetUserTweets(ctx, "", target.TargetUserID, target.FetchTweetCount)
	if err != nil {
		s.recordMonitorLog(ctx, target, models.LogResultFailed, err.Error(), res)
		s.advanceSchedule(ctx, target, false, err.Error(), true)
		return nil, fmt.Errorf("failed to fetch tweets for target %d: %w", target.ID, err)
	}

	newTweets := s.selectNewTweets(target, tweets)

	repliesSent := 0
	processed := 0
	var fanOutErr error
	for _, tweet := range newTweets {
		sent, err := s.replyFanOut(ctx, target, tweet)
		repliesSent += sent
		if err != nil {
			// Stop here; this tweet and the unprocessed ones stay
			// above the watermark and are retried next check.
			fanOutErr = err
			break
		}
		processed++
		if newerTweetID(tweet.ID, target.LastSeenTweetID) {
			target.LastSeenTweetID = tweet.ID
		}
	}

	target.TotalTweetsFound += processed
	target.TotalRepliesSent += repliesSent

	if fanOutErr != nil && !errors.Is(fanOutErr, ratelimit.ErrRateLimited) {
		// Infrastructure failure, not a target-health signal.
		s.logger.Error("reply fan-out failed",
			"target_id", target.ID,
			"tweets_processed", processed,
			"error", fanOutErr)
		s.recordMonitorLog(ctx, target, models.LogResultFailed, fanOutErr.Error(), res)
		s.advanceSchedule(ctx, target, false, fanOutErr.Error(), false)
		return &CheckOutcome{NewTweetsFound: processed, RepliesSent: repliesSent}, fanOutErr
	}

	s.recordMonitorLog(ctx, target, models.LogResultSuccess, "", res)
	s.advanceSchedule(ctx, target, true, "", true)

	s.logger.Info("target check completed",
		"target_id", target.ID,
		"target_user_id", target.TargetUserID,
		"new_tweets", processed,
		"replies_sent", repliesSent)

	return &CheckOutcome{NewTweetsFound: processed, RepliesSent: repliesSent}, nil
}

// selectNewTweets filters the fetch down to tweets newer than the
// watermark, orders them oldest first, and caps the batch so one noisy
// target cannot monopolize the pipeline.
func (s *Service) selectNewTweets(target *models.Target, tweets []social.Tweet) []social.Tweet {
	var fresh []social.Tweet
	for _, tweet := range tweets {
		if newerTweetID(tweet.ID, target.LastSeenTweetID) {
			fresh = append(fresh, tweet)
		}
	}

	sort.Slice(fresh, func(i, j int) bool {
		return compareTweetIDs(fresh[i].ID, fresh[j].ID) < 0
	})

	if target.MaxNewTweetsPerCheck > 0 && len(fresh) > target.MaxNewTweetsPerCheck {
		fresh = fresh[:target.MaxNewTweetsPerCheck]
	}
	return fresh
}

// replyFanOut sends one reply per eligible account to the tweet.
// Accounts that already replied (recorded in the dedup table) are
// skipped. Per-account failures are logged and do not stop the rest of
// the fan-out; only a global rate limit does.
func (s *Service) replyFanOut(ctx context.Context, target *models.Target, tweet social.Tweet) (int, error) {
	accounts, err := s.pool.Eligible(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list eligible accounts: %w", err)
	}

	sent := 0
	for _, account := range accounts {
		already, err := s.replied.Exists(ctx, target.TargetUserID, tweet.ID, account.ID)
		if err != nil {
			s.logger.Error("failed to check reply dedup", "account_id", account.ID, "tweet_id", tweet.ID, "error", err)
			continue
		}
		if already {
			continue
		}

		if err := s.limiter.CheckAndConsume(ctx, ratelimit.ActionReply); err != nil {
			return sent, err
		}

		ok, err := s.pool.AcquireID(ctx, account.ID)
		if err != nil {
			s.logger.Error("failed to acquire account", "account_id", account.ID, "error", err)
			continue
		}
		if !ok {
			continue
		}

		if s.replyWithAccount(ctx, target, tweet, account) {
			sent++
		}
	}
	return sent, nil
}

// replyWithAccount performs a single reply attempt and its bookkeeping.
// The account is released on every path.
func (s *Service) replyWithAccount(ctx context.Context, target *models.Target, tweet social.Tweet, account *models.Account) bool {
	template, err := s.tmpl.Next(ctx, target.ID)
	if err != nil {
		s.pool.Release(ctx, account.ID, nil)
		if !errors.Is(err, templates.ErrNoTemplate) {
			s.logger.Error("failed to pick reply template", "target_id", target.ID, "error", err)
		}
		return false
	}

	authToken, err := s.tokens.Open(account.EncryptedToken)
	if err != nil {
		s.pool.Release(ctx, account.ID, fmt.Errorf("failed to decrypt auth token: %w", err))
		s.logger.Error("failed to decrypt account token", "account_id", account.ID, "error", err)
		return false
	}

	res, err := s.gateway.ReplyToTweet(ctx, authToken, tweet.ID, template.Content)
	s.pool.Release(ctx, account.ID, err)

	entry := &models.ExecutionLog{
		LogType:       models.LogTypeReply,
		AccountID:     &account.ID,
		TargetID:      &target.ID,
		TweetID:       tweet.ID,
		TweetAuthorID: target.TargetUserID,
		ContentID:     &template.ID,
		ContentText:   template.Content,
	}
	if res != nil {
		entry.APIResponse = res.Body
		entry.ExecutionTimeMs = &res.DurationMs
	}

	if err != nil {
		entry.Result = models.LogResultFailed
		entry.ErrorMessage = err.Error()
		s.recorder.Record(ctx, entry)
		return false
	}

	entry.Result = models.LogResultSuccess
	s.recorder.Record(ctx, entry)

	replied := &models.RepliedTweet{
		TargetUserID: target.TargetUserID,
		TweetID:      tweet.ID,
		AccountID:    account.ID,
		ReplyTweetID: res.TweetID,
	}
	if err := s.replied.Insert(ctx, replied); err != nil {
		s.logger.Error("failed to record replied tweet", "account_id", account.ID, "tweet_id", tweet.ID, "error", err)
	}
	return true
}

// advanceSchedule stamps the check result and moves next_check_at
// forward. countFailure controls whether a failed check feeds the
// consecutive-failure streak; when the streak reaches the configured
// ceiling the target is disabled for manual review.
func (s *Service) advanceSchedule(ctx context.Context, target *models.Target, success bool, checkErr string, countFailure bool) {
	now := s.now()
	next := now.Add(time.Duration(target.CheckIntervalMinutes) * time.Minute)
	target.LastCheckAt = &now
	target.NextCheckAt = &next
	target.LastCheckError = checkErr

	if success {
		target.LastCheckResult = models.CheckResultSuccess
		target.ConsecutiveFailures = 0
	} else {
		target.LastCheckResult = models.CheckResultFailed
		if countFailure {
			target.ConsecutiveFailures++
			threshold := s.settings.Int(ctx, settings.KeyTargetFailureThreshold, settings.DefaultTargetFailureThreshold)
			if threshold > 0 && target.ConsecutiveFailures >= threshold {
				target.Status = models.TargetStatusDisabled
				s.logger.Warn("target disabled after repeated check failures",
					"target_id", target.ID,
					"consecutive_failures", target.ConsecutiveFailures)
			}
		}
	}

	if err := s.targets.UpdateCheckState(ctx, target); err != nil {
		s.logger.Error("failed to persist target check state", "target_id", target.ID, "error", err)
	}
}

func (s *Service) recordMonitorLog(ctx context.Context, target *models.Target, result models.LogResult, errMsg string, res *social.Result) {
	entry := &models.ExecutionLog{
		LogType:       models.LogTypeMonitor,
		TargetID:      &target.ID,
		TweetAuthorID: target.TargetUserID,
		Result:        result,
		ErrorMessage:  errMsg,
	}
	if res != nil {
		entry.ExecutionTimeMs = &res.DurationMs
	}
	s.recorder.Record(ctx, entry)
}
