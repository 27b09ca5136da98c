package models

import (
	"context"
	"time"
)

// TargetStatus represents the lifecycle state of a monitor target.
type TargetStatus string

const (
	TargetStatusActive   TargetStatus = "active"
	TargetStatusDisabled TargetStatus = "disabled"
)

// CheckResult values recorded after each monitor check.
const (
	CheckResultSuccess = "success"
	CheckResultFailed  = "failed"
)

// Target is an external Twitter account monitored for new tweets.
// TargetUserID is immutable once created.
type Target struct {
	ID                   int64        `json:"id"`
	TargetUserID         string       `json:"target_user_id"`
	TargetUsername       string       `json:"target_username,omitempty"`
	Name                 string       `json:"name,omitempty"`
	Status               TargetStatus `json:"status"`
	CheckIntervalMinutes int          `json:"check_interval_minutes"`
	FetchTweetCount      int          `json:"fetch_tweet_count"`
	MaxNewTweetsPerCheck int          `json:"max_new_tweets_per_check"`
	LastSeenTweetID      string       `json:"last_seen_tweet_id,omitempty"`
	LastCheckAt          *time.Time   `json:"last_check_at,omitempty"`
	NextCheckAt          *time.Time   `json:"next_check_at,omitempty"`
	LastCheckResult      string       `json:"last_check_result,omitempty"`
	LastCheckError       string       `json:"last_check_error,omitempty"`
	ConsecutiveFailures  int          `json:"consecutive_failures"`
	TotalTweetsFound     int          `json:"total_tweets_found"`
	TotalRepliesSent     int          `json:"total_replies_sent"`
	CreatedAt            time.Time    `json:"created_at"`
	UpdatedAt            time.Time    `json:"updated_at"`
}

// TargetRepository defines persistence operations for monitor targets.
type TargetRepository interface {
	Create(ctx context.Context, target *Target) error
	GetByID(ctx context.Context, id int64) (*Target, error)
	GetByUserID(ctx context.Context, userID string) (*Target, error)
	List(ctx context.Context, status string) ([]*Target, error)
	Update(ctx context.Context, target *Target) error
	Delete(ctx context.Context, id int64) error

	// ListDue returns active targets whose next check time has passed
	// (or was never scheduled).
	ListDue(ctx context.Context, now time.Time) ([]*Target, error)

	// UpdateCheckState persists the watermark, counters and schedule
	// fields mutated by a monitor check.
	UpdateCheckState(ctx context.Context, target *Target) error
}
