package models

import (
	"context"
	"time"
)

// RunResult values recorded after each post job run.
const (
	RunResultSuccess = "success"
	RunResultFailed  = "failed"
)

// PostJob is a recurring auto-posting job. CurrentContentIndex is a
// plain cursor into the active content pool; it is reduced modulo the
// live pool size on every use, never cached across pool changes.
type PostJob struct {
	ID                  int64      `json:"id"`
	Name                string     `json:"name"`
	Status              string     `json:"status"`
	IntervalMinutes     int        `json:"interval_minutes"`
	CurrentContentIndex int        `json:"current_content_index"`
	AccountStrategy     string     `json:"account_strategy"`
	LastRunAt           *time.Time `json:"last_run_at,omitempty"`
	NextRunAt           *time.Time `json:"next_run_at,omitempty"`
	LastRunResult       string     `json:"last_run_result,omitempty"`
	LastRunError        string     `json:"last_run_error,omitempty"`
	LastTweetID         string     `json:"last_tweet_id,omitempty"`
	TotalPosts          int        `json:"total_posts"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

// PostJobRepository defines persistence operations for post jobs.
type PostJobRepository interface {
	Create(ctx context.Context, job *PostJob) error
	GetByID(ctx context.Context, id int64) (*PostJob, error)
	List(ctx context.Context, status string) ([]*PostJob, error)
	Update(ctx context.Context, job *PostJob) error
	Delete(ctx context.Context, id int64) error

	// ListDue returns active jobs whose next run time has passed (or
	// was never scheduled).
	ListDue(ctx context.Context, now time.Time) ([]*PostJob, error)

	// UpdateRunState persists the cursor, counters and schedule fields
	// mutated by a job run.
	UpdateRunState(ctx context.Context, job *PostJob) error
}
