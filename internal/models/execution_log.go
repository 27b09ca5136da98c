package models

import (
	"context"
	"time"
)

// LogType classifies what kind of pipeline action a log entry records.
type LogType string

const (
	LogTypeMonitor LogType = "monitor"
	LogTypeReply   LogType = "reply"
	LogTypePost    LogType = "post"
)

// LogResult is the outcome of the recorded action.
type LogResult string

const (
	LogResultSuccess LogResult = "success"
	LogResultFailed  LogResult = "failed"
)

// ExecutionLog records a single monitor, reply or post attempt.
// Entries are append-only and immutable once written.
type ExecutionLog struct {
	ID              string    `json:"id"`
	LogType         LogType   `json:"log_type"`
	AccountID       *int64    `json:"account_id,omitempty"`
	AccountName     string    `json:"account_name,omitempty"`
	TargetID        *int64    `json:"target_id,omitempty"`
	TargetUsername  string    `json:"target_username,omitempty"`
	JobID           *int64    `json:"job_id,omitempty"`
	JobName         string    `json:"job_name,omitempty"`
	TweetID         string    `json:"tweet_id,omitempty"`
	TweetAuthorID   string    `json:"tweet_author_id,omitempty"`
	ContentID       *int64    `json:"content_id,omitempty"`
	ContentText     string    `json:"content_text,omitempty"`
	Result          LogResult `json:"result"`
	ErrorMessage    string    `json:"error_message,omitempty"`
	APIResponse     string    `json:"api_response,omitempty"`
	ExecutionTimeMs *int      `json:"execution_time_ms,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// LogFilter narrows an execution log listing. Zero values mean "no
// filter"; Page and PerPage are 1-based pagination inputs.
type LogFilter struct {
	LogType   string
	Result    string
	AccountID *int64
	TargetID  *int64
	JobID     *int64
	TweetID   string
	StartDate *time.Time
	EndDate   *time.Time
	Page      int
	PerPage   int
}

// LogStats summarizes execution log volume for the dashboard.
type LogStats struct {
	ByType    map[string]int `json:"by_type"`
	ByResult  map[string]int `json:"by_result"`
	Recent24h int            `json:"recent_24h"`
}

// ExecutionLogRepository defines append and query operations for logs.
type ExecutionLogRepository interface {
	Insert(ctx context.Context, entry *ExecutionLog) error
	GetByID(ctx context.Context, id string) (*ExecutionLog, error)

	// List returns one page of matching entries, newest first, plus the
	// total match count.
	List(ctx context.Context, filter LogFilter) ([]*ExecutionLog, int, error)

	Stats(ctx context.Context) (*LogStats, error)
}
