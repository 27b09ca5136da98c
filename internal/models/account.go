package models

import (
	"context"
	"time"
)

// AccountStatus represents the lifecycle state of a pooled account.
type AccountStatus string

const (
	AccountStatusActive   AccountStatus = "active"
	AccountStatusDisabled AccountStatus = "disabled"
	// AccountStatusSuspect is set automatically after repeated failures
	// and can only be cleared by an operator.
	AccountStatusSuspect AccountStatus = "suspect"
)

// Account is a pooled Twitter account used to execute replies and posts.
// The raw auth token is stored encrypted and is never serialized; API
// responses carry only TokenMasked.
type Account struct {
	ID                  int64         `json:"id"`
	Name                string        `json:"name"`
	TwitterUserID       string        `json:"twitter_user_id,omitempty"`
	TwitterHandle       string        `json:"twitter_handle,omitempty"`
	EncryptedToken      string        `json:"-"`
	TokenMasked         string        `json:"token_masked,omitempty"`
	Status              AccountStatus `json:"status"`
	LastUsedAt          *time.Time    `json:"last_used_at,omitempty"`
	LastSuccessAt       *time.Time    `json:"last_success_at,omitempty"`
	LastFailureAt       *time.Time    `json:"last_failure_at,omitempty"`
	LastFailureReason   string        `json:"last_failure_reason,omitempty"`
	ConsecutiveFailures int           `json:"consecutive_failures"`
	HourlyActionCount   int           `json:"hourly_action_count"`
	HourlyResetAt       *time.Time    `json:"hourly_reset_at,omitempty"`
	CurrentUsageCount   int           `json:"current_usage_count"`
	MaxConcurrentUsage  int           `json:"max_concurrent_usage"`
	Weight              int           `json:"weight"`
	CreatedAt           time.Time     `json:"created_at"`
	UpdatedAt           time.Time     `json:"updated_at"`
}

// Eligible reports whether the account can take another action right
// now given the configured failure threshold and hourly cap. The hourly
// counter only blocks while its rolling window is still open.
func (a *Account) Eligible(now time.Time, failureThreshold, hourlyLimit int) bool {
	if a.Status != AccountStatusActive {
		return false
	}
	if a.ConsecutiveFailures >= failureThreshold {
		return false
	}
	if a.CurrentUsageCount >= a.MaxConcurrentUsage {
		return false
	}
	if a.HourlyResetAt != nil && now.Sub(*a.HourlyResetAt) <= time.Hour && a.HourlyActionCount >= hourlyLimit {
		return false
	}
	return true
}

// AccountRepository defines persistence operations for pooled accounts.
// TryAcquire and Release must be atomic per account row: two concurrent
// callers must never both claim the last free concurrency slot.
type AccountRepository interface {
	Create(ctx context.Context, account *Account) error
	GetByID(ctx context.Context, id int64) (*Account, error)
	List(ctx context.Context, status string) ([]*Account, error)
	Update(ctx context.Context, account *Account) error
	Delete(ctx context.Context, id int64) error

	// ListEligible returns accounts that pass the eligibility check at
	// the time of the query.
	ListEligible(ctx context.Context, failureThreshold, hourlyLimit int) ([]*Account, error)

	// TryAcquire increments the concurrent-usage counter if and only if
	// the account is still eligible. Returns false when the account lost
	// eligibility since it was listed.
	TryAcquire(ctx context.Context, id int64, failureThreshold, hourlyLimit int) (bool, error)

	// Release decrements the concurrent-usage counter, never below zero.
	Release(ctx context.Context, id int64) error

	// RecordSuccess stamps last_used_at/last_success_at, resets the
	// consecutive-failure counter and bumps the rolling hourly counter.
	RecordSuccess(ctx context.Context, id int64) error

	// RecordFailure stamps the failure, bumps the consecutive-failure
	// and hourly counters, and flips the account to suspect once the
	// threshold is reached.
	RecordFailure(ctx context.Context, id int64, reason string, failureThreshold int) error
}
