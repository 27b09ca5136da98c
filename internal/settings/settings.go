// Package settings names the runtime-tunable keys stored in the
// system_settings table and their seeded defaults. Env config covers
// process-level concerns; everything an operator tunes from the
// dashboard lives here.
package settings

import (
	"context"

	"github.com/Past-Tang/x/internal/models"
)

// Setting keys consumed by the pipeline components.
const (
	KeyTwitterAPIBaseURL        = "twitter_api_base_url"
	KeyTwitterAPIKey            = "twitter_api_key"
	KeyAccountHourlyLimit       = "account_hourly_limit"
	KeyGlobalRateLimit          = "global_rate_limit"
	KeyMinRandomDelay           = "min_random_delay"
	KeyMaxRandomDelay           = "max_random_delay"
	KeyAccountFailureThreshold  = "account_failure_threshold"
	KeyTargetFailureThreshold   = "target_failure_threshold"
	KeyAccountSelectionStrategy = "account_selection_strategy"
	KeyReplySelectionStrategy   = "reply_selection_strategy"
)

// Fallbacks used when a setting row is missing or unparseable.
const (
	DefaultAccountHourlyLimit      = 10
	DefaultGlobalRateLimit         = 60
	DefaultMinRandomDelay          = 3
	DefaultMaxRandomDelay          = 20
	DefaultAccountFailureThreshold = 3
	DefaultTargetFailureThreshold  = 5
	DefaultTwitterAPIBaseURL       = "https://api.twitterapi.io"
)

// Source resolves tunable values at call time so dashboard edits take
// effect without a restart.
type Source interface {
	Int(ctx context.Context, key string, fallback int) int
	String(ctx context.Context, key, fallback string) string
}

// Defaults returns the rows seeded at startup and by the settings init
// operation. Existing keys are never overwritten.
func Defaults() []models.SettingDefault {
	return []models.SettingDefault{
		{Key: KeyTwitterAPIBaseURL, Value: DefaultTwitterAPIBaseURL, ValueType: models.SettingTypeString, Description: "Base URL for the Twitter API"},
		{Key: KeyTwitterAPIKey, Value: "", ValueType: models.SettingTypeString, Description: "API key for the Twitter API"},
		{Key: KeyAccountHourlyLimit, Value: "10", ValueType: models.SettingTypeInt, Description: "Max actions per account per hour"},
		{Key: KeyGlobalRateLimit, Value: "60", ValueType: models.SettingTypeInt, Description: "Max API calls per minute globally"},
		{Key: KeyMinRandomDelay, Value: "3", ValueType: models.SettingTypeInt, Description: "Minimum random delay in seconds before external calls"},
		{Key: KeyMaxRandomDelay, Value: "20", ValueType: models.SettingTypeInt, Description: "Maximum random delay in seconds before external calls"},
		{Key: KeyAccountFailureThreshold, Value: "3", ValueType: models.SettingTypeInt, Description: "Consecutive failures before marking an account as suspect"},
		{Key: KeyTargetFailureThreshold, Value: "5", ValueType: models.SettingTypeInt, Description: "Consecutive failed checks before disabling a target"},
		{Key: KeyAccountSelectionStrategy, Value: "round_robin", ValueType: models.SettingTypeString, Description: "Account selection strategy (round_robin, random, weighted)"},
		{Key: KeyReplySelectionStrategy, Value: "round_robin", ValueType: models.SettingTypeString, Description: "Reply template selection strategy (round_robin, random)"},
	}
}
