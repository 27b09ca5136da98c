package api

import (
	"fmt"

	"github.com/Past-Tang/x/internal/models"
)

// ValidationError represents a validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func validateAccountCreate(name, authToken string, weight, maxConcurrent int) error {
	if name == "" {
		return ValidationError{Field: "name", Message: "name is required"}
	}
	if authToken == "" {
		return ValidationError{Field: "auth_token", Message: "auth_token is required"}
	}
	return validateAccountLimits(weight, maxConcurrent)
}

func validateAccountLimits(weight, maxConcurrent int) error {
	if weight < 1 {
		return ValidationError{Field: "weight", Message: "weight must be at least 1"}
	}
	if maxConcurrent < 1 {
		return ValidationError{Field: "max_concurrent_usage", Message: "max_concurrent_usage must be at least 1"}
	}
	return nil
}

func validateTargetCreate(userID string, interval, fetchCount, maxNew int) error {
	if userID == "" {
		return ValidationError{Field: "target_user_id", Message: "target_user_id is required"}
	}
	return validateTargetLimits(interval, fetchCount, maxNew)
}

func validateTargetLimits(interval, fetchCount, maxNew int) error {
	if interval < 1 {
		return ValidationError{Field: "check_interval_minutes", Message: "check_interval_minutes must be at least 1"}
	}
	if fetchCount < 1 || fetchCount > 100 {
		return ValidationError{Field: "fetch_tweet_count", Message: "fetch_tweet_count must be between 1 and 100"}
	}
	if maxNew < 1 {
		return ValidationError{Field: "max_new_tweets_per_check", Message: "max_new_tweets_per_check must be at least 1"}
	}
	return nil
}

func validateTemplate(content string, scope models.TemplateScope, targetID *int64) error {
	if content == "" {
		return ValidationError{Field: "content", Message: "content is required"}
	}
	switch scope {
	case models.TemplateScopeGlobal:
		if targetID != nil {
			return ValidationError{Field: "target_id", Message: "target_id must be empty for global templates"}
		}
	case models.TemplateScopeTarget:
		if targetID == nil {
			return ValidationError{Field: "target_id", Message: "target_id is required for target-scoped templates"}
		}
	default:
		return ValidationError{Field: "scope", Message: "scope must be 'global' or 'target'"}
	}
	return nil
}

func validatePostJob(name string, interval int) error {
	if name == "" {
		return ValidationError{Field: "name", Message: "name is required"}
	}
	if interval < 1 {
		return ValidationError{Field: "interval_minutes", Message: "interval_minutes must be at least 1"}
	}
	return nil
}

func validatePostContent(text string) error {
	if text == "" {
		return ValidationError{Field: "text", Message: "text is required"}
	}
	return nil
}
