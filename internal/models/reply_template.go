package models

import (
	"context"
	"time"
)

// TemplateScope controls which targets a reply template applies to.
type TemplateScope string

const (
	// TemplateScopeGlobal templates apply to every monitored target.
	TemplateScopeGlobal TemplateScope = "global"
	// TemplateScopeTarget templates apply to a single target and take
	// priority over global ones.
	TemplateScopeTarget TemplateScope = "target"
)

// EntityStatus covers the simple active/disabled toggle shared by
// templates, contents, jobs and targets.
const (
	StatusActive   = "active"
	StatusDisabled = "disabled"
)

// ReplyTemplate is a canned reply used when responding to a new tweet.
type ReplyTemplate struct {
	ID         int64         `json:"id"`
	Content    string        `json:"content"`
	Status     string        `json:"status"`
	Scope      TemplateScope `json:"scope"`
	TargetID   *int64        `json:"target_id,omitempty"`
	SortOrder  int           `json:"sort_order"`
	UsageCount int           `json:"usage_count"`
	LastUsedAt *time.Time    `json:"last_used_at,omitempty"`
	CreatedAt  time.Time     `json:"created_at"`
	UpdatedAt  time.Time     `json:"updated_at"`
}

// ReplyTemplateRepository defines persistence operations for templates.
type ReplyTemplateRepository interface {
	Create(ctx context.Context, template *ReplyTemplate) error
	GetByID(ctx context.Context, id int64) (*ReplyTemplate, error)
	List(ctx context.Context, status, scope string, targetID *int64) ([]*ReplyTemplate, error)
	Update(ctx context.Context, template *ReplyTemplate) error
	Delete(ctx context.Context, id int64) error

	// ListActiveForTarget returns active templates usable for the given
	// target: target-scoped ones for that target plus global ones, each
	// group ordered by sort_order then id.
	ListActiveForTarget(ctx context.Context, targetID int64) ([]*ReplyTemplate, error)

	// RecordUsage bumps usage_count and stamps last_used_at.
	RecordUsage(ctx context.Context, id int64) error

	// Reorder rewrites sort_order to match the given id sequence.
	Reorder(ctx context.Context, ids []int64) error
}
