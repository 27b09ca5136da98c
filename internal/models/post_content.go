package models

import (
	"context"
	"time"
)

// PostContent is one entry in the auto-posting content pool.
type PostContent struct {
	ID         int64      `json:"id"`
	Text       string     `json:"text"`
	Link       string     `json:"link,omitempty"`
	Status     string     `json:"status"`
	SortOrder  int        `json:"sort_order"`
	UsageCount int        `json:"usage_count"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// FullText returns the tweet body, appending the link on its own line
// when one is set.
func (c *PostContent) FullText() string {
	if c.Link != "" {
		return c.Text + "\n" + c.Link
	}
	return c.Text
}

// PostContentRepository defines persistence operations for the content pool.
type PostContentRepository interface {
	Create(ctx context.Context, content *PostContent) error
	GetByID(ctx context.Context, id int64) (*PostContent, error)
	List(ctx context.Context, status string) ([]*PostContent, error)
	Update(ctx context.Context, content *PostContent) error
	Delete(ctx context.Context, id int64) error

	// ListActive returns active contents ordered by sort_order then id.
	ListActive(ctx context.Context) ([]*PostContent, error)

	// RecordUsage bumps usage_count and stamps last_used_at.
	RecordUsage(ctx context.Context, id int64) error

	// Reorder rewrites sort_order to match the given id sequence.
	Reorder(ctx context.Context, ids []int64) error
}
