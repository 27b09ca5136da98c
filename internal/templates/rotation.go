// Package templates picks the reply template to use for a given target.
// Target-scoped templates always beat global ones; within the chosen
// scope templates rotate round-robin by default, or uniformly at random
// when the reply_selection_strategy setting says so.
package templates

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"

	"github.com/Past-Tang/x/internal/models"
	"github.com/Past-Tang/x/internal/settings"
)

// ErrNoTemplate is returned when no active template applies to a target.
var ErrNoTemplate = errors.New("no active reply template for target")

const (
	strategyRoundRobin = "round_robin"
	strategyRandom     = "random"
)

// Rotation serves templates for reply runs. Cursors are in-memory and
// reset on restart; rotation only needs to be fair over a window, not
// durable.
type Rotation struct {
	repo     models.ReplyTemplateRepository
	settings settings.Source

	mu      sync.Mutex
	cursors map[string]int
	randInt func(n int) int
}

// NewRotation constructs a Rotation.
func NewRotation(repo models.ReplyTemplateRepository, src settings.Source) *Rotation {
	return &Rotation{
		repo:     repo,
		settings: src,
		cursors:  map[string]int{},
		randInt:  rand.Intn,
	}
}

// Next returns the template to use for the target's next reply and
// records its usage. The eligible set is the target's own active
// templates when any exist, otherwise the active global templates.
func (r *Rotation) Next(ctx context.Context, targetID int64) (*models.ReplyTemplate, error) {
	all, err := r.repo.ListActiveForTarget(ctx, targetID)
	if err != nil {
		return nil, fmt.Errorf("failed to list templates for target %d: %w", targetID, err)
	}
	if len(all) == 0 {
		return nil, ErrNoTemplate
	}

	// ListActiveForTarget orders target-scoped templates first, so the
	// eligible set is the leading run of whichever scope appears first.
	scope := all[0].Scope
	eligible := all[:0:0]
	for _, tpl := range all {
		if tpl.Scope != scope {
			break
		}
		eligible = append(eligible, tpl)
	}

	picked := r.pick(ctx, targetID, scope, eligible)

	if err := r.repo.RecordUsage(ctx, picked.ID); err != nil {
		return nil, fmt.Errorf("failed to record template usage: %w", err)
	}
	return picked, nil
}

func (r *Rotation) pick(ctx context.Context, targetID int64, scope models.TemplateScope, eligible []*models.ReplyTemplate) *models.ReplyTemplate {
	strategy := r.settings.String(ctx, settings.KeyReplySelectionStrategy, strategyRoundRobin)

	r.mu.Lock()
	defer r.mu.Unlock()

	if strategy == strategyRandom {
		return eligible[r.randInt(len(eligible))]
	}

	key := cursorKey(targetID, scope)
	idx := r.cursors[key] % len(eligible)
	r.cursors[key] = idx + 1
	return eligible[idx]
}

// cursorKey keeps rotation independent per target for target-scoped
// templates, while global templates share one cursor so every target
// advances the same sequence.
func cursorKey(targetID int64, scope models.TemplateScope) string {
	if scope == models.TemplateScopeTarget {
		return fmt.Sprintf("target_%d", targetID)
	}
	return "global"
}
