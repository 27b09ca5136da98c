// Package accountpool mediates access to the shared account pool:
// eligibility filtering, atomic acquisition of a concurrency slot, and
// the success/failure bookkeeping performed on release.
package accountpool

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Past-Tang/x/internal/models"
	"github.com/Past-Tang/x/internal/selector"
	"github.com/Past-Tang/x/internal/settings"
)

// ErrNoEligibleAccount is returned when no account can take an action
// right now.
var ErrNoEligibleAccount = errors.New("no eligible account available")

// Pool hands out accounts to pipeline runs. It never holds account
// state in memory; every acquire re-checks eligibility inside a single
// conditional UPDATE so concurrent runs cannot over-commit a row.
type Pool struct {
	repo     models.AccountRepository
	selector *selector.Selector
	settings settings.Source
	logger   *slog.Logger
}

// New constructs a Pool.
func New(repo models.AccountRepository, sel *selector.Selector, src settings.Source, logger *slog.Logger) *Pool {
	return &Pool{
		repo:     repo,
		selector: sel,
		settings: src,
		logger:   logger,
	}
}

// Eligible returns the accounts currently able to take an action.
func (p *Pool) Eligible(ctx context.Context) ([]*models.Account, error) {
	threshold, hourlyLimit := p.limits(ctx)
	return p.repo.ListEligible(ctx, threshold, hourlyLimit)
}

// Acquire selects an account with the given strategy and claims one of
// its concurrency slots. Accounts in excluded are skipped. When the
// selected account loses eligibility between listing and claiming, the
// next candidate is tried until the eligible set is exhausted.
func (p *Pool) Acquire(ctx context.Context, strategy selector.Strategy, selectionContext string, excluded map[int64]bool) (*models.Account, error) {
	threshold, hourlyLimit := p.limits(ctx)

	accounts, err := p.repo.ListEligible(ctx, threshold, hourlyLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to list eligible accounts: %w", err)
	}

	candidates := accounts[:0:0]
	for _, acc := range accounts {
		if !excluded[acc.ID] {
			candidates = append(candidates, acc)
		}
	}

	tried := map[int64]bool{}
	for len(candidates) > 0 {
		picked := p.selector.Select(strategy, selectionContext, candidates)
		if picked == nil {
			break
		}

		ok, err := p.repo.TryAcquire(ctx, picked.ID, threshold, hourlyLimit)
		if err != nil {
			return nil, fmt.Errorf("failed to acquire account %d: %w", picked.ID, err)
		}
		if ok {
			return picked, nil
		}

		// Lost the race for this account; drop it and retry the rest.
		tried[picked.ID] = true
		next := candidates[:0:0]
		for _, acc := range candidates {
			if !tried[acc.ID] {
				next = append(next, acc)
			}
		}
		candidates = next
	}

	return nil, ErrNoEligibleAccount
}

// AcquireID claims a slot on one specific account. It returns false
// when the account is no longer eligible or has no free slot. Used by
// reply fan-out, where every eligible account acts rather than one
// chosen by strategy.
func (p *Pool) AcquireID(ctx context.Context, accountID int64) (bool, error) {
	threshold, hourlyLimit := p.limits(ctx)
	return p.repo.TryAcquire(ctx, accountID, threshold, hourlyLimit)
}

// Release frees the concurrency slot and records the outcome. callErr
// nil means the action succeeded. Release must be called on every exit
// path of a run that acquired the account, including timeouts.
func (p *Pool) Release(ctx context.Context, accountID int64, callErr error) {
	if err := p.repo.Release(ctx, accountID); err != nil {
		p.logger.Error("failed to release account", "account_id", accountID, "error", err)
	}

	if callErr == nil {
		if err := p.repo.RecordSuccess(ctx, accountID); err != nil {
			p.logger.Error("failed to record account success", "account_id", accountID, "error", err)
		}
		return
	}

	threshold, _ := p.limits(ctx)
	if err := p.repo.RecordFailure(ctx, accountID, callErr.Error(), threshold); err != nil {
		p.logger.Error("failed to record account failure", "account_id", accountID, "error", err)
	}
}

func (p *Pool) limits(ctx context.Context) (failureThreshold, hourlyLimit int) {
	failureThreshold = p.settings.Int(ctx, settings.KeyAccountFailureThreshold, settings.DefaultAccountFailureThreshold)
	hourlyLimit = p.settings.Int(ctx, settings.KeyAccountHourlyLimit, settings.DefaultAccountHourlyLimit)
	return failureThreshold, hourlyLimit
}
