package accountpool

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/Past-Tang/x/internal/models"
	"github.com/Past-Tang/x/internal/selector"
)

type fakeSettings struct{}

func (fakeSettings) Int(ctx context.Context, key string, fallback int) int { return fallback }
func (fakeSettings) String(ctx context.Context, key, fallback string) string {
	return fallback
}

// fakeAccountRepo tracks slot usage in memory so TryAcquire/Release
// behave like the SQL conditional updates.
type fakeAccountRepo struct {
	models.AccountRepository

	accounts  []*models.Account
	usage     map[int64]int
	successes []int64
	failures  []int64
	released  []int64
}

func newFakeRepo(accounts ...*models.Account) *fakeAccountRepo {
	return &fakeAccountRepo{accounts: accounts, usage: map[int64]int{}}
}

func (f *fakeAccountRepo) ListEligible(ctx context.Context, failureThreshold, hourlyLimit int) ([]*models.Account, error) {
	var out []*models.Account
	for _, acc := range f.accounts {
		if acc.Status == models.AccountStatusActive && f.usage[acc.ID] < acc.MaxConcurrentUsage {
			out = append(out, acc)
		}
	}
	return out, nil
}

func (f *fakeAccountRepo) TryAcquire(ctx context.Context, id int64, failureThreshold, hourlyLimit int) (bool, error) {
	for _, acc := range f.accounts {
		if acc.ID == id && acc.Status == models.AccountStatusActive && f.usage[id] < acc.MaxConcurrentUsage {
			f.usage[id]++
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeAccountRepo) Release(ctx context.Context, id int64) error {
	if f.usage[id] > 0 {
		f.usage[id]--
	}
	f.released = append(f.released, id)
	return nil
}

func (f *fakeAccountRepo) RecordSuccess(ctx context.Context, id int64) error {
	f.successes = append(f.successes, id)
	return nil
}

func (f *fakeAccountRepo) RecordFailure(ctx context.Context, id int64, reason string, failureThreshold int) error {
	f.failures = append(f.failures, id)
	return nil
}

func newTestPool(repo *fakeAccountRepo) *Pool {
	return New(repo, selector.New(), fakeSettings{}, slog.New(slog.DiscardHandler))
}

func account(id int64, slots int) *models.Account {
	return &models.Account{
		ID:                 id,
		Name:               "acc",
		Status:             models.AccountStatusActive,
		MaxConcurrentUsage: slots,
	}
}

func TestAcquireClaimsSlot(t *testing.T) {
	repo := newFakeRepo(account(1, 1))
	pool := newTestPool(repo)

	acc, err := pool.Acquire(context.Background(), selector.StrategyRoundRobin, "test", nil)
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if acc.ID != 1 {
		t.Errorf("expected account 1, got %d", acc.ID)
	}
	if repo.usage[1] != 1 {
		t.Errorf("expected usage 1, got %d", repo.usage[1])
	}
}

func TestAcquireExhaustedPool(t *testing.T) {
	repo := newFakeRepo(account(1, 1), account(2, 1))
	pool := newTestPool(repo)
	ctx := context.Background()

	if _, err := pool.Acquire(ctx, selector.StrategyRoundRobin, "test", nil); err != nil {
		t.Fatalf("first acquire failed: %v", err)
	}
	if _, err := pool.Acquire(ctx, selector.StrategyRoundRobin, "test", nil); err != nil {
		t.Fatalf("second acquire failed: %v", err)
	}

	_, err := pool.Acquire(ctx, selector.StrategyRoundRobin, "test", nil)
	if !errors.Is(err, ErrNoEligibleAccount) {
		t.Errorf("expected ErrNoEligibleAccount, got %v", err)
	}
}

func TestAcquireSkipsExcluded(t *testing.T) {
	repo := newFakeRepo(account(1, 1), account(2, 1))
	pool := newTestPool(repo)

	acc, err := pool.Acquire(context.Background(), selector.StrategyRoundRobin, "test", map[int64]bool{1: true})
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if acc.ID != 2 {
		t.Errorf("expected account 2, got %d", acc.ID)
	}
}

func TestAcquireAllExcluded(t *testing.T) {
	repo := newFakeRepo(account(1, 1))
	pool := newTestPool(repo)

	_, err := pool.Acquire(context.Background(), selector.StrategyRoundRobin, "test", map[int64]bool{1: true})
	if !errors.Is(err, ErrNoEligibleAccount) {
		t.Errorf("expected ErrNoEligibleAccount, got %v", err)
	}
}

func TestReleaseRecordsSuccess(t *testing.T) {
	repo := newFakeRepo(account(1, 1))
	pool := newTestPool(repo)
	ctx := context.Background()

	if _, err := pool.Acquire(ctx, selector.StrategyRoundRobin, "test", nil); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	pool.Release(ctx, 1, nil)

	if repo.usage[1] != 0 {
		t.Errorf("expected slot freed, usage=%d", repo.usage[1])
	}
	if len(repo.successes) != 1 || repo.successes[0] != 1 {
		t.Errorf("expected success recorded for account 1, got %v", repo.successes)
	}
	if len(repo.failures) != 0 {
		t.Errorf("unexpected failures recorded: %v", repo.failures)
	}
}

func TestReleaseRecordsFailure(t *testing.T) {
	repo := newFakeRepo(account(1, 1))
	pool := newTestPool(repo)
	ctx := context.Background()

	if _, err := pool.Acquire(ctx, selector.StrategyRoundRobin, "test", nil); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	pool.Release(ctx, 1, errors.New("api timeout"))

	if len(repo.failures) != 1 || repo.failures[0] != 1 {
		t.Errorf("expected failure recorded for account 1, got %v", repo.failures)
	}
	if len(repo.successes) != 0 {
		t.Errorf("unexpected successes recorded: %v", repo.successes)
	}
}

// The model predicate is the reference for what ListEligible's SQL
// filters on: status, failure streak, concurrency slots, and the
// rolling hourly window.
func TestEligibilityPredicate(t *testing.T) {
	now := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	recent := now.Add(-30 * time.Minute)
	stale := now.Add(-2 * time.Hour)

	cases := []struct {
		name string
		acc  models.Account
		want bool
	}{
		{
			name: "active with headroom",
			acc:  models.Account{Status: models.AccountStatusActive, MaxConcurrentUsage: 3},
			want: true,
		},
		{
			name: "disabled",
			acc:  models.Account{Status: models.AccountStatusDisabled, MaxConcurrentUsage: 3},
			want: false,
		},
		{
			name: "failure streak at threshold",
			acc:  models.Account{Status: models.AccountStatusActive, MaxConcurrentUsage: 3, ConsecutiveFailures: 5},
			want: false,
		},
		{
			name: "concurrency slots full",
			acc:  models.Account{Status: models.AccountStatusActive, MaxConcurrentUsage: 3, CurrentUsageCount: 3},
			want: false,
		},
		{
			name: "hourly cap inside window",
			acc:  models.Account{Status: models.AccountStatusActive, MaxConcurrentUsage: 3, HourlyActionCount: 10, HourlyResetAt: &recent},
			want: false,
		},
		{
			name: "hourly cap after window lapses",
			acc:  models.Account{Status: models.AccountStatusActive, MaxConcurrentUsage: 3, HourlyActionCount: 10, HourlyResetAt: &stale},
			want: true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.acc.Eligible(now, 5, 10); got != tc.want {
				t.Errorf("Eligible = %v, want %v", got, tc.want)
			}
		})
	}
}
