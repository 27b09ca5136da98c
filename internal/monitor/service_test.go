package monitor

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/Past-Tang/x/internal/models"
	"github.com/Past-Tang/x/internal/ratelimit"
	"github.com/Past-Tang/x/internal/secrets"
	"github.com/Past-Tang/x/internal/social"
)

type fakeSettings struct {
	globalLimit int
}

func (f fakeSettings) Int(ctx context.Context, key string, fallback int) int {
	if key == "global_rate_limit" {
		return f.globalLimit
	}
	return fallback
}

func (f fakeSettings) String(ctx context.Context, key, fallback string) string { return fallback }

type fakeTargetRepo struct {
	models.TargetRepository

	updated *models.Target
}

func (f *fakeTargetRepo) UpdateCheckState(ctx context.Context, target *models.Target) error {
	cp := *target
	f.updated = &cp
	return nil
}

type fakeRepliedRepo struct {
	existing map[string]bool
	inserted []*models.RepliedTweet
}

func (f *fakeRepliedRepo) Exists(ctx context.Context, targetUserID, tweetID string, accountID int64) (bool, error) {
	return f.existing[tweetID], nil
}

func (f *fakeRepliedRepo) Insert(ctx context.Context, replied *models.RepliedTweet) error {
	f.inserted = append(f.inserted, replied)
	return nil
}

type fakePool struct {
	accounts    []*models.Account
	eligibleErr error
	acquired    []int64
	released    []int64
}

func (f *fakePool) Eligible(ctx context.Context) ([]*models.Account, error) {
	if f.eligibleErr != nil {
		return nil, f.eligibleErr
	}
	return f.accounts, nil
}

func (f *fakePool) AcquireID(ctx context.Context, accountID int64) (bool, error) {
	f.acquired = append(f.acquired, accountID)
	return true, nil
}

func (f *fakePool) Release(ctx context.Context, accountID int64, callErr error) {
	f.released = append(f.released, accountID)
}

type fakeTemplates struct {
	template *models.ReplyTemplate
	err      error
}

func (f *fakeTemplates) Next(ctx context.Context, targetID int64) (*models.ReplyTemplate, error) {
	return f.template, f.err
}

type fakeGateway struct {
	tweets   []social.Tweet
	fetchErr error
	replies  []string
	replyErr error
}

func (f *fakeGateway) GetUserTweets(ctx context.Context, authToken, userID string, count int) ([]social.Tweet, *social.Result, error) {
	if f.fetchErr != nil {
		return nil, &social.Result{DurationMs: 5}, f.fetchErr
	}
	return f.tweets, &social.Result{StatusCode: 200, DurationMs: 5}, nil
}

func (f *fakeGateway) ReplyToTweet(ctx context.Context, authToken, tweetID, text string) (*social.Result, error) {
	f.replies = append(f.replies, tweetID)
	if f.replyErr != nil {
		return &social.Result{StatusCode: 500, DurationMs: 5}, f.replyErr
	}
	return &social.Result{StatusCode: 200, TweetID: "r" + tweetID, DurationMs: 5}, nil
}

type captureRecorder struct {
	entries []*models.ExecutionLog
}

func (c *captureRecorder) Record(ctx context.Context, entry *models.ExecutionLog) {
	c.entries = append(c.entries, entry)
}

type fixture struct {
	svc      *Service
	targets  *fakeTargetRepo
	replied  *fakeRepliedRepo
	pool     *fakePool
	gateway  *fakeGateway
	recorder *captureRecorder
}

func newFixture(t *testing.T, gateway *fakeGateway, pool *fakePool, globalLimit int) *fixture {
	t.Helper()

	key, err := secrets.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey failed: %v", err)
	}
	box, err := secrets.NewBox(key)
	if err != nil {
		t.Fatalf("NewBox failed: %v", err)
	}
	for _, acc := range pool.accounts {
		sealed, err := box.Seal("token-for-" + acc.Name)
		if err != nil {
			t.Fatalf("Seal failed: %v", err)
		}
		acc.EncryptedToken = sealed
	}

	src := fakeSettings{globalLimit: globalLimit}
	logger := slog.New(slog.DiscardHandler)
	f := &fixture{
		targets:  &fakeTargetRepo{},
		replied:  &fakeRepliedRepo{existing: map[string]bool{}},
		pool:     pool,
		gateway:  gateway,
		recorder: &captureRecorder{},
	}
	f.svc = NewService(
		f.targets,
		f.replied,
		pool,
		&fakeTemplates{template: &models.ReplyTemplate{ID: 1, Content: "nice post"}},
		gateway,
		ratelimit.New(src, logger),
		f.recorder,
		box,
		src,
		logger,
	)
	f.svc.now = func() time.Time { return time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC) }
	return f
}

func testTarget() *models.Target {
	return &models.Target{
		ID:                   1,
		TargetUserID:         "u1",
		Status:               models.TargetStatusActive,
		CheckIntervalMinutes: 15,
		FetchTweetCount:      10,
		MaxNewTweetsPerCheck: 3,
		LastSeenTweetID:      "100",
	}
}

func TestCheckTargetCapsAndAdvancesWatermark(t *testing.T) {
	gateway := &fakeGateway{tweets: []social.Tweet{
		{ID: "105"}, {ID: "104"}, {ID: "103"}, {ID: "102"}, {ID: "101"},
	}}
	pool := &fakePool{accounts: []*models.Account{{ID: 1, Name: "a", Status: models.AccountStatusActive}}}
	f := newFixture(t, gateway, pool, 100)

	target := testTarget()
	outcome, err := f.svc.CheckTarget(context.Background(), target)
	if err != nil {
		t.Fatalf("CheckTarget failed: %v", err)
	}

	if outcome.NewTweetsFound != 3 {
		t.Errorf("expected 3 new tweets processed, got %d", outcome.NewTweetsFound)
	}
	if outcome.RepliesSent != 3 {
		t.Errorf("expected 3 replies, got %d", outcome.RepliesSent)
	}

	want := []string{"101", "102", "103"}
	if len(gateway.replies) != len(want) {
		t.Fatalf("expected replies %v, got %v", want, gateway.replies)
	}
	for i := range want {
		if gateway.replies[i] != want[i] {
			t.Fatalf("expected oldest-first replies %v, got %v", want, gateway.replies)
		}
	}

	if target.LastSeenTweetID != "103" {
		t.Errorf("expected watermark 103, got %q", target.LastSeenTweetID)
	}
	if f.targets.updated == nil || f.targets.updated.LastSeenTweetID != "103" {
		t.Error("check state not persisted with new watermark")
	}
	if f.targets.updated.NextCheckAt == nil || !f.targets.updated.NextCheckAt.Equal(f.svc.now().Add(15*time.Minute)) {
		t.Error("next_check_at not advanced by interval")
	}
}

func TestCheckTargetNumericWatermarkComparison(t *testing.T) {
	gateway := &fakeGateway{tweets: []social.Tweet{{ID: "100"}, {ID: "99"}}}
	pool := &fakePool{accounts: []*models.Account{{ID: 1, Name: "a", Status: models.AccountStatusActive}}}
	f := newFixture(t, gateway, pool, 100)

	target := testTarget()
	target.LastSeenTweetID = "99"

	outcome, err := f.svc.CheckTarget(context.Background(), target)
	if err != nil {
		t.Fatalf("CheckTarget failed: %v", err)
	}
	if outcome.NewTweetsFound != 1 {
		t.Errorf("expected only tweet 100 to be new, got %d", outcome.NewTweetsFound)
	}
	if target.LastSeenTweetID != "100" {
		t.Errorf("expected watermark 100, got %q", target.LastSeenTweetID)
	}
}

func TestCheckTargetSkipsInactive(t *testing.T) {
	f := newFixture(t, &fakeGateway{}, &fakePool{}, 100)
	target := testTarget()
	target.Status = models.TargetStatusDisabled

	_, err := f.svc.CheckTarget(context.Background(), target)
	if !errors.Is(err, ErrTargetNotActive) {
		t.Errorf("expected ErrTargetNotActive, got %v", err)
	}
}

func TestCheckTargetFetchFailureCountsTowardDisable(t *testing.T) {
	gateway := &fakeGateway{fetchErr: errors.New("gateway down")}
	f := newFixture(t, gateway, &fakePool{}, 100)

	target := testTarget()
	target.ConsecutiveFailures = 4 // threshold default is 5

	if _, err := f.svc.CheckTarget(context.Background(), target); err == nil {
		t.Fatal("expected fetch error")
	}

	if target.ConsecutiveFailures != 5 {
		t.Errorf("expected 5 consecutive failures, got %d", target.ConsecutiveFailures)
	}
	if target.Status != models.TargetStatusDisabled {
		t.Errorf("expected target disabled at threshold, got %q", target.Status)
	}
	if target.NextCheckAt == nil {
		t.Error("schedule must advance even on failure")
	}
}

func TestCheckTargetRateLimitedDoesNotCountFailure(t *testing.T) {
	f := newFixture(t, &fakeGateway{}, &fakePool{}, 0) // limit 0 fails closed

	target := testTarget()
	_, err := f.svc.CheckTarget(context.Background(), target)
	if !errors.Is(err, ratelimit.ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
	if target.ConsecutiveFailures != 0 {
		t.Errorf("rate limiting must not feed the failure streak, got %d", target.ConsecutiveFailures)
	}
	if target.NextCheckAt == nil {
		t.Error("schedule must advance when rate limited")
	}
}

func TestReplyFanOutAcrossAccounts(t *testing.T) {
	gateway := &fakeGateway{tweets: []social.Tweet{{ID: "101"}}}
	pool := &fakePool{accounts: []*models.Account{
		{ID: 1, Name: "a", Status: models.AccountStatusActive},
		{ID: 2, Name: "b", Status: models.AccountStatusActive},
	}}
	f := newFixture(t, gateway, pool, 100)

	outcome, err := f.svc.CheckTarget(context.Background(), testTarget())
	if err != nil {
		t.Fatalf("CheckTarget failed: %v", err)
	}
	if outcome.RepliesSent != 2 {
		t.Errorf("expected one reply per account, got %d", outcome.RepliesSent)
	}
	if len(f.replied.inserted) != 2 {
		t.Errorf("expected 2 dedup rows, got %d", len(f.replied.inserted))
	}
	if len(pool.released) != len(pool.acquired) {
		t.Errorf("every acquire must be released: acquired=%d released=%d", len(pool.acquired), len(pool.released))
	}
}

func TestReplyFanOutSkipsAlreadyReplied(t *testing.T) {
	gateway := &fakeGateway{tweets: []social.Tweet{{ID: "101"}}}
	pool := &fakePool{accounts: []*models.Account{{ID: 1, Name: "a", Status: models.AccountStatusActive}}}
	f := newFixture(t, gateway, pool, 100)
	f.replied.existing["101"] = true

	outcome, err := f.svc.CheckTarget(context.Background(), testTarget())
	if err != nil {
		t.Fatalf("CheckTarget failed: %v", err)
	}
	if outcome.RepliesSent != 0 {
		t.Errorf("expected no replies for deduplicated tweet, got %d", outcome.RepliesSent)
	}
	if len(pool.acquired) != 0 {
		t.Error("account must not be acquired for a deduplicated tweet")
	}
}

func TestReplyFailureLoggedButCheckSucceeds(t *testing.T) {
	gateway := &fakeGateway{
		tweets:   []social.Tweet{{ID: "101"}},
		replyErr: errors.New("reply rejected"),
	}
	pool := &fakePool{accounts: []*models.Account{{ID: 1, Name: "a", Status: models.AccountStatusActive}}}
	f := newFixture(t, gateway, pool, 100)

	target := testTarget()
	outcome, err := f.svc.CheckTarget(context.Background(), target)
	if err != nil {
		t.Fatalf("CheckTarget failed: %v", err)
	}
	if outcome.RepliesSent != 0 {
		t.Errorf("expected 0 replies, got %d", outcome.RepliesSent)
	}
	if target.LastSeenTweetID != "101" {
		t.Errorf("reply failure must not block the watermark, got %q", target.LastSeenTweetID)
	}

	var failedReply bool
	for _, entry := range f.recorder.entries {
		if entry.LogType == models.LogTypeReply && entry.Result == models.LogResultFailed {
			failedReply = true
		}
	}
	if !failedReply {
		t.Error("expected a failed reply log entry")
	}
}

func TestCheckTargetFanOutErrorKeepsWatermark(t *testing.T) {
	gateway := &fakeGateway{tweets: []social.Tweet{{ID: "101"}}}
	pool := &fakePool{eligibleErr: errors.New("db connection lost")}
	f := newFixture(t, gateway, pool, 100)

	target := testTarget()
	_, err := f.svc.CheckTarget(context.Background(), target)
	if err == nil {
		t.Fatal("expected fan-out error to surface")
	}

	if target.LastSeenTweetID != "100" {
		t.Errorf("watermark must not advance past a failed tweet, got %q", target.LastSeenTweetID)
	}
	if target.LastCheckResult != models.CheckResultFailed {
		t.Errorf("last_check_result = %q, want %q", target.LastCheckResult, models.CheckResultFailed)
	}
	if target.ConsecutiveFailures != 0 {
		t.Errorf("infrastructure failure must not feed the failure streak, got %d", target.ConsecutiveFailures)
	}
	if target.NextCheckAt == nil {
		t.Error("next_check_at must still advance")
	}

	var failedCheck bool
	for _, entry := range f.recorder.entries {
		if entry.LogType == models.LogTypeMonitor && entry.Result == models.LogResultFailed {
			failedCheck = true
		}
	}
	if !failedCheck {
		t.Error("expected a failed monitor log entry")
	}
}

func TestCompareTweetIDs(t *testing.T) {
	cases := []struct {
		a, b string
		want int
	}{
		{"100", "99", 1},
		{"99", "100", -1},
		{"100", "100", 0},
		{"", "1", -1},
		{"1234567890123456789", "999", 1},
	}
	for _, tc := range cases {
		if got := compareTweetIDs(tc.a, tc.b); got != tc.want {
			t.Errorf("compareTweetIDs(%q, %q) = %d, want %d", tc.a, tc.b, got, tc.want)
		}
	}
}
