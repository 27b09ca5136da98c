// Package ratelimit enforces the global per-action-kind quota shared by
// every pipeline run. Per-account hourly quotas live on the account row
// and are enforced atomically by the account pool when it acquires.
package ratelimit

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/Past-Tang/x/internal/settings"
)

// ActionKind classifies external platform calls for rate limiting.
type ActionKind string

const (
	ActionMonitor ActionKind = "monitor"
	ActionReply   ActionKind = "reply"
	ActionPost    ActionKind = "post"
)

// ErrRateLimited is returned when a quota would be exceeded.
var ErrRateLimited = errors.New("rate limited")

// window is the span of the global sliding quota.
const window = time.Minute

// Limiter tracks one sliding window of call timestamps per action kind.
// The limit is resolved from settings on every check so dashboard edits
// apply immediately.
type Limiter struct {
	settings settings.Source
	logger   *slog.Logger
	now      func() time.Time

	// OnRejected, when set, is invoked for every rejected call. Used to
	// feed the metrics collector. Set it before the limiter is shared.
	OnRejected func(kind ActionKind)

	mu     sync.Mutex
	events map[ActionKind][]time.Time
}

// New constructs a Limiter.
func New(src settings.Source, logger *slog.Logger) *Limiter {
	return &Limiter{
		settings: src,
		logger:   logger,
		now:      time.Now,
		events:   make(map[ActionKind][]time.Time),
	}
}

// CheckAndConsume admits one call of the given kind or returns
// ErrRateLimited. Admission and recording are a single step under the
// lock so concurrent runs cannot both squeeze into the last slot.
func (l *Limiter) CheckAndConsume(ctx context.Context, kind ActionKind) error {
	limit := l.settings.Int(ctx, settings.KeyGlobalRateLimit, settings.DefaultGlobalRateLimit)
	if limit <= 0 {
		// A zero or negative limit means the operator has paused all
		// external calls. Fail closed.
		l.rejected(kind)
		return ErrRateLimited
	}

	now := l.now()
	cutoff := now.Add(-window)

	l.mu.Lock()
	defer l.mu.Unlock()

	recent := pruneBefore(l.events[kind], cutoff)
	if len(recent) >= limit {
		l.events[kind] = recent
		l.logger.Debug("global rate limit hit", "kind", string(kind), "limit", limit)
		l.rejected(kind)
		return ErrRateLimited
	}

	l.events[kind] = append(recent, now)
	return nil
}

// Usage reports how many calls of the kind are inside the current
// window, for the health surface.
func (l *Limiter) Usage(kind ActionKind) int {
	cutoff := l.now().Add(-window)

	l.mu.Lock()
	defer l.mu.Unlock()

	l.events[kind] = pruneBefore(l.events[kind], cutoff)
	return len(l.events[kind])
}

func (l *Limiter) rejected(kind ActionKind) {
	if l.OnRejected != nil {
		l.OnRejected(kind)
	}
}

func pruneBefore(events []time.Time, cutoff time.Time) []time.Time {
	idx := 0
	for idx < len(events) && !events[idx].After(cutoff) {
		idx++
	}
	if idx == 0 {
		return events
	}
	return append([]time.Time(nil), events[idx:]...)
}
