// Package selector implements the account-selection strategies used by
// the reply and posting pipelines.
package selector

import (
	"fmt"
	"math/rand"
	"sync"

	"github.com/Past-Tang/x/internal/models"
)

// Strategy is the algorithm used to pick an account from the eligible set.
type Strategy string

const (
	StrategyRoundRobin Strategy = "round_robin"
	StrategyRandom     Strategy = "random"
	StrategyWeighted   Strategy = "weighted"
)

// ParseStrategy validates a strategy name, defaulting empty input to
// round_robin.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case StrategyRoundRobin, StrategyRandom, StrategyWeighted:
		return Strategy(s), nil
	case "":
		return StrategyRoundRobin, nil
	default:
		return "", fmt.Errorf("unknown account strategy: %s", s)
	}
}

// Selector picks one account from an eligible set. Round-robin cursors
// are tracked per context key (e.g. one per post job, one for replies)
// and survive across calls; the cursor is reduced modulo the current
// set size on every use so pool changes never strand it.
type Selector struct {
	mu      sync.Mutex
	cursors map[string]int
	randInt func(n int) int
}

// New constructs a Selector.
func New() *Selector {
	return &Selector{
		cursors: make(map[string]int),
		randInt: rand.Intn,
	}
}

// Select picks one account using the given strategy. Returns nil when
// the eligible set is empty, regardless of strategy.
func (s *Selector) Select(strategy Strategy, context string, accounts []*models.Account) *models.Account {
	if len(accounts) == 0 {
		return nil
	}

	switch strategy {
	case StrategyRandom:
		return s.selectRandom(accounts)
	case StrategyWeighted:
		return s.selectWeighted(accounts)
	default:
		return s.selectRoundRobin(context, accounts)
	}
}

func (s *Selector) selectRoundRobin(context string, accounts []*models.Account) *models.Account {
	s.mu.Lock()
	defer s.mu.Unlock()

	cursor := s.cursors[context] % len(accounts)
	selected := accounts[cursor]
	s.cursors[context] = (cursor + 1) % len(accounts)
	return selected
}

func (s *Selector) selectRandom(accounts []*models.Account) *models.Account {
	s.mu.Lock()
	defer s.mu.Unlock()

	return accounts[s.randInt(len(accounts))]
}

// selectWeighted draws proportionally to account weight using a
// cumulative-weight walk. Non-positive weights contribute nothing; if
// every weight is non-positive the pick degrades to uniform.
func (s *Selector) selectWeighted(accounts []*models.Account) *models.Account {
	total := 0
	for _, acc := range accounts {
		if acc.Weight > 0 {
			total += acc.Weight
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if total <= 0 {
		return accounts[s.randInt(len(accounts))]
	}

	pick := s.randInt(total)
	cumulative := 0
	for _, acc := range accounts {
		if acc.Weight <= 0 {
			continue
		}
		cumulative += acc.Weight
		if pick < cumulative {
			return acc
		}
	}
	return accounts[len(accounts)-1]
}
