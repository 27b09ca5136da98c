package selector

import (
	"testing"

	"github.com/Past-Tang/x/internal/models"
)

func makeAccounts(weights ...int) []*models.Account {
	accounts := make([]*models.Account, len(weights))
	for i, w := range weights {
		accounts[i] = &models.Account{ID: int64(i + 1), Weight: w}
	}
	return accounts
}

func TestParseStrategy(t *testing.T) {
	tests := []struct {
		in      string
		want    Strategy
		wantErr bool
	}{
		{"round_robin", StrategyRoundRobin, false},
		{"random", StrategyRandom, false},
		{"weighted", StrategyWeighted, false},
		{"", StrategyRoundRobin, false},
		{"first_come", "", true},
	}

	for _, tt := range tests {
		got, err := ParseStrategy(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseStrategy(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseStrategy(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSelectEmptySet(t *testing.T) {
	s := New()
	for _, strategy := range []Strategy{StrategyRoundRobin, StrategyRandom, StrategyWeighted} {
		if got := s.Select(strategy, "ctx", nil); got != nil {
			t.Errorf("Select(%s) on empty set = %v, want nil", strategy, got)
		}
	}
}

func TestRoundRobinVisitsEveryAccountOncePerCycle(t *testing.T) {
	s := New()
	accounts := makeAccounts(1, 1, 1, 1, 1)

	for cycle := 0; cycle < 3; cycle++ {
		seen := map[int64]int{}
		for i := 0; i < len(accounts); i++ {
			picked := s.Select(StrategyRoundRobin, "ctx", accounts)
			seen[picked.ID]++
		}
		for _, acc := range accounts {
			if seen[acc.ID] != 1 {
				t.Fatalf("cycle %d: account %d selected %d times, want 1", cycle, acc.ID, seen[acc.ID])
			}
		}
	}
}

func TestRoundRobinCursorIsPerContext(t *testing.T) {
	s := New()
	accounts := makeAccounts(1, 1, 1)

	first := s.Select(StrategyRoundRobin, "job_1", accounts)
	other := s.Select(StrategyRoundRobin, "job_2", accounts)

	if first.ID != other.ID {
		t.Errorf("fresh contexts should both start at the first account, got %d and %d", first.ID, other.ID)
	}
}

func TestRoundRobinSurvivesSetShrinking(t *testing.T) {
	s := New()
	accounts := makeAccounts(1, 1, 1, 1, 1)

	// Push the cursor near the end, then shrink the set. The cursor
	// must wrap via modulo instead of indexing out of range.
	for i := 0; i < 4; i++ {
		s.Select(StrategyRoundRobin, "ctx", accounts)
	}

	shrunk := accounts[:2]
	picked := s.Select(StrategyRoundRobin, "ctx", shrunk)
	if picked == nil {
		t.Fatal("expected a selection from the shrunk set")
	}
	if picked.ID != shrunk[0].ID && picked.ID != shrunk[1].ID {
		t.Errorf("selected account %d is not in the shrunk set", picked.ID)
	}
}

func TestWeightedConvergesToWeightRatios(t *testing.T) {
	s := New()
	accounts := makeAccounts(1, 3, 6)

	const trials = 30000
	counts := map[int64]int{}
	for i := 0; i < trials; i++ {
		counts[s.Select(StrategyWeighted, "", accounts).ID]++
	}

	// Expected shares: 10%, 30%, 60% with a 3-point tolerance.
	expected := map[int64]float64{1: 0.1, 2: 0.3, 3: 0.6}
	for id, want := range expected {
		got := float64(counts[id]) / trials
		if got < want-0.03 || got > want+0.03 {
			t.Errorf("account %d share = %.3f, want %.3f ± 0.03", id, got, want)
		}
	}
}

func TestWeightedIgnoresNonPositiveWeights(t *testing.T) {
	s := New()
	accounts := makeAccounts(0, 5, 0)

	for i := 0; i < 100; i++ {
		if picked := s.Select(StrategyWeighted, "", accounts); picked.ID != 2 {
			t.Fatalf("expected only the weighted account, got %d", picked.ID)
		}
	}
}

func TestWeightedAllZeroFallsBackToUniform(t *testing.T) {
	s := New()
	accounts := makeAccounts(0, 0)

	seen := map[int64]bool{}
	for i := 0; i < 200; i++ {
		seen[s.Select(StrategyWeighted, "", accounts).ID] = true
	}
	if len(seen) != 2 {
		t.Errorf("uniform fallback should reach every account, saw %d of 2", len(seen))
	}
}

func TestRandomSelectsFromSet(t *testing.T) {
	s := New()
	accounts := makeAccounts(1, 1, 1)

	seen := map[int64]bool{}
	for i := 0; i < 300; i++ {
		picked := s.Select(StrategyRandom, "", accounts)
		if picked.ID < 1 || picked.ID > 3 {
			t.Fatalf("selected unknown account %d", picked.ID)
		}
		seen[picked.ID] = true
	}
	if len(seen) != 3 {
		t.Errorf("random selection should reach every account eventually, saw %d of 3", len(seen))
	}
}
