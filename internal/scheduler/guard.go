package scheduler

import (
	"errors"
	"sync"
)

// ErrAlreadyRunning is returned when a manual trigger races an
// in-flight run of the same entity. The losing trigger is a no-op.
var ErrAlreadyRunning = errors.New("run already in progress")

// runGuard enforces at-most-one active run per entity id. Scheduled
// ticks and manual run-now requests go through the same guard, so
// whichever trigger loses the race simply does nothing.
type runGuard struct {
	mu      sync.Mutex
	running map[int64]bool
}

func newRunGuard() *runGuard {
	return &runGuard{running: make(map[int64]bool)}
}

// tryBegin claims the entity for a run. It returns false when a run is
// already in flight.
func (g *runGuard) tryBegin(id int64) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.running[id] {
		return false
	}
	g.running[id] = true
	return true
}

func (g *runGuard) end(id int64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.running, id)
}
