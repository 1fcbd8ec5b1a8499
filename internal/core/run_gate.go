package core

// run_gate.go limits how many sync runs may be active at once.
//
// The orchestrator holds a gate of capacity one: a trigger that finds the
// slot taken is rejected with ErrSyncInProgress instead of queueing. Shutdown
// uses WaitForDrain to let an active run settle before the process exits.

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrSyncInProgress is returned when a run is triggered while another is active.
var ErrSyncInProgress = errors.New("sync already in progress")

// drainPollInterval is how often WaitForDrain checks for active runs.
const drainPollInterval = 50 * time.Millisecond

// RunGate is a semaphore over active sync runs.
type RunGate struct {
	slots chan struct{}

	mu     sync.RWMutex
	active int
}

// NewRunGate allows at most capacity concurrent runs (minimum 1).
func NewRunGate(capacity int) *RunGate {
	if capacity <= 0 {
		capacity = 1
	}
	return &RunGate{slots: make(chan struct{}, capacity)}
}

// TryAcquire takes a slot without blocking.
func (g *RunGate) TryAcquire() bool {
	select {
	case g.slots <- struct{}{}:
		g.inc(1)
		return true
	default:
		return false
	}
}

// Release frees a slot taken by TryAcquire.
func (g *RunGate) Release() {
	g.inc(-1)
	<-g.slots
}

func (g *RunGate) inc(d int) {
	g.mu.Lock()
	g.active += d
	g.mu.Unlock()
}

// ActiveCount returns the number of runs holding a slot.
func (g *RunGate) ActiveCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.active
}

// WaitForDrain blocks until no run is active or ctx is done.
func (g *RunGate) WaitForDrain(ctx context.Context) error {
	if g.ActiveCount() == 0 {
		return nil
	}

	ticker := time.NewTicker(drainPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if g.ActiveCount() == 0 {
				return nil
			}
		}
	}
}

// RunGateStatus is a point-in-time view of the gate.
type RunGateStatus struct {
	Active    int `json:"active"`
	Available int `json:"available"`
	Capacity  int `json:"capacity"`
}

// Status reports the gate occupancy.
func (g *RunGate) Status() RunGateStatus {
	return RunGateStatus{
		Active:    g.ActiveCount(),
		Available: cap(g.slots) - len(g.slots),
		Capacity:  cap(g.slots),
	}
}
