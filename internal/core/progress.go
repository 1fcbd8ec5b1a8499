package core

import "sync"

// Tracker counts settled rows for the active run. Completed never decreases
// within a run and never exceeds Total.
type Tracker struct {
	mu       sync.Mutex
	state    ProgressState
	onChange func(ProgressState)
}

// NewTracker returns a tracker that reports every change to onChange.
// onChange may be nil.
func NewTracker(onChange func(ProgressState)) *Tracker {
	return &Tracker{onChange: onChange}
}

// Reset starts a new count against total.
func (t *Tracker) Reset(total int) {
	if total < 0 {
		total = 0
	}
	t.set(func(s *ProgressState) bool {
		*s = ProgressState{Total: total}
		return true
	})
}

// Increment records one more settled row. It is a no-op once Completed
// has reached Total.
func (t *Tracker) Increment() {
	t.set(func(s *ProgressState) bool {
		if s.Completed >= s.Total {
			return false
		}
		s.Completed++
		return true
	})
}

// Snapshot returns the current counts.
func (t *Tracker) Snapshot() ProgressState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

func (t *Tracker) set(mutate func(*ProgressState) bool) {
	t.mu.Lock()
	changed := mutate(&t.state)
	snap := t.state
	t.mu.Unlock()

	if changed && t.onChange != nil {
		t.onChange(snap)
	}
}
