package scoring

import (
	"sync"

	"github.com/rewired-gh/predictle/internal/models"
)

// Tracker owns one mode's ScoreState. Record grades and updates in a single
// critical section, so a concurrent Snapshot never sees half an update.
type Tracker struct {
	mu     sync.Mutex
	policy Policy
	state  models.ScoreState
}

// NewTracker creates a Tracker starting from initial, typically the state
// loaded from the score store.
func NewTracker(policy Policy, initial models.ScoreState) *Tracker {
	if policy == nil {
		policy = Discrete{}
	}
	return &Tracker{policy: policy, state: initial}
}

// Policy returns the policy the tracker grades with.
func (t *Tracker) Policy() Policy {
	return t.policy
}

// Record grades guess against actual and folds the result into the state.
func (t *Tracker) Record(guess, actual int) (Result, models.ScoreState) {
	r := Grade(guess, actual, t.policy)

	t.mu.Lock()
	defer t.mu.Unlock()
	t.state = t.policy.Apply(t.state, r)
	return r, t.state
}

// Snapshot returns a copy of the current state.
func (t *Tracker) Snapshot() models.ScoreState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}
