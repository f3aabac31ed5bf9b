package workflow

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// RunStore keeps recent run outcomes keyed by run ID. It is bounded in size
// and entries expire after ttl. Safe for concurrent use.
type RunStore struct {
	runs *expirable.LRU[string, *Outcome]
}

// NewRunStore creates a store holding at most size runs for ttl each.
func NewRunStore(size int, ttl time.Duration) *RunStore {
	if size <= 0 {
		size = 256
	}
	return &RunStore{runs: expirable.NewLRU[string, *Outcome](size, nil, ttl)}
}

// Put stores outcome under its run ID.
func (s *RunStore) Put(outcome *Outcome) {
	if outcome == nil || outcome.RunID == "" {
		return
	}
	s.runs.Add(outcome.RunID, outcome)
}

// Get returns the outcome of run id.
func (s *RunStore) Get(id string) (*Outcome, bool) {
	return s.runs.Get(id)
}

// Len returns the number of stored runs.
func (s *RunStore) Len() int {
	return s.runs.Len()
}
