package outcomestore

import (
	"context"
	"sync"
	"time"
)

// MemStore keeps full outcome records in memory, pruned to the window on
// access. Suitable for tests and single-process deployments without redis.
type MemStore struct {
	lk       sync.Mutex
	outcomes map[string][]Outcome
	scores   map[string]int
}

func NewMemStore() *MemStore {
	return &MemStore{
		outcomes: make(map[string][]Outcome),
		scores:   make(map[string]int),
	}
}

var _ Store = (*MemStore)(nil)

func (s *MemStore) prune(userID string, now time.Time) []Outcome {
	cutoff := now.Add(-Window)
	kept := s.outcomes[userID][:0]
	for _, o := range s.outcomes[userID] {
		if o.At.After(cutoff) {
			kept = append(kept, o)
		}
	}
	s.outcomes[userID] = kept
	return kept
}

func (s *MemStore) RecordOutcome(ctx context.Context, userID string, o Outcome) error {
	s.lk.Lock()
	defer s.lk.Unlock()

	if o.At.IsZero() {
		o.At = time.Now()
	}
	s.prune(userID, time.Now())
	s.outcomes[userID] = append(s.outcomes[userID], o)
	return nil
}

func (s *MemStore) WindowCounts(ctx context.Context, userID string) (WindowCounts, error) {
	s.lk.Lock()
	defer s.lk.Unlock()

	counts := WindowCounts{ByType: make(map[string]int)}
	for _, o := range s.prune(userID, time.Now()) {
		if o.Success {
			counts.Successes++
		} else {
			counts.Failures++
		}
		counts.ByType[o.Type]++
	}
	return counts, nil
}

func (s *MemStore) DayCount(ctx context.Context, userID, actionType string) (int, error) {
	s.lk.Lock()
	defer s.lk.Unlock()

	today := dayBucket(time.Now())
	n := 0
	for _, o := range s.outcomes[userID] {
		if o.Success && o.Type == actionType && dayBucket(o.At) == today {
			n++
		}
	}
	return n, nil
}

func (s *MemStore) GetScore(ctx context.Context, userID string) (int, bool, error) {
	s.lk.Lock()
	defer s.lk.Unlock()

	v, ok := s.scores[userID]
	return v, ok, nil
}

func (s *MemStore) SetScore(ctx context.Context, userID string, score int) error {
	s.lk.Lock()
	defer s.lk.Unlock()

	s.scores[userID] = score
	return nil
}
