package ledger

import (
	"context"
	"sync"

	"github.com/OldStager01/predictive-autoscaler/pkg/models"
)

// MemoryStore keeps entries for the lifetime of the process only.
type MemoryStore struct {
	mu      sync.Mutex
	entries []models.ScalingDecision
	index   map[string]int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{index: make(map[string]int)}
}

func (s *MemoryStore) Save(_ context.Context, d models.ScalingDecision) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if pos, ok := s.index[d.ID]; ok {
		s.entries[pos] = cloneDecision(d)
		return nil
	}
	s.index[d.ID] = len(s.entries)
	s.entries = append(s.entries, cloneDecision(d))
	return nil
}

func (s *MemoryStore) Update(_ context.Context, d models.ScalingDecision) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	pos, ok := s.index[d.ID]
	if !ok {
		return ErrNotFound
	}
	s.entries[pos] = cloneDecision(d)
	return nil
}

func (s *MemoryStore) Load(_ context.Context) ([]models.ScalingDecision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.ScalingDecision, len(s.entries))
	for i, d := range s.entries {
		out[i] = cloneDecision(d)
	}
	return out, nil
}

func (s *MemoryStore) Close() error {
	return nil
}
