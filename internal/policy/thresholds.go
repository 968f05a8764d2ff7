package policy

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/OldStager01/predictive-autoscaler/pkg/models"
)

// ChangeFunc observes an accepted threshold update.
type ChangeFunc func(previous, current models.PolicyThresholds, version uint64)

// ThresholdStore owns the live PolicyThresholds. Readers take a snapshot with
// Load and use it for a whole tick; writers replace the value wholesale.
type ThresholdStore struct {
	current atomic.Pointer[models.PolicyThresholds]
	version atomic.Uint64

	mu        sync.Mutex // serializes writers and guards listeners
	listeners []ChangeFunc
}

func NewThresholdStore(initial models.PolicyThresholds) (*ThresholdStore, error) {
	if err := initial.Validate(); err != nil {
		return nil, err
	}
	s := &ThresholdStore{}
	s.current.Store(&initial)
	return s, nil
}

func (s *ThresholdStore) Load() models.PolicyThresholds {
	return *s.current.Load()
}

// ErrStaleThresholds is returned by CompareAndSwap when another writer
// installed thresholds after the caller's snapshot.
var ErrStaleThresholds = errors.New("thresholds changed since snapshot")

// Snapshot returns the live thresholds together with their version.
func (s *ThresholdStore) Snapshot() (models.PolicyThresholds, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.current.Load(), s.version.Load()
}

// Swap installs next after validating it. On error the previous thresholds
// stay in effect.
func (s *ThresholdStore) Swap(next models.PolicyThresholds) error {
	return s.install(next, nil)
}

// CompareAndSwap installs next only while the store is still at version.
func (s *ThresholdStore) CompareAndSwap(version uint64, next models.PolicyThresholds) error {
	return s.install(next, &version)
}

func (s *ThresholdStore) install(next models.PolicyThresholds, expected *uint64) error {
	if err := next.Validate(); err != nil {
		return fmt.Errorf("threshold update rejected: %w", err)
	}

	s.mu.Lock()
	if expected != nil && *expected != s.version.Load() {
		current := s.version.Load()
		s.mu.Unlock()
		return fmt.Errorf("%w: expected version %d, now %d", ErrStaleThresholds, *expected, current)
	}
	previous := *s.current.Load()
	s.current.Store(&next)
	version := s.version.Add(1)
	listeners := append([]ChangeFunc(nil), s.listeners...)
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(previous, next, version)
	}
	return nil
}

// Version counts accepted updates.
func (s *ThresholdStore) Version() uint64 {
	return s.version.Load()
}

func (s *ThresholdStore) OnChange(fn ChangeFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}
