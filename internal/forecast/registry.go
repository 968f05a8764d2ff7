package forecast

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

var ErrUnknownStrategy = errors.New("unknown strategy")

// Factory builds a strategy from its numeric parameters.
type Factory func(params map[string]float64) (Strategy, error)

// DefaultStrategies is the ensemble used when configuration names none.
var DefaultStrategies = []string{"linear", "holt", "moving_average", "seasonal"}

// Registry resolves configured strategy names to implementations.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
	params    map[string]map[string]float64
}

func NewRegistry() *Registry {
	r := &Registry{
		factories: make(map[string]Factory),
		params:    make(map[string]map[string]float64),
	}

	r.Register("linear", func(p map[string]float64) (Strategy, error) {
		return LinearTrend{Window: int(p["window"])}, nil
	})
	r.Register("holt", func(p map[string]float64) (Strategy, error) {
		return Holt{Alpha: p["alpha"], Beta: p["beta"]}, nil
	})
	r.Register("moving_average", func(p map[string]float64) (Strategy, error) {
		return MovingAverage{Window: int(p["window"])}, nil
	})
	r.Register("seasonal", func(p map[string]float64) (Strategy, error) {
		return SeasonalNaive{Season: int(p["season"])}, nil
	})
	r.Register("trend", func(p map[string]float64) (Strategy, error) {
		return HalfWindowTrend{Window: int(p["window"])}, nil
	})

	return r
}

func (r *Registry) Register(name string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = factory
}

// Configure sets the parameters passed to the named factory on Build.
func (r *Registry) Configure(name string, params map[string]float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.params[name] = params
}

func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Build resolves every name, failing on the first unknown one. Duplicate names
// are built once.
func (r *Registry) Build(names []string) ([]Strategy, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]bool, len(names))
	strategies := make([]Strategy, 0, len(names))
	for _, name := range names {
		if seen[name] {
			continue
		}
		seen[name] = true

		factory, ok := r.factories[name]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, name)
		}
		s, err := factory(r.params[name])
		if err != nil {
			return nil, fmt.Errorf("failed to build strategy %q: %w", name, err)
		}
		strategies = append(strategies, s)
	}
	return strategies, nil
}
