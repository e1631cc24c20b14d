package scape

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Scape scores a decoded real-valued candidate. Every scape implements the
// trainer's score function capability directly.
type Scape interface {
	Name() string
	Score(ctx context.Context, phenotype []float64) (float64, error)
	ShouldMinimize() bool
	// DefaultBounds is the search box candidates are drawn from.
	DefaultBounds() (lower, upper float64)
}

var registry = struct {
	mu sync.RWMutex
	m  map[string]Scape
}{
	m: map[string]Scape{},
}

func init() {
	for _, s := range []Scape{
		SphereScape{},
		RastriginScape{},
		RosenbrockScape{},
		AckleyScape{},
		RegressionMimicScape{},
	} {
		if err := Register(s); err != nil {
			panic(err)
		}
	}
}

// Register adds a scape under its name.
func Register(s Scape) error {
	if s == nil {
		return fmt.Errorf("scape is required")
	}
	registry.mu.Lock()
	defer registry.mu.Unlock()
	if _, exists := registry.m[s.Name()]; exists {
		return fmt.Errorf("scape already registered: %s", s.Name())
	}
	registry.m[s.Name()] = s
	return nil
}

// Resolve looks up a registered scape by name or alias.
func Resolve(name string) (Scape, error) {
	canonical := NormalizeName(name)
	registry.mu.RLock()
	defer registry.mu.RUnlock()
	s, ok := registry.m[canonical]
	if !ok {
		return nil, fmt.Errorf("unknown scape: %s", name)
	}
	return s, nil
}

// Names lists registered scapes in sorted order.
func Names() []string {
	registry.mu.RLock()
	defer registry.mu.RUnlock()
	names := make([]string, 0, len(registry.m))
	for name := range registry.m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func requireDimensions(name string, phenotype []float64, minimum int) error {
	if len(phenotype) < minimum {
		return fmt.Errorf("%s requires at least %d dimensions, got %d", name, minimum, len(phenotype))
	}
	return nil
}
