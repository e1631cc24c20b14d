package genotype

import (
	"fmt"
	"math/rand"
)

// GaussianMutation perturbs each gene with probability Rate by a normal draw
// scaled by Sigma times the bounds span.
type GaussianMutation struct {
	Rate  float64
	Sigma float64
}

func (GaussianMutation) Name() string {
	return "gaussian_mutation"
}

func (GaussianMutation) ParentsNeeded() int {
	return 1
}

func (m GaussianMutation) PerformOperation(rng *rand.Rand, parents []*Vector) (*Vector, error) {
	child, err := singleParent(parents)
	if err != nil {
		return nil, err
	}
	rate := m.Rate
	if rate <= 0 {
		rate = 1 / float64(max(len(child.Genes), 1))
	}
	sigma := m.Sigma
	if sigma <= 0 {
		sigma = 0.1
	}
	mutated := false
	for i := range child.Genes {
		if rng.Float64() >= rate {
			continue
		}
		child.Genes[i].Value += rng.NormFloat64() * sigma * child.Bounds.Span()
		mutated = true
	}
	if !mutated && len(child.Genes) > 0 {
		i := rng.Intn(len(child.Genes))
		child.Genes[i].Value += rng.NormFloat64() * sigma * child.Bounds.Span()
	}
	return child, nil
}

// ResetMutation replaces one random gene with a uniform draw inside bounds.
type ResetMutation struct{}

func (ResetMutation) Name() string {
	return "reset_mutation"
}

func (ResetMutation) ParentsNeeded() int {
	return 1
}

func (ResetMutation) PerformOperation(rng *rand.Rand, parents []*Vector) (*Vector, error) {
	child, err := singleParent(parents)
	if err != nil {
		return nil, err
	}
	if len(child.Genes) == 0 {
		return child, nil
	}
	i := rng.Intn(len(child.Genes))
	child.Genes[i].Value = child.Bounds.Lower + rng.Float64()*child.Bounds.Span()
	return child, nil
}

// UniformCrossover takes every locus from either parent with equal odds.
type UniformCrossover struct{}

func (UniformCrossover) Name() string {
	return "uniform_crossover"
}

func (UniformCrossover) ParentsNeeded() int {
	return 2
}

func (UniformCrossover) PerformOperation(rng *rand.Rand, parents []*Vector) (*Vector, error) {
	a, b, err := twoParents(parents)
	if err != nil {
		return nil, err
	}
	av, bv := a.Values(), b.Values()
	values := make([]float64, len(av))
	for i := range av {
		if rng.Intn(2) == 0 {
			values[i] = av[i]
		} else {
			values[i] = bv[i]
		}
	}
	return offspring(a, values), nil
}

// SinglePointCrossover joins a prefix of the first parent with the suffix of
// the second.
type SinglePointCrossover struct{}

func (SinglePointCrossover) Name() string {
	return "single_point_crossover"
}

func (SinglePointCrossover) ParentsNeeded() int {
	return 2
}

func (SinglePointCrossover) PerformOperation(rng *rand.Rand, parents []*Vector) (*Vector, error) {
	a, b, err := twoParents(parents)
	if err != nil {
		return nil, err
	}
	av, bv := a.Values(), b.Values()
	cut := 0
	if len(av) > 1 {
		cut = 1 + rng.Intn(len(av)-1)
	}
	values := make([]float64, 0, len(av))
	values = append(values, av[:cut]...)
	values = append(values, bv[cut:]...)
	return offspring(a, values), nil
}

// BlendCrossover draws each locus uniformly between the parents' values,
// widened by Alpha on both sides.
type BlendCrossover struct {
	Alpha float64
}

func (BlendCrossover) Name() string {
	return "blend_crossover"
}

func (BlendCrossover) ParentsNeeded() int {
	return 2
}

func (c BlendCrossover) PerformOperation(rng *rand.Rand, parents []*Vector) (*Vector, error) {
	a, b, err := twoParents(parents)
	if err != nil {
		return nil, err
	}
	av, bv := a.Values(), b.Values()
	values := make([]float64, len(av))
	for i := range av {
		lo, hi := min(av[i], bv[i]), max(av[i], bv[i])
		ext := (hi - lo) * c.Alpha
		values[i] = lo - ext + rng.Float64()*(hi-lo+2*ext)
	}
	return offspring(a, values), nil
}

func singleParent(parents []*Vector) (*Vector, error) {
	if len(parents) != 1 || parents[0] == nil {
		return nil, fmt.Errorf("expected exactly one parent, got %d", len(parents))
	}
	return parents[0], nil
}

func twoParents(parents []*Vector) (*Vector, *Vector, error) {
	if len(parents) != 2 || parents[0] == nil || parents[1] == nil {
		return nil, nil, fmt.Errorf("expected exactly two parents, got %d", len(parents))
	}
	if len(parents[0].Genes) != len(parents[1].Genes) {
		return nil, nil, fmt.Errorf("parent dimension mismatch: %d vs %d", len(parents[0].Genes), len(parents[1].Genes))
	}
	return parents[0], parents[1], nil
}

func offspring(template *Vector, values []float64) *Vector {
	return NewVector(values, template.Bounds)
}
