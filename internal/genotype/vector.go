package genotype

import (
	"fmt"
	"math"
	"math/rand"
	"sort"

	"github.com/google/uuid"
	"golang.org/x/exp/constraints"
)

// Gene is one real-valued locus of a Vector genome.
type Gene struct {
	Locus int     `json:"locus"`
	Value float64 `json:"value"`
}

// Bounds limits every gene value.
type Bounds struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
}

func (b Bounds) Validate() error {
	if math.IsNaN(b.Lower) || math.IsNaN(b.Upper) || b.Lower >= b.Upper {
		return fmt.Errorf("invalid bounds [%g, %g]", b.Lower, b.Upper)
	}
	return nil
}

func (b Bounds) Span() float64 {
	return b.Upper - b.Lower
}

// Vector is a fixed-dimension real-valued genome. Genes are keyed by locus so
// operators may reorder them; Canonicalize restores locus order.
type Vector struct {
	id     string
	Genes  []Gene
	Bounds Bounds

	score float64
	birth int
}

func NewVector(values []float64, bounds Bounds) *Vector {
	genes := make([]Gene, len(values))
	for i, v := range values {
		genes[i] = Gene{Locus: i, Value: v}
	}
	return &Vector{
		id:     uuid.NewString(),
		Genes:  genes,
		Bounds: bounds,
		score:  math.NaN(),
	}
}

// RandomVector draws every gene uniformly inside bounds.
func RandomVector(rng *rand.Rand, dimensions int, bounds Bounds) *Vector {
	values := make([]float64, dimensions)
	for i := range values {
		values[i] = bounds.Lower + rng.Float64()*bounds.Span()
	}
	return NewVector(values, bounds)
}

// RandomPopulation builds size random vectors.
func RandomPopulation(rng *rand.Rand, size, dimensions int, bounds Bounds) ([]*Vector, error) {
	if size <= 0 {
		return nil, fmt.Errorf("population size must be > 0")
	}
	if dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be > 0")
	}
	if err := bounds.Validate(); err != nil {
		return nil, err
	}
	out := make([]*Vector, 0, size)
	for i := 0; i < size; i++ {
		out = append(out, RandomVector(rng, dimensions, bounds))
	}
	return out, nil
}

func (v *Vector) ID() string                        { return v.id }
func (v *Vector) Score() float64                    { return v.score }
func (v *Vector) SetScore(score float64)            { v.score = score }
func (v *Vector) BirthGeneration() int              { return v.birth }
func (v *Vector) SetBirthGeneration(generation int) { v.birth = generation }

// Canonicalize sorts genes by locus, drops duplicate loci keeping the first
// occurrence and clamps values into bounds. NaN values reset to the lower
// bound.
func (v *Vector) Canonicalize() {
	sort.SliceStable(v.Genes, func(i, j int) bool { return v.Genes[i].Locus < v.Genes[j].Locus })
	out := v.Genes[:0]
	for i, gene := range v.Genes {
		if i > 0 && gene.Locus == v.Genes[i-1].Locus {
			continue
		}
		if math.IsNaN(gene.Value) {
			gene.Value = v.Bounds.Lower
		}
		gene.Value = clamp(gene.Value, v.Bounds.Lower, v.Bounds.Upper)
		out = append(out, gene)
	}
	v.Genes = out
}

// Values returns the genes in locus order as a dense slice.
func (v *Vector) Values() []float64 {
	out := make([]float64, 0, len(v.Genes))
	sorted := append([]Gene(nil), v.Genes...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Locus < sorted[j].Locus })
	for _, gene := range sorted {
		out = append(out, gene.Value)
	}
	return out
}

// Restore rebuilds a vector with a known id, score and birth generation.
func Restore(id string, values []float64, bounds Bounds, score float64, birth int) *Vector {
	v := NewVector(values, bounds)
	v.id = id
	v.score = score
	v.birth = birth
	return v
}

func clamp[T constraints.Float](v, lo, hi T) T {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
