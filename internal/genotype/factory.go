package genotype

import (
	"fmt"
	"math"

	"github.com/google/uuid"
)

// Factory deep copies vectors. Clones get a fresh id and keep the parent's
// score until they are rescored.
type Factory struct{}

func (Factory) Factor(parent *Vector) (*Vector, error) {
	if parent == nil {
		return nil, fmt.Errorf("parent genome is required")
	}
	return cloneVector(parent), nil
}

func cloneVector(parent *Vector) *Vector {
	return &Vector{
		id:     uuid.NewString(),
		Genes:  append([]Gene(nil), parent.Genes...),
		Bounds: parent.Bounds,
		score:  parent.score,
		birth:  parent.birth,
	}
}

// Codec decodes a vector into its dense phenotype.
type Codec struct{}

func (Codec) Decode(genome *Vector) ([]float64, error) {
	if genome == nil {
		return nil, fmt.Errorf("genome is required")
	}
	return genome.Values(), nil
}

// Distance is the euclidean distance between two vectors, normalized by the
// bounds span and the dimension count so thresholds do not depend on either.
func Distance(a, b *Vector) float64 {
	av, bv := a.Values(), b.Values()
	n := max(len(av), len(bv))
	if n == 0 {
		return 0
	}
	span := a.Bounds.Span()
	if span <= 0 {
		span = 1
	}
	sum := 0.0
	for i := 0; i < n; i++ {
		var x, y float64
		if i < len(av) {
			x = av[i]
		}
		if i < len(bv) {
			y = bv[i]
		}
		d := (x - y) / span
		sum += d * d
	}
	return math.Sqrt(sum / float64(n))
}
