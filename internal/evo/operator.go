package evo

import (
	"context"
	"math/rand"

	"speciestrainer/internal/model"
)

// ScoreFunction evaluates a decoded candidate.
type ScoreFunction[M any] interface {
	Score(ctx context.Context, method M) (float64, error)
	ShouldMinimize() bool
}

// Codec decodes a genome into the method that gets scored and reported.
type Codec[G model.Genome, M any] interface {
	Decode(genome G) (M, error)
}

// Factory deep copies a genome. The clone must have an independent lifetime.
type Factory[G model.Genome] interface {
	Factor(parent G) (G, error)
}

// Operator produces exactly one child per call from ParentsNeeded parents.
// For single-parent operators parents[0] is already a private clone and may
// be modified in place and returned.
type Operator[G model.Genome] interface {
	Name() string
	ParentsNeeded() int
	PerformOperation(rng *rand.Rand, parents []G) (G, error)
}

// WeightedOperator pairs an operator with its relative pick probability.
type WeightedOperator[G model.Genome] struct {
	Operator Operator[G]
	Weight   float64
}

// Selection picks a member index of a non-empty species.
type Selection[G model.Genome] interface {
	Name() string
	PerformSelection(rng *rand.Rand, species *model.Species[G]) (int, error)
}

// Speciation partitions a flat genome list into species and assigns each
// species its offspring quota for the next generation.
type Speciation[G model.Genome] interface {
	Init(populationSize int, objective Objective) error
	PerformSpeciation(genomes []G) ([]*model.Species[G], error)
}

// pickOperator chooses a weighted operator whose parent requirement fits the
// member count. It returns nil when nothing fits.
func pickOperator[G model.Genome](rng *rand.Rand, ops []WeightedOperator[G], members int) Operator[G] {
	total := 0.0
	for _, item := range ops {
		if item.Weight > 0 && item.Operator.ParentsNeeded() <= members {
			total += item.Weight
		}
	}
	if total <= 0 {
		return nil
	}
	pick := rng.Float64() * total
	acc := 0.0
	var last Operator[G]
	for _, item := range ops {
		if item.Weight <= 0 || item.Operator.ParentsNeeded() > members {
			continue
		}
		acc += item.Weight
		last = item.Operator
		if pick <= acc {
			return item.Operator
		}
	}
	return last
}
