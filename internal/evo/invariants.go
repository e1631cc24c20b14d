package evo

import (
	"fmt"

	"speciestrainer/internal/model"
)

const (
	InvariantPopulationSize = "population_size"
	InvariantEliteRetained  = "elite_retained"
	InvariantMonotonicBest  = "monotonic_best"
	InvariantUniqueMembers  = "unique_members"
)

type generationOutcome[G model.Genome] struct {
	generation    int
	populationLen int
	next          []G
	oldBest       G
	hasOldBest    bool
	best          G
	hasBest       bool
}

// checkInvariants validates a finished generation before it is committed.
func checkInvariants[G model.Genome](objective Objective, out generationOutcome[G]) error {
	if len(out.next) != out.populationLen {
		return &InvariantError{
			Invariant:  InvariantPopulationSize,
			Generation: out.generation,
			Detail:     fmt.Sprintf("got=%d want=%d", len(out.next), out.populationLen),
		}
	}

	seen := make(map[G]struct{}, len(out.next))
	for i, genome := range out.next {
		if _, ok := seen[genome]; ok {
			return &InvariantError{
				Invariant:  InvariantUniqueMembers,
				Generation: out.generation,
				Detail:     fmt.Sprintf("genome %s appears more than once (slot %d)", genome.ID(), i),
			}
		}
		seen[genome] = struct{}{}
	}

	if !out.hasOldBest {
		return nil
	}
	if _, ok := seen[out.oldBest]; !ok {
		return &InvariantError{
			Invariant:  InvariantEliteRetained,
			Generation: out.generation,
			Detail:     fmt.Sprintf("previous best genome %s missing from next generation", out.oldBest.ID()),
		}
	}
	if !out.hasBest || objective.IsBetter(out.oldBest.Score(), out.best.Score()) {
		after := objective.WorstScore()
		if out.hasBest {
			after = out.best.Score()
		}
		return &InvariantError{
			Invariant:  InvariantMonotonicBest,
			Generation: out.generation,
			Detail:     fmt.Sprintf("best score regressed from %g to %g", out.oldBest.Score(), after),
		}
	}
	return nil
}
