package evo

import (
	"context"
	"fmt"
	"math"
	"math/rand"

	"github.com/sourcegraph/conc/panics"

	"speciestrainer/internal/model"
)

// speciesWorker produces one species' offspring quota for one generation.
// It owns its rng and parent buffer; the species is read-only here.
type speciesWorker[G model.Genome, M any] struct {
	trainer    *Trainer[G, M]
	species    *model.Species[G]
	rng        *rand.Rand
	oldBest    G
	hasOldBest bool
	generation int
	errs       *errorSlot

	parents []G
}

// run never panics or returns an error past its boundary; failures go to
// the shared error slot.
func (w *speciesWorker[G, M]) run(ctx context.Context) {
	var catcher panics.Catcher
	catcher.Try(func() {
		if err := w.reproduce(ctx); err != nil {
			w.errs.set(&WorkerError{SpeciesKey: w.species.Key, Err: err})
		}
	})
	if recovered := catcher.Recovered(); recovered != nil {
		w.errs.set(&WorkerError{SpeciesKey: w.species.Key, Err: recovered.AsError()})
	}
}

func (w *speciesWorker[G, M]) reproduce(ctx context.Context) error {
	cfg := w.trainer.cfg
	members := w.species.Members
	if len(members) == 0 {
		return nil
	}
	remaining := int(math.Round(w.species.OffspringCount))

	if len(members) > cfg.EliteThreshold {
		eliteCount := min(remaining, idealEliteCount(len(members), cfg.SurvivalRate))
		for i := 0; i < eliteCount; i++ {
			elite := members[i]
			if w.hasOldBest && elite == w.oldBest {
				continue
			}
			remaining--
			if w.trainer.addChild(elite) == PoolFull {
				return nil
			}
		}
	}

	skipped := 0
	for remaining > 0 {
		child, ok, err := w.spawn(ctx)
		if err != nil {
			return err
		}
		if !ok {
			skipped++
			if cfg.StallLimit > 0 && skipped >= cfg.StallLimit {
				return fmt.Errorf("%w: %d consecutive attempts without a child", ErrReproductionStalled, skipped)
			}
			continue
		}
		skipped = 0
		remaining--
		if w.trainer.addChild(child) == PoolFull {
			return nil
		}
	}
	return nil
}

// spawn makes one reproduction attempt. ok is false when the attempt was
// skipped because no distinct second parent could be found.
func (w *speciesWorker[G, M]) spawn(ctx context.Context) (G, bool, error) {
	var zero G
	cfg := w.trainer.cfg
	members := w.species.Members

	op := pickOperator(w.rng, cfg.Operators, len(members))
	first, err := w.selectMember()
	if err != nil {
		return zero, false, err
	}

	var child G
	switch {
	case op != nil && op.ParentsNeeded() >= 2:
		second, ok, err := w.selectDistinctParent(first)
		if err != nil {
			return zero, false, err
		}
		if !ok {
			return zero, false, nil
		}
		w.parents = append(w.parents[:0], members[first], members[second])
		child, err = op.PerformOperation(w.rng, w.parents)
		if err != nil {
			return zero, false, fmt.Errorf("operator %s: %w", op.Name(), err)
		}
	default:
		if op == nil {
			op = cfg.FallbackMutation
		}
		clone, err := cfg.Factory.Factor(members[first])
		if err != nil {
			return zero, false, fmt.Errorf("clone genome %s: %w", members[first].ID(), err)
		}
		child = clone
		if op != nil {
			w.parents = append(w.parents[:0], clone)
			child, err = op.PerformOperation(w.rng, w.parents)
			if err != nil {
				return zero, false, fmt.Errorf("operator %s: %w", op.Name(), err)
			}
		}
	}

	child.SetBirthGeneration(w.generation)
	child.Canonicalize()
	if err := w.trainer.scoreGenome(ctx, child); err != nil {
		return zero, false, err
	}
	return child, true, nil
}

func (w *speciesWorker[G, M]) selectMember() (int, error) {
	idx, err := w.trainer.cfg.Selection.PerformSelection(w.rng, w.species)
	if err != nil {
		return 0, fmt.Errorf("selection %s: %w", w.trainer.cfg.Selection.Name(), err)
	}
	if idx < 0 || idx >= len(w.species.Members) {
		return 0, fmt.Errorf("selection %s returned index %d for species of size %d", w.trainer.cfg.Selection.Name(), idx, len(w.species.Members))
	}
	return idx, nil
}

// selectDistinctParent draws a second parent, retrying up to
// MaxParentRetries times while it matches the first.
func (w *speciesWorker[G, M]) selectDistinctParent(first int) (int, bool, error) {
	members := w.species.Members
	second, err := w.selectMember()
	if err != nil {
		return 0, false, err
	}
	for retries := 0; members[second] == members[first] && retries < w.trainer.cfg.MaxParentRetries; retries++ {
		second, err = w.selectMember()
		if err != nil {
			return 0, false, err
		}
	}
	if members[second] == members[first] {
		return 0, false, nil
	}
	return second, true, nil
}

func idealEliteCount(members int, survivalRate float64) int {
	if survivalRate <= 0 {
		return 0
	}
	return int(math.Round(float64(members) * survivalRate))
}
