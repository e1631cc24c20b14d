package evo

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"speciestrainer/internal/model"
)

func TestNewTrainerValidatesConfig(t *testing.T) {
	base := func() Config[*testGenome, float64] {
		return Config[*testGenome, float64]{
			PopulationSize: 4,
			Score:          testScore{},
			Codec:          testCodec{},
			Factory:        testFactory{},
			Selection:      TournamentSelection[*testGenome]{},
			Operators:      []WeightedOperator[*testGenome]{{Operator: nudgeMutation{}, Weight: 1}},
			Speciation:     &chunkSpeciation{count: 1},
		}
	}
	cases := []struct {
		name   string
		mutate func(*Config[*testGenome, float64])
		size   int
	}{
		{name: "missing score", mutate: func(c *Config[*testGenome, float64]) { c.Score = nil }},
		{name: "missing speciation", mutate: func(c *Config[*testGenome, float64]) { c.Speciation = nil }},
		{name: "no operators", mutate: func(c *Config[*testGenome, float64]) { c.Operators = nil }},
		{name: "zero weights", mutate: func(c *Config[*testGenome, float64]) { c.Operators[0].Weight = 0 }},
		{name: "fallback needs two parents", mutate: func(c *Config[*testGenome, float64]) { c.FallbackMutation = averageCrossover{} }},
		{name: "population too small", mutate: func(c *Config[*testGenome, float64]) { c.PopulationSize = 1 }, size: 1},
		{name: "initial mismatch", mutate: func(c *Config[*testGenome, float64]) {}, size: 3},
		{name: "negative threads", mutate: func(c *Config[*testGenome, float64]) { c.Threads = -1 }},
		{name: "survival rate above one", mutate: func(c *Config[*testGenome, float64]) { c.SurvivalRate = 1.5 }},
		{name: "survival rate nan", mutate: func(c *Config[*testGenome, float64]) { c.SurvivalRate = math.NaN() }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := base()
			tc.mutate(&cfg)
			size := tc.size
			if size == 0 {
				size = 4
			}
			if _, err := NewTrainer(cfg, testPopulation(size)); err == nil {
				t.Fatalf("expected config error for %s", tc.name)
			}
		})
	}
}

func TestTrainerErrorBeforeInitialization(t *testing.T) {
	minimizer, _ := newTestTrainer(t, 10)
	if got := minimizer.Error(); !math.IsInf(got, 1) {
		t.Fatalf("expected +Inf before initialization, got %f", got)
	}
	maximizer, _ := newTestTrainer(t, 10, func(c *Config[*testGenome, float64]) {
		c.Score = testScore{minimize: false}
	})
	if got := maximizer.Error(); !math.IsInf(got, -1) {
		t.Fatalf("expected -Inf before initialization, got %f", got)
	}
	if _, err := minimizer.Method(); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("expected ErrNotInitialized, got %v", err)
	}
	if minimizer.IsTrainingDone() {
		t.Fatal("trainer must never report training done")
	}
}

func TestTrainerInitializeScoresAndSpeciates(t *testing.T) {
	trainer, initial := newTestTrainer(t, 20)
	require.NoError(t, trainer.Initialize(context.Background()))

	for _, g := range initial {
		require.False(t, math.IsNaN(g.Score()), "genome %s was not scored", g.ID())
	}
	best, ok := trainer.BestGenome()
	require.True(t, ok)
	require.Equal(t, 0.0, best.Score())
	require.Equal(t, 0.0, trainer.Error())
	require.Len(t, trainer.Species(), 5)

	method, err := trainer.Method()
	require.NoError(t, err)
	require.Equal(t, 0.0, method)

	require.NoError(t, trainer.Initialize(context.Background()))
	require.Equal(t, 1, trainer.cfg.Speciation.(*chunkSpeciation).calls)
}

func TestTrainerGenerationInvariantsHold(t *testing.T) {
	for _, minimize := range []bool{true, false} {
		trainer, _ := newTestTrainer(t, 30, func(c *Config[*testGenome, float64]) {
			c.Score = testScore{minimize: minimize}
		})
		ctx := context.Background()
		require.NoError(t, trainer.Initialize(ctx))

		for gen := 1; gen <= 15; gen++ {
			before, _ := trainer.BestGenome()
			beforeScore := trainer.Error()

			require.NoError(t, trainer.Iteration(ctx), "generation %d", gen)

			population := trainer.Population()
			require.Len(t, population, 30)
			require.Equal(t, gen, trainer.Generation())

			seen := make(map[*testGenome]struct{}, len(population))
			for _, g := range population {
				_, dup := seen[g]
				require.False(t, dup, "genome %s duplicated", g.ID())
				seen[g] = struct{}{}
			}

			after := trainer.Error()
			require.False(t, trainer.Objective().IsBetter(beforeScore, after), "best regressed %f -> %f", beforeScore, after)
			if !trainer.Objective().IsBetter(after, beforeScore) {
				require.True(t, containsGenome(population, before), "previous best lost at generation %d", gen)
			}
		}
		require.Len(t, trainer.BestHistory(), 15)
		require.Len(t, trainer.Diagnostics(), 15)
		require.Len(t, trainer.SpeciesHistory(), 15)
	}
}

func TestTrainerInvariantsHoldForOneAndManyThreads(t *testing.T) {
	for _, threads := range []int{1, 8} {
		trainer, _ := newTestTrainer(t, 40, func(c *Config[*testGenome, float64]) {
			c.Threads = threads
			c.Seed = 7
		})
		require.NoError(t, trainer.IterationN(context.Background(), 10), "threads=%d", threads)
		require.Len(t, trainer.Population(), 40)
		require.Equal(t, threads, trainer.ThreadCount())
		require.GreaterOrEqual(t, trainer.EffectiveThreads(), 1)

		history := trainer.BestHistory()
		for i := 1; i < len(history); i++ {
			require.LessOrEqual(t, history[i], history[i-1], "threads=%d", threads)
		}
	}
}

func TestTrainerSingleThreadedRunsAreReproducible(t *testing.T) {
	run := func() []float64 {
		trainer, _ := newTestTrainer(t, 25, func(c *Config[*testGenome, float64]) {
			c.Threads = 1
			c.Seed = 99
		})
		require.NoError(t, trainer.IterationN(context.Background(), 8))
		return sortedValues(trainer.Population())
	}
	require.Equal(t, run(), run())
}

func TestTrainerScenarioFiveSpeciesOfTen(t *testing.T) {
	trainer, initial := newTestTrainer(t, 50, func(c *Config[*testGenome, float64]) {
		c.Threads = 1
		c.SurvivalRate = 0.2
		c.EliteThreshold = 5
	})
	ctx := context.Background()
	require.NoError(t, trainer.Initialize(ctx))

	species := trainer.Species()
	require.Len(t, species, 5)
	for _, sp := range species {
		require.Len(t, sp.Members, 10)
		require.Equal(t, 10.0, sp.OffspringCount)
	}
	oldBest, _ := trainer.BestGenome()
	require.Same(t, initial[0], oldBest)

	require.NoError(t, trainer.Iteration(ctx))
	next := trainer.Population()
	require.Len(t, next, 50)

	// The best species forwards its second member only; the others forward
	// their top two.
	require.True(t, containsGenome(next, oldBest))
	for i, sp := range species {
		for rank := 0; rank < 2; rank++ {
			require.True(t, containsGenome(next, sp.Members[rank]), "species %d elite %d missing", i, rank)
		}
	}

	carried := 0
	for _, g := range next {
		if containsGenome(initial, g) {
			carried++
		}
	}
	require.Equal(t, 10, carried, "one seeded best plus nine forwarded elites")

	diag := trainer.Diagnostics()[0]
	require.Equal(t, 1, diag.RejectedChildren, "workers offer 50 genomes into 49 free slots")
	require.Equal(t, 50, diag.PopulationSize)
}

func TestTrainerWorkerErrorLeavesPopulationUntouched(t *testing.T) {
	for _, panics := range []bool{false, true} {
		trainer, _ := newTestTrainer(t, 20, func(c *Config[*testGenome, float64]) {
			c.Operators = []WeightedOperator[*testGenome]{{Operator: failingOperator{panics: panics}, Weight: 1}}
		})
		ctx := context.Background()
		require.NoError(t, trainer.Initialize(ctx))
		before := trainer.Population()
		bestBefore, _ := trainer.BestGenome()
		speciesBefore := trainer.Species()

		err := trainer.Iteration(ctx)
		require.Error(t, err)
		var workerErr *WorkerError
		require.True(t, errors.As(err, &workerErr), "expected WorkerError, got %v", err)
		if panics {
			require.Contains(t, err.Error(), "operator exploded")
		}

		require.Equal(t, before, trainer.Population())
		bestAfter, _ := trainer.BestGenome()
		require.Same(t, bestBefore, bestAfter)
		require.Equal(t, 0, trainer.Generation())
		require.Empty(t, trainer.BestHistory())
		require.Len(t, trainer.Species(), len(speciesBefore))
	}
}

func TestTrainerScoreErrorAbortsGeneration(t *testing.T) {
	trainer, _ := newTestTrainer(t, 20, func(c *Config[*testGenome, float64]) {
		c.Score = testScore{minimize: true, fail: func(value float64) error {
			if value != math.Trunc(value) {
				return errors.New("fractional values rejected")
			}
			return nil
		}}
	})
	err := trainer.Iteration(context.Background())
	require.Error(t, err)
	require.True(t, strings.Contains(err.Error(), "fractional values rejected"), err.Error())
	require.Equal(t, 0, trainer.Generation())
}

func TestTrainerRaisesPopulationSizeViolation(t *testing.T) {
	trainer, _ := newTestTrainer(t, 20, func(c *Config[*testGenome, float64]) {
		c.Speciation = &chunkSpeciation{count: 4, quota: func(species []*model.Species[*testGenome], _ int) {
			for _, sp := range species {
				sp.OffspringCount = 1
			}
		}}
	})
	ctx := context.Background()
	require.NoError(t, trainer.Initialize(ctx))
	before := trainer.Population()

	err := trainer.Iteration(ctx)
	require.ErrorIs(t, err, ErrInvariantViolation)
	var invErr *InvariantError
	require.True(t, errors.As(err, &invErr))
	require.Equal(t, InvariantPopulationSize, invErr.Invariant)
	require.Equal(t, 1, invErr.Generation)
	require.Equal(t, before, trainer.Population())
}

func TestTrainerRaisesDuplicateMemberViolation(t *testing.T) {
	trainer, _ := newTestTrainer(t, 20, func(c *Config[*testGenome, float64]) {
		c.Threads = 1
		c.Factory = aliasFactory{}
		c.Operators = []WeightedOperator[*testGenome]{{Operator: averageCrossover{}, Weight: 1}}
		c.Speciation = &chunkSpeciation{count: 20}
	})
	err := trainer.Iteration(context.Background())
	require.ErrorIs(t, err, ErrInvariantViolation)
	var invErr *InvariantError
	require.True(t, errors.As(err, &invErr))
	require.Equal(t, InvariantUniqueMembers, invErr.Invariant)
}

func TestTrainerCanceledContextFailsBeforeDispatch(t *testing.T) {
	trainer, _ := newTestTrainer(t, 10)
	require.NoError(t, trainer.Initialize(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, trainer.Iteration(ctx), context.Canceled)
	require.Equal(t, 0, trainer.Generation())
}

func TestTrainerCloseStopsIteration(t *testing.T) {
	trainer, _ := newTestTrainer(t, 10)
	require.NoError(t, trainer.Iteration(context.Background()))
	require.NoError(t, trainer.Close())
	require.NoError(t, trainer.Close())
	require.ErrorIs(t, trainer.Iteration(context.Background()), ErrTrainerClosed)
	require.Equal(t, 1, trainer.Generation())
}

func TestTrainerSetThreadCount(t *testing.T) {
	trainer, _ := newTestTrainer(t, 10)
	trainer.SetThreadCount(1)
	require.Equal(t, 1, trainer.ThreadCount())
	require.Equal(t, 1, trainer.EffectiveThreads())

	require.NoError(t, trainer.Iteration(context.Background()))
	trainer.SetThreadCount(-3)
	require.Equal(t, 0, trainer.ThreadCount())
	require.Equal(t, resolveThreadCount(0), trainer.EffectiveThreads())
	require.NoError(t, trainer.Iteration(context.Background()))
}

func TestResolveThreadCount(t *testing.T) {
	available := resolveThreadCount(0)
	require.GreaterOrEqual(t, available, 1)
	require.Equal(t, 1, resolveThreadCount(1))
	require.Equal(t, available+1, resolveThreadCount(available+50))
}

func TestTrainerMetricsNilSafe(t *testing.T) {
	trainer, _ := newTestTrainer(t, 10, func(c *Config[*testGenome, float64]) {
		c.Metrics = nil
	})
	require.NoError(t, trainer.IterationN(context.Background(), 2))
}
