package evo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/rand"
	"runtime"
	"sync"
	"time"

	"github.com/sourcegraph/conc/pool"

	"speciestrainer/internal/model"
)

const (
	DefaultSurvivalRate     = 0.2
	DefaultEliteThreshold   = 5
	DefaultMaxParentRetries = 5
	DefaultStallLimit       = 1000
)

// Config wires the trainer to its collaborators.
type Config[G model.Genome, M any] struct {
	PopulationSize int
	// Threads is the requested worker count; zero derives it from the
	// available CPUs.
	Threads int
	Seed    int64

	// SurvivalRate is the fraction of a large species forwarded unchanged.
	// Zero selects DefaultSurvivalRate; negative disables species elitism.
	// The previous best genome is carried over regardless.
	SurvivalRate     float64
	EliteThreshold   int
	MaxParentRetries int
	// StallLimit bounds consecutive skipped reproduction attempts inside
	// one species. Negative disables the bound.
	StallLimit         int
	ValidateInvariants bool

	Score      ScoreFunction[M]
	Codec      Codec[G, M]
	Factory    Factory[G]
	Selection  Selection[G]
	Operators  []WeightedOperator[G]
	Speciation Speciation[G]
	// FallbackMutation is applied to the clone when no configured operator
	// fits a species' member count. Optional.
	FallbackMutation Operator[G]

	Logger  *slog.Logger
	Metrics *Metrics
}

// Trainer runs the speciated generational loop. A Trainer is not safe for
// concurrent use; the parallelism lives inside Iteration.
type Trainer[G model.Genome, M any] struct {
	cfg       Config[G, M]
	objective Objective
	logger    *slog.Logger
	rng       *rand.Rand

	threads     int
	initialized bool
	closed      bool
	generation  int

	genomes []G
	species []*model.Species[G]
	best    G
	hasBest bool

	pool *generationPool[G]

	bestHistory    []float64
	diagnostics    []model.GenerationDiagnostics
	speciesHistory []model.SpeciesGeneration
	prevSpecies    map[string]struct{}
}

func NewTrainer[G model.Genome, M any](cfg Config[G, M], initial []G) (*Trainer[G, M], error) {
	if cfg.Score == nil {
		return nil, fmt.Errorf("score function is required")
	}
	if cfg.Codec == nil {
		return nil, fmt.Errorf("codec is required")
	}
	if cfg.Factory == nil {
		return nil, fmt.Errorf("genome factory is required")
	}
	if cfg.Selection == nil {
		return nil, fmt.Errorf("selection is required")
	}
	if cfg.Speciation == nil {
		return nil, fmt.Errorf("speciation is required")
	}
	if len(cfg.Operators) == 0 {
		return nil, fmt.Errorf("at least one evolutionary operator is required")
	}
	positiveWeight := false
	for i, item := range cfg.Operators {
		if item.Operator == nil {
			return nil, fmt.Errorf("operator is required at index %d", i)
		}
		if n := item.Operator.ParentsNeeded(); n != 1 && n != 2 {
			return nil, fmt.Errorf("operator %s needs %d parents, want 1 or 2", item.Operator.Name(), n)
		}
		if item.Weight < 0 {
			return nil, fmt.Errorf("operator weight must be >= 0 at index %d", i)
		}
		if item.Weight > 0 {
			positiveWeight = true
		}
	}
	if !positiveWeight {
		return nil, fmt.Errorf("operators require at least one positive weight")
	}
	if cfg.FallbackMutation != nil && cfg.FallbackMutation.ParentsNeeded() != 1 {
		return nil, fmt.Errorf("fallback mutation must need exactly one parent")
	}
	if cfg.PopulationSize < 2 {
		return nil, fmt.Errorf("population size must be >= 2")
	}
	if len(initial) != cfg.PopulationSize {
		return nil, fmt.Errorf("initial population mismatch: got=%d want=%d", len(initial), cfg.PopulationSize)
	}
	if cfg.Threads < 0 {
		return nil, fmt.Errorf("threads must be >= 0")
	}
	if cfg.SurvivalRate > 1 || math.IsNaN(cfg.SurvivalRate) {
		return nil, fmt.Errorf("survival rate must be <= 1")
	}
	if cfg.SurvivalRate == 0 {
		cfg.SurvivalRate = DefaultSurvivalRate
	}
	if cfg.EliteThreshold <= 0 {
		cfg.EliteThreshold = DefaultEliteThreshold
	}
	if cfg.MaxParentRetries <= 0 {
		cfg.MaxParentRetries = DefaultMaxParentRetries
	}
	if cfg.StallLimit == 0 {
		cfg.StallLimit = DefaultStallLimit
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	genomes := make([]G, len(initial))
	copy(genomes, initial)
	objective := Objective{Minimize: cfg.Score.ShouldMinimize()}

	return &Trainer[G, M]{
		cfg:         cfg,
		objective:   objective,
		logger:      logger,
		rng:         rand.New(rand.NewSource(cfg.Seed)),
		genomes:     genomes,
		pool:        newGenerationPool[G](cfg.PopulationSize, objective),
		prevSpecies: map[string]struct{}{},
	}, nil
}

// Initialize scores the initial population and runs the first speciation.
// Iteration calls it lazily; calling it again is a no-op.
func (t *Trainer[G, M]) Initialize(ctx context.Context) error {
	if t.closed {
		return ErrTrainerClosed
	}
	if t.initialized {
		return nil
	}
	t.threads = resolveThreadCount(t.cfg.Threads)

	if err := t.scorePopulation(ctx, t.genomes); err != nil {
		return fmt.Errorf("initial scoring: %w", err)
	}
	best, ok := BestOf(t.objective, t.genomes)
	if !ok {
		return fmt.Errorf("initial population is empty")
	}

	if err := t.cfg.Speciation.Init(t.cfg.PopulationSize, t.objective); err != nil {
		return fmt.Errorf("init speciation: %w", err)
	}
	species, err := t.cfg.Speciation.PerformSpeciation(t.genomes)
	if err != nil {
		return fmt.Errorf("initial speciation: %w", err)
	}
	if len(species) == 0 {
		return ErrNoSpecies
	}

	t.best, t.hasBest = best, true
	t.species = species
	t.prevSpecies = speciesKeySet(species)
	t.initialized = true
	t.cfg.Metrics.observeBest(best.Score())
	t.cfg.Metrics.observeSpecies(len(species))
	t.logger.Info("trainer initialized",
		"population", len(t.genomes),
		"species", len(species),
		"threads", t.threads,
		"best_score", best.Score(),
	)
	return nil
}

// Iteration advances exactly one generation. On error the population, the
// species and the best genome are left as they were before the call.
func (t *Trainer[G, M]) Iteration(ctx context.Context) error {
	if t.closed {
		return ErrTrainerClosed
	}
	if err := t.Initialize(ctx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(t.species) == 0 {
		return ErrNoSpecies
	}

	started := time.Now()
	nextGeneration := t.generation + 1
	oldBest, hasOldBest := t.best, t.hasBest

	t.pool.reset(oldBest, hasOldBest)
	slot := &errorSlot{}

	// Seeds are drawn before dispatch so every species sees the same random
	// stream regardless of thread count.
	workers := make([]*speciesWorker[G, M], 0, len(t.species))
	for _, sp := range t.species {
		workers = append(workers, &speciesWorker[G, M]{
			trainer:    t,
			species:    sp,
			rng:        rand.New(rand.NewSource(t.rng.Int63())),
			oldBest:    oldBest,
			hasOldBest: hasOldBest,
			generation: nextGeneration,
			errs:       slot,
		})
	}

	p := pool.New().WithMaxGoroutines(t.threads)
	for _, w := range workers {
		w := w
		p.Go(func() {
			w.run(ctx)
		})
	}
	p.Wait()

	if err := slot.get(); err != nil {
		t.cfg.Metrics.observeFailure("worker")
		return fmt.Errorf("generation %d: %w", nextGeneration, err)
	}

	next, best, hasBest, rejected := t.pool.snapshot()
	if t.cfg.ValidateInvariants {
		err := checkInvariants(t.objective, generationOutcome[G]{
			generation:    nextGeneration,
			populationLen: t.cfg.PopulationSize,
			next:          next,
			oldBest:       oldBest,
			hasOldBest:    hasOldBest,
			best:          best,
			hasBest:       hasBest,
		})
		if err != nil {
			t.cfg.Metrics.observeFailure("invariant")
			t.logger.Error("generation invariant violated", "generation", nextGeneration, "error", err)
			return err
		}
	}

	species, err := t.cfg.Speciation.PerformSpeciation(next)
	if err != nil {
		t.cfg.Metrics.observeFailure("speciation")
		return fmt.Errorf("generation %d speciation: %w", nextGeneration, err)
	}
	if len(species) == 0 {
		t.cfg.Metrics.observeFailure("speciation")
		return fmt.Errorf("generation %d: %w", nextGeneration, ErrNoSpecies)
	}

	t.genomes = next
	t.species = species
	if hasBest {
		t.best, t.hasBest = best, true
	}
	t.generation = nextGeneration

	diag := SummarizeGeneration(t.objective, nextGeneration, next, species, rejected)
	t.diagnostics = append(t.diagnostics, diag)
	t.bestHistory = append(t.bestHistory, t.Error())
	history, current := summarizeSpeciesGeneration(t.objective, species, nextGeneration, t.prevSpecies)
	t.speciesHistory = append(t.speciesHistory, history)
	t.prevSpecies = current

	t.cfg.Metrics.observeGeneration(time.Since(started), t.Error(), len(species), len(next)-boolToInt(hasOldBest), rejected)
	t.logger.Info("generation complete",
		"generation", nextGeneration,
		"best_score", diag.BestScore,
		"mean_score", diag.MeanScore,
		"species", diag.SpeciesCount,
		"rejected", rejected,
		"elapsed", time.Since(started),
	)
	return nil
}

// IterationN runs count generations sequentially and stops at the first error.
func (t *Trainer[G, M]) IterationN(ctx context.Context, count int) error {
	for i := 0; i < count; i++ {
		if err := t.Iteration(ctx); err != nil {
			return err
		}
	}
	return nil
}

// addChild offers a genome to the shared generation pool.
func (t *Trainer[G, M]) addChild(genome G) InsertResult {
	result := t.pool.insert(genome)
	if result == PoolFull && t.cfg.ValidateInvariants {
		t.logger.Debug("generation pool full, child rejected", "genome", genome.ID(), "generation", t.generation+1)
	}
	return result
}

// scoreGenome decodes and scores one genome in place.
func (t *Trainer[G, M]) scoreGenome(ctx context.Context, genome G) error {
	method, err := t.cfg.Codec.Decode(genome)
	if err != nil {
		return fmt.Errorf("decode genome %s: %w", genome.ID(), err)
	}
	score, err := t.cfg.Score.Score(ctx, method)
	if err != nil {
		return fmt.Errorf("score genome %s: %w", genome.ID(), err)
	}
	genome.SetScore(score)
	return nil
}

func (t *Trainer[G, M]) scorePopulation(ctx context.Context, genomes []G) error {
	jobs := make(chan G)
	errs := make(chan error, len(genomes))

	workerCount := t.threads
	if workerCount > len(genomes) {
		workerCount = len(genomes)
	}

	var wg sync.WaitGroup
	wg.Add(workerCount)
	for w := 0; w < workerCount; w++ {
		go func() {
			defer wg.Done()
			for genome := range jobs {
				if err := t.scoreGenome(ctx, genome); err != nil {
					errs <- err
				}
			}
		}()
	}

	for _, genome := range genomes {
		jobs <- genome
	}
	close(jobs)

	wg.Wait()
	close(errs)

	var joined []error
	for err := range errs {
		joined = append(joined, err)
	}
	return errors.Join(joined...)
}

// Error returns the best score so far, or the worst possible score for the
// objective when nothing has been scored.
func (t *Trainer[G, M]) Error() float64 {
	if !t.hasBest {
		return t.objective.WorstScore()
	}
	return t.best.Score()
}

func (t *Trainer[G, M]) BestGenome() (G, bool) {
	return t.best, t.hasBest
}

// Method decodes the current best genome.
func (t *Trainer[G, M]) Method() (M, error) {
	var zero M
	if !t.hasBest {
		return zero, ErrNotInitialized
	}
	return t.cfg.Codec.Decode(t.best)
}

// SetThreadCount changes the requested worker count. Zero derives it from the
// available CPUs. The new value applies from the next generation.
func (t *Trainer[G, M]) SetThreadCount(n int) {
	if n < 0 {
		n = 0
	}
	t.cfg.Threads = n
	if t.initialized {
		t.threads = resolveThreadCount(n)
	}
}

func (t *Trainer[G, M]) ThreadCount() int {
	return t.cfg.Threads
}

// EffectiveThreads is the worker pool bound actually in use.
func (t *Trainer[G, M]) EffectiveThreads() int {
	if t.initialized {
		return t.threads
	}
	return resolveThreadCount(t.cfg.Threads)
}

// IsTrainingDone is always false; stopping is the caller's decision.
func (t *Trainer[G, M]) IsTrainingDone() bool {
	return false
}

func (t *Trainer[G, M]) Objective() Objective {
	return t.objective
}

func (t *Trainer[G, M]) Generation() int {
	return t.generation
}

// Population returns a copy of the current flat genome list.
func (t *Trainer[G, M]) Population() []G {
	out := make([]G, len(t.genomes))
	copy(out, t.genomes)
	return out
}

// Species returns a shallow copy of the current species partition.
func (t *Trainer[G, M]) Species() []*model.Species[G] {
	out := make([]*model.Species[G], 0, len(t.species))
	for _, sp := range t.species {
		clone := *sp
		clone.Members = append([]G(nil), sp.Members...)
		out = append(out, &clone)
	}
	return out
}

func (t *Trainer[G, M]) BestHistory() []float64 {
	return append([]float64(nil), t.bestHistory...)
}

func (t *Trainer[G, M]) Diagnostics() []model.GenerationDiagnostics {
	return append([]model.GenerationDiagnostics(nil), t.diagnostics...)
}

func (t *Trainer[G, M]) SpeciesHistory() []model.SpeciesGeneration {
	return append([]model.SpeciesGeneration(nil), t.speciesHistory...)
}

// Close releases trainer-owned state. Further iterations fail.
func (t *Trainer[G, M]) Close() error {
	if t.closed {
		return nil
	}
	t.closed = true
	t.pool.reset(t.best, false)
	t.logger.Debug("trainer closed", "generation", t.generation)
	return nil
}

func resolveThreadCount(requested int) int {
	available := runtime.NumCPU()
	if available < 1 {
		available = 1
	}
	if requested <= 0 {
		return available
	}
	if requested > available+1 {
		return available + 1
	}
	return requested
}

func speciesKeySet[G model.Genome](species []*model.Species[G]) map[string]struct{} {
	out := make(map[string]struct{}, len(species))
	for _, sp := range species {
		out[sp.Key] = struct{}{}
	}
	return out
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
