package evo

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"sync/atomic"
	"testing"

	"speciestrainer/internal/model"
)

var testGenomeSeq atomic.Int64

// testGenome is a one-gene genome whose score is its value under testScore.
type testGenome struct {
	id            string
	value         float64
	score         float64
	birth         int
	canonicalized bool
}

func newTestGenome(value float64) *testGenome {
	return &testGenome{
		id:    fmt.Sprintf("g-%d", testGenomeSeq.Add(1)),
		value: value,
		score: math.NaN(),
	}
}

func (g *testGenome) ID() string                        { return g.id }
func (g *testGenome) Score() float64                    { return g.score }
func (g *testGenome) SetScore(score float64)            { g.score = score }
func (g *testGenome) BirthGeneration() int              { return g.birth }
func (g *testGenome) SetBirthGeneration(generation int) { g.birth = generation }
func (g *testGenome) Canonicalize()                     { g.canonicalized = true }

func testPopulation(n int) []*testGenome {
	out := make([]*testGenome, n)
	for i := range out {
		out[i] = newTestGenome(float64(i))
	}
	return out
}

// scoredGenomes builds genomes whose value and score are both the given number.
func scoredGenomes(values ...float64) []*testGenome {
	out := make([]*testGenome, len(values))
	for i, v := range values {
		out[i] = newTestGenome(v)
		out[i].SetScore(v)
	}
	return out
}

type testScore struct {
	minimize bool
	fail     func(value float64) error
}

func (s testScore) Score(_ context.Context, value float64) (float64, error) {
	if s.fail != nil {
		if err := s.fail(value); err != nil {
			return 0, err
		}
	}
	return value, nil
}

func (s testScore) ShouldMinimize() bool {
	return s.minimize
}

type testCodec struct{}

func (testCodec) Decode(g *testGenome) (float64, error) {
	return g.value, nil
}

type testFactory struct{}

func (testFactory) Factor(parent *testGenome) (*testGenome, error) {
	clone := newTestGenome(parent.value)
	clone.birth = parent.birth
	return clone, nil
}

// aliasFactory hands back the parent itself, which breaks instance
// uniqueness downstream.
type aliasFactory struct{}

func (aliasFactory) Factor(parent *testGenome) (*testGenome, error) {
	return parent, nil
}

type nudgeMutation struct{}

func (nudgeMutation) Name() string {
	return "nudge"
}

func (nudgeMutation) ParentsNeeded() int {
	return 1
}

func (nudgeMutation) PerformOperation(rng *rand.Rand, parents []*testGenome) (*testGenome, error) {
	child := parents[0]
	child.value += rng.NormFloat64()
	return child, nil
}

type averageCrossover struct{}

func (averageCrossover) Name() string {
	return "average"
}

func (averageCrossover) ParentsNeeded() int {
	return 2
}

func (averageCrossover) PerformOperation(rng *rand.Rand, parents []*testGenome) (*testGenome, error) {
	if parents[0] == parents[1] {
		return nil, errors.New("average crossover needs distinct parents")
	}
	mix := rng.Float64()
	return newTestGenome(mix*parents[0].value + (1-mix)*parents[1].value), nil
}

type failingOperator struct {
	panics bool
}

func (failingOperator) Name() string {
	return "failing"
}

func (failingOperator) ParentsNeeded() int {
	return 1
}

func (o failingOperator) PerformOperation(_ *rand.Rand, _ []*testGenome) (*testGenome, error) {
	if o.panics {
		panic("operator exploded")
	}
	return nil, errors.New("operator failed")
}

// countingSelection always returns index, counting its calls.
type countingSelection struct {
	index int
	calls atomic.Int64
}

func (*countingSelection) Name() string {
	return "counting"
}

func (s *countingSelection) PerformSelection(_ *rand.Rand, _ *model.Species[*testGenome]) (int, error) {
	s.calls.Add(1)
	return s.index, nil
}

// chunkSpeciation ranks the population and cuts it into count contiguous
// species with even quotas, or with quota when set.
type chunkSpeciation struct {
	count int
	quota func(species []*model.Species[*testGenome], total int)

	total     int
	objective Objective
	calls     int
}

func (s *chunkSpeciation) Init(populationSize int, objective Objective) error {
	s.total = populationSize
	s.objective = objective
	return nil
}

func (s *chunkSpeciation) PerformSpeciation(genomes []*testGenome) ([]*model.Species[*testGenome], error) {
	s.calls++
	ranked := append([]*testGenome(nil), genomes...)
	SortBestFirst(s.objective, ranked)

	count := min(s.count, len(ranked))
	size := len(ranked) / count
	species := make([]*model.Species[*testGenome], 0, count)
	for i := 0; i < count; i++ {
		lo, hi := i*size, (i+1)*size
		if i == count-1 {
			hi = len(ranked)
		}
		members := append([]*testGenome(nil), ranked[lo:hi]...)
		species = append(species, &model.Species[*testGenome]{
			Key:            fmt.Sprintf("sp-%03d", i+1),
			Members:        members,
			Representative: members[0],
		})
	}
	if s.quota != nil {
		s.quota(species, s.total)
		return species, nil
	}
	evenQuotas(species, s.total)
	return species, nil
}

func evenQuotas(species []*model.Species[*testGenome], total int) {
	base := total / len(species)
	extra := total % len(species)
	for i, sp := range species {
		count := base
		if i < extra {
			count++
		}
		sp.OffspringCount = float64(count)
	}
}

type trainerOption func(*Config[*testGenome, float64])

func newTestTrainer(t *testing.T, populationSize int, opts ...trainerOption) (*Trainer[*testGenome, float64], []*testGenome) {
	t.Helper()
	cfg := Config[*testGenome, float64]{
		PopulationSize:     populationSize,
		Threads:            4,
		Seed:               42,
		ValidateInvariants: true,
		Score:              testScore{minimize: true},
		Codec:              testCodec{},
		Factory:            testFactory{},
		Selection:          TournamentSelection[*testGenome]{Rounds: 3},
		Operators: []WeightedOperator[*testGenome]{
			{Operator: nudgeMutation{}, Weight: 0.7},
			{Operator: averageCrossover{}, Weight: 0.3},
		},
		Speciation: &chunkSpeciation{count: 5},
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	initial := testPopulation(populationSize)
	trainer, err := NewTrainer(cfg, initial)
	if err != nil {
		t.Fatalf("new trainer: %v", err)
	}
	return trainer, initial
}

func containsGenome(genomes []*testGenome, target *testGenome) bool {
	for _, g := range genomes {
		if g == target {
			return true
		}
	}
	return false
}

func sortedValues(genomes []*testGenome) []float64 {
	out := make([]float64, len(genomes))
	for i, g := range genomes {
		out[i] = g.value
	}
	sort.Float64s(out)
	return out
}
