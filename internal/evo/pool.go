package evo

import (
	"sync"

	"speciestrainer/internal/model"
)

// InsertResult reports the outcome of offering a child to the generation pool.
type InsertResult int

const (
	Inserted InsertResult = iota
	PoolFull
)

func (r InsertResult) String() string {
	switch r {
	case Inserted:
		return "inserted"
	case PoolFull:
		return "pool_full"
	default:
		return "unknown"
	}
}

// generationPool accumulates one generation's offspring. One mutex guards the
// member list and the best-genome slot; the critical section never covers
// genome construction or scoring.
type generationPool[G model.Genome] struct {
	mu        sync.Mutex
	capacity  int
	objective Objective
	members   []G
	best      G
	hasBest   bool
	rejected  int
}

func newGenerationPool[G model.Genome](capacity int, objective Objective) *generationPool[G] {
	return &generationPool[G]{
		capacity:  capacity,
		objective: objective,
		members:   make([]G, 0, capacity),
	}
}

// reset empties the pool and seeds it with the previous best genome.
func (p *generationPool[G]) reset(seed G, hasSeed bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var zero G
	p.members = make([]G, 0, p.capacity)
	p.best = zero
	p.hasBest = false
	p.rejected = 0
	if hasSeed {
		p.members = append(p.members, seed)
		p.best = seed
		p.hasBest = true
	}
}

func (p *generationPool[G]) insert(genome G) InsertResult {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.members) >= p.capacity {
		p.rejected++
		return PoolFull
	}
	p.members = append(p.members, genome)
	if !p.hasBest || p.objective.IsBetter(genome.Score(), p.best.Score()) {
		p.best = genome
		p.hasBest = true
	}
	return Inserted
}

// snapshot returns the members and the best genome after the join barrier.
func (p *generationPool[G]) snapshot() ([]G, G, bool, int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]G, len(p.members))
	copy(out, p.members)
	return out, p.best, p.hasBest, p.rejected
}

// errorSlot keeps the first error reported by any worker.
type errorSlot struct {
	mu  sync.Mutex
	err error
}

func (s *errorSlot) set(err error) bool {
	if err == nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return false
	}
	s.err = err
	return true
}

func (s *errorSlot) get() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}
