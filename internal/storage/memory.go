package storage

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"speciestrainer/internal/model"
)

type MemoryStore struct {
	mu          sync.RWMutex
	initialized bool
	runs        map[string]model.RunRecord
	history     map[string][]float64
	diagnostics map[string][]model.GenerationDiagnostics
	speciesHist map[string][]model.SpeciesGeneration
	best        map[string]model.BestGenomeRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.reset()
	s.initialized = true
	return nil
}

func (s *MemoryStore) Reset(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return errors.New("store is not initialized")
	}
	s.reset()
	return nil
}

func (s *MemoryStore) reset() {
	s.runs = make(map[string]model.RunRecord)
	s.history = make(map[string][]float64)
	s.diagnostics = make(map[string][]model.GenerationDiagnostics)
	s.speciesHist = make(map[string][]model.SpeciesGeneration)
	s.best = make(map[string]model.BestGenomeRecord)
}

func (s *MemoryStore) SaveRun(_ context.Context, run model.RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.runs[run.ID] = run
	return nil
}

func (s *MemoryStore) GetRun(_ context.Context, id string) (model.RunRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.runs[id]
	return run, ok, nil
}

func (s *MemoryStore) ListRuns(_ context.Context) ([]model.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.RunRecord, 0, len(s.runs))
	for _, run := range s.runs {
		out = append(out, run)
	}
	sortRunsNewestFirst(out)
	return out, nil
}

func (s *MemoryStore) SaveFitnessHistory(_ context.Context, runID string, history []float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.history[runID] = append([]float64(nil), history...)
	return nil
}

func (s *MemoryStore) GetFitnessHistory(_ context.Context, runID string) ([]float64, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history, ok := s.history[runID]
	if !ok {
		return nil, false, nil
	}
	return append([]float64(nil), history...), true, nil
}

func (s *MemoryStore) SaveGenerationDiagnostics(_ context.Context, runID string, diagnostics []model.GenerationDiagnostics) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := make([]model.GenerationDiagnostics, len(diagnostics))
	copy(copied, diagnostics)
	s.diagnostics[runID] = copied
	return nil
}

func (s *MemoryStore) GetGenerationDiagnostics(_ context.Context, runID string) ([]model.GenerationDiagnostics, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	diagnostics, ok := s.diagnostics[runID]
	if !ok {
		return nil, false, nil
	}
	copied := make([]model.GenerationDiagnostics, len(diagnostics))
	copy(copied, diagnostics)
	return copied, true, nil
}

func (s *MemoryStore) SaveSpeciesHistory(_ context.Context, runID string, history []model.SpeciesGeneration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.speciesHist[runID] = copySpeciesHistory(history)
	return nil
}

func (s *MemoryStore) GetSpeciesHistory(_ context.Context, runID string) ([]model.SpeciesGeneration, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history, ok := s.speciesHist[runID]
	if !ok {
		return nil, false, nil
	}
	return copySpeciesHistory(history), true, nil
}

func (s *MemoryStore) SaveBestGenome(_ context.Context, record model.BestGenomeRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record.Genes = append([]float64(nil), record.Genes...)
	s.best[record.RunID] = record
	return nil
}

func (s *MemoryStore) GetBestGenome(_ context.Context, runID string) (model.BestGenomeRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.best[runID]
	if !ok {
		return model.BestGenomeRecord{}, false, nil
	}
	record.Genes = append([]float64(nil), record.Genes...)
	return record, true, nil
}

func copySpeciesHistory(history []model.SpeciesGeneration) []model.SpeciesGeneration {
	copied := make([]model.SpeciesGeneration, 0, len(history))
	for _, generation := range history {
		species := make([]model.SpeciesMetrics, len(generation.Species))
		copy(species, generation.Species)
		copied = append(copied, model.SpeciesGeneration{
			Generation:     generation.Generation,
			Species:        species,
			NewSpecies:     append([]string(nil), generation.NewSpecies...),
			ExtinctSpecies: append([]string(nil), generation.ExtinctSpecies...),
		})
	}
	return copied
}

// sortRunsNewestFirst orders runs by creation time, then by id. Timestamps
// are RFC 3339 with variable fractional digits, so they are compared as
// times; unparseable values sort last.
func sortRunsNewestFirst(runs []model.RunRecord) {
	created := make(map[string]time.Time, len(runs))
	for _, run := range runs {
		if ts, err := time.Parse(time.RFC3339Nano, run.CreatedAtUTC); err == nil {
			created[run.ID] = ts
		}
	}
	sort.SliceStable(runs, func(i, j int) bool {
		a, b := created[runs[i].ID], created[runs[j].ID]
		if a.Equal(b) {
			return runs[i].ID > runs[j].ID
		}
		return a.After(b)
	})
}
