package storage

import (
	"context"

	"speciestrainer/internal/model"
)

// Store persists finished training runs and their per-generation records.
type Store interface {
	Init(ctx context.Context) error
	Reset(ctx context.Context) error
	SaveRun(ctx context.Context, run model.RunRecord) error
	GetRun(ctx context.Context, id string) (model.RunRecord, bool, error)
	// ListRuns returns runs newest first.
	ListRuns(ctx context.Context) ([]model.RunRecord, error)
	SaveFitnessHistory(ctx context.Context, runID string, history []float64) error
	GetFitnessHistory(ctx context.Context, runID string) ([]float64, bool, error)
	SaveGenerationDiagnostics(ctx context.Context, runID string, diagnostics []model.GenerationDiagnostics) error
	GetGenerationDiagnostics(ctx context.Context, runID string) ([]model.GenerationDiagnostics, bool, error)
	SaveSpeciesHistory(ctx context.Context, runID string, history []model.SpeciesGeneration) error
	GetSpeciesHistory(ctx context.Context, runID string) ([]model.SpeciesGeneration, bool, error)
	SaveBestGenome(ctx context.Context, record model.BestGenomeRecord) error
	GetBestGenome(ctx context.Context, runID string) (model.BestGenomeRecord, bool, error)
}
