package storage

import (
	"encoding/json"
	"errors"
	"math"

	"speciestrainer/internal/model"
)

const (
	CurrentSchemaVersion = 1
	CurrentCodecVersion  = 1
)

var ErrVersionMismatch = errors.New("record version mismatch")

// CurrentVersion stamps records written by this build.
func CurrentVersion() model.VersionedRecord {
	return model.VersionedRecord{SchemaVersion: CurrentSchemaVersion, CodecVersion: CurrentCodecVersion}
}

func EncodeRun(run model.RunRecord) ([]byte, error) {
	run.FinalBestScore = finite(run.FinalBestScore)
	return json.Marshal(run)
}

func DecodeRun(data []byte) (model.RunRecord, error) {
	var run model.RunRecord
	if err := json.Unmarshal(data, &run); err != nil {
		return model.RunRecord{}, err
	}
	if err := checkVersion(run.VersionedRecord); err != nil {
		return model.RunRecord{}, err
	}
	return run, nil
}

func EncodeBestGenome(record model.BestGenomeRecord) ([]byte, error) {
	record.Score = finite(record.Score)
	return json.Marshal(record)
}

func DecodeBestGenome(data []byte) (model.BestGenomeRecord, error) {
	var record model.BestGenomeRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return model.BestGenomeRecord{}, err
	}
	if err := checkVersion(record.VersionedRecord); err != nil {
		return model.BestGenomeRecord{}, err
	}
	return record, nil
}

func EncodeFitnessHistory(history []float64) ([]byte, error) {
	out := make([]float64, len(history))
	for i, v := range history {
		out[i] = finite(v)
	}
	return json.Marshal(out)
}

func DecodeFitnessHistory(data []byte) ([]float64, error) {
	var history []float64
	if err := json.Unmarshal(data, &history); err != nil {
		return nil, err
	}
	return history, nil
}

func EncodeGenerationDiagnostics(diagnostics []model.GenerationDiagnostics) ([]byte, error) {
	out := make([]model.GenerationDiagnostics, len(diagnostics))
	for i, d := range diagnostics {
		d.BestScore = finite(d.BestScore)
		d.MeanScore = finite(d.MeanScore)
		d.WorstScore = finite(d.WorstScore)
		d.ScoreStdDev = finite(d.ScoreStdDev)
		out[i] = d
	}
	return json.Marshal(out)
}

func DecodeGenerationDiagnostics(data []byte) ([]model.GenerationDiagnostics, error) {
	var diagnostics []model.GenerationDiagnostics
	if err := json.Unmarshal(data, &diagnostics); err != nil {
		return nil, err
	}
	return diagnostics, nil
}

func EncodeSpeciesHistory(history []model.SpeciesGeneration) ([]byte, error) {
	out := make([]model.SpeciesGeneration, len(history))
	for i, generation := range history {
		species := make([]model.SpeciesMetrics, len(generation.Species))
		for j, m := range generation.Species {
			m.MeanScore = finite(m.MeanScore)
			m.BestScore = finite(m.BestScore)
			species[j] = m
		}
		generation.Species = species
		out[i] = generation
	}
	return json.Marshal(out)
}

func DecodeSpeciesHistory(data []byte) ([]model.SpeciesGeneration, error) {
	var history []model.SpeciesGeneration
	if err := json.Unmarshal(data, &history); err != nil {
		return nil, err
	}
	return history, nil
}

func checkVersion(v model.VersionedRecord) error {
	if v.SchemaVersion != CurrentSchemaVersion || v.CodecVersion != CurrentCodecVersion {
		return ErrVersionMismatch
	}
	return nil
}

// finite maps values JSON cannot carry onto the nearest representable one.
func finite(v float64) float64 {
	switch {
	case math.IsNaN(v):
		return 0
	case math.IsInf(v, 1):
		return math.MaxFloat64
	case math.IsInf(v, -1):
		return -math.MaxFloat64
	default:
		return v
	}
}
