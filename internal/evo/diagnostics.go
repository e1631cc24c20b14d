package evo

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"speciestrainer/internal/model"
)

// SummarizeGeneration computes score and species statistics for a committed
// generation. Non-finite scores are left out of the score statistics.
func SummarizeGeneration[G model.Genome](o Objective, generation int, genomes []G, species []*model.Species[G], rejected int) model.GenerationDiagnostics {
	diag := model.GenerationDiagnostics{
		Generation:       generation,
		PopulationSize:   len(genomes),
		SpeciesCount:     len(species),
		RejectedChildren: rejected,
		BestScore:        o.WorstScore(),
		WorstScore:       o.WorstScore(),
	}

	scores := make([]float64, 0, len(genomes))
	for _, genome := range genomes {
		if s := genome.Score(); !math.IsNaN(s) && !math.IsInf(s, 0) {
			scores = append(scores, s)
		}
	}
	if len(scores) > 0 {
		diag.MeanScore = stat.Mean(scores, nil)
		if len(scores) > 1 {
			diag.ScoreStdDev = stat.StdDev(scores, nil)
		}
		if o.Minimize {
			diag.BestScore, diag.WorstScore = floats.Min(scores), floats.Max(scores)
		} else {
			diag.BestScore, diag.WorstScore = floats.Max(scores), floats.Min(scores)
		}
	}

	if len(species) > 0 {
		sizes := make([]float64, 0, len(species))
		for _, sp := range species {
			sizes = append(sizes, float64(len(sp.Members)))
		}
		diag.MeanSpeciesSize = stat.Mean(sizes, nil)
		diag.LargestSpeciesSize = int(floats.Max(sizes))
	}
	return diag
}

func summarizeSpeciesGeneration[G model.Genome](o Objective, species []*model.Species[G], generation int, prevSpeciesSet map[string]struct{}) (model.SpeciesGeneration, map[string]struct{}) {
	currentSet := make(map[string]struct{}, len(species))
	metrics := make([]model.SpeciesMetrics, 0, len(species))
	for _, sp := range species {
		currentSet[sp.Key] = struct{}{}
		if len(sp.Members) == 0 {
			continue
		}
		sum := 0.0
		best := sp.Members[0].Score()
		for _, genome := range sp.Members {
			sum += genome.Score()
			if o.IsBetter(genome.Score(), best) {
				best = genome.Score()
			}
		}
		metrics = append(metrics, model.SpeciesMetrics{
			Key:            sp.Key,
			Size:           len(sp.Members),
			MeanScore:      sum / float64(len(sp.Members)),
			BestScore:      best,
			OffspringCount: sp.OffspringCount,
		})
	}
	sort.Slice(metrics, func(i, j int) bool { return metrics[i].Key < metrics[j].Key })

	newSpecies := make([]string, 0)
	for key := range currentSet {
		if _, ok := prevSpeciesSet[key]; !ok {
			newSpecies = append(newSpecies, key)
		}
	}
	sort.Strings(newSpecies)

	extinctSpecies := make([]string, 0)
	for key := range prevSpeciesSet {
		if _, ok := currentSet[key]; !ok {
			extinctSpecies = append(extinctSpecies, key)
		}
	}
	sort.Strings(extinctSpecies)

	return model.SpeciesGeneration{
		Generation:     generation,
		Species:        metrics,
		NewSpecies:     newSpecies,
		ExtinctSpecies: extinctSpecies,
	}, currentSet
}
