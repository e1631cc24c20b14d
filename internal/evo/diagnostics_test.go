package evo

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"speciestrainer/internal/model"
)

func TestSummarizeGeneration(t *testing.T) {
	genomes := scoredGenomes(1, 2, 3, 4, math.NaN())
	species := []*model.Species[*testGenome]{
		{Key: "a", Members: genomes[:3]},
		{Key: "b", Members: genomes[3:]},
	}

	diag := SummarizeGeneration(Objective{Minimize: true}, 4, genomes, species, 2)
	require.Equal(t, 4, diag.Generation)
	require.Equal(t, 5, diag.PopulationSize)
	require.Equal(t, 2, diag.SpeciesCount)
	require.Equal(t, 2, diag.RejectedChildren)
	require.Equal(t, 1.0, diag.BestScore)
	require.Equal(t, 4.0, diag.WorstScore)
	require.InDelta(t, 2.5, diag.MeanScore, 1e-12)
	require.InDelta(t, math.Sqrt(5.0/3.0), diag.ScoreStdDev, 1e-12)
	require.Equal(t, 2.5, diag.MeanSpeciesSize)
	require.Equal(t, 3, diag.LargestSpeciesSize)
}

func TestSummarizeGenerationWithoutFiniteScores(t *testing.T) {
	genomes := scoredGenomes(math.Inf(-1))
	diag := SummarizeGeneration(Objective{}, 1, genomes, nil, 0)
	require.True(t, math.IsInf(diag.BestScore, -1))
	require.Zero(t, diag.MeanScore)
	require.Zero(t, diag.SpeciesCount)
}

func TestSummarizeSpeciesGenerationTracksBirthsAndExtinctions(t *testing.T) {
	o := Objective{}
	first := []*model.Species[*testGenome]{
		{Key: "sp-001", Members: scoredGenomes(1, 3)},
		{Key: "sp-002", Members: scoredGenomes(2)},
	}
	history, current := summarizeSpeciesGeneration(o, first, 1, map[string]struct{}{})
	require.Equal(t, []string{"sp-001", "sp-002"}, history.NewSpecies)
	require.Empty(t, history.ExtinctSpecies)
	require.Equal(t, 3.0, history.Species[0].BestScore)
	require.Equal(t, 2.0, history.Species[0].MeanScore)

	second := []*model.Species[*testGenome]{
		{Key: "sp-001", Members: scoredGenomes(4)},
		{Key: "sp-003", Members: scoredGenomes(5)},
	}
	history, _ = summarizeSpeciesGeneration(o, second, 2, current)
	require.Equal(t, []string{"sp-003"}, history.NewSpecies)
	require.Equal(t, []string{"sp-002"}, history.ExtinctSpecies)
}
