package evo

import (
	"math"
	"testing"

	"speciestrainer/internal/model"
)

func speciesWithScores(key string, scores ...float64) *model.Species[*testGenome] {
	return &model.Species[*testGenome]{Key: key, Members: scoredGenomes(scores...)}
}

func quotaSum(species []*model.Species[*testGenome]) float64 {
	sum := 0.0
	for _, sp := range species {
		sum += sp.OffspringCount
	}
	return sum
}

func TestAssignOffspringQuotasSumsToTotal(t *testing.T) {
	cases := []struct {
		name      string
		objective Objective
		species   []*model.Species[*testGenome]
		total     int
	}{
		{
			name:      "maximize positive",
			objective: Objective{},
			species: []*model.Species[*testGenome]{
				speciesWithScores("a", 3, 2),
				speciesWithScores("b", 1),
				speciesWithScores("c", 0.5, 0.25),
			},
			total: 17,
		},
		{
			name:      "minimize",
			objective: Objective{Minimize: true},
			species: []*model.Species[*testGenome]{
				speciesWithScores("a", 0.1),
				speciesWithScores("b", 10, 12),
			},
			total: 9,
		},
		{
			name:      "non finite",
			objective: Objective{},
			species: []*model.Species[*testGenome]{
				speciesWithScores("a", math.Inf(1)),
				speciesWithScores("b", math.NaN()),
				speciesWithScores("c", math.Inf(-1), 1),
			},
			total: 10,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			AssignOffspringQuotas(tc.objective, tc.species, tc.total)
			if got := quotaSum(tc.species); got != float64(tc.total) {
				t.Fatalf("quota sum=%f want %d", got, tc.total)
			}
			for _, sp := range tc.species {
				if sp.OffspringCount < 0 || sp.OffspringCount != math.Trunc(sp.OffspringCount) {
					t.Fatalf("species %s got non-integral quota %f", sp.Key, sp.OffspringCount)
				}
			}
		})
	}
}

func TestAssignOffspringQuotasFavorsFitterSpecies(t *testing.T) {
	species := []*model.Species[*testGenome]{
		speciesWithScores("worse", 10),
		speciesWithScores("better", 1),
	}
	AssignOffspringQuotas(Objective{Minimize: true}, species, 20)
	if species[1].OffspringCount <= species[0].OffspringCount {
		t.Fatalf("expected fitter species to get more offspring: worse=%f better=%f", species[0].OffspringCount, species[1].OffspringCount)
	}
}

func TestAssignOffspringQuotasZeroTotal(t *testing.T) {
	species := []*model.Species[*testGenome]{speciesWithScores("a", 1)}
	species[0].OffspringCount = 4
	AssignOffspringQuotas(Objective{}, species, 0)
	if species[0].OffspringCount != 0 {
		t.Fatalf("expected zero quota, got %f", species[0].OffspringCount)
	}
}
