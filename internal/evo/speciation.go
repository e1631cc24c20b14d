package evo

import (
	"fmt"
	"math"

	"speciestrainer/internal/model"
)

// DistanceFunc measures how far apart two genomes are.
type DistanceFunc[G model.Genome] func(a, b G) float64

// SpeciationStats captures per-generation species partitioning diagnostics.
type SpeciationStats struct {
	SpeciesCount       int
	TargetSpeciesCount int
	Threshold          float64
}

// AdaptiveSpeciation groups genomes around species representatives by a
// compatibility threshold and nudges that threshold toward a target species
// count each generation. Species keys survive across generations while their
// representative keeps attracting members.
type AdaptiveSpeciation[G model.Genome] struct {
	Distance           DistanceFunc[G]
	TargetSpeciesCount int
	Threshold          float64
	MinThreshold       float64
	MaxThreshold       float64
	AdjustStep         float64

	populationSize int
	objective      Objective
	generation     int
	nextSpeciesID  int
	previous       []*model.Species[G]
	lastStats      SpeciationStats
}

func NewAdaptiveSpeciation[G model.Genome](distance DistanceFunc[G]) *AdaptiveSpeciation[G] {
	return &AdaptiveSpeciation[G]{
		Distance:     distance,
		Threshold:    1.0,
		MinThreshold: 0.05,
		MaxThreshold: 8.0,
		AdjustStep:   0.1,
	}
}

func (s *AdaptiveSpeciation[G]) Init(populationSize int, objective Objective) error {
	if s.Distance == nil {
		return fmt.Errorf("speciation distance function is required")
	}
	if populationSize <= 0 {
		return fmt.Errorf("population size must be > 0")
	}
	s.populationSize = populationSize
	s.objective = objective
	if s.TargetSpeciesCount <= 0 {
		target := int(math.Sqrt(float64(populationSize)))
		if target < 2 {
			target = 2
		}
		s.TargetSpeciesCount = target
	}
	s.nextSpeciesID = 1
	s.previous = nil
	s.generation = 0
	return nil
}

func (s *AdaptiveSpeciation[G]) PerformSpeciation(genomes []G) ([]*model.Species[G], error) {
	if s.populationSize == 0 {
		return nil, fmt.Errorf("speciation is not initialized")
	}
	if len(genomes) == 0 {
		return nil, nil
	}

	groups := make([]*model.Species[G], 0, len(s.previous)+1)
	for _, prev := range s.previous {
		groups = append(groups, &model.Species[G]{
			Key:            prev.Key,
			Representative: prev.Representative,
			CreatedAt:      prev.CreatedAt,
		})
	}

	for _, genome := range genomes {
		bestIdx := -1
		bestDistance := math.MaxFloat64
		for i, grp := range groups {
			dist := s.Distance(genome, grp.Representative)
			if dist < bestDistance {
				bestDistance = dist
				bestIdx = i
			}
		}
		if bestIdx == -1 || bestDistance > s.Threshold {
			groups = append(groups, &model.Species[G]{
				Key:            fmt.Sprintf("sp-%03d", s.nextSpeciesID),
				Representative: genome,
				Members:        []G{genome},
				CreatedAt:      s.generation,
			})
			s.nextSpeciesID++
			continue
		}
		groups[bestIdx].Members = append(groups[bestIdx].Members, genome)
	}

	species := make([]*model.Species[G], 0, len(groups))
	for _, grp := range groups {
		if len(grp.Members) == 0 {
			continue
		}
		SortBestFirst(s.objective, grp.Members)
		grp.Representative = grp.Members[0]
		species = append(species, grp)
	}

	if len(species) > s.TargetSpeciesCount {
		s.Threshold = math.Min(s.MaxThreshold, s.Threshold+s.AdjustStep)
	} else if len(species) < s.TargetSpeciesCount {
		s.Threshold = math.Max(s.MinThreshold, s.Threshold-s.AdjustStep)
	}

	AssignOffspringQuotas(s.objective, species, s.populationSize)

	s.previous = species
	s.generation++
	s.lastStats = SpeciationStats{
		SpeciesCount:       len(species),
		TargetSpeciesCount: s.TargetSpeciesCount,
		Threshold:          s.Threshold,
	}
	return species, nil
}

func (s *AdaptiveSpeciation[G]) Stats() SpeciationStats {
	return s.lastStats
}
