package evo

import (
	"math"
	"sort"

	"speciestrainer/internal/model"
)

// AssignOffspringQuotas sets each species' OffspringCount in proportion to its
// mean score share so that the counts add up to total exactly. Remainders are
// handed out largest first, ties broken by species key.
func AssignOffspringQuotas[G model.Genome](o Objective, species []*model.Species[G], total int) {
	if len(species) == 0 {
		return
	}
	if total <= 0 {
		for _, sp := range species {
			sp.OffspringCount = 0
		}
		return
	}

	shares := make([]float64, len(species))
	minMean := math.Inf(1)
	for i, sp := range species {
		if len(sp.Members) == 0 {
			shares[i] = math.NaN()
			continue
		}
		sum := 0.0
		for _, genome := range sp.Members {
			v := genome.Score()
			if o.Minimize {
				v = -v
			}
			sum += v
		}
		shares[i] = sum / float64(len(sp.Members))
		if !math.IsNaN(shares[i]) && !math.IsInf(shares[i], 0) && shares[i] < minMean {
			minMean = shares[i]
		}
	}
	if math.IsInf(minMean, 1) {
		minMean = 0
	}
	for i, v := range shares {
		if math.IsNaN(v) || math.IsInf(v, -1) {
			shares[i] = minMean
		} else if math.IsInf(v, 1) {
			shares[i] = math.MaxFloat64 / float64(len(species)*2)
		}
	}

	shift := 0.0
	if minMean <= 0 {
		shift = -minMean + 1e-9
	}
	totalShare := 0.0
	for i := range shares {
		shares[i] += shift
		totalShare += shares[i]
	}
	if totalShare <= 0 || math.IsInf(totalShare, 0) || math.IsNaN(totalShare) {
		for i := range shares {
			shares[i] = 1
		}
		totalShare = float64(len(shares))
	}

	type alloc struct {
		idx       int
		key       string
		count     int
		remainder float64
	}
	allocs := make([]alloc, 0, len(species))
	assigned := 0
	for i, sp := range species {
		share := shares[i] / totalShare * float64(total)
		base := int(math.Floor(share))
		allocs = append(allocs, alloc{idx: i, key: sp.Key, count: base, remainder: share - float64(base)})
		assigned += base
	}
	left := total - assigned
	sort.SliceStable(allocs, func(i, j int) bool {
		if allocs[i].remainder == allocs[j].remainder {
			return allocs[i].key < allocs[j].key
		}
		return allocs[i].remainder > allocs[j].remainder
	})
	for i := 0; i < left; i++ {
		allocs[i%len(allocs)].count++
	}
	for _, item := range allocs {
		species[item.idx].OffspringCount = float64(item.count)
	}
}
