package evo

import (
	"math"
	"sort"

	"speciestrainer/internal/model"
)

// Objective orders scores according to the configured direction.
type Objective struct {
	Minimize bool
}

// IsBetter reports whether score a is strictly better than b. NaN is never
// better than anything, and any number beats NaN.
func (o Objective) IsBetter(a, b float64) bool {
	if math.IsNaN(a) {
		return false
	}
	if math.IsNaN(b) {
		return true
	}
	if o.Minimize {
		return a < b
	}
	return a > b
}

// WorstScore is the score reported before anything has been evaluated.
func (o Objective) WorstScore() float64 {
	if o.Minimize {
		return math.Inf(1)
	}
	return math.Inf(-1)
}

// SortBestFirst orders genomes best to worst. The sort is stable so that
// equal scores keep their incoming order.
func SortBestFirst[G model.Genome](o Objective, genomes []G) {
	sort.SliceStable(genomes, func(i, j int) bool {
		return o.IsBetter(genomes[i].Score(), genomes[j].Score())
	})
}

// BestOf returns the best genome of the slice.
func BestOf[G model.Genome](o Objective, genomes []G) (G, bool) {
	var best G
	if len(genomes) == 0 {
		return best, false
	}
	best = genomes[0]
	for _, g := range genomes[1:] {
		if o.IsBetter(g.Score(), best.Score()) {
			best = g
		}
	}
	return best, true
}
