package evo

import (
	"fmt"
	"math"
	"math/rand"

	"speciestrainer/internal/model"
)

// Species members are ranked best to worst, so every selector below works on
// member indices and a lower index always means a fitter genome.

// TournamentSelection samples Rounds members and keeps the best of them.
type TournamentSelection[G model.Genome] struct {
	Rounds int
}

func (TournamentSelection[G]) Name() string {
	return "tournament"
}

func (s TournamentSelection[G]) PerformSelection(rng *rand.Rand, species *model.Species[G]) (int, error) {
	if err := checkSelectable(rng, species); err != nil {
		return 0, err
	}
	rounds := s.Rounds
	if rounds <= 0 {
		rounds = 4
	}
	best := rng.Intn(species.Size())
	for i := 1; i < rounds; i++ {
		if candidate := rng.Intn(species.Size()); candidate < best {
			best = candidate
		}
	}
	return best, nil
}

// TruncationSelection picks uniformly from the top Fraction of the species.
// The pool never shrinks below two members when the species has two, so
// two-parent operators can still find a distinct mate.
type TruncationSelection[G model.Genome] struct {
	Fraction float64
}

func (TruncationSelection[G]) Name() string {
	return "truncation"
}

func (s TruncationSelection[G]) PerformSelection(rng *rand.Rand, species *model.Species[G]) (int, error) {
	if err := checkSelectable(rng, species); err != nil {
		return 0, err
	}
	fraction := s.Fraction
	if fraction <= 0 || fraction > 1 {
		fraction = DefaultSurvivalRate
	}
	pool := int(math.Ceil(fraction * float64(species.Size())))
	pool = max(pool, min(2, species.Size()))
	return rng.Intn(pool), nil
}

// RankSelection is fitness-proportionate selection on linear rank weights,
// which keeps it independent of score sign and objective direction.
type RankSelection[G model.Genome] struct{}

func (RankSelection[G]) Name() string {
	return "rank"
}

func (RankSelection[G]) PerformSelection(rng *rand.Rand, species *model.Species[G]) (int, error) {
	if err := checkSelectable(rng, species); err != nil {
		return 0, err
	}
	n := species.Size()
	total := float64(n*(n+1)) / 2
	pick := rng.Float64() * total
	acc := 0.0
	for i := 0; i < n; i++ {
		acc += float64(n - i)
		if pick < acc {
			return i, nil
		}
	}
	return n - 1, nil
}

// NewSelection resolves a selection strategy by name.
func NewSelection[G model.Genome](name string, tournamentRounds int, truncation float64) (Selection[G], error) {
	switch name {
	case "", "tournament":
		return TournamentSelection[G]{Rounds: tournamentRounds}, nil
	case "truncation":
		return TruncationSelection[G]{Fraction: truncation}, nil
	case "rank":
		return RankSelection[G]{}, nil
	default:
		return nil, fmt.Errorf("unsupported selection: %s", name)
	}
}

func checkSelectable[G model.Genome](rng *rand.Rand, species *model.Species[G]) error {
	if rng == nil {
		return fmt.Errorf("random source is required")
	}
	if species.Size() == 0 {
		return fmt.Errorf("cannot select from an empty species")
	}
	return nil
}
