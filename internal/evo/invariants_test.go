package evo

import (
	"errors"
	"testing"
)

func TestCheckInvariants(t *testing.T) {
	genomes := scoredGenomes(1, 2, 3)
	worse := scoredGenomes(5)[0]

	cases := []struct {
		name      string
		out       generationOutcome[*testGenome]
		invariant string
	}{
		{
			name: "valid",
			out: generationOutcome[*testGenome]{
				populationLen: 3, next: genomes,
				oldBest: genomes[0], hasOldBest: true,
				best: genomes[0], hasBest: true,
			},
		},
		{
			name:      "size",
			out:       generationOutcome[*testGenome]{populationLen: 4, next: genomes},
			invariant: InvariantPopulationSize,
		},
		{
			name: "duplicate",
			out: generationOutcome[*testGenome]{
				populationLen: 3, next: []*testGenome{genomes[0], genomes[1], genomes[0]},
			},
			invariant: InvariantUniqueMembers,
		},
		{
			name: "elite missing",
			out: generationOutcome[*testGenome]{
				populationLen: 2, next: genomes[1:],
				oldBest: genomes[0], hasOldBest: true,
				best: genomes[1], hasBest: true,
			},
			invariant: InvariantEliteRetained,
		},
		{
			name: "regressed",
			out: generationOutcome[*testGenome]{
				populationLen: 3, next: genomes,
				oldBest: genomes[0], hasOldBest: true,
				best: worse, hasBest: true,
			},
			invariant: InvariantMonotonicBest,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := checkInvariants(Objective{Minimize: true}, tc.out)
			if tc.invariant == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			var invErr *InvariantError
			if !errors.As(err, &invErr) {
				t.Fatalf("expected invariant error, got %v", err)
			}
			if invErr.Invariant != tc.invariant {
				t.Fatalf("invariant=%s want %s", invErr.Invariant, tc.invariant)
			}
			if !errors.Is(err, ErrInvariantViolation) {
				t.Fatalf("expected error to wrap ErrInvariantViolation: %v", err)
			}
		})
	}
}
