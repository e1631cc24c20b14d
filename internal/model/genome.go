package model

// Genome is the capability the trainer needs from an evolvable candidate.
// Implementations are expected to be pointer types so that equality is
// instance identity.
type Genome interface {
	comparable
	ID() string
	Score() float64
	SetScore(score float64)
	BirthGeneration() int
	SetBirthGeneration(generation int)
	// Canonicalize puts internal substructures in a stable order so that
	// genomes can be compared after reproduction.
	Canonicalize()
}

// Species is an ordered sub-population. Members are kept best to worst.
type Species[G Genome] struct {
	Key            string
	Members        []G
	Representative G
	OffspringCount float64
	CreatedAt      int
}

func (s *Species[G]) Size() int {
	if s == nil {
		return 0
	}
	return len(s.Members)
}

// Leader returns the top-ranked member.
func (s *Species[G]) Leader() (G, bool) {
	var zero G
	if s == nil || len(s.Members) == 0 {
		return zero, false
	}
	return s.Members[0], true
}

// Population is the set of species plus the size every generation must keep.
type Population[G Genome] struct {
	Size    int
	Species []*Species[G]
}

// Genomes flattens the species membership in species order.
func (p *Population[G]) Genomes() []G {
	if p == nil {
		return nil
	}
	total := 0
	for _, sp := range p.Species {
		total += len(sp.Members)
	}
	out := make([]G, 0, total)
	for _, sp := range p.Species {
		out = append(out, sp.Members...)
	}
	return out
}

// Count returns the number of genomes across all species.
func (p *Population[G]) Count() int {
	if p == nil {
		return 0
	}
	total := 0
	for _, sp := range p.Species {
		total += len(sp.Members)
	}
	return total
}
