package evo

import (
	"errors"
	"fmt"
)

var (
	ErrInvariantViolation  = errors.New("generation invariant violated")
	ErrReproductionStalled = errors.New("species reproduction stalled")
	ErrNoSpecies           = errors.New("speciation produced no species")
	ErrTrainerClosed       = errors.New("trainer is closed")
	ErrNotInitialized      = errors.New("trainer is not initialized")
)

// InvariantError describes a broken reproduction contract. It always wraps
// ErrInvariantViolation.
type InvariantError struct {
	Invariant  string
	Generation int
	Detail     string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("%s: generation=%d invariant=%s: %s", ErrInvariantViolation, e.Generation, e.Invariant, e.Detail)
}

func (e *InvariantError) Unwrap() error {
	return ErrInvariantViolation
}

// WorkerError carries the species a failing worker was reproducing.
type WorkerError struct {
	SpeciesKey string
	Err        error
}

func (e *WorkerError) Error() string {
	return fmt.Sprintf("species %s worker: %v", e.SpeciesKey, e.Err)
}

func (e *WorkerError) Unwrap() error {
	return e.Err
}
