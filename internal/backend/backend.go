// Package backend adapts the quantum simulator that the worker programs drive.
// The worker never looks inside circuits, results or state files; it only
// passes their handles and paths back to the backend.
package backend

import (
	"context"
	"errors"
)

// ErrNoCommand is returned when the command backend has nothing to execute.
var ErrNoCommand = errors.New("backend command not configured")

// Circuit is an opaque handle to a loaded circuit.
type Circuit struct {
	Source string
	Handle string
}

// Result is an opaque handle to an executed circuit.
type Result struct {
	Handle string
}

type Backend interface {
	// Optimize loads and optimizes the circuit at path.
	Optimize(ctx context.Context, path string) (Circuit, error)
	// Execute runs c for shots without measuring.
	Execute(ctx context.Context, c Circuit, shots int) (Result, error)
	// SaveState writes the simulation state of r to statePath.
	SaveState(ctx context.Context, r Result, statePath string) error
	// LoadState builds a measured circuit from a saved state.
	LoadState(ctx context.Context, statePath string) (Circuit, error)
	// Sample runs c for shots and appends one amplitude line per outcome to
	// amplitudePath.
	Sample(ctx context.Context, c Circuit, shots int, amplitudePath string) error
}
