// Package runner implements the two worker programs: prepare computes the
// first shot and saves the simulation state, measure reloads that state and
// samples it.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/osvaldoandrade/xebench/internal/backend"
	"github.com/osvaldoandrade/xebench/pkg/config"
	"github.com/osvaldoandrade/xebench/pkg/domain"
)

// Task names written by the worker programs.
const (
	TaskOptimization    = "Optimization"
	TaskFirstShot       = "Execution (First Shot)"
	TaskWriteState      = "Write State"
	TaskLoadingState    = "Loading State"
	TaskSubsequentShots = "Subsequent Shots"
)

// ErrInputNotFound is returned when a required input file does not exist.
var ErrInputNotFound = errors.New("input not found")

// Recorder is the part of the tracker the programs need.
type Recorder interface {
	Run(ctx context.Context, taskType string, meta domain.Metadata, fn func(context.Context) error) error
	Flush() error
}

// Paths are the files one worker reads and writes.
type Paths struct {
	Circuit   string
	Amplitude string
	State     string
}

// ResolvePaths derives the worker's file paths from config. The circuit must
// exist.
func ResolvePaths(cfg *config.Config, jobID string) (Paths, error) {
	name := fmt.Sprintf(cfg.CircuitTemplate, cfg.Qubits)
	stem := strings.TrimSuffix(name, filepath.Ext(name))
	p := Paths{
		Circuit:   filepath.Join(cfg.CircuitDir, name),
		Amplitude: filepath.Join(cfg.LogsDir, fmt.Sprintf("qr_amplitudes_%s_%s.txt", stem, jobID)),
		State:     filepath.Join(cfg.StateDir, fmt.Sprintf("qr_state_%s.bin", stem)),
	}
	if err := requireFile(p.Circuit); err != nil {
		return Paths{}, err
	}
	return p, nil
}

func requireFile(path string) error {
	fi, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrInputNotFound, path)
	}
	if err != nil {
		return err
	}
	if fi.IsDir() {
		return fmt.Errorf("%w: %s is a directory", ErrInputNotFound, path)
	}
	return nil
}

type Runner struct {
	Backend  backend.Backend
	Recorder Recorder
	Paths    Paths
	Config   *config.Config
	Logger   *slog.Logger
}

func (r *Runner) logger() *slog.Logger {
	if r.Logger == nil {
		return slog.Default()
	}
	return r.Logger
}

// CheckState verifies the saved state exists before a measurement starts.
func (r *Runner) CheckState() error { return requireFile(r.Paths.State) }

// Prepare optimizes the circuit, executes one shot and saves the state.
func (r *Runner) Prepare(ctx context.Context) error {
	err := r.Recorder.Run(ctx, r.Config.SetupTaskType, nil, func(ctx context.Context) error {
		r.logger().Info("preparing state", "circuit", r.Paths.Circuit, "state", r.Paths.State, "device", r.Config.Backend.SetupDevice)

		var circ backend.Circuit
		if err := r.Recorder.Run(ctx, TaskOptimization, nil, func(ctx context.Context) error {
			var err error
			circ, err = r.Backend.Optimize(ctx, r.Paths.Circuit)
			return err
		}); err != nil {
			return err
		}
		r.logger().Info("Circuit optimized. Sending for execution.")

		var res backend.Result
		if err := r.Recorder.Run(ctx, TaskFirstShot, nil, func(ctx context.Context) error {
			var err error
			res, err = r.Backend.Execute(ctx, circ, 1)
			return err
		}); err != nil {
			return err
		}

		return r.Recorder.Run(ctx, TaskWriteState, nil, func(ctx context.Context) error {
			if err := os.MkdirAll(filepath.Dir(r.Paths.State), 0o755); err != nil {
				return err
			}
			return r.Backend.SaveState(ctx, res, r.Paths.State)
		})
	})
	return r.flush(err)
}

// Measure reloads the saved state and samples it for shots, replacing any
// amplitude file left by an earlier run of the same job.
func (r *Runner) Measure(ctx context.Context, shots int) error {
	if shots <= 0 {
		return fmt.Errorf("shots must be positive, got %d", shots)
	}
	meta := domain.Metadata{domain.MetaShots: domain.Int(int64(shots))}
	err := r.Recorder.Run(ctx, r.Config.MeasurementTaskType, meta, func(ctx context.Context) error {
		r.logger().Info("measuring", "state", r.Paths.State, "amplitudes", r.Paths.Amplitude, "shots", shots, "device", r.Config.Backend.SamplingDevice)
		if err := os.Remove(r.Paths.Amplitude); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("remove stale amplitudes: %w", err)
		}

		var circ backend.Circuit
		if err := r.Recorder.Run(ctx, TaskLoadingState, nil, func(ctx context.Context) error {
			var err error
			circ, err = r.Backend.LoadState(ctx, r.Paths.State)
			return err
		}); err != nil {
			return err
		}

		return r.Recorder.Run(ctx, TaskSubsequentShots, nil, func(ctx context.Context) error {
			return r.Backend.Sample(ctx, circ, shots, r.Paths.Amplitude)
		})
	})
	return r.flush(err)
}

func (r *Runner) flush(err error) error {
	if ferr := r.Recorder.Flush(); ferr != nil {
		return errors.Join(err, ferr)
	}
	return err
}
