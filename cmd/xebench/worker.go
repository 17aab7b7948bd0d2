package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/osvaldoandrade/xebench/internal/backend"
	"github.com/osvaldoandrade/xebench/internal/runner"
	"github.com/osvaldoandrade/xebench/internal/tracker"
)

// newWorker resolves inputs and only then opens the tracker, so a missing
// input never leaves a log or snapshot behind.
func newWorker(env *runtimeEnv, check func(*runner.Runner) error) (*runner.Runner, error) {
	cfg := env.cfg
	paths, err := runner.ResolvePaths(cfg, env.identity.JobID)
	if err != nil {
		return nil, err
	}
	r := &runner.Runner{
		Backend: &backend.Command{
			Command:        cfg.Backend.Command,
			Device:         cfg.Backend.SetupDevice,
			SamplingDevice: cfg.Backend.SamplingDevice,
			Logger:         env.logger,
		},
		Paths:  paths,
		Config: cfg,
		Logger: env.logger,
	}
	if check != nil {
		if err := check(r); err != nil {
			return nil, err
		}
	}
	if err := os.MkdirAll(cfg.LogsDir, 0o755); err != nil {
		return nil, fmt.Errorf("create logs dir: %w", err)
	}
	logPath, snapPath := tracker.Paths(cfg.LogsDir, env.identity.JobID)
	tr, err := tracker.New(tracker.Options{
		LogPath:        logPath,
		SnapshotPath:   snapPath,
		Identity:       env.identity,
		DurationDigits: cfg.DurationDigits,
		Logger:         env.logger,
	})
	if err != nil {
		return nil, err
	}
	r.Recorder = tr
	return r, nil
}

func workerContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func prepareCmd(cfgPath *string, ui *ui) *cobra.Command {
	return &cobra.Command{
		Use:   "prepare",
		Short: "Optimize the circuit, run the first shot and save the state",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := workerContext()
			defer cancel()
			env, err := setup(ctx, *cfgPath, "worker")
			if err != nil {
				return err
			}
			defer env.close("xebench_prepare")
			fmt.Println(ui.dim("Runtime Version:"), runtime.Version())

			r, err := newWorker(env, nil)
			if err != nil {
				return err
			}
			fmt.Printf("%s Circuit: %s\n%s State file: %s\n", ui.info("[INFO]"), r.Paths.Circuit, ui.info("[INFO]"), r.Paths.State)
			if err := withSpinner("Preparing simulation state...", func() error { return r.Prepare(ctx) }); err != nil {
				return err
			}
			fmt.Printf("%s State saved for job %s\n", ui.ok("[OK]"), env.identity.JobID)
			return nil
		},
	}
}

func measureCmd(cfgPath *string, ui *ui) *cobra.Command {
	var shots int
	cmd := &cobra.Command{
		Use:   "measure",
		Short: "Load the saved state and sample it",
		RunE: func(cmd *cobra.Command, args []string) error {
			if shots <= 0 {
				return fmt.Errorf("--shots must be positive")
			}
			ctx, cancel := workerContext()
			defer cancel()
			env, err := setup(ctx, *cfgPath, "worker")
			if err != nil {
				return err
			}
			defer env.close("xebench_measure")
			fmt.Println(ui.dim("Runtime Version:"), runtime.Version())

			r, err := newWorker(env, (*runner.Runner).CheckState)
			if err != nil {
				return err
			}
			fmt.Printf("%s State file: %s\n%s Amplitudes: %s\n", ui.info("[INFO]"), r.Paths.State, ui.info("[INFO]"), r.Paths.Amplitude)
			msg := fmt.Sprintf("Sampling %d shots...", shots)
			if err := withSpinner(msg, func() error { return r.Measure(ctx, shots) }); err != nil {
				return err
			}
			fmt.Printf("%s %d shots sampled for job %s\n", ui.ok("[OK]"), shots, env.identity.JobID)
			return nil
		},
	}
	cmd.Flags().IntVar(&shots, "shots", 0, "Number of shots to sample")
	_ = cmd.MarkFlagRequired("shots")
	return cmd
}
