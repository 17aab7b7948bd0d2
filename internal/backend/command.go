package backend

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// Command drives an external simulator executable, one verb per call:
//
//	<command> optimize   --device D --circuit PATH          -> prints circuit handle
//	<command> execute    --device D --circuit H --shots N   -> prints result handle
//	<command> save-state --device D --result H --out PATH
//	<command> load-state --device D --state PATH            -> prints circuit handle
//	<command> sample     --device D --circuit H --shots N --out PATH
//
// Command may contain leading arguments, e.g. "python3 sim.py".
type Command struct {
	Command string
	// Device is passed to optimize, execute and save-state.
	Device string
	// SamplingDevice is passed to load-state and sample. Falls back to Device.
	SamplingDevice string
	Timeout        time.Duration
	Logger         *slog.Logger
}

type CommandResult struct {
	Args   []string
	Output string
}

func (c *Command) run(ctx context.Context, verb string, device string, args ...string) (CommandResult, error) {
	fields := strings.Fields(c.Command)
	if len(fields) == 0 {
		return CommandResult{}, ErrNoCommand
	}
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}
	argv := append(fields[1:len(fields):len(fields)], verb)
	if device != "" {
		argv = append(argv, "--device", device)
	}
	argv = append(argv, args...)

	logger := c.Logger
	if logger == nil {
		logger = slog.Default()
	}
	start := time.Now()
	cmd := exec.CommandContext(ctx, fields[0], argv...)
	cmd.WaitDelay = time.Second
	out, err := cmd.Output()
	result := CommandResult{Args: argv, Output: strings.TrimSpace(string(out))}
	logger.Debug("backend call", "verb", verb, "elapsed", time.Since(start), "err", err)
	if ctx.Err() == context.DeadlineExceeded {
		return result, fmt.Errorf("backend %s: timeout after %s", verb, c.Timeout)
	}
	if err != nil {
		if ee, ok := err.(*exec.ExitError); ok && len(ee.Stderr) > 0 {
			return result, fmt.Errorf("backend %s: %w: %s", verb, err, strings.TrimSpace(string(ee.Stderr)))
		}
		return result, fmt.Errorf("backend %s: %w", verb, err)
	}
	return result, nil
}

func (c *Command) sampling() string {
	if c.SamplingDevice != "" {
		return c.SamplingDevice
	}
	return c.Device
}

func (c *Command) Optimize(ctx context.Context, path string) (Circuit, error) {
	res, err := c.run(ctx, "optimize", c.Device, "--circuit", path)
	if err != nil {
		return Circuit{}, err
	}
	return Circuit{Source: path, Handle: handleOr(res.Output, path)}, nil
}

func (c *Command) Execute(ctx context.Context, circ Circuit, shots int) (Result, error) {
	res, err := c.run(ctx, "execute", c.Device, "--circuit", circ.Handle, "--shots", strconv.Itoa(shots))
	if err != nil {
		return Result{}, err
	}
	return Result{Handle: handleOr(res.Output, circ.Handle)}, nil
}

func (c *Command) SaveState(ctx context.Context, r Result, statePath string) error {
	_, err := c.run(ctx, "save-state", c.Device, "--result", r.Handle, "--out", statePath)
	return err
}

func (c *Command) LoadState(ctx context.Context, statePath string) (Circuit, error) {
	res, err := c.run(ctx, "load-state", c.sampling(), "--state", statePath)
	if err != nil {
		return Circuit{}, err
	}
	return Circuit{Source: statePath, Handle: handleOr(res.Output, statePath)}, nil
}

func (c *Command) Sample(ctx context.Context, circ Circuit, shots int, amplitudePath string) error {
	_, err := c.run(ctx, "sample", c.sampling(), "--circuit", circ.Handle, "--shots", strconv.Itoa(shots), "--out", amplitudePath)
	return err
}

// handleOr returns the last output line, or fallback when there is none.
func handleOr(out, fallback string) string {
	if out == "" {
		return fallback
	}
	lines := strings.Split(out, "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}
