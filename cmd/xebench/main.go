package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/osvaldoandrade/xebench/internal/metrics"
	"github.com/osvaldoandrade/xebench/internal/tracing"
	"github.com/osvaldoandrade/xebench/pkg/app"
	"github.com/osvaldoandrade/xebench/pkg/config"
	_ "github.com/osvaldoandrade/xebench/pkg/persistence/memory" // Register in-process report store
	_ "github.com/osvaldoandrade/xebench/pkg/persistence/redis"  // Register Redis report store
)

// Set with -ldflags "-X main.version=...".
var version = "dev"

type ui struct {
	title func(a ...any) string
	ok    func(a ...any) string
	info  func(a ...any) string
	warn  func(a ...any) string
	err   func(a ...any) string
	dim   func(a ...any) string
}

func newUI() *ui {
	return &ui{
		title: color.New(color.FgHiCyan, color.Bold).SprintFunc(),
		ok:    color.New(color.FgGreen, color.Bold).SprintFunc(),
		info:  color.New(color.FgCyan).SprintFunc(),
		warn:  color.New(color.FgYellow).SprintFunc(),
		err:   color.New(color.FgRed, color.Bold).SprintFunc(),
		dim:   color.New(color.FgHiBlack).SprintFunc(),
	}
}

// runtimeEnv is what every subcommand needs after config is loaded.
type runtimeEnv struct {
	cfg      *config.Config
	identity config.WorkerIdentity
	logger   *slog.Logger
	shutdown func(context.Context) error
}

func setup(ctx context.Context, cfgPath, component string) (*runtimeEnv, error) {
	cfg, err := config.LoadConfigOptional(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	id := config.ResolveIdentity()
	logger := app.NewLogger(cfg, os.Stderr, component).With("job_id", id.JobID)
	slog.SetDefault(logger)

	shutdown, err := tracing.Setup(ctx, "xebench-"+component, cfg.Tracing, id, logger)
	if err != nil {
		return nil, err
	}
	return &runtimeEnv{cfg: cfg, identity: id, logger: logger, shutdown: shutdown}, nil
}

// close pushes metrics and flushes traces. Failures are logged, not returned.
func (e *runtimeEnv) close(job string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := metrics.Push(ctx, e.cfg.PushgatewayURL, job, e.identity.JobID); err != nil {
		e.logger.Warn("metrics push failed", "err", err)
	}
	if err := e.shutdown(ctx); err != nil {
		e.logger.Warn("trace flush failed", "err", err)
	}
}

func main() {
	_ = godotenv.Load()
	cfgPath := getenv("XEBENCH_CONFIG_PATH", "")
	ui := newUI()

	root := &cobra.Command{
		Use:   "xebench",
		Short: "XEB benchmark worker and aggregator",
		Long:  "xebench runs instrumented simulator workers and aggregates their timings and fidelity.",
	}
	root.SetHelpTemplate(helpTemplate(ui))
	root.SilenceUsage = true
	root.SilenceErrors = true
	root.PersistentFlags().StringVar(&cfgPath, "config", cfgPath, "Path to config YAML")

	root.AddCommand(prepareCmd(&cfgPath, ui))
	root.AddCommand(measureCmd(&cfgPath, ui))
	root.AddCommand(postprocessCmd(&cfgPath, ui))
	root.AddCommand(fidelityCmd(&cfgPath, ui))
	root.AddCommand(versionCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, ui.err("[ERROR]"), err.Error())
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "xebench %s (%s %s/%s)\n", version, runtime.Version(), runtime.GOOS, runtime.GOARCH)
		},
	}
}

// withSpinner shows a spinner on interactive terminals while fn runs.
func withSpinner(msg string, fn func() error) error {
	if !isTerminal(int(os.Stdout.Fd())) {
		return fn()
	}
	spin := spinner.New(spinner.CharSets[14], 120*time.Millisecond)
	spin.Suffix = " " + msg
	spin.Start()
	err := fn()
	spin.Stop()
	return err
}

func helpTemplate(ui *ui) string {
	title := ui.title("xebench")
	return fmt.Sprintf(`%s: cross-entropy benchmarking toolkit

Usage:
  {{.UseLine}}

Commands:
{{range .Commands}}{{if (or .IsAvailableCommand .IsAdditionalHelpTopicCommand)}}
  {{rpad .Name .NamePadding }} {{.Short}}{{end}}{{end}}

Flags:
  {{.LocalFlags.FlagUsages | trimTrailingWhitespaces}}

Global Flags:
  {{.InheritedFlags.FlagUsages | trimTrailingWhitespaces}}

Environment:
  XEBENCH_CONFIG_PATH, XEBENCH_LOGS_DIR, SLURM_JOB_ID, SLURM_ARRAY_TASK_ID

Examples:
  xebench prepare
  xebench measure --shots 1000
  xebench postprocess
  xebench fidelity logs/qr_amplitudes_combined.txt

`, title)
}

func getenv(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}

func isTerminal(fd int) bool {
	return term.IsTerminal(fd)
}
