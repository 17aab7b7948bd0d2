package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/osvaldoandrade/xebench/internal/aggregate"
	"github.com/osvaldoandrade/xebench/internal/services"
	"github.com/osvaldoandrade/xebench/internal/xeb"
	"github.com/osvaldoandrade/xebench/pkg/app"
)

func postprocessCmd(cfgPath *string, ui *ui) *cobra.Command {
	var (
		logsDir string
		noStore bool
	)
	cmd := &cobra.Command{
		Use:   "postprocess",
		Short: "Aggregate worker snapshots into timing, throughput and fidelity reports",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			env, err := setup(ctx, *cfgPath, "postprocess")
			if err != nil {
				return err
			}
			defer env.close("xebench_postprocess")
			if logsDir != "" {
				env.cfg.LogsDir = logsDir
			}
			if fi, err := os.Stat(env.cfg.LogsDir); err != nil || !fi.IsDir() {
				return fmt.Errorf("logs directory %s not found", env.cfg.LogsDir)
			}

			consolePath := filepath.Join(env.cfg.LogsDir, aggregate.ConsoleFile)
			console, err := os.Create(consolePath)
			if err != nil {
				return fmt.Errorf("open console mirror: %w", err)
			}
			defer console.Close()
			// Mirrored output must stay readable in the text file.
			color.NoColor = true
			out := io.MultiWriter(os.Stdout, console)

			opts := aggregate.OptionsFromConfig(env.cfg)
			opts.Logger = env.logger
			opts.Exclude = []string{aggregate.ConsoleFile}
			var bar *progressbar.ProgressBar
			if isTerminal(int(os.Stdout.Fd())) {
				opts.Progress = func(done, total int) {
					if bar == nil {
						bar = progressbar.NewOptions(total,
							progressbar.OptionSetDescription("Reading snapshots"),
							progressbar.OptionSetWidth(18),
							progressbar.OptionShowCount(),
							progressbar.OptionClearOnFinish(),
						)
					}
					_ = bar.Set(done)
				}
			}

			res, err := aggregate.New(opts).Run(ctx)
			if bar != nil {
				_ = bar.Finish()
			}
			if err != nil {
				return err
			}
			renderReport(out, res, *env.cfg.SummaryDigits, ui)

			if noStore {
				return nil
			}
			store, err := app.OpenStore(env.cfg)
			if err != nil {
				return fmt.Errorf("open report store: %w", err)
			}
			if store == nil {
				return nil
			}
			defer store.Close()
			if err := services.NewReportService(store, env.logger).Save(ctx, &res.Report); err != nil {
				return err
			}
			fmt.Fprintf(out, "%s Report %s stored in %s\n", ui.ok("[OK]"), res.Report.ID, env.cfg.Persistence.Type)
			return nil
		},
	}
	cmd.Flags().StringVar(&logsDir, "logs-dir", "", "Override the logs directory")
	cmd.Flags().BoolVar(&noStore, "no-store", false, "Do not save the report to the configured store")
	return cmd
}

func fidelityCmd(cfgPath *string, ui *ui) *cobra.Command {
	return &cobra.Command{
		Use:   "fidelity [amplitude files...]",
		Short: "Estimate the linear XEB fidelity of amplitude files",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			env, err := setup(ctx, *cfgPath, "fidelity")
			if err != nil {
				return err
			}
			defer env.close("xebench_fidelity")

			paths := args
			if len(paths) == 0 {
				paths, err = filepath.Glob(filepath.Join(env.cfg.LogsDir, env.cfg.AmplitudeGlob))
				if err != nil {
					return err
				}
				sort.Strings(paths)
			}
			if len(paths) == 0 {
				return errors.New("no amplitude files given or found")
			}
			table, err := xeb.LoadFiles(paths...)
			if err != nil {
				return err
			}
			fid, err := xeb.Estimate(table)
			if err != nil {
				return err
			}
			renderFidelity(cmd.OutOrStdout(), &fid, ui)
			return nil
		},
	}
}
