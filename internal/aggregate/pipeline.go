package aggregate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/osvaldoandrade/xebench/internal/fileutil"
	"github.com/osvaldoandrade/xebench/internal/metrics"
	"github.com/osvaldoandrade/xebench/internal/xeb"
	"github.com/osvaldoandrade/xebench/pkg/config"
	"github.com/osvaldoandrade/xebench/pkg/domain"
)

// Output file names, relative to the logs directory.
const (
	TimingsFile    = "task_timings_summary.csv"
	PhaseStatsFile = "job_stats_summary.csv"
	ShotsFile      = "shots_vs_jobs_summary.csv"
	ReportFile     = "postprocess_report.json"
	ConsoleFile    = "postprocess_output.txt"
)

// ErrNoAmplitudes is reported when no amplitude files exist. Run treats it as
// a warning and skips the fidelity estimate.
var ErrNoAmplitudes = errors.New("no amplitude files found")

type Options struct {
	LogsDir               string
	SnapshotGlob          string
	EventLogGlob          string
	AmplitudeGlob         string
	CombinedAmplitudeFile string
	// Exclude lists extra base names that match SnapshotGlob but are not
	// worker snapshots.
	Exclude []string

	SetupTaskType       string
	MeasurementTaskType string
	TargetSamples       int64
	SummaryDigits       int
	SamplingDigits      int

	Logger *slog.Logger
	Now    func() time.Time
	// Progress is called as snapshot files are read.
	Progress func(done, total int)
}

// OptionsFromConfig maps a loaded config onto aggregator options.
func OptionsFromConfig(cfg *config.Config) Options {
	o := Options{
		LogsDir:               cfg.LogsDir,
		SnapshotGlob:          cfg.SnapshotGlob,
		EventLogGlob:          cfg.EventLogGlob,
		AmplitudeGlob:         cfg.AmplitudeGlob,
		CombinedAmplitudeFile: cfg.CombinedAmplitudeFile,
		SetupTaskType:         cfg.SetupTaskType,
		MeasurementTaskType:   cfg.MeasurementTaskType,
		TargetSamples:         cfg.TargetSamples,
	}
	if cfg.SummaryDigits != nil {
		o.SummaryDigits = *cfg.SummaryDigits
	}
	if cfg.SamplingDigits != nil {
		o.SamplingDigits = *cfg.SamplingDigits
	}
	return o
}

type Aggregator struct {
	opts   Options
	logger *slog.Logger
	tracer trace.Tracer
}

// Result carries the report together with the merged rows and any warnings
// raised along the way.
type Result struct {
	Report    domain.Report
	Rows      []domain.AggregateRow
	Warnings  Warnings
	Artifacts []string
}

func New(opts Options) *Aggregator {
	if opts.SnapshotGlob == "" {
		opts.SnapshotGlob = "*.json"
	}
	if opts.EventLogGlob == "" {
		opts.EventLogGlob = "*.log"
	}
	if opts.AmplitudeGlob == "" {
		opts.AmplitudeGlob = "qr_amplitudes_circuit_*.txt"
	}
	if opts.CombinedAmplitudeFile == "" {
		opts.CombinedAmplitudeFile = "qr_amplitudes_combined.txt"
	}
	if opts.SetupTaskType == "" {
		opts.SetupTaskType = "First Shot Overall"
	}
	if opts.MeasurementTaskType == "" {
		opts.MeasurementTaskType = "Subsequent Shots Overall"
	}
	if opts.TargetSamples <= 0 {
		opts.TargetSamples = 2_500_000
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Aggregator{
		opts:   opts,
		logger: opts.Logger,
		tracer: otel.Tracer("xebench/aggregate"),
	}
}

func (a *Aggregator) exclude() map[string]bool {
	m := map[string]bool{ReportFile: true}
	for _, name := range a.opts.Exclude {
		m[name] = true
	}
	return m
}

func (a *Aggregator) progress(done, total int) {
	if a.opts.Progress != nil {
		a.opts.Progress(done, total)
	}
}

func (a *Aggregator) path(name string) string { return filepath.Join(a.opts.LogsDir, name) }

// Run performs one aggregation pass over the logs directory and writes every
// artifact next to the inputs. Corrupt snapshots and missing amplitude files
// only produce warnings; an unusable frequency table is fatal.
func (a *Aggregator) Run(ctx context.Context) (Result, error) {
	ctx, span := a.tracer.Start(ctx, "xebench.aggregate")
	defer span.End()

	res, err := a.run(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return res, err
	}
	span.SetAttributes(
		attribute.Int("xebench.rows", res.Report.Rows),
		attribute.Int("xebench.skipped", len(res.Report.Skipped)),
	)
	return res, nil
}

func (a *Aggregator) run(ctx context.Context) (Result, error) {
	timings, err := a.CollectTimings(ctx)
	if err != nil {
		return Result{}, err
	}
	res := Result{
		Rows: timings.Rows,
		Report: domain.Report{
			ID:        uuid.NewString(),
			CreatedAt: a.opts.Now().UTC(),
			Rows:      len(timings.Rows),
			Workers:   timings.Workers,
			Skipped:   timings.Skipped,
		},
	}
	for _, s := range timings.Skipped {
		res.Warnings = append(res.Warnings, fmt.Sprintf("skipped %s: %s", s.Path, s.Reason))
	}

	if err := a.writeCSV(&res, TimingsFile, func(w io.Writer) error { return WriteTimingsCSV(w, timings.Rows) }); err != nil {
		return res, err
	}

	incomplete, badLogs, err := a.ScanIncomplete(ctx)
	if err != nil {
		return res, err
	}
	res.Report.Incomplete = incomplete
	res.Report.Skipped = append(res.Report.Skipped, badLogs...)
	for _, it := range incomplete {
		res.Warnings = append(res.Warnings, fmt.Sprintf("task '%s' started at %s never finished (%s)",
			it.TaskType, domain.FormatTimestamp(it.Start), filepath.Base(it.Source)))
	}

	phases, warn := PhaseStatistics(timings.Rows, a.opts.SetupTaskType, a.opts.MeasurementTaskType)
	for _, w := range warn {
		a.logger.Warn(w)
	}
	res.Warnings = append(res.Warnings, warn...)
	res.Report.Phases = phases
	if err := a.writeCSV(&res, PhaseStatsFile, func(w io.Writer) error {
		return WritePhaseStatsCSV(w, phases, a.opts.SummaryDigits)
	}); err != nil {
		return res, err
	}

	res.Report.Timeline = FleetTimeline(timings.Rows, a.opts.SetupTaskType, a.opts.MeasurementTaskType)

	groups := ShotsVsJobs(timings.Rows, a.opts.MeasurementTaskType, a.opts.TargetSamples, a.opts.SamplingDigits)
	res.Report.ShotGroups = groups
	if err := a.writeCSV(&res, ShotsFile, func(w io.Writer) error { return WriteShotsCSV(w, groups) }); err != nil {
		return res, err
	}

	fid, err := a.Fidelity(ctx)
	switch {
	case errors.Is(err, ErrNoAmplitudes):
		a.logger.Warn("fidelity skipped", "reason", err)
		res.Warnings = append(res.Warnings, "fidelity skipped: "+err.Error())
	case err != nil:
		return res, err
	default:
		res.Report.Fidelity = &fid
		res.Artifacts = append(res.Artifacts, a.path(a.opts.CombinedAmplitudeFile))
	}

	data, err := json.MarshalIndent(res.Report, "", "  ")
	if err != nil {
		return res, fmt.Errorf("encode report: %w", err)
	}
	if err := fileutil.WriteAtomic(a.path(ReportFile), append(data, '\n')); err != nil {
		return res, fmt.Errorf("write report: %w", err)
	}
	res.Artifacts = append(res.Artifacts, a.path(ReportFile))
	a.logger.Info("aggregation complete", "report_id", res.Report.ID, "rows", res.Report.Rows)
	return res, nil
}

func (a *Aggregator) writeCSV(res *Result, name string, fill func(io.Writer) error) error {
	p := a.path(name)
	if err := fileutil.WriteAtomicFunc(p, fill); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	res.Artifacts = append(res.Artifacts, p)
	return nil
}

// Fidelity combines the per-worker amplitude files and estimates the linear
// XEB fidelity over the merged frequency table.
func (a *Aggregator) Fidelity(ctx context.Context) (domain.FidelityResult, error) {
	_, span := a.tracer.Start(ctx, "xebench.aggregate.fidelity")
	defer span.End()

	combined := a.opts.CombinedAmplitudeFile
	paths, err := discover(a.opts.LogsDir, a.opts.AmplitudeGlob, map[string]bool{filepath.Base(combined): true})
	if err != nil {
		return domain.FidelityResult{}, err
	}
	if len(paths) == 0 {
		return domain.FidelityResult{}, fmt.Errorf("%w matching %s", ErrNoAmplitudes, a.opts.AmplitudeGlob)
	}
	dst := a.path(combined)
	if err := CombineFiles(dst, paths); err != nil {
		return domain.FidelityResult{}, fmt.Errorf("combine amplitudes: %w", err)
	}
	a.logger.Info("combined amplitude files", "files", len(paths), "dest", dst)

	table, err := xeb.LoadFiles(dst)
	if err != nil {
		return domain.FidelityResult{}, err
	}
	fid, err := xeb.Estimate(table)
	if err != nil {
		return domain.FidelityResult{}, fmt.Errorf("estimate fidelity: %w", err)
	}
	metrics.FidelityXEB.Set(fid.XEB)
	span.SetAttributes(attribute.Float64("xebench.xeb", fid.XEB), attribute.Int64("xebench.samples", fid.Samples))
	a.logger.Info("estimated fidelity", "qubits", fid.Qubits, "samples", fid.Samples, "xeb", fid.XEB)
	return fid, nil
}
