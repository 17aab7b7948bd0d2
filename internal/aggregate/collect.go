// Package aggregate merges per-worker snapshots into a fleet timing table and
// derives phase statistics, throughput projections and the XEB fidelity.
package aggregate

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/osvaldoandrade/xebench/internal/metrics"
	"github.com/osvaldoandrade/xebench/internal/tracker"
	"github.com/osvaldoandrade/xebench/pkg/domain"
)

const unknownID = "unknown"

// Timings is the merged table plus the files that could not be read.
type Timings struct {
	Rows    []domain.AggregateRow
	Workers int
	Skipped []domain.SkippedFile
}

// discover returns the files in dir matching glob, sorted, minus excluded base names.
func discover(dir, glob string, exclude map[string]bool) ([]string, error) {
	paths, err := filepath.Glob(filepath.Join(dir, glob))
	if err != nil {
		return nil, fmt.Errorf("bad pattern %q: %w", glob, err)
	}
	out := paths[:0]
	for _, p := range paths {
		if exclude[filepath.Base(p)] {
			continue
		}
		if fi, err := os.Stat(p); err == nil && fi.IsDir() {
			continue
		}
		out = append(out, p)
	}
	sort.Strings(out)
	return out, nil
}

// CollectTimings reads every snapshot in the logs directory and flattens the
// completed tasks into rows sorted by start time. Unreadable snapshots are
// skipped and reported, never fatal.
func (a *Aggregator) CollectTimings(ctx context.Context) (Timings, error) {
	_, span := a.tracer.Start(ctx, "xebench.aggregate.collect")
	defer span.End()

	paths, err := discover(a.opts.LogsDir, a.opts.SnapshotGlob, a.exclude())
	if err != nil {
		return Timings{}, err
	}

	var out Timings
	a.progress(0, len(paths))
	for i, p := range paths {
		run, err := tracker.ReadSnapshot(p)
		a.progress(i+1, len(paths))
		if err != nil {
			a.logger.Warn("skipping snapshot", "path", p, "err", err)
			metrics.AggregateFilesTotal.WithLabelValues("skipped").Inc()
			out.Skipped = append(out.Skipped, domain.SkippedFile{Path: p, Reason: err.Error()})
			continue
		}
		metrics.AggregateFilesTotal.WithLabelValues("read").Inc()
		out.Workers++
		out.Rows = append(out.Rows, flatten(run, p)...)
	}
	SortRows(out.Rows)
	a.logger.Info("collected timings", "files", len(paths), "rows", len(out.Rows), "skipped", len(out.Skipped))
	return out, nil
}

func flatten(run domain.WorkerRun, source string) []domain.AggregateRow {
	jobID := firstNonEmpty(run.Scheduler.Job, run.JobID, unknownID)
	taskID := firstNonEmpty(run.Scheduler.Task, unknownID)
	rows := make([]domain.AggregateRow, 0, len(run.Tasks))
	for _, t := range run.Tasks {
		rows = append(rows, domain.AggregateRow{
			JobID:    jobID,
			TaskID:   taskID,
			TaskType: t.TaskType,
			Start:    t.Start,
			End:      t.End,
			Duration: t.Duration,
			Metadata: t.Metadata,
			Source:   source,
		})
	}
	return rows
}

// SortRows orders rows by start time. Ties fall back to identifiers so the
// result does not depend on file discovery order.
func SortRows(rows []domain.AggregateRow) {
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if !a.Start.Equal(b.Start) {
			return a.Start.Before(b.Start)
		}
		if a.JobID != b.JobID {
			return a.JobID < b.JobID
		}
		if a.TaskID != b.TaskID {
			return a.TaskID < b.TaskID
		}
		if a.TaskType != b.TaskType {
			return a.TaskType < b.TaskType
		}
		return a.Source < b.Source
	})
}

// ScanIncomplete reads every worker event log and returns tasks that logged a
// START but never a FINISH. These never reach a snapshot, so the logs are the
// only place they show up.
func (a *Aggregator) ScanIncomplete(ctx context.Context) ([]domain.IncompleteTask, []domain.SkippedFile, error) {
	_, span := a.tracer.Start(ctx, "xebench.aggregate.incomplete")
	defer span.End()

	paths, err := discover(a.opts.LogsDir, a.opts.EventLogGlob, nil)
	if err != nil {
		return nil, nil, err
	}
	var out []domain.IncompleteTask
	var skipped []domain.SkippedFile
	for _, p := range paths {
		f, err := os.Open(p)
		if err != nil {
			skipped = append(skipped, domain.SkippedFile{Path: p, Reason: err.Error()})
			continue
		}
		events, err := tracker.ReadEvents(f)
		_ = f.Close()
		if err != nil {
			a.logger.Warn("skipping event log", "path", p, "err", err)
			skipped = append(skipped, domain.SkippedFile{Path: p, Reason: err.Error()})
			continue
		}
		for _, ev := range tracker.Unfinished(events) {
			it := domain.IncompleteTask{Source: p, TaskType: ev.TaskType, Start: ev.Time}
			if len(ev.Extra) > 0 {
				it.Metadata = domain.Metadata{}
				for k, raw := range ev.Extra {
					var v domain.Value
					if err := v.UnmarshalJSON(raw); err == nil {
						it.Metadata[k] = v
					}
				}
			}
			a.logger.Warn("task never finished", "path", p, "task_type", ev.TaskType, "start", domain.FormatTimestamp(ev.Time))
			out = append(out, it)
		}
	}
	return out, skipped, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
