// Package tracker records nested task timings for one worker process. Every
// event is appended to a plain-text log and followed by a full rewrite of a
// JSON snapshot, so the run survives the process being killed at any point.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/osvaldoandrade/xebench/internal/metrics"
	"github.com/osvaldoandrade/xebench/pkg/config"
	"github.com/osvaldoandrade/xebench/pkg/domain"
)

var (
	// ErrTaskClosed is returned when a task handle is ended twice.
	ErrTaskClosed = errors.New("task already ended")

	errAborted = errors.New("task aborted by panic")
)

type Options struct {
	LogPath        string
	SnapshotPath   string
	Identity       config.WorkerIdentity
	RuntimeVersion string
	DurationDigits *int // nil means 4
	Logger         *slog.Logger
	Now            func() time.Time
}

// Paths returns the event log and snapshot paths for a job id.
func Paths(logsDir, jobID string) (logPath, snapshotPath string) {
	return filepath.Join(logsDir, jobID+".log"), filepath.Join(logsDir, jobID+".json")
}

type Tracker struct {
	mu     sync.Mutex
	opts   Options
	tasks  []domain.TaskRecord
	logger *slog.Logger
	now    func() time.Time
	tracer trace.Tracer
}

// New opens a tracker and writes the worker-level START line. The log and
// snapshot directories must already exist.
func New(opts Options) (*Tracker, error) {
	if opts.LogPath == "" || opts.SnapshotPath == "" {
		return nil, fmt.Errorf("tracker: log and snapshot paths are required")
	}
	if opts.RuntimeVersion == "" {
		opts.RuntimeVersion = runtime.Version()
	}
	if opts.DurationDigits == nil || *opts.DurationDigits < 0 {
		digits := 4
		opts.DurationDigits = &digits
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	t := &Tracker{
		opts:   opts,
		logger: opts.Logger.With("job_id", opts.Identity.JobID),
		now:    opts.Now,
		tracer: otel.Tracer("xebench/tracker"),
	}
	line, err := formatEvent(t.now(), EventStart, "", nil)
	if err != nil {
		return nil, err
	}
	if err := appendLine(opts.LogPath, line); err != nil {
		return nil, err
	}
	return t, nil
}

// Task is the handle for one in-flight unit of work.
type Task struct {
	tracker  *Tracker
	taskType string
	metadata domain.Metadata
	start    time.Time
	span     trace.Span

	mu    sync.Mutex
	ended bool
}

// Begin starts a task. The returned context carries the task's span so
// nested tasks are parented under it.
func (t *Tracker) Begin(ctx context.Context, taskType string, meta domain.Metadata) (context.Context, *Task, error) {
	attrs := []attribute.KeyValue{
		attribute.String("xebench.task_type", taskType),
		attribute.String("xebench.job_id", t.opts.Identity.JobID),
	}
	if shots, ok := meta.Shots(); ok {
		attrs = append(attrs, attribute.Int64("xebench.shots", shots))
	}
	ctx, span := t.tracer.Start(ctx, "xebench.task", trace.WithAttributes(attrs...))

	t.mu.Lock()
	defer t.mu.Unlock()

	task := &Task{tracker: t, taskType: taskType, metadata: meta, start: t.now(), span: span}
	var extra any
	if len(meta) > 0 {
		extra = meta
	}
	if err := t.logEventLocked(task.start, EventStart, taskType, extra); err != nil {
		span.RecordError(err)
		span.End()
		return ctx, nil, err
	}
	if err := t.writeSnapshotLocked(); err != nil {
		span.RecordError(err)
		span.End()
		return ctx, nil, err
	}
	metrics.TaskStartedTotal.WithLabelValues(taskType).Inc()
	t.logger.Info("Starting task", "task_type", taskType)
	return ctx, task, nil
}

// End records the task's completion. A second call returns ErrTaskClosed
// and writes nothing.
func (h *Task) End() error { return h.finish(nil) }

// Fail ends the task and marks its span and metrics as failed. The record is
// still appended with its measured duration.
func (h *Task) Fail(cause error) error { return h.finish(cause) }

func (h *Task) finish(cause error) error {
	h.mu.Lock()
	if h.ended {
		h.mu.Unlock()
		return ErrTaskClosed
	}
	h.ended = true
	h.mu.Unlock()

	t := h.tracker
	t.mu.Lock()
	defer t.mu.Unlock()
	defer h.span.End()

	end := t.now()
	elapsed := end.Sub(h.start).Seconds()
	if elapsed < 0 {
		elapsed = 0
	}
	duration := domain.RoundTo(elapsed, *t.opts.DurationDigits)
	rec := domain.TaskRecord{
		TaskType: h.taskType,
		Start:    h.start,
		End:      &end,
		Duration: &duration,
		Metadata: h.metadata,
	}

	outcome := "ok"
	if cause != nil {
		outcome = "error"
		h.span.RecordError(cause)
		h.span.SetStatus(codes.Error, cause.Error())
	}
	h.span.SetAttributes(attribute.Float64("xebench.duration_sec", duration))

	// The record only joins the snapshot once its FINISH line is on disk.
	if err := t.logEventLocked(end, EventFinish, h.taskType, map[string]float64{"duration": duration}); err != nil {
		return err
	}
	t.tasks = append(t.tasks, rec)
	if err := t.writeSnapshotLocked(); err != nil {
		return err
	}
	metrics.TaskFinishedTotal.WithLabelValues(h.taskType, outcome).Inc()
	metrics.TaskDurationSeconds.WithLabelValues(h.taskType).Observe(duration)
	t.logger.Info(fmt.Sprintf("Finished task '%s' in %.4f seconds.", h.taskType, duration),
		"task_type", h.taskType, "duration_sec", duration, "outcome", outcome)
	return nil
}

// Run executes fn as a task. The task is ended on every exit path, including
// a panic in fn, which is re-raised after the end has been recorded.
func (t *Tracker) Run(ctx context.Context, taskType string, meta domain.Metadata, fn func(context.Context) error) (err error) {
	ctx, task, err := t.Begin(ctx, taskType, meta)
	if err != nil {
		return err
	}
	returned := false
	defer func() {
		cause := err
		if !returned {
			cause = errAborted
		}
		if endErr := task.finish(cause); endErr != nil {
			err = errors.Join(err, endErr)
		}
	}()
	err = fn(ctx)
	returned = true
	return err
}

// Flush rewrites the snapshot with the current state.
func (t *Tracker) Flush() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.writeSnapshotLocked()
}

// Snapshot returns the current worker state. In-flight tasks are not included.
func (t *Tracker) Snapshot() domain.WorkerRun {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshotLocked()
}

func (t *Tracker) snapshotLocked() domain.WorkerRun {
	tasks := make([]domain.TaskRecord, len(t.tasks))
	copy(tasks, t.tasks)
	return domain.WorkerRun{
		JobID:     t.opts.Identity.JobID,
		Timestamp: t.now(),
		Scheduler: domain.SchedulerIDs{
			Job:  t.opts.Identity.JobID,
			Task: t.opts.Identity.TaskID,
			Node: t.opts.Identity.Node,
		},
		RuntimeVersion: t.opts.RuntimeVersion,
		Tasks:          tasks,
	}
}

func (t *Tracker) logEventLocked(ts time.Time, kind EventKind, taskType string, extra any) error {
	line, err := formatEvent(ts, kind, taskType, extra)
	if err != nil {
		return err
	}
	return appendLine(t.opts.LogPath, line)
}

func (t *Tracker) writeSnapshotLocked() error {
	if err := writeSnapshot(t.opts.SnapshotPath, t.snapshotLocked()); err != nil {
		return err
	}
	metrics.SnapshotWritesTotal.Inc()
	return nil
}
