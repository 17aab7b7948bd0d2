package domain

import (
	"encoding/json"
	"time"
)

// SchedulerIDs are the batch scheduler identifiers of a worker. Any of them
// may be empty when the worker runs outside the scheduler.
type SchedulerIDs struct {
	Job  string `json:"job"`
	Task string `json:"task"`
	Node string `json:"node"`
}

// WorkerRun is the structured snapshot of one worker process. Tasks holds
// completed tasks only, in completion order.
type WorkerRun struct {
	JobID          string
	Timestamp      time.Time
	Scheduler      SchedulerIDs
	RuntimeVersion string
	Tasks          []TaskRecord
}

type workerRunJSON struct {
	Timestamp      string        `json:"timestamp"`
	JobID          string        `json:"job_id,omitempty"`
	Scheduler      *SchedulerIDs `json:"scheduler_ids,omitempty"`
	RuntimeVersion string        `json:"runtime_version,omitempty"`
	Tasks          []TaskRecord  `json:"tasks"`

	Slurm         *legacySlurm `json:"slurm,omitempty"`
	PythonVersion string       `json:"python_version,omitempty"`
}

type legacySlurm struct {
	JobID  *string `json:"job_id"`
	TaskID *string `json:"task_id"`
	Node   *string `json:"node"`
}

func (w WorkerRun) MarshalJSON() ([]byte, error) {
	tasks := w.Tasks
	if tasks == nil {
		tasks = []TaskRecord{}
	}
	sched := w.Scheduler
	return json.Marshal(workerRunJSON{
		Timestamp:      FormatTimestamp(w.Timestamp),
		JobID:          w.JobID,
		Scheduler:      &sched,
		RuntimeVersion: w.RuntimeVersion,
		Tasks:          tasks,
	})
}

func (w *WorkerRun) UnmarshalJSON(data []byte) error {
	var in workerRunJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	run := WorkerRun{
		JobID:          in.JobID,
		RuntimeVersion: in.RuntimeVersion,
		Tasks:          in.Tasks,
	}
	if in.Timestamp != "" {
		ts, err := ParseTimestamp(in.Timestamp)
		if err != nil {
			return err
		}
		run.Timestamp = ts
	}
	switch {
	case in.Scheduler != nil:
		run.Scheduler = *in.Scheduler
	case in.Slurm != nil:
		run.Scheduler = SchedulerIDs{
			Job:  deref(in.Slurm.JobID),
			Task: deref(in.Slurm.TaskID),
			Node: deref(in.Slurm.Node),
		}
	}
	if run.RuntimeVersion == "" {
		run.RuntimeVersion = in.PythonVersion
	}
	if run.JobID == "" {
		run.JobID = run.Scheduler.Job
	}
	*w = run
	return nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// AggregateRow is one task instance in the merged fleet timing table.
type AggregateRow struct {
	JobID    string
	TaskID   string
	TaskType string
	Start    time.Time
	End      *time.Time
	Duration *float64
	Metadata Metadata
	Source   string
}

// Shots returns the row's shot-count metadata, if any.
func (r AggregateRow) Shots() (int64, bool) { return r.Metadata.Shots() }
