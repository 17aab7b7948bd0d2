package domain

import "time"

// Stats summarises a population of durations in seconds. Count is zero when
// the population was empty, in which case Min, Max and Mean are zero too.
type Stats struct {
	Count int     `json:"count"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Mean  float64 `json:"mean"`
}

type PhaseStats struct {
	Setup       Stats `json:"setup"`
	Measurement Stats `json:"measurement"`
	// Delay is the wait between the fleet's earliest setup completion and
	// each measurement start. DelayComputed is false when either phase is empty.
	Delay         Stats `json:"delay"`
	DelayComputed bool  `json:"delayComputed"`
}

type Timeline struct {
	EarliestStart     time.Time `json:"earliestStart"`
	LatestEnd         time.Time `json:"latestEnd"`
	TotalSeconds      float64   `json:"totalSeconds"`
	TurnaroundSeconds *float64  `json:"turnaroundSeconds,omitempty"`
}

// ShotGroup is one row of the shots-vs-jobs projection.
type ShotGroup struct {
	Runs            int     `json:"runs"`
	ShotsPerJob     int64   `json:"shotsPerJob"`
	SamplingTimeSec float64 `json:"samplingTimeSec"`
	Jobs            float64 `json:"jobs"`
}

type SkippedFile struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

// IncompleteTask is a START event in a worker log with no matching FINISH.
type IncompleteTask struct {
	Source   string    `json:"source"`
	TaskType string    `json:"taskType"`
	Start    time.Time `json:"start"`
	Metadata Metadata  `json:"metadata,omitempty"`
}

type FidelityResult struct {
	Qubits  int     `json:"qubits"`
	Samples int64   `json:"samples"`
	Keys    int     `json:"keys"`
	Mean    float64 `json:"meanWeight"`
	XEB     float64 `json:"xeb"`
}

// Report is the outcome of one aggregation pass.
type Report struct {
	ID         string           `json:"id"`
	CreatedAt  time.Time        `json:"createdAt"`
	Rows       int              `json:"rows"`
	Workers    int              `json:"workers"`
	Skipped    []SkippedFile    `json:"skipped,omitempty"`
	Incomplete []IncompleteTask `json:"incomplete,omitempty"`
	Timeline   *Timeline        `json:"timeline,omitempty"`
	Phases     PhaseStats       `json:"phases"`
	ShotGroups []ShotGroup      `json:"shotGroups,omitempty"`
	Fidelity   *FidelityResult  `json:"fidelity,omitempty"`
}
