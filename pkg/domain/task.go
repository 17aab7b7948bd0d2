package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"
)

// TimestampLayout renders UTC instants with microsecond precision and a Z suffix.
const TimestampLayout = "2006-01-02T15:04:05.000000Z"

var parseLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
}

func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// ParseTimestamp accepts ISO-8601 instants with or without a zone; zoneless
// values are read as UTC.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range parseLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid timestamp %q", s)
}

// RoundTo rounds v to the given number of decimal places.
func RoundTo(v float64, digits int) float64 {
	if digits < 0 {
		return v
	}
	p := math.Pow(10, float64(digits))
	return math.Round(v*p) / p
}

// TaskRecord is one instrumented unit of work. End and Duration stay nil
// until the task completes.
type TaskRecord struct {
	TaskType string
	Start    time.Time
	End      *time.Time
	Duration *float64
	Metadata Metadata
}

// Completed reports whether the record carries an end timestamp.
func (r TaskRecord) Completed() bool { return r.End != nil }

type taskRecordJSON struct {
	TaskType string   `json:"task_type"`
	Start    string   `json:"start"`
	End      *string  `json:"end"`
	Duration *float64 `json:"duration"`
	Metadata Metadata `json:"metadata"`
	// DurationSec is the field name used by older snapshot writers.
	DurationSec *float64 `json:"duration_sec,omitempty"`
}

func (r TaskRecord) MarshalJSON() ([]byte, error) {
	out := taskRecordJSON{
		TaskType: r.TaskType,
		Start:    FormatTimestamp(r.Start),
		Duration: r.Duration,
		Metadata: r.Metadata,
	}
	if out.Metadata == nil {
		out.Metadata = Metadata{}
	}
	if r.End != nil {
		end := FormatTimestamp(*r.End)
		out.End = &end
	}
	return json.Marshal(out)
}

func (r *TaskRecord) UnmarshalJSON(data []byte) error {
	var in taskRecordJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	if strings.TrimSpace(in.TaskType) == "" {
		return fmt.Errorf("task_type is required")
	}
	start, err := ParseTimestamp(in.Start)
	if err != nil {
		return fmt.Errorf("task %q start: %w", in.TaskType, err)
	}
	rec := TaskRecord{TaskType: in.TaskType, Start: start, Metadata: in.Metadata}
	if in.End != nil && strings.TrimSpace(*in.End) != "" {
		end, err := ParseTimestamp(*in.End)
		if err != nil {
			return fmt.Errorf("task %q end: %w", in.TaskType, err)
		}
		rec.End = &end
	}
	rec.Duration = in.Duration
	if rec.Duration == nil {
		rec.Duration = in.DurationSec
	}
	if rec.End == nil {
		rec.Duration = nil
	}
	*r = rec
	return nil
}
