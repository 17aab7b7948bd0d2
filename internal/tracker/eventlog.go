package tracker

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/osvaldoandrade/xebench/pkg/domain"
)

type EventKind string

const (
	EventStart  EventKind = "START"
	EventFinish EventKind = "FINISH"
)

// Event is one parsed line of a worker's event log. TaskType is empty for
// the worker-level START line written when the tracker opens.
type Event struct {
	Time     time.Time
	Kind     EventKind
	TaskType string
	Extra    map[string]json.RawMessage
}

// formatEvent renders `[<ts>] <EVENT>[ <task_type>][ | <json>]`.
func formatEvent(ts time.Time, kind EventKind, taskType string, extra any) (string, error) {
	var b strings.Builder
	b.WriteString("[")
	b.WriteString(domain.FormatTimestamp(ts))
	b.WriteString("] ")
	b.WriteString(string(kind))
	if taskType != "" {
		b.WriteString(" ")
		b.WriteString(taskType)
	}
	if extra != nil {
		js, err := json.Marshal(extra)
		if err != nil {
			return "", fmt.Errorf("encode event extra: %w", err)
		}
		b.WriteString(" | ")
		b.Write(js)
	}
	b.WriteString("\n")
	return b.String(), nil
}

// appendLine opens, appends and syncs on every call so a killed process
// never loses an event that was reported as written.
func appendLine(path, line string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open event log: %w", err)
	}
	if _, err := f.WriteString(line); err != nil {
		_ = f.Close()
		return fmt.Errorf("append event: %w", err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return fmt.Errorf("sync event log: %w", err)
	}
	return f.Close()
}

// ParseEvent parses a single event log line.
func ParseEvent(line string) (Event, error) {
	line = strings.TrimRight(line, "\r\n")
	if !strings.HasPrefix(line, "[") {
		return Event{}, fmt.Errorf("event line missing timestamp: %q", line)
	}
	end := strings.Index(line, "] ")
	if end < 0 {
		return Event{}, fmt.Errorf("event line missing timestamp: %q", line)
	}
	ts, err := domain.ParseTimestamp(line[1:end])
	if err != nil {
		return Event{}, err
	}
	body := line[end+2:]

	var extra map[string]json.RawMessage
	if i := strings.Index(body, " | {"); i >= 0 {
		if err := json.Unmarshal([]byte(body[i+3:]), &extra); err != nil {
			return Event{}, fmt.Errorf("event extra: %w", err)
		}
		body = body[:i]
	}

	kind, taskType, _ := strings.Cut(body, " ")
	ev := Event{Time: ts, Kind: EventKind(kind), TaskType: taskType, Extra: extra}
	switch ev.Kind {
	case EventStart, EventFinish:
	default:
		return Event{}, fmt.Errorf("unknown event %q", kind)
	}
	return ev, nil
}

// ReadEvents parses a whole event log. Blank lines are ignored.
func ReadEvents(r io.Reader) ([]Event, error) {
	var out []Event
	sc := bufio.NewScanner(r)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := sc.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		ev, err := ParseEvent(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		out = append(out, ev)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read event log: %w", err)
	}
	return out, nil
}

// Unfinished pairs START and FINISH events per task type, innermost first,
// and returns the START events that never finished.
func Unfinished(events []Event) []Event {
	open := map[string][]Event{}
	var order []string
	for _, ev := range events {
		if ev.TaskType == "" {
			continue
		}
		switch ev.Kind {
		case EventStart:
			if _, seen := open[ev.TaskType]; !seen {
				order = append(order, ev.TaskType)
			}
			open[ev.TaskType] = append(open[ev.TaskType], ev)
		case EventFinish:
			if stack := open[ev.TaskType]; len(stack) > 0 {
				open[ev.TaskType] = stack[:len(stack)-1]
			}
		}
	}
	var out []Event
	for _, tt := range order {
		out = append(out, open[tt]...)
	}
	return out
}
