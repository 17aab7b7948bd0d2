package tracker

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEvent(t *testing.T) {
	tests := []struct {
		name     string
		line     string
		kind     EventKind
		taskType string
		extraKey string
		wantErr  bool
	}{
		{"worker start", "[2025-06-01T12:00:00.000000Z] START", EventStart, "", "", false},
		{"task start", "[2025-06-01T12:00:00.000000Z] START Loading State", EventStart, "Loading State", "", false},
		{"start with metadata", `[2025-06-01T12:00:00.000000Z] START Subsequent Shots Overall | {"shots":1000}`, EventStart, "Subsequent Shots Overall", "shots", false},
		{"finish", `[2025-06-01T12:00:01.500000Z] FINISH Write State | {"duration": 1.5}`, EventFinish, "Write State", "duration", false},
		{"no timestamp", "START x", "", "", "", true},
		{"bad event", "[2025-06-01T12:00:00.000000Z] PAUSE x", "", "", "", true},
		{"bad json", `[2025-06-01T12:00:00.000000Z] START x | {"shots":`, "", "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := ParseEvent(tt.line)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.kind, ev.Kind)
			assert.Equal(t, tt.taskType, ev.TaskType)
			if tt.extraKey != "" {
				assert.Contains(t, ev.Extra, tt.extraKey)
			}
		})
	}
}

func TestUnfinishedPairsInnermostFirst(t *testing.T) {
	log := strings.Join([]string{
		"[2025-06-01T12:00:00.000000Z] START",
		"[2025-06-01T12:00:01.000000Z] START Step",
		"[2025-06-01T12:00:02.000000Z] START Step",
		`[2025-06-01T12:00:03.000000Z] FINISH Step | {"duration": 1}`,
		"[2025-06-01T12:00:04.000000Z] START Other",
		"",
	}, "\n")
	events, err := ReadEvents(strings.NewReader(log))
	require.NoError(t, err)
	require.Len(t, events, 5)

	open := Unfinished(events)
	require.Len(t, open, 2)
	assert.Equal(t, "Step", open[0].TaskType)
	assert.Equal(t, "2025-06-01T12:00:01Z", open[0].Time.Format("2006-01-02T15:04:05Z07:00"))
	assert.Equal(t, "Other", open[1].TaskType)
}

func TestReadEventsReportsLine(t *testing.T) {
	_, err := ReadEvents(strings.NewReader("[2025-06-01T12:00:00.000000Z] START\ngarbage\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")
}
