package aggregate

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/osvaldoandrade/xebench/internal/fileutil"
	"github.com/osvaldoandrade/xebench/pkg/domain"
)

var timingsHeader = []string{"job_id", "task_id", "task_type", "start", "end", "duration_sec", "shots"}

func formatFloat(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }

// WriteTimingsCSV writes the merged timing table. Incomplete rows keep empty
// end and duration cells.
func WriteTimingsCSV(w io.Writer, rows []domain.AggregateRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(timingsHeader); err != nil {
		return err
	}
	for _, r := range rows {
		rec := []string{r.JobID, r.TaskID, r.TaskType, domain.FormatTimestamp(r.Start), "", "", ""}
		if r.End != nil {
			rec[4] = domain.FormatTimestamp(*r.End)
		}
		if r.Duration != nil {
			rec[5] = formatFloat(*r.Duration)
		}
		if shots, ok := r.Shots(); ok {
			rec[6] = strconv.FormatInt(shots, 10)
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WritePhaseStatsCSV writes the job stats summary. Undefined phases are
// written with empty cells.
func WritePhaseStatsCSV(w io.Writer, ps domain.PhaseStats, digits int) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"Metric", "Min (sec)", "Max (sec)", "Avg (sec)"}); err != nil {
		return err
	}
	rows := []struct {
		name    string
		s       domain.Stats
		defined bool
	}{
		{"State Calc", ps.Setup, ps.Setup.Count > 0},
		{"Queue", ps.Delay, ps.DelayComputed},
		{"Sampling", ps.Measurement, ps.Measurement.Count > 0},
	}
	for _, r := range rows {
		rec := []string{r.name, "", "", ""}
		if r.defined {
			rec[1] = formatFloat(domain.RoundTo(r.s.Min, digits))
			rec[2] = formatFloat(domain.RoundTo(r.s.Max, digits))
			rec[3] = formatFloat(domain.RoundTo(r.s.Mean, digits))
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteShotsCSV writes the shots-vs-jobs projection.
func WriteShotsCSV(w io.Writer, groups []domain.ShotGroup) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"Jobs", "ShotsPerJob", "SamplingTimeSec"}); err != nil {
		return err
	}
	for _, g := range groups {
		rec := []string{formatFloat(g.Jobs), strconv.FormatInt(g.ShotsPerJob, 10), formatFloat(g.SamplingTimeSec)}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// CombineFiles concatenates srcs into dst in the given order, making sure each
// source ends with a newline so lines never run together.
func CombineFiles(dst string, srcs []string) error {
	return fileutil.WriteAtomicFunc(dst, func(w io.Writer) error {
		for _, p := range srcs {
			data, err := os.ReadFile(p)
			if err != nil {
				return fmt.Errorf("read %s: %w", p, err)
			}
			if _, err := w.Write(data); err != nil {
				return err
			}
			if len(data) > 0 && !bytes.HasSuffix(data, []byte("\n")) {
				if _, err := w.Write([]byte("\n")); err != nil {
					return err
				}
			}
		}
		return nil
	})
}
