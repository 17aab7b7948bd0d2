package aggregate

import (
	"fmt"
	"sort"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/osvaldoandrade/xebench/pkg/domain"
)

// Warnings collects non-fatal conditions found while computing statistics.
type Warnings []string

func summarize(xs []float64) domain.Stats {
	if len(xs) == 0 {
		return domain.Stats{}
	}
	return domain.Stats{
		Count: len(xs),
		Min:   floats.Min(xs),
		Max:   floats.Max(xs),
		Mean:  stat.Mean(xs, nil),
	}
}

// completed returns the rows of the given type that carry a duration.
func completed(rows []domain.AggregateRow, taskType string) []domain.AggregateRow {
	var out []domain.AggregateRow
	for _, r := range rows {
		if r.TaskType == taskType && r.Duration != nil && r.End != nil {
			out = append(out, r)
		}
	}
	return out
}

func durations(rows []domain.AggregateRow) []float64 {
	xs := make([]float64, 0, len(rows))
	for _, r := range rows {
		xs = append(xs, *r.Duration)
	}
	return xs
}

// PhaseStatistics computes per-phase duration stats and the queueing delay
// between the fleet's earliest setup completion and each measurement start.
// An empty phase yields zero stats and a warning; the delay is then skipped.
func PhaseStatistics(rows []domain.AggregateRow, setupType, measurementType string) (domain.PhaseStats, Warnings) {
	var warn Warnings
	setup := completed(rows, setupType)
	measure := completed(rows, measurementType)

	ps := domain.PhaseStats{
		Setup:       summarize(durations(setup)),
		Measurement: summarize(durations(measure)),
	}
	if len(setup) == 0 {
		warn = append(warn, "no '"+setupType+"' rows found; setup statistics undefined")
	}
	if len(measure) == 0 {
		warn = append(warn, "no '"+measurementType+"' rows found; measurement statistics undefined")
	}
	if len(setup) == 0 || len(measure) == 0 {
		warn = append(warn, "queue delay not computed")
		return ps, warn
	}

	ready := *setup[0].End
	for _, r := range setup[1:] {
		if r.End.Before(ready) {
			ready = *r.End
		}
	}
	delays := make([]float64, 0, len(measure))
	for _, r := range measure {
		delays = append(delays, r.Start.Sub(ready).Seconds())
	}
	ps.Delay = summarize(delays)
	ps.DelayComputed = true
	return ps, warn
}

// FleetTimeline spans the whole table. Turnaround is only set when both phases
// are present. Returns nil for an empty table.
func FleetTimeline(rows []domain.AggregateRow, setupType, measurementType string) *domain.Timeline {
	if len(rows) == 0 {
		return nil
	}
	tl := &domain.Timeline{EarliestStart: rows[0].Start}
	var setupEnd, measureStart time.Time
	for _, r := range rows {
		if r.Start.Before(tl.EarliestStart) {
			tl.EarliestStart = r.Start
		}
		end := r.Start
		if r.End != nil {
			end = *r.End
		}
		if end.After(tl.LatestEnd) {
			tl.LatestEnd = end
		}
		switch r.TaskType {
		case setupType:
			if r.End != nil && (setupEnd.IsZero() || r.End.Before(setupEnd)) {
				setupEnd = *r.End
			}
		case measurementType:
			if measureStart.IsZero() || r.Start.Before(measureStart) {
				measureStart = r.Start
			}
		}
	}
	tl.TotalSeconds = tl.LatestEnd.Sub(tl.EarliestStart).Seconds()
	if !setupEnd.IsZero() && !measureStart.IsZero() {
		t := measureStart.Sub(setupEnd).Seconds()
		tl.TurnaroundSeconds = &t
	}
	return tl
}

// ShotsVsJobs groups measurement rows by shot count and projects how many jobs
// of each size are needed to reach targetSamples. Rows without a shots value
// are ignored. Groups are ordered by ascending shot count.
func ShotsVsJobs(rows []domain.AggregateRow, measurementType string, targetSamples int64, samplingDigits int) []domain.ShotGroup {
	byShots := map[int64][]float64{}
	for _, r := range completed(rows, measurementType) {
		shots, ok := r.Shots()
		if !ok || shots <= 0 {
			continue
		}
		byShots[shots] = append(byShots[shots], *r.Duration)
	}
	out := make([]domain.ShotGroup, 0, len(byShots))
	for shots, xs := range byShots {
		out = append(out, domain.ShotGroup{
			Runs:            len(xs),
			ShotsPerJob:     shots,
			SamplingTimeSec: domain.RoundTo(stat.Mean(xs, nil), samplingDigits),
			Jobs:            float64(targetSamples) / float64(shots),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ShotsPerJob < out[j].ShotsPerJob })
	return out
}

// FormatClock renders seconds as h:mm:ss.mmm.
func FormatClock(sec float64) string {
	d := time.Duration(sec * float64(time.Second)).Round(time.Millisecond)
	neg := d < 0
	if neg {
		d = -d
	}
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second
	d -= s * time.Second
	ms := d / time.Millisecond
	out := fmt.Sprintf("%d:%02d:%02d.%03d", h, m, s, ms)
	if neg {
		return "-" + out
	}
	return out
}
