package main

import (
	"fmt"
	"io"
	"path/filepath"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/osvaldoandrade/xebench/internal/aggregate"
	"github.com/osvaldoandrade/xebench/pkg/domain"
)

func newTable(w io.Writer, title string) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)
	t.SetTitle(title)
	return t
}

func seconds(v float64, digits int) string {
	return strconv.FormatFloat(domain.RoundTo(v, digits), 'f', -1, 64)
}

func renderPhases(w io.Writer, ps domain.PhaseStats, digits int) {
	t := newTable(w, "Job Statistics (seconds)")
	t.AppendHeader(table.Row{"Metric", "Count", "Min", "Max", "Avg"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, Align: text.AlignRight},
		{Number: 3, Align: text.AlignRight},
		{Number: 4, Align: text.AlignRight},
		{Number: 5, Align: text.AlignRight},
	})
	add := func(name string, s domain.Stats, defined bool) {
		if !defined {
			t.AppendRow(table.Row{name, 0, "n/a", "n/a", "n/a"})
			return
		}
		t.AppendRow(table.Row{name, s.Count, seconds(s.Min, digits), seconds(s.Max, digits), seconds(s.Mean, digits)})
	}
	add("State Calc", ps.Setup, ps.Setup.Count > 0)
	add("Queue", ps.Delay, ps.DelayComputed)
	add("Sampling", ps.Measurement, ps.Measurement.Count > 0)
	t.Render()
}

func renderShots(w io.Writer, groups []domain.ShotGroup) {
	t := newTable(w, "Shots vs Jobs")
	t.AppendHeader(table.Row{"Jobs", "Shots/Job", "Sampling (s)", "Runs"})
	for _, g := range groups {
		t.AppendRow(table.Row{strconv.FormatFloat(g.Jobs, 'f', -1, 64), g.ShotsPerJob, g.SamplingTimeSec, g.Runs})
	}
	if len(groups) == 0 {
		t.AppendRow(table.Row{"-", "-", "-", "-"})
	}
	t.Render()
}

func renderTimeline(w io.Writer, tl *domain.Timeline, ui *ui) {
	if tl == nil {
		fmt.Fprintln(w, ui.warn("[WARN]"), "No completed tasks; timeline unavailable.")
		return
	}
	fmt.Fprintf(w, "Earliest start: %s\n", domain.FormatTimestamp(tl.EarliestStart))
	fmt.Fprintf(w, "Latest end:     %s\n", domain.FormatTimestamp(tl.LatestEnd))
	fmt.Fprintf(w, "Total time:     %.3f s (%s)\n", tl.TotalSeconds, aggregate.FormatClock(tl.TotalSeconds))
	if tl.TurnaroundSeconds != nil {
		fmt.Fprintf(w, "Turnaround:     %.3f s (%s)\n", *tl.TurnaroundSeconds, aggregate.FormatClock(*tl.TurnaroundSeconds))
	}
}

func renderFidelity(w io.Writer, f *domain.FidelityResult, ui *ui) {
	if f == nil {
		return
	}
	fmt.Fprintf(w, "%s XEB fidelity: %.6g (n=%d qubits, %d samples, %d distinct bitstrings)\n",
		ui.ok("[OK]"), f.XEB, f.Qubits, f.Samples, f.Keys)
}

// renderReport prints the postprocess summary.
func renderReport(w io.Writer, res aggregate.Result, digits int, ui *ui) {
	rep := res.Report
	fmt.Fprintf(w, "%s Report %s\n", ui.title("xebench"), rep.ID)
	fmt.Fprintf(w, "Workers: %d  Rows: %d  Skipped files: %d  Incomplete tasks: %d\n\n",
		rep.Workers, rep.Rows, len(rep.Skipped), len(rep.Incomplete))
	for _, msg := range res.Warnings {
		fmt.Fprintln(w, ui.warn("[WARN]"), msg)
	}
	if len(res.Warnings) > 0 {
		fmt.Fprintln(w)
	}
	renderTimeline(w, rep.Timeline, ui)
	fmt.Fprintln(w)
	renderPhases(w, rep.Phases, digits)
	fmt.Fprintln(w)
	renderShots(w, rep.ShotGroups)
	fmt.Fprintln(w)
	renderFidelity(w, rep.Fidelity, ui)
	for _, p := range res.Artifacts {
		fmt.Fprintf(w, "%s wrote %s\n", ui.dim("-"), filepath.Base(p))
	}
}
