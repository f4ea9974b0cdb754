// Package report summarizes a finished run: the per-target pass/fail table
// on stdout, failure output, aggregate counters, and the stats snapshot
// written to disk.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/drew/ptrun/internal/model"
	"github.com/drew/ptrun/internal/output"
	"github.com/drew/ptrun/internal/ui"
)

// Aggregator folds target results into the final report.
type Aggregator struct {
	out    *output.Writer
	colors *ui.Colors
}

// New creates an Aggregator.
func New(out *output.Writer, colors *ui.Colors) *Aggregator {
	return &Aggregator{out: out, colors: colors}
}

// Summarize prints the per-target table and failure details to stdout and
// records the aggregate counters into stats. Results print sorted by
// definition path regardless of completion order.
func (a *Aggregator) Summarize(results []model.TargetResult, stats *model.RunStats) {
	sorted := make([]model.TargetResult, len(results))
	copy(sorted, results)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Target.DefinitionPath < sorted[j].Target.DefinitionPath
	})

	var failures []model.TargetResult
	for _, r := range sorted {
		switch {
		case r.Passed():
			stats.Add("total.passes", 1)
		case r.TimedOut:
			stats.Add("total.timeouts", 1)
			failures = append(failures, r)
		default:
			stats.Add("total.fails", 1)
			failures = append(failures, r)
		}
	}
	stats.Set("total.test_suites", float64(len(sorted)))

	if total, ok := stats.Get("total.targets"); ok && total > 0 {
		stats.Set("pct.targets_enabled", float64(len(sorted))/total*100)
	}

	a.out.Println("")
	a.out.Println("%s", a.colors.Bold("-- Test Results --"))
	for _, r := range sorted {
		symbol := a.colors.ResultSymbol(r.Passed(), r.TimedOut)
		a.out.Println("%s %s (%ds)", symbol, r.Target.DefinitionPath, r.RuntimeSeconds)
	}

	if len(failures) > 0 {
		a.out.Println("")
		a.out.Println("%s", a.colors.Bold("-- Failure Output --"))
		for _, r := range failures {
			a.out.Println("")
			a.out.Println("%s (failed '%s' step):", a.colors.Red(r.Target.DefinitionPath), r.FailedStep)
			a.out.Println("%s", r.Output)
		}
	}

	passes, _ := stats.Get("total.passes")
	fails, _ := stats.Get("total.fails")
	timeouts, _ := stats.Get("total.timeouts")
	a.out.Println("")
	a.out.Println("%s %d suites passed, %d failed, %d timed out",
		a.colors.Bold("Summary:"), int(passes), int(fails), int(timeouts))
}

// WriteSnapshot serializes the stats map to path as indented JSON. Write
// failures are logged and swallowed; a missing stats file never fails a
// run that otherwise completed.
func (a *Aggregator) WriteSnapshot(stats *model.RunStats, path string) {
	abs, err := filepath.Abs(path)
	if err != nil {
		a.out.Error("Unable to resolve stats file path %s: %v", path, err)
		return
	}

	data, err := json.MarshalIndent(stats.Snapshot(), "", "  ")
	if err != nil {
		a.out.Error("Unable to serialize run stats: %v", err)
		return
	}
	if err := os.WriteFile(abs, data, 0o644); err != nil {
		a.out.Error("Unable to write stats file %s: %v", abs, err)
		return
	}
	a.out.Info("Wrote run stats to %s", abs)
}

// ExitCode derives the process exit status from the aggregate counters:
// the number of failed plus timed-out suites.
func ExitCode(stats *model.RunStats) int {
	fails, _ := stats.Get("total.fails")
	timeouts, _ := stats.Get("total.timeouts")
	return int(fails) + int(timeouts)
}

// FormatSnapshot renders a snapshot as an aligned, key-sorted table. Used
// by the stats viewer.
func FormatSnapshot(values map[string]float64) string {
	keys := make([]string, 0, len(values))
	width := 0
	for k := range values {
		keys = append(keys, k)
		if len(k) > width {
			width = len(k)
		}
	}
	sort.Strings(keys)

	var b []byte
	for _, k := range keys {
		b = append(b, fmt.Sprintf("%-*s %s\n", width, k, trimFloat(values[k]))...)
	}
	return string(b)
}

func trimFloat(f float64) string {
	return fmt.Sprintf("%g", f)
}
