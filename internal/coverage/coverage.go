// Package coverage parses `coverage report -m` output and enforces the
// per-file and aggregate thresholds a target declares.
package coverage

import (
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/drew/ptrun/internal/model"
	"github.com/drew/ptrun/internal/output"
	"github.com/drew/ptrun/internal/venv"
)

// totalRow is the reserved aggregate key in reports and threshold maps.
const totalRow = "TOTAL"

// privatePrefix is stripped from absolute report paths when the sandbox
// itself is not rooted under it. Some coverage tools resolve the macOS
// /tmp symlink through /private, which would defeat the relative-path
// matching below.
const privatePrefix = "/private"

// Analyzer checks coverage reports against required thresholds.
type Analyzer struct {
	out *output.Writer
}

// NewAnalyzer creates an Analyzer.
func NewAnalyzer(out *output.Writer) *Analyzer {
	return &Analyzer{out: out}
}

// Analyze parses reportText and enforces required thresholds, recording
// every observed percentage into stats. It returns nil when there is
// nothing to report: thresholds all met, or coverage could not be enforced
// at all (no report, no requirements, or an undiscoverable sandbox
// layout). Callers must not read nil as "thresholds were checked".
func (a *Analyzer) Analyze(v *venv.Venv, target model.Target, required map[string]float64, reportText string, stats *model.RunStats, started time.Time) *model.TargetResult {
	sitePackages, err := v.SitePackages()
	if err != nil {
		a.out.Error("%v", err)
		return nil
	}

	if reportText == "" {
		a.out.Error("No coverage report for %s - Unable to enforce coverage requirements", target.DefinitionPath)
		return nil
	}
	if len(required) == 0 {
		a.out.Error("No required coverage to enforce for %s", target.DefinitionPath)
		return nil
	}

	lines := a.parseReport(v, target, sitePackages, reportText)
	for path, cl := range lines {
		if path == totalRow {
			stats.Set(fmt.Sprintf("suite.%s_coverage.total", target.Name()), cl.Cover)
		} else {
			stats.Set(fmt.Sprintf("suite.%s_coverage.file.%s", target.Name(), path), cl.Cover)
		}
	}

	elapsed := int(time.Since(started).Seconds())

	var failed strings.Builder
	failed.WriteString("The following files did not meet coverage requirements:\n")
	failedCoverage := false

	for _, file := range sortedKeys(required) {
		cl, ok := lines[file]
		if !ok {
			// Distinct from low coverage: the file never showed up at all.
			// Stop here rather than misreport the remaining thresholds.
			return &model.TargetResult{
				Target:     target,
				FailedStep: model.StepAnalyzeCoverage,
				Output: fmt.Sprintf("%s has not reported any coverage. Does the file exist? "+
					"Does it get run during tests? Remove from target config.", file),
				RuntimeSeconds: elapsed,
			}
		}
		// Strictly less than fails; matching the threshold exactly passes.
		if cl.Cover < required[file] {
			failedCoverage = true
			fmt.Fprintf(&failed, "  %s: %s < %s - Missing: %s\n",
				file, formatPercent(cl.Cover), formatPercent(required[file]), cl.Missing)
		}
	}

	if failedCoverage {
		return &model.TargetResult{
			Target:         target,
			FailedStep:     model.StepAnalyzeCoverage,
			Output:         failed.String(),
			RuntimeSeconds: elapsed,
		}
	}
	return nil
}

// parseReport reads the tabular report line by line, resolving each path
// to the form threshold maps use.
func (a *Analyzer) parseReport(v *venv.Venv, target model.Target, sitePackages, reportText string) map[string]model.CoverageLine {
	relSitePackages, relErr := filepath.Rel(v.Root, sitePackages)
	if relErr != nil {
		relSitePackages = sitePackages
	}
	relSitePackages += string(filepath.Separator)

	lines := make(map[string]model.CoverageLine)
	for _, line := range strings.Split(reportText, "\n") {
		if line == "" || strings.HasPrefix(line, "-") || strings.HasPrefix(line, "Name") {
			continue
		}

		fields := splitReportLine(line)
		if len(fields) < 4 {
			a.out.Debug("Skipping malformed coverage line: %q", line)
			continue
		}

		key := a.resolvePath(fields[0], target.Dir(), v.Root, sitePackages, relSitePackages)
		if key == "" {
			a.out.Error("Unable to find relative path for %s", fields[0])
			continue
		}

		stmts, err1 := strconv.Atoi(fields[1])
		miss, err2 := strconv.Atoi(fields[2])
		cover, err3 := strconv.ParseFloat(strings.TrimSuffix(fields[3], "%"), 64)
		if err1 != nil || err2 != nil || err3 != nil {
			a.out.Debug("Skipping unparseable coverage line: %q", line)
			continue
		}

		missing := ""
		if len(fields) == 5 {
			missing = fields[4]
		}
		lines[key] = model.CoverageLine{Stmts: stmts, Miss: miss, Cover: cover, Missing: missing}
	}
	return lines
}

// resolvePath turns a report path into the key form used by requiredCoverage
// maps: relative to the target's directory, else to site-packages, else a
// plain strip of the relative site-packages prefix. TOTAL passes through.
func (a *Analyzer) resolvePath(reported, targetDir, venvRoot, sitePackages, relSitePackages string) string {
	if reported == totalRow {
		return totalRow
	}
	if filepath.IsAbs(reported) {
		if strings.HasPrefix(reported, privatePrefix) && !strings.HasPrefix(venvRoot, privatePrefix) {
			reported = strings.TrimPrefix(reported, privatePrefix)
		}
		for _, base := range []string{targetDir, sitePackages} {
			if rel, err := filepath.Rel(base, reported); err == nil && !strings.HasPrefix(rel, "..") {
				return rel
			}
		}
		return ""
	}
	return strings.ReplaceAll(reported, relSitePackages, "")
}

// splitReportLine splits a data line into at most five whitespace-delimited
// fields; everything after the fourth is the missing-ranges column, spaces
// and all.
func splitReportLine(line string) []string {
	var fields []string
	rest := strings.TrimSpace(line)
	for len(fields) < 4 && rest != "" {
		idx := strings.IndexAny(rest, " \t")
		if idx < 0 {
			fields = append(fields, rest)
			rest = ""
			break
		}
		fields = append(fields, rest[:idx])
		rest = strings.TrimLeft(rest[idx:], " \t")
	}
	if rest != "" {
		fields = append(fields, rest)
	}
	return fields
}

// formatPercent renders a percentage without trailing zeros, so 69 prints
// as "69" and 69.5 as "69.5".
func formatPercent(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
