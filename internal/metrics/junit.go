// Package metrics ingests JUnit XML reports emitted by a target's test
// framework and folds test counts into the run statistics.
package metrics

import (
	"fmt"

	junit "github.com/joshdk/go-junit"

	"github.com/drew/ptrun/internal/model"
)

// Summary aggregates test counts across all suites in one report.
type Summary struct {
	Tests    int
	Failures int
	Errors   int
	Skipped  int
	Seconds  float64
}

// Ingest parses a JUnit XML file. go-junit copes with the format's many
// dialects (single testsuite, testsuites wrapper, multiple roots).
func Ingest(path string) (Summary, error) {
	suites, err := junit.IngestFile(path)
	if err != nil {
		return Summary{}, fmt.Errorf("failed to parse JUnit XML %s: %w", path, err)
	}

	var s Summary
	for _, suite := range suites {
		s.Tests += len(suite.Tests)
		for _, test := range suite.Tests {
			switch test.Status {
			case junit.StatusFailed:
				s.Failures++
			case junit.StatusError:
				s.Errors++
			case junit.StatusSkipped:
				s.Skipped++
			}
			s.Seconds += test.Duration.Seconds()
		}
	}
	return s, nil
}

// Record ingests path and writes the counts under the target's suite keys.
func Record(stats *model.RunStats, suiteName, path string) error {
	s, err := Ingest(path)
	if err != nil {
		return err
	}
	prefix := fmt.Sprintf("suite.%s", suiteName)
	stats.Set(prefix+".tests", float64(s.Tests))
	stats.Set(prefix+".failures", float64(s.Failures))
	stats.Set(prefix+".errors", float64(s.Errors))
	stats.Set(prefix+".skipped", float64(s.Skipped))
	stats.Set(prefix+".test_runtime", s.Seconds)
	return nil
}
