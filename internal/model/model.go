// Package model holds the core data types shared across the runner:
// targets, pipeline steps, results, and run statistics.
package model

import (
	"fmt"
	"path/filepath"
	"time"
)

// StepName identifies one gate of the per-target pipeline. The integer
// value of each step doubles as its result code in the stats snapshot and
// the failure output, so the numbering is part of the tool's contract.
type StepName int

const (
	// StepNone is the zero value and means "no step failed".
	StepNone StepName = iota
	StepInstall
	StepRunTests
	StepAnalyzeCoverage
	StepTypeCheck
	StepImportSort
	StepFormatCheck
	StepLint
	StepStaticAnalysis
)

// Code returns the fixed integer identity of the step.
func (s StepName) Code() int { return int(s) }

func (s StepName) String() string {
	switch s {
	case StepNone:
		return "none"
	case StepInstall:
		return "install"
	case StepRunTests:
		return "run_tests"
	case StepAnalyzeCoverage:
		return "analyze_coverage"
	case StepTypeCheck:
		return "type_check"
	case StepImportSort:
		return "import_sort"
	case StepFormatCheck:
		return "format_check"
	case StepLint:
		return "lint"
	case StepStaticAnalysis:
		return "static_analysis"
	}
	return fmt.Sprintf("step(%d)", int(s))
}

// Configuration is the resolved per-target option set. Unknown keys from
// the definition file are preserved in Extra so newer configs keep working
// against older binaries. A Configuration is never mutated after load.
type Configuration struct {
	TestSuite         string             `toml:"testSuite" yaml:"testSuite"`
	TestSuiteTimeout  int                `toml:"testSuiteTimeout" yaml:"testSuiteTimeout"`
	RequiredCoverage  map[string]float64 `toml:"requiredCoverage" yaml:"requiredCoverage"`
	RunTypeCheck      bool               `toml:"runTypeCheck" yaml:"runTypeCheck"`
	RunImportSort     bool               `toml:"runImportSort" yaml:"runImportSort"`
	RunFormatCheck    bool               `toml:"runFormatCheck" yaml:"runFormatCheck"`
	RunLint           bool               `toml:"runLint" yaml:"runLint"`
	RunStaticAnalysis bool               `toml:"runStaticAnalysis" yaml:"runStaticAnalysis"`
	Disabled          bool               `toml:"disabled" yaml:"disabled"`
	EntryPointModule  string             `toml:"entryPointModule" yaml:"entryPointModule"`
	TestsRequire      []string           `toml:"testsRequire" yaml:"testsRequire"`
	JUnitXML          string             `toml:"junitXml" yaml:"junitXml"`

	Extra map[string]interface{} `toml:"-" yaml:"-"`
}

// Target is one discovered project unit, identified by the location of its
// definition file. Immutable once created.
type Target struct {
	DefinitionPath string
	Config         Configuration
}

// Dir returns the directory containing the target's definition file.
func (t Target) Dir() string { return filepath.Dir(t.DefinitionPath) }

// Name is the short name used to scope the target's stats keys: the base
// name of its directory.
func (t Target) Name() string { return filepath.Base(t.Dir()) }

// Step is one entry of a target's pipeline, built fresh per execution.
// An empty Cmd means "skip execution but count the step as attempted".
type Step struct {
	Name         StepName
	RunCondition bool
	Cmd          []string
	Description  string
	Timeout      time.Duration
}

// CoverageLine is one parsed row of a coverage report.
type CoverageLine struct {
	Stmts   int
	Miss    int
	Cover   float64
	Missing string
}

// TargetResult is the single outcome produced for a target in a run.
// FailedStep is StepNone on success; on timeout RuntimeSeconds holds the
// configured step timeout rather than the observed wall time.
type TargetResult struct {
	Target         Target
	FailedStep     StepName
	Output         string
	RuntimeSeconds int
	TimedOut       bool
}

// Passed reports whether every attempted step succeeded.
func (r TargetResult) Passed() bool { return r.FailedStep == StepNone }
