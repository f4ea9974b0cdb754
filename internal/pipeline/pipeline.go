// Package pipeline drives the ordered quality gates for one target:
// dependency install, tests under coverage, coverage enforcement, type
// check, import ordering, formatting, lint, and static analysis. The first
// failing gate stops the target.
package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/drew/ptrun/internal/coverage"
	"github.com/drew/ptrun/internal/metrics"
	"github.com/drew/ptrun/internal/model"
	"github.com/drew/ptrun/internal/output"
	"github.com/drew/ptrun/internal/proc"
	"github.com/drew/ptrun/internal/venv"
)

// CommandRunner abstracts subprocess execution so tests can substitute a
// fake. *proc.Runner satisfies it.
type CommandRunner interface {
	Run(ctx context.Context, argv []string, timeout time.Duration, env map[string]string, dir string) (string, error)
}

// Options holds run-wide flags that influence step selection.
type Options struct {
	// PrintCov forces the coverage report step to run and print even when
	// no thresholds are configured.
	PrintCov bool
}

// Pipeline executes steps for targets against one shared sandbox.
type Pipeline struct {
	runner   CommandRunner
	analyzer *coverage.Analyzer
	out      *output.Writer
}

// New creates a Pipeline.
func New(runner CommandRunner, analyzer *coverage.Analyzer, out *output.Writer) *Pipeline {
	return &Pipeline{runner: runner, analyzer: analyzer, out: out}
}

// Execute runs the target's gates in order against the sandbox, stopping at
// the first failure. It returns (nil, attempted) on full success, or the
// failure result and how many steps were attempted before stopping. env is
// shared across steps by reference; steps that must diverge mutate a copy.
func (p *Pipeline) Execute(ctx context.Context, target model.Target, v *venv.Venv, env map[string]string, stats *model.RunStats, opts Options) (*model.TargetResult, int) {
	started := time.Now()
	steps := p.buildSteps(target, v)

	attempted := 0
	for _, step := range steps {
		// The coverage step also runs when only printing was requested.
		wanted := step.RunCondition || (step.Name == model.StepAnalyzeCoverage && opts.PrintCov)
		if !wanted {
			p.out.Info("Not running %s step", step.Description)
			continue
		}
		attempted++

		var captured string
		var err error
		if len(step.Cmd) > 0 {
			p.out.Info("%s", step.Description)
			captured, err = p.runner.Run(ctx, step.Cmd, step.Timeout, p.stepEnv(step, target, env), v.Root)
		} else {
			p.out.Debug("Skipping running a cmd for %s step", step.Name)
		}

		if result := p.classify(step, target, started, captured, err); result != nil {
			return result, attempted
		}

		if step.Name == model.StepAnalyzeCoverage {
			if opts.PrintCov {
				p.out.Print("%s:\n%s\n", target.DefinitionPath, captured)
			}
			if step.RunCondition {
				if result := p.analyzer.Analyze(v, target, target.Config.RequiredCoverage, captured, stats, started); result != nil {
					return result, attempted
				}
			}
		}
	}

	if path := target.Config.JUnitXML; path != "" {
		if !filepath.IsAbs(path) {
			path = filepath.Join(target.Dir(), path)
		}
		if err := metrics.Record(stats, target.Name(), path); err != nil {
			p.out.Warning("%v", err)
		}
	}
	return nil, attempted
}

// classify turns a step error into the target's failure result, or nil.
func (p *Pipeline) classify(step model.Step, target model.Target, started time.Time, captured string, err error) *model.TargetResult {
	if err == nil {
		return nil
	}
	var te *proc.TimeoutError
	if errors.As(err, &te) {
		p.out.Debug("%s timed out running %s", target.DefinitionPath, step.Description)
		return &model.TargetResult{
			Target:         target,
			FailedStep:     step.Name,
			Output:         "Timeout during " + step.Description,
			RuntimeSeconds: int(step.Timeout.Seconds()),
			TimedOut:       true,
		}
	}
	var ee *proc.ExecError
	if errors.As(err, &ee) {
		p.out.Debug("%s FAILED for %s", step.Description, target.DefinitionPath)
		return &model.TargetResult{
			Target:         target,
			FailedStep:     step.Name,
			Output:         ee.Output,
			RuntimeSeconds: int(time.Since(started).Seconds()),
		}
	}
	// Anything else (e.g. cancelled parent context) is reported the same
	// way: as this step's failure, carrying whatever was captured.
	return &model.TargetResult{
		Target:         target,
		FailedStep:     step.Name,
		Output:         captured + "\n" + err.Error(),
		RuntimeSeconds: int(time.Since(started).Seconds()),
	}
}

// stepEnv returns the environment for one step. The base env is shared by
// reference; only steps that must diverge get a mutated copy.
func (p *Pipeline) stepEnv(step model.Step, target model.Target, env map[string]string) map[string]string {
	switch step.Name {
	case model.StepRunTests:
		// Promote warnings to failures while the suite runs.
		testEnv := proc.CopyEnv(env)
		testEnv["PYTHONWARNINGS"] = "error"
		return testEnv
	case model.StepTypeCheck:
		typeEnv := proc.CopyEnv(env)
		typeEnv["MYPYPATH"] = target.Dir()
		return typeEnv
	}
	return env
}

// buildSteps assembles the fixed, ordered gate list for a target. The list
// is rebuilt per execution and never mutated.
func (p *Pipeline) buildSteps(target model.Target, v *venv.Venv) []model.Step {
	cfg := target.Config
	dir := target.Dir()
	timeout := time.Duration(cfg.TestSuiteTimeout) * time.Second

	return []model.Step{
		{
			Name:         model.StepInstall,
			RunCondition: true,
			Cmd:          installCmd(v.Exe("pip"), dir, cfg.TestsRequire),
			Description:  "Installing " + target.DefinitionPath + " + deps",
			Timeout:      timeout,
		},
		{
			Name:         model.StepRunTests,
			RunCondition: cfg.TestSuite != "",
			Cmd:          testsCmd(v.Exe("coverage"), dir, cfg.TestSuite),
			Description:  "Running " + cfg.TestSuite + " tests via coverage",
			Timeout:      timeout,
		},
		{
			Name:         model.StepAnalyzeCoverage,
			RunCondition: len(cfg.RequiredCoverage) > 0,
			Cmd:          []string{v.Exe("coverage"), "report", "-m"},
			Description:  "Analyzing coverage report for " + target.DefinitionPath,
			Timeout:      timeout,
		},
		{
			Name:         model.StepTypeCheck,
			RunCondition: cfg.RunTypeCheck,
			Cmd:          typeCheckCmd(v.Exe("mypy"), dir, cfg.EntryPointModule),
			Description:  "Running mypy for " + target.DefinitionPath,
			Timeout:      timeout,
		},
		{
			Name:         model.StepImportSort,
			RunCondition: cfg.RunImportSort,
			Cmd:          []string{v.Exe("usort"), "check", dir},
			Description:  "Running usort for " + target.DefinitionPath,
			Timeout:      timeout,
		},
		{
			Name:         model.StepFormatCheck,
			RunCondition: cfg.RunFormatCheck,
			Cmd:          formatCheckCmd(v.Exe("black"), dir),
			Description:  "Running black for " + target.DefinitionPath,
			Timeout:      timeout,
		},
		{
			Name:         model.StepLint,
			RunCondition: cfg.RunLint,
			Cmd:          lintCmd(v.Exe("flake8"), dir),
			Description:  "Running flake8 for " + target.DefinitionPath,
			Timeout:      timeout,
		},
		{
			// pyre does not support Windows at all.
			Name:         model.StepStaticAnalysis,
			RunCondition: cfg.RunStaticAnalysis && runtime.GOOS != "windows",
			Cmd:          []string{v.Exe("pyre"), "--source-directory", dir, "check"},
			Description:  "Running pyre for " + target.DefinitionPath,
			Timeout:      timeout,
		},
	}
}

func installCmd(pipExe, dir string, extraDeps []string) []string {
	cmd := []string{pipExe, "-v", "install", dir}
	return append(cmd, extraDeps...)
}

func testsCmd(coverageExe, dir, suite string) []string {
	if suite == "" {
		return nil
	}
	entry := filepath.Join(dir, strings.ReplaceAll(suite, ".", string(filepath.Separator))+".py")
	return []string{coverageExe, "run", entry}
}

func typeCheckCmd(mypyExe, dir, entryPointModule string) []string {
	cmd := []string{mypyExe}
	iniPath := filepath.Join(dir, "mypy.ini")
	if _, err := os.Stat(iniPath); err == nil {
		cmd = append(cmd, "--config", iniPath)
	}
	return append(cmd, filepath.Join(dir, entryPointModule+".py"))
}

// formatCheckCmd lists every .py file under dir explicitly, sorted, so the
// check is stable run to run. No files means no command: the step is
// counted but nothing executes.
func formatCheckCmd(blackExe, dir string) []string {
	var pyFiles []string
	worklist := []string{dir}
	for len(worklist) > 0 {
		d := worklist[len(worklist)-1]
		worklist = worklist[:len(worklist)-1]
		entries, err := os.ReadDir(d)
		if err != nil {
			continue
		}
		for _, entry := range entries {
			full := filepath.Join(d, entry.Name())
			if entry.IsDir() {
				worklist = append(worklist, full)
			} else if strings.HasSuffix(entry.Name(), ".py") {
				pyFiles = append(pyFiles, full)
			}
		}
	}
	if len(pyFiles) == 0 {
		return nil
	}
	sort.Strings(pyFiles)
	return append([]string{blackExe, "--check"}, pyFiles...)
}

func lintCmd(flake8Exe, dir string) []string {
	cmd := []string{flake8Exe}
	confPath := filepath.Join(dir, ".flake8")
	if _, err := os.Stat(confPath); err == nil {
		cmd = append(cmd, "--config", confPath)
	}
	return append(cmd, dir)
}
