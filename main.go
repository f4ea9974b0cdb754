// ptrun - opinionated test runner for Python projects
//
// Discovers targets beneath a base directory, boots a shared virtualenv
// sandbox, and runs every configured quality gate in parallel.

package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/drew/ptrun/internal/config"
	"github.com/drew/ptrun/internal/coverage"
	"github.com/drew/ptrun/internal/discover"
	"github.com/drew/ptrun/internal/git"
	"github.com/drew/ptrun/internal/model"
	"github.com/drew/ptrun/internal/output"
	"github.com/drew/ptrun/internal/pipeline"
	"github.com/drew/ptrun/internal/proc"
	"github.com/drew/ptrun/internal/report"
	"github.com/drew/ptrun/internal/scheduler"
	"github.com/drew/ptrun/internal/ui"
	"github.com/drew/ptrun/internal/venv"
)

// Exit codes beyond the fail count.
const (
	exitNoTargets   = 1
	exitMissingVenv = 2
	exitVenvFailed  = 3
	exitBadBaseDir  = 69
)

type cliOptions struct {
	atOnce           int
	baseDir          string
	debug            bool
	keepVenv         bool
	mirror           string
	printCov         bool
	progressInterval int
	runDisabled      bool
	since            string
	statsFile        string
	venvPath         string
	venvArgs         []string
}

func parseFlags() cliOptions {
	var opts cliOptions
	flag.IntVarP(&opts.atOnce, "atonce", "a", 0, "How many tests to run at once (default: half the CPUs)")
	flag.StringVarP(&opts.baseDir, "base-dir", "b", ".", "Directory to search for projects")
	flag.BoolVarP(&opts.debug, "debug", "d", false, "Verbose debug output")
	flag.BoolVarP(&opts.keepVenv, "keep-venv", "k", false, "Do not remove the venv after running")
	flag.StringVarP(&opts.mirror, "mirror", "m", "", "PyPI mirror URL (overrides config)")
	flag.BoolVar(&opts.printCov, "print-cov", false, "Print coverage report for every target")
	flag.IntVar(&opts.progressInterval, "progress-interval", 0, "Seconds between progress reports (0 disables)")
	flag.BoolVar(&opts.runDisabled, "run-disabled", false, "Run targets marked disabled")
	flag.StringVar(&opts.since, "since", "", "Only run targets with changes since this git ref")
	flag.StringVar(&opts.statsFile, "stats-file",
		filepath.Join(os.TempDir(), fmt.Sprintf("ptrun_stats_%d", os.Getpid())),
		"Where to write the run stats JSON")
	flag.StringVar(&opts.venvPath, "venv", "", "Reuse an existing venv instead of creating one")
	flag.StringArrayVar(&opts.venvArgs, "venv-arg", nil, "Extra argument for venv creation (repeatable)")
	flag.Parse()
	return opts
}

func main() {
	os.Exit(run(parseFlags()))
}

func run(opts cliOptions) int {
	started := time.Now()
	ctx := context.Background()

	out := output.New()
	out.SetDebug(opts.debug)
	colors := ui.NewColors(ui.IsColorEnabled())

	cwd, err := os.Getwd()
	if err != nil {
		out.Error("unable to determine working directory: %v", err)
		return exitBadBaseDir
	}

	cfg := config.Load(cwd, out)
	if opts.atOnce > 0 {
		cfg.AtOnce = opts.atOnce
	}
	if opts.mirror != "" {
		cfg.PyPIURL = opts.mirror
	}

	base, err := discover.ValidateBaseDir(opts.baseDir, cwd)
	if err != nil {
		out.Error("%v", err)
		return exitBadBaseDir
	}

	stats := model.NewRunStats()
	targets, err := discover.FindTargets(base, discover.Options{
		ExcludePatterns: cfg.ExcludePatterns,
	}, stats, out)
	if err != nil {
		out.Error("%v", err)
		return exitNoTargets
	}

	targets = filterDisabled(targets, opts.runDisabled, stats, out)
	if opts.since != "" {
		targets = filterSince(targets, opts.since, out)
	}
	if len(targets) == 0 {
		out.Error("No targets found to run. Perhaps you need a ptrun.toml?")
		return exitNoTargets
	}
	out.Info("Found %d targets to run", len(targets))

	runner := proc.NewRunner(out)
	manager := venv.NewManager(runner, out)

	var v *venv.Venv
	if opts.venvPath != "" {
		v, err = venv.Reuse(opts.venvPath)
		if err != nil {
			out.Error("%v", err)
			return exitMissingVenv
		}
		out.Info("Reusing venv @ %s", v.Root)
	} else {
		v, err = manager.Create(ctx, venv.CreateOptions{
			Mirror:       cfg.PyPIURL,
			Interpreter:  "python",
			InstallTools: true,
			ToolPkgs:     cfg.VenvPkgs,
			Timeout:      time.Duration(cfg.VenvTimeoutSeconds) * time.Second,
			ExtraArgs:    opts.venvArgs,
		})
		if err != nil {
			return exitVenvFailed
		}
	}

	analyzer := coverage.NewAnalyzer(out)
	pipe := pipeline.New(runner, analyzer, out)
	sched := scheduler.New(pipe, out)

	results, err := sched.RunAll(ctx, targets, v, stats, scheduler.Options{
		AtOnce:           cfg.AtOnce,
		ProgressInterval: time.Duration(opts.progressInterval) * time.Second,
		PrintCov:         opts.printCov,
		BaseEnv:          config.BuildEnv(cfg.ExtraBuildEnvPrefix, out),
	})
	if err != nil {
		out.Error("%v", err)
		return exitNoTargets
	}

	agg := report.New(out, colors)
	agg.Summarize(results, stats)
	stats.Set("runtime.all_tests", float64(int(time.Since(started).Seconds())))
	agg.WriteSnapshot(stats, opts.statsFile)

	if !opts.keepVenv {
		if err := manager.Destroy(v); err != nil {
			out.Warning("unable to remove venv %s: %v", v.Root, err)
		}
	} else if !v.Reused() {
		out.Info("Keeping venv @ %s", v.Root)
	}

	return report.ExitCode(stats)
}

// filterDisabled drops targets marked disabled unless the run overrides it.
// Every disabled target is counted either way.
func filterDisabled(targets []model.Target, runDisabled bool, stats *model.RunStats, out *output.Writer) []model.Target {
	var kept []model.Target
	for _, t := range targets {
		if t.Config.Disabled {
			stats.Add("total.disabled", 1)
			if !runDisabled {
				out.Info("Skipping disabled target %s", t.DefinitionPath)
				continue
			}
			out.Info("Running disabled target %s due to --run-disabled", t.DefinitionPath)
		}
		kept = append(kept, t)
	}
	return kept
}

// filterSince keeps only targets whose directory holds a file changed since
// ref. When change detection itself fails the full set runs; missing a
// regression is worse than running extra suites.
func filterSince(targets []model.Target, ref string, out *output.Writer) []model.Target {
	root, inRepo := git.DetectRepoRoot()
	if !inRepo {
		out.Warning("not inside a git repository. --since ignored")
		return targets
	}
	changed, err := git.ChangedSince(root, ref)
	if err != nil {
		out.Warning("unable to diff against %s: %v. --since ignored", ref, err)
		return targets
	}
	return filterByChangedFiles(targets, changed, out)
}

func filterByChangedFiles(targets []model.Target, changed []string, out *output.Writer) []model.Target {
	var kept []model.Target
	for _, t := range targets {
		if git.TouchesDir(changed, t.Dir()) {
			kept = append(kept, t)
		} else {
			out.Info("Skipping unchanged target %s", t.DefinitionPath)
		}
	}
	return kept
}
