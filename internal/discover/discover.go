// Package discover locates target definition files beneath a base
// directory and resolves them into runnable targets.
package discover

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/drew/ptrun/internal/config"
	"github.com/drew/ptrun/internal/model"
	"github.com/drew/ptrun/internal/output"
)

// ExcludeFunc decides whether a directory (by base name) is skipped during
// the walk, subtrees included.
type ExcludeFunc func(name string) bool

// Options configures a discovery walk.
type Options struct {
	// Exclude overrides the default pattern-based predicate when set.
	Exclude ExcludeFunc
	// ExcludePatterns feeds the default predicate (doublestar syntax).
	ExcludePatterns []string
	// FollowSymlinks enters symlinked directories when true.
	FollowSymlinks bool
}

// PatternExclude builds the default predicate from doublestar patterns.
// Invalid patterns never match.
func PatternExclude(patterns []string) ExcludeFunc {
	return func(name string) bool {
		for _, pattern := range patterns {
			if ok, err := doublestar.Match(pattern, name); err == nil && ok {
				return true
			}
		}
		return false
	}
}

// ValidateBaseDir resolves base against cwd and verifies it exists.
func ValidateBaseDir(base, cwd string) (string, error) {
	if !filepath.IsAbs(base) {
		base = filepath.Join(cwd, base)
	}
	if _, err := os.Stat(base); err != nil {
		return "", fmt.Errorf("%s does not exist", base)
	}
	return base, nil
}

// FindTargets walks base with an explicit worklist (no recursion, deep
// trees are fine) and returns every target with a usable configuration,
// sorted by definition-file path so dispatch order is reproducible. All
// definition files found are counted into stats, configured or not.
func FindTargets(base string, opts Options, stats *model.RunStats, out *output.Writer) ([]model.Target, error) {
	started := time.Now()

	exclude := opts.Exclude
	if exclude == nil {
		exclude = PatternExclude(opts.ExcludePatterns)
	}

	var definitionFiles []string
	worklist := []string{base}
	for len(worklist) > 0 {
		dir := worklist[len(worklist)-1]
		worklist = worklist[:len(worklist)-1]

		entries, err := os.ReadDir(dir)
		if err != nil {
			out.Warning("skipping unreadable directory %s: %v", dir, err)
			continue
		}

		found := ""
		for _, entry := range entries {
			name := entry.Name()
			full := filepath.Join(dir, name)

			// ReadDir reports symlinks as non-directories, so symlinked
			// directories are only entered when explicitly requested.
			isDir := entry.IsDir()
			if !isDir && entry.Type()&os.ModeSymlink != 0 && opts.FollowSymlinks {
				if info, err := os.Stat(full); err == nil && info.IsDir() {
					isDir = true
				}
			}

			if isDir {
				if exclude(name) {
					out.Debug("Skipping %s due to exclude pattern", full)
					continue
				}
				worklist = append(worklist, full)
				continue
			}
			if config.IsTargetFile(name) && preferredTargetFile(found, name) {
				found = name
			}
		}
		if found != "" {
			definitionFiles = append(definitionFiles, filepath.Join(dir, found))
		}
	}

	stats.Set("total.targets", float64(len(definitionFiles)))

	var targets []model.Target
	for _, path := range definitionFiles {
		target, err := config.LoadTarget(path, out)
		if err != nil {
			out.Warning("%v", err)
			continue
		}
		if target == nil || target.Config.TestSuite == "" && !hasAnyGate(target.Config) {
			out.Info("%s has no suite. Nothing to run", path)
			continue
		}
		targets = append(targets, *target)
	}

	sort.Slice(targets, func(i, j int) bool {
		return targets[i].DefinitionPath < targets[j].DefinitionPath
	})

	stats.Set("total.configured_targets", float64(len(targets)))
	stats.Set("runtime.parse_targets", float64(int(time.Since(started).Seconds())))
	return targets, nil
}

// preferredTargetFile keeps the highest-priority definition file when a
// directory carries more than one: ptrun.toml > ptrun.yaml > pyproject.toml.
func preferredTargetFile(current, candidate string) bool {
	rank := func(name string) int {
		switch name {
		case config.TargetFileTOML:
			return 3
		case config.TargetFileYAML:
			return 2
		case config.TargetFilePyproject:
			return 1
		}
		return 0
	}
	return rank(candidate) > rank(current)
}

func hasAnyGate(cfg model.Configuration) bool {
	return len(cfg.RequiredCoverage) > 0 || cfg.RunTypeCheck || cfg.RunImportSort ||
		cfg.RunFormatCheck || cfg.RunLint || cfg.RunStaticAnalysis
}
