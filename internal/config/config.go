// Package config handles the runner's own configuration file and the
// per-target definition files.
package config

import (
	"os"
	"path/filepath"
	"runtime"

	"github.com/BurntSushi/toml"

	"github.com/drew/ptrun/internal/output"
)

// ConfigFileName is looked up from the working directory towards the
// filesystem root; the first hit wins.
const ConfigFileName = ".ptrunconfig"

// Environment overrides, checked after file and defaults.
const (
	EnvMirror      = "PTRUN_MIRROR"
	EnvBuildPrefix = "PTRUN_BUILD_PREFIX"
)

// RunnerConfig holds run-wide settings that do not belong to any one target.
type RunnerConfig struct {
	// How many targets to run at once
	AtOnce int `toml:"atonce"`
	// Directory-name patterns excluded from discovery
	ExcludePatterns []string `toml:"excludePatterns"`
	// Package index for pip inside the sandbox
	PyPIURL string `toml:"pypiURL"`
	// Toolchain installed into a freshly created sandbox
	VenvPkgs []string `toml:"venvPkgs"`
	// Budget for each sandbox creation stage
	VenvTimeoutSeconds int `toml:"venvTimeoutSeconds"`
	// Optional local build prefix prepended to PATH and include paths
	ExtraBuildEnvPrefix string `toml:"extraBuildEnvPrefix"`
}

type runnerConfigFile struct {
	Ptrun RunnerConfig `toml:"ptrun"`
}

// Defaults returns the built-in runner configuration.
func Defaults() RunnerConfig {
	atonce := runtime.NumCPU() / 2
	if atonce < 1 {
		atonce = 1
	}
	pkgs := []string{"black", "coverage", "flake8", "mypy", "pip", "setuptools", "usort"}
	if runtime.GOOS != "windows" {
		pkgs = append(pkgs, "pyre-check")
	}
	return RunnerConfig{
		AtOnce:             atonce,
		ExcludePatterns:    []string{"build*", "yocto"},
		PyPIURL:            "https://pypi.org/simple/",
		VenvPkgs:           pkgs,
		VenvTimeoutSeconds: 600,
	}
}

// Load searches startDir and its parents for a config file, merges what it
// finds over the defaults, and applies environment overrides.
func Load(startDir string, out *output.Writer) RunnerConfig {
	cfg := Defaults()

	if path, ok := findConfigFile(startDir); ok {
		var file runnerConfigFile
		if _, err := toml.DecodeFile(path, &file); err != nil {
			out.Warning("ignoring unparseable config %s: %v", path, err)
		} else {
			out.Info("Loading found config @ %s", path)
			cfg = mergeConfig(cfg, file.Ptrun)
		}
	} else {
		out.Info("Using default config settings")
	}

	if mirror := os.Getenv(EnvMirror); mirror != "" {
		cfg.PyPIURL = mirror
	}
	if prefix := os.Getenv(EnvBuildPrefix); prefix != "" {
		cfg.ExtraBuildEnvPrefix = prefix
	}
	return cfg
}

func findConfigFile(startDir string) (string, bool) {
	dir := startDir
	for {
		candidate := filepath.Join(dir, ConfigFileName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}

// mergeConfig overlays non-zero fields of found onto base.
func mergeConfig(base, found RunnerConfig) RunnerConfig {
	if found.AtOnce != 0 {
		base.AtOnce = found.AtOnce
	}
	if found.ExcludePatterns != nil {
		base.ExcludePatterns = found.ExcludePatterns
	}
	if found.PyPIURL != "" {
		base.PyPIURL = found.PyPIURL
	}
	if found.VenvPkgs != nil {
		base.VenvPkgs = found.VenvPkgs
	}
	if found.VenvTimeoutSeconds != 0 {
		base.VenvTimeoutSeconds = found.VenvTimeoutSeconds
	}
	if found.ExtraBuildEnvPrefix != "" {
		base.ExtraBuildEnvPrefix = found.ExtraBuildEnvPrefix
	}
	return base
}
