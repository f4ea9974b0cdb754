package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/drew/ptrun/internal/model"
	"github.com/drew/ptrun/internal/output"
)

// Recognized target definition file names. A directory holding more than
// one is resolved in this order.
const (
	TargetFileTOML      = "ptrun.toml"
	TargetFileYAML      = "ptrun.yaml"
	TargetFilePyproject = "pyproject.toml"
)

// DefaultSuiteTimeoutSeconds bounds each pipeline step when the target does
// not set its own budget.
const DefaultSuiteTimeoutSeconds = 30

// IsTargetFile reports whether name is a recognized definition file name.
func IsTargetFile(name string) bool {
	switch name {
	case TargetFileTOML, TargetFileYAML, TargetFilePyproject:
		return true
	}
	return false
}

// knownTargetKeys are the camelCase keys decoded into Configuration; any
// other key passes through into Extra untouched.
var knownTargetKeys = map[string]bool{
	"testSuite":         true,
	"testSuiteTimeout":  true,
	"requiredCoverage":  true,
	"runTypeCheck":      true,
	"runImportSort":     true,
	"runFormatCheck":    true,
	"runLint":           true,
	"runStaticAnalysis": true,
	"disabled":          true,
	"entryPointModule":  true,
	"testsRequire":      true,
	"junitXml":          true,
}

// LoadTarget reads the definition file at path and resolves it into a
// Target. A pyproject.toml without a [tool.ptrun] table yields (nil, nil):
// the file counts as a discovered unit but carries nothing to run.
func LoadTarget(path string, out *output.Writer) (*model.Target, error) {
	var (
		cfg *model.Configuration
		err error
	)
	switch filepath.Base(path) {
	case TargetFileTOML:
		cfg, err = loadTargetTOML(path)
	case TargetFileYAML:
		cfg, err = loadTargetYAML(path)
	case TargetFilePyproject:
		cfg, err = loadTargetPyproject(path)
	default:
		return nil, fmt.Errorf("%s is not a target definition file", path)
	}
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		return nil, nil
	}

	resolved := resolveTargetConfig(*cfg, path)
	return &model.Target{DefinitionPath: path, Config: resolved}, nil
}

func loadTargetTOML(path string) (*model.Configuration, error) {
	var cfg model.Configuration
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	var raw map[string]interface{}
	if _, err := toml.DecodeFile(path, &raw); err == nil {
		cfg.Extra = unknownKeys(raw)
	}
	return &cfg, nil
}

func loadTargetPyproject(path string) (*model.Configuration, error) {
	var file struct {
		Tool struct {
			Ptrun *model.Configuration `toml:"ptrun"`
		} `toml:"tool"`
	}
	if _, err := toml.DecodeFile(path, &file); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	// No [tool.ptrun] table: a project unit with nothing configured to run.
	cfg := file.Tool.Ptrun
	if cfg == nil {
		return nil, nil
	}
	var raw struct {
		Tool map[string]map[string]interface{} `toml:"tool"`
	}
	if _, err := toml.DecodeFile(path, &raw); err == nil {
		cfg.Extra = unknownKeys(raw.Tool["ptrun"])
	}
	return cfg, nil
}

func loadTargetYAML(path string) (*model.Configuration, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg model.Configuration
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	var raw map[string]interface{}
	if err := yaml.Unmarshal(data, &raw); err == nil {
		cfg.Extra = unknownKeys(raw)
	}
	return &cfg, nil
}

// unknownKeys filters a raw decode of the definition down to the keys the
// Configuration struct does not recognize.
func unknownKeys(raw map[string]interface{}) map[string]interface{} {
	if len(raw) == 0 {
		return nil
	}
	extra := make(map[string]interface{})
	for k, v := range raw {
		if !knownTargetKeys[k] {
			extra[k] = v
		}
	}
	if len(extra) == 0 {
		return nil
	}
	return extra
}

// resolveTargetConfig applies per-target defaults. The entry point module
// defaults to the directory name, matching the common single-module layout.
func resolveTargetConfig(cfg model.Configuration, definitionPath string) model.Configuration {
	if cfg.TestSuiteTimeout <= 0 {
		cfg.TestSuiteTimeout = DefaultSuiteTimeoutSeconds
	}
	if cfg.EntryPointModule == "" {
		cfg.EntryPointModule = filepath.Base(filepath.Dir(definitionPath))
	}
	return cfg
}
