package features

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/drew/ptrun/internal/model"
	"github.com/drew/ptrun/internal/output"
	"github.com/drew/ptrun/internal/venv"
)

// scriptedRunner answers each tool invocation from a canned script instead
// of spawning anything.
type scriptedRunner struct {
	failures map[string]error
	outputs  map[string]string
}

func newScriptedRunner() *scriptedRunner {
	return &scriptedRunner{failures: map[string]error{}, outputs: map[string]string{}}
}

func (s *scriptedRunner) Run(_ context.Context, argv []string, _ time.Duration, _ map[string]string, _ string) (string, error) {
	exe := strings.TrimSuffix(filepath.Base(argv[0]), ".exe")
	return s.outputs[exe], s.failures[exe]
}

// sharedContext holds all state for a scenario - used by all step definitions
type sharedContext struct {
	venv      *venv.Venv
	target    model.Target
	required  map[string]float64
	report    string
	result    *model.TargetResult
	attempted int
	tempDirs  []string
	script    *scriptedRunner
}

func newSharedContext() *sharedContext {
	return &sharedContext{required: map[string]float64{}}
}

func (c *sharedContext) runner() *scriptedRunner {
	if c.script == nil {
		c.script = newScriptedRunner()
	}
	return c.script
}

func (c *sharedContext) quietWriter() *output.Writer {
	return output.NewWithWriters(&bytes.Buffer{}, &bytes.Buffer{})
}

// makeTempDir allocates a directory the After hook removes.
func (c *sharedContext) makeTempDir() (string, error) {
	dir, err := os.MkdirTemp("", "ptrun_features")
	if err != nil {
		return "", err
	}
	c.tempDirs = append(c.tempDirs, dir)
	return dir, nil
}

func (c *sharedContext) cleanup() {
	for _, dir := range c.tempDirs {
		os.RemoveAll(dir)
	}
	c.tempDirs = nil
}

// makeVenv lays out a fake sandbox with a resolvable site-packages tree.
func (c *sharedContext) makeVenv() error {
	if c.venv != nil {
		return nil
	}
	root, err := c.makeTempDir()
	if err != nil {
		return err
	}
	sp := filepath.Join(root, "lib", "python3.11", "site-packages")
	if err := os.MkdirAll(sp, 0o755); err != nil {
		return err
	}
	c.venv = &venv.Venv{Root: root}
	return nil
}

func (c *sharedContext) makeTarget(cfg model.Configuration) error {
	dir, err := c.makeTempDir()
	if err != nil {
		return err
	}
	c.target = model.Target{DefinitionPath: filepath.Join(dir, "ptrun.toml"), Config: cfg}
	return nil
}

func (c *sharedContext) theTargetFailsStep(stepName string) error {
	if c.result == nil {
		return fmt.Errorf("the target did not fail at all")
	}
	if got := c.result.FailedStep.String(); got != stepName {
		return fmt.Errorf("failed step is %q, expected %q", got, stepName)
	}
	return nil
}

func (c *sharedContext) theFailureOutputContains(want string) error {
	if c.result == nil {
		return fmt.Errorf("the target did not fail at all")
	}
	if !strings.Contains(c.result.Output, want) {
		return fmt.Errorf("output %q does not contain %q", c.result.Output, want)
	}
	return nil
}
