// Package proc is the subprocess execution primitive: spawn one external
// command with a wall-clock timeout, capture its combined output, and
// classify the outcome so callers can treat failures as data.
package proc

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"time"

	"github.com/acarl005/stripansi"

	"github.com/drew/ptrun/internal/output"
)

// ExecError reports a command that ran to completion with a non-zero exit.
// It carries the captured output so callers can format results uniformly.
type ExecError struct {
	ExitCode int
	Output   string
}

func (e *ExecError) Error() string {
	return fmt.Sprintf("command exited with code %d", e.ExitCode)
}

// TimeoutError reports a command killed for exceeding its wall-clock budget.
type TimeoutError struct {
	After time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("command timed out after %s", e.After)
}

// Runner executes external commands. It never retries.
type Runner struct {
	out *output.Writer
}

// NewRunner creates a Runner.
func NewRunner(out *output.Writer) *Runner {
	return &Runner{out: out}
}

// Run spawns argv with stdout and stderr merged into one stream and waits
// for completion or timeout. On timeout the process is killed and reaped
// before Run returns, so no handle leaks. env of nil inherits the parent
// environment; dir of "" inherits the working directory. Captured output is
// scrubbed of ANSI escapes since the invoked tools like to color their
// diagnostics.
func (r *Runner) Run(ctx context.Context, argv []string, timeout time.Duration, env map[string]string, dir string) (string, error) {
	if len(argv) == 0 {
		return "", errors.New("empty command")
	}

	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(cctx, argv[0], argv[1:]...)
	cmd.Dir = dir
	if env != nil {
		cmd.Env = flattenEnv(env)
	}

	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf

	r.out.Debug("CMD: %v", argv)
	err := cmd.Run()
	captured := stripansi.Strip(buf.String())

	if err == nil {
		return captured, nil
	}
	if cctx.Err() == context.DeadlineExceeded {
		// CommandContext has already killed and reaped the process by the
		// time Run returns.
		return captured, &TimeoutError{After: timeout}
	}
	var ee *exec.ExitError
	if errors.As(err, &ee) {
		return captured, &ExecError{ExitCode: ee.ExitCode(), Output: captured}
	}
	// Spawn failures (missing executable, bad dir) look like a failed step
	// to the pipeline, not a crash of the runner.
	return captured, &ExecError{ExitCode: -1, Output: err.Error()}
}

// flattenEnv converts an environment map to the K=V slice os/exec expects,
// sorted for deterministic spawns.
func flattenEnv(env map[string]string) []string {
	kv := make([]string, 0, len(env))
	for k, v := range env {
		kv = append(kv, k+"="+v)
	}
	sort.Strings(kv)
	return kv
}

// InheritedEnv returns the process environment as a mutable map.
func InheritedEnv() map[string]string {
	env := make(map[string]string)
	for _, kv := range os.Environ() {
		for i := 0; i < len(kv); i++ {
			if kv[i] == '=' {
				env[kv[:i]] = kv[i+1:]
				break
			}
		}
	}
	return env
}

// CopyEnv returns a shallow copy of env. Steps that must diverge from the
// shared base environment mutate a copy to avoid cross-step bleed.
func CopyEnv(env map[string]string) map[string]string {
	dup := make(map[string]string, len(env))
	for k, v := range env {
		dup[k] = v
	}
	return dup
}
