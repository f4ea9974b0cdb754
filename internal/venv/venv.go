// Package venv manages the ephemeral virtualenv sandbox every gate runs
// in. One venv is created per run (or reused via --venv), shared read-only
// by all workers, and destroyed afterwards unless kept.
package venv

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/drew/ptrun/internal/output"
	"github.com/drew/ptrun/internal/proc"
)

// ErrCreationFailed wraps any failure during sandbox bootstrap. It is fatal
// for the run: no targets are scheduled without a sandbox.
var ErrCreationFailed = errors.New("venv creation failed")

const mirrorConfTemplate = "[global]\nindex-url = %s\ntimeout = %d\n"

// mirrorConfTimeout is the pip network timeout written into the sandbox's
// mirror configuration, in seconds.
const mirrorConfTimeout = 2

// Venv is an isolated runtime environment rooted at a unique path.
// Read-only for the duration of a run.
type Venv struct {
	Root   string
	reused bool
}

// Reuse wraps an externally supplied venv path. Reused venvs are never
// destroyed by this tool.
func Reuse(path string) (*Venv, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%s venv does not exist", path)
	}
	return &Venv{Root: path, reused: true}, nil
}

// Reused reports whether the venv was supplied externally.
func (v *Venv) Reused() bool { return v.reused }

// BinDir returns the executable directory inside the venv.
func (v *Venv) BinDir() string {
	if runtime.GOOS == "windows" {
		return filepath.Join(v.Root, "Scripts")
	}
	return filepath.Join(v.Root, "bin")
}

// Exe returns the path of a tool executable inside the venv.
func (v *Venv) Exe(name string) string {
	if runtime.GOOS == "windows" {
		name += ".exe"
	}
	return filepath.Join(v.BinDir(), name)
}

// SitePackages locates the venv's site-packages directory. On POSIX the
// python minor version is part of the path, so the first lib/python* child
// wins.
func (v *Venv) SitePackages() (string, error) {
	if runtime.GOOS == "windows" {
		sp := filepath.Join(v.Root, "Lib", "site-packages")
		if _, err := os.Stat(sp); err != nil {
			return "", fmt.Errorf("unable to find site-packages in %s", v.Root)
		}
		return sp, nil
	}

	libPath := filepath.Join(v.Root, "lib")
	entries, err := os.ReadDir(libPath)
	if err != nil {
		return "", fmt.Errorf("unable to find a python lib dir in %s: %w", libPath, err)
	}
	for _, entry := range entries {
		if entry.IsDir() && strings.HasPrefix(entry.Name(), "python") {
			return filepath.Join(libPath, entry.Name(), "site-packages"), nil
		}
	}
	return "", fmt.Errorf("unable to find a python lib dir in %s", libPath)
}

// WriteMirrorConfig points pip inside the venv at the configured package
// index.
func (v *Venv) WriteMirrorConfig(mirror string) error {
	name := "pip.conf"
	if runtime.GOOS == "windows" {
		name = "pip.ini"
	}
	conf := fmt.Sprintf(mirrorConfTemplate, mirror, mirrorConfTimeout)
	return os.WriteFile(filepath.Join(v.Root, name), []byte(conf), 0o644)
}

// Manager creates and destroys sandboxes.
type Manager struct {
	runner *proc.Runner
	out    *output.Writer
}

// NewManager creates a Manager.
func NewManager(runner *proc.Runner, out *output.Writer) *Manager {
	return &Manager{runner: runner, out: out}
}

// CreateOptions configures sandbox creation.
type CreateOptions struct {
	Mirror       string
	Interpreter  string
	InstallTools bool
	ToolPkgs     []string
	Timeout      time.Duration
	ExtraArgs    []string
}

// Create allocates a pid-scoped venv root, boots the interpreter's venv
// module into it, writes the mirror configuration, and installs the
// toolchain packages. Every stage shares the same timeout budget and any
// failure aborts creation.
func (m *Manager) Create(ctx context.Context, opts CreateOptions) (*Venv, error) {
	started := time.Now()
	root := filepath.Join(os.TempDir(), fmt.Sprintf("ptrun_venv_%d", os.Getpid()))
	v := &Venv{Root: root}

	createCmd := append([]string{opts.Interpreter, "-m", "venv"}, opts.ExtraArgs...)
	createCmd = append(createCmd, root)
	if captured, err := m.runner.Run(ctx, createCmd, opts.Timeout, nil, ""); err != nil {
		m.out.Error("Failed to setup venv @ %s (%v)", root, err)
		m.logCaptured(captured, err)
		return nil, fmt.Errorf("%w: %s", ErrCreationFailed, err)
	}

	if err := v.WriteMirrorConfig(opts.Mirror); err != nil {
		m.out.Error("Failed to write mirror config into %s (%v)", root, err)
		return nil, fmt.Errorf("%w: %s", ErrCreationFailed, err)
	}

	if opts.InstallTools {
		installCmd := append([]string{v.Exe("pip"), "install", "--upgrade"}, opts.ToolPkgs...)
		if captured, err := m.runner.Run(ctx, installCmd, opts.Timeout, nil, ""); err != nil {
			m.out.Error("Failed to install toolchain into %s (%v)", root, err)
			m.logCaptured(captured, err)
			return nil, fmt.Errorf("%w: %s", ErrCreationFailed, err)
		}
	}

	m.out.Info("Successfully created venv @ %s to run tests (%ds)", root, int(time.Since(started).Seconds()))
	return v, nil
}

// Destroy removes the venv root recursively. A reused venv is left alone.
func (m *Manager) Destroy(v *Venv) error {
	if v == nil || v.reused {
		return nil
	}
	return os.RemoveAll(v.Root)
}

func (m *Manager) logCaptured(captured string, err error) {
	if captured != "" {
		m.out.Error("captured output:\n%s", captured)
	}
	var ee *proc.ExecError
	if errors.As(err, &ee) && ee.Output != captured && ee.Output != "" {
		m.out.Error("process output:\n%s", ee.Output)
	}
}
