// Package git provides the change detection behind the --since flag:
// targets whose directory contains no file changed since a ref are skipped.
package git

import (
	"bytes"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// DetectRepoRoot returns the enclosing repository root and whether the
// current directory is inside a git repo at all. Outside a repo the cwd is
// returned so callers always get a usable path.
func DetectRepoRoot() (string, bool) {
	cmd := exec.Command("git", "rev-parse", "--show-toplevel")
	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &bytes.Buffer{}

	if err := cmd.Run(); err != nil {
		cwd, err2 := os.Getwd()
		if err2 != nil {
			return ".", false
		}
		return cwd, false
	}

	root := strings.TrimSpace(buf.String())
	if root == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return ".", false
		}
		return cwd, false
	}
	return root, true
}

// ChangedSince lists the absolute paths of files changed since ref,
// including uncommitted modifications.
func ChangedSince(repoRoot, ref string) ([]string, error) {
	cmd := exec.Command("git", "diff", "--name-only", ref)
	cmd.Dir = repoRoot
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &bytes.Buffer{}
	if err := cmd.Run(); err != nil {
		return nil, err
	}

	var files []string
	for _, line := range strings.Split(strings.TrimSpace(out.String()), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		files = append(files, filepath.Join(repoRoot, line))
	}
	return files, nil
}

// TouchesDir reports whether any of files lives under dir.
func TouchesDir(files []string, dir string) bool {
	for _, f := range files {
		if rel, err := filepath.Rel(dir, f); err == nil && !strings.HasPrefix(rel, "..") {
			return true
		}
	}
	return false
}
