package discover

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/drew/ptrun/internal/model"
	"github.com/drew/ptrun/internal/output"
)

func testWriter() *output.Writer {
	return output.NewWithWriters(&bytes.Buffer{}, &bytes.Buffer{})
}

func writeTarget(t *testing.T, base string, parts ...string) string {
	t.Helper()
	dir := filepath.Join(append([]string{base}, parts[:len(parts)-1]...)...)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, parts[len(parts)-1])
	if err := os.WriteFile(path, []byte("testSuite = \"proj.tests\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestPatternExclude(t *testing.T) {
	exclude := PatternExclude([]string{"build*", "yocto"})
	tests := []struct {
		name string
		want bool
	}{
		{"build", true},
		{"build-dir", true},
		{"yocto", true},
		{"src", false},
		{"rebuild", false},
	}
	for _, tt := range tests {
		if got := exclude(tt.name); got != tt.want {
			t.Errorf("exclude(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestValidateBaseDir(t *testing.T) {
	dir := t.TempDir()
	got, err := ValidateBaseDir(dir, "/")
	if err != nil {
		t.Fatalf("ValidateBaseDir() error = %v", err)
	}
	if got != dir {
		t.Errorf("ValidateBaseDir() = %q, want %q", got, dir)
	}

	if _, err := ValidateBaseDir(filepath.Join(dir, "missing"), "/"); err == nil {
		t.Error("ValidateBaseDir() with missing dir should error")
	}
}

func TestFindTargetsSorted(t *testing.T) {
	base := t.TempDir()
	writeTarget(t, base, "b", "ptrun.toml")
	writeTarget(t, base, "a", "ptrun.toml")
	writeTarget(t, base, "c", "ptrun.toml")

	stats := model.NewRunStats()
	targets, err := FindTargets(base, Options{}, stats, testWriter())
	if err != nil {
		t.Fatalf("FindTargets() error = %v", err)
	}
	if len(targets) != 3 {
		t.Fatalf("found %d targets, want 3", len(targets))
	}
	for i, want := range []string{"a", "b", "c"} {
		if got := targets[i].Name(); got != want {
			t.Errorf("targets[%d] = %s, want %s", i, got, want)
		}
	}
	if v, _ := stats.Get("total.targets"); v != 3 {
		t.Errorf("total.targets = %v, want 3", v)
	}
	if v, _ := stats.Get("total.configured_targets"); v != 3 {
		t.Errorf("total.configured_targets = %v, want 3", v)
	}
}

func TestFindTargetsExcludesDirectories(t *testing.T) {
	base := t.TempDir()
	writeTarget(t, base, "src", "ptrun.toml")
	writeTarget(t, base, "build-out", "ptrun.toml")

	stats := model.NewRunStats()
	targets, err := FindTargets(base, Options{ExcludePatterns: []string{"build*"}}, stats, testWriter())
	if err != nil {
		t.Fatalf("FindTargets() error = %v", err)
	}
	if len(targets) != 1 || targets[0].Name() != "src" {
		t.Errorf("targets = %v, want only src", targets)
	}
}

func TestFindTargetsCustomExcludeFunc(t *testing.T) {
	base := t.TempDir()
	writeTarget(t, base, "keep", "ptrun.toml")
	writeTarget(t, base, "drop", "ptrun.toml")

	opts := Options{Exclude: func(name string) bool { return name == "drop" }}
	targets, err := FindTargets(base, opts, model.NewRunStats(), testWriter())
	if err != nil {
		t.Fatalf("FindTargets() error = %v", err)
	}
	if len(targets) != 1 || targets[0].Name() != "keep" {
		t.Errorf("targets = %v, want only keep", targets)
	}
}

func TestFindTargetsUnconfiguredPyprojectCountedNotReturned(t *testing.T) {
	base := t.TempDir()
	dir := filepath.Join(base, "plain")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	content := "[build-system]\nrequires = [\"setuptools\"]\n"
	if err := os.WriteFile(filepath.Join(dir, "pyproject.toml"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	stats := model.NewRunStats()
	targets, err := FindTargets(base, Options{}, stats, testWriter())
	if err != nil {
		t.Fatalf("FindTargets() error = %v", err)
	}
	if len(targets) != 0 {
		t.Errorf("targets = %v, want none", targets)
	}
	if v, _ := stats.Get("total.targets"); v != 1 {
		t.Errorf("total.targets = %v, want 1", v)
	}
	if v, _ := stats.Get("total.configured_targets"); v != 0 {
		t.Errorf("total.configured_targets = %v, want 0", v)
	}
}

func TestFindTargetsPrefersNativeDefinition(t *testing.T) {
	base := t.TempDir()
	dir := filepath.Join(base, "proj")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	toml := "testSuite = \"proj.tests.native\"\n"
	pyproject := "[tool.ptrun]\ntestSuite = \"proj.tests.pyproject\"\n"
	if err := os.WriteFile(filepath.Join(dir, "ptrun.toml"), []byte(toml), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "pyproject.toml"), []byte(pyproject), 0o644); err != nil {
		t.Fatal(err)
	}

	targets, err := FindTargets(base, Options{}, model.NewRunStats(), testWriter())
	if err != nil {
		t.Fatalf("FindTargets() error = %v", err)
	}
	if len(targets) != 1 {
		t.Fatalf("found %d targets, want 1", len(targets))
	}
	if got := targets[0].Config.TestSuite; got != "proj.tests.native" {
		t.Errorf("TestSuite = %q, ptrun.toml should win over pyproject.toml", got)
	}
}
