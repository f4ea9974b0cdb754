package venv

import (
	"bytes"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/drew/ptrun/internal/output"
	"github.com/drew/ptrun/internal/proc"
)

func testManager() *Manager {
	out := output.NewWithWriters(&bytes.Buffer{}, &bytes.Buffer{})
	return NewManager(proc.NewRunner(out), out)
}

func TestBinDirAndExe(t *testing.T) {
	v := &Venv{Root: filepath.Join("tmp", "venv")}
	if runtime.GOOS == "windows" {
		if got := v.BinDir(); got != filepath.Join("tmp", "venv", "Scripts") {
			t.Errorf("BinDir() = %q", got)
		}
		if got := v.Exe("pip"); got != filepath.Join("tmp", "venv", "Scripts", "pip.exe") {
			t.Errorf("Exe() = %q", got)
		}
		return
	}
	if got := v.BinDir(); got != filepath.Join("tmp", "venv", "bin") {
		t.Errorf("BinDir() = %q", got)
	}
	if got := v.Exe("pip"); got != filepath.Join("tmp", "venv", "bin", "pip") {
		t.Errorf("Exe() = %q", got)
	}
}

func TestSitePackages(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("POSIX venv layout")
	}
	root := t.TempDir()
	sp := filepath.Join(root, "lib", "python3.11", "site-packages")
	if err := os.MkdirAll(sp, 0o755); err != nil {
		t.Fatal(err)
	}

	v := &Venv{Root: root}
	got, err := v.SitePackages()
	if err != nil {
		t.Fatalf("SitePackages() error = %v", err)
	}
	if got != sp {
		t.Errorf("SitePackages() = %q, want %q", got, sp)
	}
}

func TestSitePackagesMissing(t *testing.T) {
	v := &Venv{Root: t.TempDir()}
	if _, err := v.SitePackages(); err == nil {
		t.Error("SitePackages() on an empty root should error")
	}
}

func TestWriteMirrorConfig(t *testing.T) {
	v := &Venv{Root: t.TempDir()}
	if err := v.WriteMirrorConfig("https://mirror.example/simple/"); err != nil {
		t.Fatalf("WriteMirrorConfig() error = %v", err)
	}

	name := "pip.conf"
	if runtime.GOOS == "windows" {
		name = "pip.ini"
	}
	data, err := os.ReadFile(filepath.Join(v.Root, name))
	if err != nil {
		t.Fatal(err)
	}
	conf := string(data)
	if !strings.HasPrefix(conf, "[global]\n") {
		t.Errorf("config = %q, want [global] section first", conf)
	}
	if !strings.Contains(conf, "index-url = https://mirror.example/simple/\n") {
		t.Errorf("config = %q, missing index-url", conf)
	}
	if !strings.Contains(conf, "timeout = 2\n") {
		t.Errorf("config = %q, missing timeout", conf)
	}
}

func TestReuse(t *testing.T) {
	dir := t.TempDir()
	v, err := Reuse(dir)
	if err != nil {
		t.Fatalf("Reuse() error = %v", err)
	}
	if !v.Reused() {
		t.Error("Reused() = false")
	}

	if _, err := Reuse(filepath.Join(dir, "missing")); err == nil {
		t.Error("Reuse() of a missing path should error")
	}
}

func TestDestroySkipsReused(t *testing.T) {
	dir := t.TempDir()
	v, err := Reuse(dir)
	if err != nil {
		t.Fatal(err)
	}
	if err := testManager().Destroy(v); err != nil {
		t.Fatalf("Destroy() error = %v", err)
	}
	if _, err := os.Stat(dir); err != nil {
		t.Error("Destroy() removed a reused venv")
	}
}

func TestDestroyRemovesCreated(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "venv")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := testManager().Destroy(&Venv{Root: dir}); err != nil {
		t.Fatalf("Destroy() error = %v", err)
	}
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Error("Destroy() left the venv behind")
	}
}

func TestDestroyNil(t *testing.T) {
	if err := testManager().Destroy(nil); err != nil {
		t.Errorf("Destroy(nil) error = %v", err)
	}
}
