package config

import (
	"os"
	"path/filepath"

	"github.com/drew/ptrun/internal/output"
	"github.com/drew/ptrun/internal/proc"
)

// BuildEnv assembles the base environment shared by every worker: the full
// process environment, plus PATH and include-path entries for the optional
// local build prefix so native extensions compile against it.
func BuildEnv(buildPrefix string, out *output.Writer) map[string]string {
	env := proc.InheritedEnv()
	if buildPrefix == "" {
		return env
	}
	if _, err := os.Stat(buildPrefix); err != nil {
		out.Error("%s does not exist. Not adding PATH + INCLUDE env variables", buildPrefix)
		return env
	}

	prepends := []struct {
		name  string
		value string
	}{
		{"PATH", filepath.Join(buildPrefix, "sbin")},
		{"PATH", filepath.Join(buildPrefix, "bin")},
		{"C_INCLUDE_PATH", filepath.Join(buildPrefix, "include")},
		{"CPLUS_INCLUDE_PATH", filepath.Join(buildPrefix, "include")},
	}
	for _, p := range prepends {
		if existing, ok := env[p.name]; ok {
			env[p.name] = p.value + string(os.PathListSeparator) + existing
		} else {
			env[p.name] = p.value
		}
	}
	return env
}
