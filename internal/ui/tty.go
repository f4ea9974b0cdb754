// Package ui holds terminal helpers: color output and TTY detection.
package ui

import (
	"os"

	"golang.org/x/term"
)

// IsTTY checks if the given file descriptor is a terminal
func IsTTY(fd uintptr) bool {
	return term.IsTerminal(int(fd))
}

// IsColorEnabled returns true if color output should be enabled.
// NO_COLOR always wins; otherwise colors follow stdout being a TTY.
func IsColorEnabled() bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	return IsTTY(os.Stdout.Fd())
}
