// Package output provides formatted CLI output for the runner. A Writer is
// injected through constructors rather than used as a package global so
// tests can capture what each component prints.
package output

import (
	"fmt"
	"io"
	"os"
)

// Writer handles leveled CLI output.
type Writer struct {
	out   io.Writer
	err   io.Writer
	debug bool
}

// New creates a Writer bound to stdout/stderr.
func New() *Writer {
	return &Writer{out: os.Stdout, err: os.Stderr}
}

// NewWithWriters creates a Writer with custom io.Writers (for testing).
func NewWithWriters(out, err io.Writer) *Writer {
	return &Writer{out: out, err: err}
}

// SetDebug enables or disables debug messages.
func (w *Writer) SetDebug(debug bool) { w.debug = debug }

// Print writes to stdout.
func (w *Writer) Print(format string, args ...interface{}) {
	fmt.Fprintf(w.out, format, args...)
}

// Println writes a line to stdout.
func (w *Writer) Println(format string, args ...interface{}) {
	fmt.Fprintf(w.out, format+"\n", args...)
}

// Info prints an informational line to stderr, keeping stdout clean for
// report output.
func (w *Writer) Info(format string, args ...interface{}) {
	fmt.Fprintf(w.err, "INFO: "+format+"\n", args...)
}

// Debug prints a line to stderr only when debug output is enabled.
func (w *Writer) Debug(format string, args ...interface{}) {
	if !w.debug {
		return
	}
	fmt.Fprintf(w.err, "DEBUG: "+format+"\n", args...)
}

// Warning prints a warning line to stderr.
func (w *Writer) Warning(format string, args ...interface{}) {
	fmt.Fprintf(w.err, "WARNING: "+format+"\n", args...)
}

// Error prints an error line to stderr.
func (w *Writer) Error(format string, args ...interface{}) {
	fmt.Fprintf(w.err, "ERROR: "+format+"\n", args...)
}
