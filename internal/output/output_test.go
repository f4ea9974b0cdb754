package output

import (
	"bytes"
	"testing"
)

func TestLevelsAndStreams(t *testing.T) {
	outBuf := &bytes.Buffer{}
	errBuf := &bytes.Buffer{}
	w := NewWithWriters(outBuf, errBuf)

	w.Print("plain %d", 1)
	w.Println("line %d", 2)
	w.Info("info %s", "msg")
	w.Warning("warn %s", "msg")
	w.Error("err %s", "msg")

	if got := outBuf.String(); got != "plain 1line 2\n" {
		t.Errorf("stdout = %q", got)
	}
	want := "INFO: info msg\nWARNING: warn msg\nERROR: err msg\n"
	if got := errBuf.String(); got != want {
		t.Errorf("stderr = %q, want %q", got, want)
	}
}

func TestDebugGating(t *testing.T) {
	errBuf := &bytes.Buffer{}
	w := NewWithWriters(&bytes.Buffer{}, errBuf)

	w.Debug("hidden")
	if errBuf.Len() != 0 {
		t.Errorf("debug printed while disabled: %q", errBuf.String())
	}

	w.SetDebug(true)
	w.Debug("shown")
	if got := errBuf.String(); got != "DEBUG: shown\n" {
		t.Errorf("stderr = %q", got)
	}
}
