package logger

import (
	"bytes"
	"os"
	"sync"
	"testing"
)

func TestSetVerbose(t *testing.T) {
	defer SetVerbose(false)

	SetVerbose(true)
	if !IsVerbose() {
		t.Error("expected verbose to be enabled")
	}

	SetVerbose(false)
	if IsVerbose() {
		t.Error("expected verbose to be disabled")
	}
}

func TestDebug_WhenVerbose(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	SetVerbose(true)
	defer func() {
		SetOutput(os.Stderr)
		SetVerbose(false)
	}()

	Debug("test message %d", 42)

	got := buf.String()
	want := "[DEBUG] test message 42\n"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestDebug_WhenNotVerbose(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	SetVerbose(false)
	defer SetOutput(os.Stderr)

	Debug("should not appear")

	if buf.Len() != 0 {
		t.Errorf("expected no output, got %q", buf.String())
	}
}

func TestSection_WhenNotVerbose(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	SetVerbose(false)
	defer SetOutput(os.Stderr)

	Section("Wiring")

	if buf.Len() != 0 {
		t.Errorf("expected no output, got %q", buf.String())
	}
}

func TestSection_WhenVerbose(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	SetVerbose(true)
	defer func() {
		SetOutput(os.Stderr)
		SetVerbose(false)
	}()

	Section("Wiring")

	want := "\n=== Wiring ===\n"
	if buf.String() != want {
		t.Errorf("got %q, want %q", buf.String(), want)
	}
}

func TestInfoAlwaysPrints(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	SetVerbose(false)
	defer SetOutput(os.Stderr)

	Info("server listening on %s", ":8080")

	want := "[INFO] server listening on :8080\n"
	if buf.String() != want {
		t.Errorf("got %q, want %q", buf.String(), want)
	}
}

func TestWarnAlwaysPrints(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	SetVerbose(false)
	defer SetOutput(os.Stderr)

	Warn("vector leg degraded")

	want := "[WARN] vector leg degraded\n"
	if buf.String() != want {
		t.Errorf("got %q, want %q", buf.String(), want)
	}
}

func TestErrorAlwaysPrints(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(os.Stderr)

	Error("ingest failed: %v", "disk full")

	want := "[ERROR] ingest failed: disk full\n"
	if buf.String() != want {
		t.Errorf("got %q, want %q", buf.String(), want)
	}
}

func TestConcurrentAccess(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer func() {
		SetOutput(os.Stderr)
		SetVerbose(false)
	}()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			SetVerbose(n%2 == 0)
			Debug("message %d", n)
			Info("message %d", n)
		}(i)
	}
	wg.Wait()
}
