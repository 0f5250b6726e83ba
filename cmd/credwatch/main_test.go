package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestEmitCommandError_StructuredForScopedCommands(t *testing.T) {
	t.Setenv("LOG_FORMAT", "json")
	t.Setenv("LOG_LEVEL", "info")
	setCommandExecutionContext(commandExecutionContext{
		CommandPath:       "credwatch run",
		UsesStructuredLog: true,
	})
	t.Cleanup(resetCommandExecutionContext)

	var out bytes.Buffer
	emitCommandError(errors.New("boom"), "command failed", 1, &out)

	line := strings.TrimSpace(out.String())
	if line == "" {
		t.Fatal("expected structured log output")
	}

	var payload map[string]any
	if err := json.Unmarshal([]byte(line), &payload); err != nil {
		t.Fatalf("json.Unmarshal() error = %v", err)
	}
	if got := payload["app"]; got != "credwatch" {
		t.Fatalf("app = %v, want %q", got, "credwatch")
	}
	if got := payload["command"]; got != "credwatch run" {
		t.Fatalf("command = %v, want %q", got, "credwatch run")
	}
	if got := payload["exit_code"]; got != float64(1) {
		t.Fatalf("exit_code = %v, want %v", got, 1)
	}
	if got := payload["error"]; got != "boom" {
		t.Fatalf("error = %v, want %q", got, "boom")
	}
}

func TestEmitCommandError_FallsBackToJSONWhenLoggingEnvInvalid(t *testing.T) {
	t.Setenv("LOG_FORMAT", "invalid")
	t.Setenv("LOG_LEVEL", "info")
	setCommandExecutionContext(commandExecutionContext{
		CommandPath:       "credwatch worker",
		UsesStructuredLog: true,
	})
	t.Cleanup(resetCommandExecutionContext)

	var out bytes.Buffer
	emitCommandError(errors.New("boom"), "command failed", 1, &out)

	line := strings.TrimSpace(out.String())
	if line == "" {
		t.Fatal("expected structured log output")
	}
	var payload map[string]any
	if err := json.Unmarshal([]byte(line), &payload); err != nil {
		t.Fatalf("expected JSON fallback log, got parse error: %v", err)
	}
}

func TestEmitCommandError_PlainOutputForNonScopedCommands(t *testing.T) {
	setCommandExecutionContext(commandExecutionContext{
		CommandPath:       "credwatch config-check",
		UsesStructuredLog: false,
	})
	t.Cleanup(resetCommandExecutionContext)

	var out bytes.Buffer
	emitCommandError(errors.New("plain boom"), "command failed", 1, &out)
	if got := out.String(); got != "plain boom\n" {
		t.Fatalf("output = %q, want %q", got, "plain boom\n")
	}
}

func TestEmitCommandError_CanceledOutputForNonScopedCommands(t *testing.T) {
	setCommandExecutionContext(commandExecutionContext{
		CommandPath:       "credwatch config-check",
		UsesStructuredLog: false,
	})
	t.Cleanup(resetCommandExecutionContext)

	var out bytes.Buffer
	emitCommandError(context.Canceled, "command canceled", 130, &out)
	if got := out.String(); got != "canceled\n" {
		t.Fatalf("output = %q, want %q", got, "canceled\n")
	}
}

func TestExitCodeForError(t *testing.T) {
	t.Setenv("LOG_FORMAT", "json")
	setCommandExecutionContext(commandExecutionContext{
		CommandPath:       "credwatch run",
		UsesStructuredLog: true,
	})
	t.Cleanup(resetCommandExecutionContext)

	tests := []struct {
		name       string
		err        error
		wantCode   int
		wantOutput bool
	}{
		{name: "pre-run", err: preRunError(errors.New("MAIL_FROM_ADDRESS required")), wantCode: 1, wantOutput: true},
		{name: "usage", err: usageError(errors.New("bad date")), wantCode: 2, wantOutput: true},
		{name: "run canceled", err: runError(context.Canceled), wantCode: 130, wantOutput: false},
		{name: "run failed", err: runError(errors.New("collect credentials: 401")), wantCode: 1, wantOutput: true},
		{name: "bare canceled", err: context.Canceled, wantCode: 130, wantOutput: true},
		{name: "bare", err: errors.New("boom"), wantCode: 1, wantOutput: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var out bytes.Buffer
			if got := exitCodeForError(tc.err, &out); got != tc.wantCode {
				t.Fatalf("exitCodeForError() = %d, want %d", got, tc.wantCode)
			}
			if gotOutput := out.Len() > 0; gotOutput != tc.wantOutput {
				t.Fatalf("output written = %v, want %v (%q)", gotOutput, tc.wantOutput, out.String())
			}
		})
	}
}

func TestRunMain_Success(t *testing.T) {
	var out bytes.Buffer
	if code := runMain(func() error { return nil }, &out); code != 0 {
		t.Fatalf("runMain() = %d, want 0", code)
	}
	if out.Len() != 0 {
		t.Fatalf("unexpected output %q", out.String())
	}
}

func TestRunError_Nil(t *testing.T) {
	if err := runError(nil); err != nil {
		t.Fatalf("runError(nil) = %v, want nil", err)
	}
	if err := preRunError(nil); err != nil {
		t.Fatalf("preRunError(nil) = %v, want nil", err)
	}
}
