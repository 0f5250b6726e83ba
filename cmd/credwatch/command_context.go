package main

import (
	"sync"

	"github.com/spf13/cobra"
)

// commandExecutionContext describes the command being executed so the fatal
// error path can format output the same way the command logs.
type commandExecutionContext struct {
	CommandPath       string
	UsesStructuredLog bool
}

var (
	commandExecutionMu  sync.Mutex
	commandExecutionCur commandExecutionContext
)

func setCommandExecutionContext(ctx commandExecutionContext) {
	commandExecutionMu.Lock()
	defer commandExecutionMu.Unlock()
	commandExecutionCur = ctx
}

func resetCommandExecutionContext() {
	setCommandExecutionContext(commandExecutionContext{})
}

func currentCommandExecutionContext() commandExecutionContext {
	commandExecutionMu.Lock()
	defer commandExecutionMu.Unlock()
	return commandExecutionCur
}

const structuredLogAnnotation = "credwatch/structured-log"

// commandUsesStructuredLogging reports whether cmd writes slog output. Plain
// commands print human-readable text to stdout instead.
func commandUsesStructuredLogging(cmd *cobra.Command) bool {
	if cmd == nil {
		return false
	}
	return cmd.Annotations[structuredLogAnnotation] == "true"
}

func structuredLog() map[string]string {
	return map[string]string{structuredLogAnnotation: "true"}
}
