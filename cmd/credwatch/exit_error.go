package main

import (
	"context"
	"errors"
	"fmt"
)

const (
	exitCodeFailure  = 1
	exitCodeUsage    = 2
	exitCodeCanceled = 130
)

// exitError carries the process exit code for a command failure. Silent
// errors have already been reported (or need no report) and are not logged
// again on the way out.
type exitError struct {
	code   int
	err    error
	silent bool
}

func (e *exitError) Error() string {
	if e == nil {
		return ""
	}
	if e.err != nil {
		return e.err.Error()
	}
	return fmt.Sprintf("exit %d", e.code)
}

func (e *exitError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.err
}

// preRunError marks a failure that happened before any credential was
// processed: configuration, secret resolution, storage or client setup.
func preRunError(err error) error {
	if err == nil {
		return nil
	}
	return &exitError{code: exitCodeFailure, err: err}
}

func usageError(err error) error {
	return &exitError{code: exitCodeUsage, err: err}
}

// runError maps the outcome of a run. Cancellation exits 130 without a log
// line since the runner already logged why it stopped.
func runError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.Canceled):
		return &exitError{code: exitCodeCanceled, err: err, silent: true}
	default:
		return &exitError{code: exitCodeFailure, err: err}
	}
}
