package main

import (
	"context"
	"errors"

	"github.com/iota-uz/unicorn-warehouse/modules/unicorn/infrastructure/persistence"
	"github.com/iota-uz/unicorn-warehouse/modules/unicorn/services"
)

// Process exit statuses. 1 is whatever no command classified.
const (
	exitOK           = 0
	exitUnclassified = 1
	exitValidation   = 2
	exitUsage        = 3
	exitDB           = 4
	exitDBWrite      = 5
	exitInterrupted  = 130
)

var exitStatusNames = map[int]string{
	exitOK:           "ok",
	exitUnclassified: "error",
	exitValidation:   "validation",
	exitUsage:        "usage",
	exitDB:           "db-unavailable",
	exitDBWrite:      "db-write",
	exitInterrupted:  "interrupted",
}

func exitStatusName(code int) string {
	if name, ok := exitStatusNames[code]; ok {
		return name
	}
	return exitStatusNames[exitUnclassified]
}

// statusError pins the exit status a command chose for err.
type statusError struct {
	status int
	err    error
}

func (e *statusError) Error() string { return e.err.Error() }

func (e *statusError) Unwrap() error { return e.err }

func withCode(status int, err error) error {
	if err == nil {
		return nil
	}
	return &statusError{status: status, err: err}
}

// exitCode resolves the status of a command error. An explicit status wins;
// an unclassified cancellation counts as an interrupt.
func exitCode(err error) int {
	if err == nil {
		return exitOK
	}
	var se *statusError
	if errors.As(err, &se) {
		return se.status
	}
	if errors.Is(err, context.Canceled) {
		return exitInterrupted
	}
	return exitUnclassified
}

// cycleExitCode maps a failed cycle onto the exit statuses.
func cycleExitCode(err error) int {
	if err == nil {
		return exitOK
	}
	var stageErr *services.StageError
	switch {
	case errors.Is(err, context.Canceled):
		return exitInterrupted
	case errors.Is(err, persistence.ErrUnavailable):
		return exitDB
	case errors.As(err, &stageErr) && stageErr.Stage == services.StateExtracting:
		return exitValidation
	default:
		return exitDBWrite
	}
}
