package app

import (
	"strings"
	"time"
)

// Operation describes the CLI command being run. Its ID tags every log line
// written while the command runs.
type Operation struct {
	ID      string
	Command string
	Args    []string
	Started time.Time
	Status  string // "success" or "error"
}

// NewOperation creates an operation started at now. The ID is derived from
// the start time.
func NewOperation(command string, args []string, now time.Time) *Operation {
	return &Operation{
		ID:      now.UTC().Format("20060102T150405.000Z"),
		Command: command,
		Args:    args,
		Started: now,
		Status:  "success",
	}
}

// Fail marks the operation as failed.
func (op *Operation) Fail() {
	op.Status = "error"
}

// String renders the command line for logs.
func (op *Operation) String() string {
	if len(op.Args) == 0 {
		return op.Command
	}
	return op.Command + " " + strings.Join(op.Args, " ")
}
