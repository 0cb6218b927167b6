package app

import (
	"time"

	"github.com/google/uuid"
)

// Operation tracks one CLI invocation. Its ID tags every log line written
// during the run so a failed command can be traced through gv.log.
type Operation struct {
	ID        string
	Name      string
	StartedAt time.Time
	Status    string // "success" or "error"
	Err       error
}

// NewOperation creates an operation named after the CLI command being run.
func NewOperation(name string, startedAt time.Time) *Operation {
	return &Operation{
		ID:        uuid.NewString()[:8],
		Name:      name,
		StartedAt: startedAt,
		Status:    "success",
	}
}

// Fail marks the operation as failed. The first error wins.
func (op *Operation) Fail(err error) {
	if err == nil || op.Err != nil {
		return
	}
	op.Status = "error"
	op.Err = err
}

// Failed returns true if Fail was called with a non-nil error.
func (op *Operation) Failed() bool {
	return op.Err != nil
}
