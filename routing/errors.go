package routing

import (
	"errors"
	"fmt"
)

// ErrEmptyIndex means the department vector index has zero points: the
// offline ingestion job has not run. Non-retryable; the message goes to
// manual review with a distinct reason so operators know what to fix.
var ErrEmptyIndex = errors.New("department vector index is empty")

// ProviderError wraps a transient failure of an external provider
// (embedding, vector search, chat completion). It is the only error
// class the orchestrator retries.
type ProviderError struct {
	Stage string
	Err   error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider failure at %s: %v", e.Stage, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// MalformedOutputError means the arbiter's output could not be parsed
// into the required decision shape. The raw output is retained for
// diagnosis.
type MalformedOutputError struct {
	Raw string
	Err error
}

func (e *MalformedOutputError) Error() string {
	return fmt.Sprintf("malformed model output: %v", e.Err)
}

func (e *MalformedOutputError) Unwrap() error {
	return e.Err
}

// UnknownDepartmentError means the arbiter named a department that does
// not resolve to any known department.
type UnknownDepartmentError struct {
	Name string
}

func (e *UnknownDepartmentError) Error() string {
	return fmt.Sprintf("unknown department: %q", e.Name)
}
