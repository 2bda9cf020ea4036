package workflow

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidRequest  = errors.New("invalid workflow request")
	ErrGeneration      = errors.New("workflow generation failed")
	ErrMalformedOutput = errors.New("malformed model output")
	ErrPersistence     = errors.New("workflow persistence failed")
)

// InvalidRequestError is returned before any collaborator is called.
type InvalidRequestError struct {
	Reason string
}

func (e InvalidRequestError) Error() string { return e.Reason }

func (e InvalidRequestError) Unwrap() error { return ErrInvalidRequest }

// GenerationError wraps a transport, status or timeout failure of the model backend.
type GenerationError struct {
	Err error
}

func (e GenerationError) Error() string {
	return fmt.Sprintf("workflow generation failed: %v", e.Err)
}

func (e GenerationError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrGeneration}
	}
	return []error{ErrGeneration, e.Err}
}

// MalformedOutputError reports model output that holds no usable JSON object.
type MalformedOutputError struct {
	Reason string
	Err    error
}

func (e MalformedOutputError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed model output: %s: %v", e.Reason, e.Err)
	}
	return "malformed model output: " + e.Reason
}

func (e MalformedOutputError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrMalformedOutput}
	}
	return []error{ErrMalformedOutput, e.Err}
}

// PersistenceError is logged when a workflow was produced but not stored.
type PersistenceError struct {
	Err error
}

func (e PersistenceError) Error() string {
	return fmt.Sprintf("workflow persistence failed: %v", e.Err)
}

func (e PersistenceError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrPersistence}
	}
	return []error{ErrPersistence, e.Err}
}
