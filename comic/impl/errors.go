package impl

import (
	"errors"
	"fmt"
)

const (
	COLLABORATOR_DETECTOR   = "detector"
	COLLABORATOR_RECOGNIZER = "recognizer"
	COLLABORATOR_TRANSLATOR = "translator"
	COLLABORATOR_HEATMAP    = "heatmap"
	COLLABORATOR_INPAINTER  = "inpainter"
)

// InputError is returned for a page that cannot be read or decoded. Only that page fails.
type InputError struct {
	// E.g., 001.jpg
	Page string
	Err  error
}

func (e *InputError) Error() string {
	return fmt.Sprintf("failed to read page %s: %v", e.Page, e.Err)
}

func (e *InputError) Unwrap() error {
	return e.Err
}

// CollaboratorFailure is returned when a model or remote service fails or answers with an
// unexpected shape. It is never retried by the pipeline.
type CollaboratorFailure struct {
	// One of the COLLABORATOR_* names. E.g., inpainter
	Collaborator string
	Err          error
}

func (e *CollaboratorFailure) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Collaborator, e.Err)
}

func (e *CollaboratorFailure) Unwrap() error {
	return e.Err
}

// ResourceExhaustion attaches a failed release to the error that was already being returned.
type ResourceExhaustion struct {
	// Nil when the work itself succeeded.
	Primary error
	Cleanup error
}

func (e *ResourceExhaustion) Error() string {
	if e.Primary == nil {
		return fmt.Sprintf("failed to release resources: %v", e.Cleanup)
	}
	return fmt.Sprintf("%v (failed to release resources: %v)", e.Primary, e.Cleanup)
}

func (e *ResourceExhaustion) Unwrap() []error {
	if e.Primary == nil {
		return []error{e.Cleanup}
	}
	return []error{e.Primary, e.Cleanup}
}

// WithCleanup combines the result of some work with the result of releasing what it used.
func WithCleanup(primary error, cleanup error) error {
	if cleanup == nil {
		return primary
	}
	return &ResourceExhaustion{Primary: primary, Cleanup: cleanup}
}

// IsPageFailure reports whether err only concerns a single page.
func IsPageFailure(err error) bool {
	var inputError *InputError
	var collaboratorFailure *CollaboratorFailure
	return errors.As(err, &inputError) || errors.As(err, &collaboratorFailure)
}
