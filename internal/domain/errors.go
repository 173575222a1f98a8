package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation signals input the caller must fix; never retried.
	ErrValidation = errors.New("validation failed")
	// ErrSourceNotFound signals a missing source.
	ErrSourceNotFound = errors.New("source not found")
	// ErrUnsupportedFormat signals content that no extractor can handle.
	ErrUnsupportedFormat = errors.New("unsupported content format")
	// ErrServiceUnavailable signals a transient upstream failure (timeout, 5xx).
	ErrServiceUnavailable = errors.New("service unavailable")
	// ErrGenerationFailed signals that the generation provider could not produce text.
	ErrGenerationFailed = errors.New("generation failed")
	// ErrIllegalTransition signals a lifecycle transition outside the state machine.
	ErrIllegalTransition = errors.New("illegal lifecycle transition")
	// ErrIngestCancelled signals an ingestion stopped at a batch boundary.
	ErrIngestCancelled = errors.New("ingestion cancelled")
)

// IngestFailure wraps an ingestion failure with the stage at which
// processing stopped and a human-readable cause for status reporting.
type IngestFailure struct {
	Stage State
	Cause string
	Err   error
}

func (e *IngestFailure) Error() string {
	return fmt.Sprintf("ingest failed at %s: %s", e.Stage, e.Cause)
}

func (e *IngestFailure) Unwrap() error { return e.Err }

// NewIngestFailure creates an ingestion failure at the given stage.
func NewIngestFailure(stage State, cause string, err error) error {
	return &IngestFailure{Stage: stage, Cause: cause, Err: err}
}
