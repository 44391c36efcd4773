package deps

import (
	"errors"
	"fmt"
)

// AnalysisError represents a failure that aborts the analysis of one scop.
//
// Analysis errors are fatal to the scop, never to the process: the batch
// engine drops the scop and carries on with the next one.
type AnalysisError struct {
	// Code identifies the error category.
	Code AnalysisErrorCode

	// Scop names the affected scop.
	Scop string

	// Stage is the pipeline stage that failed (e.g. "live_out", "flow").
	Stage string

	// Message is a human-readable description.
	Message string

	// Err is the underlying cause, if any.
	Err error
}

// AnalysisErrorCode categorizes analysis errors.
type AnalysisErrorCode string

const (
	// ErrCodeUnsupportedInput indicates the scop uses a construct the
	// analysis cannot represent: a data-dependent condition, a non-affine
	// access, or a relation of the wrong shape.
	ErrCodeUnsupportedInput AnalysisErrorCode = "UNSUPPORTED_INPUT"

	// ErrCodeRelationFailure indicates a relation-algebra operation failed
	// on malformed input, e.g. an access to an unscheduled instance.
	ErrCodeRelationFailure AnalysisErrorCode = "RELATION_FAILURE"
)

// Error implements the error interface.
func (e *AnalysisError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	} else if e.Err != nil {
		msg = msg + ": " + e.Err.Error()
	}
	if e.Scop != "" {
		return fmt.Sprintf("%s: %s (scop=%s, stage=%s)", e.Code, msg, e.Scop, e.Stage)
	}
	return fmt.Sprintf("%s: %s (stage=%s)", e.Code, msg, e.Stage)
}

// Unwrap returns the underlying cause.
func (e *AnalysisError) Unwrap() error { return e.Err }

// IsUnsupportedInput returns true if the error is an unsupported-input error.
// Uses errors.As to handle wrapped errors.
func IsUnsupportedInput(err error) bool {
	var ae *AnalysisError
	if errors.As(err, &ae) {
		return ae.Code == ErrCodeUnsupportedInput
	}
	return false
}

// IsRelationFailure returns true if the error is a relation failure.
// Uses errors.As to handle wrapped errors.
func IsRelationFailure(err error) bool {
	var ae *AnalysisError
	if errors.As(err, &ae) {
		return ae.Code == ErrCodeRelationFailure
	}
	return false
}

// NewUnsupportedInputError creates an AnalysisError for input the analysis
// cannot represent.
func NewUnsupportedInputError(scop, stage string, err error) *AnalysisError {
	return &AnalysisError{
		Code:  ErrCodeUnsupportedInput,
		Scop:  scop,
		Stage: stage,
		Err:   err,
	}
}

func relationFailure(scop, stage string, err error) *AnalysisError {
	return &AnalysisError{
		Code:  ErrCodeRelationFailure,
		Scop:  scop,
		Stage: stage,
		Err:   err,
	}
}
