package engine

import (
	"errors"
	"fmt"
)

// RuntimeError represents an error raised by the engine itself rather than
// by the analysis of a scop.
//
// Runtime errors include:
//   - Store failure: a stored analysis could not be read or written
//   - Corrupt record: a stored analysis could not be decoded for replay
//
// Analysis failures are *deps.AnalysisError and are recorded per scop.
type RuntimeError struct {
	// Code identifies the error category.
	Code RuntimeErrorCode

	// Message is a human-readable description.
	Message string

	// Scop names the affected scop, if any.
	Scop string

	// AnalysisID identifies the stored analysis, if any.
	AnalysisID string

	// Err is the underlying cause.
	Err error
}

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	// ErrCodeStoreFailure indicates a database read or write failed.
	ErrCodeStoreFailure RuntimeErrorCode = "STORE_FAILURE"

	// ErrCodeCorruptRecord indicates a stored analysis could not be decoded.
	ErrCodeCorruptRecord RuntimeErrorCode = "CORRUPT_RECORD"
)

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	switch {
	case e.Scop != "" && e.AnalysisID != "":
		msg = fmt.Sprintf("%s (scop=%s, analysis=%s)", msg, e.Scop, e.AnalysisID)
	case e.Scop != "":
		msg = fmt.Sprintf("%s (scop=%s)", msg, e.Scop)
	case e.AnalysisID != "":
		msg = fmt.Sprintf("%s (analysis=%s)", msg, e.AnalysisID)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *RuntimeError) Unwrap() error { return e.Err }

// IsStoreFailure returns true if the error is a store failure.
// Uses errors.As to handle wrapped errors.
func IsStoreFailure(err error) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == ErrCodeStoreFailure
	}
	return false
}

// IsCorruptRecord returns true if the error is a corrupt stored record.
func IsCorruptRecord(err error) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == ErrCodeCorruptRecord
	}
	return false
}

func storeFailure(scop, id, msg string, err error) *RuntimeError {
	return &RuntimeError{Code: ErrCodeStoreFailure, Message: msg, Scop: scop, AnalysisID: id, Err: err}
}

func corruptRecord(id, msg string, err error) *RuntimeError {
	return &RuntimeError{Code: ErrCodeCorruptRecord, Message: msg, AnalysisID: id, Err: err}
}
