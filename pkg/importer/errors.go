package importer

import (
	"errors"
	"fmt"
)

// ErrNoRecords is returned when the uploaded files hold no association records at all.
var ErrNoRecords = errors.New("no association records found in the uploaded files")

// ParseError names the fixture file that could not be decoded.
type ParseError struct {
	FileName string
	// Line is the 1-based line for JSON-Lines input, 0 otherwise.
	Line int
	Err  error
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("failed to parse %s (line %d): %v", e.FileName, e.Line, e.Err)
	}
	return fmt.Sprintf("failed to parse %s: %v", e.FileName, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// ResolutionError means no municipality could be determined for the run.
type ResolutionError struct {
	Reason string
}

func (e *ResolutionError) Error() string {
	return "could not resolve municipality: " + e.Reason
}

// RecordError is a per-record failure. It is counted on the batch and the run continues.
type RecordError struct {
	Reason string
	Err    error
}

func (e *RecordError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Reason, e.Err)
	}
	return e.Reason
}

func (e *RecordError) Unwrap() error {
	return e.Err
}

// FatalImportError aborts the whole run. Records committed before it stay committed.
type FatalImportError struct {
	Reason string
	Err    error
}

func (e *FatalImportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Reason, e.Err)
	}
	return e.Reason
}

func (e *FatalImportError) Unwrap() error {
	return e.Err
}

// IsPrecondition reports whether err rejected the import before any batch was recorded.
func IsPrecondition(err error) bool {
	var parseErr *ParseError
	var resolutionErr *ResolutionError
	return errors.Is(err, ErrNoRecords) || errors.As(err, &parseErr) || errors.As(err, &resolutionErr)
}
