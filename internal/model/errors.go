package model

import (
	"errors"
	"fmt"
)

// ValidationError reports malformed or incomplete input data. Sheet and Row
// locate the offending record; Row is 1-based as shown by spreadsheet tools
// (the header is row 1), or 0 when the problem concerns the whole sheet.
type ValidationError struct {
	Sheet  string
	Row    int
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	loc := fmt.Sprintf("sheet %q", e.Sheet)
	if e.Row > 0 {
		loc += fmt.Sprintf(" row %d", e.Row)
	}
	if e.Field != "" {
		loc += fmt.Sprintf(" column %q", e.Field)
	}
	return "validation: " + loc + ": " + e.Reason
}

// InsufficientRandomnessError is returned when the candidate budget runs out
// before enough mutually distinct variants were accepted.
type InsufficientRandomnessError struct {
	Requested int
	Achieved  int
	Budget    int
	Ceiling   float64
}

func (e *InsufficientRandomnessError) Error() string {
	return fmt.Sprintf("insufficient randomness: only %d of %d variants stay below similarity %.2f within %d candidates",
		e.Achieved, e.Requested, e.Ceiling, e.Budget)
}

// UnknownVariantError reports a response declaring a variant without an
// answer key.
type UnknownVariantError struct {
	StudentID string
	VariantID string
}

func (e *UnknownVariantError) Error() string {
	return fmt.Sprintf("student %q: unknown variant %q", e.StudentID, e.VariantID)
}

// ErrManifestNotFound is wrapped when the Phase 1 manifest file is absent.
var ErrManifestNotFound = errors.New("manifest not found")

// ManifestError reports a missing, malformed, or inconsistent manifest.
type ManifestError struct {
	Path string
	Err  error
}

func (e *ManifestError) Error() string {
	return fmt.Sprintf("manifest %s: %v", e.Path, e.Err)
}

func (e *ManifestError) Unwrap() error {
	return e.Err
}
