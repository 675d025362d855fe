package gocvcore

import (
	"fmt"

	"go.trai.ch/zerr"
)

var (
	// ErrInvalidMass is returned when the sample mass is zero, negative or not finite.
	ErrInvalidMass = zerr.New("sample mass must be a positive finite number")

	// ErrInvalidCycleRange is returned when a cycle selection such as "1-4,6" cannot be parsed.
	ErrInvalidCycleRange = zerr.New("invalid cycle range")
)

// SchemaError reports a required column that is absent from the input frame.
type SchemaError struct {
	Column    string
	Available []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("schema: required column %q not found (have %v)", e.Column, e.Available)
}

// MissingFieldError reports a null or unreadable voltage/current value on a present row.
// Row is zero-based and counts data rows only.
type MissingFieldError struct {
	Row   int
	Field string
	Value string
}

func (e *MissingFieldError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("row %d: missing value for %q", e.Row, e.Field)
	}
	return fmt.Sprintf("row %d: value %q for %q is not a number", e.Row, e.Value, e.Field)
}

// InvalidCycleIndexError reports a cycle index that is not a non-negative integer.
type InvalidCycleIndexError struct {
	Row   int
	Value string
}

func (e *InvalidCycleIndexError) Error() string {
	return fmt.Sprintf("row %d: cycle index %q is not a non-negative integer", e.Row, e.Value)
}

// SmoothingPolicyError reports a window/policy combination with no defined fallback.
type SmoothingPolicyError struct {
	Policy Policy
	Window int
	Reason string
}

func (e *SmoothingPolicyError) Error() string {
	return fmt.Sprintf("smoothing %s with window %d: %s", e.Policy, e.Window, e.Reason)
}
