// Package simerr holds the error taxonomy shared by every simulation component.
package simerr

import (
	"errors"
	"fmt"
	"strings"
)

// FieldError names one offending input field.
type FieldError struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

func (f FieldError) String() string { return f.Field + ": " + f.Reason }

// ValidationError is returned for malformed or policy-violating input.
// It always lists every offending field found, not only the first one.
type ValidationError struct {
	Component string       `json:"component"`
	Fields    []FieldError `json:"fields"`
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.String())
	}
	return fmt.Sprintf("%s: invalid input (%s)", e.Component, strings.Join(parts, "; "))
}

// Add records an offending field.
func (e *ValidationError) Add(field, format string, args ...any) {
	e.Fields = append(e.Fields, FieldError{Field: field, Reason: fmt.Sprintf(format, args...)})
}

// Merge appends the fields of another validation error, if any.
func (e *ValidationError) Merge(err error) {
	var other *ValidationError
	if errors.As(err, &other) {
		e.Fields = append(e.Fields, other.Fields...)
	}
}

// Err returns nil when no field was recorded.
func (e *ValidationError) Err() error {
	if e == nil || len(e.Fields) == 0 {
		return nil
	}
	return e
}

// Invalid is shorthand for a single-field ValidationError.
func Invalid(component, field, format string, args ...any) error {
	v := &ValidationError{Component: component}
	v.Add(field, format, args...)
	return v
}

// ErrTargetNotReached marks a thermal-time target that the series never reaches.
var ErrTargetNotReached = errors.New("cumulative target not reached")

// InvalidRangeError reports date-range logic failures (end before start, missing start, target not reached).
type InvalidRangeError struct {
	Component string
	Reason    string
	Err       error
}

func (e *InvalidRangeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: invalid range: %s: %v", e.Component, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: invalid range: %s", e.Component, e.Reason)
}

func (e *InvalidRangeError) Unwrap() error { return e.Err }

// EngineError wraps a failure of the external water-balance engine.
// Input carries the parameters that were sent, for diagnosis.
type EngineError struct {
	Op    string
	Input any
	Err   error
}

func (e *EngineError) Error() string { return fmt.Sprintf("engine %s: %v", e.Op, e.Err) }

func (e *EngineError) Unwrap() error { return e.Err }

// DataUnavailableError reports missing or incomplete upstream data.
type DataUnavailableError struct {
	Source string
	Reason string
	Err    error
}

func (e *DataUnavailableError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: data unavailable: %s: %v", e.Source, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: data unavailable: %s", e.Source, e.Reason)
}

func (e *DataUnavailableError) Unwrap() error { return e.Err }
