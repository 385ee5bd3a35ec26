package tableassert

import (
	"errors"
	"fmt"
	"maps"
)

// Common errors used throughout the tableassert packages
var (
	// ErrInvalidIdentifier is returned when a table or column name fails the identifier pattern.
	ErrInvalidIdentifier = errors.New("identifier contains unsupported characters")
	// ErrInvalidExpectation indicates a structurally valid but contradictory expectation.
	ErrInvalidExpectation = errors.New("invalid expectation")
	// ErrNumericConversion indicates a count result could not be converted to a number.
	ErrNumericConversion = errors.New("failed to convert value to a numeric type")
	// ErrAssertionMismatch indicates the database contents do not satisfy an expectation.
	ErrAssertionMismatch = errors.New("assertion mismatch")

	// Loader errors
	// ErrInvalidExpectationFile indicates the expectation document could not be loaded.
	ErrInvalidExpectationFile = errors.New("expectation file format is invalid")
	// ErrUnsupportedValue indicates a column value has a type no Value kind can represent.
	ErrUnsupportedValue = errors.New("unsupported column value")

	// Connection errors
	// ErrMissingConfiguration indicates a required connection setting is empty.
	ErrMissingConfiguration = errors.New("connection setting is not provided")
	// ErrUnsupportedDriver indicates the configured driver is unknown.
	ErrUnsupportedDriver = errors.New("unsupported database driver")
	// ErrConnectionNotFound indicates a named connection is not in the configuration.
	ErrConnectionNotFound = errors.New("connection not found in configuration")
	// ErrNoTablesToReset indicates ResetTables was called with an empty table list.
	ErrNoTablesToReset = errors.New("no tables specified for reset")
)

// AssertionError is the failure signal surfaced to callers. It keeps a human readable
// message, the structured details used by report formatting and the sentinel that
// classifies the failure.
type AssertionError struct {
	Message string
	Details map[string]any
	err     error
}

// NewAssertionError creates an AssertionError classified by the given sentinel.
func NewAssertionError(kind error, message string, details map[string]any) *AssertionError {
	return &AssertionError{
		Message: message,
		Details: details,
		err:     kind,
	}
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	if e == nil {
		return "assertion failure"
	}

	if table, ok := e.Details["table"]; ok && e.err != nil {
		return fmt.Sprintf("%s: %s (table %v)", e.err, e.Message, table)
	}

	if e.err != nil {
		return fmt.Sprintf("%s: %s", e.err, e.Message)
	}

	return e.Message
}

// Unwrap returns the classifying sentinel.
func (e *AssertionError) Unwrap() error {
	if e == nil {
		return nil
	}

	return e.err
}

// Table returns the table name attached to the failure, if any.
func (e *AssertionError) Table() string {
	if e == nil {
		return ""
	}

	table, _ := e.Details["table"].(string)

	return table
}

// WithDetail returns a copy of the error with one more detail entry.
func (e *AssertionError) WithDetail(key string, value any) *AssertionError {
	details := make(map[string]any, len(e.Details)+1)
	maps.Copy(details, e.Details)
	details[key] = value

	return &AssertionError{
		Message: e.Message,
		Details: details,
		err:     e.err,
	}
}

// AsAssertionError attempts to extract an AssertionError from the error chain.
func AsAssertionError(err error) (*AssertionError, bool) {
	var ae *AssertionError
	if errors.As(err, &ae) {
		return ae, true
	}

	return nil, false
}
