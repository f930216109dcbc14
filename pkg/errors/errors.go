// Package errors provides structured errors for LogView.
// Every fatal condition of the provenance core carries a Code so callers can
// branch on it with IsCode instead of matching messages.
package errors

import (
	"errors"
	"fmt"
	"runtime"
	"sort"
	"strings"
)

// Code identifies an error class for programmatic handling.
type Code string

const (
	// Input errors (1xx)
	CodeFileNotFound     Code = "E101"
	CodeInvalidFormat    Code = "E103"
	CodeMissingColumn    Code = "E104"
	CodeInvalidTimestamp Code = "E105"

	// Evaluation errors (2xx)
	CodeEvaluationFailed Code = "E201"
	CodeInvalidPredicate Code = "E202"

	// Output errors (3xx)
	CodeWriteFailed Code = "E301"

	// System errors (4xx)
	CodeContextCanceled Code = "E401"

	// DuckDB errors (5xx)
	CodeDuckDBInit  Code = "E501"
	CodeDuckDBQuery Code = "E502"

	// Registry errors (6xx)
	CodeInitialSourceSet     Code = "E601"
	CodeDuplicateResultSet   Code = "E602"
	CodeIncompleteEvaluation Code = "E603"
	CodeUnknownResultSet     Code = "E604"
	CodeUnknownPlugin        Code = "E605"
	CodeCorruptLineage       Code = "E606"

	// Unknown
	CodeUnknown Code = "E999"
)

// LogViewError is the base error type for all LogView errors.
type LogViewError struct {
	Code       Code
	Message    string
	Cause      error
	Context    map[string]interface{}
	StackTrace []Frame
}

// Frame represents a stack frame.
type Frame struct {
	Function string
	File     string
	Line     int
}

// Error implements the error interface.
// Context keys are printed in sorted order so messages are stable.
func (e *LogViewError) Error() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("[%s] %s", e.Code, e.Message))

	if len(e.Context) > 0 {
		keys := make([]string, 0, len(e.Context))
		for k := range e.Context {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		sb.WriteString(" (")
		for i, k := range keys {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(fmt.Sprintf("%s=%v", k, e.Context[k]))
		}
		sb.WriteString(")")
	}

	if e.Cause != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Cause.Error())
	}

	return sb.String()
}

// Unwrap returns the underlying cause.
func (e *LogViewError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is a LogViewError with the same code.
func (e *LogViewError) Is(target error) bool {
	if t, ok := target.(*LogViewError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithContext adds context to the error.
func (e *LogViewError) WithContext(key string, value interface{}) *LogViewError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// New creates a new LogViewError.
func New(code Code, message string) *LogViewError {
	return &LogViewError{
		Code:       code,
		Message:    message,
		StackTrace: captureStack(2),
	}
}

// Wrap wraps an existing error with additional context.
func Wrap(err error, code Code, message string) *LogViewError {
	if err == nil {
		return nil
	}

	return &LogViewError{
		Code:       code,
		Message:    message,
		Cause:      err,
		StackTrace: captureStack(2),
	}
}

// Wrapf wraps an error with a formatted message.
func Wrapf(err error, code Code, format string, args ...interface{}) *LogViewError {
	if err == nil {
		return nil
	}
	return &LogViewError{
		Code:       code,
		Message:    fmt.Sprintf(format, args...),
		Cause:      err,
		StackTrace: captureStack(2),
	}
}

// captureStack captures the current stack trace.
func captureStack(skip int) []Frame {
	var frames []Frame
	pcs := make([]uintptr, 32)
	n := runtime.Callers(skip+1, pcs)
	pcs = pcs[:n]

	cf := runtime.CallersFrames(pcs)
	for {
		frame, more := cf.Next()
		frames = append(frames, Frame{
			Function: frame.Function,
			File:     frame.File,
			Line:     frame.Line,
		})
		if !more || len(frames) >= 10 {
			break
		}
	}
	return frames
}

// FormatStack returns a formatted stack trace.
func (e *LogViewError) FormatStack() string {
	var sb strings.Builder
	for _, f := range e.StackTrace {
		sb.WriteString(fmt.Sprintf("  at %s\n    %s:%d\n", f.Function, f.File, f.Line))
	}
	return sb.String()
}

// --- Convenience constructors ---

// FileNotFound creates a file not found error.
func FileNotFound(path string) *LogViewError {
	return New(CodeFileNotFound, "file not found").WithContext("path", path)
}

// MissingColumn creates a missing column error.
func MissingColumn(column string, available []string) *LogViewError {
	return New(CodeMissingColumn, "required column not found").
		WithContext("column", column).
		WithContext("available", available)
}

// UnknownResultSet reports a handle or name the registry has never seen.
func UnknownResultSet(ref interface{}) *LogViewError {
	return New(CodeUnknownResultSet, "the provided result set is not known").
		WithContext("result_set", ref)
}

// UnknownPlugin reports a characterizer or comparator name that was never attached.
func UnknownPlugin(kind, name string) *LogViewError {
	return New(CodeUnknownPlugin, "the provided plugin name is not known").
		WithContext("kind", kind).
		WithContext("name", name)
}

// ContextCanceled creates a cancellation error.
func ContextCanceled(operation string) *LogViewError {
	return New(CodeContextCanceled, "operation canceled").
		WithContext("operation", operation)
}

// --- Error checking utilities ---

// IsCode checks if an error has a specific code.
func IsCode(err error, code Code) bool {
	return errors.Is(err, &LogViewError{Code: code})
}

// GetCode extracts the error code from an error.
func GetCode(err error) Code {
	var lvErr *LogViewError
	if errors.As(err, &lvErr) {
		return lvErr.Code
	}
	return CodeUnknown
}

// MultiError collects multiple errors.
type MultiError struct {
	Errors []error
}

// Error implements the error interface.
func (m *MultiError) Error() string {
	if len(m.Errors) == 0 {
		return "no errors"
	}
	if len(m.Errors) == 1 {
		return m.Errors[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d errors occurred:\n", len(m.Errors)))
	for i, err := range m.Errors {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// Add adds an error to the collection.
func (m *MultiError) Add(err error) {
	if err != nil {
		m.Errors = append(m.Errors, err)
	}
}

// Unwrap exposes the collected errors to errors.Is and errors.As.
func (m *MultiError) Unwrap() []error {
	return m.Errors
}

// Combined returns nil if no errors, the single error if one, or the MultiError.
func (m *MultiError) Combined() error {
	switch len(m.Errors) {
	case 0:
		return nil
	case 1:
		return m.Errors[0]
	default:
		return m
	}
}
