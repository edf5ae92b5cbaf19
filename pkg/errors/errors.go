package errors

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrorCode is a stable, machine-readable error identifier
type ErrorCode string

const (
	CodeNotFound                   ErrorCode = "NOT_FOUND"
	CodeInvalidData                ErrorCode = "INVALID_DATA"
	CodeDeletionFailed             ErrorCode = "DELETION_FAILED"
	CodeUpdateFailed               ErrorCode = "UPDATE_FAILED"
	CodeRemoteCommandFailed        ErrorCode = "REMOTE_COMMAND_FAILED"
	CodeTimeout                    ErrorCode = "TIMEOUT"
	CodeDependencyCycle            ErrorCode = "DEPENDENCY_CYCLE"
	CodeRequiredServiceMissing     ErrorCode = "REQUIRED_SERVICE_MISSING"
	CodeLessThanCount              ErrorCode = "LESS_THAN_COUNT"
	CodeMoreThanCount              ErrorCode = "MORE_THAN_COUNT"
	CodeEvenCount                  ErrorCode = "EVEN_COUNT"
	CodeInvalidComponentCount      ErrorCode = "INVALID_COMPONENT_COUNT"
	CodeNodeRequiredServiceMissing ErrorCode = "NODE_REQUIRED_SERVICE_MISSING"
	CodeNotRequiredImage           ErrorCode = "NOT_REQUIRED_IMAGE"
	CodeNoVolumes                  ErrorCode = "NO_VOLUMES"
)

// Sentinels for errors.Is checks. Matching is by code only.
var (
	ErrNotFound                   = &Error{Code: CodeNotFound}
	ErrInvalidData                = &Error{Code: CodeInvalidData}
	ErrDeletionFailed             = &Error{Code: CodeDeletionFailed}
	ErrUpdateFailed               = &Error{Code: CodeUpdateFailed}
	ErrRemoteCommandFailed        = &Error{Code: CodeRemoteCommandFailed}
	ErrTimeout                    = &Error{Code: CodeTimeout}
	ErrDependencyCycle            = &Error{Code: CodeDependencyCycle}
	ErrRequiredServiceMissing     = &Error{Code: CodeRequiredServiceMissing}
	ErrLessThanCount              = &Error{Code: CodeLessThanCount}
	ErrMoreThanCount              = &Error{Code: CodeMoreThanCount}
	ErrEvenCount                  = &Error{Code: CodeEvenCount}
	ErrInvalidComponentCount      = &Error{Code: CodeInvalidComponentCount}
	ErrNodeRequiredServiceMissing = &Error{Code: CodeNodeRequiredServiceMissing}
	ErrNotRequiredImage           = &Error{Code: CodeNotRequiredImage}
	ErrNoVolumes                  = &Error{Code: CodeNoVolumes}
)

// Error is a coded error with a human message and structured details
type Error struct {
	Code    ErrorCode
	Message string
	Details map[string]interface{}
	Cause   error
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause of the error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches another *Error by code, otherwise defers to the cause
func (e *Error) Is(target error) bool {
	if target == nil {
		return false
	}
	var t *Error
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return errors.Is(e.Cause, target)
}

// WithDetail attaches a detail to the error and returns it
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// New creates an error with the given code and message
func New(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
	}
}

// Newf creates an error with a formatted message
func Newf(code ErrorCode, format string, args ...interface{}) *Error {
	return New(code, fmt.Sprintf(format, args...))
}

// Wrap wraps an existing error with a code and context
func Wrap(err error, code ErrorCode, message string) *Error {
	if err == nil {
		return nil
	}
	e := New(code, message)
	e.Cause = err
	return e
}

// CodeOf returns the code of the first *Error in err's chain
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// DetailOf returns a detail of the first *Error in err's chain
func DetailOf(err error, key string) (interface{}, bool) {
	var e *Error
	if !errors.As(err, &e) || e.Details == nil {
		return nil, false
	}
	v, ok := e.Details[key]
	return v, ok
}

// NotFound reports a missing object
func NotFound(kind, id string) *Error {
	return Newf(CodeNotFound, "%s id '%s' not found", kind, id).
		WithDetail("kind", kind).
		WithDetail("id", id)
}

// InvalidData reports a malformed or inconsistent request
func InvalidData(message string) *Error {
	return New(CodeInvalidData, message)
}

// DeletionFailed reports a refused delete. Holders lists the objects that
// still reference the target.
func DeletionFailed(message string, holders ...string) *Error {
	return usage(CodeDeletionFailed, message, holders)
}

// UpdateFailed reports a refused update
func UpdateFailed(message string, holders ...string) *Error {
	return usage(CodeUpdateFailed, message, holders)
}

func usage(code ErrorCode, message string, holders []string) *Error {
	e := New(code, message)
	if len(holders) > 0 {
		sorted := append([]string(nil), holders...)
		sort.Strings(sorted)
		e.Message = fmt.Sprintf("%s (referenced by: %s)", message, strings.Join(sorted, ", "))
		e.WithDetail("holders", sorted)
	}
	return e
}

// RemoteCommandFailed reports a non-zero exit of a remote command
func RemoteCommandFailed(host, cmd string, exitCode int, output string) *Error {
	return Newf(CodeRemoteCommandFailed, "command '%s' on %s exited with code %d", cmd, host, exitCode).
		WithDetail("host", host).
		WithDetail("command", cmd).
		WithDetail("exit_code", exitCode).
		WithDetail("output", output)
}

// Timeout reports an operation that did not finish in time
func Timeout(operation string, cause error) *Error {
	return Wrap(cause, CodeTimeout, fmt.Sprintf("operation '%s' timed out", operation))
}
