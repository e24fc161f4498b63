package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// ErrorCode represents a dictgen error code.
type ErrorCode string

const (
	ErrInvalidConfig ErrorCode = "INVALID_CONFIG" // exit 1
	ErrDataIntegrity ErrorCode = "DATA_INTEGRITY" // exit 1
	ErrFetchFailed   ErrorCode = "FETCH_FAILED"   // per-partition, recovered
	ErrNotFound      ErrorCode = "NOT_FOUND"      // exit 1
	ErrDriftDetected ErrorCode = "DRIFT_DETECTED" // exit 3 (only with fail_on_drift)
	ErrCancelled     ErrorCode = "CANCELLED"      // exit 130
	ErrInternal      ErrorCode = "INTERNAL"       // exit 1
)

// Exit codes used by the CLI.
const (
	ExitOK        = 0
	ExitFailure   = 1
	ExitDrift     = 3
	ExitCancelled = 130
)

// DictError represents a structured error with code, exit code, and details.
type DictError struct {
	Code     ErrorCode
	ExitCode int
	Message  string
	Details  map[string]any
	Cause    error
}

// Error implements the error interface.
func (e *DictError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *DictError) Unwrap() error {
	return e.Cause
}

// NewInvalidConfig creates a configuration error naming the offending parameter.
func NewInvalidConfig(param, msg string) *DictError {
	return &DictError{
		Code:     ErrInvalidConfig,
		ExitCode: ExitFailure,
		Message:  fmt.Sprintf("%s: %s", param, msg),
		Details:  map[string]any{"param": param},
	}
}

// NewDataIntegrity creates an error for malformed or incomplete source data.
// ids names the offending entries (may be empty when the problem is file-level).
func NewDataIntegrity(msg string, ids ...string) *DictError {
	details := map[string]any{}
	if len(ids) > 0 {
		details["ids"] = ids
	}
	return &DictError{
		Code:     ErrDataIntegrity,
		ExitCode: ExitFailure,
		Message:  msg,
		Details:  details,
	}
}

// NewValidationFailed aggregates every validation problem into one data integrity error.
func NewValidationFailed(problems []string) *DictError {
	return &DictError{
		Code:     ErrDataIntegrity,
		ExitCode: ExitFailure,
		Message:  fmt.Sprintf("%d validation error(s):\n  - %s", len(problems), strings.Join(problems, "\n  - ")),
		Details:  map[string]any{"problems": problems},
	}
}

// NewFetchFailed creates an error for a failed remote fetch.
func NewFetchFailed(url string, status int, cause error) *DictError {
	msg := fmt.Sprintf("fetch %s failed", url)
	if status != 0 {
		msg = fmt.Sprintf("fetch %s: unexpected status %d", url, status)
	}
	return &DictError{
		Code:     ErrFetchFailed,
		ExitCode: ExitFailure,
		Message:  msg,
		Details:  map[string]any{"url": url, "status": status},
		Cause:    cause,
	}
}

// NewNotFound creates an error for a missing entry or artifact.
func NewNotFound(identifier string) *DictError {
	return &DictError{
		Code:     ErrNotFound,
		ExitCode: ExitFailure,
		Message:  fmt.Sprintf("not found: %s", identifier),
		Details:  map[string]any{"identifier": identifier},
	}
}

// NewDriftDetected creates the error returned when fail_on_drift is enabled and the
// verifier found missing entries or failed partitions.
func NewDriftDetected(missing, failedPartitions int) *DictError {
	return &DictError{
		Code:     ErrDriftDetected,
		ExitCode: ExitDrift,
		Message:  fmt.Sprintf("deployment drift: %d missing entries, %d failed partitions", missing, failedPartitions),
		Details:  map[string]any{"missing": missing, "failed_partitions": failedPartitions},
	}
}

// NewCancelled creates an error for an operation interrupted by context cancellation.
func NewCancelled(operation string) *DictError {
	return &DictError{
		Code:     ErrCancelled,
		ExitCode: ExitCancelled,
		Message:  fmt.Sprintf("%s cancelled", operation),
		Details:  map[string]any{"operation": operation},
	}
}

// NewInternal creates an error for unexpected internal failures.
func NewInternal(err error) *DictError {
	msg := "internal error"
	if err != nil {
		msg = err.Error()
	}
	return &DictError{
		Code:     ErrInternal,
		ExitCode: ExitFailure,
		Message:  msg,
		Cause:    err,
	}
}

// Wrap attaches context to err as an internal error unless err already is a DictError.
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	var dErr *DictError
	if stderrors.As(err, &dErr) {
		return err
	}
	return &DictError{
		Code:     ErrInternal,
		ExitCode: ExitFailure,
		Message:  msg,
		Cause:    err,
	}
}

// Is checks if err (or anything it wraps) is a DictError with the given code.
func Is(err error, code ErrorCode) bool {
	var dErr *DictError
	if stderrors.As(err, &dErr) {
		return dErr.Code == code
	}
	return false
}

// ExitCode returns the process exit code for err.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var dErr *DictError
	if stderrors.As(err, &dErr) && dErr.ExitCode != 0 {
		return dErr.ExitCode
	}
	return ExitFailure
}
