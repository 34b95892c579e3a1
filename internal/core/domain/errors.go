package domain

import (
	"errors"
	"fmt"
)

// DomainError represents an engine error with a structured error code.
//
// Codes have the form AS-<AREA>-<NNNN>. The last four digits follow HTTP
// semantics loosely (4xxx caller problem, 5xxx environment problem) so the
// admin API can map them without a lookup table.
type DomainError struct {
	Code    string // Error code (e.g., "AS-DEF-4040")
	Message string // Human-readable message
	Details string // Optional additional details
	Cause   error  // Underlying error (if any)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Code, e.Message)
	if e.Details != "" {
		msg += ": " + e.Details
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying error for errors.Unwrap() support.
func (e *DomainError) Unwrap() error {
	return e.Cause
}

// Is matches another DomainError by code.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewDomainError creates a new DomainError with the given code and message.
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// WithDetails returns a copy of the error with additional details.
func (e *DomainError) WithDetails(details string) *DomainError {
	return &DomainError{
		Code:    e.Code,
		Message: e.Message,
		Details: details,
		Cause:   e.Cause,
	}
}

// WithDetailsf is WithDetails with fmt formatting.
func (e *DomainError) WithDetailsf(format string, args ...any) *DomainError {
	return e.WithDetails(fmt.Sprintf(format, args...))
}

// Wrap returns a copy of the error wrapping the given cause.
func (e *DomainError) Wrap(cause error) *DomainError {
	return &DomainError{
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
		Cause:   cause,
	}
}

// IsDomainError checks if an error is a DomainError with the given code.
// If code is empty, it only checks if the error is a DomainError.
func IsDomainError(err error, code string) bool {
	var de *DomainError
	if errors.As(err, &de) {
		if code == "" {
			return true
		}
		return de.Code == code
	}
	return false
}

// GetErrorCode extracts the error code from an error if it's a DomainError.
func GetErrorCode(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// Definition errors (DEF).
var (
	// ErrDefinitionNotFound indicates the definition resource or save set does not exist.
	ErrDefinitionNotFound = NewDomainError("AS-DEF-4040", "definition not found")

	// ErrDefinitionParse indicates the definition resource could not be parsed.
	ErrDefinitionParse = NewDomainError("AS-DEF-4001", "definition parse error")

	// ErrDuplicateTriggerMethod indicates the trigger method is already active on the set.
	ErrDuplicateTriggerMethod = NewDomainError("AS-DEF-4090", "trigger method already active")
)

// Point errors (PNT).
var (
	// ErrPointAllocationFailed indicates a point can never be served by the value source.
	ErrPointAllocationFailed = NewDomainError("AS-PNT-5001", "point allocation failed")
)

// File I/O errors (IO).
var (
	ErrIoOpenFailed   = NewDomainError("AS-IO-5001", "open failed")
	ErrIoWriteFailed  = NewDomainError("AS-IO-5002", "write failed")
	ErrIoSyncFailed   = NewDomainError("AS-IO-5003", "sync failed")
	ErrIoVerifyFailed = NewDomainError("AS-IO-5004", "verify failed")
	ErrBackupCorrupt  = NewDomainError("AS-IO-5005", "backup corrupt")
	ErrRemountFailed  = NewDomainError("AS-IO-5006", "remount failed")
)

// Value-source errors (VAL).
var (
	ErrValueSourceTimeout     = NewDomainError("AS-VAL-5040", "value source timeout")
	ErrValueSourceUnreachable = NewDomainError("AS-VAL-5030", "value source unreachable")
)

// Command errors (CMD) and arguments (ARG).
var (
	ErrCommandQueueFull = NewDomainError("AS-CMD-4290", "command queue full")
	ErrEngineShutdown   = NewDomainError("AS-CMD-5030", "engine shut down")
	ErrInvalidArgument  = NewDomainError("AS-ARG-4000", "invalid argument")
)
