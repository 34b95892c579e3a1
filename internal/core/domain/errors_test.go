package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestDomainError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *DomainError
		expected string
	}{
		{
			name:     "error without details",
			err:      NewDomainError("AS-TEST-1000", "test message"),
			expected: "[AS-TEST-1000] test message",
		},
		{
			name:     "error with details",
			err:      NewDomainError("AS-TEST-1001", "test message").WithDetails("extra info"),
			expected: "[AS-TEST-1001] test message: extra info",
		},
		{
			name:     "error with details and cause",
			err:      NewDomainError("AS-TEST-1002", "open failed").WithDetails("a.sav").Wrap(errors.New("EACCES")),
			expected: "[AS-TEST-1002] open failed: a.sav: EACCES",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.expected {
				t.Errorf("Error() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestDomainError_Is(t *testing.T) {
	err1 := NewDomainError("AS-TEST-1000", "message 1")
	err2 := NewDomainError("AS-TEST-1000", "message 2")
	err3 := NewDomainError("AS-TEST-1001", "message 1")

	if !errors.Is(err1, err2) {
		t.Error("errors.Is should return true for same error code")
	}
	if errors.Is(err1, err3) {
		t.Error("errors.Is should return false for different error code")
	}
	if errors.Is(err1, fmt.Errorf("some error")) {
		t.Error("errors.Is should return false for non-DomainError")
	}
}

func TestDomainError_WrapKeepsIdentity(t *testing.T) {
	cause := fmt.Errorf("disk full")
	err := ErrIoWriteFailed.WithDetails("/tmp/x.sav").Wrap(cause)

	if !errors.Is(err, ErrIoWriteFailed) {
		t.Error("wrapped error should still match its code")
	}
	if errors.Unwrap(err) != cause {
		t.Errorf("Unwrap() = %v, want %v", errors.Unwrap(err), cause)
	}
	if ErrIoWriteFailed.Details != "" || ErrIoWriteFailed.Cause != nil {
		t.Error("sentinel must not be modified by WithDetails/Wrap")
	}
}

func TestGetErrorCode(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{"domain error", ErrDefinitionNotFound, "AS-DEF-4040"},
		{"wrapped domain error", fmt.Errorf("registry: %w", ErrDuplicateTriggerMethod), "AS-DEF-4090"},
		{"regular error", fmt.Errorf("regular error"), ""},
		{"nil error", nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GetErrorCode(tt.err); got != tt.expected {
				t.Errorf("GetErrorCode() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestIsDomainError(t *testing.T) {
	wrapped := fmt.Errorf("wrapped: %w", ErrIoVerifyFailed)
	if !IsDomainError(wrapped, "AS-IO-5004") {
		t.Error("IsDomainError should work with wrapped errors")
	}
	if !IsDomainError(wrapped, "") {
		t.Error("IsDomainError with empty code should match any DomainError")
	}
	if IsDomainError(errors.New("plain"), "") {
		t.Error("IsDomainError should return false for non-DomainError")
	}
}
