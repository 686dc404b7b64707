package models

import (
	"errors"
	"strings"
	"testing"
)

func TestNewError(t *testing.T) {
	err := NewError(ErrSessionNotFound, "session not found")

	if err.Code != ErrSessionNotFound {
		t.Errorf("Code mismatch: got %s, want %s", err.Code, ErrSessionNotFound)
	}
	if err.Message != "session not found" {
		t.Errorf("Message mismatch: got %s", err.Message)
	}
	if err.Cause != nil {
		t.Error("Cause should be nil")
	}
	if err.Details != nil {
		t.Error("Details should be nil")
	}
}

func TestAdvisorError_Error(t *testing.T) {
	err := NewError(ErrSessionNotFound, "session not found")

	errStr := err.Error()
	if !strings.Contains(errStr, string(ErrSessionNotFound)) {
		t.Errorf("Error string should contain code: %s", errStr)
	}
	if !strings.Contains(errStr, "session not found") {
		t.Errorf("Error string should contain message: %s", errStr)
	}
}

func TestAdvisorError_ErrorWithCause(t *testing.T) {
	cause := errors.New("underlying error")
	err := NewError(ErrVectorStoreFailed, "vector store failed").WithCause(cause)

	errStr := err.Error()
	if !strings.Contains(errStr, "underlying error") {
		t.Errorf("Error string should contain cause: %s", errStr)
	}
}

func TestAdvisorError_WithDetails(t *testing.T) {
	err := NewError(ErrPrecedentNotFound, "precedent not found").
		WithDetails("case_id", "2019다12345").
		WithDetails("category", "precedent")

	if err.Details == nil {
		t.Fatal("Details should not be nil")
	}
	if err.Details["case_id"] != "2019다12345" {
		t.Error("Details should contain case_id")
	}
	if err.Details["category"] != "precedent" {
		t.Error("Details should contain category")
	}
}

func TestAdvisorError_Unwrap(t *testing.T) {
	cause := errors.New("underlying error")
	err := NewError(ErrChatModelFailed, "chat model failed").WithCause(cause)

	if unwrapped := err.Unwrap(); unwrapped != cause {
		t.Error("Unwrap should return cause")
	}
}

func TestAdvisorError_Unwrap_NoCause(t *testing.T) {
	err := NewError(ErrChatModelFailed, "chat model failed")

	if unwrapped := err.Unwrap(); unwrapped != nil {
		t.Error("Unwrap should return nil when no cause")
	}
}

func TestWrap(t *testing.T) {
	cause := errors.New("underlying error")
	err := Wrap(ErrChatModelTimeout, "chat model timed out", cause)

	if err.Code != ErrChatModelTimeout {
		t.Errorf("Code mismatch: got %s", err.Code)
	}
	if err.Cause != cause {
		t.Error("Cause should be set")
	}
}

func TestErrorCodesUnique(t *testing.T) {
	codes := map[ErrorCode]bool{
		ErrClassificationRemoteFailed: true,
		ErrClassificationInvalid:      true,
		ErrCollectionMissing:          true,
		ErrVectorStoreFailed:          true,
		ErrPrecedentNotFound:          true,
		ErrChatModelTimeout:           true,
		ErrChatModelFailed:            true,
		ErrSessionNotFound:            true,
		ErrSessionCorrupted:           true,
		ErrMessageAppendFailed:        true,
		ErrIndexFailed:                true,
		ErrInvalidRequest:             true,
	}

	if len(codes) != 12 {
		t.Errorf("expected 12 unique error codes, got %d", len(codes))
	}
}

func TestErrorsIs(t *testing.T) {
	cause := errors.New("specific cause")
	err := Wrap(ErrVectorStoreFailed, "wrapper", cause)

	if !errors.Is(err, cause) {
		t.Error("errors.Is should find cause")
	}
}
