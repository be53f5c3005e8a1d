package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestAppErrorError(t *testing.T) {
	base := New("SAMPLE", "sample failure", http.StatusBadRequest)
	if base.Error() != "sample failure" {
		t.Fatalf("unexpected error string: %s", base.Error())
	}

	wrapped := base.WithInternal(errors.New("boom"))
	if wrapped.Error() != "sample failure: boom" {
		t.Fatalf("unexpected wrapped error string: %s", wrapped.Error())
	}
	if base.Internal != nil {
		t.Fatal("WithInternal must not mutate the original error")
	}
}

func TestFromError(t *testing.T) {
	if FromError(nil) != nil {
		t.Fatal("expected nil for nil input")
	}

	appErr := FromError(fmt.Errorf("load state: %w", ErrNotFound))
	if appErr.Code != ErrNotFound.Code {
		t.Fatalf("expected NOT_FOUND, got %s", appErr.Code)
	}

	generic := FromError(errors.New("boom"))
	if generic.Code != ErrInternalServer.Code {
		t.Fatalf("expected internal server error, got %s", generic.Code)
	}
	if generic.Internal == nil {
		t.Fatal("expected internal error to be preserved")
	}
}

func TestValidationDetection(t *testing.T) {
	err := NewValidation("quiet hours start must be HH:MM")
	if !IsValidation(err) {
		t.Fatal("expected validation error to be detected")
	}
	if !IsValidation(fmt.Errorf("update preferences: %w", err)) {
		t.Fatal("expected wrapped validation error to be detected")
	}
	if IsValidation(ErrNotFound) {
		t.Fatal("not-found must not count as validation")
	}
	if err.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("unexpected status: %d", err.StatusCode)
	}
}
