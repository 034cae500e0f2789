package testutil

import (
	"errors"
	"testing"

	apperrors "tally/internal/errors"
)

// AssertAppError fails unless err is an AppError carrying expectedCode and an
// error status. It returns the AppError for further checks.
func AssertAppError(t *testing.T, err error, expectedCode string) *apperrors.AppError {
	t.Helper()

	if err == nil {
		t.Fatalf("expected %s, got nil", expectedCode)
	}
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("expected %s, got %T: %v", expectedCode, err, err)
	}
	if appErr.Code != expectedCode {
		t.Errorf("expected error code %q, got %q (message: %s)", expectedCode, appErr.Code, appErr.Message)
	}
	if appErr.StatusCode < 400 {
		t.Errorf("%s carries non-error status %d", appErr.Code, appErr.StatusCode)
	}
	return appErr
}

// AssertAppErrorIs checks err against a sentinel: same code and same HTTP
// status, whatever message or cause it was wrapped with.
func AssertAppErrorIs(t *testing.T, err error, sentinel *apperrors.AppError) {
	t.Helper()

	appErr := AssertAppError(t, err, sentinel.Code)
	if appErr.StatusCode != sentinel.StatusCode {
		t.Errorf("%s: expected status %d, got %d", sentinel.Code, sentinel.StatusCode, appErr.StatusCode)
	}
}

// AssertNoError fails the test if err is not nil.
func AssertNoError(t *testing.T, err error) {
	t.Helper()

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
