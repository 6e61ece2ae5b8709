package apperr

import (
	"errors"
	"fmt"
	"testing"
)

func TestValidationError_Message(t *testing.T) {
	err := Validation("", map[string]string{"quantity": "must be > 0", "clientId": "required"})
	want := "validation failed (clientId: required, quantity: must be > 0)"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestIsValidation_Wrapped(t *testing.T) {
	err := fmt.Errorf("create invoice: %w", Field("items", "required"))
	if !IsValidation(err) {
		t.Fatal("expected wrapped validation error to be detected")
	}
	if IsValidation(ErrNotFound) {
		t.Fatal("ErrNotFound is not a validation error")
	}
}

func TestDependencyError_Unwrap(t *testing.T) {
	base := errors.New("dial tcp: refused")
	err := Dependency("smtp", base)
	if !errors.Is(err, base) {
		t.Fatal("expected Unwrap to expose the cause")
	}
	if Dependency("smtp", nil) != nil {
		t.Fatal("nil cause must yield nil error")
	}
}
