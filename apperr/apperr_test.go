package apperr

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestKindOfUnwrapsWrappedError(t *testing.T) {
	base := Wrap(StorageError, errors.New("disk full"), "store leaf")
	wrapped := fmt.Errorf("add leaf: %w", base)

	if got := KindOf(wrapped); got != StorageError {
		t.Fatalf("KindOf(wrapped) = %v, want %v", got, StorageError)
	}
	if !Is(wrapped, StorageError) {
		t.Fatalf("Is(wrapped, StorageError) = false, want true")
	}
}

func TestKindOfUnclassifiedErrorIsUnknown(t *testing.T) {
	if got := KindOf(errors.New("plain error")); got != Unknown {
		t.Fatalf("KindOf(plain) = %v, want %v", got, Unknown)
	}
}

func TestWrapNilReturnsNil(t *testing.T) {
	if err := Wrap(StorageError, nil, "noop"); err != nil {
		t.Fatalf("Wrap(nil) = %v, want nil", err)
	}
}

func TestErrorMessageIncludesCause(t *testing.T) {
	err := Wrap(InvalidInput, errors.New("bad hex"), "decode leaf")
	if got := err.Error(); !strings.Contains(got, "bad hex") {
		t.Fatalf("Error() = %q, want it to include the cause %q", got, "bad hex")
	}
	if errors.Unwrap(err) == nil {
		t.Fatalf("Unwrap() returned nil, want the wrapped cause")
	}
}
