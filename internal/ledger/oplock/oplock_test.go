package oplock

import (
	"errors"
	"testing"
)

func TestClassifyConflict(t *testing.T) {
	err := Classify("daily balance", "2024-04-01/1110", 3, 5, true)
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	var conflict *ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected ConflictError, got %T", err)
	}
	if conflict.Expected != 3 || conflict.Actual != 5 {
		t.Fatalf("unexpected versions: %+v", conflict)
	}
}

func TestClassifyDeleted(t *testing.T) {
	err := Classify("journal", "J00000001", 1, 0, false)
	if !errors.Is(err, ErrDeleted) {
		t.Fatalf("expected ErrDeleted, got %v", err)
	}
	if errors.Is(err, ErrConflict) {
		t.Fatalf("deleted must not match ErrConflict")
	}
}
