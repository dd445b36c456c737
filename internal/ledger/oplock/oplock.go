// Package oplock implements the version-check-and-increment protocol shared by
// every mutable ledger record. An update carries the version the caller last
// observed; the store applies it only while the stored version still matches and
// bumps the version by one. A zero-row update is classified here into a version
// conflict or a concurrent delete.
package oplock

import (
	"errors"
	"fmt"
)

var (
	// ErrConflict indicates the stored version moved past the observed one.
	ErrConflict = errors.New("oplock: version conflict")
	// ErrDeleted indicates the record was removed by a concurrent caller.
	ErrDeleted = errors.New("oplock: record deleted")
)

// ConflictError carries the versions involved in a failed conditional write.
type ConflictError struct {
	Entity   string
	Key      string
	Expected int64
	Actual   int64
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("oplock: %s %s: expected version %d, stored version %d",
		e.Entity, e.Key, e.Expected, e.Actual)
}

func (e *ConflictError) Unwrap() error { return ErrConflict }

// DeletedError reports a conditional write against a record that no longer exists.
type DeletedError struct {
	Entity string
	Key    string
}

func (e *DeletedError) Error() string {
	return fmt.Sprintf("oplock: %s %s: record deleted by concurrent update", e.Entity, e.Key)
}

func (e *DeletedError) Unwrap() error { return ErrDeleted }

// Classify resolves a conditional update that matched zero rows. Callers probe
// the store for the current version; exists=false means the row is gone.
func Classify(entity, key string, expected, current int64, exists bool) error {
	if !exists {
		return &DeletedError{Entity: entity, Key: key}
	}
	return &ConflictError{Entity: entity, Key: key, Expected: expected, Actual: current}
}
