// Package apperr defines the sentinel errors shared across the store and its
// consumers. Callers match with errors.Is; storage details travel wrapped
// behind these sentinels.
package apperr

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when an id lookup misses.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned on uniqueness violations, e.g. a duplicate
	// subject name within the same parent.
	ErrConflict = errors.New("conflict")
	// ErrStorage wraps persistence I/O or constraint failures.
	ErrStorage = errors.New("storage failure")
)

// Storage wraps err under ErrStorage with an operation label.
func Storage(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrStorage, op, err)
}

// Invariant reports a programming-error condition, e.g. duplicate ids in a
// query result. It panics so the violation fails loudly instead of being
// silently served to callers.
func Invariant(cond bool, format string, args ...any) {
	if !cond {
		panic(fmt.Sprintf("invariant violation: "+format, args...))
	}
}
