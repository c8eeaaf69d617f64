// Package apperr defines the error taxonomy shared by the engine and its front-ends.
package apperr

import "errors"

var (
	// ErrNotFound means the operation targets a title that does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateTitle means a note with the same title (ignoring case) already exists.
	ErrDuplicateTitle = errors.New("duplicate title")

	// ErrInvalidTitle means the title is empty, unsafe, or its file name collides
	// with another note's.
	ErrInvalidTitle = errors.New("invalid title")

	// ErrIOFailure wraps an underlying filesystem or database failure.
	ErrIOFailure = errors.New("io failure")

	// ErrIndexInconsistency is fatal for the session: the indexes could not be
	// reconciled with the store after a failed rollback. Reload to recover.
	ErrIndexInconsistency = errors.New("index inconsistency")

	// ErrConflict means an If-Match checksum did not match the stored content.
	ErrConflict = errors.New("conflict")
)
