// Package errs defines the error kinds shared by the annotation packages.
// Callers match them with errors.Is; producers wrap them with context using
// fmt.Errorf("...: %w", ...).
package errs

import "errors"

var (
	// ErrInvalidID reports an id that is not a positive integer.
	ErrInvalidID = errors.New("invalid entity id")
	// ErrDuplicateID reports an id that is already in use.
	ErrDuplicateID = errors.New("duplicate entity id")
	// ErrNotFound reports an operation on an id the manager does not hold.
	ErrNotFound = errors.New("entity not found")
	// ErrInvalidShape reports a raster whose shape disagrees with its slice.
	ErrInvalidShape = errors.New("invalid mask shape")
	// ErrInvalidArgument reports an out-of-range parameter.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrEmpty reports an operation that would leave an entity without pixels.
	ErrEmpty = errors.New("empty entity")
	// ErrOutOfBounds reports geometry that does not fit an external raster.
	ErrOutOfBounds = errors.New("out of bounds")
	// ErrFormat reports a malformed contour string or document.
	ErrFormat = errors.New("format error")
	// ErrIO reports a file access failure.
	ErrIO = errors.New("i/o error")
	// ErrCancelled reports an extraction stopped before completion.
	ErrCancelled = errors.New("cancelled")
)
