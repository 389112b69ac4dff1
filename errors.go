package bpcpool

import "errors"

// Sentinel errors returned by the pool interpretation core. All of them are
// usable with errors.Is; wrapping is done with fmt.Errorf("...: %w", ...).
var (
	// ErrNotFound is returned when a backup number, a named entry of a
	// listing, or a pool digest does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidMagic is returned when an attribute file does not start
	// with the expected 4-byte magic.
	ErrInvalidMagic = errors.New("invalid attribute file magic")

	// ErrCorruptData is returned when a varint or record field cannot be
	// decoded at all (as opposed to a clean end of stream).
	ErrCorruptData = errors.New("corrupt data")

	// ErrInvalidDigest is returned when a digest is shorter than the two
	// bytes needed to locate it in the pool.
	ErrInvalidDigest = errors.New("invalid digest")

	// ErrOverflow is returned when a decoded varint does not fit in the
	// requested target width.
	ErrOverflow = errors.New("varint overflow")
)
