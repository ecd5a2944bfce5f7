package npy

import "errors"

// The package classifies failures into four families. Callers can test for a
// family with errors.Is; every returned error wraps exactly one of these and
// carries the offending path, entry name, or header fragment in its message.
var (
	// ErrFormat marks malformed or unsupported NPY bytes: bad magic string,
	// version other than 1.0, malformed dictionary, big-endian payload.
	ErrFormat = errors.New("invalid npy format")

	// ErrCompat marks an append whose data does not match the existing file:
	// element width, type code, memory order, rank, or a non-growth dimension
	// differs. The target file is left untouched.
	ErrCompat = errors.New("append incompatible")

	// ErrUsage marks caller programming errors: label count mismatches,
	// view widths disagreeing with stored widths, negative ranges.
	ErrUsage = errors.New("invalid usage")

	// ErrNotFound reports a missing archive entry or variable name.
	ErrNotFound = errors.New("not found")
)
