package engine

import "errors"

var (
	// ErrClosed is returned when an operation is attempted on a database
	// that has already been closed.
	ErrClosed = errors.New("engine: database is closed")

	// ErrTombstoneValue is a usage error for Put(k, VALUE_MIN): a client
	// must not store the tombstone sentinel as a real value.
	ErrTombstoneValue = errors.New("engine: value equals the tombstone sentinel")
)
