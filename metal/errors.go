package metal

import "errors"

var (
	// ErrInvalidTarget is returned when metadata, get or set is asked for a
	// nil object, or a path runs into a missing object while setting.
	ErrInvalidTarget = errors.New("metal: invalid target")

	ErrInvalidKey = errors.New("metal: invalid key")

	// ErrDestroyedMetaMutation is returned for structural writes to metadata
	// after Destroy. Reads keep working.
	ErrDestroyedMetaMutation = errors.New("metal: mutation of destroyed meta")

	// ErrStaleWriteInRender is returned in debug mode when a value is written
	// after it was consumed in the same autotracking transaction.
	ErrStaleWriteInRender = errors.New("metal: stale write in render")

	ErrUnsupportedPathSyntax = errors.New("metal: unsupported path syntax")
	ErrReadOnlyProperty      = errors.New("metal: read only property")
	ErrIndexOutOfRange       = errors.New("metal: index out of range")
)
