package docmodel

import "errors"

var (
	// ErrStaleSelection indicates a selection that references a block key or
	// offset that does not exist in the snapshot it is applied to.
	ErrStaleSelection = errors.New("selection does not match document")

	// ErrBlockNotFound indicates a block key that is not in the snapshot.
	ErrBlockNotFound = errors.New("block not found")
)
