package circulation

import "errors"

// Domain errors. Every failed precondition aborts the whole operation with
// no side effects; callers match with errors.Is. Storage failures pass
// through untouched and are therefore distinguishable from these.
var (
	ErrNotFound        = errors.New("record not found")
	ErrNotAvailable    = errors.New("book copy is not available")
	ErrAlreadyReturned = errors.New("loan is already returned")
	ErrInvalidState    = errors.New("reservation is not pending")
	ErrNoCopyAvailable = errors.New("no available copy for this isbn")
	ErrConflict        = errors.New("an open loan already exists for this copy")
)
