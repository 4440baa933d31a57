package database

import "errors"

// Error kinds surfaced by the storage layer. Callers match with errors.Is.
var (
	// ErrStorageUnavailable means the database refused to open. Fatal; the
	// user must be prompted to restart.
	ErrStorageUnavailable = errors.New("storage unavailable")

	// ErrStorageAborted means a transaction rolled back. Callers may retry
	// once; repeated aborts should surface.
	ErrStorageAborted = errors.New("storage transaction aborted")

	// ErrIncompatibleVersion means the stored schema version is newer than
	// this build. Fatal.
	ErrIncompatibleVersion = errors.New("stored schema version is newer than this build")

	// ErrInvalidInput means a write was rejected by repository validation.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotFound means the requested record does not exist.
	ErrNotFound = errors.New("record not found")
)
