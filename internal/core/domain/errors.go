package domain

import "errors"

// Domain errors - used across all layers
var (
	// ErrNotFound indicates the requested resource was not found
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates the input is invalid
	ErrInvalidInput = errors.New("invalid input")

	// ErrSyncInProgress indicates a sync round is already running
	ErrSyncInProgress = errors.New("sync already in progress")

	// ErrStateCorrupt indicates the persisted watermark state could not be decoded
	ErrStateCorrupt = errors.New("state file corrupt")

	// ErrIndexUnavailable indicates the search index could not be reached
	// after retries were exhausted
	ErrIndexUnavailable = errors.New("search index unavailable")
)
