package compositor

import "errors"

var (
	// ErrLoadFailed is recorded when the content host rejects a load
	// (network or host failure). The region is held in the error state
	// until an explicit reload or reassignment.
	ErrLoadFailed = errors.New("content load failed")

	// ErrInvalidContent is recorded when a content URL is malformed or
	// uses a disallowed scheme, detected before navigation is attempted.
	// Handled identically to a load failure; never silently retried.
	ErrInvalidContent = errors.New("invalid content URL")
)
