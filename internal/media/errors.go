package media

import "errors"

var (
	// ErrNotFound is returned when a media item is not found
	ErrNotFound = errors.New("media item not found")

	// ErrInvalidTarget is returned when a target is missing its identifying fields
	ErrInvalidTarget = errors.New("invalid target")
)
