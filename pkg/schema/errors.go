package schema

import "errors"

var (
	// ErrNoFiles is returned when there is nothing to compile
	ErrNoFiles = errors.New("no proto files to compile")

	// ErrMessageNotFound is returned when a message type is not part of the schema
	ErrMessageNotFound = errors.New("message type not found")
)
