package utils

import "errors"

var (
	ErrDocumentNotFound   = errors.New("document not found")
	ErrCollectionNotFound = errors.New("collection not found")
	ErrOriginalNotFound   = errors.New("original file not found")
)

// ConflictError represents a conflict with an existing resource
type ConflictError struct {
	Message      string
	ConflictUUID string
}

func (e *ConflictError) Error() string {
	return e.Message
}
