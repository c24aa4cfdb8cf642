package domain

import "errors"

var (
	// ErrDocumentNotFound is returned when the file to ingest does not exist.
	ErrDocumentNotFound = errors.New("document not found")
	// ErrUnsupportedFormat is returned for file extensions no loader handles.
	ErrUnsupportedFormat = errors.New("unsupported document format")
	// ErrUnreadableDocument is returned when a file exists but its text cannot be extracted.
	ErrUnreadableDocument = errors.New("unreadable document")

	// ErrDimensionMismatch means two vectors that must live in the same index differ in length.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
	// ErrModelMismatch means the store was indexed with a different embedding model.
	ErrModelMismatch = errors.New("embedding model mismatch")
)
