package catalog

import "errors"

var (
	// ErrNotFound is returned for unknown case ids.
	ErrNotFound = errors.New("case not found")

	// ErrRejected is returned when a document has lint errors.
	ErrRejected = errors.New("case rejected")

	// ErrDuplicate is returned when a case id is already loaded.
	ErrDuplicate = errors.New("duplicate case id")

	// ErrUnsupportedFile is returned for files that hold no scenario documents.
	ErrUnsupportedFile = errors.New("unsupported case file")
)
