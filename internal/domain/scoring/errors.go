package scoring

import "errors"

var (
	// ErrMissingRunID is returned for submissions without a run id.
	ErrMissingRunID = errors.New("missing run id")

	// ErrUnknownCase is returned when the submission's case cannot be loaded.
	ErrUnknownCase = errors.New("unknown case")
)
