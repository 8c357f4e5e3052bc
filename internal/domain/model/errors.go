package model

import "errors"

// ErrInvalidDocument is returned when a scenario document is not a JSON object.
var ErrInvalidDocument = errors.New("invalid scenario document")
