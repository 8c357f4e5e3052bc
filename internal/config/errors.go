package config

import "errors"

var (
	// ErrInvalidConfig marks values Validate rejects.
	ErrInvalidConfig = errors.New("invalid config")
	// ErrLoadConfig wraps file, env and watch failures.
	ErrLoadConfig = errors.New("load config failed")
)
