package config

import "errors"

var (
	// ErrParsingConfig wraps failures from the environment parser.
	ErrParsingConfig = errors.New("failed to parse environment variables into config")
	// ErrNilPointer is returned when Load gets a nil target.
	ErrNilPointer = errors.New("nil pointer provided to config loader")
)
