package sources

import "errors"

var (
	// ErrUnknownSource indicates a source name with no registered factory.
	ErrUnknownSource = errors.New("unknown source")
)
