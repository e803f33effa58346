package dialect

import "errors"

var (
	// ErrUnknownDialect is returned by Lookup for names that are neither a
	// built-in dialect nor a readable file.
	ErrUnknownDialect = errors.New("unknown dialect")

	// ErrInvalidDialect is returned when a dialect fails validation.
	ErrInvalidDialect = errors.New("invalid dialect")
)
