package jsast

import (
	"fmt"
)

// Position is a location in a bundle file.
type Position struct {
	Filename string
	Line     int
	Column   int
}

func (p Position) String() string {
	if p.Line == 0 {
		return p.Filename
	}
	return fmt.Sprintf("%s:%d:%d", p.Filename, p.Line, p.Column)
}

// ParseError represents a parsing error with position information.
type ParseError struct {
	Pos     Position
	Message string
	Wrapped error
}

func (e *ParseError) Error() string {
	if e.Pos.Line > 0 {
		return fmt.Sprintf("%s:%d:%d: %s", e.Pos.Filename, e.Pos.Line, e.Pos.Column, e.Message)
	}
	if e.Pos.Filename != "" {
		return e.Pos.Filename + ": " + e.Message
	}
	return e.Message
}

func (e *ParseError) Unwrap() error {
	return e.Wrapped
}
