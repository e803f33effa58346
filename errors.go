package protorecon

import (
	"errors"

	"github.com/albertocavalcante/go-protorecon/dialect"
	"github.com/albertocavalcante/go-protorecon/extract"
	"github.com/albertocavalcante/go-protorecon/loader"
	"github.com/albertocavalcante/go-protorecon/schema"
)

// Sentinel errors for run failures. Errors returned by Generate wrap one of
// these where applicable, so callers can test with errors.Is.
var (
	// ErrModuleNotFound indicates a module was required but never registered.
	ErrModuleNotFound = loader.ErrModuleNotFound

	// ErrDependencyCycle indicates a module transitively depends on itself.
	ErrDependencyCycle = loader.ErrDependencyCycle

	// ErrConstantsMissing indicates the proto constants module is absent or
	// incomplete.
	ErrConstantsMissing = extract.ErrConstantsMissing

	// ErrInvalidSchema indicates duplicate field numbers or enum values.
	ErrInvalidSchema = schema.ErrInvalidSchema

	// ErrUnknownDialect indicates a dialect name that is neither built in
	// nor a readable file.
	ErrUnknownDialect = dialect.ErrUnknownDialect

	// ErrNoBundles indicates Generate was called without input.
	ErrNoBundles = errors.New("no bundles given")

	// ErrDrift indicates files on disk differ from a fresh generation.
	ErrDrift = errors.New("generated files are out of date")
)
