package extract

import "errors"

var (
	// ErrConstantsMissing is returned when the constants module was not
	// loaded or lacks the TYPES, TYPE_MASK or FLAGS exports.
	ErrConstantsMissing = errors.New("proto constants missing")
)
