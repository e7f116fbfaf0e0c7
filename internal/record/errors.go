package record

import (
	"errors"
	"fmt"
)

// Error kinds. Specific errors wrap one of these so callers can match either.
var (
	ErrInvalidField = errors.New("record: invalid field definition")
	ErrValidation   = errors.New("record: value does not match schema")
	ErrCorrupted    = errors.New("record: corrupted record bytes")
)

var (
	ErrSchemaMismatch = fmt.Errorf("%w: value count", ErrValidation)
	ErrTypeMismatch   = fmt.Errorf("%w: value type", ErrValidation)
	ErrIntOutOfRange  = fmt.Errorf("%w: integer out of int32 range", ErrValidation)
	ErrTextTooLong    = fmt.Errorf("%w: text longer than field length", ErrValidation)
	ErrInvalidText    = fmt.Errorf("%w: text is not valid UTF-8", ErrValidation)

	ErrBadBuffer     = fmt.Errorf("%w: buffer length", ErrCorrupted)
	ErrBadTextLength = fmt.Errorf("%w: text length prefix exceeds field length", ErrCorrupted)
	ErrBadFlag       = fmt.Errorf("%w: flag byte is neither 0 nor 1", ErrCorrupted)
	ErrBadCodePoint  = fmt.Errorf("%w: text holds an invalid code point", ErrCorrupted)
)
