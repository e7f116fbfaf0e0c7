package storage

import (
	"errors"
	"fmt"
)

const (
	// HeaderSize is the record-length header in front of the first slot.
	HeaderSize = 4

	MaxRecordLength = 1<<31 - 1
)

const (
	FileMode0644 = 0o644
	FileMode0755 = 0o755
)

var (
	ErrAlreadyExists = errors.New("storage: file already exists")
	ErrNotFound      = errors.New("storage: file not found")
	ErrInvalidState  = errors.New("storage: invalid operation for file state")
	ErrInUse         = errors.New("storage: file is already open")
	ErrSizeMismatch  = errors.New("storage: buffer length does not match record length")
	ErrOutOfRange    = errors.New("storage: slot index out of range")
	ErrCorrupted     = errors.New("storage: file is corrupted")
	ErrStorageIO     = errors.New("storage: I/O error")
)

var (
	ErrNotOpen         = fmt.Errorf("%w: file is not open", ErrInvalidState)
	ErrAlreadyOpen     = fmt.Errorf("%w: handle already has an open file", ErrInvalidState)
	ErrBadRecordLength = fmt.Errorf("%w: record length must be in (0, %d]", ErrInvalidState, MaxRecordLength)
	ErrBadHeader       = fmt.Errorf("%w: bad header", ErrCorrupted)
	ErrPartialSlot     = fmt.Errorf("%w: size is not header + whole slots", ErrCorrupted)
)
