package heap

import (
	"errors"
	"fmt"

	"github.com/tuannm99/slotdb/internal/storage"
)

var (
	ErrRowNotFound    = fmt.Errorf("heap: no live row in slot: %w", storage.ErrNotFound)
	ErrSchemaMismatch = errors.New("heap: schema does not match file record length")
)
