package heap

import "github.com/tuannm99/slotdb/internal/record"

// SlotID is the zero-based slot index of a row inside its table file. It
// stays stable for the life of the row; updates never relocate a row.
type SlotID int

// Row is a live record together with the slot it was read from.
type Row struct {
	ID     SlotID
	Record record.Record
}
