package heap

import (
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"github.com/tuannm99/slotdb/internal/record"
	"github.com/tuannm99/slotdb/internal/storage"
)

// Table is a heap file of fixed-width rows: a RecordFile whose slots are
// encoded with Schema. Deleted rows leave a tombstone that the next
// CreateRow reuses, lowest slot first.
type Table struct {
	Name   string
	Schema record.Schema
	File   *storage.RecordFile
}

// CreateTable creates a new table file at path sized for schema.
func CreateTable(fsys afero.Fs, path string, schema record.Schema) (*Table, error) {
	rf, err := storage.CreateRecordFile(fsys, path, schema.RecordByteLength())
	if err != nil {
		return nil, err
	}
	tbl, err := NewTable(tableName(path), schema, rf)
	if err != nil {
		_ = rf.Close()
		return nil, err
	}
	return tbl, nil
}

// OpenTable opens an existing table file and checks it was made for schema.
func OpenTable(fsys afero.Fs, path string, schema record.Schema) (*Table, error) {
	rf, err := storage.OpenRecordFile(fsys, path)
	if err != nil {
		return nil, err
	}
	tbl, err := NewTable(tableName(path), schema, rf)
	if err != nil {
		_ = rf.Close()
		return nil, err
	}
	return tbl, nil
}

// NewTable binds an already open RecordFile to schema.
func NewTable(name string, schema record.Schema, rf *storage.RecordFile) (*Table, error) {
	if !rf.IsOpen() {
		return nil, storage.ErrNotOpen
	}
	if rf.RecordLength() != schema.RecordByteLength() {
		return nil, fmt.Errorf("%w: file has %d, schema %s needs %d",
			ErrSchemaMismatch, rf.RecordLength(), schema, schema.RecordByteLength())
	}
	return &Table{Name: name, Schema: schema, File: rf}, nil
}

func tableName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// CreateRow stores values in the first tombstoned slot, or appends when
// there is none. It returns the slot used and the record as stored.
func (t *Table) CreateRow(values []any) (SlotID, record.Record, error) {
	buf, err := record.Encode(record.Record{Values: values}, t.Schema)
	if err != nil {
		return 0, record.Record{}, err
	}

	count, err := t.File.SlotCount()
	if err != nil {
		return 0, record.Record{}, err
	}

	slot := count
	for i := 0; i < count; i++ {
		cur, err := t.File.ReadSlot(i)
		if err != nil {
			return 0, record.Record{}, err
		}
		dead, err := record.IsDeleted(cur)
		if err != nil {
			return 0, record.Record{}, fmt.Errorf("slot %d: %w", i, err)
		}
		if dead {
			slot = i
			slog.Debug("heap: reusing deleted slot", "table", t.Name, "slot", i)
			break
		}
	}

	if err := t.File.WriteSlot(buf, slot); err != nil {
		return 0, record.Record{}, err
	}

	// decode what was written so callers see normalized values (int -> int32)
	stored, err := record.Decode(buf, t.Schema)
	if err != nil {
		return 0, record.Record{}, err
	}
	return SlotID(slot), stored, nil
}

// RetrieveRows returns a lazy sequence over live rows in slot order. Each
// range over it starts a fresh scan of the slots present at that moment.
// On error the sequence yields it once and stops.
func (t *Table) RetrieveRows() iter.Seq2[Row, error] {
	return func(yield func(Row, error) bool) {
		count, err := t.File.SlotCount()
		if err != nil {
			yield(Row{}, err)
			return
		}

		for i := 0; i < count; i++ {
			rec, err := t.readSlot(i)
			if err != nil {
				yield(Row{}, err)
				return
			}
			if rec.Deleted {
				continue
			}
			if !yield(Row{ID: SlotID(i), Record: rec}, nil) {
				return
			}
		}
	}
}

// Scan calls fn for every live row in slot order. A non-nil error from fn
// stops the scan and is returned.
func (t *Table) Scan(fn func(id SlotID, rec record.Record) error) error {
	for row, err := range t.RetrieveRows() {
		if err != nil {
			return err
		}
		if err := fn(row.ID, row.Record); err != nil {
			return err
		}
	}
	return nil
}

// GetRow reads a single live row.
func (t *Table) GetRow(id SlotID) (record.Record, error) {
	_, rec, err := t.liveSlot(id)
	return rec, err
}

// UpdateRow replaces the values of a live row in place.
func (t *Table) UpdateRow(id SlotID, values []any) (record.Record, error) {
	if _, _, err := t.liveSlot(id); err != nil {
		return record.Record{}, err
	}

	buf, err := record.Encode(record.Record{Values: values}, t.Schema)
	if err != nil {
		return record.Record{}, err
	}
	if err := t.File.WriteSlot(buf, int(id)); err != nil {
		return record.Record{}, err
	}
	return record.Decode(buf, t.Schema)
}

// DeleteRow tombstones a live row. The field bytes stay on disk until a
// later CreateRow reuses the slot.
func (t *Table) DeleteRow(id SlotID) error {
	buf, _, err := t.liveSlot(id)
	if err != nil {
		return err
	}
	if err := record.MarkDeleted(buf); err != nil {
		return err
	}
	return t.File.WriteSlot(buf, int(id))
}

// Count returns the number of live rows.
func (t *Table) Count() (int, error) {
	n := 0
	err := t.Scan(func(SlotID, record.Record) error {
		n++
		return nil
	})
	return n, err
}

func (t *Table) Close() error {
	return t.File.Close()
}

func (t *Table) readSlot(i int) (record.Record, error) {
	buf, err := t.File.ReadSlot(i)
	if err != nil {
		return record.Record{}, err
	}
	rec, err := record.Decode(buf, t.Schema)
	if err != nil {
		return record.Record{}, fmt.Errorf("slot %d: %w", i, err)
	}
	return rec, nil
}

// liveSlot returns the raw and decoded content of id, or ErrRowNotFound
// when the slot does not exist or is tombstoned.
func (t *Table) liveSlot(id SlotID) ([]byte, record.Record, error) {
	buf, err := t.File.ReadSlot(int(id))
	if errors.Is(err, storage.ErrOutOfRange) {
		return nil, record.Record{}, fmt.Errorf("%w: slot %d: %w", ErrRowNotFound, id, err)
	}
	if err != nil {
		return nil, record.Record{}, err
	}
	rec, err := record.Decode(buf, t.Schema)
	if err != nil {
		return nil, record.Record{}, fmt.Errorf("slot %d: %w", id, err)
	}
	if rec.Deleted {
		return nil, record.Record{}, fmt.Errorf("%w: slot %d is deleted", ErrRowNotFound, id)
	}
	return buf, rec, nil
}
