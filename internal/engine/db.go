package engine

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/afero"

	"github.com/tuannm99/slotdb/internal/catalog"
	"github.com/tuannm99/slotdb/internal/heap"
	"github.com/tuannm99/slotdb/internal/record"
	"github.com/tuannm99/slotdb/internal/storage"
)

var (
	ErrDatabaseClosed = errors.New("slotdb: database is closed")
	ErrInvalidName    = errors.New("slotdb: invalid table name")
	ErrTableExists    = fmt.Errorf("slotdb: table exists: %w", storage.ErrAlreadyExists)
	ErrTableNotFound  = fmt.Errorf("slotdb: table not found: %w", storage.ErrNotFound)
	ErrTableOpen      = errors.New("slotdb: table is open")
)

const (
	tablesDir  = "tables"
	dataSuffix = ".dat"
	metaSuffix = ".meta.json"
)

type DatabaseOperation interface {
	CreateTable(name string, schema record.Schema) (*heap.Table, error)
	OpenTable(name string) (*heap.Table, error)
	ListTables() ([]string, error)
	DropTable(name string) error
	Close() error
}

var _ DatabaseOperation = (*Database)(nil)

// Database is a directory of tables, each stored as <name>.dat plus a
// <name>.meta.json schema sidecar. It keeps every table it opened until
// CloseTable or Close.
type Database struct {
	FS     afero.Fs
	tables map[string]*heap.Table
	closed bool
}

// NewDatabase creates a database handle on fsys without touching it.
func NewDatabase(fsys afero.Fs) *Database {
	return &Database{
		FS:     fsys,
		tables: make(map[string]*heap.Table),
	}
}

// NewDiskDatabase roots a database at dataDir on the OS file system.
func NewDiskDatabase(dataDir string) *Database {
	return NewDatabase(afero.NewBasePathFs(afero.NewOsFs(), dataDir))
}

func (db *Database) tableDataPath(name string) string {
	return filepath.Join(tablesDir, name+dataSuffix)
}

func (db *Database) tableMetaPath(name string) string {
	return filepath.Join(tablesDir, name+metaSuffix)
}

func validateName(name string) error {
	if name == "" || name == "." || name == ".." ||
		strings.ContainsAny(name, `/\`) || strings.HasSuffix(name, metaSuffix) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

// writeTableMeta overwrites the meta file for a given table.
func (db *Database) writeTableMeta(meta *catalog.TableMeta) error {
	if err := db.FS.MkdirAll(tablesDir, storage.FileMode0755); err != nil {
		return err
	}

	meta.UpdatedAt = time.Now()

	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return err
	}
	return afero.WriteFile(db.FS, db.tableMetaPath(meta.Name), data, storage.FileMode0644)
}

// readTableMeta loads table metadata from its JSON file.
func (db *Database) readTableMeta(name string) (*catalog.TableMeta, error) {
	data, err := afero.ReadFile(db.FS, db.tableMetaPath(name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrTableNotFound, name)
	}
	if err != nil {
		return nil, err
	}

	var meta catalog.TableMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("table %s: meta: %w", name, err)
	}
	return &meta, nil
}

func (db *Database) CreateTable(name string, schema record.Schema) (*heap.Table, error) {
	if db.closed {
		return nil, ErrDatabaseClosed
	}
	if err := validateName(name); err != nil {
		return nil, err
	}
	if exists, err := afero.Exists(db.FS, db.tableMetaPath(name)); err != nil {
		return nil, err
	} else if exists {
		return nil, fmt.Errorf("%w: %s", ErrTableExists, name)
	}

	tbl, err := heap.CreateTable(db.FS, db.tableDataPath(name), schema)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	meta := &catalog.TableMeta{
		Name:      name,
		FileName:  name + dataSuffix,
		Schema:    schema,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := db.writeTableMeta(meta); err != nil {
		_ = tbl.Close()
		if rmErr := db.FS.Remove(db.tableDataPath(name)); rmErr != nil {
			slog.Warn("create table: remove data file", "table", name, "err", rmErr)
		}
		return nil, fmt.Errorf("table %s: write meta: %w", name, err)
	}

	db.tables[name] = tbl
	slog.Info("create table", "table", name, "schema", schema.String(), "record_length", schema.RecordByteLength())
	return tbl, nil
}

// OpenTable returns the open handle for name, opening it on first use.
func (db *Database) OpenTable(name string) (*heap.Table, error) {
	if db.closed {
		return nil, ErrDatabaseClosed
	}
	if err := validateName(name); err != nil {
		return nil, err
	}
	if tbl, ok := db.tables[name]; ok {
		return tbl, nil
	}

	meta, err := db.readTableMeta(name)
	if err != nil {
		return nil, err
	}

	tbl, err := heap.OpenTable(db.FS, db.tableDataPath(name), meta.Schema)
	if err != nil {
		return nil, err
	}

	// Best-effort refresh; if this fails, we still can use the table.
	if err := db.writeTableMeta(meta); err != nil {
		slog.Warn("open table:: error write table meta", "table", name, "err", err)
	}

	db.tables[name] = tbl
	slog.Info("open table", "table", name)
	return tbl, nil
}

// Describe returns the stored metadata of a table without opening it.
func (db *Database) Describe(name string) (*catalog.TableMeta, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}
	return db.readTableMeta(name)
}

// ListTables returns every table with a meta file, sorted by name.
func (db *Database) ListTables() ([]string, error) {
	entries, err := afero.ReadDir(db.FS, tablesDir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), metaSuffix) {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), metaSuffix))
	}
	sort.Strings(names)
	return names, nil
}

// CloseTable closes an open table. Closing a table that is not open is a
// no-op.
func (db *Database) CloseTable(name string) error {
	tbl, ok := db.tables[name]
	if !ok {
		return nil
	}
	delete(db.tables, name)
	return tbl.Close()
}

// DropTable removes the data and meta files of a closed table.
func (db *Database) DropTable(name string) error {
	if db.closed {
		return ErrDatabaseClosed
	}
	if err := validateName(name); err != nil {
		return err
	}
	if _, ok := db.tables[name]; ok {
		return fmt.Errorf("%w: %s", ErrTableOpen, name)
	}
	if exists, err := afero.Exists(db.FS, db.tableMetaPath(name)); err != nil {
		return err
	} else if !exists {
		return fmt.Errorf("%w: %s", ErrTableNotFound, name)
	}

	if err := db.FS.Remove(db.tableDataPath(name)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	if err := db.FS.Remove(db.tableMetaPath(name)); err != nil {
		return err
	}
	slog.Info("drop table", "table", name)
	return nil
}

// Close closes every open table. Closing twice is a no-op; every other
// call on a closed Database fails with ErrDatabaseClosed.
func (db *Database) Close() error {
	if db.closed {
		return nil
	}
	var errs []error
	for name, tbl := range db.tables {
		if err := tbl.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", name, err))
		}
	}
	db.tables = map[string]*heap.Table{}
	db.closed = true
	return errors.Join(errs...)
}
