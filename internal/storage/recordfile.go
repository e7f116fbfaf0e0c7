package storage

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/tuannm99/slotdb/internal/alias/bx"
	"github.com/tuannm99/slotdb/internal/alias/util"
	locking "github.com/tuannm99/slotdb/internal/lock"
)

// Header is persisted as the first HeaderSize bytes of a record file.
type Header struct {
	RecordLength int32
}

// openFiles holds every (fs, path) that has a live RecordFile in this process.
var openFiles = locking.NewRegistry()

type fileKey struct {
	fs   afero.Fs
	path string
}

// RecordFile is a heap of uniform slots behind a 4-byte header:
//
//	[recordLength i32 LE] [slot 0] [slot 1] ...
//
// Slot i starts at HeaderSize + i*RecordLength. A RecordFile value is either
// Closed or Open; Create and Open move it to Open, Close back to Closed.
// It is not safe for concurrent use.
type RecordFile struct {
	fs     afero.Fs
	path   string
	f      afero.File
	header Header
	unlock func() error
	open   bool
}

// NewRecordFile returns a Closed handle that does all I/O through fsys.
func NewRecordFile(fsys afero.Fs) *RecordFile {
	return &RecordFile{fs: fsys}
}

// CreateRecordFile is NewRecordFile followed by Create.
func CreateRecordFile(fsys afero.Fs, path string, recordLength int) (*RecordFile, error) {
	rf := NewRecordFile(fsys)
	if err := rf.Create(path, recordLength); err != nil {
		return nil, err
	}
	return rf, nil
}

// OpenRecordFile is NewRecordFile followed by Open.
func OpenRecordFile(fsys afero.Fs, path string) (*RecordFile, error) {
	rf := NewRecordFile(fsys)
	if err := rf.Open(path); err != nil {
		return nil, err
	}
	return rf, nil
}

func (rf *RecordFile) IsOpen() bool   { return rf.open }
func (rf *RecordFile) Path() string   { return rf.path }
func (rf *RecordFile) Header() Header { return rf.header }

// RecordLength is the slot width in bytes.
func (rf *RecordFile) RecordLength() int { return int(rf.header.RecordLength) }

// Create makes a new file at path and writes its header. It fails if
// anything already exists there.
func (rf *RecordFile) Create(path string, recordLength int) error {
	if rf.open {
		return ErrAlreadyOpen
	}
	if recordLength <= 0 || recordLength > MaxRecordLength {
		return fmt.Errorf("%w: got %d", ErrBadRecordLength, recordLength)
	}

	exists, err := afero.Exists(rf.fs, path)
	if err != nil {
		return fmt.Errorf("%w: stat %s: %w", ErrStorageIO, path, err)
	}
	if exists {
		return fmt.Errorf("%w: %s", ErrAlreadyExists, path)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := rf.fs.MkdirAll(dir, FileMode0755); err != nil {
			return fmt.Errorf("%w: mkdir %s: %w", ErrStorageIO, dir, err)
		}
	}

	key := rf.keyFor(path)
	if err := openFiles.Acquire(key); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrInUse, path, err)
	}

	f, err := rf.fs.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, FileMode0644)
	if err != nil {
		openFiles.Release(key)
		if errors.Is(err, fs.ErrExist) {
			return fmt.Errorf("%w: %s", ErrAlreadyExists, path)
		}
		return fmt.Errorf("%w: create %s: %w", ErrStorageIO, path, err)
	}

	unlock, err := locking.TryLock(descriptor(f))
	if err != nil {
		util.CloseQuietly(f, path)
		openFiles.Release(key)
		return fmt.Errorf("%w: %s: %w", ErrInUse, path, err)
	}

	header := Header{RecordLength: int32(recordLength)}
	if err := writeHeader(f, header); err != nil {
		_ = unlock()
		util.CloseQuietly(f, path)
		openFiles.Release(key)
		// a file without a valid header can never be opened; do not leave it
		if rmErr := rf.fs.Remove(path); rmErr != nil {
			slog.Warn("storage: remove half-created file", "path", path, "err", rmErr)
		}
		return err
	}

	rf.attach(path, f, header, unlock)
	slog.Debug("storage: record file created", "path", path, "record_length", recordLength)
	return nil
}

// Open attaches to an existing file and loads its header. The file stays
// exclusively held by this handle until Close.
func (rf *RecordFile) Open(path string) error {
	if rf.open {
		return ErrAlreadyOpen
	}

	exists, err := afero.Exists(rf.fs, path)
	if err != nil {
		return fmt.Errorf("%w: stat %s: %w", ErrStorageIO, path, err)
	}
	if !exists {
		return fmt.Errorf("%w: %s", ErrNotFound, path)
	}

	key := rf.keyFor(path)
	if err := openFiles.Acquire(key); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrInUse, path, err)
	}

	f, err := rf.fs.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		openFiles.Release(key)
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return fmt.Errorf("%w: open %s: %w", ErrStorageIO, path, err)
	}

	unlock, err := locking.TryLock(descriptor(f))
	if err != nil {
		util.CloseQuietly(f, path)
		openFiles.Release(key)
		return fmt.Errorf("%w: %s: %w", ErrInUse, path, err)
	}

	header, err := readHeader(f)
	if err != nil {
		_ = unlock()
		util.CloseQuietly(f, path)
		openFiles.Release(key)
		return fmt.Errorf("%s: %w", path, err)
	}

	rf.attach(path, f, header, unlock)
	slog.Debug("storage: record file opened", "path", path, "record_length", header.RecordLength)
	return nil
}

// ReadSlot returns a fresh buffer holding slot index.
func (rf *RecordFile) ReadSlot(index int) ([]byte, error) {
	if !rf.open {
		return nil, ErrNotOpen
	}
	size, err := rf.size()
	if err != nil {
		return nil, err
	}

	rl := rf.RecordLength()
	// compare slot numbers, not offsets: index*rl may overflow int64
	if index < 0 || int64(index) >= (size-HeaderSize)/int64(rl) {
		return nil, fmt.Errorf("%w: read slot %d, file holds %d bytes", ErrOutOfRange, index, size)
	}
	off := rf.offset(index)

	buf := make([]byte, rl)
	n, err := rf.f.ReadAt(buf, off)
	if n == rl {
		// io.ReaderAt may report io.EOF together with a full read at the end
		return buf, nil
	}
	if err == nil {
		err = io.ErrUnexpectedEOF
	}
	return nil, fmt.Errorf("%w: read slot %d: %w", ErrStorageIO, index, err)
}

// WriteSlot stores buf in slot index and syncs before returning. index may
// be at most SlotCount(), in which case the file grows by one slot.
func (rf *RecordFile) WriteSlot(buf []byte, index int) error {
	if !rf.open {
		return ErrNotOpen
	}
	if len(buf) != rf.RecordLength() {
		return fmt.Errorf("%w: got %d, want %d", ErrSizeMismatch, len(buf), rf.RecordLength())
	}
	count, err := rf.SlotCount()
	if err != nil {
		return err
	}
	if index < 0 || index > count {
		return fmt.Errorf("%w: write slot %d, file holds %d slots", ErrOutOfRange, index, count)
	}

	n, err := rf.f.WriteAt(buf, rf.offset(index))
	if err != nil {
		return fmt.Errorf("%w: write slot %d: %w", ErrStorageIO, index, err)
	}
	if n != len(buf) {
		return fmt.Errorf("%w: write slot %d: %w", ErrStorageIO, index, io.ErrShortWrite)
	}
	if err := rf.f.Sync(); err != nil {
		return fmt.Errorf("%w: sync: %w", ErrStorageIO, err)
	}
	return nil
}

// SlotCount derives the number of slots from the file length.
func (rf *RecordFile) SlotCount() (int, error) {
	if !rf.open {
		return 0, ErrNotOpen
	}
	size, err := rf.size()
	if err != nil {
		return 0, err
	}
	data := size - HeaderSize
	rl := int64(rf.header.RecordLength)
	if data < 0 || data%rl != 0 {
		return 0, fmt.Errorf("%w: %d bytes with record length %d", ErrPartialSlot, size, rl)
	}
	return int(data / rl), nil
}

// Close syncs and releases the file. Closing a Closed handle does nothing.
func (rf *RecordFile) Close() error {
	if !rf.open {
		return nil
	}

	var errs []error
	if err := rf.f.Sync(); err != nil {
		errs = append(errs, fmt.Errorf("%w: sync: %w", ErrStorageIO, err))
	}
	if err := rf.unlock(); err != nil {
		errs = append(errs, err)
	}
	if err := rf.f.Close(); err != nil {
		errs = append(errs, fmt.Errorf("%w: close: %w", ErrStorageIO, err))
	}
	openFiles.Release(rf.keyFor(rf.path))
	slog.Debug("storage: record file closed", "path", rf.path)

	rf.f = nil
	rf.unlock = nil
	rf.header = Header{}
	rf.open = false
	return errors.Join(errs...)
}

func (rf *RecordFile) attach(path string, f afero.File, h Header, unlock func() error) {
	rf.path = path
	rf.f = f
	rf.header = h
	rf.unlock = unlock
	rf.open = true
}

func (rf *RecordFile) offset(index int) int64 {
	return int64(index)*int64(rf.header.RecordLength) + HeaderSize
}

func (rf *RecordFile) size() (int64, error) {
	info, err := rf.f.Stat()
	if err != nil {
		return 0, fmt.Errorf("%w: stat: %w", ErrStorageIO, err)
	}
	return info.Size(), nil
}

func (rf *RecordFile) keyFor(path string) fileKey {
	p := filepath.Clean(path)
	switch rf.fs.(type) {
	case *afero.OsFs, afero.OsFs:
		if abs, err := filepath.Abs(p); err == nil {
			p = abs
		}
	}
	return fileKey{fs: rf.fs, path: p}
}

func writeHeader(f afero.File, h Header) error {
	var b [HeaderSize]byte
	bx.PutI32(b[:], h.RecordLength)
	if _, err := f.WriteAt(b[:], 0); err != nil {
		return fmt.Errorf("%w: write header: %w", ErrStorageIO, err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("%w: sync header: %w", ErrStorageIO, err)
	}
	return nil
}

func readHeader(f afero.File) (Header, error) {
	b := make([]byte, HeaderSize)
	n, err := f.ReadAt(b, 0)
	if n < HeaderSize {
		if err == nil || errors.Is(err, io.EOF) {
			return Header{}, fmt.Errorf("%w: %d header bytes", ErrBadHeader, n)
		}
		return Header{}, fmt.Errorf("%w: read header: %w", ErrStorageIO, err)
	}
	h := Header{RecordLength: bx.I32(b)}
	if h.RecordLength <= 0 {
		return Header{}, fmt.Errorf("%w: record length %d", ErrBadHeader, h.RecordLength)
	}
	return h, nil
}

// descriptor unwraps afero wrappers so the OS lock sees the real *os.File.
func descriptor(f afero.File) any {
	if bf, ok := f.(*afero.BasePathFile); ok {
		return descriptor(bf.File)
	}
	return f
}
