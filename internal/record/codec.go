package record

import (
	"fmt"
	"math"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode/utf32"

	"github.com/tuannm99/slotdb/internal/alias/bx"
)

// Record is one logical row. It only has meaning together with the Schema
// it was encoded with or decoded from.
type Record struct {
	Deleted bool
	Values  []any
}

// Encode lays out rec as a fixed-width slot:
//
//	[tombstone u8] [field0] [field1] ...
//
// Boolean is 1 byte (0/1), Integer is int32 LE, Text is a u32 LE character
// count followed by Length UTF-32 code units; unused units stay zero.
func Encode(rec Record, s Schema) ([]byte, error) {
	if len(rec.Values) != s.NumFields() {
		return nil, fmt.Errorf("%w: got %d values, schema has %d fields", ErrSchemaMismatch, len(rec.Values), s.NumFields())
	}

	out := make([]byte, s.RecordByteLength())
	if rec.Deleted {
		out[0] = 1
	}
	off := tombstoneBytes

	for i, f := range s.fields {
		v := rec.Values[i]

		switch f.typ {
		case Boolean:
			x, ok := v.(bool)
			if !ok {
				return nil, fieldTypeError(f, v)
			}
			if x {
				out[off] = 1
			}

		case Integer:
			x, err := asInt32(f, v)
			if err != nil {
				return nil, err
			}
			bx.PutI32At(out, off, x)

		case Text:
			str, ok := v.(string)
			if !ok {
				return nil, fieldTypeError(f, v)
			}
			if !utf8.ValidString(str) {
				return nil, fmt.Errorf("%w: field %q: %q", ErrInvalidText, f.name, str)
			}
			n := utf8.RuneCountInString(str)
			if n > f.length {
				return nil, fmt.Errorf("%w: field %q holds %d characters, got %d", ErrTextTooLong, f.name, f.length, n)
			}
			units, err := textEncoding(s.encoding).NewEncoder().Bytes([]byte(str))
			if err != nil {
				return nil, fmt.Errorf("%w: field %q: %v", ErrValidation, f.name, err)
			}
			if len(units) != n*Text.UnitBytes() {
				return nil, fmt.Errorf("%w: field %q: unexpected encoded size %d", ErrValidation, f.name, len(units))
			}
			bx.PutU32At(out, off, uint32(n))
			copy(out[off+textPrefixBytes:], units)

		default:
			return nil, fmt.Errorf("%w: field %q", ErrInvalidField, f.name)
		}

		off += f.byteLength
	}
	return out, nil
}

// Decode is the inverse of Encode. buf must be exactly one slot wide.
func Decode(buf []byte, s Schema) (Record, error) {
	if len(buf) != s.RecordByteLength() {
		return Record{}, fmt.Errorf("%w: got %d bytes, want %d", ErrBadBuffer, len(buf), s.RecordByteLength())
	}

	deleted, err := readFlag(buf[0])
	if err != nil {
		return Record{}, fmt.Errorf("tombstone: %w", err)
	}
	rec := Record{Deleted: deleted, Values: make([]any, s.NumFields())}
	off := tombstoneBytes

	for i, f := range s.fields {
		switch f.typ {
		case Boolean:
			x, err := readFlag(buf[off])
			if err != nil {
				return Record{}, fmt.Errorf("field %q: %w", f.name, err)
			}
			rec.Values[i] = x

		case Integer:
			rec.Values[i] = bx.I32At(buf, off)

		case Text:
			n := bx.U32At(buf, off)
			if n > uint32(f.length) {
				return Record{}, fmt.Errorf("%w: field %q: %d > %d", ErrBadTextLength, f.name, n, f.length)
			}
			start := off + textPrefixBytes
			units := buf[start : start+int(n)*Text.UnitBytes()]
			if err := checkCodePoints(units, s.encoding); err != nil {
				return Record{}, fmt.Errorf("field %q: %w", f.name, err)
			}
			str, err := textEncoding(s.encoding).NewDecoder().Bytes(units)
			if err != nil {
				return Record{}, fmt.Errorf("%w: field %q: %v", ErrCorrupted, f.name, err)
			}
			rec.Values[i] = string(str)

		default:
			return Record{}, fmt.Errorf("%w: field %q", ErrInvalidField, f.name)
		}

		off += f.byteLength
	}
	return rec, nil
}

// IsDeleted reads only the tombstone byte of an encoded slot.
func IsDeleted(buf []byte) (bool, error) {
	if len(buf) < tombstoneBytes {
		return false, ErrBadBuffer
	}
	return readFlag(buf[0])
}

// MarkDeleted sets the tombstone byte of an encoded slot in place and
// leaves the field bytes untouched.
func MarkDeleted(buf []byte) error {
	if len(buf) < tombstoneBytes {
		return ErrBadBuffer
	}
	buf[0] = 1
	return nil
}

func readFlag(b byte) (bool, error) {
	switch b {
	case 0:
		return false, nil
	case 1:
		return true, nil
	default:
		return false, fmt.Errorf("%w: 0x%02x", ErrBadFlag, b)
	}
}

// checkCodePoints rejects surrogates and values above U+10FFFF, which the
// decoder would otherwise turn into U+FFFD.
func checkCodePoints(units []byte, e TextEncoding) error {
	for off := 0; off < len(units); off += Text.UnitBytes() {
		u := bx.U32At(units, off)
		if e == UTF32BE {
			u = bx.U32BEAt(units, off)
		}
		if u > utf8.MaxRune || !utf8.ValidRune(rune(u)) {
			return fmt.Errorf("%w: 0x%X at character %d", ErrBadCodePoint, u, off/Text.UnitBytes())
		}
	}
	return nil
}

func textEncoding(e TextEncoding) encoding.Encoding {
	if e == UTF32BE {
		return utf32.UTF32(utf32.BigEndian, utf32.IgnoreBOM)
	}
	return utf32.UTF32(utf32.LittleEndian, utf32.IgnoreBOM)
}

func fieldTypeError(f FieldInfo, v any) error {
	return fmt.Errorf("%w: field %q is %s, got %T", ErrTypeMismatch, f.name, f.typ, v)
}

// asInt32 accepts the common Go integer types as long as the value fits.
func asInt32(f FieldInfo, v any) (int32, error) {
	var x int64
	switch n := v.(type) {
	case int32:
		return n, nil
	case int:
		x = int64(n)
	case int64:
		x = n
	case int16:
		return int32(n), nil
	case int8:
		return int32(n), nil
	default:
		return 0, fieldTypeError(f, v)
	}
	if x < math.MinInt32 || x > math.MaxInt32 {
		return 0, fmt.Errorf("%w: field %q: %d", ErrIntOutOfRange, f.name, x)
	}
	return int32(x), nil
}
