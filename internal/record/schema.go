package record

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

// DataType is the logical type of a field. Two values denote the same type
// iff they are the same variant.
type DataType uint8

const (
	Boolean DataType = iota + 1
	Integer
	Text
)

// UnitBytes is the on-disk width of one element of the type. For Text one
// element is one character.
func (t DataType) UnitBytes() int {
	switch t {
	case Boolean:
		return 1
	case Integer:
		return 4
	case Text:
		return 4
	default:
		return 0
	}
}

func (t DataType) Valid() bool { return t.UnitBytes() > 0 }

func (t DataType) String() string {
	switch t {
	case Boolean:
		return "boolean"
	case Integer:
		return "integer"
	case Text:
		return "text"
	default:
		return fmt.Sprintf("DataType(%d)", uint8(t))
	}
}

// ParseDataType accepts the names produced by String, case-insensitively.
func ParseDataType(s string) (DataType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "boolean", "bool":
		return Boolean, nil
	case "integer", "int":
		return Integer, nil
	case "text":
		return Text, nil
	default:
		return 0, fmt.Errorf("%w: unknown type %q", ErrInvalidField, s)
	}
}

func (t DataType) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("%w: unknown type %d", ErrInvalidField, uint8(t))
	}
	return []byte(t.String()), nil
}

func (t *DataType) UnmarshalText(b []byte) error {
	v, err := ParseDataType(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// textPrefixBytes is the explicit character-count prefix of a Text region.
const textPrefixBytes = 4

// tombstoneBytes is the deletion flag in front of every record.
const tombstoneBytes = 1

// maxTextLength keeps a single Text field within an int32 record length.
const maxTextLength = (math.MaxInt32 - tombstoneBytes - textPrefixBytes) / 4

// FieldInfo describes one column. It is immutable once built by NewFieldInfo.
type FieldInfo struct {
	name       string
	typ        DataType
	length     int
	byteLength int
}

// NewFieldInfo computes the effective length and byte width of a field.
// Boolean and Integer fields always have length 1; Text fields get an extra
// 4 bytes for the character count.
func NewFieldInfo(name string, typ DataType, length int) (FieldInfo, error) {
	if !typ.Valid() {
		return FieldInfo{}, fmt.Errorf("%w: field %q: unknown type %d", ErrInvalidField, name, uint8(typ))
	}
	if length < 0 {
		return FieldInfo{}, fmt.Errorf("%w: field %q: negative length %d", ErrInvalidField, name, length)
	}

	if typ == Text && length > maxTextLength {
		return FieldInfo{}, fmt.Errorf("%w: field %q: text length %d exceeds %d", ErrInvalidField, name, length, maxTextLength)
	}

	f := FieldInfo{name: name, typ: typ, length: length}
	if typ != Text {
		f.length = 1
	}
	f.byteLength = f.length * typ.UnitBytes()
	if typ == Text {
		f.byteLength += textPrefixBytes
	}
	return f, nil
}

func (f FieldInfo) Name() string    { return f.name }
func (f FieldInfo) Type() DataType  { return f.typ }
func (f FieldInfo) Length() int     { return f.length }
func (f FieldInfo) ByteLength() int { return f.byteLength }

func (f FieldInfo) String() string {
	if f.typ == Text {
		return fmt.Sprintf("%s:%s:%d", f.name, f.typ, f.length)
	}
	return fmt.Sprintf("%s:%s", f.name, f.typ)
}

type fieldJSON struct {
	Name   string   `json:"name"`
	Type   DataType `json:"type"`
	Length int      `json:"length"`
}

func (f FieldInfo) MarshalJSON() ([]byte, error) {
	return json.Marshal(fieldJSON{Name: f.name, Type: f.typ, Length: f.length})
}

func (f *FieldInfo) UnmarshalJSON(b []byte) error {
	var raw fieldJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	v, err := NewFieldInfo(raw.Name, raw.Type, raw.Length)
	if err != nil {
		return err
	}
	*f = v
	return nil
}

// TextEncoding selects the byte order of UTF-32 code points in Text regions.
// Every encoding uses 4 bytes per character, so it never changes widths.
type TextEncoding uint8

const (
	UTF32LE TextEncoding = iota
	UTF32BE
)

func (e TextEncoding) String() string {
	switch e {
	case UTF32LE:
		return "utf-32le"
	case UTF32BE:
		return "utf-32be"
	default:
		return fmt.Sprintf("TextEncoding(%d)", uint8(e))
	}
}

func (e TextEncoding) MarshalText() ([]byte, error) {
	if e != UTF32LE && e != UTF32BE {
		return nil, fmt.Errorf("%w: unknown text encoding %d", ErrInvalidField, uint8(e))
	}
	return []byte(e.String()), nil
}

func (e *TextEncoding) UnmarshalText(b []byte) error {
	switch strings.ToLower(string(b)) {
	case "utf-32le", "":
		*e = UTF32LE
	case "utf-32be":
		*e = UTF32BE
	default:
		return fmt.Errorf("%w: unknown text encoding %q", ErrInvalidField, b)
	}
	return nil
}

// Schema is the ordered field list of a table. Field order is the on-disk
// order; names are not required to be unique.
type Schema struct {
	fields   []FieldInfo
	encoding TextEncoding
}

func NewSchema(fields ...FieldInfo) Schema {
	cp := make([]FieldInfo, len(fields))
	copy(cp, fields)
	return Schema{fields: cp}
}

// WithEncoding returns a copy of s that stores Text in enc.
func (s Schema) WithEncoding(enc TextEncoding) Schema {
	s.encoding = enc
	return s
}

func (s Schema) Encoding() TextEncoding { return s.encoding }
func (s Schema) NumFields() int         { return len(s.fields) }
func (s Schema) Field(i int) FieldInfo  { return s.fields[i] }

// Fields returns a copy of the field list.
func (s Schema) Fields() []FieldInfo {
	cp := make([]FieldInfo, len(s.fields))
	copy(cp, s.fields)
	return cp
}

// RecordByteLength is the slot width: tombstone byte plus every field.
func (s Schema) RecordByteLength() int {
	n := tombstoneBytes
	for _, f := range s.fields {
		n += f.byteLength
	}
	return n
}

func (s Schema) String() string {
	parts := make([]string, len(s.fields))
	for i, f := range s.fields {
		parts[i] = f.String()
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

type schemaJSON struct {
	Fields   []FieldInfo  `json:"fields"`
	Encoding TextEncoding `json:"encoding"`
}

func (s Schema) MarshalJSON() ([]byte, error) {
	fields := s.fields
	if fields == nil {
		fields = []FieldInfo{}
	}
	return json.Marshal(schemaJSON{Fields: fields, Encoding: s.encoding})
}

func (s *Schema) UnmarshalJSON(b []byte) error {
	var raw schemaJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*s = NewSchema(raw.Fields...).WithEncoding(raw.Encoding)
	return nil
}
