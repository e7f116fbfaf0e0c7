package record

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// makeTestSchema builds a simple schema used across tests.
func makeTestSchema(t *testing.T) Schema {
	t.Helper()
	return NewSchema(
		mustField(t, "alive", Boolean, 1),
		mustField(t, "level", Integer, 1),
		mustField(t, "name", Text, 8),
	)
}

func TestEncodeDecode_RoundTrip(t *testing.T) {
	s := makeTestSchema(t)

	for _, rec := range []Record{
		{Values: []any{true, int32(42), "hero"}},
		{Values: []any{false, int32(math.MinInt32), ""}},
		{Values: []any{true, int32(math.MaxInt32), "12345678"}},
		{Deleted: true, Values: []any{false, int32(-1), "héllo"}},
		{Values: []any{false, int32(0), "日本語😀"}},
	} {
		buf, err := Encode(rec, s)
		require.NoError(t, err)
		require.Len(t, buf, s.RecordByteLength())

		got, err := Decode(buf, s)
		require.NoError(t, err)
		require.Equal(t, rec, got)
	}
}

func TestEncode_Layout(t *testing.T) {
	s := makeTestSchema(t)

	buf, err := Encode(Record{Values: []any{true, int32(258), "ab"}}, s)
	require.NoError(t, err)

	// tombstone, alive, level (258 LE), text count, then UTF-32LE units
	want := make([]byte, 1+1+4+4+32)
	want[1] = 1
	want[2], want[3] = 0x02, 0x01
	want[6] = 2
	want[10] = 'a'
	want[14] = 'b'
	require.Equal(t, want, buf)

	buf, err = Encode(Record{Deleted: true, Values: []any{false, int32(-2), ""}}, s)
	require.NoError(t, err)
	require.Equal(t, byte(1), buf[0])
	require.Equal(t, []byte{0xFE, 0xFF, 0xFF, 0xFF}, buf[2:6])
}

func TestEncode_BigEndianText(t *testing.T) {
	le := makeTestSchema(t)
	be := le.WithEncoding(UTF32BE)
	rec := Record{Values: []any{false, int32(1), "Zé"}}

	bufLE, err := Encode(rec, le)
	require.NoError(t, err)
	bufBE, err := Encode(rec, be)
	require.NoError(t, err)

	// the count prefix is always LE, only code units differ
	require.Equal(t, bufLE[:10], bufBE[:10])
	require.Equal(t, []byte{'Z', 0, 0, 0}, bufLE[10:14])
	require.Equal(t, []byte{0, 0, 0, 'Z'}, bufBE[10:14])

	got, err := Decode(bufBE, be)
	require.NoError(t, err)
	require.Equal(t, rec, got)
}

func TestEncode_IntegerKinds(t *testing.T) {
	s := NewSchema(mustField(t, "n", Integer, 1))

	for _, v := range []any{7, int64(7), int32(7), int16(7), int8(7)} {
		buf, err := Encode(Record{Values: []any{v}}, s)
		require.NoError(t, err)
		got, err := Decode(buf, s)
		require.NoError(t, err)
		require.Equal(t, int32(7), got.Values[0])
	}

	_, err := Encode(Record{Values: []any{int64(math.MaxInt32) + 1}}, s)
	require.ErrorIs(t, err, ErrIntOutOfRange)
	require.ErrorIs(t, err, ErrValidation)
}

func TestEncode_ValidationErrors(t *testing.T) {
	s := makeTestSchema(t)

	t.Run("wrong number of values", func(t *testing.T) {
		_, err := Encode(Record{Values: []any{true, 1}}, s)
		require.ErrorIs(t, err, ErrSchemaMismatch)
		require.ErrorIs(t, err, ErrValidation)
	})

	t.Run("wrong type for column", func(t *testing.T) {
		_, err := Encode(Record{Values: []any{"yes", 1, "x"}}, s)
		require.ErrorIs(t, err, ErrTypeMismatch)

		_, err = Encode(Record{Values: []any{true, "1", "x"}}, s)
		require.ErrorIs(t, err, ErrTypeMismatch)

		_, err = Encode(Record{Values: []any{true, 1, 5}}, s)
		require.ErrorIs(t, err, ErrTypeMismatch)

		_, err = Encode(Record{Values: []any{nil, 1, "x"}}, s)
		require.ErrorIs(t, err, ErrTypeMismatch)
	})

	t.Run("text too long is rejected, not truncated", func(t *testing.T) {
		_, err := Encode(Record{Values: []any{true, 1, strings.Repeat("a", 9)}}, s)
		require.ErrorIs(t, err, ErrTextTooLong)
		require.ErrorIs(t, err, ErrValidation)
	})

	t.Run("length counts characters, not bytes", func(t *testing.T) {
		_, err := Encode(Record{Values: []any{true, 1, strings.Repeat("é", 8)}}, s)
		require.NoError(t, err)
	})
}

func TestDecode_Corruption(t *testing.T) {
	s := makeTestSchema(t)
	buf, err := Encode(Record{Values: []any{true, int32(9), "abc"}}, s)
	require.NoError(t, err)

	t.Run("short buffer", func(t *testing.T) {
		_, err := Decode(buf[:len(buf)-1], s)
		require.ErrorIs(t, err, ErrBadBuffer)
		require.ErrorIs(t, err, ErrCorrupted)
	})

	t.Run("long buffer", func(t *testing.T) {
		_, err := Decode(append(append([]byte{}, buf...), 0), s)
		require.ErrorIs(t, err, ErrBadBuffer)
	})

	t.Run("text prefix beyond capacity", func(t *testing.T) {
		bad := append([]byte{}, buf...)
		bad[6] = 9
		_, err := Decode(bad, s)
		require.ErrorIs(t, err, ErrBadTextLength)
		require.ErrorIs(t, err, ErrCorrupted)
	})

	t.Run("tombstone byte", func(t *testing.T) {
		bad := append([]byte{}, buf...)
		bad[0] = 7
		_, err := Decode(bad, s)
		require.ErrorIs(t, err, ErrBadFlag)
	})

	t.Run("boolean byte", func(t *testing.T) {
		bad := append([]byte{}, buf...)
		bad[1] = 2
		_, err := Decode(bad, s)
		require.ErrorIs(t, err, ErrBadFlag)
	})
}

func TestDecode_IgnoresPaddingTail(t *testing.T) {
	s := makeTestSchema(t)
	buf, err := Encode(Record{Values: []any{true, int32(1), "ab"}}, s)
	require.NoError(t, err)

	// garbage after the declared character count must not leak into the value
	buf[18] = 'z'
	got, err := Decode(buf, s)
	require.NoError(t, err)
	require.Equal(t, "ab", got.Values[2])
}

func TestMarkDeleted(t *testing.T) {
	s := makeTestSchema(t)
	buf, err := Encode(Record{Values: []any{true, int32(5), "keep"}}, s)
	require.NoError(t, err)

	dead, err := IsDeleted(buf)
	require.NoError(t, err)
	require.False(t, dead)

	require.NoError(t, MarkDeleted(buf))
	got, err := Decode(buf, s)
	require.NoError(t, err)
	require.True(t, got.Deleted)
	require.Equal(t, []any{true, int32(5), "keep"}, got.Values)

	require.ErrorIs(t, MarkDeleted(nil), ErrBadBuffer)
}

func TestEncode_RejectsInvalidUTF8(t *testing.T) {
	s := makeTestSchema(t)

	_, err := Encode(Record{Values: []any{true, int32(1), "a\xffb"}}, s)
	require.ErrorIs(t, err, ErrInvalidText)
	require.ErrorIs(t, err, ErrValidation)

	// a real U+FFFD is fine and survives the round trip
	rec := Record{Values: []any{true, int32(1), "a�b"}}
	buf, err := Encode(rec, s)
	require.NoError(t, err)
	got, err := Decode(buf, s)
	require.NoError(t, err)
	require.Equal(t, rec, got)
}

func TestDecode_InvalidCodePoint(t *testing.T) {
	for _, enc := range []TextEncoding{UTF32LE, UTF32BE} {
		s := makeTestSchema(t).WithEncoding(enc)
		buf, err := Encode(Record{Values: []any{true, int32(1), "ab"}}, s)
		require.NoError(t, err)

		for _, u := range []uint32{0xD800, 0xDFFF, 0x110000, 0xFFFFFFFF} {
			bad := append([]byte{}, buf...)
			if enc == UTF32BE {
				bad[14], bad[15], bad[16], bad[17] = byte(u>>24), byte(u>>16), byte(u>>8), byte(u)
			} else {
				bad[14], bad[15], bad[16], bad[17] = byte(u), byte(u>>8), byte(u>>16), byte(u>>24)
			}
			_, err := Decode(bad, s)
			require.ErrorIs(t, err, ErrBadCodePoint, "%s 0x%X", enc, u)
			require.ErrorIs(t, err, ErrCorrupted)
		}
	}
}
