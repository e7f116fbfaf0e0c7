package main

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tuannm99/slotdb/internal/engine"
	"github.com/tuannm99/slotdb/internal/heap"
	"github.com/tuannm99/slotdb/internal/record"
)

func newTestConsole(t *testing.T) (*Console, *bytes.Buffer) {
	t.Helper()
	db := engine.NewDatabase(afero.NewMemMapFs())
	t.Cleanup(func() { _ = db.Close() })
	var out bytes.Buffer
	return NewConsole(db, &out), &out
}

func TestSplitArgs(t *testing.T) {
	cases := []struct {
		in   string
		want []string
	}{
		{"", nil},
		{"   ", nil},
		{"insert users 1 bob true", []string{"insert", "users", "1", "bob", "true"}},
		{`insert users 1 "Lady Ada" true`, []string{"insert", "users", "1", "Lady Ada", "true"}},
		{`a "" b`, []string{"a", "", "b"}},
		{`say "he said \"hi\""`, []string{"say", `he said "hi"`}},
		{"tab\tseparated", []string{"tab", "separated"}},
	}
	for _, tc := range cases {
		got, err := splitArgs(tc.in)
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}

	_, err := splitArgs(`insert "open`)
	require.ErrorIs(t, err, errUnterminated)
}

func TestParseFieldSpec(t *testing.T) {
	f, err := parseFieldSpec("name:text:12")
	require.NoError(t, err)
	assert.Equal(t, "name", f.Name())
	assert.Equal(t, record.Text, f.Type())
	assert.Equal(t, 12, f.Length())

	f, err = parseFieldSpec("age:int")
	require.NoError(t, err)
	assert.Equal(t, record.Integer, f.Type())
	assert.Equal(t, 4, f.ByteLength())

	_, err = parseFieldSpec("name:text")
	require.ErrorIs(t, err, errUsage)
	_, err = parseFieldSpec("name")
	require.ErrorIs(t, err, errUsage)
	_, err = parseFieldSpec("x:float")
	require.ErrorIs(t, err, record.ErrInvalidField)
	_, err = parseFieldSpec("x:text:-1")
	require.ErrorIs(t, err, record.ErrInvalidField)
}

func TestConsole_CRUD(t *testing.T) {
	c, out := newTestConsole(t)

	require.NoError(t, c.Exec("create users id:integer name:text:8 active:boolean"))
	assert.Contains(t, out.String(), "record length 42")

	out.Reset()
	require.NoError(t, c.Exec(`insert users 1 "Ada L" true`))
	require.NoError(t, c.Exec("insert users 2 bob false"))
	require.NoError(t, c.Exec("insert users 3 carol true"))
	assert.Contains(t, out.String(), "OK (slot 2)")

	out.Reset()
	require.NoError(t, c.Exec("select users"))
	assert.Contains(t, out.String(), "slot | id | name  | active")
	assert.Contains(t, out.String(), "0    | 1  | Ada L | true")
	assert.Contains(t, out.String(), "(3 rows)")

	require.NoError(t, c.Exec("delete users 1"))
	out.Reset()
	require.NoError(t, c.Exec("insert users 4 dave true"))
	assert.Contains(t, out.String(), "OK (slot 1)")

	require.NoError(t, c.Exec(`update users 0 10 "Ada King" false`))
	out.Reset()
	require.NoError(t, c.Exec("get users 0"))
	assert.Contains(t, out.String(), "Ada King")
	assert.Contains(t, out.String(), "false")

	err := c.Exec("get users 9")
	require.ErrorIs(t, err, heap.ErrRowNotFound)
}

func TestConsole_Errors(t *testing.T) {
	c, out := newTestConsole(t)

	require.ErrorIs(t, c.Exec("frobnicate"), errUnknownCmd)
	require.ErrorIs(t, c.Exec("create users"), errUsage)
	require.ErrorIs(t, c.Exec("select missing"), engine.ErrTableNotFound)

	require.NoError(t, c.Exec("create t n:integer s:text:2"))
	require.ErrorIs(t, c.Exec("insert t 1"), errUsage)
	require.Error(t, c.Exec("insert t abc xy"))
	require.ErrorIs(t, c.Exec("insert t 1 toolong"), record.ErrTextTooLong)
	require.ErrorIs(t, c.Exec("get t nope"), errUsage)
	require.ErrorIs(t, c.Exec("get t 0 extra"), errUsage)
	require.ErrorIs(t, c.Exec("delete t 0 extra"), errUsage)
	require.ErrorIs(t, c.Exec("get t 2305843009213693951"), heap.ErrRowNotFound)
	require.ErrorIs(t, c.Exec("create t n:integer"), engine.ErrTableExists)

	out.Reset()
	require.NoError(t, c.Exec("select t"))
	assert.Contains(t, out.String(), "(0 rows)")
}

func TestConsole_TablesDescribeDrop(t *testing.T) {
	c, out := newTestConsole(t)

	require.NoError(t, c.Exec("create b flag:bool"))
	require.NoError(t, c.Exec("create a n:integer"))

	out.Reset()
	require.NoError(t, c.Exec("tables"))
	assert.Equal(t, "a\nb\n(2 tables)\n", out.String())

	out.Reset()
	require.NoError(t, c.Exec("describe a"))
	assert.Contains(t, out.String(), "n     | integer | 1      | 4")
	assert.Contains(t, out.String(), "record length 5")

	require.ErrorIs(t, c.Exec("drop a"), engine.ErrTableOpen)
	require.NoError(t, c.Exec("close a"))
	require.NoError(t, c.Exec("drop a"))

	out.Reset()
	require.NoError(t, c.Exec("tables"))
	assert.Equal(t, "b\n(1 tables)\n", out.String())
}

func TestHistory_AppendAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hist", ".slotdb_history")

	h := NewHistory(path)
	require.NoError(t, h.Load(10))
	require.NoError(t, h.Append("insert   users  1 \"a  b\"  true"))
	require.NoError(t, h.Append("   "))
	require.NoError(t, h.Append("select users"))

	h2 := NewHistory(path)
	require.NoError(t, h2.Load(1))
	assert.Equal(t, []string{"select users"}, h2.lines)

	h3 := NewHistory(path)
	require.NoError(t, h3.Load(0))
	assert.Equal(t, []string{`insert users 1 "a  b" true`, "select users"}, h3.lines)
}
