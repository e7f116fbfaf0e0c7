package main

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/tuannm99/slotdb/internal/engine"
	"github.com/tuannm99/slotdb/internal/heap"
	"github.com/tuannm99/slotdb/internal/record"
)

var (
	errUsage        = errors.New("usage")
	errUnknownCmd   = errors.New("unknown command")
	errUnterminated = errors.New("unterminated quote")
)

const helpText = `commands:
  create <table> <field:type[:len]>...   create a table (types: boolean, integer, text)
  open <table>                           open an existing table
  tables                                 list tables
  describe <table>                       show a table's fields
  insert <table> <value>...              add a row, reusing deleted slots first
  select <table>                         print all live rows
  get <table> <slot>                     print one row
  update <table> <slot> <value>...       replace a row in place
  delete <table> <slot>                  delete a row
  close <table>                          close a table
  drop <table>                           remove a closed table

meta commands:
  \q | quit | exit       quit
  \history               print history
  \help                  show help

text values with spaces go in double quotes: "Lady Ada"`

// Console runs one command line at a time against a database.
type Console struct {
	db  *engine.Database
	out io.Writer
}

func NewConsole(db *engine.Database, out io.Writer) *Console {
	return &Console{db: db, out: out}
}

func (c *Console) Exec(line string) error {
	args, err := splitArgs(line)
	if err != nil {
		return err
	}
	if len(args) == 0 {
		return nil
	}

	cmd, args := strings.ToLower(args[0]), args[1:]
	switch cmd {
	case "create":
		return c.create(args)
	case "open":
		return c.withTable(args, 1, "open <table>", func(*heap.Table, []string) error {
			fmt.Fprintln(c.out, "OK")
			return nil
		})
	case "tables":
		return c.tables()
	case "describe":
		return c.describe(args)
	case "insert":
		return c.withTable(args, 2, "insert <table> <value>...", c.insert)
	case "select":
		return c.withTable(args, 1, "select <table>", c.selectAll)
	case "get":
		return c.withTable(args, 2, "get <table> <slot>", c.get)
	case "update":
		return c.withTable(args, 3, "update <table> <slot> <value>...", c.update)
	case "delete":
		return c.withTable(args, 2, "delete <table> <slot>", c.delete)
	case "close":
		if len(args) != 1 {
			return fmt.Errorf("%w: close <table>", errUsage)
		}
		return c.ok(c.db.CloseTable(args[0]))
	case "drop":
		if len(args) != 1 {
			return fmt.Errorf("%w: drop <table>", errUsage)
		}
		return c.ok(c.db.DropTable(args[0]))
	default:
		return fmt.Errorf("%w: %s", errUnknownCmd, cmd)
	}
}

func (c *Console) ok(err error) error {
	if err != nil {
		return err
	}
	fmt.Fprintln(c.out, "OK")
	return nil
}

// withTable opens args[0] and hands the table plus the remaining args to fn.
func (c *Console) withTable(args []string, minArgs int, usage string, fn func(*heap.Table, []string) error) error {
	if len(args) < minArgs {
		return fmt.Errorf("%w: %s", errUsage, usage)
	}
	tbl, err := c.db.OpenTable(args[0])
	if err != nil {
		return err
	}
	return fn(tbl, args[1:])
}

func (c *Console) create(args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("%w: create <table> <field:type[:len]>...", errUsage)
	}
	fields := make([]record.FieldInfo, 0, len(args)-1)
	for _, spec := range args[1:] {
		f, err := parseFieldSpec(spec)
		if err != nil {
			return err
		}
		fields = append(fields, f)
	}
	schema := record.NewSchema(fields...)
	if _, err := c.db.CreateTable(args[0], schema); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "OK (record length %d)\n", schema.RecordByteLength())
	return nil
}

func (c *Console) tables() error {
	names, err := c.db.ListTables()
	if err != nil {
		return err
	}
	for _, n := range names {
		fmt.Fprintln(c.out, n)
	}
	fmt.Fprintf(c.out, "(%d tables)\n", len(names))
	return nil
}

func (c *Console) describe(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: describe <table>", errUsage)
	}
	meta, err := c.db.Describe(args[0])
	if err != nil {
		return err
	}
	rows := make([][]string, 0, meta.Schema.NumFields())
	for _, f := range meta.Schema.Fields() {
		rows = append(rows, []string{f.Name(), f.Type().String(), strconv.Itoa(f.Length()), strconv.Itoa(f.ByteLength())})
	}
	printTable(c.out, []string{"field", "type", "length", "bytes"}, rows)
	fmt.Fprintf(c.out, "(record length %d, text %s)\n", meta.Schema.RecordByteLength(), meta.Schema.Encoding())
	return nil
}

func (c *Console) insert(tbl *heap.Table, args []string) error {
	values, err := parseValues(tbl.Schema, args)
	if err != nil {
		return err
	}
	id, _, err := tbl.CreateRow(values)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "OK (slot %d)\n", id)
	return nil
}

func (c *Console) selectAll(tbl *heap.Table, args []string) error {
	if len(args) != 0 {
		return fmt.Errorf("%w: select <table>", errUsage)
	}
	var rows [][]string
	for row, err := range tbl.RetrieveRows() {
		if err != nil {
			return err
		}
		rows = append(rows, formatRow(row.ID, row.Record))
	}
	printTable(c.out, columns(tbl.Schema), rows)
	fmt.Fprintf(c.out, "(%d rows)\n", len(rows))
	return nil
}

func (c *Console) get(tbl *heap.Table, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: get <table> <slot>", errUsage)
	}
	id, err := parseSlot(args[0])
	if err != nil {
		return err
	}
	rec, err := tbl.GetRow(id)
	if err != nil {
		return err
	}
	printTable(c.out, columns(tbl.Schema), [][]string{formatRow(id, rec)})
	return nil
}

func (c *Console) update(tbl *heap.Table, args []string) error {
	id, err := parseSlot(args[0])
	if err != nil {
		return err
	}
	values, err := parseValues(tbl.Schema, args[1:])
	if err != nil {
		return err
	}
	if _, err := tbl.UpdateRow(id, values); err != nil {
		return err
	}
	fmt.Fprintln(c.out, "OK")
	return nil
}

func (c *Console) delete(tbl *heap.Table, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: delete <table> <slot>", errUsage)
	}
	id, err := parseSlot(args[0])
	if err != nil {
		return err
	}
	return c.ok(tbl.DeleteRow(id))
}

// ---- parsing ----

// parseFieldSpec reads name:type[:len]. Text needs a length.
func parseFieldSpec(spec string) (record.FieldInfo, error) {
	parts := strings.Split(spec, ":")
	if len(parts) < 2 || len(parts) > 3 || parts[0] == "" {
		return record.FieldInfo{}, fmt.Errorf("%w: field %q, want name:type[:len]", errUsage, spec)
	}
	typ, err := record.ParseDataType(parts[1])
	if err != nil {
		return record.FieldInfo{}, err
	}
	length := 1
	if len(parts) == 3 {
		length, err = strconv.Atoi(parts[2])
		if err != nil {
			return record.FieldInfo{}, fmt.Errorf("%w: field %q: bad length", errUsage, spec)
		}
	} else if typ == record.Text {
		return record.FieldInfo{}, fmt.Errorf("%w: text field %q needs a length", errUsage, spec)
	}
	return record.NewFieldInfo(parts[0], typ, length)
}

func parseValues(s record.Schema, args []string) ([]any, error) {
	if len(args) != s.NumFields() {
		return nil, fmt.Errorf("%w: want %d values %s, got %d", errUsage, s.NumFields(), s, len(args))
	}
	values := make([]any, len(args))
	for i, raw := range args {
		f := s.Field(i)
		switch f.Type() {
		case record.Boolean:
			b, err := strconv.ParseBool(raw)
			if err != nil {
				return nil, fmt.Errorf("field %s: %w", f.Name(), err)
			}
			values[i] = b
		case record.Integer:
			n, err := strconv.ParseInt(raw, 10, 32)
			if err != nil {
				return nil, fmt.Errorf("field %s: %w", f.Name(), err)
			}
			values[i] = int32(n)
		default:
			values[i] = raw
		}
	}
	return values, nil
}

func parseSlot(s string) (heap.SlotID, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%w: slot must be a number, got %q", errUsage, s)
	}
	return heap.SlotID(n), nil
}

// splitArgs splits on whitespace; double quotes group words and \" or \\
// escape inside them.
func splitArgs(line string) ([]string, error) {
	var (
		args    []string
		cur     strings.Builder
		inQuote bool
		escaped bool
		started bool
	)
	for _, r := range line {
		switch {
		case escaped:
			cur.WriteRune(r)
			escaped = false
		case inQuote && r == '\\':
			escaped = true
		case r == '"':
			inQuote = !inQuote
			started = true
		case !inQuote && (r == ' ' || r == '\t'):
			if started {
				args = append(args, cur.String())
				cur.Reset()
				started = false
			}
		default:
			cur.WriteRune(r)
			started = true
		}
	}
	if inQuote || escaped {
		return nil, errUnterminated
	}
	if started {
		args = append(args, cur.String())
	}
	return args, nil
}

// ---- output ----

func columns(s record.Schema) []string {
	cols := []string{"slot"}
	for _, f := range s.Fields() {
		cols = append(cols, f.Name())
	}
	return cols
}

func formatRow(id heap.SlotID, rec record.Record) []string {
	out := []string{strconv.Itoa(int(id))}
	for _, v := range rec.Values {
		out = append(out, fmt.Sprintf("%v", v))
	}
	return out
}

func printTable(w io.Writer, cols []string, rows [][]string) {
	// 1) compute widths
	widths := make([]int, len(cols))
	for i, c := range cols {
		widths[i] = len(c)
	}
	for _, row := range rows {
		for i := range cols {
			if len(row[i]) > widths[i] {
				widths[i] = len(row[i])
			}
		}
	}

	printRow := func(values []string) {
		for i := range cols {
			if i > 0 {
				fmt.Fprint(w, " | ")
			}
			fmt.Fprint(w, padRight(values[i], widths[i]))
		}
		fmt.Fprintln(w)
	}

	// 2) header
	printRow(cols)

	// 3) separator ----+----
	for i := range cols {
		if i > 0 {
			fmt.Fprint(w, "-+-")
		}
		fmt.Fprint(w, strings.Repeat("-", widths[i]))
	}
	fmt.Fprintln(w)

	// 4) rows
	for _, row := range rows {
		printRow(row)
	}
}

func padRight(s string, w int) string {
	if len(s) >= w {
		return s
	}
	return s + strings.Repeat(" ", w-len(s))
}
