// Package slotdb is the top-level facade for the slotdb storage engine.
package slotdb

import (
	"github.com/tuannm99/slotdb/internal/engine"
	"github.com/tuannm99/slotdb/internal/heap"
	"github.com/tuannm99/slotdb/internal/record"
)

type (
	Database  = engine.Database
	Table     = heap.Table
	Row       = heap.Row
	SlotID    = heap.SlotID
	Schema    = record.Schema
	FieldInfo = record.FieldInfo
	DataType  = record.DataType
	Record    = record.Record
)

const (
	Boolean = record.Boolean
	Integer = record.Integer
	Text    = record.Text
)

var (
	NewDatabase     = engine.NewDatabase
	NewDiskDatabase = engine.NewDiskDatabase
	NewFieldInfo    = record.NewFieldInfo
	NewSchema       = record.NewSchema
)
