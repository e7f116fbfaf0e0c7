// stand for bytes helper
package bx

import "encoding/binary"

// LE is the byte order of every fixed-width integer in a record file.
var LE = binary.LittleEndian

// BE is only used for big-endian UTF-32 text.
var BE = binary.BigEndian

// --- read ---
func U32(b []byte) uint32 { return LE.Uint32(b) }
func I32(b []byte) int32  { return int32(U32(b)) }

// --- write ---
func PutU32(b []byte, v uint32) { LE.PutUint32(b, v) }
func PutI32(b []byte, v int32)  { PutU32(b, uint32(v)) }

// --- At (offset) ---
func U32At(b []byte, off int) uint32       { return U32(b[off:]) }
func I32At(b []byte, off int) int32        { return I32(b[off:]) }
func PutU32At(b []byte, off int, v uint32) { PutU32(b[off:], v) }
func PutI32At(b []byte, off int, v int32)  { PutI32(b[off:], v) }

// --- big-endian ---
func U32BEAt(b []byte, off int) uint32 { return BE.Uint32(b[off:]) }
