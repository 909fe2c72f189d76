// Package store defines the contract between the table engine and a
// column-oriented physical backing store.
//
// A store is addressed purely by physical column index. The engine never
// sees logical cells here: write cursors expose typed write accesses per
// column, read cursors expose typed read accesses per column, and both carry
// an explicit missing state that is independent of the value.
//
// Lifecycle:
//
//	ws, _ := factory.NewWriteStore(schema)   // exclusively owned while writing
//	cur := ws.Cursor()
//	cur.Forward(); cur.Access(0).(store.Int32WriteAccess).SetInt32(7)
//	rs, _ := ws.Finish(ctx, progress)         // sealed, read-only from here on
//	rc, _ := rs.NewCursor()                   // one cursor per iteration
//	for rc.Forward() { ... rc.Access(0) ... }
//	rc.Close(); rs.Close()
package store

import (
	"context"
	"fmt"
)

// ColumnType is the physical storage type of one column.
type ColumnType int

const (
	Int32 ColumnType = iota
	Int64
	Float64
	Boolean
	Utf8
	Binary
	TimestampMicros
)

var columnTypeNames = map[ColumnType]string{
	Int32:           "int32",
	Int64:           "int64",
	Float64:         "float64",
	Boolean:         "boolean",
	Utf8:            "utf8",
	Binary:          "binary",
	TimestampMicros: "timestamp_us",
}

func (t ColumnType) String() string {
	if name, ok := columnTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("ColumnType(%d)", int(t))
}

// ParseColumnType is the inverse of ColumnType.String.
func ParseColumnType(s string) (ColumnType, bool) {
	for t, name := range columnTypeNames {
		if name == s {
			return t, true
		}
	}
	return 0, false
}

// ReadAccess reads one column at the owning cursor's current row.
type ReadAccess interface {
	IsMissing() bool
}

type Int32ReadAccess interface {
	ReadAccess
	Int32() int32
}

type Int64ReadAccess interface {
	ReadAccess
	Int64() int64
}

type Float64ReadAccess interface {
	ReadAccess
	Float64() float64
}

type BooleanReadAccess interface {
	ReadAccess
	Bool() bool
}

type StringReadAccess interface {
	ReadAccess
	String() string
}

type BinaryReadAccess interface {
	ReadAccess
	Bytes() []byte
}

type TimestampReadAccess interface {
	ReadAccess
	Micros() int64
}

// WriteAccess writes one column at the owning cursor's current row. Each
// column is written at most once per row; unwritten columns are missing.
type WriteAccess interface {
	SetMissing()
}

type Int32WriteAccess interface {
	WriteAccess
	SetInt32(v int32)
}

type Int64WriteAccess interface {
	WriteAccess
	SetInt64(v int64)
}

type Float64WriteAccess interface {
	WriteAccess
	SetFloat64(v float64)
}

type BooleanWriteAccess interface {
	WriteAccess
	SetBool(v bool)
}

type StringWriteAccess interface {
	WriteAccess
	SetString(v string)
}

type BinaryWriteAccess interface {
	WriteAccess
	SetBytes(v []byte)
}

type TimestampWriteAccess interface {
	WriteAccess
	SetMicros(us int64)
}

// ReadCursor walks a read store forward one row at a time. A cursor is not
// safe for concurrent use; accesses returned by Access are bound to this
// cursor and follow it as it advances.
type ReadCursor interface {
	// CanForward reports whether another row follows the current position.
	CanForward() bool
	// Forward advances to the next row and reports whether it exists.
	// Both report false once the store has been closed.
	Forward() bool
	// Access returns the read access for physical column col.
	Access(col int) ReadAccess
	Close() error
}

// WriteCursor appends rows to a write store.
type WriteCursor interface {
	// Forward starts a new row.
	Forward()
	// Access returns the write access for physical column col.
	Access(col int) WriteAccess
	Close() error
}

// ReadStore is a sealed, immutable columnar store. Any number of cursors may
// be open at once, each confined to its own goroutine.
type ReadStore interface {
	Schema() []ColumnType
	Size() int64
	NewCursor() (ReadCursor, error)
	// CopyDataTo persists the store's data to path in the owning factory's
	// on-disk format.
	CopyDataTo(ctx context.Context, path string) error
	// Close refuses new cursors and stops open ones from advancing. Memory
	// still read by open cursors stays valid until they are closed.
	Close() error
	// Closed reports whether Close has been called.
	Closed() bool
}

// WriteStore is an append-only store owned by a single writer.
type WriteStore interface {
	Schema() []ColumnType
	// Size returns the number of rows started so far.
	Size() int64
	Cursor() WriteCursor
	// Finish flushes the write cursor and seals the data into a ReadStore.
	// The write store must not be used afterwards. On error, including
	// cancellation, all written data has been released.
	Finish(ctx context.Context, progress Progress) (ReadStore, error)
	// Close discards all written data.
	Close() error
}

// Factory creates and reopens stores of one on-disk format. The identifier
// is persisted alongside a table so the same factory reopens it.
type Factory interface {
	ID() string
	NewWriteStore(schema []ColumnType) (WriteStore, error)
	Open(ctx context.Context, path string, schema []ColumnType) (ReadStore, error)
}

// Progress receives the completed fraction of a long-running operation.
type Progress func(fraction float64)

// Track wraps p so reported values are clamped to [0,1] and never decrease.
// A nil p yields a no-op.
func Track(p Progress) Progress {
	if p == nil {
		return func(float64) {}
	}
	last := 0.0
	return func(f float64) {
		if f < 0 {
			f = 0
		}
		if f > 1 {
			f = 1
		}
		if f < last {
			return
		}
		last = f
		p(f)
	}
}
