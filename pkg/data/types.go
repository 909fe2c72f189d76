// Package data defines the logical, row-oriented side of the table engine:
// logical column types, typed cells, the table spec and the Row view.
package data

import (
	"bytes"
	"encoding/hex"
	"strconv"
	"time"
)

// DataType identifies a logical column type. The set of known types is open:
// a table spec may name any type, but only types with a registered cell
// adapter can be stored.
type DataType string

const (
	TypeString    DataType = "string"
	TypeInt       DataType = "int"
	TypeLong      DataType = "long"
	TypeDouble    DataType = "double"
	TypeBoolean   DataType = "boolean"
	TypeTimestamp DataType = "timestamp"
	TypeBinary    DataType = "binary"
)

// Cell is one logical value of a row.
type Cell interface {
	Type() DataType
	String() string
}

// StringCell holds a string value
type StringCell string

func (c StringCell) Type() DataType { return TypeString }
func (c StringCell) String() string { return string(c) }

// IntCell holds a 32-bit integer value
type IntCell int32

func (c IntCell) Type() DataType { return TypeInt }
func (c IntCell) String() string { return strconv.FormatInt(int64(c), 10) }

// LongCell holds a 64-bit integer value
type LongCell int64

func (c LongCell) Type() DataType { return TypeLong }
func (c LongCell) String() string { return strconv.FormatInt(int64(c), 10) }

// DoubleCell holds a float64 value
type DoubleCell float64

func (c DoubleCell) Type() DataType { return TypeDouble }
func (c DoubleCell) String() string { return strconv.FormatFloat(float64(c), 'g', -1, 64) }

// BooleanCell holds a boolean value
type BooleanCell bool

func (c BooleanCell) Type() DataType { return TypeBoolean }
func (c BooleanCell) String() string { return strconv.FormatBool(bool(c)) }

// TimestampCell holds a point in time. Stored with microsecond precision in UTC.
type TimestampCell struct {
	t time.Time
}

// NewTimestampCell truncates t to microseconds and normalizes it to UTC.
func NewTimestampCell(t time.Time) TimestampCell {
	return TimestampCell{t: t.UTC().Truncate(time.Microsecond)}
}

// TimestampFromMicros builds a cell from microseconds since the Unix epoch.
func TimestampFromMicros(us int64) TimestampCell {
	return TimestampCell{t: time.UnixMicro(us).UTC()}
}

func (c TimestampCell) Type() DataType { return TypeTimestamp }
func (c TimestampCell) String() string { return c.t.Format(time.RFC3339Nano) }

// Time returns the timestamp value.
func (c TimestampCell) Time() time.Time { return c.t }

// Micros returns microseconds since the Unix epoch.
func (c TimestampCell) Micros() int64 { return c.t.UnixMicro() }

// BinaryCell holds an opaque byte slice. The slice must not be modified once
// the cell is handed to a writer or returned by a reader.
type BinaryCell []byte

func (c BinaryCell) Type() DataType { return TypeBinary }
func (c BinaryCell) String() string { return hex.EncodeToString(c) }

type missingCell struct{}

func (missingCell) Type() DataType { return "" }
func (missingCell) String() string { return "?" }

type unmaterializedCell struct{}

func (unmaterializedCell) Type() DataType { return "" }
func (unmaterializedCell) String() string { return "<unmaterialized>" }

var (
	// Missing is the missing-value cell. Every adapter decodes a physical
	// missing value to this exact singleton.
	Missing Cell = missingCell{}

	// Unmaterialized stands in for a column the caller did not request in a
	// projected iteration. It is never equal to Missing.
	Unmaterialized Cell = unmaterializedCell{}
)

// IsMissing reports whether c is the missing-value cell.
func IsMissing(c Cell) bool {
	_, ok := c.(missingCell)
	return ok
}

// IsUnmaterialized reports whether c is the unmaterialized placeholder.
func IsUnmaterialized(c Cell) bool {
	_, ok := c.(unmaterializedCell)
	return ok
}

// Equal reports whether two cells hold the same logical value. Missing equals
// only Missing; Unmaterialized equals only Unmaterialized.
func Equal(a, b Cell) bool {
	switch av := a.(type) {
	case BinaryCell:
		bv, ok := b.(BinaryCell)
		return ok && bytes.Equal(av, bv)
	case TimestampCell:
		bv, ok := b.(TimestampCell)
		return ok && av.t.Equal(bv.t)
	default:
		return a == b
	}
}
