// Package adapter binds logical cell types to physical store columns.
//
// Every supported logical DataType has exactly one CellAdapter, a codec that
// turns cells into typed store writes and typed store reads back into cells.
// Missing values are always encoded through the store's missing state and
// decode to the data.Missing singleton.
//
// Adapters are resolved once per table spec by a SpecAdapter, which also
// fixes the logical to physical column mapping: with row keys the key lives
// in physical column 0 and logical column i in physical column i+1.
package adapter

import (
	"github.com/ajitpratap0/coltable/pkg/data"
	"github.com/ajitpratap0/coltable/pkg/errors"
	"github.com/ajitpratap0/coltable/pkg/store"
)

// CellConsumer writes logical cells into one column of a write cursor.
type CellConsumer interface {
	Consume(c data.Cell) error
}

// CellProducer reads the logical cell of one column at a read cursor's
// current row.
type CellProducer interface {
	Produce() data.Cell
}

// CellAdapter is the codec for one logical type.
type CellAdapter interface {
	DataType() data.DataType
	ColumnType() store.ColumnType
	// NewConsumer binds the adapter to a write access. The consumer is
	// stateful and belongs to the cursor that owns the access.
	NewConsumer(w store.WriteAccess) (CellConsumer, error)
	// NewProducer binds the adapter to a read access.
	NewProducer(r store.ReadAccess) (CellProducer, error)
}

// typed is a CellAdapter over the read access R and write access W of one
// physical column type. encode reports false when the cell has the wrong
// type.
type typed[R store.ReadAccess, W store.WriteAccess] struct {
	dataType   data.DataType
	columnType store.ColumnType
	encode     func(w W, c data.Cell) bool
	decode     func(r R) data.Cell
}

func (a *typed[R, W]) DataType() data.DataType { return a.dataType }

func (a *typed[R, W]) ColumnType() store.ColumnType { return a.columnType }

func (a *typed[R, W]) NewConsumer(w store.WriteAccess) (CellConsumer, error) {
	tw, ok := w.(W)
	if !ok {
		return nil, errors.Newf(errors.ErrorTypeInternal, "write access %T does not serve column type %s",
			w, a.columnType)
	}
	return &consumer[R, W]{adapter: a, w: tw}, nil
}

func (a *typed[R, W]) NewProducer(r store.ReadAccess) (CellProducer, error) {
	tr, ok := r.(R)
	if !ok {
		return nil, errors.Newf(errors.ErrorTypeInternal, "read access %T does not serve column type %s",
			r, a.columnType)
	}
	return &producer[R, W]{adapter: a, r: tr}, nil
}

type consumer[R store.ReadAccess, W store.WriteAccess] struct {
	adapter *typed[R, W]
	w       W
}

func (c *consumer[R, W]) Consume(cell data.Cell) error {
	if cell == nil || data.IsMissing(cell) {
		c.w.SetMissing()
		return nil
	}
	if !c.adapter.encode(c.w, cell) {
		return errors.Newf(errors.ErrorTypeData, "cannot store %s cell in %s column",
			describe(cell), c.adapter.dataType).
			WithDetail("cell_type", cell.Type()).
			WithDetail("column_type", c.adapter.dataType)
	}
	return nil
}

func describe(cell data.Cell) string {
	if data.IsUnmaterialized(cell) {
		return "unmaterialized"
	}
	return string(cell.Type())
}

type producer[R store.ReadAccess, W store.WriteAccess] struct {
	adapter *typed[R, W]
	r       R
}

func (p *producer[R, W]) Produce() data.Cell {
	if p.r.IsMissing() {
		return data.Missing
	}
	return p.adapter.decode(p.r)
}

// Built-in codecs for the logical types of package data.

var stringAdapter = &typed[store.StringReadAccess, store.StringWriteAccess]{
	dataType:   data.TypeString,
	columnType: store.Utf8,
	encode: func(w store.StringWriteAccess, c data.Cell) bool {
		v, ok := c.(data.StringCell)
		if ok {
			w.SetString(string(v))
		}
		return ok
	},
	decode: func(r store.StringReadAccess) data.Cell { return data.StringCell(r.String()) },
}

var intAdapter = &typed[store.Int32ReadAccess, store.Int32WriteAccess]{
	dataType:   data.TypeInt,
	columnType: store.Int32,
	encode: func(w store.Int32WriteAccess, c data.Cell) bool {
		v, ok := c.(data.IntCell)
		if ok {
			w.SetInt32(int32(v))
		}
		return ok
	},
	decode: func(r store.Int32ReadAccess) data.Cell { return data.IntCell(r.Int32()) },
}

// longAdapter also accepts int cells.
var longAdapter = &typed[store.Int64ReadAccess, store.Int64WriteAccess]{
	dataType:   data.TypeLong,
	columnType: store.Int64,
	encode: func(w store.Int64WriteAccess, c data.Cell) bool {
		switch v := c.(type) {
		case data.LongCell:
			w.SetInt64(int64(v))
		case data.IntCell:
			w.SetInt64(int64(v))
		default:
			return false
		}
		return true
	},
	decode: func(r store.Int64ReadAccess) data.Cell { return data.LongCell(r.Int64()) },
}

var doubleAdapter = &typed[store.Float64ReadAccess, store.Float64WriteAccess]{
	dataType:   data.TypeDouble,
	columnType: store.Float64,
	encode: func(w store.Float64WriteAccess, c data.Cell) bool {
		v, ok := c.(data.DoubleCell)
		if ok {
			w.SetFloat64(float64(v))
		}
		return ok
	},
	decode: func(r store.Float64ReadAccess) data.Cell { return data.DoubleCell(r.Float64()) },
}

var booleanAdapter = &typed[store.BooleanReadAccess, store.BooleanWriteAccess]{
	dataType:   data.TypeBoolean,
	columnType: store.Boolean,
	encode: func(w store.BooleanWriteAccess, c data.Cell) bool {
		v, ok := c.(data.BooleanCell)
		if ok {
			w.SetBool(bool(v))
		}
		return ok
	},
	decode: func(r store.BooleanReadAccess) data.Cell { return data.BooleanCell(r.Bool()) },
}

var timestampAdapter = &typed[store.TimestampReadAccess, store.TimestampWriteAccess]{
	dataType:   data.TypeTimestamp,
	columnType: store.TimestampMicros,
	encode: func(w store.TimestampWriteAccess, c data.Cell) bool {
		v, ok := c.(data.TimestampCell)
		if ok {
			w.SetMicros(v.Micros())
		}
		return ok
	},
	decode: func(r store.TimestampReadAccess) data.Cell { return data.TimestampFromMicros(r.Micros()) },
}

var binaryAdapter = &typed[store.BinaryReadAccess, store.BinaryWriteAccess]{
	dataType:   data.TypeBinary,
	columnType: store.Binary,
	encode: func(w store.BinaryWriteAccess, c data.Cell) bool {
		v, ok := c.(data.BinaryCell)
		if ok {
			w.SetBytes(v)
		}
		return ok
	},
	decode: func(r store.BinaryReadAccess) data.Cell { return data.BinaryCell(r.Bytes()) },
}
