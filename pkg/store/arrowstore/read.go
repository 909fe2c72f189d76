package arrowstore

import (
	"bytes"
	"context"
	"io"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"

	"github.com/ajitpratap0/coltable/pkg/errors"
	"github.com/ajitpratap0/coltable/pkg/store"
)

// readStore serves cursors over sealed record batches.
type readStore struct {
	schema  []store.ColumnType
	aschema *arrow.Schema
	batches []arrow.Record
	size    int64
	source  io.Closer
	persist persistFunc

	// mu guards cursors and released. Batches are released once the store
	// is closed and the last open cursor is closed.
	mu       sync.Mutex
	cursors  int
	released bool
	closed   atomic.Bool
}

// newReadStore takes ownership of batches. source, when non-nil, backs the
// batch memory and is closed after the batches are released.
func newReadStore(schema []store.ColumnType, aschema *arrow.Schema, batches []arrow.Record,
	source io.Closer, persist persistFunc) *readStore {
	var size int64
	for _, rec := range batches {
		size += rec.NumRows()
	}
	return &readStore{
		schema:  schema,
		aschema: aschema,
		batches: batches,
		size:    size,
		source:  source,
		persist: persist,
	}
}

func (rs *readStore) Schema() []store.ColumnType { return rs.schema }

func (rs *readStore) Size() int64 { return rs.size }

func (rs *readStore) NewCursor() (store.ReadCursor, error) {
	if err := rs.acquire(); err != nil {
		return nil, err
	}
	return &readCursor{
		rs:       rs,
		row:      -1,
		pos:      -1,
		accesses: make([]boundAccess, len(rs.schema)),
	}, nil
}

func (rs *readStore) CopyDataTo(ctx context.Context, path string) error {
	if rs.persist == nil {
		return errors.New(errors.ErrorTypeCapability, "store has no on-disk format")
	}
	if err := rs.acquire(); err != nil {
		return err
	}
	err := rs.persist(ctx, path, rs.aschema, rs.batches)
	if rerr := rs.drop(); err == nil {
		err = rerr
	}
	return err
}

// Close marks the store closed. New cursors are refused and open cursors
// stop advancing; the batches are released when the last of them closes.
func (rs *readStore) Close() error {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	if rs.closed.Load() {
		return nil
	}
	rs.closed.Store(true)
	if rs.cursors == 0 {
		return rs.release()
	}
	return nil
}

func (rs *readStore) Closed() bool { return rs.closed.Load() }

func (rs *readStore) acquire() error {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	if rs.closed.Load() {
		return errors.New(errors.ErrorTypeState, "read store is closed")
	}
	rs.cursors++
	return nil
}

func (rs *readStore) drop() error {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.cursors--
	if rs.cursors == 0 && rs.closed.Load() {
		return rs.release()
	}
	return nil
}

// release must be called with mu held.
func (rs *readStore) release() error {
	if rs.released {
		return nil
	}
	rs.released = true
	for _, rec := range rs.batches {
		rec.Release()
	}
	rs.batches = nil
	if rs.source != nil {
		return rs.source.Close()
	}
	return nil
}

// readCursor walks the batches of a readStore. pos is the global row index,
// row the index within batches[batch].
type readCursor struct {
	rs       *readStore
	batch    int
	row      int
	pos      int64
	accesses []boundAccess
	closed   bool
}

func (c *readCursor) CanForward() bool {
	return !c.closed && !c.rs.closed.Load() && c.pos+1 < c.rs.size
}

func (c *readCursor) Forward() bool {
	if !c.CanForward() {
		return false
	}
	c.pos++
	c.row++
	moved := false
	for c.row >= int(c.rs.batches[c.batch].NumRows()) {
		c.batch++
		c.row = 0
		moved = true
	}
	if moved {
		c.rebind()
	}
	return true
}

func (c *readCursor) rebind() {
	rec := c.rs.batches[c.batch]
	for i, a := range c.accesses {
		if a != nil {
			a.bind(rec.Column(i))
		}
	}
}

func (c *readCursor) Access(col int) store.ReadAccess {
	if a := c.accesses[col]; a != nil {
		return a
	}
	a := newReadAccess(c, c.rs.schema[col])
	if c.batch < len(c.rs.batches) {
		a.bind(c.rs.batches[c.batch].Column(col))
	}
	c.accesses[col] = a
	return a
}

func (c *readCursor) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	c.accesses = nil
	return c.rs.drop()
}

// boundAccess is a read access bound to one column array of the current
// batch. The cursor rebinds it whenever it crosses a batch boundary.
type boundAccess interface {
	store.ReadAccess
	bind(arr arrow.Array)
}

func newReadAccess(c *readCursor, t store.ColumnType) boundAccess {
	base := readBase{c: c}
	switch t {
	case store.Int32:
		return &int32Read{readBase: base}
	case store.Int64:
		return &int64Read{readBase: base}
	case store.Float64:
		return &float64Read{readBase: base}
	case store.Boolean:
		return &boolRead{readBase: base}
	case store.Utf8:
		return &stringRead{readBase: base}
	case store.Binary:
		return &binaryRead{readBase: base}
	case store.TimestampMicros:
		return &timestampRead{readBase: base}
	default:
		panic("arrowstore: unsupported column type " + t.String())
	}
}

type readBase struct {
	c   *readCursor
	arr arrow.Array
}

func (r *readBase) IsMissing() bool { return r.arr.IsNull(r.c.row) }

type int32Read struct {
	readBase
	typed *array.Int32
}

func (r *int32Read) bind(arr arrow.Array) { r.arr, r.typed = arr, arr.(*array.Int32) }
func (r *int32Read) Int32() int32 { return r.typed.Value(r.c.row) }

type int64Read struct {
	readBase
	typed *array.Int64
}

func (r *int64Read) bind(arr arrow.Array) { r.arr, r.typed = arr, arr.(*array.Int64) }
func (r *int64Read) Int64() int64 { return r.typed.Value(r.c.row) }

type float64Read struct {
	readBase
	typed *array.Float64
}

func (r *float64Read) bind(arr arrow.Array) { r.arr, r.typed = arr, arr.(*array.Float64) }
func (r *float64Read) Float64() float64 { return r.typed.Value(r.c.row) }

type boolRead struct {
	readBase
	typed *array.Boolean
}

func (r *boolRead) bind(arr arrow.Array) { r.arr, r.typed = arr, arr.(*array.Boolean) }
func (r *boolRead) Bool() bool { return r.typed.Value(r.c.row) }

// String and binary values may alias mapped file memory; they are copied out.

type stringRead struct {
	readBase
	typed *array.String
}

func (r *stringRead) bind(arr arrow.Array) { r.arr, r.typed = arr, arr.(*array.String) }
func (r *stringRead) String() string { return strings.Clone(r.typed.Value(r.c.row)) }

type binaryRead struct {
	readBase
	typed *array.Binary
}

func (r *binaryRead) bind(arr arrow.Array) { r.arr, r.typed = arr, arr.(*array.Binary) }
func (r *binaryRead) Bytes() []byte { return bytes.Clone(r.typed.Value(r.c.row)) }

type timestampRead struct {
	readBase
	typed *array.Timestamp
}

func (r *timestampRead) bind(arr arrow.Array) { r.arr, r.typed = arr, arr.(*array.Timestamp) }
func (r *timestampRead) Micros() int64 { return int64(r.typed.Value(r.c.row)) }
