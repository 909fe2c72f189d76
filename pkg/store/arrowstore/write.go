package arrowstore

import (
	"context"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"go.uber.org/zap"

	"github.com/ajitpratap0/coltable/pkg/errors"
	"github.com/ajitpratap0/coltable/pkg/store"
)

// persistFunc writes sealed batches to path in a factory's on-disk format.
type persistFunc func(ctx context.Context, path string, schema *arrow.Schema, batches []arrow.Record) error

// writeStore accumulates rows into record batches.
type writeStore struct {
	opts    Options
	schema  []store.ColumnType
	aschema *arrow.Schema
	builder *array.RecordBuilder
	batches []arrow.Record
	cursor  *writeCursor
	persist persistFunc

	rows    int64
	inBatch int
	done    bool
}

func newWriteStore(schema []store.ColumnType, opts Options, persist persistFunc) (*writeStore, error) {
	aschema, err := arrowSchema(schema)
	if err != nil {
		return nil, err
	}

	ws := &writeStore{
		opts:    opts,
		schema:  append([]store.ColumnType(nil), schema...),
		aschema: aschema,
		builder: array.NewRecordBuilder(opts.Allocator, aschema),
		persist: persist,
	}
	ws.cursor = newWriteCursor(ws)
	return ws, nil
}

func (ws *writeStore) Schema() []store.ColumnType { return ws.schema }

func (ws *writeStore) Size() int64 { return ws.rows }

func (ws *writeStore) Cursor() store.WriteCursor { return ws.cursor }

// flushBatch cuts the builder contents into a record batch.
func (ws *writeStore) flushBatch() {
	if ws.inBatch == 0 {
		return
	}
	ws.batches = append(ws.batches, ws.builder.NewRecord())
	ws.inBatch = 0
}

func (ws *writeStore) Finish(ctx context.Context, progress store.Progress) (store.ReadStore, error) {
	if ws.done {
		return nil, errors.New(errors.ErrorTypeState, "write store already finished or closed")
	}
	if err := ctx.Err(); err != nil {
		ws.discard()
		return nil, cancelled(err, "store finish")
	}
	start := time.Now()
	report := store.Track(progress)

	ws.cursor.endRow()
	ws.flushBatch()
	ws.cursor.closed = true

	var total int64
	for i, rec := range ws.batches {
		if err := ctx.Err(); err != nil {
			ws.discard()
			return nil, cancelled(err, "store finish")
		}
		total += rec.NumRows()
		report(float64(i+1) / float64(len(ws.batches)))
	}
	if total != ws.rows {
		ws.discard()
		return nil, errors.Newf(errors.ErrorTypeInternal, "sealed %d rows, expected %d", total, ws.rows)
	}
	report(1)

	ws.builder.Release()
	ws.builder = nil
	ws.done = true

	rs := newReadStore(ws.schema, ws.aschema, ws.batches, nil, ws.persist)
	ws.batches = nil

	ws.opts.Logger.Debug("write store sealed",
		zap.Int64("rows", total),
		zap.Int("batches", len(rs.batches)),
		zap.Duration("duration", time.Since(start)))
	return rs, nil
}

// discard releases all written data.
func (ws *writeStore) discard() {
	for _, rec := range ws.batches {
		rec.Release()
	}
	ws.batches = nil
	if ws.builder != nil {
		ws.builder.Release()
		ws.builder = nil
	}
	ws.done = true
	ws.cursor.closed = true
}

func (ws *writeStore) Close() error {
	if ws.done {
		return nil
	}
	ws.discard()
	return nil
}

// writeCursor appends one row per Forward. Unwritten columns of a row are
// padded with nulls when the row ends.
type writeCursor struct {
	ws       *writeStore
	accesses []store.WriteAccess
	written  []bool
	inRow    bool
	closed   bool
}

func newWriteCursor(ws *writeStore) *writeCursor {
	c := &writeCursor{
		ws:       ws,
		accesses: make([]store.WriteAccess, len(ws.schema)),
		written:  make([]bool, len(ws.schema)),
	}
	for i, t := range ws.schema {
		c.accesses[i] = newWriteAccess(c, i, t, ws.builder.Field(i))
	}
	return c
}

func (c *writeCursor) Forward() {
	if c.closed {
		panic("arrowstore: Forward on closed write cursor")
	}
	c.endRow()
	if c.ws.inBatch >= c.ws.opts.BatchSize {
		c.ws.flushBatch()
	}
	c.inRow = true
	c.ws.rows++
	c.ws.inBatch++
}

func (c *writeCursor) endRow() {
	if !c.inRow {
		return
	}
	for i, w := range c.written {
		if !w {
			c.ws.builder.Field(i).AppendNull()
		}
		c.written[i] = false
	}
	c.inRow = false
}

// mark records a write to col in the current row. It returns false for a
// second write, which is ignored.
func (c *writeCursor) mark(col int) bool {
	if !c.inRow || c.written[col] {
		return false
	}
	c.written[col] = true
	return true
}

func (c *writeCursor) Access(col int) store.WriteAccess { return c.accesses[col] }

func (c *writeCursor) Close() error {
	c.endRow()
	return nil
}

func newWriteAccess(c *writeCursor, col int, t store.ColumnType, b array.Builder) store.WriteAccess {
	base := writeBase{c: c, col: col, b: b}
	switch t {
	case store.Int32:
		return &int32Write{writeBase: base, typed: b.(*array.Int32Builder)}
	case store.Int64:
		return &int64Write{writeBase: base, typed: b.(*array.Int64Builder)}
	case store.Float64:
		return &float64Write{writeBase: base, typed: b.(*array.Float64Builder)}
	case store.Boolean:
		return &boolWrite{writeBase: base, typed: b.(*array.BooleanBuilder)}
	case store.Utf8:
		return &stringWrite{writeBase: base, typed: b.(*array.StringBuilder)}
	case store.Binary:
		return &binaryWrite{writeBase: base, typed: b.(*array.BinaryBuilder)}
	case store.TimestampMicros:
		return &timestampWrite{writeBase: base, typed: b.(*array.TimestampBuilder)}
	default:
		panic("arrowstore: unsupported column type " + t.String())
	}
}

type writeBase struct {
	c   *writeCursor
	col int
	b   array.Builder
}

func (w *writeBase) SetMissing() {
	if w.c.mark(w.col) {
		w.b.AppendNull()
	}
}

type int32Write struct {
	writeBase
	typed *array.Int32Builder
}

func (w *int32Write) SetInt32(v int32) {
	if w.c.mark(w.col) {
		w.typed.Append(v)
	}
}

type int64Write struct {
	writeBase
	typed *array.Int64Builder
}

func (w *int64Write) SetInt64(v int64) {
	if w.c.mark(w.col) {
		w.typed.Append(v)
	}
}

type float64Write struct {
	writeBase
	typed *array.Float64Builder
}

func (w *float64Write) SetFloat64(v float64) {
	if w.c.mark(w.col) {
		w.typed.Append(v)
	}
}

type boolWrite struct {
	writeBase
	typed *array.BooleanBuilder
}

func (w *boolWrite) SetBool(v bool) {
	if w.c.mark(w.col) {
		w.typed.Append(v)
	}
}

type stringWrite struct {
	writeBase
	typed *array.StringBuilder
}

func (w *stringWrite) SetString(v string) {
	if w.c.mark(w.col) {
		w.typed.Append(v)
	}
}

type binaryWrite struct {
	writeBase
	typed *array.BinaryBuilder
}

func (w *binaryWrite) SetBytes(v []byte) {
	if w.c.mark(w.col) {
		w.typed.Append(v)
	}
}

type timestampWrite struct {
	writeBase
	typed *array.TimestampBuilder
}

func (w *timestampWrite) SetMicros(us int64) {
	if w.c.mark(w.col) {
		w.typed.Append(arrow.Timestamp(us))
	}
}
