package table

import (
	"github.com/ajitpratap0/coltable/pkg/adapter"
	"github.com/ajitpratap0/coltable/pkg/data"
	"github.com/ajitpratap0/coltable/pkg/errors"
	"github.com/ajitpratap0/coltable/pkg/metrics"
	"github.com/ajitpratap0/coltable/pkg/store"
)

// RowIterator walks a table forward once. The Row returned by Next is a view
// that stays valid until the following Next or Close. Iterators are not safe
// for concurrent use and must be closed.
type RowIterator interface {
	HasNext() bool
	Next() (data.Row, error)
	Close() error
}

// ForEach calls fn for every row of it and closes it afterwards, also when
// fn fails or panics.
func ForEach(it RowIterator, fn func(row data.Row) error) (err error) {
	defer func() {
		if cerr := it.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	for it.HasNext() {
		row, err := it.Next()
		if err != nil {
			return err
		}
		if err := fn(row); err != nil {
			return err
		}
	}
	return nil
}

func newIterator(rs store.ReadStore, sa *adapter.SpecAdapter, f Filter) (RowIterator, error) {
	cols, err := f.selection(sa.Spec().NumColumns())
	if err != nil {
		return nil, err
	}
	skip, limit := f.rowRange()

	var (
		it   RowIterator
		kind string
	)
	switch {
	case cols == nil:
		it, err = newFullIterator(rs, sa, skip, limit)
		kind = metrics.IteratorFull
	case len(cols) == 0 && sa.RowKeys():
		it, err = newEmptyKeyedIterator(rs, sa, skip, limit)
		kind = metrics.IteratorEmptyKeyed
	case len(cols) == 0:
		it = newEmptyKeylessIterator(rs, sa.Spec().NumColumns(), skip, limit)
		kind = metrics.IteratorEmptyKeyless
	default:
		it, err = newProjectedIterator(rs, sa, cols, skip, limit)
		kind = metrics.IteratorProjected
	}
	if err != nil {
		return nil, err
	}
	metrics.IteratorsOpened.WithLabelValues(kind).Inc()
	return it, nil
}

// cursorIterator is the cursor handling shared by the iterators that read
// the store.
type cursorIterator struct {
	rs        store.ReadStore
	cursor    store.ReadCursor
	remaining int64
	closed    bool
}

func openCursor(rs store.ReadStore, skip, limit int64) (cursorIterator, error) {
	cur, err := rs.NewCursor()
	if err != nil {
		return cursorIterator{}, err
	}
	for i := int64(0); i < skip; i++ {
		if !cur.Forward() {
			break
		}
	}
	return cursorIterator{rs: rs, cursor: cur, remaining: limit}, nil
}

func (c *cursorIterator) HasNext() bool {
	return !c.closed && c.remaining != 0 && c.cursor.CanForward()
}

func (c *cursorIterator) advance() error {
	if c.closed {
		return errors.New(errors.ErrorTypeState, "iterator is closed")
	}
	if c.rs.Closed() {
		return errStoreClosed()
	}
	if !c.HasNext() {
		return errors.New(errors.ErrorTypeState, "iterator is exhausted")
	}
	c.cursor.Forward()
	if c.remaining > 0 {
		c.remaining--
	}
	return nil
}

func (c *cursorIterator) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	if err := c.cursor.Close(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeStorage, "failed to close read cursor")
	}
	return nil
}

func errStoreClosed() error {
	return errors.New(errors.ErrorTypeState, "table was cleared while iterating")
}

func keyOf(key adapter.KeyProducer) (string, error) {
	if key == nil {
		return "", data.ErrNoRowKey()
	}
	return key.Key(), nil
}

// fullIterator decodes every column through its own producer.
type fullIterator struct {
	cursorIterator
	row fullRow
}

type fullRow struct {
	key       adapter.KeyProducer
	producers []adapter.CellProducer
}

func (r *fullRow) NumCells() int { return len(r.producers) }
func (r *fullRow) Key() (string, error) { return keyOf(r.key) }
func (r *fullRow) Cell(i int) data.Cell { return r.producers[i].Produce() }

func newFullIterator(rs store.ReadStore, sa *adapter.SpecAdapter, skip, limit int64) (*fullIterator, error) {
	ci, err := openCursor(rs, skip, limit)
	if err != nil {
		return nil, err
	}
	it := &fullIterator{cursorIterator: ci}
	if it.row.producers, err = sa.NewProducers(ci.cursor); err != nil {
		ci.cursor.Close()
		return nil, err
	}
	if sa.RowKeys() {
		if it.row.key, err = sa.NewKeyProducer(ci.cursor); err != nil {
			ci.cursor.Close()
			return nil, err
		}
	}
	return it, nil
}

func (it *fullIterator) Next() (data.Row, error) {
	if err := it.advance(); err != nil {
		return nil, err
	}
	return &it.row, nil
}

// projectedIterator builds producers for the selected columns only. slots
// maps a logical column to its producer, or -1 when it is not selected.
type projectedIterator struct {
	cursorIterator
	row projectedRow
}

type projectedRow struct {
	key       adapter.KeyProducer
	slots     []int
	producers []adapter.CellProducer
}

func (r *projectedRow) NumCells() int { return len(r.slots) }
func (r *projectedRow) Key() (string, error) { return keyOf(r.key) }

func (r *projectedRow) Cell(i int) data.Cell {
	s := r.slots[i]
	if s < 0 {
		return data.Unmaterialized
	}
	return r.producers[s].Produce()
}

func newProjectedIterator(rs store.ReadStore, sa *adapter.SpecAdapter, cols []int, skip, limit int64) (*projectedIterator, error) {
	ci, err := openCursor(rs, skip, limit)
	if err != nil {
		return nil, err
	}
	it := &projectedIterator{cursorIterator: ci}
	it.row.slots = make([]int, sa.Spec().NumColumns())
	for i := range it.row.slots {
		it.row.slots[i] = -1
	}
	for slot, c := range cols {
		it.row.slots[c] = slot
	}
	if it.row.producers, err = sa.NewProducersFor(ci.cursor, cols); err != nil {
		ci.cursor.Close()
		return nil, err
	}
	if sa.RowKeys() {
		if it.row.key, err = sa.NewKeyProducer(ci.cursor); err != nil {
			ci.cursor.Close()
			return nil, err
		}
	}
	return it, nil
}

func (it *projectedIterator) Next() (data.Row, error) {
	if err := it.advance(); err != nil {
		return nil, err
	}
	return &it.row, nil
}

// placeholderRow reports every cell as unmaterialized.
type placeholderRow struct {
	numCells int
	key      adapter.KeyProducer
}

func (r *placeholderRow) NumCells() int { return r.numCells }
func (r *placeholderRow) Key() (string, error) { return keyOf(r.key) }
func (r *placeholderRow) Cell(int) data.Cell { return data.Unmaterialized }

// emptyKeyedIterator reads the row key column and nothing else.
type emptyKeyedIterator struct {
	cursorIterator
	row placeholderRow
}

func newEmptyKeyedIterator(rs store.ReadStore, sa *adapter.SpecAdapter, skip, limit int64) (*emptyKeyedIterator, error) {
	ci, err := openCursor(rs, skip, limit)
	if err != nil {
		return nil, err
	}
	it := &emptyKeyedIterator{cursorIterator: ci}
	it.row.numCells = sa.Spec().NumColumns()
	if it.row.key, err = sa.NewKeyProducer(ci.cursor); err != nil {
		ci.cursor.Close()
		return nil, err
	}
	return it, nil
}

func (it *emptyKeyedIterator) Next() (data.Row, error) {
	if err := it.advance(); err != nil {
		return nil, err
	}
	return &it.row, nil
}

// emptyKeylessIterator opens no cursor; it only counts rows.
type emptyKeylessIterator struct {
	rs     store.ReadStore
	pos    int64
	end    int64
	closed bool
	row    placeholderRow
}

func newEmptyKeylessIterator(rs store.ReadStore, numCells int, skip, limit int64) *emptyKeylessIterator {
	end := rs.Size()
	if limit >= 0 && limit < end-skip {
		end = skip + limit
	}
	return &emptyKeylessIterator{rs: rs, pos: skip, end: end, row: placeholderRow{numCells: numCells}}
}

func (it *emptyKeylessIterator) HasNext() bool {
	return !it.closed && !it.rs.Closed() && it.pos < it.end
}

func (it *emptyKeylessIterator) Next() (data.Row, error) {
	if it.closed {
		return nil, errors.New(errors.ErrorTypeState, "iterator is closed")
	}
	if it.rs.Closed() {
		return nil, errStoreClosed()
	}
	if it.pos >= it.end {
		return nil, errors.New(errors.ErrorTypeState, "iterator is exhausted")
	}
	it.pos++
	return &it.row, nil
}

func (it *emptyKeylessIterator) Close() error {
	it.closed = true
	return nil
}
