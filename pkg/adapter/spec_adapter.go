package adapter

import (
	"github.com/ajitpratap0/coltable/pkg/data"
	"github.com/ajitpratap0/coltable/pkg/errors"
	"github.com/ajitpratap0/coltable/pkg/store"
)

// KeyConsumer writes the row key of the current row.
type KeyConsumer interface {
	SetKey(key string)
}

// KeyProducer reads the row key of the current row.
type KeyProducer interface {
	Key() string
}

// SpecAdapter is the resolved set of adapters for one table spec. It is
// immutable and may be shared by any number of cursors.
type SpecAdapter struct {
	spec     *data.TableSpec
	rowKeys  bool
	adapters []CellAdapter
	types    []store.ColumnType
}

// NewSpecAdapter resolves adapters for spec. When rowKeys is set a leading
// Utf8 key column is added to the physical schema.
func (r *Registry) NewSpecAdapter(spec *data.TableSpec, rowKeys bool) (*SpecAdapter, error) {
	if err := r.Validate(spec); err != nil {
		return nil, err
	}

	sa := &SpecAdapter{
		spec:     spec,
		rowKeys:  rowKeys,
		adapters: make([]CellAdapter, spec.NumColumns()),
	}
	if rowKeys {
		sa.types = append(sa.types, store.Utf8)
	}
	for i, col := range spec.Columns() {
		a, _ := r.Adapter(col.Type)
		sa.adapters[i] = a
		sa.types = append(sa.types, a.ColumnType())
	}
	return sa, nil
}

// Spec returns the logical spec.
func (sa *SpecAdapter) Spec() *data.TableSpec { return sa.spec }

// RowKeys reports whether physical column 0 holds the row key.
func (sa *SpecAdapter) RowKeys() bool { return sa.rowKeys }

// ColumnTypes returns the physical schema in physical column order.
func (sa *SpecAdapter) ColumnTypes() []store.ColumnType {
	return append([]store.ColumnType(nil), sa.types...)
}

// PhysicalIndex maps a logical column index to its physical column.
func (sa *SpecAdapter) PhysicalIndex(logical int) int {
	if sa.rowKeys {
		return logical + 1
	}
	return logical
}

// NewConsumers binds one consumer per logical column to cur.
func (sa *SpecAdapter) NewConsumers(cur store.WriteCursor) ([]CellConsumer, error) {
	consumers := make([]CellConsumer, len(sa.adapters))
	for i, a := range sa.adapters {
		c, err := a.NewConsumer(cur.Access(sa.PhysicalIndex(i)))
		if err != nil {
			return nil, err
		}
		consumers[i] = c
	}
	return consumers, nil
}

// NewProducers binds one producer per logical column to cur.
func (sa *SpecAdapter) NewProducers(cur store.ReadCursor) ([]CellProducer, error) {
	producers := make([]CellProducer, len(sa.adapters))
	for i, a := range sa.adapters {
		p, err := a.NewProducer(cur.Access(sa.PhysicalIndex(i)))
		if err != nil {
			return nil, err
		}
		producers[i] = p
	}
	return producers, nil
}

// NewProducersFor binds producers only for the logical columns in cols. The
// result is parallel to cols; no other column is touched.
func (sa *SpecAdapter) NewProducersFor(cur store.ReadCursor, cols []int) ([]CellProducer, error) {
	producers := make([]CellProducer, len(cols))
	for slot, i := range cols {
		if i < 0 || i >= len(sa.adapters) {
			return nil, errors.Newf(errors.ErrorTypeValidation, "column index %d out of range [0, %d)",
				i, len(sa.adapters))
		}
		p, err := sa.adapters[i].NewProducer(cur.Access(sa.PhysicalIndex(i)))
		if err != nil {
			return nil, err
		}
		producers[slot] = p
	}
	return producers, nil
}

// NewKeyConsumer binds the row key column of cur.
func (sa *SpecAdapter) NewKeyConsumer(cur store.WriteCursor) (KeyConsumer, error) {
	if !sa.rowKeys {
		return nil, data.ErrNoRowKey()
	}
	w, ok := cur.Access(0).(store.StringWriteAccess)
	if !ok {
		return nil, errors.New(errors.ErrorTypeInternal, "row key column is not a string column")
	}
	return keyConsumer{w}, nil
}

// NewKeyProducer binds the row key column of cur.
func (sa *SpecAdapter) NewKeyProducer(cur store.ReadCursor) (KeyProducer, error) {
	if !sa.rowKeys {
		return nil, data.ErrNoRowKey()
	}
	r, ok := cur.Access(0).(store.StringReadAccess)
	if !ok {
		return nil, errors.New(errors.ErrorTypeInternal, "row key column is not a string column")
	}
	return keyProducer{r}, nil
}

type keyConsumer struct{ w store.StringWriteAccess }

func (k keyConsumer) SetKey(key string) { k.w.SetString(key) }

type keyProducer struct{ r store.StringReadAccess }

func (k keyProducer) Key() string {
	if k.r.IsMissing() {
		return ""
	}
	return k.r.String()
}
