package adapter

import (
	"sort"

	"github.com/ajitpratap0/coltable/pkg/data"
	"github.com/ajitpratap0/coltable/pkg/errors"
)

// Registry maps logical types to their adapters. A Registry is immutable
// once built and safe for concurrent use.
type Registry struct {
	adapters map[data.DataType]CellAdapter
}

// Default holds the adapters for every logical type of package data.
var Default = mustRegistry(
	stringAdapter,
	intAdapter,
	longAdapter,
	doubleAdapter,
	booleanAdapter,
	timestampAdapter,
	binaryAdapter,
)

// NewRegistry builds a registry. Registering two adapters for the same
// logical type is a config error.
func NewRegistry(adapters ...CellAdapter) (*Registry, error) {
	r := &Registry{adapters: make(map[data.DataType]CellAdapter, len(adapters))}
	for _, a := range adapters {
		if _, dup := r.adapters[a.DataType()]; dup {
			return nil, errors.Newf(errors.ErrorTypeConfig, "duplicate adapter for type %q", a.DataType())
		}
		r.adapters[a.DataType()] = a
	}
	return r, nil
}

func mustRegistry(adapters ...CellAdapter) *Registry {
	r, err := NewRegistry(adapters...)
	if err != nil {
		panic(err)
	}
	return r
}

// HasAdapter reports whether t can be stored.
func (r *Registry) HasAdapter(t data.DataType) bool {
	_, ok := r.adapters[t]
	return ok
}

// Adapter returns the adapter for t.
func (r *Registry) Adapter(t data.DataType) (CellAdapter, bool) {
	a, ok := r.adapters[t]
	return a, ok
}

// Types returns the supported logical types, sorted.
func (r *Registry) Types() []data.DataType {
	types := make([]data.DataType, 0, len(r.adapters))
	for t := range r.adapters {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}

// Validate checks that every column of spec has an adapter. The error names
// the first unsupported column.
func (r *Registry) Validate(spec *data.TableSpec) error {
	for i, col := range spec.Columns() {
		if !r.HasAdapter(col.Type) {
			return errors.Newf(errors.ErrorTypeCapability, "column %q has unsupported type %q",
				col.Name, col.Type).
				WithDetail("column", i).
				WithDetail("supported", r.Types())
		}
	}
	return nil
}
