package data

import (
	"github.com/ajitpratap0/coltable/pkg/errors"
)

// ColumnSpec describes one logical column.
type ColumnSpec struct {
	Name string   `json:"name" yaml:"name"`
	Type DataType `json:"type" yaml:"type"`
}

// TableSpec is the ordered, immutable list of logical columns of a table.
type TableSpec struct {
	name    string
	columns []ColumnSpec
	index   map[string]int
}

// NewTableSpec creates a table spec. Column names must be non-empty and unique.
func NewTableSpec(name string, columns ...ColumnSpec) (*TableSpec, error) {
	spec := &TableSpec{
		name:    name,
		columns: make([]ColumnSpec, len(columns)),
		index:   make(map[string]int, len(columns)),
	}
	copy(spec.columns, columns)

	for i, col := range spec.columns {
		if col.Name == "" {
			return nil, errors.New(errors.ErrorTypeValidation, "column name must not be empty").
				WithDetail("index", i)
		}
		if _, dup := spec.index[col.Name]; dup {
			return nil, errors.Newf(errors.ErrorTypeValidation, "duplicate column name %q", col.Name).
				WithDetail("index", i)
		}
		spec.index[col.Name] = i
	}
	return spec, nil
}

// MustTableSpec is NewTableSpec that panics on error. Intended for tests and
// static specs.
func MustTableSpec(name string, columns ...ColumnSpec) *TableSpec {
	spec, err := NewTableSpec(name, columns...)
	if err != nil {
		panic(err)
	}
	return spec
}

// Name returns the table name.
func (s *TableSpec) Name() string { return s.name }

// NumColumns returns the number of logical columns.
func (s *TableSpec) NumColumns() int { return len(s.columns) }

// Column returns the i-th column spec.
func (s *TableSpec) Column(i int) ColumnSpec { return s.columns[i] }

// Columns returns a copy of all column specs.
func (s *TableSpec) Columns() []ColumnSpec {
	out := make([]ColumnSpec, len(s.columns))
	copy(out, s.columns)
	return out
}

// ColumnNames returns the column names in order.
func (s *TableSpec) ColumnNames() []string {
	names := make([]string, len(s.columns))
	for i, c := range s.columns {
		names[i] = c.Name
	}
	return names
}

// FindColumn returns the index of the named column or -1.
func (s *TableSpec) FindColumn(name string) int {
	if i, ok := s.index[name]; ok {
		return i
	}
	return -1
}

// Equal reports whether both specs have the same name and columns.
func (s *TableSpec) Equal(o *TableSpec) bool {
	if s == nil || o == nil {
		return s == o
	}
	if s.name != o.name || len(s.columns) != len(o.columns) {
		return false
	}
	for i := range s.columns {
		if s.columns[i] != o.columns[i] {
			return false
		}
	}
	return true
}
