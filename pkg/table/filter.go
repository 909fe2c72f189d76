package table

import (
	"math"
	"sort"

	"github.com/ajitpratap0/coltable/pkg/data"
	"github.com/ajitpratap0/coltable/pkg/errors"
)

// Filter selects the columns to materialize and, optionally, a row range.
// The zero Filter selects no column.
type Filter struct {
	all      bool
	cols     []int
	from     int64
	to       int64
	hasRange bool
}

// AllColumns materializes every column.
func AllColumns() Filter {
	return Filter{all: true}
}

// Columns materializes only the given logical columns. Duplicates are
// ignored. Columns() without arguments selects no column at all.
func Columns(idx ...int) Filter {
	cols := append([]int(nil), idx...)
	sort.Ints(cols)
	out := cols[:0]
	for i, c := range cols {
		if i == 0 || c != cols[i-1] {
			out = append(out, c)
		}
	}
	return Filter{cols: out}
}

// ColumnsByName resolves column names against spec.
func ColumnsByName(spec *data.TableSpec, names ...string) (Filter, error) {
	idx := make([]int, 0, len(names))
	for _, name := range names {
		i := spec.FindColumn(name)
		if i < 0 {
			return Filter{}, errors.Newf(errors.ErrorTypeValidation, "no column %q in table %q",
				name, spec.Name())
		}
		idx = append(idx, i)
	}
	return Columns(idx...), nil
}

// WithRowRange restricts iteration to the rows from..to, both inclusive and
// zero-based. A to beyond the last row is clamped.
func (f Filter) WithRowRange(from, to int64) Filter {
	f.from, f.to, f.hasRange = from, to, true
	return f
}

// Materializes reports whether column i is selected.
func (f Filter) Materializes(i int) bool {
	if f.all {
		return true
	}
	n := sort.SearchInts(f.cols, i)
	return n < len(f.cols) && f.cols[n] == i
}

// selection validates f against a table with numColumns columns and returns
// the selected columns, or nil for all of them.
func (f Filter) selection(numColumns int) ([]int, error) {
	if f.hasRange && (f.from < 0 || f.to < f.from) {
		return nil, errors.Newf(errors.ErrorTypeValidation, "invalid row range [%d, %d]", f.from, f.to)
	}
	if f.all {
		return nil, nil
	}
	if len(f.cols) == 0 {
		return []int{}, nil
	}
	for _, c := range f.cols {
		if c < 0 || c >= numColumns {
			return nil, errors.Newf(errors.ErrorTypeValidation, "column index %d out of range [0, %d)",
				c, numColumns)
		}
	}
	if len(f.cols) == numColumns {
		return nil, nil
	}
	return f.cols, nil
}

// rowRange returns the first row and the number of rows to visit; -1 means
// unbounded.
func (f Filter) rowRange() (skip, limit int64) {
	if !f.hasRange {
		return 0, -1
	}
	if f.to-f.from >= math.MaxInt64-1 {
		return f.from, -1
	}
	return f.from, f.to - f.from + 1
}
