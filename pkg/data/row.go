package data

import (
	"strings"

	"github.com/ajitpratap0/coltable/pkg/errors"
)

// Row is an ordered sequence of cells with an optional row key.
//
// Rows handed out by table iterators are views over the iterator's cursor and
// are only valid until the iterator advances or is closed.
type Row interface {
	// NumCells returns the full logical column count, projection or not.
	NumCells() int
	// Key returns the row key. Tables without row keys return a state error.
	Key() (string, error)
	// Cell returns the i-th cell. Panics if i is out of range.
	Cell(i int) Cell
}

// ErrNoRowKey returns the illegal-state error for row key access on a keyless
// row.
func ErrNoRowKey() error {
	return errors.New(errors.ErrorTypeState, "row has no row key")
}

// DefaultRow is a plain value row used on the write path.
type DefaultRow struct {
	key    string
	hasKey bool
	cells  []Cell
}

// NewRow creates a row with a key.
func NewRow(key string, cells ...Cell) *DefaultRow {
	return &DefaultRow{key: key, hasKey: true, cells: cells}
}

// NewKeylessRow creates a row without a key.
func NewKeylessRow(cells ...Cell) *DefaultRow {
	return &DefaultRow{cells: cells}
}

func (r *DefaultRow) NumCells() int { return len(r.cells) }

func (r *DefaultRow) Key() (string, error) {
	if !r.hasKey {
		return "", ErrNoRowKey()
	}
	return r.key, nil
}

func (r *DefaultRow) Cell(i int) Cell { return r.cells[i] }

// Copy materializes any row into a DefaultRow, detaching it from an iterator.
func Copy(r Row) *DefaultRow {
	cells := make([]Cell, r.NumCells())
	for i := range cells {
		cells[i] = r.Cell(i)
	}
	key, err := r.Key()
	if err != nil {
		return NewKeylessRow(cells...)
	}
	return NewRow(key, cells...)
}

// Format renders a row as "key: c0, c1, ..." for display.
func Format(r Row) string {
	var b strings.Builder
	if key, err := r.Key(); err == nil {
		b.WriteString(key)
		b.WriteString(": ")
	}
	for i := 0; i < r.NumCells(); i++ {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(r.Cell(i).String())
	}
	return b.String()
}
