package table

import (
	"context"
	"math"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ajitpratap0/coltable/pkg/data"
	"github.com/ajitpratap0/coltable/pkg/errors"
	"github.com/ajitpratap0/coltable/pkg/store"
	"github.com/ajitpratap0/coltable/pkg/store/arrowstore"
)

func scenarioSpec() *data.TableSpec {
	return data.MustTableSpec("scores",
		data.ColumnSpec{Name: "class", Type: data.TypeString},
		data.ColumnSpec{Name: "score", Type: data.TypeDouble},
	)
}

func scenarioRows() []*data.DefaultRow {
	return []*data.DefaultRow{
		data.NewRow("r1", data.StringCell("a"), data.DoubleCell(1.5)),
		data.NewRow("r2", data.StringCell("b"), data.Missing),
		data.NewRow("r3", data.StringCell("c"), data.DoubleCell(3.0)),
	}
}

func smallBatchFactory(t *testing.T) store.Factory {
	t.Helper()
	f, err := arrowstore.NewFileFactory(arrowstore.FileOptions{
		Options: arrowstore.Options{BatchSize: 2, Logger: zaptest.NewLogger(t)},
	})
	require.NoError(t, err)
	return f
}

// buildTable writes rows into a closed container and returns its table.
func buildTable(t *testing.T, spec *data.TableSpec, keys bool, rows []*data.DefaultRow) *BufferedTable {
	t.Helper()
	c, err := NewRowContainer(spec, ContainerOptions{
		RowKeys: keys,
		Factory: smallBatchFactory(t),
		Logger:  zaptest.NewLogger(t),
	})
	require.NoError(t, err)
	for _, r := range rows {
		require.NoError(t, c.AddRow(r))
	}
	require.NoError(t, c.Close(context.Background()))
	tbl, err := c.Table()
	require.NoError(t, err)
	t.Cleanup(func() { tbl.Clear() })
	return tbl.(*BufferedTable)
}

func collect(t *testing.T, it RowIterator) []*data.DefaultRow {
	t.Helper()
	var out []*data.DefaultRow
	require.NoError(t, ForEach(it, func(row data.Row) error {
		out = append(out, data.Copy(row))
		return nil
	}))
	return out
}

// countingStore records cursor creation and column access.
type countingStore struct {
	store.ReadStore

	mu       sync.Mutex
	cursors  int
	accessed map[int]int
}

func wrapCounting(rs store.ReadStore) *countingStore {
	return &countingStore{ReadStore: rs, accessed: make(map[int]int)}
}

func (s *countingStore) NewCursor() (store.ReadCursor, error) {
	cur, err := s.ReadStore.NewCursor()
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.cursors++
	s.mu.Unlock()
	return &countingCursor{ReadCursor: cur, s: s}, nil
}

// Close is a no-op; the wrapped store belongs to the table under test.
func (s *countingStore) Close() error { return nil }

func (s *countingStore) columns() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	cols := make([]int, 0, len(s.accessed))
	for c := range s.accessed {
		cols = append(cols, c)
	}
	sort.Ints(cols)
	return cols
}

type countingCursor struct {
	store.ReadCursor
	s *countingStore
}

func (c *countingCursor) Access(col int) store.ReadAccess {
	c.s.mu.Lock()
	c.s.accessed[col]++
	c.s.mu.Unlock()
	return c.ReadCursor.Access(col)
}

func countingTable(t *testing.T, spec *data.TableSpec, keys bool, rows []*data.DefaultRow) (*BufferedTable, *countingStore) {
	t.Helper()
	base := buildTable(t, spec, keys, rows)
	rs, err := base.Store()
	require.NoError(t, err)
	cs := wrapCounting(rs)
	tbl := newBufferedTable(base.adapter, cs, base.factory, zaptest.NewLogger(t))
	t.Cleanup(func() { tbl.Clear() })
	return tbl, cs
}

func TestScenarioFullIteration(t *testing.T) {
	tbl := buildTable(t, scenarioSpec(), true, scenarioRows())
	ctx := context.Background()

	size, err := tbl.Size(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 3, size)
	assert.True(t, tbl.HasRowKeys())

	it, err := tbl.Iterator(ctx)
	require.NoError(t, err)
	rows := collect(t, it)
	require.Len(t, rows, 3)

	want := scenarioRows()
	for i, row := range rows {
		key, err := row.Key()
		require.NoError(t, err)
		wantKey, _ := want[i].Key()
		assert.Equal(t, wantKey, key)
		assert.Equal(t, 2, row.NumCells())
		for c := 0; c < 2; c++ {
			assert.True(t, data.Equal(want[i].Cell(c), row.Cell(c)), "row %d col %d: %v", i, c, row.Cell(c))
		}
	}
	assert.True(t, data.IsMissing(rows[1].Cell(1)))
}

func TestScenarioProjection(t *testing.T) {
	tbl := buildTable(t, scenarioSpec(), true, scenarioRows())

	it, err := tbl.IteratorWithFilter(context.Background(), Columns(0))
	require.NoError(t, err)
	rows := collect(t, it)
	require.Len(t, rows, 3)

	for i, row := range rows {
		assert.Equal(t, 2, row.NumCells())
		assert.True(t, data.Equal(scenarioRows()[i].Cell(0), row.Cell(0)))
		assert.True(t, data.IsUnmaterialized(row.Cell(1)))
		assert.False(t, data.IsMissing(row.Cell(1)))
	}
}

func TestScenarioEmptyProjection(t *testing.T) {
	tbl, cs := countingTable(t, scenarioSpec(), true, scenarioRows())

	it, err := tbl.IteratorWithFilter(context.Background(), Columns())
	require.NoError(t, err)
	var keys []string
	require.NoError(t, ForEach(it, func(row data.Row) error {
		key, err := row.Key()
		if err != nil {
			return err
		}
		keys = append(keys, key)
		assert.Equal(t, 2, row.NumCells())
		assert.True(t, data.IsUnmaterialized(row.Cell(0)))
		assert.True(t, data.IsUnmaterialized(row.Cell(1)))
		return nil
	}))
	assert.Equal(t, []string{"r1", "r2", "r3"}, keys)
	assert.Equal(t, []int{0}, cs.columns(), "only the key column is read")
}

func TestEmptyProjectionKeylessOpensNoCursor(t *testing.T) {
	rows := make([]*data.DefaultRow, 5)
	for i := range rows {
		rows[i] = data.NewKeylessRow(data.StringCell("x"), data.DoubleCell(float64(i)))
	}
	tbl, cs := countingTable(t, scenarioSpec(), false, rows)

	it, err := tbl.IteratorWithFilter(context.Background(), Columns())
	require.NoError(t, err)
	n := 0
	require.NoError(t, ForEach(it, func(row data.Row) error {
		_, err := row.Key()
		assert.True(t, errors.IsType(err, errors.ErrorTypeState))
		n++
		return nil
	}))
	assert.Equal(t, 5, n)
	assert.Zero(t, cs.cursors)
	assert.Empty(t, cs.columns())
}

func TestColumnMapping(t *testing.T) {
	spec := data.MustTableSpec("m",
		data.ColumnSpec{Name: "a", Type: data.TypeInt},
		data.ColumnSpec{Name: "b", Type: data.TypeString},
		data.ColumnSpec{Name: "c", Type: data.TypeBoolean},
	)
	tests := []struct {
		name string
		keys bool
		want []int
	}{
		{"keyed", true, []int{0, 2}},
		{"keyless", false, []int{1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			row := func(k string, i int32) *data.DefaultRow {
				cells := []data.Cell{data.IntCell(i), data.StringCell(k), data.BooleanCell(i%2 == 0)}
				if tt.keys {
					return data.NewRow(k, cells...)
				}
				return data.NewKeylessRow(cells...)
			}
			tbl, cs := countingTable(t, spec, tt.keys, []*data.DefaultRow{row("x", 1), row("y", 2)})

			it, err := tbl.IteratorWithFilter(context.Background(), Columns(1))
			require.NoError(t, err)
			rows := collect(t, it)
			require.Len(t, rows, 2)
			assert.Equal(t, data.StringCell("x"), rows[0].Cell(1))
			assert.Equal(t, data.StringCell("y"), rows[1].Cell(1))
			assert.Equal(t, tt.want, cs.columns())
		})
	}
}

func TestProjectionMatchesFull(t *testing.T) {
	spec := data.MustTableSpec("p",
		data.ColumnSpec{Name: "s", Type: data.TypeString},
		data.ColumnSpec{Name: "l", Type: data.TypeLong},
		data.ColumnSpec{Name: "d", Type: data.TypeDouble},
		data.ColumnSpec{Name: "t", Type: data.TypeTimestamp},
	)
	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	var rows []*data.DefaultRow
	for i := 0; i < 7; i++ {
		var d data.Cell = data.DoubleCell(float64(i) / 2)
		if i%3 == 0 {
			d = data.Missing
		}
		rows = append(rows, data.NewKeylessRow(
			data.StringCell(string(rune('a'+i))),
			data.LongCell(int64(i)*1_000_000_000_000),
			d,
			data.NewTimestampCell(ts.Add(time.Duration(i)*time.Second)),
		))
	}
	tbl := buildTable(t, spec, false, rows)
	ctx := context.Background()

	it, err := tbl.Iterator(ctx)
	require.NoError(t, err)
	full := collect(t, it)

	for _, proj := range [][]int{{0}, {1, 3}, {2}, {0, 2, 3}, {3, 0}} {
		f := Columns(proj...)
		it, err := tbl.IteratorWithFilter(ctx, f)
		require.NoError(t, err)
		got := collect(t, it)
		require.Len(t, got, len(full))
		for r := range got {
			assert.Equal(t, spec.NumColumns(), got[r].NumCells())
			for c := 0; c < spec.NumColumns(); c++ {
				if f.Materializes(c) {
					assert.True(t, data.Equal(full[r].Cell(c), got[r].Cell(c)), "proj %v row %d col %d", proj, r, c)
				} else {
					assert.True(t, data.IsUnmaterialized(got[r].Cell(c)), "proj %v row %d col %d", proj, r, c)
				}
			}
		}
	}
}

func TestSelectingEveryColumnUsesFullIterator(t *testing.T) {
	tbl := buildTable(t, scenarioSpec(), true, scenarioRows())
	it, err := tbl.IteratorWithFilter(context.Background(), Columns(1, 0))
	require.NoError(t, err)
	defer it.Close()
	assert.IsType(t, &fullIterator{}, it)
}

func TestColumnsByName(t *testing.T) {
	spec := scenarioSpec()
	f, err := ColumnsByName(spec, "score")
	require.NoError(t, err)
	assert.True(t, f.Materializes(1))
	assert.False(t, f.Materializes(0))

	_, err = ColumnsByName(spec, "nope")
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
}

func TestInvalidFilter(t *testing.T) {
	tbl := buildTable(t, scenarioSpec(), true, scenarioRows())
	ctx := context.Background()

	_, err := tbl.IteratorWithFilter(ctx, Columns(2))
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))

	_, err = tbl.IteratorWithFilter(ctx, AllColumns().WithRowRange(2, 1))
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
}

func TestRowRange(t *testing.T) {
	var rows []*data.DefaultRow
	for i := 0; i < 6; i++ {
		rows = append(rows, data.NewRow(string(rune('a'+i)), data.StringCell("x"), data.DoubleCell(float64(i))))
	}
	tbl := buildTable(t, scenarioSpec(), true, rows)
	ctx := context.Background()

	for _, f := range []Filter{
		AllColumns().WithRowRange(1, 3),
		Columns(1).WithRowRange(1, 3),
		Columns().WithRowRange(1, 3),
	} {
		it, err := tbl.IteratorWithFilter(ctx, f)
		require.NoError(t, err)
		var keys []string
		require.NoError(t, ForEach(it, func(row data.Row) error {
			k, err := row.Key()
			keys = append(keys, k)
			return err
		}))
		assert.Equal(t, []string{"b", "c", "d"}, keys)
	}

	it, err := tbl.IteratorWithFilter(ctx, AllColumns().WithRowRange(4, 100))
	require.NoError(t, err)
	assert.Len(t, collect(t, it), 2)
}

func TestRowRangeToEnd(t *testing.T) {
	ctx := context.Background()
	for _, keys := range []bool{true, false} {
		rows := scenarioRows()
		if !keys {
			for i, r := range rows {
				rows[i] = data.NewKeylessRow(r.Cell(0), r.Cell(1))
			}
		}
		tbl := buildTable(t, scenarioSpec(), keys, rows)

		for _, f := range []Filter{AllColumns(), Columns(1), Columns()} {
			for _, r := range [][2]int64{{0, math.MaxInt64}, {1, math.MaxInt64}, {2, math.MaxInt64 - 1}, {5, math.MaxInt64}} {
				it, err := tbl.IteratorWithFilter(ctx, f.WithRowRange(r[0], r[1]))
				require.NoError(t, err)
				want := 3 - int(r[0])
				if want < 0 {
					want = 0
				}
				assert.Len(t, collect(t, it), want, "keys=%v range=%v", keys, r)
			}
		}
	}
}

func TestIteratorAfterClear(t *testing.T) {
	ctx := context.Background()
	for _, keys := range []bool{true, false} {
		rows := scenarioRows()
		if !keys {
			for i, r := range rows {
				rows[i] = data.NewKeylessRow(r.Cell(0), r.Cell(1))
			}
		}
		for _, f := range []Filter{AllColumns(), Columns(1), Columns()} {
			tbl := buildTable(t, scenarioSpec(), keys, rows)
			it, err := tbl.IteratorWithFilter(ctx, f)
			require.NoError(t, err)
			require.True(t, it.HasNext())
			_, err = it.Next()
			require.NoError(t, err)

			require.NoError(t, tbl.Clear())
			assert.False(t, it.HasNext())
			_, err = it.Next()
			assert.True(t, errors.IsType(err, errors.ErrorTypeState), "keys=%v", keys)
			assert.NoError(t, it.Close())
		}
	}
}

func TestIteratorExhaustedAndClosed(t *testing.T) {
	tbl := buildTable(t, scenarioSpec(), true, scenarioRows()[:1])

	it, err := tbl.Iterator(context.Background())
	require.NoError(t, err)
	require.True(t, it.HasNext())
	_, err = it.Next()
	require.NoError(t, err)
	assert.False(t, it.HasNext())
	_, err = it.Next()
	assert.True(t, errors.IsType(err, errors.ErrorTypeState))

	require.NoError(t, it.Close())
	require.NoError(t, it.Close())
	_, err = it.Next()
	assert.True(t, errors.IsType(err, errors.ErrorTypeState))
}

func TestForEachClosesOnError(t *testing.T) {
	tbl, cs := countingTable(t, scenarioSpec(), true, scenarioRows())
	it, err := tbl.Iterator(context.Background())
	require.NoError(t, err)

	stop := errors.New(errors.ErrorTypeInternal, "stop")
	err = ForEach(it, func(data.Row) error { return stop })
	assert.ErrorIs(t, err, stop)
	assert.False(t, it.HasNext())
	assert.Equal(t, 1, cs.cursors)
}

func TestBufferedTableClear(t *testing.T) {
	tbl := buildTable(t, scenarioSpec(), true, scenarioRows())
	ctx := context.Background()

	require.NoError(t, tbl.Clear())
	require.NoError(t, tbl.Clear())

	_, err := tbl.Size(ctx)
	assert.True(t, errors.IsType(err, errors.ErrorTypeState))
	_, err = tbl.Iterator(ctx)
	assert.True(t, errors.IsType(err, errors.ErrorTypeState))
	assert.True(t, errors.IsType(tbl.SaveToFile(ctx, t.TempDir()), errors.ErrorTypeState))
}

func TestRepository(t *testing.T) {
	repo := NewRepository()
	a := buildTable(t, scenarioSpec(), true, scenarioRows())
	b := buildTable(t, scenarioSpec(), true, scenarioRows())
	assert.NotEqual(t, a.ID(), b.ID())

	repo.Put(a)
	repo.Put(b)
	assert.Equal(t, 2, repo.Len())
	got, ok := repo.Get(a.ID())
	require.True(t, ok)
	assert.Same(t, a, got)

	assert.True(t, repo.Remove(a.ID()))
	assert.False(t, repo.Remove(a.ID()))
	assert.Equal(t, 1, repo.Len())
}
