package table

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ajitpratap0/coltable/pkg/data"
	"github.com/ajitpratap0/coltable/pkg/errors"
	"github.com/ajitpratap0/coltable/pkg/metrics"
)

func newScenarioContainer(t *testing.T, opts ContainerOptions) *RowContainer {
	t.Helper()
	opts.RowKeys = true
	if opts.Factory == nil {
		opts.Factory = smallBatchFactory(t)
	}
	opts.Logger = zaptest.NewLogger(t)
	c, err := NewRowContainer(scenarioSpec(), opts)
	require.NoError(t, err)
	t.Cleanup(func() { c.Clear() })
	return c
}

func TestRoundTripAllTypes(t *testing.T) {
	spec := data.MustTableSpec("all",
		data.ColumnSpec{Name: "s", Type: data.TypeString},
		data.ColumnSpec{Name: "i", Type: data.TypeInt},
		data.ColumnSpec{Name: "l", Type: data.TypeLong},
		data.ColumnSpec{Name: "d", Type: data.TypeDouble},
		data.ColumnSpec{Name: "b", Type: data.TypeBoolean},
		data.ColumnSpec{Name: "t", Type: data.TypeTimestamp},
		data.ColumnSpec{Name: "x", Type: data.TypeBinary},
	)
	ts := data.NewTimestampCell(time.Date(2023, 11, 5, 8, 30, 15, 123456000, time.UTC))
	rows := []*data.DefaultRow{
		data.NewRow("k0", data.StringCell("héllo"), data.IntCell(-7), data.LongCell(1<<40),
			data.DoubleCell(2.25), data.BooleanCell(true), ts, data.BinaryCell{0, 1, 2}),
		data.NewRow("k1", data.Missing, data.Missing, data.Missing,
			data.Missing, data.Missing, data.Missing, data.Missing),
		data.NewRow("", data.StringCell(""), data.IntCell(0), data.LongCell(0),
			data.DoubleCell(0), data.BooleanCell(false), data.TimestampFromMicros(0), data.BinaryCell{}),
	}
	tbl := buildTable(t, spec, true, rows)

	it, err := tbl.Iterator(context.Background())
	require.NoError(t, err)
	got := collect(t, it)
	require.Len(t, got, len(rows))
	for r := range rows {
		wantKey, _ := rows[r].Key()
		key, err := got[r].Key()
		require.NoError(t, err)
		assert.Equal(t, wantKey, key)
		for c := 0; c < spec.NumColumns(); c++ {
			assert.True(t, data.Equal(rows[r].Cell(c), got[r].Cell(c)),
				"row %d col %s: want %v got %v", r, spec.Column(c).Name, rows[r].Cell(c), got[r].Cell(c))
		}
	}
	for c := 0; c < spec.NumColumns(); c++ {
		assert.True(t, data.IsMissing(got[1].Cell(c)))
	}
}

func TestNewRowContainerRejectsUnsupportedType(t *testing.T) {
	spec := data.MustTableSpec("t",
		data.ColumnSpec{Name: "a", Type: data.TypeString},
		data.ColumnSpec{Name: "m", Type: "decimal"},
	)
	_, err := NewRowContainer(spec, ContainerOptions{Logger: zaptest.NewLogger(t)})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeCapability))
}

func TestAddRowValidation(t *testing.T) {
	c := newScenarioContainer(t, ContainerOptions{})

	err := c.AddRow(data.NewRow("r", data.StringCell("a")))
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))

	err = c.AddRow(data.NewKeylessRow(data.StringCell("a"), data.DoubleCell(1)))
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))

	assert.Zero(t, c.Size())
	require.NoError(t, c.AddRow(data.NewRow("r", data.StringCell("a"), data.DoubleCell(1))))
	assert.EqualValues(t, 1, c.Size())
}

func TestAddRowWrongTypeFailsContainer(t *testing.T) {
	c := newScenarioContainer(t, ContainerOptions{})
	require.NoError(t, c.AddRow(data.NewRow("r1", data.StringCell("a"), data.DoubleCell(1))))

	err := c.AddRow(data.NewRow("r2", data.StringCell("b"), data.StringCell("oops")))
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeData))

	err = c.AddRow(data.NewRow("r3", data.StringCell("c"), data.DoubleCell(3)))
	assert.True(t, errors.IsType(err, errors.ErrorTypeState))
	assert.Error(t, c.Close(context.Background()))
	_, err = c.Table()
	assert.True(t, errors.IsType(err, errors.ErrorTypeState))
}

func TestIdempotentClose(t *testing.T) {
	ctx := context.Background()
	c := newScenarioContainer(t, ContainerOptions{})
	for _, r := range scenarioRows() {
		require.NoError(t, c.AddRow(r))
	}

	_, err := c.Table()
	assert.True(t, errors.IsType(err, errors.ErrorTypeState), "table before close")

	for i := 0; i < 3; i++ {
		require.NoError(t, c.Close(ctx))
	}
	tbl, err := c.Table()
	require.NoError(t, err)
	again, err := c.Table()
	require.NoError(t, err)
	assert.Same(t, tbl, again)

	size, err := tbl.Size(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 3, size)
	assert.EqualValues(t, 3, c.Size())

	err = c.AddRow(scenarioRows()[0])
	assert.True(t, errors.IsType(err, errors.ErrorTypeState))
	assert.EqualValues(t, 3, c.Size())
}

func TestCloseCancelled(t *testing.T) {
	c := newScenarioContainer(t, ContainerOptions{})
	for _, r := range scenarioRows() {
		require.NoError(t, c.AddRow(r))
	}
	before := testutil.ToFloat64(metrics.ContainersClosed.WithLabelValues(metrics.StatusCancelled))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := c.Close(ctx)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeCancelled))
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.ContainersClosed.WithLabelValues(metrics.StatusCancelled)))

	assert.Equal(t, err, c.Close(context.Background()), "a failed close is final")
	_, err = c.Table()
	assert.True(t, errors.IsType(err, errors.ErrorTypeState))
	require.NoError(t, c.Clear())
}

func TestCloseReportsProgress(t *testing.T) {
	var seen []float64
	c := newScenarioContainer(t, ContainerOptions{Progress: func(p float64) { seen = append(seen, p) }})
	for i := 0; i < 9; i++ {
		require.NoError(t, c.AddRow(data.NewRow("k", data.StringCell("x"), data.DoubleCell(float64(i)))))
	}
	require.NoError(t, c.Close(context.Background()))

	require.NotEmpty(t, seen)
	for i := 1; i < len(seen); i++ {
		assert.GreaterOrEqual(t, seen[i], seen[i-1])
	}
	for _, p := range seen {
		assert.True(t, p >= 0 && p <= 1, "progress %v out of bounds", p)
	}
	assert.Equal(t, 1.0, seen[len(seen)-1])
}

func TestClearContainer(t *testing.T) {
	ctx := context.Background()

	t.Run("before close", func(t *testing.T) {
		c := newScenarioContainer(t, ContainerOptions{})
		require.NoError(t, c.AddRow(scenarioRows()[0]))
		require.NoError(t, c.Clear())
		require.NoError(t, c.Clear())
		assert.True(t, errors.IsType(c.Close(ctx), errors.ErrorTypeState))
		assert.True(t, errors.IsType(c.AddRow(scenarioRows()[0]), errors.ErrorTypeState))
	})

	t.Run("after close", func(t *testing.T) {
		c := newScenarioContainer(t, ContainerOptions{})
		require.NoError(t, c.AddRow(scenarioRows()[0]))
		require.NoError(t, c.Close(ctx))
		tbl, err := c.Table()
		require.NoError(t, err)

		require.NoError(t, c.Clear())
		_, err = tbl.Size(ctx)
		assert.True(t, errors.IsType(err, errors.ErrorTypeState))
		_, err = c.Table()
		assert.True(t, errors.IsType(err, errors.ErrorTypeState))
	})
}

func TestRowsWrittenMetric(t *testing.T) {
	before := testutil.ToFloat64(metrics.RowsWritten)
	c := newScenarioContainer(t, ContainerOptions{})
	for _, r := range scenarioRows() {
		require.NoError(t, c.AddRow(r))
	}
	assert.Equal(t, before+3, testutil.ToFloat64(metrics.RowsWritten))
}
