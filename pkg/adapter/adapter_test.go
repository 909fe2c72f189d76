package adapter

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/coltable/pkg/data"
	"github.com/ajitpratap0/coltable/pkg/errors"
	"github.com/ajitpratap0/coltable/pkg/store"
	"github.com/ajitpratap0/coltable/pkg/store/arrowstore"
)

func allTypesSpec(t *testing.T) *data.TableSpec {
	t.Helper()
	spec, err := data.NewTableSpec("all",
		data.ColumnSpec{Name: "s", Type: data.TypeString},
		data.ColumnSpec{Name: "i", Type: data.TypeInt},
		data.ColumnSpec{Name: "l", Type: data.TypeLong},
		data.ColumnSpec{Name: "d", Type: data.TypeDouble},
		data.ColumnSpec{Name: "b", Type: data.TypeBoolean},
		data.ColumnSpec{Name: "t", Type: data.TypeTimestamp},
		data.ColumnSpec{Name: "x", Type: data.TypeBinary},
	)
	require.NoError(t, err)
	return spec
}

func TestDefaultRegistry(t *testing.T) {
	for _, dt := range []data.DataType{
		data.TypeString, data.TypeInt, data.TypeLong, data.TypeDouble,
		data.TypeBoolean, data.TypeTimestamp, data.TypeBinary,
	} {
		assert.True(t, Default.HasAdapter(dt), dt)
		a, ok := Default.Adapter(dt)
		require.True(t, ok)
		assert.Equal(t, dt, a.DataType())
	}
	assert.False(t, Default.HasAdapter("decimal"))
	assert.Len(t, Default.Types(), 7)
}

func TestNewRegistryRejectsDuplicates(t *testing.T) {
	_, err := NewRegistry(stringAdapter, intAdapter, stringAdapter)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}

func TestValidateNamesUnsupportedColumn(t *testing.T) {
	spec := data.MustTableSpec("t",
		data.ColumnSpec{Name: "ok", Type: data.TypeString},
		data.ColumnSpec{Name: "amount", Type: "decimal"},
	)
	err := Default.Validate(spec)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeCapability))
	assert.Contains(t, err.Error(), `"amount"`)

	_, err = Default.NewSpecAdapter(spec, true)
	assert.True(t, errors.IsType(err, errors.ErrorTypeCapability))
}

func TestColumnMapping(t *testing.T) {
	spec := allTypesSpec(t)

	keyed, err := Default.NewSpecAdapter(spec, true)
	require.NoError(t, err)
	types := keyed.ColumnTypes()
	require.Len(t, types, spec.NumColumns()+1)
	assert.Equal(t, store.Utf8, types[0])
	assert.Equal(t, store.Int32, types[2])
	for i := 0; i < spec.NumColumns(); i++ {
		assert.Equal(t, i+1, keyed.PhysicalIndex(i))
	}

	keyless, err := Default.NewSpecAdapter(spec, false)
	require.NoError(t, err)
	types = keyless.ColumnTypes()
	require.Len(t, types, spec.NumColumns())
	assert.Equal(t, store.Int32, types[1])
	for i := 0; i < spec.NumColumns(); i++ {
		assert.Equal(t, i, keyless.PhysicalIndex(i))
	}
}

func TestRoundTripAllTypes(t *testing.T) {
	spec := allTypesSpec(t)
	sa, err := Default.NewSpecAdapter(spec, true)
	require.NoError(t, err)

	ts := data.NewTimestampCell(time.Date(2024, 3, 1, 12, 30, 0, 123456789, time.FixedZone("x", 3600)))
	rows := [][]data.Cell{
		{data.StringCell("a"), data.IntCell(-7), data.LongCell(1 << 40), data.DoubleCell(2.5),
			data.BooleanCell(true), ts, data.BinaryCell{0xde, 0xad}},
		{data.Missing, data.Missing, data.Missing, data.Missing, data.Missing, data.Missing, data.Missing},
		{data.StringCell(""), data.IntCell(0), data.IntCell(3), data.DoubleCell(0),
			data.BooleanCell(false), data.TimestampFromMicros(0), data.BinaryCell{}},
	}

	f, err := arrowstore.NewFileFactory(arrowstore.FileOptions{})
	require.NoError(t, err)
	ws, err := f.NewWriteStore(sa.ColumnTypes())
	require.NoError(t, err)

	wc := ws.Cursor()
	consumers, err := sa.NewConsumers(wc)
	require.NoError(t, err)
	key, err := sa.NewKeyConsumer(wc)
	require.NoError(t, err)
	for i, cells := range rows {
		wc.Forward()
		key.SetKey(string(rune('k' + i)))
		for c, cell := range cells {
			require.NoError(t, consumers[c].Consume(cell))
		}
	}

	rs, err := ws.Finish(context.Background(), nil)
	require.NoError(t, err)
	defer rs.Close()

	rc, err := rs.NewCursor()
	require.NoError(t, err)
	defer rc.Close()
	producers, err := sa.NewProducers(rc)
	require.NoError(t, err)
	keys, err := sa.NewKeyProducer(rc)
	require.NoError(t, err)

	for i, cells := range rows {
		require.True(t, rc.Forward())
		assert.Equal(t, string(rune('k'+i)), keys.Key())
		for c, want := range cells {
			got := producers[c].Produce()
			if want == data.IntCell(3) {
				// int widened into a long column
				want = data.LongCell(3)
			}
			assert.True(t, data.Equal(want, got), "row %d col %d: want %v got %v", i, c, want, got)
		}
	}
	assert.False(t, rc.Forward())
}

func TestConsumeRejectsWrongType(t *testing.T) {
	spec := data.MustTableSpec("t", data.ColumnSpec{Name: "d", Type: data.TypeDouble})
	sa, err := Default.NewSpecAdapter(spec, false)
	require.NoError(t, err)

	f, err := arrowstore.NewFileFactory(arrowstore.FileOptions{})
	require.NoError(t, err)
	ws, err := f.NewWriteStore(sa.ColumnTypes())
	require.NoError(t, err)
	defer ws.Close()

	wc := ws.Cursor()
	consumers, err := sa.NewConsumers(wc)
	require.NoError(t, err)
	wc.Forward()

	err = consumers[0].Consume(data.StringCell("nope"))
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeData))

	err = consumers[0].Consume(data.Unmaterialized)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unmaterialized")

	_, err = sa.NewKeyConsumer(wc)
	assert.True(t, errors.IsType(err, errors.ErrorTypeState))
}

func TestNewProducersForSelection(t *testing.T) {
	spec := allTypesSpec(t)
	sa, err := Default.NewSpecAdapter(spec, false)
	require.NoError(t, err)

	f, err := arrowstore.NewFileFactory(arrowstore.FileOptions{})
	require.NoError(t, err)
	ws, err := f.NewWriteStore(sa.ColumnTypes())
	require.NoError(t, err)
	rs, err := ws.Finish(context.Background(), nil)
	require.NoError(t, err)
	defer rs.Close()

	rc, err := rs.NewCursor()
	require.NoError(t, err)
	defer rc.Close()

	producers, err := sa.NewProducersFor(rc, []int{3, 0})
	require.NoError(t, err)
	assert.Len(t, producers, 2)

	_, err = sa.NewProducersFor(rc, []int{7})
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
}
