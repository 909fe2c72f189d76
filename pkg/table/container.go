package table

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/ajitpratap0/coltable/pkg/adapter"
	"github.com/ajitpratap0/coltable/pkg/data"
	"github.com/ajitpratap0/coltable/pkg/errors"
	"github.com/ajitpratap0/coltable/pkg/logger"
	"github.com/ajitpratap0/coltable/pkg/metrics"
	"github.com/ajitpratap0/coltable/pkg/observability"
	"github.com/ajitpratap0/coltable/pkg/store"
	"github.com/ajitpratap0/coltable/pkg/store/arrowstore"
)

// ContainerOptions configures a RowContainer.
type ContainerOptions struct {
	// RowKeys stores a string key per row in physical column 0.
	RowKeys bool
	// Factory creates the physical store. Defaults to the Arrow IPC file
	// factory.
	Factory store.Factory
	// Registry resolves cell adapters. Defaults to adapter.Default.
	Registry *adapter.Registry
	Logger   *zap.Logger
	// Progress receives the sealing progress during Close.
	Progress store.Progress
}

var defaultFactory = sync.OnceValue(func() store.Factory {
	f, err := arrowstore.NewFileFactory(arrowstore.FileOptions{})
	if err != nil {
		panic(err)
	}
	return f
})

type containerState int

const (
	containerOpen containerState = iota
	containerClosed
	containerFailed
	containerCleared
)

// RowContainer appends rows to a new table. It owns its write store until
// Close hands the sealed store to the produced table. A RowContainer is not
// safe for concurrent use.
type RowContainer struct {
	adapter  *adapter.SpecAdapter
	factory  store.Factory
	progress store.Progress
	logger   *zap.Logger

	ws        store.WriteStore
	cursor    store.WriteCursor
	consumers []adapter.CellConsumer
	key       adapter.KeyConsumer

	state   containerState
	size    int64
	table   *BufferedTable
	failure error
}

// NewRowContainer creates a container for spec. Unsupported column types are
// reported before any store is created.
func NewRowContainer(spec *data.TableSpec, opts ContainerOptions) (*RowContainer, error) {
	registry := opts.Registry
	if registry == nil {
		registry = adapter.Default
	}
	sa, err := registry.NewSpecAdapter(spec, opts.RowKeys)
	if err != nil {
		return nil, err
	}

	factory := opts.Factory
	if factory == nil {
		factory = defaultFactory()
	}
	ws, err := factory.NewWriteStore(sa.ColumnTypes())
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeStorage, "failed to create write store").
			WithDetail("factory", factory.ID())
	}

	c := &RowContainer{
		adapter:  sa,
		factory:  factory,
		progress: opts.Progress,
		logger:   logger.OrDefault(opts.Logger, "table").With(zap.String("table", spec.Name())),
		ws:       ws,
		cursor:   ws.Cursor(),
	}
	if c.consumers, err = sa.NewConsumers(c.cursor); err != nil {
		ws.Close()
		return nil, err
	}
	if opts.RowKeys {
		if c.key, err = sa.NewKeyConsumer(c.cursor); err != nil {
			ws.Close()
			return nil, err
		}
	}
	return c, nil
}

// Spec returns the table spec.
func (c *RowContainer) Spec() *data.TableSpec { return c.adapter.Spec() }

// Size returns the number of rows added. It is frozen once the container is
// closed.
func (c *RowContainer) Size() int64 { return c.size }

// AddRow appends row. A row whose cell cannot be stored leaves the container
// failed.
func (c *RowContainer) AddRow(row data.Row) error {
	if c.state != containerOpen {
		return c.stateError("add row")
	}
	if n, want := row.NumCells(), c.adapter.Spec().NumColumns(); n != want {
		return errors.Newf(errors.ErrorTypeValidation, "row has %d cells, table has %d columns", n, want)
	}
	var key string
	if c.key != nil {
		var err error
		if key, err = row.Key(); err != nil {
			return errors.Wrap(err, errors.ErrorTypeValidation, "row key required")
		}
	}

	c.cursor.Forward()
	if c.key != nil {
		c.key.SetKey(key)
	}
	for i, consumer := range c.consumers {
		if err := consumer.Consume(row.Cell(i)); err != nil {
			c.fail(err)
			return errors.Wrap(err, errors.ErrorTypeData, "failed to write row").
				WithDetail("row", c.size).
				WithDetail("column", c.adapter.Spec().Column(i).Name)
		}
	}
	c.size++
	metrics.RowsWritten.Inc()
	return nil
}

// Close seals the written rows into a table. Only the first call does work;
// later calls return its result.
func (c *RowContainer) Close(ctx context.Context) error {
	switch c.state {
	case containerClosed:
		return nil
	case containerFailed:
		return c.failure
	case containerCleared:
		return c.stateError("close")
	}

	ol := observability.NewOperationLogger(ctx, c.logger, "close")
	ol.LogStart("sealing row container", zap.Int64("rows", c.size))
	progress := store.Track(func(p float64) {
		ol.LogProgress("sealing row container", p)
		if c.progress != nil {
			c.progress(p)
		}
	})

	var rs store.ReadStore
	err := observability.Trace(ctx, "container_close", func(ctx context.Context, span *observability.Span) error {
		span.SetAttribute("table.rows", c.size)
		span.SetAttribute("table.row_keys", c.adapter.RowKeys())
		span.SetAttribute("store.factory", c.factory.ID())
		if err := c.cursor.Close(); err != nil {
			return errors.Wrap(err, errors.ErrorTypeStorage, "failed to close write cursor")
		}
		var err error
		rs, err = c.ws.Finish(ctx, progress)
		return err
	})
	metrics.ContainersClosed.WithLabelValues(metrics.Status(err, isCancelled)).Inc()
	if err != nil {
		if !isCancelled(err) {
			err = errors.Wrap(err, errors.ErrorTypeStorage, "failed to seal row container")
		}
		c.fail(err)
		ol.LogError("row container close failed", err)
		return err
	}

	c.ws = nil
	c.cursor = nil
	c.consumers = nil
	c.key = nil
	c.table = newBufferedTable(c.adapter, rs, c.factory, c.logger)
	c.state = containerClosed
	ol.LogComplete("row container sealed", zap.Int64("rows", c.size), zap.String("table_id", c.table.ID()))
	return nil
}

// Table returns the table produced by Close.
func (c *RowContainer) Table() (Table, error) {
	if c.state != containerClosed {
		return nil, c.stateError("get table")
	}
	return c.table, nil
}

// Clear discards the written rows, or the produced table once closed.
func (c *RowContainer) Clear() error {
	var err error
	switch c.state {
	case containerOpen:
		err = c.ws.Close()
		c.ws = nil
	case containerClosed:
		err = c.table.Clear()
		c.table = nil
	}
	c.state = containerCleared
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeStorage, "failed to clear row container")
	}
	return nil
}

// fail discards the write store and records err as the container's result.
func (c *RowContainer) fail(err error) {
	if c.ws != nil {
		if cerr := c.ws.Close(); cerr != nil {
			c.logger.Warn("failed to discard write store", zap.Error(cerr))
		}
		c.ws = nil
	}
	c.state = containerFailed
	c.failure = err
}

func (c *RowContainer) stateError(op string) error {
	var reason string
	switch c.state {
	case containerOpen:
		reason = "row container is not closed"
	case containerClosed:
		reason = "row container is closed"
	case containerFailed:
		reason = "row container failed"
	default:
		reason = "row container has been cleared"
	}
	e := errors.Newf(errors.ErrorTypeState, "cannot %s: %s", op, reason)
	if c.failure != nil {
		e.Cause = c.failure
	}
	return e
}
