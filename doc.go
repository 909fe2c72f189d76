// Package coltable stores row-oriented tables in Arrow columnar storage.
//
// A table is written once, row by row, through a [table.RowContainer] and
// then read back any number of times through row iterators. Each logical
// column is held in its own physical Arrow column; an optional string row
// key occupies an extra leading column. Iterators can be restricted to a
// subset of columns and a row range, in which case only the selected
// columns are decoded.
//
// # Quick Start
//
//	spec := data.MustTableSpec("scores",
//	    data.ColumnSpec{Name: "class", Type: data.TypeString},
//	    data.ColumnSpec{Name: "score", Type: data.TypeDouble},
//	)
//
//	factory, _ := config.Default().Store.Factory(logger.Get())
//	c, _ := table.NewRowContainer(spec, table.ContainerOptions{
//	    Factory: factory,
//	    RowKeys: true,
//	})
//	_ = c.AddRow(data.NewRow("r1", data.StringCell("a"), data.DoubleCell(1.5)))
//	_ = c.AddRow(data.NewRow("r2", data.StringCell("b"), data.Missing))
//	_ = c.Close(ctx)
//
//	t, _ := c.Table()
//	defer t.Clear()
//
//	f, _ := table.ColumnsByName(t.Spec(), "score")
//	it, _ := t.IteratorWithFilter(ctx, f)
//	_ = table.ForEach(it, func(row data.Row) error {
//	    fmt.Println(row.Cell(1))
//	    return nil
//	})
//
// Tables are saved to a directory with [table.SaveTable] and reopened with
// [table.LoadTable], which defers reading the data file until the table is
// first used.
//
// # Key Packages
//
//	pkg/data             - Cell values, rows and table specs
//	pkg/store            - Columnar store contracts and factory registry
//	pkg/store/arrowstore - Arrow IPC file and compressed stream stores
//	pkg/adapter          - Cell type to physical column mapping
//	pkg/table            - Row containers, tables, iterators and persistence
//	pkg/config           - YAML configuration
//	pkg/errors           - Structured error handling
//	pkg/logger           - Structured logging
//	pkg/metrics          - Prometheus metrics
//	pkg/observability    - OpenTelemetry tracing
//
// The coltable command in cmd/coltable imports CSV files into saved tables
// and prints them.
package coltable
