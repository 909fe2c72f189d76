// Package csvimport loads CSV files into tables. Column types are either
// given as a schema or inferred from a sample of the leading records.
package csvimport

import (
	"context"
	"encoding/csv"
	"encoding/hex"
	"io"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ajitpratap0/coltable/pkg/data"
	"github.com/ajitpratap0/coltable/pkg/errors"
	"github.com/ajitpratap0/coltable/pkg/logger"
	"github.com/ajitpratap0/coltable/pkg/observability"
	"github.com/ajitpratap0/coltable/pkg/table"
)

// DefaultSampleSize is the number of records used for type inference.
const DefaultSampleSize = 100

// Options configures an import.
type Options struct {
	// Name is the table name. Defaults to "csv".
	Name string
	// Spec fixes the column types. Its column names must appear in the
	// header. When nil, every header column except the row key column is
	// imported with an inferred type.
	Spec *data.TableSpec
	// RowKeyColumn names the header column used as row key.
	RowKeyColumn string
	SampleSize   int
	// Comma is the field delimiter. Defaults to ','.
	Comma rune
	// Container configures the row container; RowKeys is set from
	// RowKeyColumn.
	Container table.ContainerOptions
	Logger    *zap.Logger
}

// ParseSchema parses "name:type,name:type" into a table spec.
func ParseSchema(name, schema string) (*data.TableSpec, error) {
	var cols []data.ColumnSpec
	for _, field := range strings.Split(schema, ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		colName, colType, ok := strings.Cut(field, ":")
		if !ok || colName == "" || colType == "" {
			return nil, errors.Newf(errors.ErrorTypeValidation, "schema field %q is not name:type", field)
		}
		cols = append(cols, data.ColumnSpec{
			Name: strings.TrimSpace(colName),
			Type: data.DataType(strings.ToLower(strings.TrimSpace(colType))),
		})
	}
	if len(cols) == 0 {
		return nil, errors.New(errors.ErrorTypeValidation, "schema names no columns")
	}
	return data.NewTableSpec(name, cols...)
}

// layout maps header positions to table columns.
type layout struct {
	spec     *data.TableSpec
	fields   []int
	keyField int
}

// Import reads r and writes its records into a new table. The header record
// is required. Empty and absent fields of non-string columns are stored as
// missing values; an absent string field is missing too.
func Import(ctx context.Context, r io.Reader, opts Options) (table.Table, error) {
	if opts.Name == "" {
		opts.Name = "csv"
	}
	if opts.SampleSize <= 0 {
		opts.SampleSize = DefaultSampleSize
	}
	l := logger.OrDefault(opts.Logger, "csvimport")

	var result table.Table
	err := observability.Trace(ctx, "csv_import", func(ctx context.Context, span *observability.Span) error {
		reader := csv.NewReader(r)
		if opts.Comma != 0 {
			reader.Comma = opts.Comma
		}
		reader.FieldsPerRecord = -1

		header, err := reader.Read()
		if err != nil {
			return errors.Wrap(err, errors.ErrorTypeData, "failed to read CSV header")
		}

		sample, err := readSample(reader, opts.SampleSize)
		if err != nil {
			return err
		}
		lay, err := newLayout(header, sample, opts)
		if err != nil {
			return err
		}
		span.SetAttribute("table.columns", lay.spec.NumColumns())

		copts := opts.Container
		copts.RowKeys = lay.keyField >= 0
		if copts.Logger == nil {
			copts.Logger = l
		}
		c, err := table.NewRowContainer(lay.spec, copts)
		if err != nil {
			return err
		}

		line := 1
		add := func(rec []string) error {
			line++
			if line%1024 == 0 {
				if err := ctx.Err(); err != nil {
					return errors.Wrap(err, errors.ErrorTypeCancelled, "csv import cancelled")
				}
			}
			row, err := lay.row(rec)
			if err != nil {
				return errors.Wrap(err, errors.ErrorTypeData, "invalid CSV record").WithDetail("line", line)
			}
			return c.AddRow(row)
		}
		for _, rec := range sample {
			if err := add(rec); err != nil {
				c.Clear()
				return err
			}
		}
		for {
			rec, err := reader.Read()
			if err == io.EOF {
				break
			}
			if err != nil {
				c.Clear()
				return errors.Wrap(err, errors.ErrorTypeData, "failed to read CSV record").WithDetail("line", line+1)
			}
			if err := add(rec); err != nil {
				c.Clear()
				return err
			}
		}

		if err := c.Close(ctx); err != nil {
			c.Clear()
			return err
		}
		result, err = c.Table()
		span.SetAttribute("table.rows", c.Size())
		l.Info("csv imported",
			zap.String("table", lay.spec.Name()),
			zap.Int("columns", lay.spec.NumColumns()),
			zap.Int64("rows", c.Size()))
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func readSample(reader *csv.Reader, n int) ([][]string, error) {
	var sample [][]string
	for len(sample) < n {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeData, "failed to read CSV record").
				WithDetail("line", len(sample)+2)
		}
		sample = append(sample, rec)
	}
	return sample, nil
}

func newLayout(header []string, sample [][]string, opts Options) (*layout, error) {
	index := make(map[string]int, len(header))
	for i, h := range header {
		index[strings.TrimSpace(h)] = i
	}

	lay := &layout{keyField: -1}
	if opts.RowKeyColumn != "" {
		i, ok := index[opts.RowKeyColumn]
		if !ok {
			return nil, errors.Newf(errors.ErrorTypeValidation, "row key column %q is not in the CSV header", opts.RowKeyColumn)
		}
		lay.keyField = i
	}

	if opts.Spec != nil {
		lay.spec = opts.Spec
		for _, col := range opts.Spec.Columns() {
			i, ok := index[col.Name]
			if !ok {
				return nil, errors.Newf(errors.ErrorTypeValidation, "column %q is not in the CSV header", col.Name)
			}
			lay.fields = append(lay.fields, i)
		}
		return lay, nil
	}

	var cols []data.ColumnSpec
	for i, h := range header {
		if i == lay.keyField {
			continue
		}
		cols = append(cols, data.ColumnSpec{Name: strings.TrimSpace(h), Type: InferType(sample, i)})
		lay.fields = append(lay.fields, i)
	}
	spec, err := data.NewTableSpec(opts.Name, cols...)
	if err != nil {
		return nil, err
	}
	lay.spec = spec
	return lay, nil
}

func (l *layout) row(rec []string) (data.Row, error) {
	cells := make([]data.Cell, len(l.fields))
	for c, f := range l.fields {
		if f >= len(rec) {
			cells[c] = data.Missing
			continue
		}
		cell, err := ParseCell(l.spec.Column(c).Type, rec[f])
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeData, "invalid value").
				WithDetail("column", l.spec.Column(c).Name)
		}
		cells[c] = cell
	}
	if l.keyField < 0 {
		return data.NewKeylessRow(cells...), nil
	}
	var key string
	if l.keyField < len(rec) {
		key = rec[l.keyField]
	}
	return data.NewRow(key, cells...), nil
}

// InferType samples field i of records: long if every non-empty value is an
// integer, then double, boolean and timestamp (RFC 3339), else string.
func InferType(records [][]string, i int) data.DataType {
	allInt := true
	allFloat := true
	allBool := true
	allTime := true
	seen := false

	for _, rec := range records {
		if i >= len(rec) {
			continue
		}
		val := strings.TrimSpace(rec[i])
		if val == "" {
			continue
		}
		seen = true

		if allInt {
			if _, err := strconv.ParseInt(val, 10, 64); err != nil {
				allInt = false
			}
		}
		if allFloat && !allInt {
			if _, err := strconv.ParseFloat(val, 64); err != nil {
				allFloat = false
			}
		}
		if allBool {
			if _, ok := parseBool(val); !ok {
				allBool = false
			}
		}
		if allTime {
			if _, err := time.Parse(time.RFC3339Nano, val); err != nil {
				allTime = false
			}
		}
	}

	switch {
	case !seen:
		return data.TypeString
	case allInt:
		return data.TypeLong
	case allFloat:
		return data.TypeDouble
	case allBool:
		return data.TypeBoolean
	case allTime:
		return data.TypeTimestamp
	default:
		return data.TypeString
	}
}

func parseBool(val string) (bool, bool) {
	switch strings.ToLower(val) {
	case "true", "yes", "1":
		return true, true
	case "false", "no", "0":
		return false, true
	}
	return false, false
}

// ParseCell converts one CSV field to a cell of type t. An empty field is
// missing, except for strings.
func ParseCell(t data.DataType, val string) (data.Cell, error) {
	if t == data.TypeString {
		return data.StringCell(val), nil
	}
	val = strings.TrimSpace(val)
	if val == "" {
		return data.Missing, nil
	}
	switch t {
	case data.TypeInt:
		v, err := strconv.ParseInt(val, 10, 32)
		return data.IntCell(v), err
	case data.TypeLong:
		v, err := strconv.ParseInt(val, 10, 64)
		return data.LongCell(v), err
	case data.TypeDouble:
		v, err := strconv.ParseFloat(val, 64)
		return data.DoubleCell(v), err
	case data.TypeBoolean:
		v, ok := parseBool(val)
		if !ok {
			return nil, errors.Newf(errors.ErrorTypeData, "%q is not a boolean", val)
		}
		return data.BooleanCell(v), nil
	case data.TypeTimestamp:
		v, err := time.Parse(time.RFC3339Nano, val)
		return data.NewTimestampCell(v), err
	case data.TypeBinary:
		v, err := hex.DecodeString(val)
		return data.BinaryCell(v), err
	default:
		return nil, errors.Newf(errors.ErrorTypeCapability, "no CSV parser for column type %q", t)
	}
}
