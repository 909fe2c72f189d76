// Package arrowstore implements the physical store contract on Apache Arrow.
//
// Rows are accumulated in per-column array builders and cut into record
// batches of Options.BatchSize rows. Missing values are encoded in the
// validity bitmap via AppendNull, never as an in-band sentinel. A sealed store
// keeps its batches in memory; persistence and reopening go through one of
// two factories:
//
//   - FileFactory ("arrow-ipc-file"): Arrow IPC file format with optional IPC
//     body compression, reopened through a memory mapping.
//   - StreamFactory ("arrow-ipc-stream/<codec>"): Arrow IPC stream format
//     wrapped in a whole-file compression codec.
package arrowstore

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"go.uber.org/zap"

	"github.com/ajitpratap0/coltable/pkg/errors"
	"github.com/ajitpratap0/coltable/pkg/logger"
	"github.com/ajitpratap0/coltable/pkg/store"
)

// DefaultBatchSize is the number of rows per record batch.
const DefaultBatchSize = 8192

// Options configures stores created by the Arrow factories.
type Options struct {
	// BatchSize is the number of rows per record batch.
	BatchSize int
	// Allocator backs all array buffers. Defaults to a Go allocator.
	Allocator memory.Allocator
	// Logger defaults to the global logger named "arrowstore".
	Logger *zap.Logger
}

func (o Options) withDefaults() Options {
	if o.BatchSize <= 0 {
		o.BatchSize = DefaultBatchSize
	}
	if o.Allocator == nil {
		o.Allocator = memory.NewGoAllocator()
	}
	o.Logger = logger.OrDefault(o.Logger, "arrowstore")
	return o
}

func arrowType(t store.ColumnType) (arrow.DataType, error) {
	switch t {
	case store.Int32:
		return arrow.PrimitiveTypes.Int32, nil
	case store.Int64:
		return arrow.PrimitiveTypes.Int64, nil
	case store.Float64:
		return arrow.PrimitiveTypes.Float64, nil
	case store.Boolean:
		return arrow.FixedWidthTypes.Boolean, nil
	case store.Utf8:
		return arrow.BinaryTypes.String, nil
	case store.Binary:
		return arrow.BinaryTypes.Binary, nil
	case store.TimestampMicros:
		return arrow.FixedWidthTypes.Timestamp_us, nil
	default:
		return nil, errors.Newf(errors.ErrorTypeCapability, "no arrow type for column type %s", t)
	}
}

// arrowSchema builds the physical schema. Fields are named by position; the
// store is addressed by index only.
func arrowSchema(schema []store.ColumnType) (*arrow.Schema, error) {
	fields := make([]arrow.Field, len(schema))
	for i, t := range schema {
		dt, err := arrowType(t)
		if err != nil {
			return nil, err
		}
		fields[i] = arrow.Field{Name: fmt.Sprintf("c%d", i), Type: dt, Nullable: true}
	}
	return arrow.NewSchema(fields, nil), nil
}

// checkSchema verifies that a schema read from disk matches the expected
// physical column types.
func checkSchema(got *arrow.Schema, want []store.ColumnType) error {
	if got.NumFields() != len(want) {
		return errors.Newf(errors.ErrorTypeStorage, "stored schema has %d columns, expected %d",
			got.NumFields(), len(want))
	}
	for i, t := range want {
		dt, err := arrowType(t)
		if err != nil {
			return err
		}
		if !arrow.TypeEqual(got.Field(i).Type, dt) {
			return errors.Newf(errors.ErrorTypeStorage, "stored column %d has type %s, expected %s",
				i, got.Field(i).Type, dt).WithDetail("column", i)
		}
	}
	return nil
}

func cancelled(err error, op string) error {
	return errors.Wrap(err, errors.ErrorTypeCancelled, op+" cancelled")
}
