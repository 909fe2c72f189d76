package arrowstore

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"go.uber.org/zap"

	"github.com/ajitpratap0/coltable/pkg/compression"
	"github.com/ajitpratap0/coltable/pkg/errors"
	"github.com/ajitpratap0/coltable/pkg/store"
)

// StreamFactoryPrefix prefixes the identifiers of stream factories. The
// codec name follows the slash, e.g. "arrow-ipc-stream/zstd".
const StreamFactoryPrefix = "arrow-ipc-stream/"

// StreamFactory persists stores as an Arrow IPC stream wrapped in a
// whole-file compression codec.
type StreamFactory struct {
	opts  Options
	codec *compression.Codec
}

var _ store.Factory = (*StreamFactory)(nil)

// NewStreamFactory creates a stream factory. A nil config selects the default
// codec.
func NewStreamFactory(opts Options, config *compression.Config) (*StreamFactory, error) {
	codec, err := compression.NewCodec(config)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "invalid stream compression")
	}
	return &StreamFactory{opts: opts.withDefaults(), codec: codec}, nil
}

func (f *StreamFactory) ID() string { return StreamFactoryPrefix + string(f.codec.Algorithm()) }

func (f *StreamFactory) NewWriteStore(schema []store.ColumnType) (store.WriteStore, error) {
	return newWriteStore(schema, f.opts, f.write)
}

func (f *StreamFactory) write(ctx context.Context, path string, schema *arrow.Schema, batches []arrow.Record) error {
	start := time.Now()
	err := store.WriteAtomically(path, func(w io.Writer) error {
		cw, err := f.codec.NewWriter(w)
		if err != nil {
			return err
		}
		sw := ipc.NewWriter(cw, ipc.WithSchema(schema), ipc.WithAllocator(f.opts.Allocator))
		for _, rec := range batches {
			if err := ctx.Err(); err != nil {
				sw.Close()
				cw.Close()
				return cancelled(err, "store copy")
			}
			if err := sw.Write(rec); err != nil {
				sw.Close()
				cw.Close()
				return err
			}
		}
		if err := sw.Close(); err != nil {
			cw.Close()
			return err
		}
		return cw.Close()
	})
	if err != nil {
		return wrapStorage(err, "failed to write arrow stream", path)
	}

	f.opts.Logger.Debug("arrow stream written",
		zap.String("path", path),
		zap.String("codec", string(f.codec.Algorithm())),
		zap.Int("batches", len(batches)),
		zap.Duration("duration", time.Since(start)))
	return nil
}

func (f *StreamFactory) Open(ctx context.Context, path string, schema []store.ColumnType) (store.ReadStore, error) {
	aschema, err := arrowSchema(schema)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(path) //nolint:gosec // G304: path comes from the table descriptor
	if err != nil {
		return nil, wrapStorage(err, "failed to open arrow stream", path)
	}
	defer file.Close()

	cr, err := f.codec.NewReader(file)
	if err != nil {
		return nil, wrapStorage(err, "failed to open decompressor", path)
	}
	defer cr.Close()

	batches, err := f.readAll(ctx, cr, schema)
	if err != nil {
		return nil, wrapStorage(err, "failed to read arrow stream", path)
	}
	return newReadStore(append([]store.ColumnType(nil), schema...), aschema, batches, nil, f.write), nil
}

func (f *StreamFactory) readAll(ctx context.Context, src io.Reader, schema []store.ColumnType) ([]arrow.Record, error) {
	r, err := ipc.NewReader(src, ipc.WithAllocator(f.opts.Allocator))
	if err != nil {
		return nil, err
	}
	defer r.Release()

	if err := checkSchema(r.Schema(), schema); err != nil {
		return nil, err
	}

	var batches []arrow.Record
	release := func() {
		for _, rec := range batches {
			rec.Release()
		}
	}
	for r.Next() {
		if err := ctx.Err(); err != nil {
			release()
			return nil, cancelled(err, "store open")
		}
		rec := r.Record()
		rec.Retain()
		batches = append(batches, rec)
	}
	if err := r.Err(); err != nil && err != io.EOF {
		release()
		return nil, err
	}
	return batches, nil
}
