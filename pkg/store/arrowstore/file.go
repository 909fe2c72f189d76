package arrowstore

import (
	"bytes"
	"context"
	"io"
	"os"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"go.uber.org/zap"

	"github.com/ajitpratap0/coltable/pkg/compression"
	"github.com/ajitpratap0/coltable/pkg/errors"
	"github.com/ajitpratap0/coltable/pkg/mmap"
	"github.com/ajitpratap0/coltable/pkg/store"
)

// FileFactoryID identifies the Arrow IPC file format.
const FileFactoryID = "arrow-ipc-file"

// FileOptions configures a FileFactory.
type FileOptions struct {
	Options
	// Compression selects IPC body compression. Only None, LZ4 and Zstd are
	// supported by the IPC format; the choice is recorded in the file itself.
	Compression compression.Algorithm
	// UseMmap reopens files through a memory mapping instead of regular reads.
	UseMmap bool
}

// FileFactory persists stores as Arrow IPC files.
type FileFactory struct {
	opts    Options
	ipcOpts []ipc.Option
	useMmap bool
}

var _ store.Factory = (*FileFactory)(nil)

// NewFileFactory creates a file factory.
func NewFileFactory(opts FileOptions) (*FileFactory, error) {
	f := &FileFactory{
		opts:    opts.Options.withDefaults(),
		useMmap: opts.UseMmap,
	}
	f.ipcOpts = []ipc.Option{ipc.WithAllocator(f.opts.Allocator)}

	algorithm, err := compression.ParseAlgorithm(string(opts.Compression))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "invalid ipc compression")
	}
	switch algorithm {
	case compression.None:
	case compression.LZ4:
		f.ipcOpts = append(f.ipcOpts, ipc.WithLZ4())
	case compression.Zstd:
		f.ipcOpts = append(f.ipcOpts, ipc.WithZstd())
	default:
		return nil, errors.Newf(errors.ErrorTypeConfig, "ipc compression %s is not supported", algorithm).
			WithDetail("supported", []string{"none", "lz4", "zstd"})
	}
	return f, nil
}

func (f *FileFactory) ID() string { return FileFactoryID }

func (f *FileFactory) NewWriteStore(schema []store.ColumnType) (store.WriteStore, error) {
	return newWriteStore(schema, f.opts, f.write)
}

// write persists batches to path through a temporary file.
func (f *FileFactory) write(ctx context.Context, path string, schema *arrow.Schema, batches []arrow.Record) error {
	start := time.Now()
	err := store.WriteAtomically(path, func(w io.Writer) error {
		fw, err := ipc.NewFileWriter(w, append([]ipc.Option{ipc.WithSchema(schema)}, f.ipcOpts...)...)
		if err != nil {
			return err
		}
		for _, rec := range batches {
			if err := ctx.Err(); err != nil {
				fw.Close()
				return cancelled(err, "store copy")
			}
			if err := fw.Write(rec); err != nil {
				fw.Close()
				return err
			}
		}
		return fw.Close()
	})
	if err != nil {
		return wrapStorage(err, "failed to write arrow file", path)
	}

	f.opts.Logger.Debug("arrow file written",
		zap.String("path", path),
		zap.Int("batches", len(batches)),
		zap.Duration("duration", time.Since(start)))
	return nil
}

func (f *FileFactory) Open(ctx context.Context, path string, schema []store.ColumnType) (store.ReadStore, error) {
	aschema, err := arrowSchema(schema)
	if err != nil {
		return nil, err
	}

	var (
		src    ipc.ReadAtSeeker
		source io.Closer
	)
	if f.useMmap {
		mm, err := mmap.Open(path)
		if err != nil {
			return nil, wrapStorage(err, "failed to map arrow file", path)
		}
		src, source = bytes.NewReader(mm.Bytes()), mm
	} else {
		file, err := os.Open(path) //nolint:gosec // G304: path comes from the table descriptor
		if err != nil {
			return nil, wrapStorage(err, "failed to open arrow file", path)
		}
		src, source = file, file
	}

	batches, err := f.readAll(ctx, src, schema)
	if err != nil {
		source.Close()
		return nil, err
	}

	f.opts.Logger.Debug("arrow file opened",
		zap.String("path", path),
		zap.Bool("mmap", f.useMmap),
		zap.Int("batches", len(batches)))
	return newReadStore(append([]store.ColumnType(nil), schema...), aschema, batches, source, f.write), nil
}

func (f *FileFactory) readAll(ctx context.Context, src ipc.ReadAtSeeker, schema []store.ColumnType) ([]arrow.Record, error) {
	r, err := ipc.NewFileReader(src, f.ipcOpts...)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeStorage, "failed to read arrow file footer")
	}
	defer r.Close()

	if err := checkSchema(r.Schema(), schema); err != nil {
		return nil, err
	}

	n := r.NumRecords()
	batches := make([]arrow.Record, 0, n)
	release := func() {
		for _, rec := range batches {
			rec.Release()
		}
	}
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			release()
			return nil, cancelled(err, "store open")
		}
		rec, err := r.Record(i)
		if err != nil {
			release()
			return nil, errors.Wrap(err, errors.ErrorTypeStorage, "failed to read record batch").
				WithDetail("batch", i)
		}
		rec.Retain()
		batches = append(batches, rec)
	}
	return batches, nil
}

// wrapStorage keeps cancellation errors as they are and classifies
// everything else as a storage failure.
func wrapStorage(err error, msg, path string) error {
	if errors.IsType(err, errors.ErrorTypeCancelled) {
		return err
	}
	return errors.Wrap(err, errors.ErrorTypeStorage, msg).WithDetail("path", path)
}
