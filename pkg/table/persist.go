package table

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ajitpratap0/coltable/pkg/adapter"
	"github.com/ajitpratap0/coltable/pkg/data"
	"github.com/ajitpratap0/coltable/pkg/errors"
	"github.com/ajitpratap0/coltable/pkg/json"
	"github.com/ajitpratap0/coltable/pkg/logger"
	"github.com/ajitpratap0/coltable/pkg/observability"
	"github.com/ajitpratap0/coltable/pkg/store"
	"github.com/ajitpratap0/coltable/pkg/store/arrowstore"
)

const (
	// DescriptorFile is the name of the table descriptor inside a saved
	// table directory.
	DescriptorFile = "table.json"
	// DataFile is the name of the data file written by SaveTable.
	DataFile = "data.arrow"
)

// Descriptor is the persisted metadata of a saved table.
type Descriptor struct {
	StoreFactory string         `json:"store_factory"`
	RowCount     int64          `json:"row_count"`
	HasRowKey    bool           `json:"has_row_key"`
	DataFile     string         `json:"data_file"`
	Spec         DescriptorSpec `json:"spec"`
}

type DescriptorSpec struct {
	Name    string            `json:"name"`
	Columns []data.ColumnSpec `json:"columns"`
}

// SaveTable persists t under dir. The directory is created if needed.
func SaveTable(ctx context.Context, t Table, dir string) error {
	return t.SaveToFile(ctx, dir)
}

func save(ctx context.Context, dir string, sa *adapter.SpecAdapter, rs store.ReadStore, factoryID string, l *zap.Logger) error {
	return observability.Trace(ctx, "save", func(ctx context.Context, span *observability.Span) error {
		span.SetAttribute("table.dir", dir)
		span.SetAttribute("table.rows", rs.Size())
		span.SetAttribute("store.factory", factoryID)
		start := time.Now()

		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrap(err, errors.ErrorTypeStorage, "failed to create table directory").
				WithDetail("dir", dir)
		}
		if err := rs.CopyDataTo(ctx, filepath.Join(dir, DataFile)); err != nil {
			return err
		}

		spec := sa.Spec()
		desc := Descriptor{
			StoreFactory: factoryID,
			RowCount:     rs.Size(),
			HasRowKey:    sa.RowKeys(),
			DataFile:     DataFile,
			Spec:         DescriptorSpec{Name: spec.Name(), Columns: spec.Columns()},
		}
		raw, err := json.MarshalIndent(desc, "", "  ")
		if err != nil {
			return errors.Wrap(err, errors.ErrorTypeInternal, "failed to encode table descriptor")
		}
		path := filepath.Join(dir, DescriptorFile)
		err = store.WriteAtomically(path, func(w io.Writer) error {
			_, err := w.Write(raw)
			return err
		})
		if err != nil {
			return errors.Wrap(err, errors.ErrorTypeStorage, "failed to write table descriptor").
				WithDetail("path", path)
		}

		l.Info("table saved",
			zap.String("dir", dir),
			zap.Int64("rows", desc.RowCount),
			zap.Duration("duration", time.Since(start)))
		return nil
	})
}

// LoadOptions configures LoadTable.
type LoadOptions struct {
	// Factories resolves the persisted factory identifier. Defaults to every
	// factory of the arrowstore package.
	Factories *store.FactoryRegistry
	// Registry resolves cell adapters. Defaults to adapter.Default.
	Registry *adapter.Registry
	// Repository, when set, receives the loaded table.
	Repository *Repository
	Logger     *zap.Logger
}

// ReadDescriptor reads and validates the descriptor of the table saved
// under dir.
func ReadDescriptor(dir string) (*Descriptor, error) {
	path := filepath.Join(dir, DescriptorFile)
	raw, err := os.ReadFile(path) //nolint:gosec // G304: caller-provided table directory
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeStorage, "failed to read table descriptor").
			WithDetail("path", path)
	}
	var desc Descriptor
	if err := json.Unmarshal(raw, &desc, true); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "malformed table descriptor").
			WithDetail("path", path)
	}
	if err := desc.validate(); err != nil {
		return nil, err.WithDetail("path", path)
	}
	return &desc, nil
}

func (d *Descriptor) validate() *errors.Error {
	switch {
	case d.StoreFactory == "":
		return errors.New(errors.ErrorTypeConfig, "table descriptor names no store factory")
	case d.RowCount < 0:
		return errors.Newf(errors.ErrorTypeConfig, "table descriptor has negative row count %d", d.RowCount)
	case d.DataFile == "" || d.DataFile != filepath.Base(d.DataFile) || d.DataFile == "." || d.DataFile == "..":
		return errors.Newf(errors.ErrorTypeConfig, "table descriptor has invalid data file %q", d.DataFile)
	}
	return nil
}

// TableSpec builds the table spec recorded in the descriptor.
func (d *Descriptor) TableSpec() (*data.TableSpec, error) {
	spec, err := data.NewTableSpec(d.Spec.Name, d.Spec.Columns...)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "table descriptor has invalid spec")
	}
	return spec, nil
}

var defaultFactories = sync.OnceValues(func() (*store.FactoryRegistry, error) {
	return arrowstore.Registry(arrowstore.FileOptions{})
})

// LoadTable reopens the table saved under dir. Only the descriptor is read;
// the data file is opened on first use of the returned table.
func LoadTable(dir string, opts LoadOptions) (*LazyTable, error) {
	desc, err := ReadDescriptor(dir)
	if err != nil {
		return nil, err
	}
	spec, err := desc.TableSpec()
	if err != nil {
		return nil, err
	}

	registry := opts.Registry
	if registry == nil {
		registry = adapter.Default
	}
	sa, err := registry.NewSpecAdapter(spec, desc.HasRowKey)
	if err != nil {
		return nil, err
	}

	factories := opts.Factories
	if factories == nil {
		if factories, err = defaultFactories(); err != nil {
			return nil, err
		}
	}
	factory, err := factories.Lookup(desc.StoreFactory)
	if err != nil {
		return nil, err
	}

	acq := FileAcquisition{
		Path:    filepath.Join(dir, desc.DataFile),
		Factory: factory,
		Schema:  sa.ColumnTypes(),
		Size:    desc.RowCount,
	}
	l := logger.OrDefault(opts.Logger, "table")
	t := NewLazyTable(sa, acq, LazyOptions{
		FactoryID:  desc.StoreFactory,
		Repository: opts.Repository,
		Logger:     l,
	})
	if opts.Repository != nil {
		opts.Repository.Put(t)
	}
	l.Debug("table loaded",
		zap.String("dir", dir),
		zap.String("table_id", t.ID()),
		zap.String("store_factory", desc.StoreFactory),
		zap.Int64("rows", desc.RowCount))
	return t, nil
}
