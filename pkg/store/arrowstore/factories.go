package arrowstore

import (
	"strings"

	"github.com/ajitpratap0/coltable/pkg/compression"
	"github.com/ajitpratap0/coltable/pkg/errors"
	"github.com/ajitpratap0/coltable/pkg/store"
)

var streamCodecs = []compression.Algorithm{
	compression.None,
	compression.Gzip,
	compression.Snappy,
	compression.S2,
	compression.LZ4,
	compression.Zstd,
}

// NewFactory creates the factory persisted under id. File options other than
// the embedded Options only apply to the file factory.
func NewFactory(id string, opts FileOptions) (store.Factory, error) {
	if id == FileFactoryID {
		return NewFileFactory(opts)
	}
	if codec, ok := strings.CutPrefix(id, StreamFactoryPrefix); ok {
		algorithm, err := compression.ParseAlgorithm(codec)
		if err != nil || codec == "" {
			return nil, errors.Newf(errors.ErrorTypeConfig, "unknown stream codec in factory %q", id)
		}
		return NewStreamFactory(opts.Options, &compression.Config{Algorithm: algorithm})
	}
	return nil, errors.Newf(errors.ErrorTypeConfig, "unknown store factory %q", id)
}

// Registry returns a registry holding the file factory and one stream
// factory per codec, so any table written by this package can be reopened.
func Registry(opts FileOptions) (*store.FactoryRegistry, error) {
	file, err := NewFileFactory(opts)
	if err != nil {
		return nil, err
	}
	factories := []store.Factory{file}
	for _, algorithm := range streamCodecs {
		f, err := NewStreamFactory(opts.Options, &compression.Config{Algorithm: algorithm})
		if err != nil {
			return nil, err
		}
		factories = append(factories, f)
	}
	return store.NewFactoryRegistry(factories...)
}
