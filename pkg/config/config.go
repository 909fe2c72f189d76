package config

import (
	"strings"

	"go.uber.org/zap"

	"github.com/ajitpratap0/coltable/pkg/compression"
	"github.com/ajitpratap0/coltable/pkg/errors"
	"github.com/ajitpratap0/coltable/pkg/logger"
	"github.com/ajitpratap0/coltable/pkg/observability"
	"github.com/ajitpratap0/coltable/pkg/store"
	"github.com/ajitpratap0/coltable/pkg/store/arrowstore"
)

// Store formats.
const (
	FormatFile   = "file"
	FormatStream = "stream"
)

// Config is the configuration of a coltable process.
type Config struct {
	Store   StoreConfig                 `yaml:"store" json:"store"`
	Logging logger.Config               `yaml:"logging" json:"logging"`
	Metrics MetricsConfig               `yaml:"metrics" json:"metrics"`
	Tracing observability.TracingConfig `yaml:"tracing" json:"tracing"`
}

// StoreConfig selects and tunes the physical store of new tables.
type StoreConfig struct {
	// Format is "file" (Arrow IPC file) or "stream" (compressed Arrow IPC
	// stream).
	Format string `yaml:"format" json:"format"`
	// BatchSize is the number of rows per record batch.
	BatchSize int `yaml:"batch_size" json:"batch_size"`
	// Compression is the stream codec: none, gzip, snappy, s2, lz4 or zstd.
	Compression string `yaml:"compression" json:"compression"`
	// CompressionLevel is 1 (fastest) to 9 (best).
	CompressionLevel int `yaml:"compression_level" json:"compression_level"`
	// IPCCompression is the file body compression: none, lz4 or zstd.
	IPCCompression string `yaml:"ipc_compression" json:"ipc_compression"`
	// UseMmap reads saved IPC files through a memory mapping.
	UseMmap bool `yaml:"use_mmap" json:"use_mmap"`
}

type MetricsConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled"`
	// Address serves /metrics while a command runs, e.g. ":9090".
	Address string `yaml:"address" json:"address"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Store: StoreConfig{
			Format:           FormatFile,
			BatchSize:        arrowstore.DefaultBatchSize,
			Compression:      string(compression.Zstd),
			CompressionLevel: int(compression.Default),
			IPCCompression:   string(compression.None),
		},
		Logging: logger.Config{
			Level:    "info",
			Encoding: "console",
		},
		Metrics: MetricsConfig{Address: ":9090"},
		Tracing: observability.DefaultTracingConfig(),
	}
}

// Validate checks the configuration for values no component accepts.
func (c *Config) Validate() error {
	s := c.Store
	switch s.Format {
	case FormatFile, FormatStream:
	default:
		return errors.Newf(errors.ErrorTypeConfig, "store.format must be %q or %q, got %q",
			FormatFile, FormatStream, s.Format)
	}
	if s.BatchSize <= 0 {
		return errors.New(errors.ErrorTypeConfig, "store.batch_size must be positive")
	}
	if _, err := compression.ParseAlgorithm(s.Compression); err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "invalid store.compression")
	}
	if s.CompressionLevel < int(compression.Fastest) || s.CompressionLevel > int(compression.Best) {
		return errors.Newf(errors.ErrorTypeConfig, "store.compression_level must be in [1, 9], got %d",
			s.CompressionLevel)
	}
	switch a, err := compression.ParseAlgorithm(s.IPCCompression); {
	case err != nil:
		return errors.Wrap(err, errors.ErrorTypeConfig, "invalid store.ipc_compression")
	case a != compression.None && a != compression.LZ4 && a != compression.Zstd:
		return errors.Newf(errors.ErrorTypeConfig, "store.ipc_compression must be none, lz4 or zstd, got %q", a)
	}
	switch strings.ToLower(c.Logging.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		return errors.Newf(errors.ErrorTypeConfig, "logging.level %q is not one of debug, info, warn, error",
			c.Logging.Level)
	}
	if c.Metrics.Enabled && c.Metrics.Address == "" {
		return errors.New(errors.ErrorTypeConfig, "metrics.address is required when metrics are enabled")
	}
	switch c.Tracing.Exporter {
	case "", "none", "stdout":
	default:
		return errors.Newf(errors.ErrorTypeConfig, "tracing.exporter %q is not one of none, stdout", c.Tracing.Exporter)
	}
	if c.Tracing.SamplingRate < 0 || c.Tracing.SamplingRate > 1 {
		return errors.New(errors.ErrorTypeConfig, "tracing.sampling_rate must be in [0, 1]")
	}
	return nil
}

func (s StoreConfig) fileOptions(l *zap.Logger) (arrowstore.FileOptions, error) {
	ipc, err := compression.ParseAlgorithm(s.IPCCompression)
	if err != nil {
		return arrowstore.FileOptions{}, errors.Wrap(err, errors.ErrorTypeConfig, "invalid store.ipc_compression")
	}
	return arrowstore.FileOptions{
		Options:     arrowstore.Options{BatchSize: s.BatchSize, Logger: l},
		Compression: ipc,
		UseMmap:     s.UseMmap,
	}, nil
}

// Factory builds the store factory for new tables.
func (s StoreConfig) Factory(l *zap.Logger) (store.Factory, error) {
	opts, err := s.fileOptions(l)
	if err != nil {
		return nil, err
	}
	if s.Format == FormatFile {
		return arrowstore.NewFileFactory(opts)
	}
	algorithm, err := compression.ParseAlgorithm(s.Compression)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "invalid store.compression")
	}
	return arrowstore.NewStreamFactory(opts.Options, &compression.Config{
		Algorithm: algorithm,
		Level:     compression.Level(s.CompressionLevel),
	})
}

// Factories builds the registry used to reopen saved tables.
func (s StoreConfig) Factories(l *zap.Logger) (*store.FactoryRegistry, error) {
	opts, err := s.fileOptions(l)
	if err != nil {
		return nil, err
	}
	return arrowstore.Registry(opts)
}
