// Package compression provides the whole-file stream codecs used by the
// compressed Arrow stream store.
//
// # Algorithm Selection
//
//   - Snappy/S2: Best for speed, moderate compression
//   - LZ4: Extremely fast, decent compression
//   - Zstd: Best compression ratio, good speed
//   - Gzip: Wide compatibility, good compression
//
// # Basic Usage
//
//	codec, err := compression.NewCodec(&compression.Config{
//	    Algorithm: compression.Zstd,
//	    Level:     compression.Default,
//	})
//	w, err := codec.NewWriter(file)
//	// write, then
//	err = w.Close()
//
//	r, err := codec.NewReader(file)
//	defer r.Close()
package compression

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/s2"
	"github.com/klauspost/compress/snappy"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Algorithm represents a compression algorithm.
type Algorithm string

const (
	// None represents no compression
	None Algorithm = "none"
	// Gzip represents gzip compression
	Gzip Algorithm = "gzip"
	// Snappy represents snappy compression
	Snappy Algorithm = "snappy"
	// LZ4 represents lz4 compression
	LZ4 Algorithm = "lz4"
	// Zstd represents zstandard compression
	Zstd Algorithm = "zstd"
	// S2 represents s2 compression (Snappy compatible)
	S2 Algorithm = "s2"
)

// ParseAlgorithm parses a case-insensitive algorithm name. The empty string
// means None.
func ParseAlgorithm(s string) (Algorithm, error) {
	switch a := Algorithm(strings.ToLower(strings.TrimSpace(s))); a {
	case "":
		return None, nil
	case None, Gzip, Snappy, LZ4, Zstd, S2:
		return a, nil
	default:
		return "", fmt.Errorf("unsupported compression algorithm: %s", s)
	}
}

// Level represents compression level, controlling the trade-off between
// compression speed and compression ratio.
type Level int

const (
	// Fastest prioritizes speed over compression ratio.
	Fastest Level = 1
	// Default balances speed and compression.
	Default Level = 5
	// Better improves compression at cost of speed.
	Better Level = 7
	// Best maximizes compression ratio.
	Best Level = 9
)

func (l Level) String() string {
	switch l {
	case Fastest:
		return "fastest"
	case Default:
		return "default"
	case Better:
		return "better"
	case Best:
		return "best"
	default:
		return fmt.Sprintf("level-%d", int(l))
	}
}

// Config represents codec configuration.
type Config struct {
	Algorithm  Algorithm // Compression algorithm to use
	Level      Level     // Compression level
	BufferSize int       // Buffer size for the decompressing reader
}

// DefaultConfig returns the default codec configuration: Zstd at the default
// level with 64KB read buffers.
func DefaultConfig() *Config {
	return &Config{
		Algorithm:  Zstd,
		Level:      Default,
		BufferSize: 64 * 1024,
	}
}

// Codec wraps writers and readers with one algorithm. Codecs are stateless
// and safe for concurrent use.
type Codec struct {
	algorithm  Algorithm
	level      Level
	bufferSize int
}

// NewCodec creates a codec. If config is nil, the default configuration is used.
func NewCodec(config *Config) (*Codec, error) {
	if config == nil {
		config = DefaultConfig()
	}
	algorithm, err := ParseAlgorithm(string(config.Algorithm))
	if err != nil {
		return nil, err
	}
	level := config.Level
	if level == 0 {
		level = Default
	}
	bufferSize := config.BufferSize
	if bufferSize <= 0 {
		bufferSize = 64 * 1024
	}
	return &Codec{algorithm: algorithm, level: level, bufferSize: bufferSize}, nil
}

// Algorithm returns the compression algorithm
func (c *Codec) Algorithm() Algorithm { return c.algorithm }

// Level returns the compression level
func (c *Codec) Level() Level { return c.level }

// NewWriter returns a writer compressing into dst. Closing the returned
// writer flushes the codec but does not close dst.
func (c *Codec) NewWriter(dst io.Writer) (io.WriteCloser, error) {
	switch c.algorithm {
	case None:
		return nopWriteCloser{dst}, nil
	case Gzip:
		return gzip.NewWriterLevel(dst, mapGzipLevel(c.level))
	case Snappy:
		return snappy.NewBufferedWriter(dst), nil
	case S2:
		return s2.NewWriter(dst), nil
	case LZ4:
		w := lz4.NewWriter(dst)
		if err := w.Apply(lz4.CompressionLevelOption(mapLZ4Level(c.level))); err != nil {
			return nil, fmt.Errorf("failed to configure lz4 writer: %w", err)
		}
		return w, nil
	case Zstd:
		return zstd.NewWriter(dst, zstd.WithEncoderLevel(mapZstdLevel(c.level)))
	default:
		return nil, fmt.Errorf("unsupported compression algorithm: %s", c.algorithm)
	}
}

// NewReader returns a reader decompressing from src. Closing the returned
// reader releases codec resources but does not close src.
func (c *Codec) NewReader(src io.Reader) (io.ReadCloser, error) {
	buffered := bufio.NewReaderSize(src, c.bufferSize)
	switch c.algorithm {
	case None:
		return io.NopCloser(buffered), nil
	case Gzip:
		return gzip.NewReader(buffered)
	case Snappy:
		return io.NopCloser(snappy.NewReader(buffered)), nil
	case S2:
		return io.NopCloser(s2.NewReader(buffered)), nil
	case LZ4:
		return io.NopCloser(lz4.NewReader(buffered)), nil
	case Zstd:
		dec, err := zstd.NewReader(buffered)
		if err != nil {
			return nil, err
		}
		return dec.IOReadCloser(), nil
	default:
		return nil, fmt.Errorf("unsupported compression algorithm: %s", c.algorithm)
	}
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }

// Helper functions to map compression levels

func mapGzipLevel(level Level) int {
	switch level {
	case Fastest:
		return gzip.BestSpeed
	case Best:
		return gzip.BestCompression
	default:
		return gzip.DefaultCompression
	}
}

func mapLZ4Level(level Level) lz4.CompressionLevel {
	switch level {
	case Fastest:
		return lz4.Fast
	case Best:
		return lz4.Level9
	default:
		return lz4.Level5
	}
}

func mapZstdLevel(level Level) zstd.EncoderLevel {
	switch level {
	case Fastest:
		return zstd.SpeedFastest
	case Better:
		return zstd.SpeedBetterCompression
	case Best:
		return zstd.SpeedBestCompression
	default:
		return zstd.SpeedDefault
	}
}
