package compression

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func roundTrip(t *testing.T, codec *Codec, original []byte) []byte {
	t.Helper()

	var buf bytes.Buffer
	w, err := codec.NewWriter(&buf)
	require.NoError(t, err)
	_, err = w.Write(original)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	r, err := codec.NewReader(&buf)
	require.NoError(t, err)
	defer r.Close()

	out, err := io.ReadAll(r)
	require.NoError(t, err)
	return out
}

func TestCodecRoundTrip(t *testing.T) {
	original := bytes.Repeat([]byte("columnar table data "), 500)

	for _, algorithm := range []Algorithm{None, Gzip, Snappy, S2, LZ4, Zstd} {
		t.Run(string(algorithm), func(t *testing.T) {
			codec, err := NewCodec(&Config{Algorithm: algorithm, Level: Default})
			require.NoError(t, err)
			assert.Equal(t, algorithm, codec.Algorithm())

			assert.Equal(t, original, roundTrip(t, codec, original))
		})
	}
}

func TestLZ4CompressionLevels(t *testing.T) {
	testData := bytes.Repeat([]byte("test data for compression "), 100)

	for _, level := range []Level{Fastest, Default, Better, Best} {
		t.Run(level.String(), func(t *testing.T) {
			codec, err := NewCodec(&Config{Algorithm: LZ4, Level: level})
			require.NoError(t, err)
			assert.Equal(t, testData, roundTrip(t, codec, testData))
		})
	}
}

func TestParseAlgorithm(t *testing.T) {
	a, err := ParseAlgorithm(" ZSTD ")
	require.NoError(t, err)
	assert.Equal(t, Zstd, a)

	a, err = ParseAlgorithm("")
	require.NoError(t, err)
	assert.Equal(t, None, a)

	_, err = ParseAlgorithm("brotli")
	assert.Error(t, err)

	_, err = NewCodec(&Config{Algorithm: "brotli"})
	assert.Error(t, err)
}
