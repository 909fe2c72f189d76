package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/coltable/pkg/json"
	"github.com/ajitpratap0/coltable/pkg/testutil"
)

const scoresCSV = `id,class,score
r1,a,1.5
r2,b,
r3,c,3.0
`

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	err := run(testutil.Context(t), append(args, "--log-level", "error"), &out)
	return out.String(), err
}

func importScores(t *testing.T, extra ...string) string {
	t.Helper()
	dir := t.TempDir()
	src := testutil.WriteFile(t, dir, "scores.csv", scoresCSV)
	tableDir := filepath.Join(dir, "scores")

	out, err := runCLI(t, append([]string{"import", src, tableDir, "--row-key-column", "id"}, extra...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "imported 3 rows")
	return tableDir
}

func TestImportAndCat(t *testing.T) {
	tableDir := importScores(t)

	out, err := runCLI(t, "cat", tableDir)
	require.NoError(t, err)
	assert.Equal(t, "key\tclass\tscore\nr1\ta\t1.5\nr2\tb\t?\nr3\tc\t3\n", out)

	out, err = runCLI(t, "cat", tableDir, "--columns", "class", "--from", "1", "--to", "2")
	require.NoError(t, err)
	assert.Equal(t, "key\tclass\nr2\tb\nr3\tc\n", out)
}

func TestCatJSONLines(t *testing.T) {
	tableDir := importScores(t, "--store-format", "stream", "--compression", "s2")

	out, err := runCLI(t, "cat", tableDir, "--format", "jsonl")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)

	var row map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &row, false))
	assert.Equal(t, "r2", row["_key"])
	assert.Equal(t, "b", row["class"])
	assert.Nil(t, row["score"])
	assert.Contains(t, row, "score")
}

func TestCatJSONNonFiniteDoubles(t *testing.T) {
	dir := t.TempDir()
	src := testutil.WriteFile(t, dir, "v.csv", "id,v\na,NaN\nb,1.5\nc,-Inf\nd,+Inf\n")
	tableDir := filepath.Join(dir, "v")
	_, err := runCLI(t, "import", src, tableDir, "--row-key-column", "id")
	require.NoError(t, err)

	out, err := runCLI(t, "cat", tableDir, "--format", "json")
	require.NoError(t, err)
	var rows []map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &rows, false))
	require.Len(t, rows, 4)
	assert.Equal(t, "NaN", rows[0]["v"])
	assert.Equal(t, 1.5, rows[1]["v"])
	assert.Equal(t, "-Inf", rows[2]["v"])
	assert.Equal(t, "+Inf", rows[3]["v"])
}

func TestInfo(t *testing.T) {
	tableDir := importScores(t)

	out, err := runCLI(t, "info", tableDir)
	require.NoError(t, err)
	var info map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &info, false))
	assert.Equal(t, "arrow-ipc-file", info["store_factory"])
	assert.EqualValues(t, 3, info["size"])
	assert.Equal(t, true, info["has_row_key"])
}

func TestCommandErrors(t *testing.T) {
	_, err := runCLI(t, "cat", filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)

	tableDir := importScores(t)
	_, err = runCLI(t, "cat", tableDir, "--columns", "nope")
	assert.Error(t, err)
	_, err = runCLI(t, "cat", tableDir, "--format", "xml")
	assert.Error(t, err)
	_, err = runCLI(t, "import", "a.csv", "out", "--store-format", "parquet")
	assert.Error(t, err)
}

func TestVersion(t *testing.T) {
	out, err := runCLI(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "coltable v"+version)
}
