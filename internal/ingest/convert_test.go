package ingest

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/apache/arrow/go/v10/arrow"
	"github.com/apache/arrow/go/v10/arrow/array"
	"github.com/apache/arrow/go/v10/arrow/memory"
	"github.com/apache/arrow/go/v10/parquet/file"
	"github.com/apache/arrow/go/v10/parquet/pqarrow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeColumns(t *testing.T) {
	got := SanitizeColumns([]string{"REF_DATE", "North American Industry Classification System (NAICS)", "Seasonally-adjusted"})

	assert.Equal(t, []string{
		"REF_DATE",
		"North_American_Industry_Classification_System_(NAICS)",
		"Seasonally_adjusted",
	}, got)
}

func TestConvertCSVToParquet(t *testing.T) {
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "input.csv")
	outPath := filepath.Join(dir, "output.parquet")

	input := "REF_DATE,GEO,VALUE,STATUS\n" +
		"2024-01,Canada,100.5,\n" +
		"2024-02,Canada,..,t\n" +
		"2024-03,British Columbia,F,x\n"
	require.NoError(t, os.WriteFile(csvPath, []byte(input), 0o600))

	require.NoError(t, ConvertCSVToParquet(csvPath, outPath))

	table := readParquetTable(t, outPath)
	defer table.Release()

	require.Equal(t, int64(3), table.NumRows())
	require.Equal(t, int64(4), table.NumCols())

	schema := table.Schema()
	for i, want := range []string{"REF_DATE", "GEO", "VALUE", "STATUS"} {
		assert.Equal(t, want, schema.Field(i).Name)
	}

	// ".." and "F" are StatsCan null symbols and must land as parquet
	// nulls, while real values survive verbatim.
	values := table.Column(2).Data().Chunk(0).(*array.String)
	assert.Equal(t, "100.5", values.Value(0))
	assert.True(t, values.IsNull(1))
	assert.True(t, values.IsNull(2))
}

func TestConvertCSVToParquetEmptyBody(t *testing.T) {
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "input.csv")
	outPath := filepath.Join(dir, "output.parquet")

	require.NoError(t, os.WriteFile(csvPath, []byte("REF_DATE,GEO\n"), 0o600))

	require.NoError(t, ConvertCSVToParquet(csvPath, outPath))

	table := readParquetTable(t, outPath)
	defer table.Release()

	assert.Equal(t, int64(0), table.NumRows())
	assert.Equal(t, int64(2), table.NumCols())
}

func TestConvertCSVToParquetMissingHeader(t *testing.T) {
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "input.csv")

	require.NoError(t, os.WriteFile(csvPath, nil, 0o600))

	err := ConvertCSVToParquet(csvPath, filepath.Join(dir, "out.parquet"))
	assert.Error(t, err)
}

func readParquetTable(t *testing.T, path string) arrow.Table {
	t.Helper()

	f, err := os.Open(path)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = f.Close()
	})

	reader, err := file.NewParquetReader(f)
	require.NoError(t, err)

	arrowReader, err := pqarrow.NewFileReader(reader, pqarrow.ArrowReadProperties{}, memory.DefaultAllocator)
	require.NoError(t, err)

	table, err := arrowReader.ReadTable(context.Background())
	require.NoError(t, err)

	return table
}
