// Package ingest downloads StatsCan full-table CSVs, converts them to
// parquet, and pushes the results to the warehouse bucket.
//
// Processing is deliberately sequential: one dataset is downloaded,
// converted, and released before the next starts, bounding peak memory when
// a run touches hundreds of cubes. The reconciliation contracts (idempotent
// filtering, full-replace crawler updates) are what make interrupting and
// re-running this loop safe.
package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"

	"github.com/apache/arrow/go/v10/arrow"
	arrowcsv "github.com/apache/arrow/go/v10/arrow/csv"
	"github.com/apache/arrow/go/v10/parquet"
	"github.com/apache/arrow/go/v10/parquet/pqarrow"

	"github.com/akhil-m/bc-data-warehouse/internal/naming"
)

const conversionChunkSize = 4096

// statcanNullValues are the standard table symbols StatsCan embeds in data
// cells (suppressed, unreliable, terminated, quality grades, ...). They are
// parsed as nulls instead of strings so Athena queries don't trip over them.
// Official list: https://www.statcan.gc.ca/en/concepts/definitions/guide-symbol
var statcanNullValues = []string{
	"",
	".", "..", "...",
	"x", "X",
	"E", "e",
	"F", "f",
	"t", "T",
	"A", "B", "C", "D",
	"p", "r",
	"0s",
}

// SanitizeColumns applies naming.SanitizeName to every column name.
func SanitizeColumns(columns []string) []string {
	out := make([]string, len(columns))
	for i, col := range columns {
		out[i] = naming.SanitizeName(col)
	}

	return out
}

// StringSchema builds an arrow schema with every column as a nullable
// string.
//
// All columns are forced to string on purpose: StatsCan mixes types within
// a column ("4680, 4690", "1011-C"), and the standard data-lake pattern is
// to preserve raw values and cast at query time in Athena. Type inference
// here would produce schemas that differ between slices of the same table.
func StringSchema(columns []string) *arrow.Schema {
	fields := make([]arrow.Field, len(columns))
	for i, col := range columns {
		fields[i] = arrow.Field{Name: col, Type: arrow.BinaryTypes.String, Nullable: true}
	}

	return arrow.NewSchema(fields, nil)
}

// ConvertCSVToParquet streams a CSV file into a parquet file, sanitizing
// column names and forcing every column to string. Works batch-by-batch so
// multi-gigabyte tables convert in bounded memory.
func ConvertCSVToParquet(csvPath, outPath string) error {
	header, err := readHeader(csvPath)
	if err != nil {
		return err
	}

	schema := StringSchema(SanitizeColumns(header))

	in, err := os.Open(csvPath)
	if err != nil {
		return fmt.Errorf("opening %s: %w", csvPath, err)
	}

	defer func() {
		_ = in.Close()
	}()

	out, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("creating %s: %w", outPath, err)
	}

	defer func() {
		_ = out.Close()
	}()

	reader := arrowcsv.NewReader(in, schema,
		arrowcsv.WithHeader(true),
		arrowcsv.WithChunk(conversionChunkSize),
		arrowcsv.WithNullReader(false, statcanNullValues...),
	)
	defer reader.Release()

	props := parquet.NewWriterProperties(parquet.WithDictionaryDefault(false))

	writer, err := pqarrow.NewFileWriter(schema, out, props, pqarrow.DefaultWriterProps())
	if err != nil {
		return fmt.Errorf("creating parquet writer for %s: %w", outPath, err)
	}

	for reader.Next() {
		if err := writer.Write(reader.Record()); err != nil {
			_ = writer.Close()

			return fmt.Errorf("writing parquet batch to %s: %w", outPath, err)
		}
	}

	if err := reader.Err(); err != nil && err != io.EOF {
		_ = writer.Close()

		return fmt.Errorf("reading %s: %w", csvPath, err)
	}

	if err := writer.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", outPath, err)
	}

	return nil
}

// readHeader returns the raw (unsanitized) column names from the CSV's
// first row.
func readHeader(csvPath string) ([]string, error) {
	f, err := os.Open(csvPath)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", csvPath, err)
	}

	defer func() {
		_ = f.Close()
	}()

	header, err := csv.NewReader(f).Read()
	if err != nil {
		return nil, fmt.Errorf("reading header of %s: %w", csvPath, err)
	}

	return header, nil
}
