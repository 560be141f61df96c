package catalog

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/apache/arrow/go/v10/arrow"
	"github.com/apache/arrow/go/v10/arrow/array"
	"github.com/apache/arrow/go/v10/arrow/memory"
	"github.com/apache/arrow/go/v10/parquet"
	"github.com/apache/arrow/go/v10/parquet/file"
	"github.com/apache/arrow/go/v10/parquet/pqarrow"
)

// Parquet column names. These are the wire format shared with the Athena
// tables built over the catalog, so renames here are schema migrations.
const (
	colProductID    = "productId"
	colTitle        = "title"
	colSubject      = "subject"
	colFrequency    = "frequency"
	colReleaseTime  = "releaseTime"
	colDimensions   = "dimensions"
	colDatapoints   = "nbDatapoints"
	colScore        = "score"
	colAvailable    = "available"
	colLastIngested = "last_ingestion_date"
)

const writeChunkSize = 4096

// schema is the arrow schema of catalog.parquet.
var schema = arrow.NewSchema([]arrow.Field{
	{Name: colProductID, Type: arrow.PrimitiveTypes.Int64},
	{Name: colTitle, Type: arrow.BinaryTypes.String},
	{Name: colSubject, Type: arrow.BinaryTypes.String},
	{Name: colFrequency, Type: arrow.BinaryTypes.String},
	{Name: colReleaseTime, Type: arrow.BinaryTypes.String},
	{Name: colDimensions, Type: arrow.PrimitiveTypes.Int64},
	{Name: colDatapoints, Type: arrow.PrimitiveTypes.Int64},
	{Name: colScore, Type: arrow.PrimitiveTypes.Int64},
	{Name: colAvailable, Type: arrow.FixedWidthTypes.Boolean},
	{Name: colLastIngested, Type: arrow.FixedWidthTypes.Timestamp_us, Nullable: true},
}, nil)

// Marshal encodes a catalog as parquet bytes, preserving record order.
func Marshal(datasets []Dataset) ([]byte, error) {
	mem := memory.NewGoAllocator()

	builder := array.NewRecordBuilder(mem, schema)
	defer builder.Release()

	for _, d := range datasets {
		builder.Field(0).(*array.Int64Builder).Append(int64(d.ProductID))
		builder.Field(1).(*array.StringBuilder).Append(d.Title)
		builder.Field(2).(*array.StringBuilder).Append(d.Subject)
		builder.Field(3).(*array.StringBuilder).Append(d.Frequency)
		builder.Field(4).(*array.StringBuilder).Append(d.ReleaseTime)
		builder.Field(5).(*array.Int64Builder).Append(int64(d.Dimensions))
		builder.Field(6).(*array.Int64Builder).Append(d.Datapoints)
		builder.Field(7).(*array.Int64Builder).Append(int64(d.Score))
		builder.Field(8).(*array.BooleanBuilder).Append(d.Available)

		ts := builder.Field(9).(*array.TimestampBuilder)
		if d.LastIngested.IsZero() {
			ts.AppendNull()
		} else {
			ts.Append(arrow.Timestamp(d.LastIngested.UTC().UnixMicro()))
		}
	}

	rec := builder.NewRecord()
	defer rec.Release()

	table := array.NewTableFromRecords(schema, []arrow.Record{rec})
	defer table.Release()

	var buf bytes.Buffer

	props := parquet.NewWriterProperties(parquet.WithDictionaryDefault(false))
	if err := pqarrow.WriteTable(table, &buf, writeChunkSize, props, pqarrow.DefaultWriterProps()); err != nil {
		return nil, fmt.Errorf("writing catalog parquet: %w", err)
	}

	return buf.Bytes(), nil
}

// Unmarshal decodes catalog parquet bytes back into ordered records.
func Unmarshal(ctx context.Context, data []byte) ([]Dataset, error) {
	pf, err := file.NewParquetReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("opening catalog parquet: %w", err)
	}
	defer pf.Close()

	mem := memory.NewGoAllocator()

	reader, err := pqarrow.NewFileReader(pf, pqarrow.ArrowReadProperties{}, mem)
	if err != nil {
		return nil, fmt.Errorf("reading catalog parquet: %w", err)
	}

	table, err := reader.ReadTable(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading catalog table: %w", err)
	}
	defer table.Release()

	indices, err := columnIndices(table.Schema())
	if err != nil {
		return nil, err
	}

	datasets := make([]Dataset, 0, table.NumRows())

	tr := array.NewTableReader(table, writeChunkSize)
	defer tr.Release()

	for tr.Next() {
		rec := tr.Record()

		productIDs := rec.Column(indices[colProductID]).(*array.Int64)
		titles := rec.Column(indices[colTitle]).(*array.String)
		subjects := rec.Column(indices[colSubject]).(*array.String)
		frequencies := rec.Column(indices[colFrequency]).(*array.String)
		releaseTimes := rec.Column(indices[colReleaseTime]).(*array.String)
		dimensions := rec.Column(indices[colDimensions]).(*array.Int64)
		datapoints := rec.Column(indices[colDatapoints]).(*array.Int64)
		scores := rec.Column(indices[colScore]).(*array.Int64)
		available := rec.Column(indices[colAvailable]).(*array.Boolean)
		lastIngested := rec.Column(indices[colLastIngested]).(*array.Timestamp)

		for i := 0; i < int(rec.NumRows()); i++ {
			d := Dataset{
				ProductID:   int(productIDs.Value(i)),
				Title:       titles.Value(i),
				Subject:     subjects.Value(i),
				Frequency:   frequencies.Value(i),
				ReleaseTime: releaseTimes.Value(i),
				Dimensions:  int(dimensions.Value(i)),
				Datapoints:  datapoints.Value(i),
				Score:       int(scores.Value(i)),
				Available:   available.Value(i),
			}

			if !lastIngested.IsNull(i) {
				d.LastIngested = time.UnixMicro(int64(lastIngested.Value(i))).UTC()
			}

			datasets = append(datasets, d)
		}
	}

	return datasets, nil
}

// columnIndices resolves every catalog column to its index in the stored
// schema, so files written with extra or reordered columns still decode.
func columnIndices(s *arrow.Schema) (map[string]int, error) {
	names := []string{
		colProductID, colTitle, colSubject, colFrequency, colReleaseTime,
		colDimensions, colDatapoints, colScore, colAvailable, colLastIngested,
	}

	indices := make(map[string]int, len(names))

	for _, name := range names {
		matches := s.FieldIndices(name)
		if len(matches) == 0 {
			return nil, fmt.Errorf("catalog parquet missing column %q", name)
		}

		indices[name] = matches[0]
	}

	return indices, nil
}
