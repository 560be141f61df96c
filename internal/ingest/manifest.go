package ingest

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
)

type (
	// ManifestEntry records one parquet file produced by an ingestion run.
	// The manifest is what the uploader consumes, so ingestion and upload
	// can run as separate invocations.
	ManifestEntry struct {
		ProductID int
		Title     string
		SizeBytes int64
		FilePath  string // relative to the data dir
	}
)

var manifestHeader = []string{"productId", "title", "size_bytes", "file_path"}

// WriteManifest writes entries as a CSV manifest. An empty entry list still
// produces a header-only file so a later upload is a clean no-op.
func WriteManifest(path string, entries []ManifestEntry) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating manifest %s: %w", path, err)
	}

	w := csv.NewWriter(f)

	if err := w.Write(manifestHeader); err != nil {
		_ = f.Close()

		return fmt.Errorf("writing manifest header: %w", err)
	}

	for _, e := range entries {
		record := []string{
			strconv.Itoa(e.ProductID),
			e.Title,
			strconv.FormatInt(e.SizeBytes, 10),
			e.FilePath,
		}

		if err := w.Write(record); err != nil {
			_ = f.Close()

			return fmt.Errorf("writing manifest entry %d: %w", e.ProductID, err)
		}
	}

	w.Flush()

	if err := w.Error(); err != nil {
		_ = f.Close()

		return fmt.Errorf("flushing manifest: %w", err)
	}

	return f.Close()
}

// ReadManifest reads a CSV manifest written by WriteManifest.
func ReadManifest(path string) ([]ManifestEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening manifest %s: %w", path, err)
	}

	defer func() {
		_ = f.Close()
	}()

	r := csv.NewReader(f)
	r.FieldsPerRecord = len(manifestHeader)

	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading manifest %s: %w", path, err)
	}

	if len(records) == 0 {
		return nil, fmt.Errorf("manifest %s is empty, expected a header row", path)
	}

	entries := make([]ManifestEntry, 0, len(records)-1)

	for _, record := range records[1:] {
		productID, err := strconv.Atoi(record[0])
		if err != nil {
			return nil, fmt.Errorf("manifest %s: bad productId %q: %w", path, record[0], err)
		}

		size, err := strconv.ParseInt(record[2], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("manifest %s: bad size_bytes %q: %w", path, record[2], err)
		}

		entries = append(entries, ManifestEntry{
			ProductID: productID,
			Title:     record[1],
			SizeBytes: size,
			FilePath:  record[3],
		})
	}

	return entries, nil
}
