package catalog

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
)

// ErrCatalogUnavailable is returned when the catalog backing store is missing
// or unreadable. This is fatal for every dependent pipeline stage: an empty
// catalog is indistinguishable from a failed read, so there is no empty
// fallback and no retry here. The caller surfaces it and stops.
var ErrCatalogUnavailable = errors.New("catalog unavailable")

// Store reads and writes the canonical catalog object in S3.
//
// The catalog lives at s3://{bucket}/{key} as a single parquet object. The
// store treats it as a whole-file value: Load fetches and decodes everything,
// Save replaces the object atomically. Single-writer discipline applies (one
// pipeline run at a time); the store takes no locks.
type Store struct {
	client s3iface.S3API
	bucket string
	key    string
	logger *slog.Logger
}

// NewStore creates a catalog store over the given S3 client.
func NewStore(client s3iface.S3API, bucket, key string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}

	return &Store{
		client: client,
		bucket: bucket,
		key:    key,
		logger: logger,
	}
}

// Load fetches and decodes the full catalog, in stored order.
// Returns ErrCatalogUnavailable when the object is missing or undecodable.
func (s *Store) Load(ctx context.Context) ([]Dataset, error) {
	out, err := s.client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: fetching s3://%s/%s: %w", ErrCatalogUnavailable, s.bucket, s.key, err)
	}

	defer func() {
		_ = out.Body.Close()
	}()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading s3://%s/%s: %w", ErrCatalogUnavailable, s.bucket, s.key, err)
	}

	datasets, err := Unmarshal(ctx, data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCatalogUnavailable, err)
	}

	s.logger.Debug("Loaded catalog",
		slog.String("bucket", s.bucket),
		slog.String("key", s.key),
		slog.Int("datasets", len(datasets)),
	)

	return datasets, nil
}

// Save encodes the catalog and replaces the S3 object.
func (s *Store) Save(ctx context.Context, datasets []Dataset) error {
	data, err := Marshal(datasets)
	if err != nil {
		return err
	}

	_, err = s.client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return fmt.Errorf("uploading catalog to s3://%s/%s: %w", s.bucket, s.key, err)
	}

	s.logger.Info("Saved catalog",
		slog.String("bucket", s.bucket),
		slog.String("key", s.key),
		slog.Int("datasets", len(datasets)),
	)

	return nil
}

// LoadFile decodes a catalog parquet file from the local filesystem. Used to
// hand catalogs between pipeline stages without round-tripping through S3.
// Returns ErrCatalogUnavailable when the file is missing or undecodable.
func LoadFile(ctx context.Context, path string) ([]Dataset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %w", ErrCatalogUnavailable, path, err)
	}

	datasets, err := Unmarshal(ctx, data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCatalogUnavailable, err)
	}

	return datasets, nil
}

// SaveFile writes a catalog parquet file to the local filesystem.
func SaveFile(path string, datasets []Dataset) error {
	data, err := Marshal(datasets)
	if err != nil {
		return err
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}

	return nil
}
