package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
)

type (
	// Uploader pushes locally produced parquet files to the warehouse
	// bucket under {source}/data/.
	Uploader struct {
		client s3iface.S3API
		bucket string
		prefix string
		logger *slog.Logger
	}

	// UploadStats summarizes one upload run.
	UploadStats struct {
		Uploaded int
		Missing  int
		Bytes    int64
	}
)

// NewUploader creates an uploader for the given bucket and source prefix.
func NewUploader(client s3iface.S3API, bucket, source string, logger *slog.Logger) *Uploader {
	if logger == nil {
		logger = slog.Default()
	}

	return &Uploader{
		client: client,
		bucket: bucket,
		prefix: source + "/data/",
		logger: logger,
	}
}

// Upload pushes every manifest entry from dataDir to S3, preserving the
// folder layout. Entries whose local file is missing are logged and
// skipped: a partially cleaned data dir must not abort the rest of the
// run. An empty manifest is a clean no-op.
func (u *Uploader) Upload(ctx context.Context, dataDir string, entries []ManifestEntry) (UploadStats, error) {
	var stats UploadStats

	for _, entry := range entries {
		local := filepath.Join(dataDir, filepath.FromSlash(entry.FilePath))

		f, err := os.Open(local)
		if err != nil {
			if os.IsNotExist(err) {
				u.logger.Warn("Manifest entry missing on disk, skipping",
					slog.Int("product_id", entry.ProductID),
					slog.String("path", local),
				)

				stats.Missing++

				continue
			}

			return stats, fmt.Errorf("opening %s: %w", local, err)
		}

		key := path.Join(u.prefix, entry.FilePath)

		_, err = u.client.PutObjectWithContext(ctx, &s3.PutObjectInput{
			Bucket: aws.String(u.bucket),
			Key:    aws.String(key),
			Body:   f,
		})

		closeErr := f.Close()

		if err != nil {
			return stats, fmt.Errorf("uploading s3://%s/%s: %w", u.bucket, key, err)
		}

		if closeErr != nil {
			return stats, fmt.Errorf("closing %s: %w", local, closeErr)
		}

		stats.Uploaded++
		stats.Bytes += entry.SizeBytes

		u.logger.Info("Uploaded",
			slog.Int("product_id", entry.ProductID),
			slog.String("key", key),
			slog.Int64("size_bytes", entry.SizeBytes),
		)
	}

	u.logger.Info("Upload complete",
		slog.Int("uploaded", stats.Uploaded),
		slog.Int("missing", stats.Missing),
		slog.Int64("bytes", stats.Bytes),
	)

	return stats, nil
}
