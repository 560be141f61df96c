package ingest

import (
	"errors"
	"fmt"
	"time"

	"github.com/akhil-m/bc-data-warehouse/internal/config"
)

// Validation errors for ingestion configuration.
var (
	ErrBucketEmpty     = errors.New("bucket must not be empty")
	ErrSourceEmpty     = errors.New("source must not be empty")
	ErrDataDirEmpty    = errors.New("data dir must not be empty")
	ErrNegativeByteCap = errors.New("byte caps must not be negative")
)

type (
	// Config holds ingestion and upload settings.
	Config struct {
		// Bucket is the warehouse S3 bucket.
		Bucket string

		// Source is the top-level source prefix inside the bucket
		// ("statscan" produces keys under statscan/data/).
		Source string

		// DataDir is the local directory parquet output is written to.
		DataDir string

		// ManifestPath is where the ingestion manifest CSV is written and
		// where the uploader reads it from.
		ManifestPath string

		// MaxDownloadBytes caps the size of a single source zip. Datasets
		// over the cap are skipped, not errored. Zero disables the cap.
		MaxDownloadBytes int64

		// MaxCSVBytes caps the uncompressed size of the CSV inside the
		// zip, checked after download when the real size is known.
		// Datasets over the cap are skipped. Zero disables the cap.
		MaxCSVBytes int64

		// MaxTotalBytes caps the cumulative parquet output of one run.
		// The run stops cleanly once the cap is reached. Zero disables
		// the cap.
		MaxTotalBytes int64

		// DownloadTimeout bounds a single zip download.
		DownloadTimeout time.Duration

		// RetryMax is the per-request retry budget for downloads.
		RetryMax int

		// UserAgent is sent on download requests.
		UserAgent string
	}
)

// LoadConfig loads ingestion configuration from environment variables with
// sensible defaults.
func LoadConfig() *Config {
	return &Config{
		Bucket:           config.GetEnvStr("PIPELINE_BUCKET", "build-cananda-dw"),
		Source:           config.GetEnvStr("PIPELINE_SOURCE", "statscan"),
		DataDir:          config.GetEnvStr("PIPELINE_DATA_DIR", "data"),
		ManifestPath:     config.GetEnvStr("PIPELINE_MANIFEST_PATH", "manifest.csv"),
		MaxDownloadBytes: config.GetEnvInt64("PIPELINE_MAX_DOWNLOAD_BYTES", 4*1024*1024*1024),
		MaxCSVBytes:      config.GetEnvInt64("PIPELINE_MAX_CSV_BYTES", 0),
		MaxTotalBytes:    config.GetEnvInt64("PIPELINE_MAX_TOTAL_BYTES", 0),
		DownloadTimeout:  config.GetEnvDuration("PIPELINE_DOWNLOAD_TIMEOUT", 30*time.Minute),
		RetryMax:         config.GetEnvInt("PIPELINE_DOWNLOAD_RETRY_MAX", 4),
		UserAgent:        config.GetEnvStr("STATCAN_USER_AGENT", "Mozilla/5.0"),
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.Bucket == "" {
		return fmt.Errorf("invalid ingest config: %w", ErrBucketEmpty)
	}

	if c.Source == "" {
		return fmt.Errorf("invalid ingest config: %w", ErrSourceEmpty)
	}

	if c.DataDir == "" {
		return fmt.Errorf("invalid ingest config: %w", ErrDataDirEmpty)
	}

	if c.MaxDownloadBytes < 0 || c.MaxCSVBytes < 0 || c.MaxTotalBytes < 0 {
		return fmt.Errorf("invalid ingest config: %w", ErrNegativeByteCap)
	}

	return nil
}
