package ingest

import (
	"context"
	"log/slog"

	"github.com/akhil-m/bc-data-warehouse/internal/catalog"
)

type (
	// Fetcher materializes one dataset as a local parquet file. Satisfied
	// by Downloader.
	Fetcher interface {
		Fetch(ctx context.Context, productID int, title string) (Result, error)
	}

	// Runner drives one sequential ingestion pass over a set of datasets.
	Runner struct {
		fetcher Fetcher
		cfg     *Config
		logger  *slog.Logger
	}

	// RunStats summarizes one ingestion run.
	RunStats struct {
		Ingested   int
		Skipped    int
		Failed     int
		TotalBytes int64
		CapReached bool
	}
)

// NewRunner creates a runner.
func NewRunner(fetcher Fetcher, cfg *Config, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}

	return &Runner{fetcher: fetcher, cfg: cfg, logger: logger}
}

// Run ingests datasets in order until the list is exhausted or the
// cumulative output reaches MaxTotalBytes. A failure on one dataset is
// logged and does not abort the rest, except for context cancellation.
// Returns manifest entries for every dataset that produced a parquet file.
func (r *Runner) Run(ctx context.Context, datasets []catalog.Dataset) ([]ManifestEntry, RunStats, error) {
	var (
		entries []ManifestEntry
		stats   RunStats
	)

	for i, ds := range datasets {
		if err := ctx.Err(); err != nil {
			return entries, stats, err
		}

		if r.cfg.MaxTotalBytes > 0 && stats.TotalBytes >= r.cfg.MaxTotalBytes {
			stats.CapReached = true

			r.logger.Info("Total byte cap reached, stopping run",
				slog.Int64("total_bytes", stats.TotalBytes),
				slog.Int64("max_bytes", r.cfg.MaxTotalBytes),
				slog.Int("remaining", len(datasets)-i),
			)

			break
		}

		r.logger.Info("Processing dataset",
			slog.String("dataset", DisplayTitle(ds.ProductID, ds.Title)),
			slog.Int("position", i+1),
			slog.Int("of", len(datasets)),
		)

		result, err := r.fetcher.Fetch(ctx, ds.ProductID, ds.Title)
		if err != nil {
			if ctx.Err() != nil {
				return entries, stats, ctx.Err()
			}

			stats.Failed++

			r.logger.Warn("Dataset failed, continuing",
				slog.String("dataset", DisplayTitle(ds.ProductID, ds.Title)),
				slog.String("error", err.Error()),
			)

			continue
		}

		if result.Skipped {
			stats.Skipped++

			continue
		}

		stats.Ingested++
		stats.TotalBytes += result.SizeBytes

		entries = append(entries, ManifestEntry{
			ProductID: result.ProductID,
			Title:     result.Title,
			SizeBytes: result.SizeBytes,
			FilePath:  result.FilePath,
		})
	}

	r.logger.Info("Ingestion run complete",
		slog.Int("ingested", stats.Ingested),
		slog.Int("skipped", stats.Skipped),
		slog.Int("failed", stats.Failed),
		slog.Int64("total_bytes", stats.TotalBytes),
	)

	return entries, stats, nil
}
