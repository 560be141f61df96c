// Package inventory enumerates the datasets already materialized in S3.
//
// The bucket layout is {source}/data/{productId}-{title}/{productId}.parquet.
// Listing the folder level (one CommonPrefix per dataset) is the source of
// truth for "what has been ingested" - the catalog's available flag is only
// a cache of this listing.
package inventory

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"

	"github.com/akhil-m/bc-data-warehouse/internal/naming"
)

// Reader lists dataset folders under one source prefix in the warehouse
// bucket.
type Reader struct {
	client s3iface.S3API
	bucket string
	prefix string
	logger *slog.Logger
}

// NewReader creates an inventory reader for a source (e.g. "statscan").
func NewReader(client s3iface.S3API, bucket, source string, logger *slog.Logger) *Reader {
	if logger == nil {
		logger = slog.Default()
	}

	return &Reader{
		client: client,
		bucket: bucket,
		prefix: source + "/data/",
		logger: logger,
	}
}

// ListFolders returns every dataset folder name under the source prefix, in
// listing order ("12100163-international_trade", ...).
func (r *Reader) ListFolders(ctx context.Context) ([]string, error) {
	var folders []string

	input := &s3.ListObjectsV2Input{
		Bucket:    aws.String(r.bucket),
		Prefix:    aws.String(r.prefix),
		Delimiter: aws.String("/"),
	}

	err := r.client.ListObjectsV2PagesWithContext(ctx, input, func(page *s3.ListObjectsV2Output, _ bool) bool {
		for _, cp := range page.CommonPrefixes {
			if cp.Prefix == nil {
				continue
			}

			// "statscan/data/12100163-title/" -> "12100163-title"
			folder := strings.TrimSuffix(strings.TrimPrefix(*cp.Prefix, r.prefix), "/")
			if folder != "" {
				folders = append(folders, folder)
			}
		}

		return true
	})
	if err != nil {
		return nil, fmt.Errorf("listing s3://%s/%s: %w", r.bucket, r.prefix, err)
	}

	return folders, nil
}

// ListIDs returns the set of productIds with a materialized folder.
//
// Folders whose names do not parse are skipped with a warning, not an error:
// the bucket accumulates unrelated artifacts (backfills, manual exports) and
// a single foreign folder must not take down reconciliation.
func (r *Reader) ListIDs(ctx context.Context) (map[int]struct{}, error) {
	folders, err := r.ListFolders(ctx)
	if err != nil {
		return nil, err
	}

	ids := make(map[int]struct{}, len(folders))

	for _, folder := range folders {
		id, err := naming.ExtractProductID(folder)
		if err != nil {
			r.logger.Warn("Skipping foreign folder in inventory",
				slog.String("folder", folder),
				slog.String("error", err.Error()),
			)

			continue
		}

		ids[id] = struct{}{}
	}

	return ids, nil
}
