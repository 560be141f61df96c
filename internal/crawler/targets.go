// Package crawler manages the Glue crawler's S3 target configuration.
//
// Two hard-won operational constraints shape everything here:
//
//  1. Every dataset folder must be its own target. Registering a shared
//     parent path makes the crawler's schema inference merge tables whose
//     columns are more than ~70% similar, silently fusing distinct datasets
//     into one table.
//  2. A crawler stuck above roughly 2,000 targets enters a RUNNING state
//     that never terminates and never errors. There is no retry out of it,
//     only proactive avoidance - which is why updates are batched well
//     under that ceiling.
package crawler

type (
	// Target is one S3 location registered with the crawler.
	Target struct {
		// Path is the full s3:// path of exactly one dataset folder
		// (trailing slash included), never a parent prefix.
		Path string
	}
)

// S3Targets builds one crawler target per folder under basePath.
//
// Each target points at that folder's own subpath. basePath is expected to
// carry a trailing slash ("s3://bucket/statscan/data/"); folder names are
// used exactly as given.
func S3Targets(folders []string, basePath string) []Target {
	targets := make([]Target, len(folders))
	for i, folder := range folders {
		targets[i] = Target{Path: basePath + folder + "/"}
	}

	return targets
}

// CatalogTarget is the target for the catalog's own S3 location. It is part
// of every update so the availability metadata stays queryable even when no
// new datasets were added.
func CatalogTarget(catalogBasePath string) Target {
	return Target{Path: catalogBasePath}
}

// UpdateParams assembles the full-replace target list for one crawler
// update: every existing target, the new ones, and always the catalog
// target. The external service's update model is replace-not-append, so
// omitting an existing target would deregister it.
//
// Duplicates (by path) are dropped, keeping first occurrence order - the
// catalog target in particular is already present after the first run.
func UpdateParams(existing, newTargets []Target, catalogTarget Target) []Target {
	merged := make([]Target, 0, len(existing)+len(newTargets)+1)
	seen := make(map[string]struct{}, len(existing)+len(newTargets)+1)

	appendUnique := func(t Target) {
		if _, ok := seen[t.Path]; ok {
			return
		}

		seen[t.Path] = struct{}{}

		merged = append(merged, t)
	}

	for _, t := range existing {
		appendUnique(t)
	}

	for _, t := range newTargets {
		appendUnique(t)
	}

	appendUnique(catalogTarget)

	return merged
}

// Batch splits new targets into chunks of at most maxBatchSize, preserving
// input order. It never fails on oversized input - there is no "too many
// datasets" error in the pipeline, only the external ceiling, which the
// batch size keeps us clear of across repeated incremental runs.
func Batch(targets []Target, maxBatchSize int) [][]Target {
	if len(targets) == 0 {
		return nil
	}

	if maxBatchSize <= 0 {
		maxBatchSize = DefaultMaxBatchSize
	}

	batches := make([][]Target, 0, (len(targets)+maxBatchSize-1)/maxBatchSize)

	for start := 0; start < len(targets); start += maxBatchSize {
		end := start + maxBatchSize
		if end > len(targets) {
			end = len(targets)
		}

		batches = append(batches, targets[start:end])
	}

	return batches
}
