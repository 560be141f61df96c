// Package reconcile computes which datasets need action by diffing three
// views of the world: the catalog (what exists upstream), the S3 inventory
// (what has been ingested), and the crawler configuration (what is
// queryable).
//
// Everything here is a pure, synchronous transformation over in-memory
// slices. Inputs are never mutated, empty inputs are valid, and catalog
// order is always preserved - callers rely on it to prioritize datasets.
package reconcile

import (
	"strings"

	"github.com/akhil-m/bc-data-warehouse/internal/catalog"
)

type (
	// FilterOptions controls FilterCatalog.
	FilterOptions struct {
		// SkipInvisible drops datasets whose title carries a placeholder
		// marker (published by StatsCan but intentionally non-public).
		// This is a policy filter, not a correctness one.
		SkipInvisible bool

		// InvisibleMarkers are the title substrings that mark a dataset as
		// non-public. Nil falls back to DefaultInvisibleMarkers. The exact
		// markers are an upstream heuristic, so they are injectable (see
		// Policy) rather than hard-coded.
		InvisibleMarkers []string

		// Limit caps the result to the first Limit records in catalog
		// order. 0 means unlimited.
		Limit int
	}

	// Diff is the transient result of one reconciliation pass. It is
	// recomputed from scratch on every pipeline run and never persisted.
	Diff struct {
		// New holds productIds present in the catalog but not in storage,
		// in catalog order. These need ingestion.
		New []int

		// AlreadyIngested holds productIds present in both catalog and
		// storage, in catalog order.
		AlreadyIngested []int

		// NewlyVisible holds storage folders not yet registered with the
		// crawler. These need crawler targets.
		NewlyVisible []string
	}
)

// FilterCatalog selects the datasets to ingest next.
//
// In order: records already in storage are dropped (re-runs never
// re-download), invisible datasets are dropped when the policy says so, and
// the remainder is cut to the first Limit records. The input order is the
// priority order and is never changed; the input slice is never mutated.
func FilterCatalog(datasets []catalog.Dataset, existingIDs map[int]struct{}, opts FilterOptions) []catalog.Dataset {
	markers := opts.InvisibleMarkers
	if markers == nil {
		markers = DefaultInvisibleMarkers
	}

	filtered := make([]catalog.Dataset, 0, len(datasets))

	for _, d := range datasets {
		if _, ok := existingIDs[d.ProductID]; ok {
			continue
		}

		if opts.SkipInvisible && titleMatchesAny(d.Title, markers) {
			continue
		}

		if opts.Limit > 0 && len(filtered) == opts.Limit {
			break
		}

		filtered = append(filtered, d)
	}

	return filtered
}

// FindNewFolders returns the storage folders not yet registered with the
// crawler, preserving storage listing order. This is the bridge between
// "ingested" and "queryable".
func FindNewFolders(existingFolders, crawledFolders []string) []string {
	crawled := make(map[string]struct{}, len(crawledFolders))
	for _, f := range crawledFolders {
		crawled[f] = struct{}{}
	}

	newFolders := make([]string, 0, len(existingFolders))

	for _, f := range existingFolders {
		if _, ok := crawled[f]; !ok {
			newFolders = append(newFolders, f)
		}
	}

	return newFolders
}

// ComputeDiff builds the full reconciliation diff for one run.
func ComputeDiff(datasets []catalog.Dataset, existingIDs map[int]struct{}, existingFolders, crawledFolders []string) Diff {
	diff := Diff{
		NewlyVisible: FindNewFolders(existingFolders, crawledFolders),
	}

	for _, d := range datasets {
		if _, ok := existingIDs[d.ProductID]; ok {
			diff.AlreadyIngested = append(diff.AlreadyIngested, d.ProductID)
		} else {
			diff.New = append(diff.New, d.ProductID)
		}
	}

	return diff
}

func titleMatchesAny(title string, markers []string) bool {
	for _, m := range markers {
		if m != "" && strings.Contains(title, m) {
			return true
		}
	}

	return false
}
