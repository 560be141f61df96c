// Package catalog holds the ledger of all known StatsCan datasets and their
// ingestion status.
//
// The catalog is an ordered list, not a set: discovery writes it sorted by
// interestingness score, and downstream filtering with a limit relies on that
// order to prioritize datasets. Nothing in this package may reorder it.
package catalog

import (
	"time"
)

type (
	// Dataset represents one row of the catalog - Domain Model.
	//
	// One record per StatsCan data cube. Descriptive metadata (Subject,
	// Frequency, ReleaseTime, Dimensions, Datapoints) is opaque pass-through
	// from the source API; the pipeline only interprets ProductID, Title,
	// Score, Available and LastIngested.
	Dataset struct {
		// ProductID is the stable StatsCan cube identifier, unique across
		// the catalog. Primary key for all reconciliation.
		ProductID int

		// Title is the human-readable English cube title. Folder and table
		// names are derived from it via naming.FolderName.
		Title string

		// Subject is the StatsCan subject classification (pass-through).
		Subject string

		// Frequency is the release cadence label ("Monthly", "Annual", ...).
		// Update detection maps it to a re-ingestion interval.
		Frequency string

		// ReleaseTime is the last release timestamp as reported by the API
		// (pass-through, RFC3339-ish).
		ReleaseTime string

		// Dimensions is the number of cube dimensions (pass-through).
		Dimensions int

		// Datapoints is the cube datapoint count (pass-through).
		Datapoints int64

		// Score is the interestingness score assigned at discovery.
		// The catalog is sorted by it, descending.
		Score int

		// Available is true iff a materialized parquet file for this
		// ProductID currently exists in S3. It is a cached derived fact,
		// recomputed by Enhance from the storage inventory; storage is the
		// source of truth, never this flag.
		Available bool

		// LastIngested is when the dataset was last successfully ingested.
		// Zero means never.
		LastIngested time.Time
	}
)

// ProductIDs returns the ids of every record, in catalog order.
func ProductIDs(datasets []Dataset) []int {
	ids := make([]int, len(datasets))
	for i, d := range datasets {
		ids[i] = d.ProductID
	}

	return ids
}

// IDSet builds a membership set from a list of product ids.
func IDSet(ids []int) map[int]struct{} {
	set := make(map[int]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}

	return set
}
