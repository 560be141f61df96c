package catalog

import (
	"time"
)

// Enhance returns a copy of the catalog with Available set for exactly the
// records whose ProductID is in ingestedIDs.
//
// Pure function: order and every other field are preserved, the input slice
// is never mutated. Availability is defined entirely by the ingestedIDs set
// passed in - Enhance does not inspect storage itself, so the caller decides
// what "ingested" means (normally the S3 inventory listing).
func Enhance(datasets []Dataset, ingestedIDs map[int]struct{}) []Dataset {
	out := make([]Dataset, len(datasets))

	for i, d := range datasets {
		_, ok := ingestedIDs[d.ProductID]
		d.Available = ok
		out[i] = d
	}

	return out
}

// StampIngested returns a copy of the catalog with LastIngested set to when
// for every record whose ProductID is in ingestedIDs. All other records and
// fields are untouched.
func StampIngested(datasets []Dataset, ingestedIDs map[int]struct{}, when time.Time) []Dataset {
	out := make([]Dataset, len(datasets))

	for i, d := range datasets {
		if _, ok := ingestedIDs[d.ProductID]; ok {
			d.LastIngested = when
		}

		out[i] = d
	}

	return out
}

// MergeMetadata combines a fresh discovery catalog with the existing catalog,
// keeping the fresh metadata (titles, scores, release times change between
// runs) while carrying over LastIngested from the existing records.
//
// Records only present in the existing catalog are dropped: the fresh catalog
// is the authoritative universe of datasets. Order follows the fresh catalog.
func MergeMetadata(fresh, existing []Dataset) []Dataset {
	lastIngested := make(map[int]time.Time, len(existing))
	for _, d := range existing {
		if !d.LastIngested.IsZero() {
			lastIngested[d.ProductID] = d.LastIngested
		}
	}

	out := make([]Dataset, len(fresh))

	for i, d := range fresh {
		if t, ok := lastIngested[d.ProductID]; ok {
			d.LastIngested = t
		}

		out[i] = d
	}

	return out
}
