package reconcile

import (
	"time"

	"github.com/akhil-m/bc-data-warehouse/internal/catalog"
)

type (
	// Reason records why a dataset was selected for processing.
	Reason string

	// Candidate is a dataset selected for processing with its reason.
	Candidate struct {
		Dataset catalog.Dataset
		Reason  Reason
	}
)

const (
	// ReasonNew marks a dataset never ingested before.
	ReasonNew Reason = "new"

	// ReasonUpdateDue marks an ingested dataset whose release cadence says
	// a fresh version should exist upstream.
	ReasonUpdateDue Reason = "update_due"
)

const day = 24 * time.Hour

// defaultUpdateInterval is used for unknown frequency labels. Six months is
// conservative: better a stale occasional table than re-downloading large
// cubes on every run.
const defaultUpdateInterval = 180 * day

// frequencyIntervals maps StatsCan frequency labels to the wait between
// re-ingestion checks.
var frequencyIntervals = map[string]time.Duration{
	"Daily":       1 * day,
	"Weekly":      7 * day,
	"Bi-weekly":   14 * day,
	"Monthly":     30 * day,
	"Quarterly":   90 * day,
	"Semi-annual": 180 * day,
	"Annual":      365 * day,
	"Occasional":  180 * day,
}

// UpdateInterval returns how long to wait after an ingestion before checking
// the dataset for a new release.
func UpdateInterval(frequency string) time.Duration {
	if interval, ok := frequencyIntervals[frequency]; ok {
		return interval
	}

	return defaultUpdateInterval
}

// UpdateDue reports whether enough time has passed since the last ingestion
// for the dataset's release cadence.
func UpdateDue(frequency string, lastIngested, now time.Time) bool {
	return now.Sub(lastIngested) >= UpdateInterval(frequency)
}

// IdentifyForProcessing selects the datasets needing work: everything in the
// fresh catalog that was never ingested (ReasonNew), plus everything whose
// cadence says an update is due (ReasonUpdateDue).
//
// The existing catalog supplies LastIngested; a record with a zero
// LastIngested counts as new even when present in the existing catalog (it
// was discovered but never successfully ingested). Results follow fresh
// catalog order.
func IdentifyForProcessing(fresh, existing []catalog.Dataset, now time.Time) []Candidate {
	lastIngested := make(map[int]time.Time, len(existing))
	for _, d := range existing {
		lastIngested[d.ProductID] = d.LastIngested
	}

	candidates := make([]Candidate, 0, len(fresh))

	for _, d := range fresh {
		ingested, known := lastIngested[d.ProductID]

		switch {
		case !known || ingested.IsZero():
			candidates = append(candidates, Candidate{Dataset: d, Reason: ReasonNew})
		case UpdateDue(d.Frequency, ingested, now):
			candidates = append(candidates, Candidate{Dataset: d, Reason: ReasonUpdateDue})
		}
	}

	return candidates
}

// ApplyLimitToNew caps the number of ReasonNew candidates while keeping every
// ReasonUpdateDue candidate: a small test run should still refresh stale
// datasets. Order is preserved; limit 0 means unlimited.
func ApplyLimitToNew(candidates []Candidate, limit int) []Candidate {
	if limit <= 0 {
		return candidates
	}

	out := make([]Candidate, 0, len(candidates))
	newCount := 0

	for _, c := range candidates {
		if c.Reason == ReasonNew {
			if newCount == limit {
				continue
			}

			newCount++
		}

		out = append(out, c)
	}

	return out
}
