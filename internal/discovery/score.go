package discovery

import (
	"sort"
	"time"

	"github.com/akhil-m/bc-data-warehouse/internal/catalog"
)

// Scoring weights. The score ranks the catalog so that frequently updated,
// recently released, richer cubes get ingested first when runs are limited.
const (
	baseScore = 50

	frequentBonus   = 20 // monthly/weekly cubes
	infrequentBonus = 10 // annual/semi-annual cubes

	recentBonus = 20 // released within 30 days
	freshBonus  = 10 // released within 90 days

	perDimensionBonus = 3
	maxDimensionBonus = 30
)

// frequencyLabels maps WDS frequency codes to human-readable labels.
var frequencyLabels = map[int]string{
	1:  "Occasional",
	2:  "Biannual",
	6:  "Monthly",
	9:  "Quarterly",
	11: "Bimonthly",
	12: "Annual",
	13: "Biennial",
	14: "Triennial",
	15: "Quinquennial",
	16: "Decennial",
	17: "Every 3 years",
	18: "Census",
	19: "Every 4 years",
	20: "Every 6 years",
}

// DecodeFrequency maps a WDS frequency code to its label, "Unknown" for
// unrecognized codes.
func DecodeFrequency(code int) string {
	if label, ok := frequencyLabels[code]; ok {
		return label
	}

	return "Unknown"
}

// Score rates a cube's interestingness from 0-100ish: prefer frequent
// updates, recent releases, and dimension-rich tables.
func Score(cube Cube, now time.Time) int {
	score := baseScore

	switch cube.Frequency {
	case 6, 7: // monthly, weekly
		score += frequentBonus
	case 1, 2: // annual, semi-annual
		score += infrequentBonus
	}

	if released, ok := parseReleaseTime(cube.ReleaseTime); ok {
		age := now.Sub(released)
		switch {
		case age < 30*24*time.Hour:
			score += recentBonus
		case age < 90*24*time.Hour:
			score += freshBonus
		}
	}

	dimBonus := len(cube.Dimensions) * perDimensionBonus
	if dimBonus > maxDimensionBonus {
		dimBonus = maxDimensionBonus
	}

	return score + dimBonus
}

// BuildCatalog converts the cube list into catalog records sorted by score,
// descending. This sort is the one place catalog order is established;
// everything downstream preserves it.
func BuildCatalog(cubes []Cube, now time.Time) []catalog.Dataset {
	datasets := make([]catalog.Dataset, len(cubes))

	for i, cube := range cubes {
		datasets[i] = catalog.Dataset{
			ProductID:   cube.ProductID,
			Title:       cube.CubeTitleEn,
			Subject:     cube.SubjectEn,
			Frequency:   DecodeFrequency(cube.Frequency),
			ReleaseTime: cube.ReleaseTime,
			Dimensions:  len(cube.Dimensions),
			Datapoints:  cube.NbDatapoints,
			Score:       Score(cube, now),
		}
	}

	sort.SliceStable(datasets, func(i, j int) bool {
		return datasets[i].Score > datasets[j].Score
	})

	return datasets
}

// parseReleaseTime accepts the timestamp shapes the WDS has been seen to
// emit. Unparsable values simply earn no recency bonus.
func parseReleaseTime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}

	for _, layout := range []string{
		time.RFC3339,
		"2006-01-02T15:04",
		"2006-01-02",
	} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}

	return time.Time{}, false
}
