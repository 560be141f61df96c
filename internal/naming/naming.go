// Package naming maps StatsCan dataset identity (productId, title) to
// storage folder names and query-engine table names, and back.
//
// The mapping has to stay stable across pipeline runs: folder names are the
// join key between the catalog, the S3 inventory, and the Glue crawler
// targets. Changing any rule here orphans every previously ingested dataset.
package naming

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrMalformedName is returned when a folder or table name carries no
// recognizable productId prefix. Callers listing storage must treat this as
// "foreign object, skip it", never as a pipeline failure: buckets accumulate
// unrelated and legacy artifacts over time.
var ErrMalformedName = errors.New("no productId prefix in name")

// SanitizeName replaces every space, forward slash, and hyphen with an
// underscore.
//
// This is a deliberately narrow contract, not a general slugifier: the three
// replaced characters are the ones that break parquet/Avro column names and
// Athena table identifiers. Everything else (unicode, punctuation) passes
// through unchanged so that titles stay recognizable.
//
// SanitizeName is idempotent: SanitizeName(SanitizeName(s)) == SanitizeName(s).
func SanitizeName(s string) string {
	replacer := strings.NewReplacer(" ", "_", "/", "_", "-", "_")

	return replacer.Replace(s)
}

// FolderName builds the storage folder name for a dataset.
//
// Format: "{productId}-{sanitized title}". The productId prefix before the
// first hyphen is what ExtractProductID recovers; the sanitized title never
// contains a hyphen, so the first hyphen is always the separator.
func FolderName(productID int, title string) string {
	return fmt.Sprintf("%d-%s", productID, SanitizeName(title))
}

// ExtractProductID recovers the productId from a folder or table name.
//
// The id is the leading all-digit token before the first separator
// ("12100163-trade" → 12100163, "12100163_trade" → 12100163). Returns
// ErrMalformedName (wrapped with the offending name) when the name has no
// digit prefix.
func ExtractProductID(name string) (int, error) {
	end := 0
	for end < len(name) && name[end] >= '0' && name[end] <= '9' {
		end++
	}

	if end == 0 {
		return 0, fmt.Errorf("%q: %w", name, ErrMalformedName)
	}

	// A digit prefix immediately followed by more title text (no separator)
	// is some other object's name, not ours.
	if end < len(name) && name[end] != '-' && name[end] != '_' {
		return 0, fmt.Errorf("%q: %w", name, ErrMalformedName)
	}

	id, err := strconv.Atoi(name[:end])
	if err != nil {
		return 0, fmt.Errorf("%q: %w", name, ErrMalformedName)
	}

	return id, nil
}
