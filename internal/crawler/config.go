package crawler

import (
	"errors"
	"strings"

	"github.com/akhil-m/bc-data-warehouse/internal/config"
)

const (
	// DefaultMaxBatchSize bounds the number of new targets added per
	// crawler update. 500 leaves a wide margin under the ~2,000-target
	// ceiling: headroom for targets added by other processes, and a small
	// blast radius when one update goes wrong.
	DefaultMaxBatchSize = 500

	// TargetCeiling is the observed limit past which the crawler service
	// hangs. Updates that would cross it are still sent (the ceiling is
	// undocumented and approximate) but loudly logged so an operator can
	// split the crawler before it sticks.
	TargetCeiling = 2000
)

var (
	// ErrCrawlerNameEmpty is returned when the crawler name is not configured.
	ErrCrawlerNameEmpty = errors.New("crawler name cannot be empty")

	// ErrCrawlerRoleEmpty is returned when the crawler IAM role is not configured.
	ErrCrawlerRoleEmpty = errors.New("crawler role cannot be empty")

	// ErrDatabaseNameEmpty is returned when the Glue database name is not configured.
	ErrDatabaseNameEmpty = errors.New("glue database name cannot be empty")

	// ErrBasePathInvalid is returned when a base path is not an s3:// prefix
	// ending in "/". A path without the trailing slash would concatenate
	// into folder names instead of folder subpaths.
	ErrBasePathInvalid = errors.New("base path must start with s3:// and end with /")
)

// Config holds Glue crawler configuration.
type Config struct {
	Name            string // Glue crawler name
	Role            string // IAM role the crawler assumes
	DatabaseName    string // Glue database receiving inferred tables
	DataBasePath    string // s3:// prefix of the dataset folders
	CatalogBasePath string // s3:// prefix of the catalog folder
	MaxBatchSize    int    // new targets per update
}

// LoadConfig loads crawler configuration from environment variables with
// fallback to the statscan warehouse defaults.
func LoadConfig() *Config {
	return &Config{
		Name:            config.GetEnvStr("CRAWLER_NAME", "statscan"),
		Role:            config.GetEnvStr("CRAWLER_ROLE", "service-role/AWSGlueServiceRole-statscan"),
		DatabaseName:    config.GetEnvStr("CRAWLER_DATABASE", "statscan"),
		DataBasePath:    config.GetEnvStr("CRAWLER_DATA_PATH", "s3://build-cananda-dw/statscan/data/"),
		CatalogBasePath: config.GetEnvStr("CRAWLER_CATALOG_PATH", "s3://build-cananda-dw/statscan/catalog/"),
		MaxBatchSize:    config.GetEnvInt("CRAWLER_MAX_BATCH_SIZE", DefaultMaxBatchSize),
	}
}

// Validate checks if the crawler configuration is valid.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return ErrCrawlerNameEmpty
	}

	if strings.TrimSpace(c.Role) == "" {
		return ErrCrawlerRoleEmpty
	}

	if strings.TrimSpace(c.DatabaseName) == "" {
		return ErrDatabaseNameEmpty
	}

	for _, path := range []string{c.DataBasePath, c.CatalogBasePath} {
		if !strings.HasPrefix(path, "s3://") || !strings.HasSuffix(path, "/") {
			return ErrBasePathInvalid
		}
	}

	return nil
}
