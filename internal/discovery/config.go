package discovery

import (
	"errors"
	"strings"
	"time"

	"github.com/akhil-m/bc-data-warehouse/internal/config"
)

const (
	defaultAPIBase = "https://www150.statcan.gc.ca/t1/wds/rest"

	// The WDS rejects requests without a browser-looking user agent.
	defaultUserAgent = "Mozilla/5.0"

	defaultTimeout  = 60 * time.Second
	defaultRetryMax = 4
	defaultRPS      = 5.0
)

// ErrAPIBaseEmpty is returned when the WDS base URL is not configured.
var ErrAPIBaseEmpty = errors.New("api base URL cannot be empty")

// Config holds StatsCan WDS client configuration.
type Config struct {
	APIBase           string
	UserAgent         string
	Timeout           time.Duration
	RetryMax          int
	RequestsPerSecond float64
}

// LoadConfig loads WDS client configuration from environment variables with
// fallback to defaults.
func LoadConfig() *Config {
	return &Config{
		APIBase:           config.GetEnvStr("STATCAN_API_BASE", defaultAPIBase),
		UserAgent:         config.GetEnvStr("STATCAN_USER_AGENT", defaultUserAgent),
		Timeout:           config.GetEnvDuration("STATCAN_HTTP_TIMEOUT", defaultTimeout),
		RetryMax:          config.GetEnvInt("STATCAN_HTTP_RETRY_MAX", defaultRetryMax),
		RequestsPerSecond: float64(config.GetEnvInt("STATCAN_REQUESTS_PER_SECOND", int(defaultRPS))),
	}
}

// Validate checks if the WDS client configuration is valid.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.APIBase) == "" {
		return ErrAPIBaseEmpty
	}

	return nil
}
