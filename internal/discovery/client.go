// Package discovery fetches the StatsCan cube universe and turns it into a
// scored catalog.
package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/time/rate"
)

type (
	// Cube is one entry of the WDS getAllCubesList response. Only the
	// fields the pipeline consumes are mapped.
	Cube struct {
		ProductID    int               `json:"productId"`
		CubeTitleEn  string            `json:"cubeTitleEn"`
		SubjectEn    string            `json:"subjectEn"`
		Frequency    int               `json:"frequencyCode"`
		ReleaseTime  string            `json:"releaseTime"`
		Dimensions   []json.RawMessage `json:"dimensions"`
		NbDatapoints int64             `json:"nbDatapointsCube"`
	}

	// Client talks to the StatsCan Web Data Service.
	//
	// The WDS is a shared public service with no published quota; the
	// client rate-limits itself and retries transient failures with
	// backoff rather than hammering it.
	Client struct {
		http    *retryablehttp.Client
		limiter *rate.Limiter
		cfg     *Config
		logger  *slog.Logger
	}

	// downloadResponse is the WDS getFullTableDownloadCSV envelope.
	downloadResponse struct {
		Status string `json:"status"`
		Object string `json:"object"`
	}
)

// NewClient creates a WDS client from config.
func NewClient(cfg *Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}

	httpClient := retryablehttp.NewClient()
	httpClient.RetryMax = cfg.RetryMax
	httpClient.HTTPClient.Timeout = cfg.Timeout
	httpClient.Logger = nil // slog below instead of retryablehttp's own chatter

	return &Client{
		http:    httpClient,
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
		cfg:     cfg,
		logger:  logger,
	}
}

// AllCubes fetches the full cube list from the WDS.
func (c *Client) AllCubes(ctx context.Context) ([]Cube, error) {
	data, err := c.get(ctx, c.cfg.APIBase+"/getAllCubesList")
	if err != nil {
		return nil, err
	}

	var cubes []Cube
	if err := json.Unmarshal(data, &cubes); err != nil {
		return nil, fmt.Errorf("decoding cube list: %w", err)
	}

	c.logger.Info("Fetched cube list", slog.Int("cubes", len(cubes)))

	return cubes, nil
}

// DownloadURL resolves the full-table CSV zip URL for one dataset.
func (c *Client) DownloadURL(ctx context.Context, productID int) (string, error) {
	url := fmt.Sprintf("%s/getFullTableDownloadCSV/%d/en", c.cfg.APIBase, productID)

	data, err := c.get(ctx, url)
	if err != nil {
		return "", err
	}

	var resp downloadResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return "", fmt.Errorf("decoding download response for %d: %w", productID, err)
	}

	if resp.Object == "" {
		return "", fmt.Errorf("no download URL for %d (status %q)", productID, resp.Status)
	}

	return resp.Object, nil
}

func (c *Client) get(ctx context.Context, url string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("building request for %s: %w", url, err)
	}

	req.Header.Set("User-Agent", c.cfg.UserAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", url, err)
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching %s: unexpected status %d", url, resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", url, err)
	}

	return data, nil
}
