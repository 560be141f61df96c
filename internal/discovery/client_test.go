package discovery

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := &Config{
		APIBase:           server.URL,
		UserAgent:         "Mozilla/5.0",
		Timeout:           5 * time.Second,
		RetryMax:          0, // no retries in unit tests
		RequestsPerSecond: 1000,
	}

	return NewClient(cfg, nil)
}

func TestAllCubes(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/getAllCubesList", r.URL.Path)
		assert.Equal(t, "Mozilla/5.0", r.Header.Get("User-Agent"))

		_, _ = w.Write([]byte(`[
			{"productId": 12100163, "cubeTitleEn": "Trade", "subjectEn": "International trade",
			 "frequencyCode": 6, "releaseTime": "2025-07-01T08:30",
			 "dimensions": [{}, {}, {}], "nbDatapointsCube": 1200},
			{"productId": 43100050, "cubeTitleEn": "Immigration", "frequencyCode": 12}
		]`))
	}))

	cubes, err := client.AllCubes(context.Background())
	require.NoError(t, err)

	require.Len(t, cubes, 2)
	assert.Equal(t, 12100163, cubes[0].ProductID)
	assert.Equal(t, "Trade", cubes[0].CubeTitleEn)
	assert.Equal(t, 6, cubes[0].Frequency)
	assert.Len(t, cubes[0].Dimensions, 3)
	assert.Equal(t, int64(1200), cubes[0].NbDatapoints)
	assert.Equal(t, 43100050, cubes[1].ProductID)
}

func TestAllCubesBadJSON(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"not": "a list"}`))
	}))

	_, err := client.AllCubes(context.Background())
	assert.Error(t, err)
}

func TestAllCubesServerError(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	_, err := client.AllCubes(context.Background())
	assert.Error(t, err)
}

func TestDownloadURL(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/getFullTableDownloadCSV/12100163/en", r.URL.Path)

		_, _ = w.Write([]byte(`{"status": "SUCCESS", "object": "https://example.org/table.zip"}`))
	}))

	url, err := client.DownloadURL(context.Background(), 12100163)
	require.NoError(t, err)
	assert.Equal(t, "https://example.org/table.zip", url)
}

func TestDownloadURLMissingObject(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"status": "FAILED"}`))
	}))

	_, err := client.DownloadURL(context.Background(), 12100163)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "FAILED")
}
