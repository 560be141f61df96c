package ingest

import (
	"archive/zip"
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticResolver struct {
	url string
	err error
}

func (r *staticResolver) DownloadURL(_ context.Context, _ int) (string, error) {
	return r.url, r.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func buildZip(t *testing.T, members map[string]string) []byte {
	t.Helper()

	var buf bytes.Buffer

	w := zip.NewWriter(&buf)
	for name, content := range members {
		member, err := w.Create(name)
		require.NoError(t, err)

		_, err = member.Write([]byte(content))
		require.NoError(t, err)
	}

	require.NoError(t, w.Close())

	return buf.Bytes()
}

func TestFindCSVInZip(t *testing.T) {
	tests := []struct {
		name    string
		members []string
		want    string
		wantErr bool
	}{
		{
			name:    "csv with metadata sibling",
			members: []string{"12100001_MetaData.txt", "12100001.csv"},
			want:    "12100001.csv",
		},
		{
			name:    "uppercase extension",
			members: []string{"TABLE.CSV"},
			want:    "TABLE.CSV",
		},
		{
			name:    "no csv member",
			members: []string{"readme.txt", "data.json"},
			wantErr: true,
		},
		{
			name:    "empty archive",
			members: nil,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FindCSVInZip(tt.members)

			if tt.wantErr {
				require.ErrorIs(t, err, ErrNoCSVInArchive)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFetchWritesParquet(t *testing.T) {
	archive := buildZip(t, map[string]string{
		"12100001_MetaData.txt": "metadata, not data",
		"12100001.csv":          "REF_DATE,VALUE\n2024-01,1.5\n2024-02,..\n",
	})

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.ServeContent(w, r, "12100001-eng.zip", time.Now(), bytes.NewReader(archive))
	}))
	defer server.Close()

	cfg := testIngestConfig(t)
	d := NewDownloader(&staticResolver{url: server.URL + "/12100001-eng.zip"}, cfg, discardLogger())

	result, err := d.Fetch(context.Background(), 12100001, "Labour force estimates")
	require.NoError(t, err)

	assert.False(t, result.Skipped)
	assert.Equal(t, "12100001-Labour_force_estimates/12100001.parquet", result.FilePath)
	assert.Positive(t, result.SizeBytes)

	table := readParquetTable(t, filepath.Join(cfg.DataDir, filepath.FromSlash(result.FilePath)))
	defer table.Release()

	assert.Equal(t, int64(2), table.NumRows())
}

func TestFetchSkipsOversized(t *testing.T) {
	archive := buildZip(t, map[string]string{"big.csv": "A\n1\n"})

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.ServeContent(w, r, "big.zip", time.Now(), bytes.NewReader(archive))
	}))
	defer server.Close()

	cfg := testIngestConfig(t)
	cfg.MaxDownloadBytes = 1

	d := NewDownloader(&staticResolver{url: server.URL + "/big.zip"}, cfg, discardLogger())

	result, err := d.Fetch(context.Background(), 1, "big")
	require.NoError(t, err)
	assert.True(t, result.Skipped)
	assert.Empty(t, result.FilePath)
}

func TestFetchSkipsOversizedCSVMember(t *testing.T) {
	// Zip is tiny but the uncompressed CSV exceeds the member cap.
	archive := buildZip(t, map[string]string{"wide.csv": "A,B\n" + "1,2\n"})

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.ServeContent(w, r, "wide.zip", time.Now(), bytes.NewReader(archive))
	}))
	defer server.Close()

	cfg := testIngestConfig(t)
	cfg.MaxCSVBytes = 3

	d := NewDownloader(&staticResolver{url: server.URL + "/wide.zip"}, cfg, discardLogger())

	result, err := d.Fetch(context.Background(), 1, "wide")
	require.NoError(t, err)
	assert.True(t, result.Skipped)
}

func TestFetchNoCSVInArchive(t *testing.T) {
	archive := buildZip(t, map[string]string{"notes.txt": "nothing here"})

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.ServeContent(w, r, "notes.zip", time.Now(), bytes.NewReader(archive))
	}))
	defer server.Close()

	cfg := testIngestConfig(t)
	d := NewDownloader(&staticResolver{url: server.URL + "/notes.zip"}, cfg, discardLogger())

	_, err := d.Fetch(context.Background(), 1, "empty")
	require.ErrorIs(t, err, ErrNoCSVInArchive)
}

func TestDisplayTitle(t *testing.T) {
	assert.Equal(t, "[1] short", DisplayTitle(1, "short"))

	long := DisplayTitle(2, "This title is well over fifty characters long and keeps going and going")
	assert.Len(t, long, len("[2] ")+50+len("..."))
}

func TestProgressPercent(t *testing.T) {
	assert.Equal(t, 0, ProgressPercent(100, 0))
	assert.Equal(t, 0, ProgressPercent(0, 200))
	assert.Equal(t, 50, ProgressPercent(100, 200))
	assert.Equal(t, 100, ProgressPercent(200, 200))
}

func TestShouldLogProgress(t *testing.T) {
	assert.True(t, ShouldLogProgress(10, -1))
	assert.True(t, ShouldLogProgress(20, 10))
	assert.False(t, ShouldLogProgress(19, 10))
	assert.False(t, ShouldLogProgress(5, -1))
}

func testIngestConfig(t *testing.T) *Config {
	t.Helper()

	return &Config{
		Bucket:           "test-bucket",
		Source:           "statscan",
		DataDir:          t.TempDir(),
		ManifestPath:     filepath.Join(t.TempDir(), "manifest.csv"),
		MaxDownloadBytes: 0,
		DownloadTimeout:  10 * time.Second,
		RetryMax:         0,
		UserAgent:        "test-agent",
	}
}
