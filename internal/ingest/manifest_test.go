package ingest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManifestRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "manifest.csv")

	entries := []ManifestEntry{
		{ProductID: 12100001, Title: "Labour force, by industry", SizeBytes: 2048, FilePath: "12100001-Labour_force,_by_industry/12100001.parquet"},
		{ProductID: 9810001, Title: "Census profile", SizeBytes: 512, FilePath: "9810001-Census_profile/9810001.parquet"},
	}

	require.NoError(t, WriteManifest(path, entries))

	got, err := ReadManifest(path)
	require.NoError(t, err)
	assert.Equal(t, entries, got)
}

func TestManifestEmptyEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "manifest.csv")

	require.NoError(t, WriteManifest(path, nil))

	got, err := ReadManifest(path)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestReadManifestMissingFile(t *testing.T) {
	_, err := ReadManifest(filepath.Join(t.TempDir(), "absent.csv"))
	assert.Error(t, err)
}

func TestReadManifestBadProductID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "manifest.csv")
	require.NoError(t, os.WriteFile(path, []byte("productId,title,size_bytes,file_path\nnot-a-number,t,1,p\n"), 0o600))

	_, err := ReadManifest(path)
	assert.Error(t, err)
}
