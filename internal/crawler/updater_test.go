package crawler

import (
	"context"
	"errors"
	"strconv"
	"testing"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/glue"
	"github.com/aws/aws-sdk-go/service/glue/glueiface"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeGlue records crawler updates and serves a mutable target list, the way
// the real service does across sequential full-replace updates.
type fakeGlue struct {
	glueiface.GlueAPI

	targets []string // current registered target paths
	updates [][]string
	started int

	getErr    error
	updateErr error
}

func (f *fakeGlue) GetCrawlerWithContext(_ aws.Context, in *glue.GetCrawlerInput, _ ...request.Option) (*glue.GetCrawlerOutput, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}

	s3Targets := make([]*glue.S3Target, len(f.targets))
	for i, p := range f.targets {
		s3Targets[i] = &glue.S3Target{Path: aws.String(p)}
	}

	return &glue.GetCrawlerOutput{
		Crawler: &glue.Crawler{
			Name:    in.Name,
			Targets: &glue.CrawlerTargets{S3Targets: s3Targets},
		},
	}, nil
}

func (f *fakeGlue) UpdateCrawlerWithContext(_ aws.Context, in *glue.UpdateCrawlerInput, _ ...request.Option) (*glue.UpdateCrawlerOutput, error) {
	if f.updateErr != nil {
		return nil, f.updateErr
	}

	paths := make([]string, 0, len(in.Targets.S3Targets))
	for _, t := range in.Targets.S3Targets {
		paths = append(paths, aws.StringValue(t.Path))
	}

	f.targets = paths
	f.updates = append(f.updates, paths)

	return &glue.UpdateCrawlerOutput{}, nil
}

func (f *fakeGlue) StartCrawlerWithContext(_ aws.Context, _ *glue.StartCrawlerInput, _ ...request.Option) (*glue.StartCrawlerOutput, error) {
	f.started++

	return &glue.StartCrawlerOutput{}, nil
}

func testConfig() *Config {
	return &Config{
		Name:            "statscan",
		Role:            "service-role/AWSGlueServiceRole-statscan",
		DatabaseName:    "statscan",
		DataBasePath:    "s3://warehouse/statscan/data/",
		CatalogBasePath: "s3://warehouse/statscan/catalog/",
		MaxBatchSize:    DefaultMaxBatchSize,
	}
}

func TestSyncRegistersNewFolders(t *testing.T) {
	client := &fakeGlue{targets: []string{
		"s3://warehouse/statscan/data/1-a/",
		"s3://warehouse/statscan/catalog/",
	}}
	updater := NewUpdater(client, testConfig(), nil)

	err := updater.Sync(context.Background(), []string{"2-b", "3-c"})
	require.NoError(t, err)

	require.Len(t, client.updates, 1)
	assert.Equal(t, []string{
		"s3://warehouse/statscan/data/1-a/",
		"s3://warehouse/statscan/catalog/",
		"s3://warehouse/statscan/data/2-b/",
		"s3://warehouse/statscan/data/3-c/",
	}, client.updates[0], "full replace: existing targets survive")
}

func TestSyncBatchesLargeFolderSets(t *testing.T) {
	cfg := testConfig()
	cfg.MaxBatchSize = 10

	client := &fakeGlue{}
	updater := NewUpdater(client, cfg, nil)

	folders := make([]string, 25)
	for i := range folders {
		folders[i] = strconv.Itoa(i+1) + "-dataset"
	}

	err := updater.Sync(context.Background(), folders)
	require.NoError(t, err)

	require.Len(t, client.updates, 3)

	// Each successive update carries everything sent so far.
	assert.Len(t, client.updates[0], 11) // 10 folders + catalog
	assert.Len(t, client.updates[1], 21)
	assert.Len(t, client.updates[2], 26)

	// Final state holds every folder exactly once plus the catalog.
	assert.Len(t, client.targets, 26)
}

func TestSyncNoNewFoldersStillUpdatesCatalogTarget(t *testing.T) {
	client := &fakeGlue{targets: []string{"s3://warehouse/statscan/data/1-a/"}}
	updater := NewUpdater(client, testConfig(), nil)

	err := updater.Sync(context.Background(), nil)
	require.NoError(t, err)

	require.Len(t, client.updates, 1)
	assert.Equal(t, []string{
		"s3://warehouse/statscan/data/1-a/",
		"s3://warehouse/statscan/catalog/",
	}, client.updates[0])
}

func TestSyncIsIdempotent(t *testing.T) {
	client := &fakeGlue{}
	updater := NewUpdater(client, testConfig(), nil)

	require.NoError(t, updater.Sync(context.Background(), []string{"1-a"}))
	firstState := client.targets

	// Re-offering the same folder must not duplicate the target.
	require.NoError(t, updater.Sync(context.Background(), []string{"1-a"}))
	assert.Equal(t, firstState, client.targets)
}

func TestSyncGetCrawlerError(t *testing.T) {
	getErr := errors.New("crawler not found")
	updater := NewUpdater(&fakeGlue{getErr: getErr}, testConfig(), nil)

	err := updater.Sync(context.Background(), []string{"1-a"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, getErr))
}

func TestCurrentFolders(t *testing.T) {
	client := &fakeGlue{targets: []string{
		"s3://warehouse/statscan/data/1-a/",
		"s3://warehouse/statscan/data/2-b/",
		"s3://warehouse/statscan/catalog/", // not a dataset folder
		"s3://elsewhere/other/",            // foreign target
		"s3://warehouse/statscan/data/",    // bare base path
	}}
	updater := NewUpdater(client, testConfig(), nil)

	folders, err := updater.CurrentFolders(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"1-a", "2-b"}, folders)
}

func TestStartCrawl(t *testing.T) {
	client := &fakeGlue{}
	updater := NewUpdater(client, testConfig(), nil)

	require.NoError(t, updater.StartCrawl(context.Background()))
	assert.Equal(t, 1, client.started)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{
			name:   "valid config",
			mutate: func(*Config) {},
		},
		{
			name:    "empty crawler name",
			mutate:  func(c *Config) { c.Name = " " },
			wantErr: ErrCrawlerNameEmpty,
		},
		{
			name:    "empty role",
			mutate:  func(c *Config) { c.Role = "" },
			wantErr: ErrCrawlerRoleEmpty,
		},
		{
			name:    "empty database",
			mutate:  func(c *Config) { c.DatabaseName = "" },
			wantErr: ErrDatabaseNameEmpty,
		},
		{
			name:    "data path missing trailing slash",
			mutate:  func(c *Config) { c.DataBasePath = "s3://bucket/data" },
			wantErr: ErrBasePathInvalid,
		},
		{
			name:    "catalog path not s3",
			mutate:  func(c *Config) { c.CatalogBasePath = "/local/catalog/" },
			wantErr: ErrBasePathInvalid,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.True(t, errors.Is(err, tt.wantErr))
			}
		})
	}
}
