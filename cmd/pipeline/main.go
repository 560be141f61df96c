// Package main provides the warehouse pipeline CLI.
//
// The pipeline moves Statistics Canada tables into an S3 data warehouse in
// discrete, resumable stages: discover refreshes the dataset catalog from
// the WDS API, ingest downloads and converts datasets to parquet, upload
// pushes the results to S3, and crawl points the Glue crawler at the new
// folders. Every stage is idempotent, so a failed run is retried by simply
// running it again.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/glue"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/google/uuid"

	"github.com/akhil-m/bc-data-warehouse/internal/catalog"
	"github.com/akhil-m/bc-data-warehouse/internal/config"
	"github.com/akhil-m/bc-data-warehouse/internal/crawler"
	"github.com/akhil-m/bc-data-warehouse/internal/discovery"
	"github.com/akhil-m/bc-data-warehouse/internal/ingest"
	"github.com/akhil-m/bc-data-warehouse/internal/inventory"
	"github.com/akhil-m/bc-data-warehouse/internal/reconcile"
)

// Version information.
const (
	version = "1.0.0-dev"
	name    = "pipeline"
)

const usage = `Usage: pipeline <command>

Commands:
  discover   refresh the dataset catalog from the StatsCan WDS API
  plan       show which datasets the next ingest run would process
  ingest     download new and stale datasets, convert to parquet
  upload     push the ingestion manifest's parquet files to S3
  catalog    rebuild catalog metadata for datasets already in S3
  crawl      add new dataset folders to the Glue crawler and start it
`

func main() {
	versionFlag := flag.Bool("version", false, "show version information")
	flag.Parse()

	if *versionFlag {
		log.Printf("%s v%s\n", name, version)
		os.Exit(0)
	}

	if flag.NArg() < 1 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: config.GetEnvLogLevel("PIPELINE_LOG_LEVEL", slog.LevelInfo),
	})).With(slog.String("run_id", uuid.NewString()))

	command := flag.Arg(0)

	logger.Info("Starting pipeline",
		slog.String("service", name),
		slog.String("version", version),
		slog.String("command", command),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := newApp(logger)
	if err != nil {
		logger.Error("Failed to initialize pipeline", slog.String("error", err.Error()))
		os.Exit(1)
	}

	start := time.Now()

	switch command {
	case "discover":
		err = app.discover(ctx)
	case "plan":
		err = app.plan(ctx)
	case "ingest":
		err = app.ingest(ctx)
	case "upload":
		err = app.upload(ctx)
	case "catalog":
		err = app.rebuildCatalog(ctx)
	case "crawl":
		err = app.crawl(ctx)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", command, usage)
		os.Exit(2)
	}

	if err != nil {
		logger.Error("Pipeline command failed",
			slog.String("command", command),
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}

	logger.Info("Pipeline command complete",
		slog.String("command", command),
		slog.Duration("elapsed", time.Since(start)),
	)
}

// app wires the stage implementations to shared AWS clients and config.
type app struct {
	ingestCfg  *ingest.Config
	crawlerCfg *crawler.Config
	policy     *reconcile.Policy

	client    *discovery.Client
	store     *catalog.Store
	inventory *inventory.Reader
	uploader  *ingest.Uploader
	updater   *crawler.Updater
	runner    *ingest.Runner

	limit  int
	logger *slog.Logger
}

func newApp(logger *slog.Logger) (*app, error) {
	discoveryCfg := discovery.LoadConfig()
	if err := discoveryCfg.Validate(); err != nil {
		return nil, err
	}

	ingestCfg := ingest.LoadConfig()
	if err := ingestCfg.Validate(); err != nil {
		return nil, err
	}

	crawlerCfg := crawler.LoadConfig()
	if err := crawlerCfg.Validate(); err != nil {
		return nil, err
	}

	sess, err := session.NewSessionWithOptions(session.Options{
		SharedConfigState: session.SharedConfigEnable,
	})
	if err != nil {
		return nil, fmt.Errorf("creating AWS session: %w", err)
	}

	s3Client := s3.New(sess)
	client := discovery.NewClient(discoveryCfg, logger)
	downloader := ingest.NewDownloader(client, ingestCfg, logger)

	catalogKey := path.Join(ingestCfg.Source, "catalog", "catalog.parquet")

	return &app{
		ingestCfg:  ingestCfg,
		crawlerCfg: crawlerCfg,
		policy:     reconcile.LoadPolicyFromEnv(),
		client:     client,
		store:      catalog.NewStore(s3Client, ingestCfg.Bucket, catalogKey, logger),
		inventory:  inventory.NewReader(s3Client, ingestCfg.Bucket, ingestCfg.Source, logger),
		uploader:   ingest.NewUploader(s3Client, ingestCfg.Bucket, ingestCfg.Source, logger),
		updater:    crawler.NewUpdater(glue.New(sess), crawlerCfg, logger),
		runner:     ingest.NewRunner(downloader, ingestCfg, logger),
		limit:      config.GetEnvInt("PIPELINE_INGEST_LIMIT", 0),
		logger:     logger,
	}, nil
}

// discover fetches the full cube list from the WDS API, scores it, merges
// it with the existing catalog to preserve ingestion timestamps, and saves
// the result.
func (a *app) discover(ctx context.Context) error {
	cubes, err := a.client.AllCubes(ctx)
	if err != nil {
		return err
	}

	fresh := discovery.BuildCatalog(cubes, time.Now())

	existing, err := a.store.Load(ctx)
	if err != nil && !errors.Is(err, catalog.ErrCatalogUnavailable) {
		return err
	}

	if errors.Is(err, catalog.ErrCatalogUnavailable) {
		a.logger.Info("No existing catalog, starting fresh")
	}

	merged := catalog.MergeMetadata(fresh, existing)

	a.logger.Info("Catalog refreshed",
		slog.Int("datasets", len(merged)),
		slog.Int("previously_known", len(existing)),
	)

	return a.store.Save(ctx, merged)
}

// plan reports what the next ingest run would do without touching anything.
func (a *app) plan(ctx context.Context) error {
	candidates, err := a.selectCandidates(ctx)
	if err != nil {
		return err
	}

	for i, c := range candidates {
		a.logger.Info("Would process",
			slog.Int("position", i+1),
			slog.String("dataset", ingest.DisplayTitle(c.Dataset.ProductID, c.Dataset.Title)),
			slog.String("reason", string(c.Reason)),
			slog.Int("score", c.Dataset.Score),
		)
	}

	datasets, err := a.store.Load(ctx)
	if err != nil {
		return err
	}

	ingestedIDs, err := a.inventory.ListIDs(ctx)
	if err != nil {
		return err
	}

	folders, err := a.inventory.ListFolders(ctx)
	if err != nil {
		return err
	}

	crawled, err := a.updater.CurrentFolders(ctx)
	if err != nil {
		return err
	}

	diff := reconcile.ComputeDiff(datasets, ingestedIDs, folders, crawled)

	a.logger.Info("Plan complete",
		slog.Int("candidates", len(candidates)),
		slog.Int("new", len(diff.New)),
		slog.Int("already_ingested", len(diff.AlreadyIngested)),
		slog.Int("not_yet_queryable", len(diff.NewlyVisible)),
	)

	return nil
}

// ingest downloads and converts every candidate dataset, writes the upload
// manifest, and stamps successful datasets in the catalog.
func (a *app) ingest(ctx context.Context) error {
	candidates, err := a.selectCandidates(ctx)
	if err != nil {
		return err
	}

	datasets := make([]catalog.Dataset, len(candidates))
	for i, c := range candidates {
		datasets[i] = c.Dataset
	}

	entries, _, err := a.runner.Run(ctx, datasets)
	if err != nil {
		return err
	}

	if err := ingest.WriteManifest(a.ingestCfg.ManifestPath, entries); err != nil {
		return err
	}

	a.logger.Info("Manifest written",
		slog.String("path", a.ingestCfg.ManifestPath),
		slog.Int("entries", len(entries)),
	)

	return a.stampCatalog(ctx, entries)
}

// stampCatalog records the ingestion time for every manifest entry so the
// next run sees these datasets as fresh.
func (a *app) stampCatalog(ctx context.Context, entries []ingest.ManifestEntry) error {
	if len(entries) == 0 {
		return nil
	}

	datasets, err := a.store.Load(ctx)
	if err != nil {
		return err
	}

	ids := make([]int, len(entries))
	for i, e := range entries {
		ids[i] = e.ProductID
	}

	stamped := catalog.StampIngested(datasets, catalog.IDSet(ids), time.Now())

	return a.store.Save(ctx, stamped)
}

// upload pushes the manifest's parquet files to the warehouse bucket.
func (a *app) upload(ctx context.Context) error {
	entries, err := ingest.ReadManifest(a.ingestCfg.ManifestPath)
	if err != nil {
		return err
	}

	_, err = a.uploader.Upload(ctx, a.ingestCfg.DataDir, entries)

	return err
}

// rebuildCatalog reconstructs catalog metadata for datasets already in the
// bucket. Used when the catalog parquet is lost or predates datasets that
// were ingested out of band.
func (a *app) rebuildCatalog(ctx context.Context) error {
	ingestedIDs, err := a.inventory.ListIDs(ctx)
	if err != nil {
		return err
	}

	cubes, err := a.client.AllCubes(ctx)
	if err != nil {
		return err
	}

	fresh := discovery.BuildCatalog(cubes, time.Now())

	existing, err := a.store.Load(ctx)
	if err != nil && !errors.Is(err, catalog.ErrCatalogUnavailable) {
		return err
	}

	merged := catalog.Enhance(catalog.MergeMetadata(fresh, existing), ingestedIDs)

	a.logger.Info("Catalog rebuilt",
		slog.Int("datasets", len(merged)),
		slog.Int("marked_available", len(ingestedIDs)),
	)

	return a.store.Save(ctx, merged)
}

// crawl reconciles the Glue crawler's targets with the folders actually in
// the bucket, then starts a crawl.
func (a *app) crawl(ctx context.Context) error {
	folders, err := a.inventory.ListFolders(ctx)
	if err != nil {
		return err
	}

	current, err := a.updater.CurrentFolders(ctx)
	if err != nil {
		return err
	}

	newFolders := reconcile.FindNewFolders(folders, current)

	a.logger.Info("Crawler reconciliation",
		slog.Int("bucket_folders", len(folders)),
		slog.Int("crawler_folders", len(current)),
		slog.Int("new_folders", len(newFolders)),
	)

	if err := a.updater.Sync(ctx, newFolders); err != nil {
		return err
	}

	return a.updater.StartCrawl(ctx)
}

// selectCandidates applies the reconciliation pipeline: load the catalog,
// drop invisible datasets, and pick new plus update-due datasets with the
// new-dataset limit applied.
func (a *app) selectCandidates(ctx context.Context) ([]reconcile.Candidate, error) {
	datasets, err := a.store.Load(ctx)
	if err != nil {
		// A missing catalog is fatal here: ingesting without one would
		// re-download the entire corpus.
		return nil, err
	}

	ingestedIDs, err := a.inventory.ListIDs(ctx)
	if err != nil {
		return nil, err
	}

	visible := reconcile.FilterCatalog(datasets, nil, reconcile.FilterOptions{
		SkipInvisible:    true,
		InvisibleMarkers: a.policy.InvisibleMarkers,
	})

	var existing []catalog.Dataset

	for _, ds := range visible {
		if _, ok := ingestedIDs[ds.ProductID]; ok {
			existing = append(existing, ds)
		}
	}

	candidates := reconcile.IdentifyForProcessing(visible, existing, time.Now())

	return reconcile.ApplyLimitToNew(candidates, a.limit), nil
}
