package crawler

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/glue"
	"github.com/aws/aws-sdk-go/service/glue/glueiface"
)

// Updater pushes batched, full-replace target updates to one Glue crawler.
//
// Not safe for concurrent pipeline runs: two simultaneous full-replace
// updates race and one of them silently drops the other's targets. The
// pipeline assumes single-writer access enforced operationally; the updater
// takes no lock.
type Updater struct {
	client glueiface.GlueAPI
	cfg    *Config
	logger *slog.Logger
}

// NewUpdater creates a crawler updater.
func NewUpdater(client glueiface.GlueAPI, cfg *Config, logger *slog.Logger) *Updater {
	if logger == nil {
		logger = slog.Default()
	}

	return &Updater{
		client: client,
		cfg:    cfg,
		logger: logger,
	}
}

// CurrentFolders returns the dataset folder names currently registered as
// crawler targets. Targets outside the data base path (the catalog target,
// manually added locations) are not folder targets and are excluded.
func (u *Updater) CurrentFolders(ctx context.Context) ([]string, error) {
	targets, err := u.currentTargets(ctx)
	if err != nil {
		return nil, err
	}

	folders := make([]string, 0, len(targets))

	for _, t := range targets {
		if folder, ok := folderFromPath(t.Path, u.cfg.DataBasePath); ok {
			folders = append(folders, folder)
		}
	}

	return folders, nil
}

// Sync registers newFolders with the crawler in batches of at most
// MaxBatchSize, then starts a crawl run.
//
// Every update is a full replace built from the targets registered at that
// moment plus one batch, so an interrupted sync leaves the crawler with a
// valid (merely shorter) target list and the next run picks up the rest.
// With no new folders a single update still goes out to keep the catalog
// target registered.
func (u *Updater) Sync(ctx context.Context, newFolders []string) error {
	existing, err := u.currentTargets(ctx)
	if err != nil {
		return err
	}

	batches := Batch(S3Targets(newFolders, u.cfg.DataBasePath), u.cfg.MaxBatchSize)
	catalogTarget := CatalogTarget(u.cfg.CatalogBasePath)

	if len(batches) == 0 {
		return u.update(ctx, UpdateParams(existing, nil, catalogTarget))
	}

	for i, batch := range batches {
		full := UpdateParams(existing, batch, catalogTarget)

		u.logger.Info("Updating crawler targets",
			slog.String("crawler", u.cfg.Name),
			slog.Int("batch", i+1),
			slog.Int("batches", len(batches)),
			slog.Int("batch_size", len(batch)),
			slog.Int("total_targets", len(full)),
		)

		if err := u.update(ctx, full); err != nil {
			return err
		}

		existing = full
	}

	return nil
}

// StartCrawl kicks off a crawl run so the newly registered folders become
// queryable. The run itself is external and asynchronous; the pipeline does
// not wait for it.
func (u *Updater) StartCrawl(ctx context.Context) error {
	_, err := u.client.StartCrawlerWithContext(ctx, &glue.StartCrawlerInput{
		Name: aws.String(u.cfg.Name),
	})
	if err != nil {
		return fmt.Errorf("starting crawler %q: %w", u.cfg.Name, err)
	}

	u.logger.Info("Started crawler", slog.String("crawler", u.cfg.Name))

	return nil
}

func (u *Updater) currentTargets(ctx context.Context) ([]Target, error) {
	out, err := u.client.GetCrawlerWithContext(ctx, &glue.GetCrawlerInput{
		Name: aws.String(u.cfg.Name),
	})
	if err != nil {
		return nil, fmt.Errorf("fetching crawler %q: %w", u.cfg.Name, err)
	}

	if out.Crawler == nil || out.Crawler.Targets == nil {
		return nil, nil
	}

	targets := make([]Target, 0, len(out.Crawler.Targets.S3Targets))

	for _, t := range out.Crawler.Targets.S3Targets {
		if t.Path != nil {
			targets = append(targets, Target{Path: *t.Path})
		}
	}

	return targets, nil
}

func (u *Updater) update(ctx context.Context, targets []Target) error {
	if len(targets) > TargetCeiling {
		u.logger.Warn("Crawler target count exceeds known-safe ceiling; the service may hang",
			slog.String("crawler", u.cfg.Name),
			slog.Int("targets", len(targets)),
			slog.Int("ceiling", TargetCeiling),
		)
	}

	s3Targets := make([]*glue.S3Target, len(targets))
	for i, t := range targets {
		s3Targets[i] = &glue.S3Target{
			Path:       aws.String(t.Path),
			Exclusions: []*string{},
		}
	}

	_, err := u.client.UpdateCrawlerWithContext(ctx, &glue.UpdateCrawlerInput{
		Name:         aws.String(u.cfg.Name),
		Role:         aws.String(u.cfg.Role),
		DatabaseName: aws.String(u.cfg.DatabaseName),
		Targets: &glue.CrawlerTargets{
			S3Targets: s3Targets,
		},
		SchemaChangePolicy: &glue.SchemaChangePolicy{
			UpdateBehavior: aws.String(glue.UpdateBehaviorUpdateInDatabase),
			DeleteBehavior: aws.String(glue.DeleteBehaviorDeprecateInDatabase),
		},
	})
	if err != nil {
		return fmt.Errorf("updating crawler %q: %w", u.cfg.Name, err)
	}

	return nil
}

// folderFromPath strips the data base path and trailing slash from a target
// path. Returns false for targets outside the base path.
func folderFromPath(path, basePath string) (string, bool) {
	if len(path) <= len(basePath) || path[:len(basePath)] != basePath {
		return "", false
	}

	folder := path[len(basePath):]
	if folder[len(folder)-1] == '/' {
		folder = folder[:len(folder)-1]
	}

	if folder == "" {
		return "", false
	}

	return folder, true
}
