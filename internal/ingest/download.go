package ingest

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/akhil-m/bc-data-warehouse/internal/naming"
)

// ErrNoCSVInArchive is returned when a downloaded zip contains no CSV
// member.
var ErrNoCSVInArchive = errors.New("no CSV file in zip archive")

// errCSVOversized signals the uncompressed CSV exceeded MaxCSVBytes. The
// zip's Content-Length is only a heuristic; this is the accurate check,
// available after download.
var errCSVOversized = errors.New("uncompressed CSV exceeds size cap")

type (
	// Result describes one dataset's ingestion outcome.
	Result struct {
		ProductID int
		Title     string
		SizeBytes int64  // size of the written parquet file
		FilePath  string // path relative to the data dir, e.g. "1-a/1.parquet"
		Skipped   bool   // true when the source file exceeded the size cap
	}

	// URLResolver resolves a productId to its full-table zip URL. Satisfied
	// by discovery.Client.
	URLResolver interface {
		DownloadURL(ctx context.Context, productID int) (string, error)
	}

	// Downloader fetches one dataset's CSV zip and materializes it as a
	// local parquet folder.
	Downloader struct {
		resolver URLResolver
		http     *retryablehttp.Client
		cfg      *Config
		logger   *slog.Logger
	}
)

// NewDownloader creates a downloader.
func NewDownloader(resolver URLResolver, cfg *Config, logger *slog.Logger) *Downloader {
	if logger == nil {
		logger = slog.Default()
	}

	httpClient := retryablehttp.NewClient()
	httpClient.RetryMax = cfg.RetryMax
	httpClient.HTTPClient.Timeout = cfg.DownloadTimeout
	httpClient.Logger = nil

	return &Downloader{
		resolver: resolver,
		http:     httpClient,
		cfg:      cfg,
		logger:   logger,
	}
}

// Fetch downloads, extracts, and converts one dataset.
//
// The zip is streamed to a temp file (full tables run to gigabytes), the
// first CSV member is extracted, converted to parquet under
// {DataDir}/{folder}/{productId}.parquet, and all temporaries are removed.
// Oversized sources are skipped, not errored: a skip is an expected policy
// outcome recorded in the result.
func (d *Downloader) Fetch(ctx context.Context, productID int, title string) (Result, error) {
	result := Result{ProductID: productID, Title: title}
	display := DisplayTitle(productID, title)

	zipURL, err := d.resolver.DownloadURL(ctx, productID)
	if err != nil {
		return result, err
	}

	size, err := d.remoteSize(ctx, zipURL)
	if err != nil {
		return result, err
	}

	if d.cfg.MaxDownloadBytes > 0 && size > d.cfg.MaxDownloadBytes {
		d.logger.Info("Skipping oversized dataset",
			slog.String("dataset", display),
			slog.Int64("size_bytes", size),
			slog.Int64("max_bytes", d.cfg.MaxDownloadBytes),
		)

		result.Skipped = true

		return result, nil
	}

	zipPath, err := d.downloadZip(ctx, zipURL, display, size)
	if err != nil {
		return result, err
	}

	defer func() {
		_ = os.Remove(zipPath)
	}()

	csvPath, cleanup, err := extractCSV(zipPath, d.cfg.MaxCSVBytes)
	if errors.Is(err, errCSVOversized) {
		d.logger.Info("Skipping dataset with oversized CSV",
			slog.String("dataset", display),
			slog.String("reason", err.Error()),
		)

		result.Skipped = true

		return result, nil
	}

	if err != nil {
		return result, err
	}
	defer cleanup()

	folder := naming.FolderName(productID, title)
	outDir := filepath.Join(d.cfg.DataDir, folder)

	if err := os.MkdirAll(outDir, 0o750); err != nil {
		return result, fmt.Errorf("creating %s: %w", outDir, err)
	}

	outFile := filepath.Join(outDir, fmt.Sprintf("%d.parquet", productID))

	d.logger.Info("Converting to parquet", slog.String("dataset", display))

	if err := ConvertCSVToParquet(csvPath, outFile); err != nil {
		return result, err
	}

	info, err := os.Stat(outFile)
	if err != nil {
		return result, fmt.Errorf("stat %s: %w", outFile, err)
	}

	result.SizeBytes = info.Size()
	result.FilePath = filepath.ToSlash(filepath.Join(folder, fmt.Sprintf("%d.parquet", productID)))

	d.logger.Info("Dataset complete",
		slog.String("dataset", display),
		slog.Int64("parquet_bytes", result.SizeBytes),
	)

	return result, nil
}

func (d *Downloader) remoteSize(ctx context.Context, url string) (int64, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return 0, fmt.Errorf("building HEAD request for %s: %w", url, err)
	}

	req.Header.Set("User-Agent", d.cfg.UserAgent)

	resp, err := d.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("HEAD %s: %w", url, err)
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("HEAD %s: unexpected status %d", url, resp.StatusCode)
	}

	return resp.ContentLength, nil
}

func (d *Downloader) downloadZip(ctx context.Context, url, display string, totalSize int64) (string, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("building request for %s: %w", url, err)
	}

	req.Header.Set("User-Agent", d.cfg.UserAgent)

	resp, err := d.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("downloading %s: %w", url, err)
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("downloading %s: unexpected status %d", url, resp.StatusCode)
	}

	tmp, err := os.CreateTemp("", "statscan-*.zip")
	if err != nil {
		return "", fmt.Errorf("creating temp zip: %w", err)
	}

	progress := newProgressLogger(d.logger, display, totalSize)

	_, err = io.Copy(io.MultiWriter(tmp, progress), resp.Body)
	closeErr := tmp.Close()

	if err != nil {
		_ = os.Remove(tmp.Name())

		return "", fmt.Errorf("downloading %s: %w", url, err)
	}

	if closeErr != nil {
		_ = os.Remove(tmp.Name())

		return "", fmt.Errorf("writing temp zip: %w", closeErr)
	}

	return tmp.Name(), nil
}

// extractCSV extracts the first CSV member of the zip to a temp directory.
// The returned cleanup removes the directory. maxBytes caps the member's
// uncompressed size, 0 disables the cap.
func extractCSV(zipPath string, maxBytes int64) (string, func(), error) {
	noop := func() {}

	archive, err := zip.OpenReader(zipPath)
	if err != nil {
		return "", noop, fmt.Errorf("opening %s: %w", zipPath, err)
	}

	defer func() {
		_ = archive.Close()
	}()

	names := make([]string, len(archive.File))
	for i, f := range archive.File {
		names[i] = f.Name
	}

	csvName, err := FindCSVInZip(names)
	if err != nil {
		return "", noop, err
	}

	if maxBytes > 0 {
		for _, f := range archive.File {
			if f.Name == csvName && int64(f.UncompressedSize64) > maxBytes {
				return "", noop, fmt.Errorf("%w: %q is %d bytes, cap %d",
					errCSVOversized, csvName, f.UncompressedSize64, maxBytes)
			}
		}
	}

	tmpDir, err := os.MkdirTemp("", "statscan-csv-")
	if err != nil {
		return "", noop, fmt.Errorf("creating temp dir: %w", err)
	}

	cleanup := func() {
		_ = os.RemoveAll(tmpDir)
	}

	for _, f := range archive.File {
		if f.Name != csvName {
			continue
		}

		dst := filepath.Join(tmpDir, filepath.Base(csvName))

		if err := copyZipMember(f, dst); err != nil {
			cleanup()

			return "", noop, err
		}

		return dst, cleanup, nil
	}

	cleanup()

	return "", noop, fmt.Errorf("%w: %q vanished from archive", ErrNoCSVInArchive, csvName)
}

// FindCSVInZip picks the CSV member to extract from a zip member list.
// Returns ErrNoCSVInArchive when the archive is empty or CSV-free (StatsCan
// archives also carry metadata text files).
func FindCSVInZip(names []string) (string, error) {
	for _, name := range names {
		if strings.HasSuffix(strings.ToLower(name), ".csv") {
			return name, nil
		}
	}

	return "", fmt.Errorf("%w: members %v", ErrNoCSVInArchive, names)
}

func copyZipMember(f *zip.File, dst string) error {
	src, err := f.Open()
	if err != nil {
		return fmt.Errorf("opening zip member %s: %w", f.Name, err)
	}

	defer func() {
		_ = src.Close()
	}()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("creating %s: %w", dst, err)
	}

	if _, err := io.Copy(out, src); err != nil { //nolint:gosec // trusted source archive
		_ = out.Close()

		return fmt.Errorf("extracting %s: %w", f.Name, err)
	}

	return out.Close()
}

// DisplayTitle formats a dataset for log output, truncating long titles.
func DisplayTitle(productID int, title string) string {
	const maxLen = 50

	if len(title) > maxLen {
		title = title[:maxLen] + "..."
	}

	return fmt.Sprintf("[%d] %s", productID, title)
}

// progressLogger logs download progress every 10% as bytes flow through it.
type progressLogger struct {
	logger  *slog.Logger
	display string
	total   int64
	written int64
	lastPct int
}

func newProgressLogger(logger *slog.Logger, display string, total int64) *progressLogger {
	return &progressLogger{
		logger:  logger,
		display: display,
		total:   total,
		lastPct: -1,
	}
}

func (p *progressLogger) Write(b []byte) (int, error) {
	p.written += int64(len(b))

	pct := ProgressPercent(p.written, p.total)
	if ShouldLogProgress(pct, p.lastPct) {
		p.logger.Info("Downloading",
			slog.String("dataset", p.display),
			slog.Int64("bytes", p.written),
			slog.Int64("total_bytes", p.total),
			slog.Int("percent", pct),
		)

		p.lastPct = pct
	}

	return len(b), nil
}

// ProgressPercent computes download progress, 0 when the total is unknown.
func ProgressPercent(written, total int64) int {
	if total <= 0 {
		return 0
	}

	return int(100 * written / total)
}

// ShouldLogProgress reports whether progress crossed the next 10% step
// since the last logged percentage.
func ShouldLogProgress(currentPct, lastPct int) bool {
	const interval = 10

	return currentPct >= lastPct+interval
}
