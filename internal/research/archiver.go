package research

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/eternisai/agentic-research/internal/errors"
	"github.com/eternisai/agentic-research/internal/logger"
	"github.com/eternisai/agentic-research/internal/metrics"
	"github.com/eternisai/agentic-research/models"
	"github.com/klauspost/compress/zip"
	"golang.org/x/sync/errgroup"
)

const (
	operationArchive = "archive"

	// ArchiveFilename is the suggested download name.
	ArchiveFilename = "agentic-downloads.zip"
	// ManifestFilename is the archive entry describing attempted downloads.
	ManifestFilename = "manifest.txt"
)

// Archive is a packaged set of documents.
type Archive struct {
	Data      []byte
	Filename  string
	Included  int
	Attempted int
	Manifest  []models.ArchiveManifestEntry
}

// Archiver packages the documents discovered for a prompt into a zip archive.
type Archiver struct {
	pipeline    *Pipeline
	fetcher     Fetcher
	concurrency int
	logger      *logger.Logger
}

// NewArchiver creates an archiver. concurrency bounds parallel fetches; zero fetches every document at once.
func NewArchiver(pipeline *Pipeline, fetcher Fetcher, concurrency int, logger *logger.Logger) *Archiver {
	return &Archiver{
		pipeline:    pipeline,
		fetcher:     fetcher,
		concurrency: concurrency,
		logger:      logger.WithComponent("archiver"),
	}
}

// Validate checks prompt without running anything.
func (a *Archiver) Validate(prompt string) error {
	return a.pipeline.Validate(prompt)
}

// fetchOutcome is written only by the goroutine owning its index.
type fetchOutcome struct {
	data []byte
	err  error
}

// Archive runs search and crawl for prompt, downloads the first documents and zips them with a manifest.
// Only search and crawl failures fail the operation; document fetch failures are recorded in the manifest.
func (a *Archiver) Archive(ctx context.Context, prompt string) (archive *Archive, err error) {
	if err := a.pipeline.Validate(prompt); err != nil {
		return nil, err
	}

	ctx = logger.WithOperation(ctx, operationArchive)
	log := a.logger.WithContext(ctx)
	start := time.Now()
	defer func() {
		metrics.ObserveOperation(operationArchive, start, err)
	}()

	prefix, err := a.pipeline.Prefix(ctx, prompt, nil)
	if err != nil {
		return nil, err
	}

	docs := prefix.Crawl.Documents
	if limit := a.pipeline.Settings().MaxDocuments; len(docs) > limit {
		docs = docs[:limit]
	}

	outcomes := a.fetchAll(ctx, docs)
	if err := ctx.Err(); err != nil {
		return nil, errors.NewUpstream(StageArchive, err)
	}

	archive, err = buildArchive(prompt, docs, outcomes)
	if err != nil {
		return nil, errors.NewUpstream(StageArchive, err)
	}

	log.Info("archive built",
		slog.Int("included", archive.Included),
		slog.Int("attempted", archive.Attempted),
		slog.Int("bytes", len(archive.Data)),
		slog.Duration("duration", time.Since(start)))

	return archive, nil
}

// fetchAll downloads docs concurrently. Each task only writes its own slot and never returns an error,
// so one failure cannot cancel the others. Tasks not yet started are skipped once ctx ends.
func (a *Archiver) fetchAll(ctx context.Context, docs []models.DiscoveredDocument) []fetchOutcome {
	outcomes := make([]fetchOutcome, len(docs))

	var g errgroup.Group
	if a.concurrency > 0 {
		g.SetLimit(a.concurrency)
	}

	for i, doc := range docs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				outcomes[i] = fetchOutcome{err: err}
				return nil
			}
			data, err := a.fetcher.Fetch(ctx, doc.URL)
			if err != nil {
				metrics.DocumentFetches.WithLabelValues("failed").Inc()
				a.logger.WithContext(ctx).Warn("document fetch failed",
					slog.String("url", doc.URL),
					slog.String("error", err.Error()))
				outcomes[i] = fetchOutcome{err: err}
				return nil
			}
			metrics.DocumentFetches.WithLabelValues("included").Inc()
			outcomes[i] = fetchOutcome{data: data}
			return nil
		})
	}
	_ = g.Wait()

	return outcomes
}

// buildArchive writes the successful downloads and the manifest into a DEFLATE zip.
// A later document with the same filename replaces an earlier one.
func buildArchive(prompt string, docs []models.DiscoveredDocument, outcomes []fetchOutcome) (*Archive, error) {
	manifest := make([]models.ArchiveManifestEntry, len(docs))
	included := 0

	var order []string
	contents := make(map[string][]byte)
	for i, doc := range docs {
		ok := outcomes[i].err == nil
		manifest[i] = models.ArchiveManifestEntry{Index: i + 1, Filename: doc.Filename, URL: doc.URL, Included: ok}
		if !ok {
			continue
		}
		included++
		if _, exists := contents[doc.Filename]; !exists {
			order = append(order, doc.Filename)
		}
		contents[doc.Filename] = outcomes[i].data
	}

	manifestText := ManifestText(prompt, manifest, included)
	if _, exists := contents[ManifestFilename]; !exists {
		order = append(order, ManifestFilename)
	}
	contents[ManifestFilename] = []byte(manifestText)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, name := range order {
		w, err := zw.CreateHeader(&zip.FileHeader{
			Name:     name,
			Method:   zip.Deflate,
			Modified: time.Now(),
		})
		if err != nil {
			return nil, fmt.Errorf("create zip entry %s: %w", name, err)
		}
		if _, err := w.Write(contents[name]); err != nil {
			return nil, fmt.Errorf("write zip entry %s: %w", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("finalize zip: %w", err)
	}

	return &Archive{
		Data:      buf.Bytes(),
		Filename:  ArchiveFilename,
		Included:  included,
		Attempted: len(docs),
		Manifest:  manifest,
	}, nil
}

// ManifestText renders the manifest entry. Every attempted document is listed in original order.
func ManifestText(prompt string, entries []models.ArchiveManifestEntry, included int) string {
	lines := []string{
		"Agentic Downloads Manifest",
		"Prompt: " + prompt,
		"",
		fmt.Sprintf("Included documents (%d of %d attempted):", included, len(entries)),
	}
	for _, e := range entries {
		lines = append(lines, fmt.Sprintf("- [%d] %s -> %s", e.Index, e.Filename, e.URL))
	}
	lines = append(lines, "", "Note: Some downloads may fail due to remote restrictions.")
	return strings.Join(lines, "\n")
}
