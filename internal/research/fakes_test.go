package research

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/eternisai/agentic-research/internal/config"
	"github.com/eternisai/agentic-research/internal/logger"
	"github.com/eternisai/agentic-research/models"
)

type fakeSearcher struct {
	results []models.SearchResult
	err     error
	calls   atomic.Int32
	queries []string
	mu      sync.Mutex
}

func (f *fakeSearcher) Search(_ context.Context, query string) ([]models.SearchResult, error) {
	f.calls.Add(1)
	f.mu.Lock()
	f.queries = append(f.queries, query)
	f.mu.Unlock()
	return f.results, f.err
}

type fakeCrawler struct {
	result     *models.CrawlResult
	err        error
	calls      atomic.Int32
	seeds      []string
	pageBudget int
	discover   bool
}

func (f *fakeCrawler) Crawl(_ context.Context, seeds []string, pageBudget int, discoverDocuments bool) (*models.CrawlResult, error) {
	f.calls.Add(1)
	f.seeds = seeds
	f.pageBudget = pageBudget
	f.discover = discoverDocuments
	return f.result, f.err
}

type fakeSynthesizer struct {
	report *models.Report
	err    error
	calls  atomic.Int32
	pages  []models.PageInput
}

func (f *fakeSynthesizer) Synthesize(_ context.Context, _ string, pages []models.PageInput) (*models.Report, error) {
	f.calls.Add(1)
	f.pages = pages
	return f.report, f.err
}

// fakeFetcher fails for URLs in failing and returns the URL as body otherwise.
type fakeFetcher struct {
	failing map[string]bool
	calls   atomic.Int32
	hook    func()
}

func (f *fakeFetcher) Fetch(_ context.Context, url string) ([]byte, error) {
	f.calls.Add(1)
	if f.hook != nil {
		f.hook()
	}
	if f.failing[url] {
		return nil, fmt.Errorf("fetch %s: status 403", url)
	}
	return []byte("content of " + url), nil
}

func searchResults(n int) []models.SearchResult {
	out := make([]models.SearchResult, n)
	for i := range out {
		out[i] = models.SearchResult{Title: fmt.Sprintf("Result %d", i+1), URL: fmt.Sprintf("https://site%d.example/", i+1)}
	}
	return out
}

func crawledPages(n int) []models.CrawledPage {
	out := make([]models.CrawledPage, n)
	for i := range out {
		out[i] = models.CrawledPage{
			URL:            fmt.Sprintf("https://site%d.example/", i+1),
			Title:          fmt.Sprintf("Page %d", i+1),
			Text:           fmt.Sprintf("FULLTEXT-%d secret body", i+1),
			ContentPreview: fmt.Sprintf("preview %d", i+1),
		}
	}
	return out
}

func documents(n int) []models.DiscoveredDocument {
	out := make([]models.DiscoveredDocument, n)
	for i := range out {
		out[i] = models.DiscoveredDocument{
			URL:      fmt.Sprintf("https://docs.example/file%d.pdf", i+1),
			Filename: fmt.Sprintf("file%d.pdf", i+1),
		}
	}
	return out
}

type fixture struct {
	searcher    *fakeSearcher
	crawler     *fakeCrawler
	synthesizer *fakeSynthesizer
	fetcher     *fakeFetcher
	settings    config.PipelineConfig
	cache       PrefixCache
}

func newFixture(results, pages, docs int) *fixture {
	return &fixture{
		searcher:    &fakeSearcher{results: searchResults(results)},
		crawler:     &fakeCrawler{result: &models.CrawlResult{Pages: crawledPages(pages), Documents: documents(docs)}},
		synthesizer: &fakeSynthesizer{report: &models.Report{Report: "# Report", UsedPremiumBackend: true}},
		fetcher:     &fakeFetcher{failing: map[string]bool{}},
		settings:    config.DefaultPipeline(),
	}
}

func (f *fixture) pipeline() *Pipeline {
	return NewPipeline(f.searcher, f.crawler, f.cache, f.settings, logger.Discard())
}

func (f *fixture) orchestrator() *Orchestrator {
	return NewOrchestrator(f.pipeline(), f.synthesizer, logger.Discard())
}

func (f *fixture) archiver() *Archiver {
	return NewArchiver(f.pipeline(), f.fetcher, 4, logger.Discard())
}
