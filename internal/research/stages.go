package research

import (
	"context"

	"github.com/eternisai/agentic-research/models"
)

// Searcher runs a web search for a query.
type Searcher interface {
	Search(ctx context.Context, query string) ([]models.SearchResult, error)
}

// Crawler fetches pages from seed URLs and discovers documents.
type Crawler interface {
	Crawl(ctx context.Context, seeds []string, pageBudget int, discoverDocuments bool) (*models.CrawlResult, error)
}

// Synthesizer writes a report from crawled pages.
type Synthesizer interface {
	Synthesize(ctx context.Context, prompt string, pages []models.PageInput) (*models.Report, error)
}

// Fetcher downloads the raw bytes of a document.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// ProgressFunc receives phase changes of a running operation.
type ProgressFunc func(phase models.Phase, message string)

func (f ProgressFunc) emit(phase models.Phase, message string) {
	if f != nil {
		f(phase, message)
	}
}

// Stage names used in logs, metrics and upstream errors.
const (
	StageSearch    = "search"
	StageCrawl     = "crawl"
	StageSynthesis = "synthesis"
	StageArchive   = "archive"
)
