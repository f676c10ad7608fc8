package research

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/eternisai/agentic-research/internal/config"
	"github.com/eternisai/agentic-research/internal/errors"
	"github.com/eternisai/agentic-research/internal/logger"
	"github.com/eternisai/agentic-research/internal/metrics"
	"github.com/eternisai/agentic-research/models"
)

// Pipeline runs the search and crawl prefix shared by report generation and archival.
type Pipeline struct {
	searcher Searcher
	crawler  Crawler
	cache    PrefixCache
	settings config.PipelineConfig
	logger   *logger.Logger
}

// NewPipeline creates a pipeline. A nil cache disables prefix reuse.
func NewPipeline(searcher Searcher, crawler Crawler, cache PrefixCache, settings config.PipelineConfig, logger *logger.Logger) *Pipeline {
	if cache == nil {
		cache = NoopCache{}
	}
	return &Pipeline{
		searcher: searcher,
		crawler:  crawler,
		cache:    instrumentedCache{cache},
		settings: settings,
		logger:   logger.WithComponent("pipeline"),
	}
}

// Settings returns the pipeline caps.
func (p *Pipeline) Settings() config.PipelineConfig {
	return p.settings
}

// Validate applies the prompt length rule.
func (p *Pipeline) Validate(prompt string) error {
	return ValidatePrompt(prompt, p.settings.MinPromptLength)
}

// Prefix searches for prompt and crawls the top results. Any stage failure is an UpstreamError.
func (p *Pipeline) Prefix(ctx context.Context, prompt string, progress ProgressFunc) (*Prefix, error) {
	log := p.logger.WithContext(ctx)
	key := PrefixKey(prompt, p.settings.DedupeSeeds)

	if cached, ok := p.cache.Get(ctx, key); ok {
		log.Debug("prefix cache hit", slog.Int("results", len(cached.Results)))
		return cached, nil
	}

	progress.emit(models.PhaseSearching, "Searching the web...")
	results, err := p.search(ctx, prompt)
	if err != nil {
		return nil, err
	}

	seeds := SelectSeeds(results, p.settings.MaxSeeds, p.settings.DedupeSeeds)

	progress.emit(models.PhaseCrawling, fmt.Sprintf("Crawling %d sources...", len(seeds)))
	crawled, err := p.crawl(ctx, seeds)
	if err != nil {
		return nil, err
	}

	prefix := &Prefix{Results: results, Crawl: crawled}
	p.cache.Set(ctx, key, prefix)
	return prefix, nil
}

func (p *Pipeline) search(ctx context.Context, prompt string) ([]models.SearchResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.NewUpstream(StageSearch, err)
	}

	start := time.Now()
	var results []models.SearchResult
	err := p.logger.LogOperation(ctx, StageSearch, func() error {
		var err error
		results, err = p.searcher.Search(ctx, prompt)
		return err
	})
	metrics.ObserveStage(StageSearch, start, err)
	if err != nil {
		return nil, errors.NewUpstream(StageSearch, err)
	}
	if results == nil {
		results = []models.SearchResult{}
	}
	return results, nil
}

func (p *Pipeline) crawl(ctx context.Context, seeds []string) (*models.CrawlResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.NewUpstream(StageCrawl, err)
	}

	start := time.Now()
	var crawled *models.CrawlResult
	err := p.logger.LogOperation(ctx, StageCrawl, func() error {
		var err error
		crawled, err = p.crawler.Crawl(ctx, seeds, p.settings.PageBudget, true)
		return err
	})
	metrics.ObserveStage(StageCrawl, start, err)
	if err != nil {
		return nil, errors.NewUpstream(StageCrawl, err)
	}
	if crawled == nil {
		crawled = &models.CrawlResult{}
	}
	return crawled, nil
}

// SelectSeeds takes the first max result URLs in order. Duplicates are kept unless dedupe is set.
func SelectSeeds(results []models.SearchResult, max int, dedupe bool) []string {
	seeds := make([]string, 0, max)
	seen := make(map[string]bool)
	for _, r := range results {
		if len(seeds) >= max {
			break
		}
		if dedupe {
			if seen[r.URL] {
				continue
			}
			seen[r.URL] = true
		}
		seeds = append(seeds, r.URL)
	}
	return seeds
}
