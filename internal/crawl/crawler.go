package crawl

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/eternisai/agentic-research/internal/config"
	"github.com/eternisai/agentic-research/internal/logger"
	"github.com/eternisai/agentic-research/models"
	"golang.org/x/sync/errgroup"
)

// maxDepth is how far the crawler follows links away from a seed.
const maxDepth = 1

// Crawler fetches pages breadth-first from a set of seeds and collects downloadable documents.
type Crawler struct {
	client        *http.Client
	logger        *logger.Logger
	concurrency   int
	previewLength int
	maxPageBytes  int64
	userAgent     string
}

// NewCrawler creates a crawler from the service configuration.
func NewCrawler(cfg *config.Config, logger *logger.Logger) *Crawler {
	timeout := cfg.CrawlTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	concurrency := cfg.CrawlConcurrency
	if concurrency <= 0 {
		concurrency = 4
	}

	return &Crawler{
		client: &http.Client{
			Timeout: timeout,
		},
		logger:        logger.WithComponent("crawl"),
		concurrency:   concurrency,
		previewLength: cfg.Pipeline.PreviewLength,
		maxPageBytes:  cfg.Pipeline.MaxPageBytes,
		userAgent:     cfg.Pipeline.UserAgent,
	}
}

// task is a URL scheduled for fetching.
type task struct {
	url   string
	depth int
}

// fetched is the outcome of one page fetch.
type fetched struct {
	page     *models.CrawledPage
	links    []string
	document *models.DiscoveredDocument
}

// Crawl fetches at most pageBudget pages starting from seeds. Seeds are visited in order and
// links are followed up to one hop on the seed's host. Pages and documents keep discovery order.
// Individual fetch failures are skipped; the crawl only fails when ctx ends.
func (c *Crawler) Crawl(ctx context.Context, seeds []string, pageBudget int, discoverDocuments bool) (*models.CrawlResult, error) {
	log := c.logger.WithContext(ctx)
	result := &models.CrawlResult{
		Pages:     []models.CrawledPage{},
		Documents: []models.DiscoveredDocument{},
	}
	if pageBudget <= 0 {
		return result, nil
	}

	visited := NewVisitedURLStore()
	seenDocs := make(map[string]bool)
	addDocument := func(doc models.DiscoveredDocument) {
		if !discoverDocuments || seenDocs[doc.URL] {
			return
		}
		seenDocs[doc.URL] = true
		result.Documents = append(result.Documents, doc)
	}

	var frontier []task
	for _, seed := range seeds {
		key := normalizeURL(seed)
		if key == "" || !visited.MarkIfNotVisited(key) {
			continue
		}
		if IsDocumentURL(key) {
			addDocument(models.DiscoveredDocument{URL: key, Filename: SafeFilename(key, len(result.Documents)+1)})
			continue
		}
		frontier = append(frontier, task{url: key, depth: 0})
	}

	for len(frontier) > 0 && len(result.Pages) < pageBudget {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("crawl interrupted: %w", err)
		}

		remaining := pageBudget - len(result.Pages)
		batch := frontier
		if len(batch) > remaining {
			batch = frontier[:remaining]
		}
		frontier = frontier[len(batch):]

		outcomes := c.fetchBatch(ctx, batch)
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("crawl interrupted: %w", err)
		}

		var next []task
		for i, out := range outcomes {
			if out.document != nil {
				out.document.Filename = safeFilename(out.document.URL, len(result.Documents)+1, out.document.Filename)
				addDocument(*out.document)
				continue
			}
			if out.page == nil {
				continue
			}
			if len(result.Pages) < pageBudget {
				result.Pages = append(result.Pages, *out.page)
			}

			for _, link := range out.links {
				if IsDocumentURL(link) {
					addDocument(models.DiscoveredDocument{URL: link, Filename: SafeFilename(link, len(result.Documents)+1)})
					continue
				}
				if batch[i].depth >= maxDepth || !sameHost(batch[i].url, link) {
					continue
				}
				if visited.MarkIfNotVisited(link) {
					next = append(next, task{url: link, depth: batch[i].depth + 1})
				}
			}
		}
		// Unfetched tasks of the current depth go first so breadth-first order holds.
		frontier = append(frontier, next...)
	}

	log.Info("crawl finished",
		slog.Int("seeds", len(seeds)),
		slog.Int("pages", len(result.Pages)),
		slog.Int("documents", len(result.Documents)))

	return result, nil
}

// fetchBatch fetches tasks concurrently. Outcomes are indexed like tasks.
func (c *Crawler) fetchBatch(ctx context.Context, tasks []task) []fetched {
	outcomes := make([]fetched, len(tasks))

	var g errgroup.Group
	g.SetLimit(c.concurrency)

	var mu sync.Mutex
	failures := 0
	for i, t := range tasks {
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			out, err := c.fetchPage(ctx, t.url)
			if err != nil {
				mu.Lock()
				failures++
				mu.Unlock()
				c.logger.WithContext(ctx).Debug("page skipped",
					slog.String("url", t.url),
					slog.String("error", err.Error()))
				return nil
			}
			outcomes[i] = out
			return nil
		})
	}
	_ = g.Wait()

	if failures > 0 {
		c.logger.WithContext(ctx).Info("some pages could not be fetched",
			slog.Int("failed", failures),
			slog.Int("attempted", len(tasks)))
	}
	return outcomes
}

// fetchPage GETs pageURL and turns it into a page, or a document for non-HTML payloads.
func (c *Crawler) fetchPage(ctx context.Context, pageURL string) (fetched, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return fetched{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	resp, err := c.client.Do(req)
	if err != nil {
		return fetched{}, fmt.Errorf("failed to fetch page: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return fetched{}, fmt.Errorf("page returned status %d", resp.StatusCode)
	}

	mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if ext, ok := documentContentTypes[mediaType]; ok {
		// Filename carries the fallback extension until Crawl assigns the final name.
		return fetched{document: &models.DiscoveredDocument{URL: pageURL, Filename: ext}}, nil
	}
	if mediaType != "" && mediaType != "text/html" && mediaType != "application/xhtml+xml" {
		return fetched{}, fmt.Errorf("unsupported content type %q", mediaType)
	}

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, c.maxPageBytes))
	if err != nil {
		return fetched{}, fmt.Errorf("failed to parse page: %w", err)
	}

	base := resp.Request.URL
	page, links := extractPage(doc, base, c.previewLength)
	page.URL = pageURL

	return fetched{page: page, links: links}, nil
}

// extractPage pulls title, readable text and absolute links out of doc.
func extractPage(doc *goquery.Document, base *url.URL, previewLength int) (*models.CrawledPage, []string) {
	title := collapseWhitespace(doc.Find("title").First().Text())

	var links []string
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		if link := resolveLink(base, href); link != "" {
			links = append(links, link)
		}
	})

	doc.Find("script, style, noscript, svg, iframe, nav, footer, header, form").Remove()
	body := doc.Find("body")
	var text string
	if body.Length() > 0 {
		text = collapseWhitespace(body.Text())
	} else {
		text = collapseWhitespace(doc.Text())
	}

	return &models.CrawledPage{
		Title:          title,
		Text:           text,
		ContentPreview: Preview(text, previewLength),
	}, links
}

// Preview returns the first n runes of text.
func Preview(text string, n int) string {
	if n <= 0 {
		return ""
	}
	runes := []rune(text)
	if len(runes) <= n {
		return text
	}
	return strings.TrimSpace(string(runes[:n]))
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// resolveLink makes href absolute against base and drops non-http links and fragments.
func resolveLink(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	abs := base.ResolveReference(ref)
	if abs.Scheme != "http" && abs.Scheme != "https" {
		return ""
	}
	abs.Fragment = ""
	return abs.String()
}

// normalizeURL validates a seed URL and strips its fragment.
func normalizeURL(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return ""
	}
	u.Fragment = ""
	return u.String()
}

func sameHost(a, b string) bool {
	ua, err := url.Parse(a)
	if err != nil {
		return false
	}
	ub, err := url.Parse(b)
	if err != nil {
		return false
	}
	return strings.EqualFold(strings.TrimPrefix(ua.Hostname(), "www."), strings.TrimPrefix(ub.Hostname(), "www."))
}
