package models

// SearchResult is one candidate returned by the search stage. Identity is the URL.
type SearchResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet,omitempty"`
}

// CrawledPage is a fetched HTML page. Text is the full extracted content and never leaves the server.
type CrawledPage struct {
	URL            string `json:"url"`
	Title          string `json:"title,omitempty"`
	Text           string `json:"text"`
	ContentPreview string `json:"contentPreview"`
}

// DiscoveredDocument is a downloadable non-HTML resource found while crawling.
// Filename is always a safe archive entry name.
type DiscoveredDocument struct {
	URL      string `json:"url"`
	Filename string `json:"filename"`
}

// CrawlResult is what the crawl stage returns.
type CrawlResult struct {
	Pages     []CrawledPage        `json:"pages"`
	Documents []DiscoveredDocument `json:"documents"`
}

// PageInput is the projection of a crawled page handed to report synthesis.
type PageInput struct {
	URL   string `json:"url"`
	Title string `json:"title,omitempty"`
	Text  string `json:"text"`
}

// Report is the synthesized research report.
type Report struct {
	Report             string `json:"report"`
	UsedPremiumBackend bool   `json:"usedPremiumBackend"`
}

// CrawledPreview is the display-safe projection of a crawled page.
type CrawledPreview struct {
	URL            string `json:"url"`
	Title          string `json:"title,omitempty"`
	ContentPreview string `json:"contentPreview"`
}

// ResearchResponse is the body of a successful POST /research.
type ResearchResponse struct {
	Report             string               `json:"report"`
	UsedPremiumBackend bool                 `json:"usedPremiumBackend"`
	Results            []SearchResult       `json:"results"`
	Crawled            []CrawledPreview     `json:"crawled"`
	Documents          []DiscoveredDocument `json:"documents"`
}

// ResearchRequest is the body accepted by POST /research and POST /archive.
type ResearchRequest struct {
	Prompt *string `json:"prompt"`
}

// ArchiveManifestEntry describes one attempted document download.
type ArchiveManifestEntry struct {
	Index    int    `json:"index"`
	Filename string `json:"filename"`
	URL      string `json:"url"`
	Included bool   `json:"included"`
}

// Phase is a coarse progress marker of a research run.
type Phase string

const (
	PhaseSearching Phase = "searching"
	PhaseCrawling  Phase = "crawling"
	PhaseReporting Phase = "reporting"
	PhaseComplete  Phase = "complete"
	PhaseFailed    Phase = "failed"
)

// ProgressEvent is streamed to clients following a research run.
type ProgressEvent struct {
	Phase   Phase             `json:"phase"`
	Message string            `json:"message,omitempty"`
	Result  *ResearchResponse `json:"result,omitempty"`
}
