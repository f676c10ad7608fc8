package search

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/eternisai/agentic-research/internal/config"
	"github.com/eternisai/agentic-research/internal/logger"
	"github.com/eternisai/agentic-research/models"
)

const (
	ProviderSerpAPI    = "serpapi"
	ProviderDuckDuckGo = "duckduckgo"

	// MaxResults caps the number of results returned per query.
	MaxResults = 10

	defaultSerpAPIURL    = "https://serpapi.com/search.json"
	defaultDuckDuckGoURL = "https://html.duckduckgo.com/html/"
)

// Service performs web searches against the configured provider.
type Service struct {
	httpClient *http.Client
	logger     *logger.Logger
	provider   string
	serpAPIKey string
	userAgent  string

	serpAPIURL    string
	duckDuckGoURL string
}

// NewService creates a new search service.
func NewService(cfg *config.Config, logger *logger.Logger) *Service {
	timeout := cfg.SearchTimeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}

	provider := cfg.SearchProvider
	if provider == "" {
		provider = ProviderDuckDuckGo
	}

	return &Service{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger:        logger.WithComponent("search"),
		provider:      provider,
		serpAPIKey:    cfg.SerpAPIKey,
		userAgent:     cfg.Pipeline.UserAgent,
		serpAPIURL:    defaultSerpAPIURL,
		duckDuckGoURL: defaultDuckDuckGoURL,
	}
}

// SerpAPIDuckDuckGoResponse represents the raw SerpAPI DuckDuckGo response.
type SerpAPIDuckDuckGoResponse struct {
	OrganicResults []struct {
		Position int    `json:"position"`
		Title    string `json:"title"`
		Link     string `json:"link"`
		Snippet  string `json:"snippet"`
	} `json:"organic_results"`
	SearchMetadata struct {
		Status         string  `json:"status"`
		TotalTimeTaken float64 `json:"total_time_taken"`
	} `json:"search_metadata"`
	Error string `json:"error,omitempty"`
}

// Search runs query against the configured provider and returns results in provider order.
func (s *Service) Search(ctx context.Context, query string) ([]models.SearchResult, error) {
	start := time.Now()
	log := s.logger.WithContext(ctx)

	var (
		results []models.SearchResult
		err     error
	)
	switch s.provider {
	case ProviderSerpAPI:
		results, err = s.SearchSerpAPI(ctx, query)
	case ProviderDuckDuckGo:
		results, err = s.SearchDuckDuckGoHTML(ctx, query)
	default:
		err = fmt.Errorf("unsupported search provider %q", s.provider)
	}
	if err != nil {
		return nil, err
	}

	log.Info("search completed",
		slog.String("provider", s.provider),
		slog.Int("results_count", len(results)),
		slog.Duration("duration", time.Since(start)))

	return results, nil
}

// SearchSerpAPI performs a DuckDuckGo search via SerpAPI.
func (s *Service) SearchSerpAPI(ctx context.Context, query string) ([]models.SearchResult, error) {
	if s.serpAPIKey == "" {
		return nil, fmt.Errorf("SerpAPI key not configured")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, s.buildSerpAPIURL(query), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := s.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to make search request: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read search response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("SerpAPI returned status %d: %s", resp.StatusCode, string(body))
	}

	var serpResp SerpAPIDuckDuckGoResponse
	if err := json.Unmarshal(body, &serpResp); err != nil {
		return nil, fmt.Errorf("failed to parse SerpAPI response: %w", err)
	}

	if serpResp.Error != "" {
		return nil, fmt.Errorf("SerpAPI error: %s", serpResp.Error)
	}

	return convertSerpAPIResponse(serpResp), nil
}

// buildSerpAPIURL constructs the SerpAPI request URL.
func (s *Service) buildSerpAPIURL(query string) string {
	params := url.Values{}
	params.Set("api_key", s.serpAPIKey)
	params.Set("engine", "duckduckgo")
	params.Set("q", query)
	params.Set("kl", "us-en")
	params.Set("safe", "-1")

	return s.serpAPIURL + "?" + params.Encode()
}

func convertSerpAPIResponse(serpResp SerpAPIDuckDuckGoResponse) []models.SearchResult {
	results := make([]models.SearchResult, 0, len(serpResp.OrganicResults))
	for _, result := range serpResp.OrganicResults {
		link := strings.TrimSpace(result.Link)
		if link == "" {
			continue
		}
		results = append(results, models.SearchResult{
			Title:   strings.TrimSpace(result.Title),
			URL:     link,
			Snippet: strings.TrimSpace(result.Snippet),
		})
		if len(results) == MaxResults {
			break
		}
	}
	return results
}
