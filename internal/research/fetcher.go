package research

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/eternisai/agentic-research/internal/config"
	"github.com/eternisai/agentic-research/internal/errors"
)

// HTTPFetcher downloads documents over HTTP.
type HTTPFetcher struct {
	client    *http.Client
	userAgent string
	maxBytes  int64
}

func NewHTTPFetcher(cfg *config.Config) *HTTPFetcher {
	timeout := cfg.DocumentFetchTimeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &HTTPFetcher{
		client:    &http.Client{Timeout: timeout},
		userAgent: cfg.Pipeline.UserAgent,
		maxBytes:  cfg.Pipeline.MaxDocumentBytes,
	}
}

// Fetch returns the body of url. Non-2xx responses and oversized bodies are DocumentFetchErrors.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &errors.DocumentFetchError{URL: url, Err: err}
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &errors.DocumentFetchError{URL: url, Err: err}
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &errors.DocumentFetchError{URL: url, StatusCode: resp.StatusCode}
	}

	body := io.Reader(resp.Body)
	if f.maxBytes > 0 {
		body = io.LimitReader(resp.Body, f.maxBytes+1)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, &errors.DocumentFetchError{URL: url, Err: err}
	}
	if f.maxBytes > 0 && int64(len(data)) > f.maxBytes {
		return nil, &errors.DocumentFetchError{URL: url, Err: fmt.Errorf("document exceeds %d bytes", f.maxBytes)}
	}
	return data, nil
}
