package search

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/eternisai/agentic-research/models"
	"golang.org/x/net/html"
)

// SearchDuckDuckGoHTML scrapes the keyless DuckDuckGo HTML endpoint.
func (s *Service) SearchDuckDuckGoHTML(ctx context.Context, query string) ([]models.SearchResult, error) {
	form := url.Values{}
	form.Set("q", query)
	form.Set("kl", "us-en")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.duckDuckGoURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", s.userAgent)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make search request: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("DuckDuckGo returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 2<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read search response: %w", err)
	}

	return parseDuckDuckGoHTML(string(body))
}

// parseDuckDuckGoHTML extracts results from a DuckDuckGo HTML results page.
func parseDuckDuckGoHTML(body string) ([]models.SearchResult, error) {
	doc, err := html.Parse(strings.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse search response: %w", err)
	}

	var results []models.SearchResult
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if len(results) > MaxResults {
			return
		}
		if n.Type == html.ElementNode && n.Data == "a" {
			class := attr(n, "class")
			switch {
			case hasClass(class, "result__a"):
				if link := resolveResultLink(attr(n, "href")); link != "" {
					results = append(results, models.SearchResult{
						Title: strings.TrimSpace(textOf(n)),
						URL:   link,
					})
				}
				return
			case hasClass(class, "result__snippet"):
				if len(results) > 0 && results[len(results)-1].Snippet == "" {
					results[len(results)-1].Snippet = strings.TrimSpace(textOf(n))
				}
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	if len(results) > MaxResults {
		results = results[:MaxResults]
	}
	return results, nil
}

// resolveResultLink unwraps DuckDuckGo redirect links and drops ad links.
func resolveResultLink(href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	if strings.HasPrefix(href, "//") {
		href = "https:" + href
	}

	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if strings.HasSuffix(u.Host, "duckduckgo.com") {
		if u.Path == "/y.js" {
			return ""
		}
		if target := u.Query().Get("uddg"); target != "" {
			return target
		}
		return ""
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ""
	}
	return u.String()
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func hasClass(classes, want string) bool {
	for _, c := range strings.Fields(classes) {
		if c == want {
			return true
		}
	}
	return false
}

func textOf(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(sb.String()), " ")
}
