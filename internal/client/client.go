package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/eternisai/agentic-research/models"
	"github.com/gorilla/websocket"
)

const (
	researchPath = "/research"
	archivePath  = "/archive"
	streamPath   = "/research/stream"

	defaultArchiveFilename = "agentic-downloads.zip"
	maxErrorBody           = 64 << 10
)

// Archive is a downloaded document archive.
type Archive struct {
	Data      []byte
	Filename  string
	Included  int
	Attempted int
}

// Client calls the research server.
type Client struct {
	baseURL    string
	httpClient *http.Client
	dialer     *websocket.Dialer
}

// NewClient creates a client for baseURL. A nil httpClient gets a client with a timeout above the server budget.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 90 * time.Second}
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		dialer:     websocket.DefaultDialer,
	}
}

func (c *Client) post(ctx context.Context, path, prompt string) (*http.Response, error) {
	body, err := json.Marshal(map[string]string{"prompt": prompt})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	return resp, nil
}

// Research runs a report generation on the server.
func (c *Client) Research(ctx context.Context, prompt string) (*models.ResearchResponse, error) {
	resp, err := c.post(ctx, researchPath, prompt)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, newServerError(resp.StatusCode, body, "Request failed")
	}

	var out models.ResearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, &TransportError{Err: fmt.Errorf("decode response: %w", err)}
	}
	return &out, nil
}

// Archive downloads the document archive for prompt.
func (c *Client) Archive(ctx context.Context, prompt string) (*Archive, error) {
	resp, err := c.post(ctx, archivePath, prompt)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, newServerError(resp.StatusCode, body, "Failed to build ZIP")
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Err: err}
	}

	archive := &Archive{Data: data, Filename: defaultArchiveFilename}
	if _, params, err := mime.ParseMediaType(resp.Header.Get("Content-Disposition")); err == nil && params["filename"] != "" {
		archive.Filename = params["filename"]
	}
	archive.Included, _ = strconv.Atoi(resp.Header.Get("X-Archive-Included"))
	archive.Attempted, _ = strconv.Atoi(resp.Header.Get("X-Archive-Attempted"))
	return archive, nil
}

// StreamResearch runs a report generation over the progress stream. onEvent sees every event in order.
func (c *Client) StreamResearch(ctx context.Context, prompt string, onEvent func(models.ProgressEvent)) (*models.ResearchResponse, error) {
	u, err := url.Parse(c.baseURL + streamPath)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.RawQuery = url.Values{"prompt": {prompt}}.Encode()

	conn, resp, err := c.dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		if resp != nil {
			defer resp.Body.Close() //nolint:errcheck
			body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
			return nil, newServerError(resp.StatusCode, body, "Request failed")
		}
		return nil, &TransportError{Err: err}
	}
	defer conn.Close() //nolint:errcheck

	// Closing the connection unblocks the read loop when ctx ends.
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	for {
		var event models.ProgressEvent
		if err := conn.ReadJSON(&event); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, &TransportError{Err: ctxErr}
			}
			return nil, &TransportError{Err: fmt.Errorf("progress stream closed: %w", err)}
		}
		if onEvent != nil {
			onEvent(event)
		}

		switch event.Phase {
		case models.PhaseComplete:
			if event.Result == nil {
				return nil, &TransportError{Err: fmt.Errorf("progress stream completed without a result")}
			}
			return event.Result, nil
		case models.PhaseFailed:
			return nil, newServerError(http.StatusInternalServerError, []byte(event.Message), "Request failed")
		}
	}
}
