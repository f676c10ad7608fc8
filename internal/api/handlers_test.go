package api

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/eternisai/agentic-research/internal/config"
	"github.com/eternisai/agentic-research/internal/logger"
	"github.com/eternisai/agentic-research/internal/research"
	"github.com/eternisai/agentic-research/models"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubSearcher struct{ calls atomic.Int32 }

func (s *stubSearcher) Search(context.Context, string) ([]models.SearchResult, error) {
	s.calls.Add(1)
	out := make([]models.SearchResult, 10)
	for i := range out {
		out[i] = models.SearchResult{Title: fmt.Sprintf("R%d", i+1), URL: fmt.Sprintf("https://r%d.example/", i+1)}
	}
	return out, nil
}

type stubCrawler struct{ docs []models.DiscoveredDocument }

func (s *stubCrawler) Crawl(context.Context, []string, int, bool) (*models.CrawlResult, error) {
	return &models.CrawlResult{
		Pages:     []models.CrawledPage{{URL: "https://r1.example/", Title: "R1", Text: "FULLTEXT", ContentPreview: "preview"}},
		Documents: s.docs,
	}, nil
}

type stubSynthesizer struct {
	err   error
	block bool
}

func (s *stubSynthesizer) Synthesize(ctx context.Context, _ string, _ []models.PageInput) (*models.Report, error) {
	if s.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if s.err != nil {
		return nil, s.err
	}
	return &models.Report{Report: "# Report", UsedPremiumBackend: false}, nil
}

type stubFetcher struct{}

func (stubFetcher) Fetch(_ context.Context, url string) ([]byte, error) {
	if strings.Contains(url, "broken") {
		return nil, stderrors.New("status 404")
	}
	return []byte("bytes of " + url), nil
}

type testEnv struct {
	searcher    *stubSearcher
	synthesizer *stubSynthesizer
	cfg         *config.Config
	handler     http.Handler
}

func newTestEnv(t *testing.T, mutate func(*testEnv)) *testEnv {
	t.Helper()
	env := &testEnv{
		searcher:    &stubSearcher{},
		synthesizer: &stubSynthesizer{},
		cfg: &config.Config{
			OperationTimeout:   time.Minute,
			CORSAllowedOrigins: "*",
			Pipeline:           config.DefaultPipeline(),
		},
	}
	if mutate != nil {
		mutate(env)
	}

	log := logger.Discard()
	crawler := &stubCrawler{docs: []models.DiscoveredDocument{
		{URL: "https://d.example/a.pdf", Filename: "a.pdf"},
		{URL: "https://d.example/broken.pdf", Filename: "broken.pdf"},
	}}
	pipeline := research.NewPipeline(env.searcher, crawler, nil, env.cfg.Pipeline, log)
	h := NewHandler(
		research.NewOrchestrator(pipeline, env.synthesizer, log),
		research.NewArchiver(pipeline, stubFetcher{}, 4, log),
		env.cfg.OperationTimeout,
		log,
	)
	env.handler = NewRouter(env.cfg, h, log)
	return env
}

func (e *testEnv) post(path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.handler.ServeHTTP(w, req)
	return w
}

func TestInvalidPromptsReturn400(t *testing.T) {
	env := newTestEnv(t, nil)

	bodies := []string{`{"prompt":""}`, `{"prompt":"  abc "}`, `{}`, `not json`, `{"prompt":42}`, ``}
	for _, path := range []string{"/research", "/archive", "/api/agent", "/api/zip"} {
		for _, body := range bodies {
			w := env.post(path, body)
			assert.Equal(t, http.StatusBadRequest, w.Code, "%s %s", path, body)
			assert.Equal(t, "Invalid prompt", w.Body.String())
			assert.Contains(t, w.Header().Get("Content-Type"), "text/plain")
		}
	}
	assert.Zero(t, env.searcher.calls.Load())
}

func TestResearchSuccess(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.post("/research", `{"prompt":"ai agents like manus"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get(logger.RequestIDHeader))
	assert.NotContains(t, w.Body.String(), "FULLTEXT")

	var resp models.ResearchResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "# Report", resp.Report)
	assert.False(t, resp.UsedPremiumBackend)
	assert.Len(t, resp.Results, 10)
	require.Len(t, resp.Crawled, 1)
	assert.Equal(t, "preview", resp.Crawled[0].ContentPreview)
	assert.Len(t, resp.Documents, 2)
}

func TestResearchLegacyPath(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.post("/api/agent", `{"prompt":"ai agents like manus"}`)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestResearchSynthesisFailureReturns500(t *testing.T) {
	env := newTestEnv(t, func(e *testEnv) {
		e.synthesizer.err = stderrors.New("synthesis backend exploded")
	})

	w := env.post("/research", `{"prompt":"ai agents like manus"}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "synthesis backend exploded", w.Body.String())
	assert.NotContains(t, w.Body.String(), "report")
}

func TestResearchTimeoutReturns500(t *testing.T) {
	env := newTestEnv(t, func(e *testEnv) {
		e.synthesizer.block = true
		e.cfg.OperationTimeout = 50 * time.Millisecond
	})

	w := env.post("/research", `{"prompt":"ai agents like manus"}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "operation timed out", w.Body.String())
}

func TestArchiveSuccess(t *testing.T) {
	env := newTestEnv(t, nil)

	for _, path := range []string{"/archive", "/api/zip"} {
		w := env.post(path, `{"prompt":"ai agents like manus"}`)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "application/zip", w.Header().Get("Content-Type"))
		assert.Equal(t, `attachment; filename="agentic-downloads.zip"`, w.Header().Get("Content-Disposition"))
		assert.Equal(t, "1", w.Header().Get(HeaderArchiveIncluded))
		assert.Equal(t, "2", w.Header().Get(HeaderArchiveAttempted))

		data := w.Body.Bytes()
		zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
		require.NoError(t, err)
		var names []string
		for _, f := range zr.File {
			names = append(names, f.Name)
		}
		assert.Equal(t, []string{"a.pdf", "manifest.txt"}, names)
	}
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, nil)

	w := httptest.NewRecorder()
	env.handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t, nil)
	env.post("/research", `{"prompt":"ai agents like manus"}`)

	w := httptest.NewRecorder()
	env.handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "agentic_operations_total")
}

func TestRateLimit(t *testing.T) {
	env := newTestEnv(t, func(e *testEnv) {
		e.cfg.RateLimitRPS = 0.001
		e.cfg.RateLimitBurst = 2
	})

	assert.Equal(t, http.StatusBadRequest, env.post("/research", `{}`).Code)
	assert.Equal(t, http.StatusBadRequest, env.post("/research", `{}`).Code)
	w := env.post("/research", `{}`)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "Too many requests", w.Body.String())
}

func TestRateLimitDisabledByDefault(t *testing.T) {
	t.Setenv("RATE_LIMIT_RPS", "")
	defaults := config.FromEnv()
	env := newTestEnv(t, func(e *testEnv) {
		e.cfg.RateLimitRPS = defaults.RateLimitRPS
		e.cfg.RateLimitBurst = defaults.RateLimitBurst
	})

	for i := 0; i < 20; i++ {
		assert.Equal(t, http.StatusBadRequest, env.post("/research", `{}`).Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	env := newTestEnv(t, func(e *testEnv) {
		e.cfg.CORSAllowedOrigins = "https://app.example"
	})

	req := httptest.NewRequest(http.MethodOptions, "/archive", nil)
	req.Header.Set("Origin", "https://app.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := httptest.NewRecorder()
	env.handler.ServeHTTP(w, req)

	assert.Equal(t, "https://app.example", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestResearchStream(t *testing.T) {
	env := newTestEnv(t, nil)
	server := httptest.NewServer(env.handler)
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/research/stream?prompt=ai+agents+like+manus"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	var phases []models.Phase
	var last models.ProgressEvent
	for {
		var event models.ProgressEvent
		if err := conn.ReadJSON(&event); err != nil {
			break
		}
		phases = append(phases, event.Phase)
		last = event
	}

	assert.Equal(t, []models.Phase{models.PhaseSearching, models.PhaseCrawling, models.PhaseReporting, models.PhaseComplete}, phases)
	require.NotNil(t, last.Result)
	assert.Equal(t, "# Report", last.Result.Report)
}

func TestResearchStreamRejectsInvalidPrompt(t *testing.T) {
	env := newTestEnv(t, nil)

	w := httptest.NewRecorder()
	env.handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/research/stream?prompt=ab", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid prompt", w.Body.String())
}
