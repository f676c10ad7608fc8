package report

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/eternisai/agentic-research/internal/config"
	"github.com/eternisai/agentic-research/internal/logger"
	"github.com/eternisai/agentic-research/internal/metrics"
	"github.com/eternisai/agentic-research/models"
	openai "github.com/sashabaranov/go-openai"
)

const (
	maxTokens       = 1800
	temperature     = 0.3
	maxPageChars    = 4000
	requestTimeout  = 45 * time.Second
	backendPremium  = "premium"
	backendLocal    = "local"
	systemPrompt    = `You are a research analyst. Write a well structured markdown research report answering the user's question.
Use only the provided sources. Start with a short overview, continue with key findings grouped by theme,
cite sources inline as [n] and finish with a "Sources" list of the numbered URLs.`
	userPromptTmpl = `Question: %s

Sources:
%s`
)

// Synthesizer writes a report from crawled pages. It prefers the language model backend and
// falls back to the local extractive summarizer when the backend is unavailable or fails.
type Synthesizer struct {
	client *openai.Client
	model  string
	logger *logger.Logger
}

// NewSynthesizer creates a synthesizer. Without an API key only the local summarizer is used.
func NewSynthesizer(cfg *config.Config, logger *logger.Logger) *Synthesizer {
	s := &Synthesizer{
		model:  cfg.OpenAIModel,
		logger: logger.WithComponent("report"),
	}
	if s.model == "" {
		s.model = openai.GPT4oMini
	}

	if cfg.OpenAIAPIKey != "" {
		clientCfg := openai.DefaultConfig(cfg.OpenAIAPIKey)
		if cfg.OpenAIBaseURL != "" {
			clientCfg.BaseURL = strings.TrimRight(cfg.OpenAIBaseURL, "/")
		}
		s.client = openai.NewClientWithConfig(clientCfg)
	}
	return s
}

// Synthesize returns a report for prompt built from pages.
// It only fails when ctx ends; backend errors degrade to the local summarizer.
func (s *Synthesizer) Synthesize(ctx context.Context, prompt string, pages []models.PageInput) (*models.Report, error) {
	log := s.logger.WithContext(ctx)

	if s.client != nil {
		text, err := s.generate(ctx, prompt, pages)
		if err == nil {
			metrics.ReportsGenerated.WithLabelValues(backendPremium).Inc()
			return &models.Report{Report: text, UsedPremiumBackend: true}, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("report generation interrupted: %w", ctxErr)
		}
		log.Warn("premium backend failed, using local summarizer",
			slog.String("model", s.model),
			slog.String("error", err.Error()))
	}

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("report generation interrupted: %w", err)
	}

	metrics.ReportsGenerated.WithLabelValues(backendLocal).Inc()
	return &models.Report{Report: Summarize(prompt, pages), UsedPremiumBackend: false}, nil
}

// generate makes a single chat completion call.
func (s *Synthesizer) generate(ctx context.Context, prompt string, pages []models.PageInput) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: s.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: fmt.Sprintf(userPromptTmpl, prompt, formatSources(pages))},
		},
		MaxTokens:   maxTokens,
		Temperature: temperature,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion returned no choices")
	}

	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", fmt.Errorf("chat completion returned empty content")
	}
	return text, nil
}

func formatSources(pages []models.PageInput) string {
	if len(pages) == 0 {
		return "(no sources could be crawled)"
	}

	var sb strings.Builder
	for i, p := range pages {
		text := p.Text
		if r := []rune(text); len(r) > maxPageChars {
			text = string(r[:maxPageChars])
		}
		fmt.Fprintf(&sb, "[%d] %s\nURL: %s\n%s\n\n", i+1, titleOrURL(p), p.URL, text)
	}
	return strings.TrimSpace(sb.String())
}

func titleOrURL(p models.PageInput) string {
	if t := strings.TrimSpace(p.Title); t != "" {
		return t
	}
	return p.URL
}
