package research

import (
	"context"
	"log/slog"
	"time"

	"github.com/eternisai/agentic-research/internal/errors"
	"github.com/eternisai/agentic-research/internal/logger"
	"github.com/eternisai/agentic-research/internal/metrics"
	"github.com/eternisai/agentic-research/models"
)

const operationResearch = "research"

// Orchestrator turns a prompt into a research report.
type Orchestrator struct {
	pipeline    *Pipeline
	synthesizer Synthesizer
	logger      *logger.Logger
}

func NewOrchestrator(pipeline *Pipeline, synthesizer Synthesizer, logger *logger.Logger) *Orchestrator {
	return &Orchestrator{
		pipeline:    pipeline,
		synthesizer: synthesizer,
		logger:      logger.WithComponent("orchestrator"),
	}
}

// Validate checks prompt without running anything.
func (o *Orchestrator) Validate(prompt string) error {
	return o.pipeline.Validate(prompt)
}

// Research runs search, crawl and synthesis for prompt. It is all-or-nothing.
func (o *Orchestrator) Research(ctx context.Context, prompt string) (*models.ResearchResponse, error) {
	return o.ResearchWithProgress(ctx, prompt, nil)
}

// ResearchWithProgress is Research reporting phase changes to progress.
func (o *Orchestrator) ResearchWithProgress(ctx context.Context, prompt string, progress ProgressFunc) (resp *models.ResearchResponse, err error) {
	if err := o.pipeline.Validate(prompt); err != nil {
		return nil, err
	}

	ctx = logger.WithOperation(ctx, operationResearch)
	log := o.logger.WithContext(ctx)
	start := time.Now()
	defer func() {
		metrics.ObserveOperation(operationResearch, start, err)
		if err != nil {
			progress.emit(models.PhaseFailed, errors.Message(err))
		}
	}()

	prefix, err := o.pipeline.Prefix(ctx, prompt, progress)
	if err != nil {
		return nil, err
	}

	progress.emit(models.PhaseReporting, "Writing report...")
	report, err := o.synthesize(ctx, prompt, prefix.Crawl.Pages)
	if err != nil {
		return nil, err
	}

	resp = &models.ResearchResponse{
		Report:             report.Report,
		UsedPremiumBackend: report.UsedPremiumBackend,
		Results:            prefix.Results,
		Crawled:            previews(prefix.Crawl.Pages),
		Documents:          prefix.Crawl.Documents,
	}
	if resp.Documents == nil {
		resp.Documents = []models.DiscoveredDocument{}
	}

	log.Info("research completed",
		slog.Int("results", len(resp.Results)),
		slog.Int("pages", len(resp.Crawled)),
		slog.Int("documents", len(resp.Documents)),
		slog.Bool("premium", resp.UsedPremiumBackend),
		slog.Duration("duration", time.Since(start)))

	progress.emit(models.PhaseComplete, "Complete")
	return resp, nil
}

func (o *Orchestrator) synthesize(ctx context.Context, prompt string, pages []models.CrawledPage) (*models.Report, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.NewUpstream(StageSynthesis, err)
	}

	inputs := make([]models.PageInput, len(pages))
	for i, p := range pages {
		inputs[i] = models.PageInput{URL: p.URL, Title: p.Title, Text: p.Text}
	}

	start := time.Now()
	var report *models.Report
	err := o.logger.LogOperation(ctx, StageSynthesis, func() error {
		var err error
		report, err = o.synthesizer.Synthesize(ctx, prompt, inputs)
		return err
	})
	metrics.ObserveStage(StageSynthesis, start, err)
	if err != nil {
		return nil, errors.NewUpstream(StageSynthesis, err)
	}
	if report == nil {
		report = &models.Report{}
	}
	return report, nil
}

// previews projects pages to what may leave the server. Full text is dropped.
func previews(pages []models.CrawledPage) []models.CrawledPreview {
	out := make([]models.CrawledPreview, len(pages))
	for i, p := range pages {
		out[i] = models.CrawledPreview{URL: p.URL, Title: p.Title, ContentPreview: p.ContentPreview}
	}
	return out
}
