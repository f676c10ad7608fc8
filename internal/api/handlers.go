package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/eternisai/agentic-research/internal/errors"
	"github.com/eternisai/agentic-research/internal/logger"
	"github.com/eternisai/agentic-research/internal/research"
	"github.com/eternisai/agentic-research/models"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// Archive response headers carrying the manifest counts.
const (
	HeaderArchiveIncluded  = "X-Archive-Included"
	HeaderArchiveAttempted = "X-Archive-Attempted"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // origins are enforced by the CORS layer
	},
}

// ResearchService produces reports.
type ResearchService interface {
	Validate(prompt string) error
	Research(ctx context.Context, prompt string) (*models.ResearchResponse, error)
	ResearchWithProgress(ctx context.Context, prompt string, progress research.ProgressFunc) (*models.ResearchResponse, error)
}

// ArchiveService produces document archives.
type ArchiveService interface {
	Validate(prompt string) error
	Archive(ctx context.Context, prompt string) (*research.Archive, error)
}

// Handler serves the research and archive operations.
type Handler struct {
	research         ResearchService
	archive          ArchiveService
	operationTimeout time.Duration
	logger           *logger.Logger
}

// NewHandler creates a handler. Every operation runs under operationTimeout.
func NewHandler(researchService ResearchService, archiveService ArchiveService, operationTimeout time.Duration, logger *logger.Logger) *Handler {
	if operationTimeout <= 0 {
		operationTimeout = 60 * time.Second
	}
	return &Handler{
		research:         researchService,
		archive:          archiveService,
		operationTimeout: operationTimeout,
		logger:           logger.WithComponent("api"),
	}
}

// readPrompt decodes {"prompt": "..."}. An unreadable body counts as a missing prompt.
func readPrompt(c *gin.Context) string {
	var req models.ResearchRequest
	if err := json.NewDecoder(c.Request.Body).Decode(&req); err != nil || req.Prompt == nil {
		return ""
	}
	return *req.Prompt
}

// operationContext bounds an operation by the execution budget and ties it to the client connection.
func (h *Handler) operationContext(c *gin.Context) (context.Context, context.CancelFunc) {
	ctx := logger.WithRunID(c.Request.Context(), logger.GenerateRequestID())
	return context.WithTimeout(ctx, h.operationTimeout)
}

// Research handles POST /research.
func (h *Handler) Research(c *gin.Context) {
	prompt := readPrompt(c)
	if err := h.research.Validate(prompt); err != nil {
		errors.AbortWithError(c, err)
		return
	}

	ctx, cancel := h.operationContext(c)
	defer cancel()

	resp, err := h.research.Research(ctx, prompt)
	if err != nil {
		h.logger.WithContext(ctx).Error("research failed", slog.String("error", err.Error()))
		errors.AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// Archive handles POST /archive.
func (h *Handler) Archive(c *gin.Context) {
	prompt := readPrompt(c)
	if err := h.archive.Validate(prompt); err != nil {
		errors.AbortWithError(c, err)
		return
	}

	ctx, cancel := h.operationContext(c)
	defer cancel()

	archive, err := h.archive.Archive(ctx, prompt)
	if err != nil {
		h.logger.WithContext(ctx).Error("archive failed", slog.String("error", err.Error()))
		errors.AbortWithError(c, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+archive.Filename+`"`)
	c.Header(HeaderArchiveIncluded, strconv.Itoa(archive.Included))
	c.Header(HeaderArchiveAttempted, strconv.Itoa(archive.Attempted))
	c.Data(http.StatusOK, "application/zip", archive.Data)
}

// ResearchStream handles GET /research/stream?prompt=... over a websocket.
// Closing the socket cancels the run.
func (h *Handler) ResearchStream(c *gin.Context) {
	prompt := c.Query("prompt")
	if err := h.research.Validate(prompt); err != nil {
		errors.AbortWithError(c, err)
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.WithContext(c.Request.Context()).Error("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}
	defer conn.Close() //nolint:errcheck

	ctx, cancel := h.operationContext(c)
	defer cancel()
	log := h.logger.WithContext(ctx)

	// Reads only detect disconnection.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				cancel()
				return
			}
		}
	}()

	send := func(event models.ProgressEvent) {
		if err := conn.WriteJSON(event); err != nil {
			log.Debug("failed to send progress event", slog.String("error", err.Error()))
		}
	}

	resp, err := h.research.ResearchWithProgress(ctx, prompt, func(phase models.Phase, message string) {
		if phase == models.PhaseComplete || phase == models.PhaseFailed {
			return
		}
		send(models.ProgressEvent{Phase: phase, Message: message})
	})
	if err != nil {
		log.Error("streamed research failed", slog.String("error", err.Error()))
		send(models.ProgressEvent{Phase: models.PhaseFailed, Message: errors.Message(err)})
	} else {
		send(models.ProgressEvent{Phase: models.PhaseComplete, Message: "Complete", Result: resp})
	}

	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
}

// Health handles GET /health.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
