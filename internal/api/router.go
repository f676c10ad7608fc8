package api

import (
	"net/http"

	"github.com/eternisai/agentic-research/internal/config"
	"github.com/eternisai/agentic-research/internal/logger"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
)

// NewRouter wires the HTTP surface. The returned handler applies CORS around the gin engine.
func NewRouter(cfg *config.Config, h *Handler, log *logger.Logger) http.Handler {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(logger.RequestLoggingMiddleware(log))

	router.GET("/health", h.Health)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	operations := router.Group("/")
	operations.Use(RateLimitMiddleware(cfg.RateLimitRPS, cfg.RateLimitBurst))
	{
		operations.POST("/research", h.Research)
		operations.POST("/archive", h.Archive)
		operations.GET("/research/stream", h.ResearchStream)

		// Legacy paths.
		operations.POST("/api/agent", h.Research)
		operations.POST("/api/zip", h.Archive)
	}

	c := cors.New(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins(),
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", logger.RequestIDHeader},
		ExposedHeaders: []string{"Content-Disposition", HeaderArchiveIncluded, HeaderArchiveAttempted, logger.RequestIDHeader},
	})
	return c.Handler(router)
}
