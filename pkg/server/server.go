// Package server exposes the reranking pipeline over HTTP.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/soundprediction/go-rerank/pkg/batching"
	"github.com/soundprediction/go-rerank/pkg/ranking"
)

// Ranker is the slice of the reranking pipeline the transport needs
type Ranker interface {
	Rank(ctx context.Context, query string, passages []string) (*ranking.Result, error)
}

// HealthFunc reports pipeline health details for the health endpoint
type HealthFunc func() map[string]any

// Server wires the ranking pipeline into a gin router
type Server struct {
	ranker Ranker
	health HealthFunc
	log    *slog.Logger
}

// New creates a server. health may be nil.
func New(ranker Ranker, health HealthFunc, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		ranker: ranker,
		health: health,
		log:    log,
	}
}

// Router builds the gin engine with all routes registered
func (s *Server) Router(mode string) *gin.Engine {
	if mode != "" {
		gin.SetMode(mode)
	}
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/health", s.handleHealth)
	router.POST("/rerank", s.handleRerank)

	return router
}

type rerankRequest struct {
	Query    string   `json:"query"`
	Passages []string `json:"passages"`
}

func (s *Server) handleRerank(c *gin.Context) {
	var req rerankRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request format"})
		return
	}

	start := time.Now()
	result, err := s.ranker.Rank(c.Request.Context(), req.Query, req.Passages)
	if err != nil {
		status := statusFor(err)
		if status >= http.StatusInternalServerError {
			s.log.Error("rerank failed", "passages", len(req.Passages), "error", err)
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	s.log.Debug("rerank served", "passages", len(req.Passages), "elapsed", time.Since(start))
	c.JSON(http.StatusOK, gin.H{
		"order":  result.Order,
		"scores": result.Scores,
	})
}

func (s *Server) handleHealth(c *gin.Context) {
	resp := gin.H{
		"status":    "healthy",
		"timestamp": time.Now(),
	}
	if s.health != nil {
		for k, v := range s.health() {
			resp[k] = v
		}
	}
	c.JSON(http.StatusOK, resp)
}

// statusFor maps pipeline errors onto HTTP statuses
func statusFor(err error) int {
	switch {
	case errors.Is(err, ranking.ErrEmptyPassages):
		return http.StatusBadRequest
	case errors.Is(err, batching.ErrOverloaded):
		return http.StatusTooManyRequests
	case errors.Is(err, batching.ErrTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, &batching.UpstreamError{}):
		return http.StatusBadGateway
	case errors.Is(err, batching.ErrStopped):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
