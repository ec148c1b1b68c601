// Package server exposes the draft backing store over HTTP.
package server

import (
	"context"
	"net/http"

	"application-intake/internal/common/auth"
	"application-intake/internal/common/errors"
	"application-intake/internal/common/logger"
	"application-intake/internal/flow"
	"application-intake/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// DraftService is implemented by drafts.Service.
type DraftService interface {
	Get(ctx context.Context, userID string) (*models.Draft, error)
	Save(ctx context.Context, req *models.SaveRequest) (*models.Draft, error)
	Ping(ctx context.Context) error
	Backend() string
}

// ErrorResponse is the body of every non-2xx API response.
type ErrorResponse struct {
	Error  *errors.StandardError `json:"error"`
	Status int                   `json:"status"`
}

// Server implements the draft API.
type Server struct {
	drafts   DraftService
	decoder  auth.TokenDecoder
	registry *flow.Registry
	logger   logger.Logger
}

// New creates a server. A nil decoder disables bearer authentication.
func New(svc DraftService, decoder auth.TokenDecoder, registry *flow.Registry, log logger.Logger) *Server {
	return &Server{
		drafts:   svc,
		decoder:  decoder,
		registry: registry,
		logger:   logger.Component(log, "server"),
	}
}

// SetupRoutes configures and returns the HTTP router with all API endpoints
func (s *Server) SetupRoutes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger(s.logger))

	router.GET("/health", s.handleHealth)
	router.GET("/ready", s.handleReady)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api/v1")
	{
		api.GET("/flows", s.listFlows)
		api.GET("/flows/:role", s.getFlow)

		apps := api.Group("/applications")
		if s.decoder != nil {
			apps.Use(bearerAuth(s.decoder))
		}
		apps.GET("/:userId", s.getApplication)
		apps.POST("", s.saveApplication)
	}

	return router
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

func (s *Server) handleReady(c *gin.Context) {
	if err := s.drafts.Ping(c.Request.Context()); err != nil {
		s.logger.WithError(err).Warn("readiness check failed", map[string]interface{}{
			"backend": s.drafts.Backend(),
		})
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not ready", "backend": s.drafts.Backend()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready", "backend": s.drafts.Backend()})
}

func (s *Server) getApplication(c *gin.Context) {
	userID := c.Param("userId")
	if !authorize(c, userID) {
		return
	}

	draft, err := s.drafts.Get(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}
	if draft == nil {
		writeError(c, errors.NewDraftNotFoundError(userID))
		return
	}
	c.JSON(http.StatusOK, draft)
}

func (s *Server) saveApplication(c *gin.Context) {
	var req models.SaveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, errors.NewValidationFailedError(err.Error()))
		return
	}
	if !authorize(c, req.UserID) {
		return
	}

	draft, err := s.drafts.Save(c.Request.Context(), &req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, draft)
}

func (s *Server) listFlows(c *gin.Context) {
	flows := s.registry.Flows()
	docs := make([]interface{}, 0, len(flows))
	for _, f := range flows {
		doc, err := flow.ToDocument(f)
		if err != nil {
			// flows with code-only conditions are not exported
			continue
		}
		docs = append(docs, doc)
	}
	c.JSON(http.StatusOK, gin.H{"flows": docs, "baseline": s.registry.BaselineRole()})
}

func (s *Server) getFlow(c *gin.Context) {
	role, err := models.ParseRole(c.Param("role"))
	if err != nil {
		writeError(c, errors.NewResourceNotFoundError("flows", err.Error()))
		return
	}
	doc, err := flow.ToDocument(s.registry.ForRole(role))
	if err != nil {
		writeError(c, errors.NewBusinessRuleError("Flow cannot be exported", err.Error()))
		return
	}
	c.JSON(http.StatusOK, doc)
}

func writeError(c *gin.Context, err error) {
	stdErr := errors.AsStandard(err)
	status := errors.HTTPStatus(stdErr.Code)
	c.AbortWithStatusJSON(status, ErrorResponse{Error: stdErr, Status: status})
}
