// Package api exposes the NL→SQL pipeline over REST and a single SSE
// chat endpoint (spec.md §6.3–§6.4).
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/queryhub/nl2sql/pkg/config"
	"github.com/queryhub/nl2sql/pkg/pipeline"
)

// Server wires the pipeline's dependency bundle to gin routes.
type Server struct {
	engine     *gin.Engine
	httpServer *http.Server
	cfg        *config.Config
	deps       *pipeline.Deps
}

// NewServer builds a Server and registers every route.
func NewServer(cfg *config.Config, deps *pipeline.Deps) *Server {
	e := gin.New()
	e.Use(gin.Recovery(), securityHeaders, cors(cfg.CORSAllowedOrigins))

	s := &Server{engine: e, cfg: cfg, deps: deps}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.engine.GET("/health", s.healthHandler)
	s.engine.POST("/chat", s.chatHandler)

	v1 := s.engine.Group("/api")
	v1.POST("/generate-sql", s.generateSQLHandler)
	v1.GET("/execute/:query_id", s.executeHandler)
	v1.POST("/interpret/:query_id", s.interpretHandler)
	v1.GET("/download/:query_id", s.downloadHandler)
	v1.GET("/schema/overview", s.schemaOverviewHandler)
	v1.POST("/feedback", s.feedbackHandler)
}

// Start runs the HTTP server on addr, blocking until it stops.
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{Addr: addr, Handler: s.engine}
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) healthHandler(c *gin.Context) {
	reqCtx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	_, err := s.deps.Adapter.Introspect(reqCtx)
	connected := err == nil

	status := "healthy"
	httpStatus := http.StatusOK
	if !connected {
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable
	}

	cacheSize := s.deps.Sessions.Count()
	c.JSON(httpStatus, HealthResponse{
		Status:            status,
		CacheSize:         cacheSize,
		DatabaseConnected: connected,
		SchemaID:          s.deps.Schema.SchemaID,
	})
}

