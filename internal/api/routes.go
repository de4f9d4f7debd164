// Package api provides the optional HTTP front end over engine.Engine:
// one Gin route group exposing the same analysis invocation the CLI runs
// synchronously. It never bypasses the engine or duplicates its logic.
package api

import (
	"log/slog"

	"github.com/gin-gonic/gin"

	"github.com/zaryab2000/decipher-solidity-upgradoor/internal/engine"
)

// Server wraps the Gin router and the analysis handler.
type Server struct {
	router  *gin.Engine
	handler *AnalyzeHandler
	logger  *slog.Logger
}

// NewServer builds a Server ready to serve on /api/v1.
func NewServer(eng *engine.Engine, logger *slog.Logger) *Server {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(LoggingMiddleware(logger))
	router.Use(ErrorHandlingMiddleware(logger))
	router.Use(CORSMiddleware())

	s := &Server{
		router:  router,
		handler: NewAnalyzeHandler(eng, logger),
		logger:  logger.With("component", "api"),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	v1 := s.router.Group("/api/v1")
	{
		v1.GET("/health", s.handler.Health)
		v1.POST("/analyze", s.handler.Analyze)
	}
	s.logger.Info("API routes configured")
}

// Router returns the underlying Gin engine.
func (s *Server) Router() *gin.Engine { return s.router }

// Start blocks serving on addr (e.g. ":8080").
func (s *Server) Start(addr string) error {
	s.logger.Info("starting API server", "address", addr)
	return s.router.Run(addr)
}
