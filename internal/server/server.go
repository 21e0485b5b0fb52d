package server

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"mt5gateway/internal/app"
	"mt5gateway/internal/ports"
)

// Server exposes the gateway operations over HTTP/JSON.
type Server struct {
	gw     *app.Gateway
	logger ports.Logger
}

// New creates the HTTP server around the gateway service.
func New(gw *app.Gateway, logger ports.Logger) (*Server, error) {
	if gw == nil || logger == nil {
		return nil, fmt.Errorf("missing required dependencies for Server")
	}
	return &Server{gw: gw, logger: logger}, nil
}

// Router builds the gin engine with all routes registered.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLog())

	r.GET("/health", s.handleHealth)
	r.GET("/account", s.handleAccount)
	r.POST("/trade", s.handleTrade)
	r.GET("/positions", s.handlePositions)
	r.POST("/close", s.handleClose)

	return r
}

// requestLog tags every request with an id and logs method, path, status and
// duration once the handler chain finishes.
func (s *Server) requestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Header("X-Request-ID", requestID)

		start := time.Now()
		c.Next()

		s.logger.Info(c.Request.Context(), "Request handled", map[string]interface{}{
			"request_id": requestID,
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     c.Writer.Status(),
			"duration":   time.Since(start).String(),
		})
	}
}
