// Package api handles HTTP and WebSocket API endpoints
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/thereceipt/certificate-engine/internal/batch"
	"github.com/thereceipt/certificate-engine/internal/command"
	"github.com/thereceipt/certificate-engine/internal/renderer"
	"github.com/thereceipt/certificate-engine/internal/store"
	"github.com/thereceipt/certificate-engine/pkg/certformat"
	"golang.org/x/time/rate"
)

// FilesRoute serves generated certificates. Point OUTPUT_BASE_URL at it,
// e.g. http://localhost:12212/files.
const FilesRoute = "/files"

// Deps are the components the server exposes
type Deps struct {
	Templates store.TemplateStore
	History   store.HistoryStore
	Generator *batch.Generator
	Queue     *batch.Queue
	Renderer  *renderer.Renderer
	Hub       *Hub
	Themes    []certformat.Theme
	IDs       certformat.IDGenerator

	// OutputDir, when set, is served read-only under FilesRoute
	OutputDir string

	// Registry receives the HTTP metrics and backs /metrics
	Registry *prometheus.Registry

	// Per-client limit on the generate endpoints
	GenerateRate  rate.Limit
	GenerateBurst int

	Logger *slog.Logger
}

// Server is the API server
type Server struct {
	router     *gin.Engine
	deps       Deps
	executor   *command.Executor
	upgrader   websocket.Upgrader
	limiter    *rateLimiter
	logger     *slog.Logger
	httpServer *http.Server
}

// NewServer creates a new API server
func NewServer(deps Deps) *Server {
	gin.SetMode(gin.ReleaseMode)

	if deps.Hub == nil {
		deps.Hub = NewHub(deps.Logger)
	}
	if deps.IDs == nil {
		deps.IDs = certformat.UUIDGenerator()
	}
	if deps.Themes == nil {
		deps.Themes = certformat.DefaultThemes()
	}
	if deps.Registry == nil {
		deps.Registry = prometheus.NewRegistry()
	}
	if deps.GenerateRate == 0 {
		deps.GenerateRate = rate.Inf
	}
	if deps.GenerateBurst == 0 {
		deps.GenerateBurst = 1
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())
	router.Use(newHTTPMetrics(deps.Registry).middleware())

	server := &Server{
		router:   router,
		deps:     deps,
		executor: command.NewExecutor(deps.Templates, deps.History, deps.Queue),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		limiter: newRateLimiter(deps.GenerateRate, deps.GenerateBurst),
		logger:  deps.Logger,
	}

	server.setupRoutes()

	return server
}

func (s *Server) setupRoutes() {
	v1 := s.router.Group("/api/v1")

	templates := v1.Group("/templates")
	templates.GET("", s.handleListTemplates)
	templates.POST("", s.handleCreateTemplate)
	templates.GET("/:id", s.handleGetTemplate)
	templates.PUT("/:id", s.handleUpdateTemplate)
	templates.DELETE("/:id", s.handleDeleteTemplate)
	templates.POST("/:id/theme", s.handleApplyTheme)
	templates.POST("/:id/page-size", s.handleSetPageSize)
	templates.POST("/:id/preview", s.handlePreview)

	elements := templates.Group("/:id/elements")
	elements.POST("", s.handleAddElement)
	elements.PATCH("/:eid", s.handleUpdateElement)
	elements.DELETE("/:eid", s.handleDeleteElement)
	elements.POST("/:eid/duplicate", s.handleDuplicateElement)
	elements.POST("/:eid/lock", s.handleLockElement(true))
	elements.POST("/:eid/unlock", s.handleLockElement(false))
	elements.POST("/:eid/align", s.handleAlignElement)
	elements.POST("/:eid/reorder", s.handleReorderElement)
	elements.POST("/:eid/move", s.handleMoveElement)
	elements.POST("/:eid/resize", s.handleResizeElement)

	v1.GET("/themes", s.handleListThemes)
	v1.GET("/page-sizes", s.handleListPageSizes)

	certificates := v1.Group("/certificates")
	certificates.GET("", s.handleListCertificates)
	certificates.POST("/generate", s.limiter.middleware(), s.handleGenerate)
	certificates.POST("/runs", s.limiter.middleware(), s.handleEnqueueRun)

	v1.GET("/runs", s.handleListRuns)
	v1.GET("/runs/:id", s.handleGetRun)
	v1.DELETE("/runs/:id", s.handleCancelRun)

	// Command endpoint
	s.router.POST("/command", s.handleCommand)

	// WebSocket
	s.router.GET("/ws", s.handleWebSocket)

	s.router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.deps.Registry, promhttp.HandlerOpts{})))

	if s.deps.OutputDir != "" {
		s.router.Static(FilesRoute, s.deps.OutputDir)
	}

	// Health check
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// Hub returns the websocket broadcaster
func (s *Server) Hub() *Hub {
	return s.deps.Hub
}

// handleCommand handles command execution requests
func (s *Server) handleCommand(c *gin.Context) {
	var req struct {
		Command string `json:"command" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(400, gin.H{"error": "command is required"})
		return
	}

	result := s.executor.Execute(c.Request.Context(), req.Command)

	if result.Success {
		response := gin.H{
			"success": true,
		}
		if result.Message != "" {
			response["message"] = result.Message
		}
		for k, v := range result.Data {
			response[k] = v
		}
		c.JSON(200, response)
	} else {
		c.JSON(400, gin.H{
			"success": false,
			"error":   result.Error,
		})
	}
}

// Run starts the API server and blocks until it stops
func (s *Server) Run(addr string) error {
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops accepting requests and closes websocket clients
func (s *Server) Shutdown(ctx context.Context) error {
	s.deps.Hub.Close()
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// statusFor maps domain errors onto HTTP status codes
func statusFor(err error, fallback int) int {
	switch {
	case errors.Is(err, certformat.ErrTemplateNotFound),
		errors.Is(err, certformat.ErrElementNotFound),
		errors.Is(err, batch.ErrRunNotFound):
		return 404
	case errors.Is(err, certformat.ErrDuplicateID),
		errors.Is(err, store.ErrTemplateExists):
		return 409
	case errors.Is(err, certformat.ErrInapplicable),
		errors.Is(err, certformat.ErrNoData):
		return 422
	case errors.Is(err, certformat.ErrInvalidTemplate):
		return 400
	}
	return fallback
}

func (s *Server) fail(c *gin.Context, err error, fallback int) {
	status := statusFor(err, fallback)
	if status >= 500 {
		s.logger.Error("request failed", "method", c.Request.Method, "path", c.FullPath(), "error", err)
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
