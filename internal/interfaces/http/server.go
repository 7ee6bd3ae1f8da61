// Package http exposes the emission workflow over a thin gin adapter that
// translates requests into case service and orchestrator calls.
package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/garyjia/emission-workflow/internal/application/port"
	"github.com/garyjia/emission-workflow/internal/application/service"
	"github.com/garyjia/emission-workflow/internal/application/workflow"
)

// Logger interface for logging operations
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// RequestObserver records request latency per route
type RequestObserver interface {
	ObserveRequest(method, route string, status int, elapsed time.Duration)
}

// SweepRunner runs on-demand SLA sweeps and keeps the latest report
type SweepRunner interface {
	RunOnce(ctx context.Context) (*workflow.SweepReport, string, error)
	LastReport() *workflow.SweepReport
}

// ReportRenderer renders a sweep report as an xlsx workbook
type ReportRenderer interface {
	Render(report *workflow.SweepReport) ([]byte, error)
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultServerConfig returns default server configuration
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:         "0.0.0.0",
		Port:         8080,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
}

// Dependencies are the application components served over HTTP. Sweeper,
// Renderer, Reports, Gatherer and Observer are optional.
type Dependencies struct {
	Cases        service.CaseService
	Orchestrator workflow.Orchestrator
	Sweeper      SweepRunner
	Renderer     ReportRenderer
	Reports      port.FileStorage
	Gatherer     prometheus.Gatherer
	Observer     RequestObserver
}

// Server is the HTTP server adapter
type Server struct {
	config     ServerConfig
	deps       Dependencies
	httpServer *http.Server
	router     *gin.Engine
	logger     Logger
}

// NewServer creates a new HTTP server with the given dependencies
func NewServer(config ServerConfig, deps Dependencies, logger Logger) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		config: config,
		deps:   deps,
		router: gin.New(),
		logger: logger,
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(gin.Recovery())
	s.router.Use(s.loggingMiddleware())
	if s.deps.Observer != nil {
		s.router.Use(metricsMiddleware(s.deps.Observer))
	}
}

func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		s.logger.Info("HTTP request",
			"method", method,
			"path", path,
			"status", c.Writer.Status(),
			"latency", time.Since(start).String(),
			"actor_id", c.GetHeader(HeaderActorID),
			"client_ip", c.ClientIP(),
		)
	}
}

// metricsMiddleware labels requests by route template so case ids do not
// blow up label cardinality. Unmatched routes are recorded as "unmatched".
func metricsMiddleware(observer RequestObserver) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		observer.ObserveRequest(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}

func (s *Server) setupRoutes() {
	h := NewHandlers(s.deps, s.logger)

	s.router.GET("/health", h.HealthCheck)
	if s.deps.Gatherer != nil {
		s.router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.deps.Gatherer, promhttp.HandlerOpts{})))
	}

	api := s.router.Group("/api")
	{
		cases := api.Group("/cases")
		cases.POST("", h.OpenCase)
		cases.GET("/:id", h.GetCase)
		cases.POST("/:id/process", h.ProcessCase)
		cases.PUT("/:id/declarations", h.UpdateDeclarations)
		cases.GET("/:id/history", h.History)

		cases.POST("/:id/documents", h.AttachDocument)
		cases.DELETE("/:id/documents/:docID", h.RemoveDocument)
		cases.POST("/:id/documents/:docID/review", h.ReviewDocument)
		cases.PUT("/:id/documents/:docID/ocr", h.UpdateOCRStatus)

		cases.POST("/:id/transitions", h.Transition)
		cases.POST("/:id/missing-items/revalidate", h.Revalidate)
		cases.POST("/:id/missing-items/:code/resolve", h.ResolveMissingItem)

		slaGroup := api.Group("/sla")
		slaGroup.POST("/sweep", h.Sweep)
		slaGroup.GET("/report.xlsx", h.LatestReport)
		slaGroup.GET("/reports", h.ListReports)
		slaGroup.GET("/reports/*path", h.DownloadReport)
	}
}

// Start starts the HTTP server and blocks until ctx is cancelled
func (s *Server) Start(ctx context.Context) error {
	addr := s.Address()

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	s.logger.Info("Starting HTTP server", "address", addr)

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("HTTP server shutdown requested")
		return s.Stop()
	case err := <-errCh:
		s.logger.Error("HTTP server error", "error", err)
		return err
	}
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop() error {
	if s.httpServer == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
		return err
	}

	s.logger.Info("HTTP server stopped")
	return nil
}

// Router returns the underlying gin router (for testing)
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Address returns the server address
func (s *Server) Address() string {
	return fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
}
